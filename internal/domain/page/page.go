// Package page implements the cursor pagination contract shared by every
// list endpoint. The cursor is a zero-based integer offset into a stably
// ordered snapshot; next_cursor is null once the end is reached.
package page

import (
	"net/url"
	"strconv"
)

// DefaultLimit is applied when a list request carries no limit parameter.
const DefaultLimit = 50

// MaxLimit is the per-endpoint cap; larger requests are clamped, not rejected.
const MaxLimit = 200

// Page is one slice of a collection plus the cursor that reproduces the
// immediately following slice.
type Page[T any] struct {
	Items      []T     `json:"items"`
	NextCursor *string `json:"next_cursor"`
}

// Slice paginates items with a zero-based offset cursor. next_cursor is
// cursor+len(slice) while items remain, nil at the end. limit <= 0 falls
// back to DefaultLimit; limits above max are clamped.
func Slice[T any](items []T, cursor, limit, max int) Page[T] {
	if max <= 0 {
		max = MaxLimit
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > max {
		limit = max
	}
	if cursor < 0 {
		cursor = 0
	}

	if cursor >= len(items) {
		return Page[T]{Items: []T{}}
	}

	end := cursor + limit
	if end > len(items) {
		end = len(items)
	}

	p := Page[T]{Items: items[cursor:end]}
	if end < len(items) {
		next := strconv.Itoa(end)
		p.NextCursor = &next
	}
	return p
}

// Params extracts cursor and limit from list query parameters. Malformed,
// zero or negative values fall back to the defaults.
func Params(q url.Values) (cursor, limit int) {
	cursor = atoiDefault(q.Get("cursor"), 0)
	if cursor < 0 {
		cursor = 0
	}
	limit = atoiDefault(q.Get("limit"), DefaultLimit)
	if limit <= 0 {
		limit = DefaultLimit
	}
	return cursor, limit
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
