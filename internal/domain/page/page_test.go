package page

import (
	"net/url"
	"strconv"
	"testing"
)

func TestSliceRoundTrip(t *testing.T) {
	items := make([]int, 17)
	for i := range items {
		items[i] = i
	}

	var got []int
	cursor := 0
	pages := 0
	for {
		p := Slice(items, cursor, 5, 0)
		got = append(got, p.Items...)
		pages++
		if p.NextCursor == nil {
			break
		}
		next := *p.NextCursor
		if next != strconv.Itoa(cursor+len(p.Items)) {
			t.Fatalf("next_cursor = %s, want %d", next, cursor+len(p.Items))
		}
		cursor = cursor + len(p.Items)
	}

	if pages != 4 {
		t.Errorf("pages = %d, want 4", pages)
	}
	if len(got) != len(items) {
		t.Fatalf("concatenated %d items, want %d", len(got), len(items))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("item %d = %d: overlap or gap in pagination", i, v)
		}
	}
}

func TestSliceEdgeCases(t *testing.T) {
	items := []string{"a", "b", "c"}

	tests := []struct {
		name      string
		cursor    int
		limit     int
		wantItems int
		wantNext  bool
	}{
		{"cursor past end", 10, 5, 0, false},
		{"cursor at end", 3, 5, 0, false},
		{"negative cursor", -4, 5, 3, false},
		{"limit clamped to max", 0, 1000, 3, false},
		{"zero limit uses default", 0, 0, 3, false},
		{"exact boundary", 0, 3, 3, false},
		{"partial page", 1, 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Slice(items, tt.cursor, tt.limit, 0)
			if len(p.Items) != tt.wantItems {
				t.Errorf("len(items) = %d, want %d", len(p.Items), tt.wantItems)
			}
			if (p.NextCursor != nil) != tt.wantNext {
				t.Errorf("next_cursor presence = %v, want %v", p.NextCursor != nil, tt.wantNext)
			}
		})
	}
}

func TestSliceEmptyItemsNotNil(t *testing.T) {
	p := Slice([]int{}, 0, 10, 0)
	if p.Items == nil {
		t.Error("empty page items must be [] not null")
	}
}

func TestParams(t *testing.T) {
	q := url.Values{"cursor": {"15"}, "limit": {"25"}}
	cursor, limit := Params(q)
	if cursor != 15 || limit != 25 {
		t.Errorf("Params = (%d, %d), want (15, 25)", cursor, limit)
	}

	cursor, limit = Params(url.Values{"cursor": {"junk"}, "limit": {"-1"}})
	if cursor != 0 {
		t.Errorf("malformed cursor = %d, want 0", cursor)
	}
	if limit != DefaultLimit {
		t.Errorf("negative limit = %d, want DefaultLimit %d", limit, DefaultLimit)
	}

	_, limit = Params(url.Values{"limit": {"0"}})
	if limit != DefaultLimit {
		t.Errorf("zero limit = %d, want DefaultLimit %d", limit, DefaultLimit)
	}
}
