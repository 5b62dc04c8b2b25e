package service

import (
	"crypto/sha256"
	"fmt"
	"sync"

	"github.com/Strob0t/DevPlane/internal/domain"
)

// ETagManager issues version tokens for mutable resources. A token is a
// content hash plus a per-resource revision counter, so two writes of
// identical bytes still produce distinct tokens and a holder of the older
// one is correctly told its view is stale.
type ETagManager struct {
	mu   sync.Mutex
	revs map[string]uint64
}

func NewETagManager() *ETagManager {
	return &ETagManager{revs: make(map[string]uint64)}
}

// Current returns the token a reader should be handed for the resource's
// present content. It does not advance the revision.
func (m *ETagManager) Current(key string, content []byte) string {
	m.mu.Lock()
	rev := m.revs[key]
	m.mu.Unlock()
	return etagToken(content, rev)
}

// Validate checks a caller-supplied token against the resource's current
// one. An empty token always passes: writes without a token are
// last-writer-wins by contract.
func (m *ETagManager) Validate(key, provided string, content []byte) error {
	if provided == "" {
		return nil
	}
	if provided != m.Current(key, content) {
		return domain.Conflictf("etag mismatch for %s", key)
	}
	return nil
}

// Commit advances the revision after a successful write and returns the
// new token. Callers must serialize Validate and Commit around the write
// itself.
func (m *ETagManager) Commit(key string, content []byte) string {
	m.mu.Lock()
	m.revs[key]++
	rev := m.revs[key]
	m.mu.Unlock()
	return etagToken(content, rev)
}

// Forget drops the revision entry for a deleted resource.
func (m *ETagManager) Forget(key string) {
	m.mu.Lock()
	delete(m.revs, key)
	m.mu.Unlock()
}

func etagToken(content []byte, rev uint64) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x-%d", sum[:8], rev)
}
