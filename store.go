package tollgate

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// orderedStore is a bounded map that remembers insertion order so the
// oldest entry can be evicted when the table reaches capacity. Eviction is
// silent policy, not an error.
//
// orderedStore is not safe for concurrent use on its own; the ledger and
// pipeline guard every store with their own mutex so that multi-step
// operations (exists check + consume + delete) stay atomic.
type orderedStore[V any] struct {
	capacity int
	order    []string
	items    map[string]V
}

func newOrderedStore[V any](capacity int) *orderedStore[V] {
	return &orderedStore[V]{
		capacity: capacity,
		items:    make(map[string]V),
	}
}

func (s *orderedStore[V]) Get(key string) (V, bool) {
	v, ok := s.items[key]
	return v, ok
}

// Put inserts or replaces an entry. A new key at capacity evicts the
// oldest entry first; replacing an existing key keeps its original slot.
func (s *orderedStore[V]) Put(key string, value V) {
	if _, exists := s.items[key]; !exists {
		if s.capacity > 0 && len(s.items) >= s.capacity {
			s.EvictOldest()
		}
		s.order = append(s.order, key)
	}
	s.items[key] = value
}

func (s *orderedStore[V]) Delete(key string) {
	if _, exists := s.items[key]; !exists {
		return
	}
	delete(s.items, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *orderedStore[V]) EvictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]
	delete(s.items, oldest)
}

func (s *orderedStore[V]) Len() int {
	return len(s.items)
}

func (s *orderedStore[V]) Range(fn func(key string, value V) bool) {
	// Iterate a copy of the order slice so fn may delete entries.
	keys := make([]string, len(s.order))
	copy(keys, s.order)
	for _, k := range keys {
		v, ok := s.items[k]
		if !ok {
			continue
		}
		if !fn(k, v) {
			return
		}
	}
}

// requirementStore adapts orderedStore to the RequirementStore interface.
type requirementStore struct {
	*orderedStore[*PaymentRequirement]
}

// NewRequirementStore returns an in-memory bounded requirement table.
func NewRequirementStore(capacity int) RequirementStore {
	return &requirementStore{newOrderedStore[*PaymentRequirement](capacity)}
}

// recordStore adapts orderedStore to the RecordStore interface.
type recordStore struct {
	*orderedStore[*PaymentRecord]
}

// NewRecordStore returns an in-memory bounded record table.
func NewRecordStore(capacity int) RecordStore {
	return &recordStore{newOrderedStore[*PaymentRecord](capacity)}
}

// nonceSet is a bounded set of consumed nonces. When the set fills up, the
// oldest half is dropped in one sweep so steady-state inserts stay cheap.
// Dropping old nonces is safe because their requirements expired long ago.
type nonceSet struct {
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newNonceSet(capacity int) *nonceSet {
	return &nonceSet{
		capacity: capacity,
		seen:     make(map[string]struct{}),
	}
}

func (n *nonceSet) Contains(nonce string) bool {
	_, ok := n.seen[nonce]
	return ok
}

func (n *nonceSet) Add(nonce string) {
	if _, ok := n.seen[nonce]; ok {
		return
	}
	if n.capacity > 0 && len(n.seen) >= n.capacity {
		half := len(n.order) / 2
		for _, old := range n.order[:half] {
			delete(n.seen, old)
		}
		n.order = append([]string(nil), n.order[half:]...)
	}
	n.order = append(n.order, nonce)
	n.seen[nonce] = struct{}{}
}

func (n *nonceSet) Len() int {
	return len(n.seen)
}

// ============================================================================
// Default token source
// ============================================================================

// randomTokenSource is the production TokenSource: UUIDs for identifiers
// and 32 bytes of crypto/rand for nonces.
type randomTokenSource struct{}

// NewRandomTokenSource returns the default production token source.
func NewRandomTokenSource() TokenSource {
	return randomTokenSource{}
}

func (randomTokenSource) NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

func (randomTokenSource) NewNonce() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process has no entropy source at
		// all; a UUID still gives uniqueness for the requirement lifetime.
		return strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex.EncodeToString(buf)
}
