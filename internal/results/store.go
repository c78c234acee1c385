// Package results holds the last enriched transaction sets computed for
// dashboard views. The export and drawer-merge endpoints read from here
// instead of re-fetching, so they always reflect whatever the operator last
// loaded. The store is owned by the HTTP layer; the reconciliation engine
// never touches it.
package results

import (
	"sync"
	"time"

	"github.com/pepmo/voucher-ops/internal/provider"
)

// Snapshot is one enriched day view as it was served.
type Snapshot struct {
	Date         string             `json:"date"`
	Provider     string             `json:"provider"`
	Transactions []*provider.Record `json:"transactions"`
	TotalAmount  float64            `json:"total_amount"`
	TotalVolume  float64            `json:"total_volume"`
	LoadedAt     time.Time          `json:"loaded_at"`
}

// Find returns the snapshot record with the given order ID.
func (s *Snapshot) Find(orderID string) (*provider.Record, bool) {
	for _, txn := range s.Transactions {
		if txn.OrderID == orderID {
			return txn, true
		}
	}
	return nil, false
}

// Store keeps recently served day views keyed by date+provider, plus the
// most recently written one. Last-writer-wins; the dashboard serves a single
// operator session at a time.
type Store interface {
	Put(snap *Snapshot)
	Get(date, prov string) (*Snapshot, bool)
	Latest() (*Snapshot, bool)
}

// MemoryStore is the in-memory Store implementation. Safe for concurrent
// use; contents are lost on restart, which is acceptable because every view
// can be recomputed from upstream.
type MemoryStore struct {
	mu     sync.RWMutex
	byKey  map[string]*Snapshot
	latest *Snapshot
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byKey: make(map[string]*Snapshot)}
}

// Put records a served snapshot, replacing any previous one for the same
// date+provider and becoming the latest.
func (s *MemoryStore) Put(snap *Snapshot) {
	if snap == nil {
		return
	}
	if snap.LoadedAt.IsZero() {
		snap.LoadedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.byKey[key(snap.Date, snap.Provider)] = snap
	s.latest = snap
}

// Get returns the snapshot for a date+provider, if one was served.
func (s *MemoryStore) Get(date, prov string) (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.byKey[key(date, prov)]
	return snap, ok
}

// Latest returns the most recently served snapshot.
func (s *MemoryStore) Latest() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

func key(date, prov string) string {
	return date + "|" + prov
}

var _ Store = (*MemoryStore)(nil)
