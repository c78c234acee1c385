package results

import (
	"testing"

	"github.com/pepmo/voucher-ops/internal/provider"
)

func snap(date, prov string, orderIDs ...string) *Snapshot {
	s := &Snapshot{Date: date, Provider: prov}
	for _, id := range orderIDs {
		s.Transactions = append(s.Transactions, &provider.Record{OrderID: id})
	}
	return s
}

func TestMemoryStore_PutGet(t *testing.T) {
	store := NewMemoryStore()

	store.Put(snap("2024-03-15", "pinelabs", "ord-1"))

	got, ok := store.Get("2024-03-15", "pinelabs")
	if !ok {
		t.Fatal("expected snapshot, got none")
	}
	if len(got.Transactions) != 1 || got.Transactions[0].OrderID != "ord-1" {
		t.Errorf("unexpected snapshot contents: %+v", got.Transactions)
	}
	if got.LoadedAt.IsZero() {
		t.Error("LoadedAt not stamped on Put")
	}

	if _, ok := store.Get("2024-03-15", "gyftr"); ok {
		t.Error("Get for a different provider should miss")
	}
	if _, ok := store.Get("2024-03-14", "pinelabs"); ok {
		t.Error("Get for a different date should miss")
	}
}

func TestMemoryStore_PutReplaces(t *testing.T) {
	store := NewMemoryStore()

	store.Put(snap("2024-03-15", "all", "ord-1"))
	store.Put(snap("2024-03-15", "all", "ord-2"))

	got, ok := store.Get("2024-03-15", "all")
	if !ok {
		t.Fatal("expected snapshot, got none")
	}
	if got.Transactions[0].OrderID != "ord-2" {
		t.Errorf("expected replacement snapshot, got %s", got.Transactions[0].OrderID)
	}
}

func TestMemoryStore_Latest(t *testing.T) {
	store := NewMemoryStore()

	if _, ok := store.Latest(); ok {
		t.Error("empty store reported a latest snapshot")
	}

	store.Put(snap("2024-03-14", "pinelabs", "ord-1"))
	store.Put(snap("2024-03-15", "gyftr", "ord-2"))

	got, ok := store.Latest()
	if !ok {
		t.Fatal("expected latest snapshot, got none")
	}
	if got.Date != "2024-03-15" || got.Provider != "gyftr" {
		t.Errorf("latest = %s/%s, want 2024-03-15/gyftr", got.Date, got.Provider)
	}
}

func TestSnapshot_Find(t *testing.T) {
	s := snap("2024-03-15", "pinelabs", "ord-1", "ord-2")

	rec, ok := s.Find("ord-2")
	if !ok || rec.OrderID != "ord-2" {
		t.Errorf("Find(ord-2) = %v, %v", rec, ok)
	}
	if _, ok := s.Find("missing"); ok {
		t.Error("Find(missing) should report not found")
	}
}
