package decisionlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func sample(tick, req, elev string, at time.Time) Record {
	return Record{
		Timestamp:  at,
		TickID:     tick,
		RequestID:  req,
		ElevatorID: elev,
		Cost:       12.5,
		Options:    []Option{{ElevatorID: elev, Cost: 12.5, Feasible: true}},
	}
}

func exercise(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	recs := []Record{
		sample("t1", "r1", "A", now),
		sample("t1", "r2", "B", now.Add(time.Second)),
		{Timestamp: now.Add(2 * time.Second), TickID: "t2", RequestID: "r3", Deferred: true, Reason: "no capacity"},
	}
	for _, r := range recs {
		if err := store.Append(ctx, r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	all, err := store.Query(ctx, Query{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 records, got %d", len(all))
	}
	byElev, err := store.Query(ctx, Query{ElevatorID: "B"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byElev) != 1 || byElev[0].RequestID != "r2" {
		t.Fatalf("unexpected elevator query result %+v", byElev)
	}
	byTick, err := store.Query(ctx, Query{TickID: "t2"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byTick) != 1 || !byTick[0].Deferred || byTick[0].Reason != "no capacity" {
		t.Fatalf("unexpected tick query result %+v", byTick)
	}
}

func TestJSONLStore(t *testing.T) {
	store, err := NewJSONLStore(filepath.Join(t.TempDir(), "decisions.jsonl"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	exercise(t, store)
}

func TestRotatingJSONLStore(t *testing.T) {
	store, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "decisions.jsonl"), 1, 2, 1)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	exercise(t, store)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "decisions.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = store.Close() }()
	exercise(t, store)
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{})
	if err != nil || s != nil {
		t.Fatalf("disabled backend should return nil store, got %v %v", s, err)
	}
	if _, err := Open(Config{Backend: "jsonl"}); err == nil {
		t.Fatal("expected missing path error")
	}
	if _, err := Open(Config{Backend: "kafka", Path: "x"}); err == nil {
		t.Fatal("expected unknown backend error")
	}
	s, err = Open(Config{Backend: "rotating", Path: filepath.Join(t.TempDir(), "d.jsonl")})
	if err != nil {
		t.Fatalf("open rotating: %v", err)
	}
	_ = s.Close()
}

func TestQueryMatch(t *testing.T) {
	now := time.Now()
	r := sample("t", "r", "A", now)
	if !(Query{Start: now.Add(-time.Second), End: now.Add(time.Second)}).Match(r) {
		t.Fatal("expected match within range")
	}
	if (Query{Start: now.Add(time.Second)}).Match(r) {
		t.Fatal("expected no match before start")
	}
	if (Query{RequestID: "other"}).Match(r) {
		t.Fatal("expected no match on request id")
	}
}
