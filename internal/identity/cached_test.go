package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pulivilizator/billmgr-addon/model"
)

type countingLookup struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (l *countingLookup) LookupIdentity(_ context.Context, token, _ string) (*model.Identity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	if token == "expired" {
		return nil, nil
	}
	return &model.Identity{Name: token}, nil
}

type counts struct{ hits, misses int }

func (c *counts) RecordIdentityCacheHit()  { c.hits++ }
func (c *counts) RecordIdentityCacheMiss() { c.misses++ }

func TestCached_hitsWithinTTL(t *testing.T) {
	next := &countingLookup{}
	rec := &counts{}
	c := NewCached(next, time.Minute, rec)

	for range 3 {
		id, err := c.LookupIdentity(context.Background(), "alice", "192.0.2.1")
		if err != nil {
			t.Fatalf("LookupIdentity() error = %v", err)
		}
		if id.Name != "alice" {
			t.Errorf("Name = %q, want %q", id.Name, "alice")
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
	if rec.hits != 2 || rec.misses != 1 {
		t.Errorf("hits, misses = %d, %d, want 2, 1", rec.hits, rec.misses)
	}
}

func TestCached_keyIncludesAddress(t *testing.T) {
	next := &countingLookup{}
	c := NewCached(next, time.Minute, nil)

	_, _ = c.LookupIdentity(context.Background(), "alice", "192.0.2.1")
	_, _ = c.LookupIdentity(context.Background(), "alice", "192.0.2.2")
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
}

func TestCached_expires(t *testing.T) {
	next := &countingLookup{}
	c := NewCached(next, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, _ = c.LookupIdentity(context.Background(), "alice", "")
	_, _ = c.LookupIdentity(context.Background(), "bob", "")
	now = now.Add(2 * time.Minute)
	_, _ = c.LookupIdentity(context.Background(), "alice", "")

	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
	if got := c.Len(); got != 1 {
		t.Errorf("Len() = %d, want 1", got)
	}
}

func TestCached_cachesRejection(t *testing.T) {
	next := &countingLookup{}
	c := NewCached(next, time.Minute, nil)

	for range 2 {
		id, err := c.LookupIdentity(context.Background(), "expired", "")
		if err != nil || id != nil {
			t.Fatalf("LookupIdentity() = %v, %v, want nil, nil", id, err)
		}
	}
	if next.calls != 1 {
		t.Errorf("calls = %d, want 1", next.calls)
	}
}

func TestCached_doesNotCacheErrors(t *testing.T) {
	boom := errors.New("db down")
	next := &countingLookup{err: boom}
	c := NewCached(next, time.Minute, nil)

	for range 2 {
		if _, err := c.LookupIdentity(context.Background(), "alice", ""); !errors.Is(err, boom) {
			t.Fatalf("error = %v, want %v", err, boom)
		}
	}
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2", next.calls)
	}
	if got := c.Len(); got != 0 {
		t.Errorf("Len() = %d, want 0", got)
	}
}
