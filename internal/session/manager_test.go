package session

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestManagerCreateGetDelete(t *testing.T) {
	deps, _ := offlineDeps()
	m := NewManager(deps, time.Hour)

	s := m.Create(Settings{Theme: "Space"})
	got, err := m.Get(s.ID)
	if err != nil || got != s {
		t.Fatalf("Get = %v, %v", got, err)
	}
	if m.Len() != 1 || len(m.List()) != 1 {
		t.Errorf("Expected one session, got %d", m.Len())
	}

	if err := m.Delete(s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !s.Cancelled() {
		t.Error("Deleted session should be cancelled")
	}
	if _, err := m.Get(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	if err := m.Delete(s.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}
}

func TestManagerSweep(t *testing.T) {
	deps, _ := offlineDeps()
	m := NewManager(deps, time.Minute)

	idle := m.Create(Settings{Theme: "Old"})
	fresh := m.Create(Settings{Theme: "New"})

	now := time.Now()
	m.now = func() time.Time { return now.Add(2 * time.Minute) }
	fresh.Configure(Settings{})
	fresh.mu.Lock()
	fresh.lastUsed = now.Add(90 * time.Second)
	fresh.mu.Unlock()

	if n := m.Sweep(); n != 1 {
		t.Fatalf("Expected one expired session, got %d", n)
	}
	if !idle.Cancelled() || fresh.Cancelled() {
		t.Error("Only the idle session should be cancelled")
	}
	if _, err := m.Get(fresh.ID); err != nil {
		t.Errorf("Fresh session should remain: %v", err)
	}
}

func TestManagerRunStopsWithContext(t *testing.T) {
	deps, _ := offlineDeps()
	m := NewManager(deps, 0)
	if m.ttl != DefaultTTL {
		t.Errorf("Expected default ttl, got %v", m.ttl)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return when the context ends")
	}
}

func TestManagerClose(t *testing.T) {
	deps, _ := offlineDeps()
	m := NewManager(deps, time.Hour)
	a := m.Create(Settings{})
	b := m.Create(Settings{})

	m.Close()
	if !a.Cancelled() || !b.Cancelled() || m.Len() != 0 {
		t.Error("Close should cancel and drop every session")
	}
}
