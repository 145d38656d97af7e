package playback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestRegistryOpenGetClose(t *testing.T) {
	s, _ := readyStore(10, 10)
	reg := NewRegistry(s, 500*time.Millisecond)

	sess := reg.Open()
	got, err := reg.Get(sess.ID)
	if err != nil || got != sess {
		t.Fatalf("Get returned %v, %v", got, err)
	}
	if f := got.Sync.Seek(0.55); f.ActiveIndex != 5 {
		t.Errorf("session synchronizer not following the store, index %d", f.ActiveIndex)
	}

	if err := reg.Close(sess.ID); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := reg.Get(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after close, got %v", err)
	}
	if err := reg.Close(sess.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("double close should report not found, got %v", err)
	}
	if _, err := reg.Get(uuid.New()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("unknown id should report not found, got %v", err)
	}
}

func TestRegistryReapIdle(t *testing.T) {
	s, _ := readyStore(10, 10)
	reg := NewRegistry(s, 0)

	idle := reg.Open()
	streaming := reg.Open()
	ch, cancel := streaming.Sync.Subscribe()
	defer cancel()
	<-ch

	time.Sleep(20 * time.Millisecond)
	fresh := reg.Open()

	if n := reg.ReapIdle(10 * time.Millisecond); n != 1 {
		t.Errorf("reaped %d sessions, want 1", n)
	}
	if _, err := reg.Get(idle.ID); !errors.Is(err, ErrSessionNotFound) {
		t.Error("idle session should have been reaped")
	}
	if _, err := reg.Get(streaming.ID); err != nil {
		t.Error("session with an open stream must not be reaped")
	}
	if _, err := reg.Get(fresh.ID); err != nil {
		t.Error("recently used session must not be reaped")
	}
}

func TestRegistryReaperClosesAllOnShutdown(t *testing.T) {
	s, _ := readyStore(10, 10)
	reg := NewRegistry(s, 0)

	sess := reg.Open()
	ch, _ := sess.Sync.Subscribe()
	<-ch

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.RunReaper(ctx, time.Hour, time.Hour) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunReaper returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reaper did not stop")
	}

	if reg.Len() != 0 {
		t.Errorf("sessions left open after shutdown: %d", reg.Len())
	}
	if _, ok := <-ch; ok {
		t.Error("session stream should be closed on shutdown")
	}
}
