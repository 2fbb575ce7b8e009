package trace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/geometry"
	"github.com/1broseidon/winsync/internal/windowstate"
)

func TestJournalRecordsSession(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "trace", "trace.db"))
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	j, err := NewJournal(ctx, db, "headless", "test", nil)
	if err != nil {
		t.Fatalf("NewJournal error: %v", err)
	}

	done := make(chan struct{})
	go func() {
		j.Serve(ctx)
		close(done)
	}()

	req := configure.Request{State: windowstate.Default(), Serial: 4, VizSeq: 9, Applied: true}
	j.OnRequestQueued(req)
	j.OnApplied(req)
	j.OnLatched(req)
	j.OnGeometry(geometry.Rect{Width: 10, Height: 10})
	j.OnAcked(4)

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	sessions, err := Sessions(context.Background(), db)
	if err != nil {
		t.Fatalf("Sessions error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].ID != j.SessionID() {
		t.Fatalf("sessions = %+v", sessions)
	}
	if sessions[0].Events != 5 {
		t.Fatalf("session events = %d, want 5", sessions[0].Events)
	}

	events, err := Events(context.Background(), db, j.SessionID(), 0)
	if err != nil {
		t.Fatalf("Events error: %v", err)
	}
	wantKinds := []string{KindQueued, KindApplied, KindLatched, KindGeometry, KindAck}
	for i, ev := range events {
		if ev.Kind != wantKinds[i] {
			t.Fatalf("event %d kind = %q, want %q", i, ev.Kind, wantKinds[i])
		}
	}
	if events[4].Serial != 4 {
		t.Fatalf("ack serial = %d, want 4", events[4].Serial)
	}

	limited, err := Events(context.Background(), db, j.SessionID(), 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("Events(limit 2) = %d events, %v", len(limited), err)
	}
}
