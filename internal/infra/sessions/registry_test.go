package sessions

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
)

type stubEngine struct{ id int }

func (s *stubEngine) StreamAnswer(context.Context, string, int, float64) (<-chan chat.StreamEvent, error) {
	ch := make(chan chat.StreamEvent)
	close(ch)
	return ch, nil
}

func newTestRegistry(ttl time.Duration) *Registry {
	counter := 0
	factory := func() Engine {
		counter++
		return &stubEngine{id: counter}
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRegistry(factory, ttl, logger)
}

func TestAcquireReusesKnownSession(t *testing.T) {
	r := newTestRegistry(time.Hour)

	id, first := r.Acquire("")
	sameID, second := r.Acquire(id.String())

	if sameID != id {
		t.Fatalf("known id changed: %s -> %s", id, sameID)
	}
	if first != second {
		t.Fatal("expected the same engine for the same session id")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", r.Len())
	}
}

func TestAcquireMintsIDForBlankOrMalformedInput(t *testing.T) {
	r := newTestRegistry(time.Hour)

	blankID, _ := r.Acquire("")
	badID, _ := r.Acquire("not-a-uuid")

	if blankID == uuid.Nil || badID == uuid.Nil {
		t.Fatal("expected minted uuids")
	}
	if blankID == badID {
		t.Fatal("distinct acquisitions must mint distinct ids")
	}
	if r.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", r.Len())
	}
}

func TestAcquireIsolatesEngines(t *testing.T) {
	r := newTestRegistry(time.Hour)

	_, first := r.Acquire("")
	_, second := r.Acquire("")

	if first == second {
		t.Fatal("separate sessions must not share an engine")
	}
}

func TestExpiredSessionsArePruned(t *testing.T) {
	r := newTestRegistry(10 * time.Minute)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	id, first := r.Acquire("")

	r.now = func() time.Time { return base.Add(11 * time.Minute) }
	sameID, second := r.Acquire(id.String())

	if sameID != id {
		t.Fatalf("id should be reusable after expiry, got %s", sameID)
	}
	if first == second {
		t.Fatal("expired session must be replaced with a fresh engine")
	}
	if r.Len() != 1 {
		t.Fatalf("expected 1 live session, got %d", r.Len())
	}
}
