package sessions

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/chat"
	"github.com/mjkim-dev/smartstore-chatbot/pkg/util"
)

// Engine is the per-session answering surface, satisfied by chat.Service.
type Engine interface {
	StreamAnswer(ctx context.Context, question string, topK int, similarityThreshold float64) (<-chan chat.StreamEvent, error)
}

type session struct {
	engine   Engine
	lastSeen time.Time
}

// Registry maps session ids to answering engines. Each session owns its own
// conversation memory, so the factory must build a fresh engine per session.
// Idle sessions are pruned lazily on access once their TTL passes.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*session
	factory  func() Engine
	ttl      time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewRegistry constructs the registry. A non-positive ttl disables pruning.
func NewRegistry(factory func() Engine, ttl time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[uuid.UUID]*session),
		factory:  factory,
		ttl:      ttl,
		now:      util.NowUTC,
		logger:   logger.With("component", "sessions.registry"),
	}
}

// Acquire resolves a raw session id to its engine, creating a new session
// when the id is blank, malformed, or unknown. It returns the effective id
// so the transport can echo it back to the client.
func (r *Registry) Acquire(rawID string) (uuid.UUID, Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		id = uuid.New()
	}

	entry, ok := r.sessions[id]
	if !ok {
		entry = &session{engine: r.factory()}
		r.sessions[id] = entry
		r.logger.Debug("session created", "sessionId", id)
	}
	entry.lastSeen = now
	return id, entry.engine
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) pruneLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, entry := range r.sessions {
		if now.Sub(entry.lastSeen) > r.ttl {
			delete(r.sessions, id)
			r.logger.Debug("session expired", "sessionId", id)
		}
	}
}
