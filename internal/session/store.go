package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/upload"
)

// ControllerFactory builds the controller for a new session, wired to the
// session as its listener.
type ControllerFactory func(listener upload.Listener) *upload.Controller

// DefaultMaxSessions is used when StoreOpts.MaxSessions is not positive.
const DefaultMaxSessions = 1000

type StoreOpts struct {
	TTL time.Duration
	// MaxSessions caps the live sessions. Creating one past the cap evicts
	// the least recently seen session.
	MaxSessions int
	Logger      *zap.Logger
}

// Store keeps the live sessions in memory, keyed by session id.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	factory  ControllerFactory
	ttl      time.Duration
	limit    int
	now      func() time.Time
	logger   *zap.Logger
}

func NewStore(factory ControllerFactory, opts StoreOpts) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := opts.MaxSessions
	if limit <= 0 {
		limit = DefaultMaxSessions
	}
	return &Store{
		sessions: make(map[string]*Session),
		factory:  factory,
		ttl:      opts.TTL,
		limit:    limit,
		now:      time.Now,
		logger:   logger.Named("session_store"),
	}
}

// Get returns the session for id, creating it on first use.
func (s *Store) Get(id string) *Session {
	now := s.now()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	var evicted *Session
	if !ok {
		if len(s.sessions) >= s.limit {
			evicted = s.evictOldestLocked()
		}
		sess = &Session{ID: id}
		sess.Controller = s.factory(sess)
		s.sessions[id] = sess
		s.logger.Debug("session created", zap.String("session_id", id))
	}
	sess.touch(now)
	s.mu.Unlock()

	if evicted != nil {
		evicted.Controller.Clear()
		s.logger.Info("evicted least recently seen session",
			zap.String("session_id", evicted.ID),
			zap.Int("max_sessions", s.limit),
		)
	}
	return sess
}

func (s *Store) evictOldestLocked() *Session {
	var oldest *Session
	for _, sess := range s.sessions {
		if oldest == nil || sess.idleSince().Before(oldest.idleSince()) {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(s.sessions, oldest.ID)
	}
	return oldest
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops sessions idle for longer than the ttl and clears their
// controllers so outstanding submissions are cancelled. It returns the
// number of sessions removed.
func (s *Store) Sweep() int {
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if sess.idleSince().Before(cutoff) {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range expired {
		sess.Controller.Clear()
	}
	if len(expired) > 0 {
		s.logger.Info("expired idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
