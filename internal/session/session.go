package session

import (
	"sync"
	"time"

	"github.com/RanjanPM/potato-disease-classification/internal/predict"
	"github.com/RanjanPM/potato-disease-classification/internal/presenter"
	"github.com/RanjanPM/potato-disease-classification/internal/upload"
)

// Session is one browser's upload workflow plus the outcome it displays.
type Session struct {
	ID         string
	Controller *upload.Controller

	mu       sync.Mutex
	outcome  *presenter.Outcome
	lastSeen time.Time
}

// PredictionReady implements upload.Listener.
func (s *Session) PredictionReady(result predict.Result) {
	out := presenter.Present(result)
	s.mu.Lock()
	s.outcome = &out
	s.mu.Unlock()
}

// ResultInvalidated implements upload.Listener.
func (s *Session) ResultInvalidated() {
	s.mu.Lock()
	s.outcome = nil
	s.mu.Unlock()
}

// Outcome returns the outcome currently on display, if any.
func (s *Session) Outcome() (presenter.Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.outcome == nil {
		return presenter.Outcome{}, false
	}
	return *s.outcome, true
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
