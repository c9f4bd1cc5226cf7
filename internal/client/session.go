package client

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"lantern/internal/domain/models"
	"lantern/internal/metrics"
)

// CancelledSuffix marks a salvaged partial turn.
const CancelledSuffix = " [cancelled]"

// Session is one in-flight generation: its cancellation token, the text
// accumulated so far, and the throughput tracker. At most one session is
// active per conversation; the UI layer enforces that, this type only has to
// tolerate a single concurrent cancel.
type Session struct {
	ID string

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	buf      strings.Builder
	tracker  *metrics.Tracker
	snapshot metrics.Snapshot
	finished bool
}

// NewSession starts a session under parent with the given context window and
// input token estimate.
func NewSession(parent context.Context, window, inputTokens int) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		ID:      uuid.New().String(),
		ctx:     ctx,
		cancel:  cancel,
		tracker: metrics.NewTracker(window, inputTokens),
	}
}

// Context is the cancellation token threaded through pre-steps and
// generation.
func (s *Session) Context() context.Context { return s.ctx }

// Cancel propagates the cancellation signal to whatever network operation is
// active. Safe to call more than once.
func (s *Session) Cancel() { s.cancel() }

// Apply appends a content delta and recomputes metrics. Deltas arriving
// after the session finished are dropped, keeping the terminal state
// consistent.
func (s *Session) Apply(delta string) (string, metrics.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished {
		return s.buf.String(), s.snapshot
	}
	s.buf.WriteString(delta)
	s.snapshot = s.tracker.Observe(s.buf.String())
	return s.buf.String(), s.snapshot
}

// Text returns the display text accumulated so far.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// Metrics returns the most recent snapshot.
func (s *Session) Metrics() metrics.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// Finish seals the session with a session-average throughput figure and
// returns the completed assistant turn. No mutation is possible afterwards.
func (s *Session) Finish() (models.ChatTurn, metrics.Snapshot) {
	return s.seal("")
}

// Salvage seals a cancelled session, preserving accumulated text with a
// visible cancellation suffix. An empty session salvages to an empty turn;
// the caller decides whether to keep it.
func (s *Session) Salvage() (models.ChatTurn, metrics.Snapshot) {
	return s.seal(CancelledSuffix)
}

func (s *Session) seal(suffix string) (models.ChatTurn, metrics.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.finished {
		s.finished = true
		s.snapshot = s.tracker.Finalize(s.buf.String())
	}

	content := s.buf.String()
	if suffix != "" && content != "" {
		content += suffix
	}
	return models.ChatTurn{Role: "assistant", Content: content}, s.snapshot
}
