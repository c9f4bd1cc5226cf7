package client

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionAccumulates(t *testing.T) {
	s := NewSession(context.Background(), 4096, 10)
	require.NotEmpty(t, s.ID)

	text, snap := s.Apply("Hello")
	assert.Equal(t, "Hello", text)
	text, snap = s.Apply(" world")
	assert.Equal(t, "Hello world", text)
	assert.Equal(t, "Hello world", s.Text())

	assert.Equal(t, 10, snap.InputTokens)
	assert.Equal(t, 3, snap.OutputTokens) // ceil(11/4)
	assert.Equal(t, 4096, snap.ContextWindow)
}

func TestSessionFinish(t *testing.T) {
	s := NewSession(context.Background(), 4096, 0)
	s.Apply("The answer.")

	turn, snap := s.Finish()
	assert.Equal(t, "assistant", turn.Role)
	assert.Equal(t, "The answer.", turn.Content)
	assert.Equal(t, 3, snap.OutputTokens)

	// A finished session drops late deltas.
	text, _ := s.Apply(" straggler")
	assert.Equal(t, "The answer.", text)
	turn, _ = s.Finish()
	assert.Equal(t, "The answer.", turn.Content)
}

func TestSessionSalvageAppendsSuffix(t *testing.T) {
	s := NewSession(context.Background(), 4096, 0)
	s.Apply("partial thought")

	turn, _ := s.Salvage()
	assert.Equal(t, "partial thought"+CancelledSuffix, turn.Content)

	// Salvage is stable: the suffix never doubles and the text never moves.
	turn, _ = s.Salvage()
	assert.Equal(t, "partial thought"+CancelledSuffix, turn.Content)
}

func TestSessionSalvageEmpty(t *testing.T) {
	s := NewSession(context.Background(), 4096, 0)
	turn, _ := s.Salvage()
	assert.Empty(t, turn.Content, "no suffix on an empty salvage")
}

func TestSessionCancelPropagates(t *testing.T) {
	s := NewSession(context.Background(), 4096, 0)
	require.NoError(t, s.Context().Err())

	s.Cancel()
	assert.Error(t, s.Context().Err())

	// Safe to repeat.
	s.Cancel()
}

func TestSessionParentCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	s := NewSession(parent, 4096, 0)
	cancel()
	assert.Error(t, s.Context().Err())
}

func TestSessionLongAccumulation(t *testing.T) {
	s := NewSession(context.Background(), 0, 0)
	var want strings.Builder
	for i := 0; i < 500; i++ {
		want.WriteString("chunk ")
		s.Apply("chunk ")
	}
	assert.Equal(t, want.String(), s.Text())

	snap := s.Metrics()
	assert.Equal(t, 750, snap.OutputTokens) // 3000 chars / 4
}
