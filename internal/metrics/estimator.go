// Package metrics derives token and throughput estimates for a generation.
//
// Token counts are approximations from character classes, not a real
// tokenizer: CJK text averages ~1.5 characters per token, everything else
// ~4. That is close enough to drive a live usage bar and tokens/second
// readout without shipping a vocabulary.
package metrics

import (
	"math"
	"time"

	"lantern/internal/domain/models"
)

// DefaultContextWindow is used when no capability probe has resolved the
// model's real window.
const DefaultContextWindow = 4096

// sampleInterval is the minimum spacing between throughput samples.
const sampleInterval = 100 * time.Millisecond

const (
	cjkCharsPerToken   = 1.5
	otherCharsPerToken = 4.0
)

// EstimateTokens approximates the token count of text. The Tracker keeps
// per-session counts monotonic; the raw estimate alone is not guaranteed to
// be when the CJK ratio shifts.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}

	total := 0
	cjk := 0
	for _, r := range text {
		total++
		if isCJK(r) {
			cjk++
		}
	}

	cjkRatio := float64(cjk) / float64(total)
	avgCharsPerToken := cjkRatio*cjkCharsPerToken + (1-cjkRatio)*otherCharsPerToken

	return int(math.Ceil(float64(total) / avgCharsPerToken))
}

// isCJK reports whether r falls in the Hiragana, Katakana, or common CJK
// ideograph blocks.
func isCJK(r rune) bool {
	switch {
	case r >= 0x3040 && r <= 0x309F: // Hiragana
		return true
	case r >= 0x30A0 && r <= 0x30FF: // Katakana
		return true
	case r >= 0x4E00 && r <= 0x9FFF: // CJK Unified Ideographs
		return true
	}
	return false
}

// EstimateInputTokens sums the estimates of every prior turn plus the new
// message. Each message is estimated independently.
func EstimateInputTokens(history []models.ChatTurn, message string) int {
	total := 0
	for _, turn := range history {
		total += EstimateTokens(turn.Content)
	}
	return total + EstimateTokens(message)
}

// Snapshot is the derived metrics view, recomputed on every fragment arrival
// and once more at stream termination.
type Snapshot struct {
	ContextWindow   int     `json:"contextWindow"`
	InputTokens     int     `json:"inputTokens"`
	OutputTokens    int     `json:"outputTokens"`
	UsagePercent    float64 `json:"usagePercent"` // may exceed 100, never clamped here
	TokensPerSecond float64 `json:"tokensPerSecond"`
	ElapsedMs       int64   `json:"elapsedMs"`
}

// Tracker computes live throughput for one generation session. Output token
// estimates and elapsed time are monotonically non-decreasing within a
// session.
type Tracker struct {
	window      int
	inputTokens int

	start        time.Time
	lastSampleAt time.Time
	lastTokens   int

	outputTokens    int
	tokensPerSecond float64

	now func() time.Time
}

// NewTracker starts a tracker for a session with the given context window
// and precomputed input token estimate. A window of 0 falls back to
// DefaultContextWindow.
func NewTracker(window, inputTokens int) *Tracker {
	return newTracker(window, inputTokens, time.Now)
}

func newTracker(window, inputTokens int, now func() time.Time) *Tracker {
	if window <= 0 {
		window = DefaultContextWindow
	}
	start := now()
	return &Tracker{
		window:       window,
		inputTokens:  inputTokens,
		start:        start,
		lastSampleAt: start,
		now:          now,
	}
}

// Observe recomputes the snapshot from the accumulated output text. The
// instantaneous tokens/second figure only advances when at least 100ms
// separate it from the previous sample; the anchor then resets.
func (t *Tracker) Observe(output string) Snapshot {
	now := t.now()
	tokens := EstimateTokens(output)
	if tokens > t.outputTokens {
		t.outputTokens = tokens
	}

	if since := now.Sub(t.lastSampleAt); since >= sampleInterval {
		t.tokensPerSecond = float64(t.outputTokens-t.lastTokens) / float64(since.Milliseconds()) * 1000
		t.lastSampleAt = now
		t.lastTokens = t.outputTokens
	}

	return t.snapshot(now)
}

// Finalize recomputes once more at stream end, overwriting the instantaneous
// throughput with the session average.
func (t *Tracker) Finalize(output string) Snapshot {
	now := t.now()
	tokens := EstimateTokens(output)
	if tokens > t.outputTokens {
		t.outputTokens = tokens
	}

	elapsed := now.Sub(t.start).Milliseconds()
	if elapsed > 0 {
		t.tokensPerSecond = float64(t.outputTokens) / float64(elapsed) * 1000
	} else {
		t.tokensPerSecond = 0
	}

	return t.snapshot(now)
}

func (t *Tracker) snapshot(now time.Time) Snapshot {
	return Snapshot{
		ContextWindow:   t.window,
		InputTokens:     t.inputTokens,
		OutputTokens:    t.outputTokens,
		UsagePercent:    float64(t.inputTokens+t.outputTokens) / float64(t.window) * 100,
		TokensPerSecond: t.tokensPerSecond,
		ElapsedMs:       now.Sub(t.start).Milliseconds(),
	}
}
