package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Suggestion is one advisory hint served to a human rep. Suggestions are
// never injected into the transcript; the rep decides what to do with them.
type Suggestion struct {
	ID                 string    `json:"id"`
	SessionID          string    `json:"session_id"`
	Text               string    `json:"text"`
	SupportingMemories []string  `json:"supporting_memories,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// FeederConfig tunes the suggestion cadence.
type FeederConfig struct {
	// Debounce is the quiet period after the last observed words before a
	// suggestion is attempted.
	Debounce time.Duration
	// MinNewWords gates how much fresh material must accumulate since the
	// last served suggestion.
	MinNewWords int
	// WindowWords caps how much trailing transcript the assistant sees.
	WindowWords int
	// MaxRetained bounds the served-suggestion ring.
	MaxRetained int
	// RequestTimeout bounds each assistant call.
	RequestTimeout time.Duration
}

func (c FeederConfig) withDefaults() FeederConfig {
	if c.Debounce <= 0 {
		c.Debounce = 2 * time.Second
	}
	if c.MinNewWords <= 0 {
		c.MinNewWords = 10
	}
	if c.WindowWords <= 0 {
		c.WindowWords = 50
	}
	if c.MaxRetained <= 0 {
		c.MaxRetained = 5
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	return c
}

// SuggestionFeeder watches the customer side of a human-agent session and
// serves debounced hints. It is strictly advisory: every failure is swallowed
// and the session never notices.
type SuggestionFeeder struct {
	sessionID  string
	customerID string
	assistant  Assistant
	cfg        FeederConfig
	logger     *zap.Logger
	onServed   func(Suggestion)

	mu          sync.Mutex
	words       []string
	newWords    int
	timer       *time.Timer
	suggestions []Suggestion
	closed      bool
}

// NewSuggestionFeeder constructs a feeder for one session. The customer id is
// forwarded to the assistant with every window. onServed may be nil.
func NewSuggestionFeeder(sessionID, customerID string, assistant Assistant, cfg FeederConfig, onServed func(Suggestion), logger *zap.Logger) *SuggestionFeeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SuggestionFeeder{
		sessionID:  sessionID,
		customerID: customerID,
		assistant:  assistant,
		cfg:        cfg.withDefaults(),
		logger:     logger.With(zap.String("session_id", sessionID)),
		onServed:   onServed,
	}
}

// Observe feeds customer words into the window and (re)arms the debounce
// timer. Rapid speech keeps pushing the timer out, so suggestions only fire
// in pauses.
func (f *SuggestionFeeder) Observe(text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}

	f.words = append(f.words, fields...)
	if overflow := len(f.words) - f.cfg.WindowWords; overflow > 0 {
		f.words = f.words[overflow:]
	}
	f.newWords += len(fields)

	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.cfg.Debounce, f.fire)
}

// List returns retained suggestions, oldest first.
func (f *SuggestionFeeder) List() []Suggestion {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Suggestion, len(f.suggestions))
	copy(out, f.suggestions)
	return out
}

// Dismiss removes one suggestion; unknown ids are a no-op.
func (f *SuggestionFeeder) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, suggestion := range f.suggestions {
		if suggestion.ID == id {
			f.suggestions = append(f.suggestions[:i], f.suggestions[i+1:]...)
			return
		}
	}
}

// Close stops the feeder; pending timers are cancelled.
func (f *SuggestionFeeder) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func (f *SuggestionFeeder) fire() {
	f.mu.Lock()
	if f.closed || f.newWords < f.cfg.MinNewWords {
		f.mu.Unlock()
		return
	}
	window := strings.Join(f.words, " ")
	f.newWords = 0
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), f.cfg.RequestTimeout)
	defer cancel()

	result, err := f.assistant.Suggest(ctx, f.customerID, window)
	if err != nil {
		f.logger.Debug("suggestion request failed", zap.Error(err))
		return
	}
	text := strings.TrimSpace(result.Text)
	if text == "" {
		return
	}

	suggestion := Suggestion{
		ID:                 uuid.NewString(),
		SessionID:          f.sessionID,
		Text:               text,
		SupportingMemories: result.SupportingMemories,
		CreatedAt:          time.Now(),
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.suggestions = append(f.suggestions, suggestion)
	if len(f.suggestions) > f.cfg.MaxRetained {
		f.suggestions = f.suggestions[len(f.suggestions)-f.cfg.MaxRetained:]
	}
	f.mu.Unlock()

	if f.onServed != nil {
		f.onServed(suggestion)
	}
}
