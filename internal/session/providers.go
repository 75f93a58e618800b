package session

import (
	"context"
)

// Utterance is one finalized chunk of recognized speech or typed text.
type Utterance struct {
	Text  string
	Final bool
}

// PermissionGate asks the customer surface for media capture consent before a
// voice session may dial out. Chat sessions skip it.
type PermissionGate interface {
	RequestMedia(ctx context.Context) error
}

// Recognizer streams utterances from the customer's audio. Implementations
// deliver utterances through the callback passed to Start; Pause and Resume
// bracket agent playback so the session never transcribes its own voice.
type Recognizer interface {
	Start(ctx context.Context, onUtterance func(Utterance)) error
	Pause()
	Resume()
	Stop()
}

// Synthesizer renders agent text to the customer's audio surface. Speak
// returns once playback has finished.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Signal is a connection-state notification from the call bridge.
type Signal int

const (
	SignalRinging Signal = iota
	SignalAccepted
	SignalDisconnected
	SignalFailed
)

// CallBridge places and tears down the underlying call leg. Dial is
// asynchronous; connection progress arrives on the signal callback.
type CallBridge interface {
	Dial(ctx context.Context, onSignal func(Signal, error)) error
	HangUp(ctx context.Context) error
}

// SuggestionResult is one advisory draft plus the memory snippets that
// grounded it, e.g. prior tickets for the same customer.
type SuggestionResult struct {
	Text               string
	SupportingMemories []string
}

// Assistant produces agent replies and advisory suggestions from transcript
// context.
type Assistant interface {
	// Reply answers the customer directly; used when the AI agent serves the
	// session.
	Reply(ctx context.Context, transcript []Utterance) (string, error)
	// Suggest drafts a hint for a human rep from a recent transcript window,
	// keyed on the customer so implementations can pull per-customer context.
	Suggest(ctx context.Context, customerID, window string) (SuggestionResult, error)
}

// Providers bundles the external boundaries one session runs against.
type Providers struct {
	Permissions PermissionGate
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Bridge      CallBridge
	Assistant   Assistant
}
