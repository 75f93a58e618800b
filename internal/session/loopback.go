package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Loopback providers let the orchestrator run end to end without any speech,
// telephony or model backend attached. Utterances enter through
// Session.Inject or LoopbackRecognizer.Push, the bridge accepts instantly and
// the assistant answers from templates. Real deployments swap these out in
// the provider factory.

// LoopbackGate grants every media request.
type LoopbackGate struct{}

func (LoopbackGate) RequestMedia(context.Context) error { return nil }

// LoopbackBridge connects immediately: ringing, then accepted.
type LoopbackBridge struct {
	mu       sync.Mutex
	onSignal func(Signal, error)
}

func (b *LoopbackBridge) Dial(_ context.Context, onSignal func(Signal, error)) error {
	b.mu.Lock()
	b.onSignal = onSignal
	b.mu.Unlock()
	onSignal(SignalRinging, nil)
	onSignal(SignalAccepted, nil)
	return nil
}

func (b *LoopbackBridge) HangUp(context.Context) error { return nil }

// Drop simulates the far end disconnecting.
func (b *LoopbackBridge) Drop() {
	b.mu.Lock()
	onSignal := b.onSignal
	b.mu.Unlock()
	if onSignal != nil {
		onSignal(SignalDisconnected, nil)
	}
}

// LoopbackRecognizer forwards pushed text as final utterances. While paused
// it buffers instead of dropping, and flushes in order on resume, mirroring
// how a streaming recognizer holds segments during playback.
type LoopbackRecognizer struct {
	mu       sync.Mutex
	onUtter  func(Utterance)
	paused   bool
	buffered []Utterance
	stopped  bool
}

func (r *LoopbackRecognizer) Start(_ context.Context, onUtterance func(Utterance)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onUtter = onUtterance
	r.stopped = false
	return nil
}

// Push feeds one utterance into the stream.
func (r *LoopbackRecognizer) Push(text string) {
	r.mu.Lock()
	if r.stopped || r.onUtter == nil {
		r.mu.Unlock()
		return
	}
	u := Utterance{Text: text, Final: true}
	if r.paused {
		r.buffered = append(r.buffered, u)
		r.mu.Unlock()
		return
	}
	onUtter := r.onUtter
	r.mu.Unlock()
	onUtter(u)
}

func (r *LoopbackRecognizer) Pause() {
	r.mu.Lock()
	r.paused = true
	r.mu.Unlock()
}

func (r *LoopbackRecognizer) Resume() {
	r.mu.Lock()
	flush := r.buffered
	r.buffered = nil
	r.paused = false
	onUtter := r.onUtter
	stopped := r.stopped
	r.mu.Unlock()
	if stopped || onUtter == nil {
		return
	}
	for _, u := range flush {
		onUtter(u)
	}
}

func (r *LoopbackRecognizer) Stop() {
	r.mu.Lock()
	r.stopped = true
	r.buffered = nil
	r.mu.Unlock()
}

// LoopbackSynthesizer discards playback.
type LoopbackSynthesizer struct{}

func (LoopbackSynthesizer) Speak(context.Context, string) error { return nil }

// TemplateAssistant answers from canned templates keyed off the last
// utterance.
type TemplateAssistant struct{}

func (TemplateAssistant) Reply(_ context.Context, transcript []Utterance) (string, error) {
	if len(transcript) == 0 {
		return "How can I help you today?", nil
	}
	last := transcript[len(transcript)-1].Text
	return fmt.Sprintf("I understand you said: %q. Let me look into that.", last), nil
}

func (TemplateAssistant) Suggest(_ context.Context, customerID, window string) (SuggestionResult, error) {
	words := strings.Fields(window)
	if len(words) == 0 {
		return SuggestionResult{}, nil
	}
	tail := words
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	result := SuggestionResult{Text: fmt.Sprintf("Customer focus: %s", strings.Join(tail, " "))}
	if customerID != "" {
		result.SupportingMemories = []string{fmt.Sprintf("customer %s transcript window", customerID)}
	}
	return result, nil
}

// LoopbackProviders builds a fully simulated provider set.
func LoopbackProviders() Providers {
	return Providers{
		Permissions: LoopbackGate{},
		Recognizer:  &LoopbackRecognizer{},
		Synthesizer: LoopbackSynthesizer{},
		Bridge:      &LoopbackBridge{},
		Assistant:   TemplateAssistant{},
	}
}
