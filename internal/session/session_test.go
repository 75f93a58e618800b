package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

type recordedLine struct {
	kind    domain.SenderKind
	content string
}

type memTranscript struct {
	mu    sync.Mutex
	lines []recordedLine
}

func (m *memTranscript) AppendMessage(_ context.Context, _ string, senderKind domain.SenderKind, _ *string, content string) (*domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = append(m.lines, recordedLine{kind: senderKind, content: content})
	return &domain.Message{ID: fmt.Sprintf("msg-%d", len(m.lines)), SenderKind: senderKind, Content: content}, nil
}

func (m *memTranscript) all() []recordedLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]recordedLine, len(m.lines))
	copy(out, m.lines)
	return out
}

type scriptedAssistant struct {
	mu      sync.Mutex
	replies int
}

func (a *scriptedAssistant) Reply(_ context.Context, transcript []Utterance) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.replies++
	return fmt.Sprintf("reply-%d to %q", a.replies, transcript[len(transcript)-1].Text), nil
}

func (a *scriptedAssistant) Suggest(context.Context, string, string) (SuggestionResult, error) {
	return SuggestionResult{}, nil
}

// countingGate refuses the first n media requests, then grants.
type countingGate struct {
	mu      sync.Mutex
	denials int
	calls   int
}

func (g *countingGate) RequestMedia(context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.calls <= g.denials {
		return errors.New("user refused microphone")
	}
	return nil
}

// gatedSynthesizer blocks playback until released or the session context is
// cancelled.
type gatedSynthesizer struct {
	entered chan struct{}
	release chan struct{}
}

func newGatedSynthesizer() *gatedSynthesizer {
	return &gatedSynthesizer{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (g *gatedSynthesizer) Speak(ctx context.Context, _ string) error {
	g.entered <- struct{}{}
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type silentBridge struct{}

func (silentBridge) Dial(context.Context, func(Signal, error)) error { return nil }
func (silentBridge) HangUp(context.Context) error                    { return nil }

func endTracker() (Hooks, chan EndReason) {
	ended := make(chan EndReason, 1)
	return Hooks{OnEnded: func(_ string, reason EndReason) { ended <- reason }}, ended
}

func waitEnded(t *testing.T, ended chan EndReason, want EndReason) {
	t.Helper()
	select {
	case got := <-ended:
		if got != want {
			t.Fatalf("end reason = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end in time")
	}
}

func waitState(t *testing.T, sess *Session, want State) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if sess.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("state = %q, want %q", sess.State(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestChatSessionActivatesImmediately(t *testing.T) {
	providers := LoopbackProviders()
	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentAI, nil,
		providers, &memTranscript{}, nil, Hooks{}, Config{}, nil)
	sess.Start()
	defer sess.HangUp()

	waitState(t, sess, StateActive)
}

func TestAIRepliesStayInUtteranceOrder(t *testing.T) {
	assistant := &scriptedAssistant{}
	providers := LoopbackProviders()
	providers.Assistant = assistant
	transcript := &memTranscript{}
	hooks, ended := endTracker()

	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentAI, nil,
		providers, transcript, nil, hooks, Config{}, nil)
	sess.Start()
	waitState(t, sess, StateActive)

	// Burst of utterances faster than the assistant responds. The event queue
	// must serialize them: each customer line followed by its reply.
	for i := 1; i <= 3; i++ {
		sess.Inject(fmt.Sprintf("question %d", i), true)
	}

	deadline := time.After(2 * time.Second)
	for len(transcript.all()) < 6 {
		select {
		case <-deadline:
			t.Fatalf("transcript stalled at %+v", transcript.all())
		case <-time.After(5 * time.Millisecond):
		}
	}

	sess.HangUp()
	waitEnded(t, ended, EndReasonHangUp)

	lines := transcript.all()
	want := []recordedLine{
		{domain.SenderCustomer, "question 1"},
		{domain.SenderAI, `reply-1 to "question 1"`},
		{domain.SenderCustomer, "question 2"},
		{domain.SenderAI, `reply-2 to "question 2"`},
		{domain.SenderCustomer, "question 3"},
		{domain.SenderAI, `reply-3 to "question 3"`},
	}
	if len(lines) != len(want) {
		t.Fatalf("transcript length = %d, want %d: %+v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, lines[i], want[i])
		}
	}
}

func TestHangUpIsIdempotent(t *testing.T) {
	hooks, ended := endTracker()
	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentAI, nil,
		LoopbackProviders(), &memTranscript{}, nil, hooks, Config{}, nil)
	sess.Start()
	waitState(t, sess, StateActive)

	sess.HangUp()
	sess.HangUp()
	sess.HangUp()

	waitEnded(t, ended, EndReasonHangUp)
	if sess.State() != StateEnded {
		t.Errorf("state = %q, want ended", sess.State())
	}

	// One teardown, one end notification.
	select {
	case reason := <-ended:
		t.Fatalf("second end notification: %q", reason)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestVoicePermissionDeniedReturnsToIdle(t *testing.T) {
	gate := &countingGate{denials: 1}
	providers := LoopbackProviders()
	providers.Permissions = gate

	sess := NewSession("s1", "t1", domain.ChannelCall, domain.AgentAI, nil,
		providers, &memTranscript{}, nil, Hooks{}, Config{}, nil)
	sess.Start()
	defer sess.HangUp()

	// The refusal surfaces as an error and the session parks in idle instead
	// of ending.
	deadline := time.After(2 * time.Second)
	for sess.Err() == nil {
		select {
		case <-deadline:
			t.Fatal("no error surfaced after refused permission")
		case <-time.After(5 * time.Millisecond):
		}
	}
	waitState(t, sess, StateIdle)
	if code := apperrors.CodeOf(sess.Err()); code != "PERMISSION_DENIED" {
		t.Fatalf("error code = %q, want PERMISSION_DENIED", code)
	}

	// Once the customer grants access a redial connects normally.
	sess.Redial()
	waitState(t, sess, StateActive)
	if sess.Err() != nil {
		t.Errorf("stale error after successful redial: %v", sess.Err())
	}
}

func TestInterimUtterancesAreNotPersisted(t *testing.T) {
	providers := LoopbackProviders()
	transcript := &memTranscript{}
	repID := "rep-1"

	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentHuman, &repID,
		providers, transcript, nil, Hooks{}, Config{}, nil)
	sess.Start()
	defer sess.HangUp()
	waitState(t, sess, StateActive)

	// A streaming recognizer revises the same utterance several times before
	// finalizing it; only the final form may reach the transcript.
	sess.Inject("my invoice", false)
	sess.Inject("my invoice looks", false)
	sess.Inject("my invoice looks wrong", true)

	deadline := time.After(2 * time.Second)
	for len(transcript.all()) == 0 {
		select {
		case <-deadline:
			t.Fatal("final utterance never persisted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	time.Sleep(20 * time.Millisecond)

	lines := transcript.all()
	if len(lines) != 1 {
		t.Fatalf("persisted lines = %+v, want exactly the finalized utterance", lines)
	}
	if lines[0] != (recordedLine{domain.SenderCustomer, "my invoice looks wrong"}) {
		t.Errorf("persisted line = %+v", lines[0])
	}
}

func TestHangUpInterruptsBlockedSpeech(t *testing.T) {
	synth := newGatedSynthesizer()
	providers := LoopbackProviders()
	providers.Synthesizer = synth
	hooks, ended := endTracker()

	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentAI, nil,
		providers, &memTranscript{}, nil, hooks, Config{EventBuffer: 1}, nil)
	sess.Start()
	waitState(t, sess, StateActive)

	// Block the run loop inside playback, then saturate the event queue.
	sess.Inject("please hold while I read my account number", true)
	select {
	case <-synth.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("synthesizer never entered playback")
	}
	for i := 0; i < 5; i++ {
		sess.Inject(fmt.Sprintf("overflow %d", i), true)
	}

	// Hang-up must still land: it cancels the in-flight Speak and ends the
	// session even though the queue is full.
	sess.HangUp()
	waitEnded(t, ended, EndReasonHangUp)
	if sess.State() != StateEnded {
		t.Errorf("state = %q, want ended", sess.State())
	}
}

func TestVoiceConnectTimeout(t *testing.T) {
	providers := LoopbackProviders()
	providers.Bridge = silentBridge{}
	hooks, ended := endTracker()

	sess := NewSession("s1", "t1", domain.ChannelCall, domain.AgentAI, nil,
		providers, &memTranscript{}, nil, hooks, Config{ConnectTimeout: 30 * time.Millisecond}, nil)
	sess.Start()

	waitEnded(t, ended, EndReasonConnectTimeout)
}

func TestDisconnectReturnsToIdleAndRedialRecovers(t *testing.T) {
	providers := LoopbackProviders()
	bridge := &LoopbackBridge{}
	providers.Bridge = bridge

	sess := NewSession("s1", "t1", domain.ChannelCall, domain.AgentAI, nil,
		providers, &memTranscript{}, nil, Hooks{}, Config{}, nil)
	sess.Start()
	defer sess.HangUp()
	waitState(t, sess, StateActive)

	bridge.Drop()
	waitState(t, sess, StateIdle)

	sess.Redial()
	waitState(t, sess, StateActive)
}

func TestHumanAgentFeedsSuggestionFeeder(t *testing.T) {
	providers := LoopbackProviders()
	transcript := &memTranscript{}
	served := make(chan Suggestion, 1)
	feeder := NewSuggestionFeeder("s1", "cust-1", providers.Assistant, FeederConfig{
		Debounce:    10 * time.Millisecond,
		MinNewWords: 3,
	}, func(s Suggestion) { served <- s }, nil)

	repID := "rep-1"
	sess := NewSession("s1", "t1", domain.ChannelChat, domain.AgentHuman, &repID,
		providers, transcript, feeder, Hooks{}, Config{}, nil)
	sess.Start()
	defer sess.HangUp()
	waitState(t, sess, StateActive)

	sess.Inject("my invoice total looks wrong this month", true)

	select {
	case suggestion := <-served:
		if suggestion.Text == "" {
			t.Error("empty suggestion served")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no suggestion served")
	}

	// Human-agent sessions never get AI replies in the transcript.
	for _, line := range transcript.all() {
		if line.kind == domain.SenderAI {
			t.Fatalf("unexpected AI transcript line: %+v", line)
		}
	}
}
