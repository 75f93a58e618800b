package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-orchestrator/internal/domain"
	apperrors "github.com/spec-kit/support-orchestrator/pkg/util"
)

// TranscriptAppender persists transcript lines for the session's ticket.
type TranscriptAppender interface {
	AppendMessage(ctx context.Context, ticketID string, senderKind domain.SenderKind, senderID *string, content string) (*domain.Message, error)
}

// EndReason explains why a session finished.
type EndReason string

const (
	EndReasonHangUp         EndReason = "hang_up"
	EndReasonConnectTimeout EndReason = "connect_timeout"
	EndReasonProviderError  EndReason = "provider_error"
)

// Hooks receives lifecycle notifications from the run loop.
type Hooks struct {
	OnStateChange func(sessionID string, state State)
	OnEnded       func(sessionID string, reason EndReason)
}

// Config carries per-session tunables.
type Config struct {
	ConnectTimeout time.Duration
	EventBuffer    int
}

// Session is one live support interaction on a ticket. All mutable state is
// owned by the run goroutine; callers interact only by enqueueing events, so
// HangUp, provider callbacks and transcript chunks can never interleave.
type Session struct {
	ID        string
	TicketID  string
	Channel   domain.Channel
	AgentKind domain.AgentKind
	RepID     *string

	providers  Providers
	transcript TranscriptAppender
	feeder     *SuggestionFeeder
	hooks      Hooks
	logger     *zap.Logger

	connectTimeout time.Duration

	events chan event
	hangup chan struct{}
	done   chan struct{}

	startOnce  sync.Once
	hangupOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	state   State
	lastErr error

	// run-goroutine only
	history []Utterance
}

// NewSession builds a session in the idle state. Nothing runs until Start.
func NewSession(id, ticketID string, channel domain.Channel, agentKind domain.AgentKind, repID *string,
	providers Providers, transcript TranscriptAppender, feeder *SuggestionFeeder, hooks Hooks,
	cfg Config, logger *zap.Logger) *Session {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 30 * time.Second
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:             id,
		TicketID:       ticketID,
		Channel:        channel,
		AgentKind:      agentKind,
		RepID:          repID,
		providers:      providers,
		transcript:     transcript,
		feeder:         feeder,
		hooks:          hooks,
		logger:         logger.With(zap.String("session_id", id), zap.String("ticket_id", ticketID)),
		connectTimeout: cfg.ConnectTimeout,
		events:         make(chan event, cfg.EventBuffer),
		hangup:         make(chan struct{}),
		done:           make(chan struct{}),
		ctx:            ctx,
		cancel:         cancel,
		state:          StateIdle,
	}
}

// State reports the current lifecycle phase.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Err reports the most recent connection failure, e.g. a refused media
// permission. Cleared on the next dial attempt.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// Done is closed when the run loop has fully torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Start launches the run loop and begins connecting. Subsequent calls are
// no-ops.
func (s *Session) Start() {
	s.startOnce.Do(func() {
		go s.run()
		s.enqueue(event{kind: eventDial})
	})
}

// Redial asks an idle session to reconnect after the far end dropped.
func (s *Session) Redial() {
	s.enqueue(event{kind: eventDial})
}

// HangUp ends the session. Safe to call any number of times, from any
// goroutine, in any state. Delivery does not go through the event queue, so a
// backlogged session still tears down: closing the hangup channel makes the
// run loop exit on its next pass, and cancelling the session context unwinds
// any provider call it is blocked in.
func (s *Session) HangUp() {
	s.hangupOnce.Do(func() {
		close(s.hangup)
		s.cancel()
	})
}

// Inject delivers a customer utterance that arrived outside the audio
// pipeline, e.g. typed chat text. It takes the same path as recognized
// speech, so ordering and AI-reply handling are identical.
func (s *Session) Inject(text string, final bool) {
	s.enqueue(event{kind: eventTranscriptChunk, utterance: Utterance{Text: text, Final: final}})
}

// Suggestions returns the retained advisory hints for human-agent sessions.
func (s *Session) Suggestions() []Suggestion {
	if s.feeder == nil {
		return []Suggestion{}
	}
	return s.feeder.List()
}

// DismissSuggestion drops one hint; unknown ids are ignored.
func (s *Session) DismissSuggestion(id string) {
	if s.feeder != nil {
		s.feeder.Dismiss(id)
	}
}

func (s *Session) enqueue(ev event) {
	select {
	case <-s.done:
	case s.events <- ev:
	default:
		s.logger.Warn("session event queue full, dropping", zap.String("event", ev.kind.String()))
	}
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.hooks.OnStateChange != nil {
		s.hooks.OnStateChange(s.ID, state)
	}
}

// run is the only goroutine that touches session state.
func (s *Session) run() {
	connectTimer := time.NewTimer(s.connectTimeout)
	if !connectTimer.Stop() {
		<-connectTimer.C
	}

	var ended bool
	var reason EndReason

	for !ended {
		// Hang-up wins over any backlog of queued events.
		select {
		case <-s.hangup:
			reason, ended = EndReasonHangUp, true
			continue
		default:
		}

		select {
		case <-s.hangup:
			reason, ended = EndReasonHangUp, true

		case ev := <-s.events:
			switch ev.kind {
			case eventDial:
				if s.State() != StateIdle {
					continue
				}
				if err := s.connect(); err != nil {
					// Denied permission is retryable: stay alive and wait for
					// a redial once the customer grants access.
					s.setState(StateIdle)
					continue
				}
				connectTimer.Reset(s.connectTimeout)

			case eventRinging:
				if s.State() == StateConnecting {
					s.setState(StateRinging)
				}

			case eventAccepted:
				if state := s.State(); state != StateConnecting && state != StateRinging {
					continue
				}
				stopTimer(connectTimer)
				s.activate()

			case eventDisconnected:
				// The far end dropped; hold the session open for a redial.
				stopTimer(connectTimer)
				if s.State() == StateActive {
					s.providers.Recognizer.Stop()
				}
				s.setState(StateIdle)

			case eventProviderError:
				s.logger.Error("provider failure", zap.Error(ev.err))
				reason, ended = EndReasonProviderError, true

			case eventTranscriptChunk:
				if s.State() == StateActive {
					s.handleUtterance(ev.utterance)
				}
			}

		case <-connectTimer.C:
			if state := s.State(); state == StateConnecting || state == StateRinging {
				s.logger.Warn("connect timeout", zap.Duration("timeout", s.connectTimeout))
				reason, ended = EndReasonConnectTimeout, true
			}
		}
	}

	s.teardown(reason)
}

// connect runs the permission gate and dials the call leg. Chat sessions have
// no media to capture and go active immediately. A refused permission returns
// an error; the caller parks the session back in idle.
func (s *Session) connect() error {
	s.setErr(nil)

	if s.Channel != domain.ChannelCall {
		s.setState(StateConnecting)
		s.activate()
		return nil
	}

	s.setState(StateRequestingPermission)
	if s.providers.Permissions != nil {
		if err := s.providers.Permissions.RequestMedia(s.ctx); err != nil {
			s.logger.Warn("media permission refused", zap.Error(err))
			s.setErr(apperrors.NewPermissionDenied("media permission refused"))
			return err
		}
	}

	s.setState(StateConnecting)
	if err := s.providers.Bridge.Dial(s.ctx, s.onSignal); err != nil {
		s.logger.Error("dial failed", zap.Error(err))
		s.enqueue(event{kind: eventProviderError, err: err})
	}
	return nil
}

func (s *Session) onSignal(signal Signal, err error) {
	switch signal {
	case SignalRinging:
		s.enqueue(event{kind: eventRinging})
	case SignalAccepted:
		s.enqueue(event{kind: eventAccepted})
	case SignalDisconnected:
		s.enqueue(event{kind: eventDisconnected})
	case SignalFailed:
		s.enqueue(event{kind: eventProviderError, err: err})
	}
}

func (s *Session) activate() {
	s.setState(StateActive)
	if err := s.providers.Recognizer.Start(s.ctx, func(u Utterance) {
		s.enqueue(event{kind: eventTranscriptChunk, utterance: u})
	}); err != nil {
		s.enqueue(event{kind: eventProviderError, err: err})
	}
}

// handleUtterance persists the customer line and, for AI-served sessions,
// produces and speaks the reply before recognition resumes. Handling the
// whole exchange inline keeps transcript order matching speech order: queued
// chunks wait in the event buffer until the reply is done.
func (s *Session) handleUtterance(u Utterance) {
	// Interim recognizer chunks are progress updates for the same utterance;
	// only the finalized form is durable.
	if u.Text == "" || !u.Final {
		return
	}
	s.history = append(s.history, u)

	if _, err := s.transcript.AppendMessage(s.ctx, s.TicketID, domain.SenderCustomer, nil, u.Text); err != nil {
		s.logger.Warn("transcript append failed", zap.Error(err))
	}

	switch s.AgentKind {
	case domain.AgentAI:
		s.respond()
	case domain.AgentHuman:
		if s.feeder != nil {
			s.feeder.Observe(u.Text)
		}
	}
}

func (s *Session) respond() {
	s.providers.Recognizer.Pause()
	defer s.providers.Recognizer.Resume()

	reply, err := s.providers.Assistant.Reply(s.ctx, s.history)
	if err != nil {
		s.logger.Warn("assistant reply failed", zap.Error(err))
		return
	}
	if reply == "" {
		return
	}

	if _, err := s.transcript.AppendMessage(s.ctx, s.TicketID, domain.SenderAI, nil, reply); err != nil {
		s.logger.Warn("transcript append failed", zap.Error(err))
	}

	if s.providers.Synthesizer != nil {
		if err := s.providers.Synthesizer.Speak(s.ctx, reply); err != nil {
			s.logger.Warn("speech playback failed", zap.Error(err))
		}
	}
}

func (s *Session) teardown(reason EndReason) {
	s.cancel()
	s.providers.Recognizer.Stop()
	if s.Channel == domain.ChannelCall && s.providers.Bridge != nil {
		// The session context is cancelled by now; give the bridge its own
		// deadline to release the call leg.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.providers.Bridge.HangUp(ctx); err != nil {
			s.logger.Debug("bridge hangup failed", zap.Error(err))
		}
	}
	if s.feeder != nil {
		s.feeder.Close()
	}
	s.setState(StateEnded)
	close(s.done)
	if s.hooks.OnEnded != nil {
		s.hooks.OnEnded(s.ID, reason)
	}
}

func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
