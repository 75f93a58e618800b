package session

// State is the lifecycle phase of one live session.
type State string

const (
	StateIdle                 State = "idle"
	StateRequestingPermission State = "requesting_permission"
	StateConnecting           State = "connecting"
	StateRinging              State = "ringing"
	StateActive               State = "active"
	StateEnded                State = "ended"
)

// eventKind enumerates everything the run loop reacts to. All state changes
// flow through the event queue so exactly one goroutine ever touches session
// state. Hang-up is not an event: it travels on a dedicated channel so a full
// queue can never swallow it.
type eventKind int

const (
	eventDial eventKind = iota
	eventRinging
	eventAccepted
	eventDisconnected
	eventProviderError
	eventTranscriptChunk
)

func (k eventKind) String() string {
	switch k {
	case eventDial:
		return "dial"
	case eventRinging:
		return "ringing"
	case eventAccepted:
		return "accepted"
	case eventDisconnected:
		return "disconnected"
	case eventProviderError:
		return "provider_error"
	case eventTranscriptChunk:
		return "transcript_chunk"
	default:
		return "unknown"
	}
}

type event struct {
	kind      eventKind
	utterance Utterance
	err       error
}
