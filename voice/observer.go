package voice

// ConnectionState is the VoiceSession's top-level state.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
	Reconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Observer is the one surface a surrounding application uses to learn
// about a VoiceSession's lifecycle and room membership. It replaces a
// bag of independent callbacks with a single implementation so state
// and event handling live in one place; any method may be left as a
// no-op by embedding NopObserver.
type Observer interface {
	// OnStateChange fires on every connection_state transition.
	OnStateChange(state ConnectionState)
	// OnConnected fires once SessionDescribe completes a (re)connect.
	OnConnected()
	// OnDisconnected fires once, when the session gives up for good:
	// either an explicit disconnect() or reconnect attempts exhausted.
	OnDisconnected(err error)
	// OnReconnecting fires on entering Reconnecting, reporting which
	// attempt is about to run and the configured ceiling.
	OnReconnecting(attempt, maxAttempts int)
	// OnUserJoined and OnUserLeft fire on SFU Join/Leave events.
	OnUserJoined(participant Participant)
	OnUserLeft(participant Participant)
	// OnUserSpeaking fires whenever a remote participant's speaking
	// flags change.
	OnUserSpeaking(participant Participant)
	// OnError fires for non-fatal errors worth surfacing to the UI
	// (auth failure, repeated decrypt failure) without itself driving
	// a state transition.
	OnError(err error)
	// OnMuted fires whenever SetMuted changes the local mute state, so
	// a surrounding application can reflect it without polling IsMuted.
	OnMuted(muted bool)
}

// NopObserver implements Observer with no-ops; embed it to implement
// only the callbacks you care about.
type NopObserver struct{}

func (NopObserver) OnStateChange(ConnectionState)        {}
func (NopObserver) OnConnected()                         {}
func (NopObserver) OnDisconnected(error)                 {}
func (NopObserver) OnReconnecting(attempt, max int)      {}
func (NopObserver) OnUserJoined(Participant)             {}
func (NopObserver) OnUserLeft(Participant)               {}
func (NopObserver) OnUserSpeaking(Participant)           {}
func (NopObserver) OnError(error)                        {}
func (NopObserver) OnMuted(bool)                         {}

var _ Observer = NopObserver{}
