package voice

// The event types below are dispatched through a VoiceSession's
// embedded handler, mirroring its Observer calls one for one. Observer
// is the interface most integrations implement; AddHandler exists
// alongside it for callers that want to subscribe to only one or two
// event types without writing a full Observer.

// StateChangeEvent fires on every connection state transition.
type StateChangeEvent struct {
	State ConnectionState
}

// ConnectedEvent fires once a (re)connect completes.
type ConnectedEvent struct{}

// DisconnectedEvent fires when the session gives up for good.
type DisconnectedEvent struct {
	Err error
}

// ReconnectingEvent fires on entering Reconnecting.
type ReconnectingEvent struct {
	Attempt     int
	MaxAttempts int
}

// UserJoinEvent fires when a remote participant joins the room.
type UserJoinEvent struct {
	Participant Participant
}

// UserLeaveEvent fires when a remote participant leaves the room.
type UserLeaveEvent struct {
	Participant Participant
}

// UserSpeakingEvent fires when a remote participant's speaking flags change.
type UserSpeakingEvent struct {
	Participant Participant
}

// ErrorEvent fires for non-fatal errors worth surfacing without a state
// transition.
type ErrorEvent struct {
	Err error
}

// MutedEvent fires whenever SetMuted changes the local mute state.
type MutedEvent struct {
	Muted bool
}
