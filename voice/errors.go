package voice

import "github.com/pkg/errors"

// Protocol is the AEAD mode identifier this client negotiates.
const Protocol = "xsalsa20_poly1305"

var (
	// ErrAlreadyConnecting is returned by Connect while another Connect
	// call is still in flight. An automatic reconnect in progress does
	// not cause it.
	ErrAlreadyConnecting = errors.New("voice: already connecting")

	// ErrNotConnected is returned by operations that require an active
	// session (StartSpeaking, StopSpeaking) before any transport exists.
	ErrNotConnected = errors.New("voice: not connected")

	// ErrAlreadySpeaking and ErrNotSpeaking guard the speaking toggle
	// against redundant calls; the session logs and no-ops instead of
	// erroring on these, matching the programmer-error handling in the
	// concurrency design.
	ErrAlreadySpeaking = errors.New("voice: already speaking")
	ErrNotSpeaking     = errors.New("voice: not speaking")

	// ErrNoSessionKeys is returned by PushCapture when an encrypted send
	// is attempted before SessionDescribe has supplied keys.
	ErrNoSessionKeys = errors.New("voice: no session keys")

	// ErrMuted is returned by StartSpeaking while SetMuted(true) is in
	// effect; callers must unmute before capturing again.
	ErrMuted = errors.New("voice: muted")
)
