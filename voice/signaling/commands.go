package signaling

import "github.com/pkg/errors"

// ErrMissingForIdentify is returned when an Identify command is built
// without all of room, user, session and token set.
var ErrMissingForIdentify = errors.New("signaling: missing room_id, user_id, session_id or token for identify")

// IdentifyData is the opcode-0 payload that opens a session.
type IdentifyData struct {
	RoomID    string `json:"room_id"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
}

// NewIdentify validates and builds an IdentifyData.
func NewIdentify(roomID, userID, sessionID, token string) (IdentifyData, error) {
	if roomID == "" || userID == "" || sessionID == "" || token == "" {
		return IdentifyData{}, ErrMissingForIdentify
	}
	return IdentifyData{RoomID: roomID, UserID: userID, SessionID: sessionID, Token: token}, nil
}

// SelectProtocolData is the opcode-1 payload negotiating the AEAD mode
// and advertising where the client will receive media.
type SelectProtocolData struct {
	Protocol string                   `json:"protocol"`
	Data     SelectProtocolInnerData `json:"data"`
}

// SelectProtocolInnerData is the nested "data" object of SelectProtocol.
type SelectProtocolInnerData struct {
	Address string `json:"address"`
	Port    uint16 `json:"port"`
	Mode    string `json:"mode"`
}

// HeartbeatData is the opcode-3 payload; Nonce should be unique per
// beat so the matching HeartbeatAck can be correlated if the transport
// ever needs to.
type HeartbeatData struct {
	Nonce int64 `json:"nonce"`
}

// SpeakingFlag is a bitmask of why a participant is producing audio.
type SpeakingFlag uint32

const (
	Microphone SpeakingFlag = 1 << iota
	Soundshare
	Priority
)

// SpeakingData is the opcode-5 payload announcing a speaking-state
// transition for the local participant's ssrc.
type SpeakingData struct {
	Speaking SpeakingFlag `json:"speaking"`
	Delay    int          `json:"delay"`
	SSRC     uint32       `json:"ssrc"`
}

// ClientDisconnectData is the opcode-13 payload sent when the local
// participant leaves intentionally.
type ClientDisconnectData struct{}
