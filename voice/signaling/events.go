package signaling

// ReadyData is the opcode-2 payload handing the client its media
// identity and the SFU's media endpoint.
type ReadyData struct {
	SSRC             uint32   `json:"ssrc"`
	IP               string   `json:"ip"`
	Port             uint16   `json:"port"`
	Modes            []string `json:"modes"`
	HeartbeatInterval int64   `json:"heartbeat_interval"`
}

// SessionDescribeData is the opcode-4 payload carrying the negotiated
// AEAD mode, the base64-encoded secret key and the audio codec in use.
type SessionDescribeData struct {
	Mode       string `json:"mode"`
	SecretKey  string `json:"secret_key"`
	AudioCodec string `json:"audio_codec"`
}

// HeartbeatAckData is the opcode-6 payload; it carries no fields.
type HeartbeatAckData struct{}

// UserJoinData is the opcode-7 payload announcing a new remote
// participant and the ssrc their media will arrive on.
type UserJoinData struct {
	UserID string `json:"user_id"`
	SSRC   uint32 `json:"ssrc"`
}

// UserLeaveData is the opcode-8 payload announcing a participant has
// left the room.
type UserLeaveData struct {
	UserID string `json:"user_id"`
}

// UserSpeakingData is the opcode-9 payload relaying another
// participant's speaking-state transition.
type UserSpeakingData struct {
	UserID   string       `json:"user_id"`
	SSRC     uint32       `json:"ssrc"`
	Speaking SpeakingFlag `json:"speaking"`
}

// ResumedData is the opcode-11 payload; reserved, currently empty.
type ResumedData struct{}
