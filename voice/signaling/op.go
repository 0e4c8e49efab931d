// Package signaling defines the opcode-tagged JSON messages exchanged
// over the duplex signaling channel, and the envelope they travel in.
package signaling

import (
	"encoding/json"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// OPCode identifies the kind of payload carried by an Envelope.
type OPCode int

const (
	IdentifyOP         OPCode = 0
	SelectProtocolOP   OPCode = 1
	ReadyOP            OPCode = 2
	HeartbeatOP        OPCode = 3
	SessionDescribeOP  OPCode = 4
	SpeakingOP         OPCode = 5
	HeartbeatAckOP     OPCode = 6
	UserJoinOP         OPCode = 7
	UserLeaveOP        OPCode = 8
	UserSpeakingOP     OPCode = 9
	ResumedOP          OPCode = 11
	ClientDisconnectOP OPCode = 13
)

func (op OPCode) String() string {
	switch op {
	case IdentifyOP:
		return "Identify"
	case SelectProtocolOP:
		return "SelectProtocol"
	case ReadyOP:
		return "Ready"
	case HeartbeatOP:
		return "Heartbeat"
	case SessionDescribeOP:
		return "SessionDescribe"
	case SpeakingOP:
		return "Speaking"
	case HeartbeatAckOP:
		return "HeartbeatAck"
	case UserJoinOP:
		return "UserJoin"
	case UserLeaveOP:
		return "UserLeave"
	case UserSpeakingOP:
		return "UserSpeaking"
	case ResumedOP:
		return "Resumed"
	case ClientDisconnectOP:
		return "ClientDisconnect"
	default:
		return "Unknown"
	}
}

// Envelope is the opcode-tagged frame every JSON text message is sent
// and received as. Data is left as raw JSON until the opcode tells the
// caller which concrete type to decode it into.
type Envelope struct {
	Op   OPCode          `json:"op"`
	Data json.RawMessage `json:"d,omitempty"`
}

// Marshal encodes op and v into a JSON envelope ready to send as a text
// frame.
func Marshal(op OPCode, v interface{}) ([]byte, error) {
	var raw json.RawMessage
	if v != nil {
		b, err := sonic.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode payload")
		}
		raw = json.RawMessage(b)
	}

	b, err := sonic.Marshal(Envelope{Op: op, Data: raw})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode envelope")
	}
	return b, nil
}

// Unmarshal decodes an envelope and, if v is non-nil, decodes its data
// field into v.
func Unmarshal(b []byte, v interface{}) (OPCode, error) {
	var env Envelope
	if err := sonic.Unmarshal(b, &env); err != nil {
		return 0, errors.Wrap(err, "failed to decode envelope")
	}

	if v != nil && len(env.Data) > 0 {
		if err := sonic.Unmarshal(env.Data, v); err != nil {
			return env.Op, errors.Wrap(err, "failed to decode payload")
		}
	}

	return env.Op, nil
}
