package signaling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	identify, err := NewIdentify("room-1", "user-1", "session-1", "tok")
	require.NoError(t, err)

	b, err := Marshal(IdentifyOP, identify)
	require.NoError(t, err)

	var got IdentifyData
	op, err := Unmarshal(b, &got)
	require.NoError(t, err)

	assert.Equal(t, IdentifyOP, op)
	assert.Equal(t, identify, got)
}

func TestMarshalWithNoPayload(t *testing.T) {
	b, err := Marshal(ClientDisconnectOP, nil)
	require.NoError(t, err)

	op, err := Unmarshal(b, nil)
	require.NoError(t, err)
	assert.Equal(t, ClientDisconnectOP, op)
}

func TestUnmarshalOpcodeOnly(t *testing.T) {
	b, err := Marshal(ReadyOP, ReadyData{SSRC: 99})
	require.NoError(t, err)

	// Peeking the opcode without a payload target must not error even
	// though Data is non-empty.
	op, err := Unmarshal(b, nil)
	require.NoError(t, err)
	assert.Equal(t, ReadyOP, op)
}

func TestOPCodeString(t *testing.T) {
	assert.Equal(t, "Identify", IdentifyOP.String())
	assert.Equal(t, "Unknown", OPCode(99).String())
}

func TestNewIdentifyValidation(t *testing.T) {
	_, err := NewIdentify("", "user", "session", "tok")
	assert.ErrorIs(t, err, ErrMissingForIdentify)

	got, err := NewIdentify("room", "user", "session", "tok")
	require.NoError(t, err)
	assert.Equal(t, "room", got.RoomID)
}
