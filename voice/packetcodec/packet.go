// Package packetcodec builds and parses the RTP-framed, AEAD-sealed
// binary frames carried on the signaling channel once a session is
// connected: a 12-byte RTP header followed by XSalsa20-Poly1305
// ciphertext, the nonce being the header padded to 24 bytes.
package packetcodec

import (
	"encoding/binary"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

// HeaderSize is the length of the RTP header this codec produces.
const HeaderSize = 12

// ErrDecryptionFailed is returned by Open when the ciphertext doesn't
// authenticate against the session's secret key.
var ErrDecryptionFailed = errors.New("packetcodec: decryption failed")

// ErrShortPacket is returned when a received packet is too small to
// contain even an RTP header.
var ErrShortPacket = errors.New("packetcodec: packet shorter than RTP header")

// Header is the 12-byte RTP header this client writes: version 2,
// no padding/extension/CSRC, payload type 0x78, and the fields every
// outgoing frame needs filled in.
type Header struct {
	Sequence  uint16
	Timestamp uint32
	SSRC      uint32
}

// Encode writes h into the first HeaderSize bytes of dst, which must be
// at least HeaderSize long.
func (h Header) Encode(dst []byte) {
	dst[0] = 0x80 // version 2, no padding/extension/CSRC
	dst[1] = 0x78 // payload type
	binary.BigEndian.PutUint16(dst[2:4], h.Sequence)
	binary.BigEndian.PutUint32(dst[4:8], h.Timestamp)
	binary.BigEndian.PutUint32(dst[8:12], h.SSRC)
}

// ParseHeader reads an RTP header out of the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrShortPacket
	}
	return Header{
		Sequence:  binary.BigEndian.Uint16(b[2:4]),
		Timestamp: binary.BigEndian.Uint32(b[4:8]),
		SSRC:      binary.BigEndian.Uint32(b[8:12]),
	}, nil
}

// Sender seals outgoing Opus frames for one local SSRC, advancing the
// sequence number and timestamp on every call. It is not safe for
// concurrent use.
type Sender struct {
	ssrc      uint32
	sequence  uint16
	timestamp uint32
	timeIncr  uint32
	secret    [32]byte

	headerBuf [HeaderSize]byte
	nonce     [24]byte
}

// NewSender builds a Sender for ssrc using secret as the AEAD key.
// timeIncr is the number of samples each frame advances the RTP
// timestamp by (960 for 20 ms at 48 kHz).
func NewSender(ssrc uint32, secret [32]byte, timeIncr uint32) *Sender {
	return &Sender{ssrc: ssrc, secret: secret, timeIncr: timeIncr}
}

// Seal encrypts payload (an Opus frame) and returns a ready-to-send
// packet: header followed by ciphertext+tag. The returned slice is
// freshly allocated on every call and does not share memory with the
// Sender.
func (s *Sender) Seal(payload []byte) []byte {
	h := Header{Sequence: s.sequence, Timestamp: s.timestamp, SSRC: s.ssrc}
	h.Encode(s.headerBuf[:])

	s.sequence++
	s.timestamp += s.timeIncr

	copy(s.nonce[:HeaderSize], s.headerBuf[:])

	return secretbox.Seal(s.headerBuf[:HeaderSize], payload, &s.nonce, &s.secret)
}

// Receiver opens incoming sealed RTP frames, regardless of sender,
// using a single shared secret key (the session-wide AEAD key supplied
// in SessionDescribe). It is not safe for concurrent use.
type Receiver struct {
	secret [32]byte
	nonce  [24]byte
}

// NewReceiver builds a Receiver keyed on secret.
func NewReceiver(secret [32]byte) *Receiver {
	return &Receiver{secret: secret}
}

// Open parses the RTP header out of b and decrypts the remainder into
// dst's backing array (dst may be nil or zero-length; its capacity is
// reused). It returns the header and the decrypted Opus payload.
func (r *Receiver) Open(b []byte, dst []byte) (Header, []byte, error) {
	header, err := ParseHeader(b)
	if err != nil {
		return Header{}, nil, err
	}

	copy(r.nonce[:HeaderSize], b[:HeaderSize])

	opened, ok := secretbox.Open(dst[:0], b[HeaderSize:], &r.nonce, &r.secret)
	if !ok {
		return Header{}, nil, ErrDecryptionFailed
	}

	return header, stripRTPExtension(header, b, opened), nil
}

// stripRTPExtension drops an RTP header extension if present (its
// 4-byte header plus extLen further 32-bit words),
// mirroring the extension/marker-bit handling real SFU peers rely on.
func stripRTPExtension(h Header, raw []byte, opus []byte) []byte {
	versionFlags := raw[0]
	payloadType := raw[1]

	isExtension := versionFlags&0x10 == 0x10
	isMarker := payloadType&0x80 != 0

	if !isExtension || isMarker || len(opus) < 4 {
		return opus
	}

	extLen := binary.BigEndian.Uint16(opus[2:4])
	shift := 4 + 4*int(extLen)
	if len(opus) > shift {
		return opus[shift:]
	}
	return opus
}

// SeqDiff returns the signed wrap-aware distance a-b between two
// 16-bit sequence numbers, in [-32768, 32767].
func SeqDiff(a, b uint16) int32 {
	return int32(int16(a - b))
}
