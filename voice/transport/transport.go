// Package transport carries the single ordered, binary-capable duplex
// channel a voice session speaks over: JSON signaling envelopes as text
// frames, sealed RTP packets as binary frames.
package transport

import "context"

// Transport is the duplex channel a VoiceSession drives. Implementations
// must serialize writes internally; Listen's returned channel is closed
// once the underlying connection ends, for any reason.
type Transport interface {
	// SendText sends a JSON signaling envelope.
	SendText(ctx context.Context, b []byte) error
	// SendBinary sends a sealed RTP packet.
	SendBinary(ctx context.Context, b []byte) error
	// Listen returns a channel of inbound messages. It is closed, along
	// with a final error available from Err, when the transport ends.
	Listen() <-chan Message
	// Err returns the reason Listen's channel closed, once it has.
	Err() error
	// Close closes the transport. Safe to call more than once.
	Close() error
}

// Message is one inbound frame, tagged by kind.
type Message struct {
	Binary bool
	Data   []byte
}

// Dialer dials a Transport given a signaling URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}
