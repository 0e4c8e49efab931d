// Package jitter implements the per-SSRC jitter buffer: packets arrive
// out of order and at uneven intervals, and the buffer smooths them
// into a steady 20 ms cadence of decoded PCM for playback, synthesizing
// concealment frames across small gaps.
package jitter

import "sync"

const frameMs = 20

// Decoder turns a sealed Opus payload into PCM, and can synthesize a
// concealment frame when a packet never arrived.
type Decoder interface {
	Decode(payload []byte) ([]int16, error)
	DecodeMissing() []int16
}

// Counter is the narrow surface a Buffer needs to report concealment
// events; a prometheus.Counter satisfies it without this package having
// to import prometheus.
type Counter interface {
	Inc()
}

type bufferedPacket struct {
	timestamp  uint32
	payload    []byte
	receivedAt uint64 // monotonic arrival order, not wall-clock time
}

// Buffer is a single remote SSRC's jitter buffer. Not safe for
// concurrent use beyond what its internal mutex serializes: Push may be
// called from a reader goroutine while Pop is called from the playback
// scheduler.
type Buffer struct {
	mu sync.Mutex

	decoder Decoder

	minBufferFrames int
	maxBufferFrames int
	maxMissingRuns  int

	packets map[uint16]bufferedPacket

	seeded         bool
	primed         bool
	nextSeq        uint16
	consecutivePLC int
	recvCounter    uint64

	concealed Counter
}

// Config bounds a Buffer's behavior, in milliseconds except
// MaxMissingFrames. FramesConcealed is an optional counter incremented
// once per synthesized concealment frame (PLC or silence fallback).
type Config struct {
	MinBufferMs      int
	MaxBufferMs      int
	MaxMissingFrames int
	FramesConcealed  Counter
}

// DefaultConfig matches the protocol's stated defaults.
func DefaultConfig() Config {
	return Config{MinBufferMs: 60, MaxBufferMs: 200, MaxMissingFrames: 5}
}

// New builds a Buffer that decodes through decoder.
func New(decoder Decoder, cfg Config) *Buffer {
	if cfg.MinBufferMs <= 0 {
		cfg.MinBufferMs = 60
	}
	if cfg.MaxBufferMs <= 0 {
		cfg.MaxBufferMs = 200
	}
	if cfg.MaxMissingFrames <= 0 {
		cfg.MaxMissingFrames = 5
	}

	return &Buffer{
		decoder:         decoder,
		minBufferFrames: cfg.MinBufferMs / frameMs,
		maxBufferFrames: cfg.MaxBufferMs / frameMs,
		maxMissingRuns:  cfg.MaxMissingFrames,
		packets:         make(map[uint16]bufferedPacket),
		concealed:       cfg.FramesConcealed,
	}
}

// seqDiff returns the signed wrap-aware distance a-b for 16-bit
// sequence numbers.
func seqDiff(a, b uint16) int32 {
	return int32(int16(a - b))
}

// Push inserts a received packet. It reports false if the packet was
// dropped for arriving too late (its sequence already passed).
func (b *Buffer) Push(sequence uint16, timestamp uint32, payload []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.seeded {
		b.nextSeq = sequence
		b.seeded = true
	}

	if seqDiff(sequence, b.nextSeq) < 0 {
		// Already played past this sequence: reordered too late.
		return false
	}

	if len(b.packets) >= b.maxBufferFrames {
		b.evictOldest()
	}

	b.recvCounter++
	b.packets[sequence] = bufferedPacket{timestamp: timestamp, payload: payload, receivedAt: b.recvCounter}
	return true
}

// evictOldest drops the buffered packet that arrived first, by receipt
// order rather than by sequence distance from nextSeq: a packet that
// has sat in the buffer longest is evicted even if it happens to play
// sooner than one received just after it. Caller holds the mutex.
func (b *Buffer) evictOldest() {
	var oldestSeq uint16
	found := false
	var oldestRecv uint64

	for seq, pkt := range b.packets {
		if !found || pkt.receivedAt < oldestRecv {
			oldestSeq, oldestRecv, found = seq, pkt.receivedAt, true
		}
	}

	if found {
		delete(b.packets, oldestSeq)
	}
}

// IsReady reports whether enough packets have accumulated to start
// popping frames, matching MinBufferMs/20.
func (b *Buffer) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.packets) >= b.minBufferFrames
}

// Pop produces the next 20 ms frame of decoded PCM, or (nil, false) if
// nothing should play this tick yet (buffer still priming, or the next
// sequence is simply missing with nothing later buffered).
func (b *Buffer) Pop() ([]int16, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.seeded {
		return nil, false
	}
	if !b.primed {
		if len(b.packets) < b.minBufferFrames {
			return nil, false
		}
		b.primed = true
	}

	if pkt, ok := b.packets[b.nextSeq]; ok {
		delete(b.packets, b.nextSeq)
		b.consecutivePLC = 0
		b.nextSeq++

		pcm, err := b.decoder.Decode(pkt.payload)
		if err != nil {
			return b.conceal(), true
		}
		return pcm, true
	}

	if !b.hasLaterSequence() {
		// Nothing later buffered either: the gap might just be jitter,
		// wait rather than conceal.
		return nil, false
	}

	return b.conceal(), true
}

// conceal synthesizes a PLC or silence frame and advances nextSeq.
// Caller holds the mutex.
func (b *Buffer) conceal() []int16 {
	b.consecutivePLC++
	b.nextSeq++

	if b.concealed != nil {
		b.concealed.Inc()
	}

	if b.consecutivePLC > b.maxMissingRuns {
		return make([]int16, frameSamples())
	}
	return b.decoder.DecodeMissing()
}

func (b *Buffer) hasLaterSequence() bool {
	for seq := range b.packets {
		if seqDiff(seq, b.nextSeq) > 0 {
			return true
		}
	}
	return false
}

// Reset clears all buffered state, as after extended silence from this
// source.
func (b *Buffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.packets = make(map[uint16]bufferedPacket)
	b.seeded = false
	b.primed = false
	b.consecutivePLC = 0
}

// Depth reports how many packets are currently buffered.
func (b *Buffer) Depth() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.packets)
}

// frameSamples is the PCM sample count of one 20 ms mono frame at 48 kHz.
func frameSamples() int { return 960 }
