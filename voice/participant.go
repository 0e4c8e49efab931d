package voice

import (
	"sync"

	"github.com/embervoice/voice/voice/jitter"
	"github.com/embervoice/voice/voice/signaling"
)

// Participant is one other user in the room.
type Participant struct {
	UserID        string
	SSRC          uint32
	SpeakingFlags signaling.SpeakingFlag
}

// participantIndex indexes Participants by both user_id and ssrc, and
// owns each participant's jitter buffer. Every ssrc entry corresponds
// to exactly one Participant; entries are created only on UserJoin and
// destroyed only on UserLeave or teardown.
type participantIndex struct {
	mu sync.RWMutex

	byUser map[string]*Participant
	bySSRC map[uint32]*Participant
	jitter map[uint32]*jitter.Buffer
}

func newParticipantIndex() *participantIndex {
	return &participantIndex{
		byUser: make(map[string]*Participant),
		bySSRC: make(map[uint32]*Participant),
		jitter: make(map[uint32]*jitter.Buffer),
	}
}

func (p *participantIndex) join(userID string, ssrc uint32, newBuffer func() *jitter.Buffer) *Participant {
	p.mu.Lock()
	defer p.mu.Unlock()

	participant := &Participant{UserID: userID, SSRC: ssrc}
	p.byUser[userID] = participant
	p.bySSRC[ssrc] = participant
	p.jitter[ssrc] = newBuffer()
	return participant
}

func (p *participantIndex) leave(userID string) (*Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	participant, ok := p.byUser[userID]
	if !ok {
		return nil, false
	}

	delete(p.byUser, userID)
	delete(p.bySSRC, participant.SSRC)
	delete(p.jitter, participant.SSRC)
	return participant, true
}

func (p *participantIndex) byUserID(userID string) (*Participant, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	participant, ok := p.byUser[userID]
	return participant, ok
}

func (p *participantIndex) bySsrc(ssrc uint32) (*Participant, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	participant, ok := p.bySSRC[ssrc]
	return participant, ok
}

func (p *participantIndex) jitterFor(ssrc uint32) (*jitter.Buffer, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	buf, ok := p.jitter[ssrc]
	return buf, ok
}

func (p *participantIndex) setSpeaking(ssrc uint32, flags signaling.SpeakingFlag) (*Participant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	participant, ok := p.bySSRC[ssrc]
	if !ok {
		return nil, false
	}
	participant.SpeakingFlags = flags
	return participant, true
}

// activeSenders counts participants whose jitter buffer currently holds
// at least one frame, i.e. ones that have delivered audio recently
// enough that it hasn't all drained yet.
func (p *participantIndex) activeSenders() int {
	p.mu.RLock()
	buffers := make([]*jitter.Buffer, 0, len(p.jitter))
	for _, buf := range p.jitter {
		buffers = append(buffers, buf)
	}
	p.mu.RUnlock()

	n := 0
	for _, buf := range buffers {
		if buf.Depth() > 0 {
			n++
		}
	}
	return n
}

// jitterDepth sums every participant's buffered-frame depth, for the
// playback scheduler's metrics tick.
func (p *participantIndex) jitterDepth() int {
	p.mu.RLock()
	buffers := make([]*jitter.Buffer, 0, len(p.jitter))
	for _, buf := range p.jitter {
		buffers = append(buffers, buf)
	}
	p.mu.RUnlock()

	total := 0
	for _, buf := range buffers {
		total += buf.Depth()
	}
	return total
}

// all returns a snapshot of every active participant.
func (p *participantIndex) all() []*Participant {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*Participant, 0, len(p.byUser))
	for _, participant := range p.byUser {
		out = append(out, participant)
	}
	return out
}

// reset clears the whole index, destroying every jitter buffer — used
// on reconnect, since a fresh Ready assigns fresh SSRCs and every
// participant will be re-announced.
func (p *participantIndex) reset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.byUser = make(map[string]*Participant)
	p.bySSRC = make(map[uint32]*Participant)
	p.jitter = make(map[uint32]*jitter.Buffer)
}
