package voice

import "time"

// Sink accepts decoded 48 kHz mono 16-bit PCM frames produced by
// playback, tagged with the SSRC they came from. A Sink is expected to
// maintain its own per-SSRC scheduled-start-time clock and snap forward
// by 50ms if it ever falls behind real time; that clock lives outside
// the voice core, next to whatever plays the audio.
type Sink interface {
	WritePlayback(ssrc uint32, pcm []int16)
}

const playbackTick = 20 * time.Millisecond // matches one Opus frame

// playbackScheduler pops every active jitter buffer once per 20 ms tick
// and hands the result to Sink. It never blocks on the network: it only
// touches in-memory jitter buffers and the sink.
type playbackScheduler struct {
	session *VoiceSession
	stop    chan struct{}
	done    chan struct{}
}

func newPlaybackScheduler(s *VoiceSession) *playbackScheduler {
	return &playbackScheduler{session: s, stop: make(chan struct{}), done: make(chan struct{})}
}

func (p *playbackScheduler) start() {
	go p.run()
}

func (p *playbackScheduler) run() {
	defer close(p.done)

	ticker := time.NewTicker(playbackTick)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.tick()
		}
	}
}

func (p *playbackScheduler) tick() {
	for _, participant := range p.session.participants.all() {
		buf, ok := p.session.participants.jitterFor(participant.SSRC)
		if !ok {
			continue
		}

		pcm, produced := buf.Pop()
		if !produced {
			continue
		}

		if p.session.sink != nil {
			p.session.sink.WritePlayback(participant.SSRC, pcm)
		}
	}

	if m := p.session.metrics; m != nil {
		m.JitterDepth.Set(float64(p.session.participants.jitterDepth()))
		m.ActiveSenders.Set(float64(p.session.participants.activeSenders()))
	}
}

func (p *playbackScheduler) Stop() {
	close(p.stop)
	<-p.done
}
