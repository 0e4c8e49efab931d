package voice

import (
	"context"

	"github.com/embervoice/voice/voice/audio"
	"github.com/embervoice/voice/voice/signaling"
)

// StartSpeaking builds the capture pipeline, gates the microphone on,
// then announces it. Gating first means no audio can flow between the
// mute toggle and the Speaking notification.
func (s *VoiceSession) StartSpeaking(ctx context.Context) error {
	s.mu.Lock()
	if s.muted {
		s.mu.Unlock()
		return ErrMuted
	}
	if s.speaking {
		s.mu.Unlock()
		s.logger.Warn("start speaking requested while already speaking")
		return nil
	}

	var gate audio.Denoiser
	if s.cfg.DenoiseEnabled {
		gate = audio.NewGate(denoiseThreshold(s.cfg.DenoiseLevel), denoiseHoldFrames)
	}
	s.pipeline = audio.NewPipeline(gate, s.codec)

	s.speaking = true
	s.wasSpeaking = true
	s.mu.Unlock()

	return s.sendSpeaking(ctx, signaling.Microphone)
}

// denoiseThreshold converts the 0-100 DenoiseLevel config knob into the
// Gate's linear RMS threshold.
func denoiseThreshold(level int) float32 {
	return float32(level) / 1000
}

// denoiseHoldFrames is how many 10ms frames the gate stays open after
// the last frame that passed its threshold, so trailing syllables
// aren't clipped.
const denoiseHoldFrames = 10

// StopSpeaking flushes any samples still buffered in the capture
// pipeline, gates the microphone off, announces it, and tears the
// pipeline down: it exists only while capturing.
func (s *VoiceSession) StopSpeaking(ctx context.Context) error {
	s.mu.Lock()
	if !s.speaking {
		s.mu.Unlock()
		s.logger.Warn("stop speaking requested while not speaking")
		return nil
	}

	pipeline := s.pipeline
	sender := s.sender
	tr := s.transport
	s.speaking = false
	s.pipeline = nil
	s.mu.Unlock()

	if pipeline != nil && sender != nil && tr != nil {
		packets, err := pipeline.Flush()
		if err != nil {
			s.logger.Error("failed to flush capture pipeline", err)
		} else {
			for _, pkt := range packets {
				if err := tr.SendBinary(ctx, sender.Seal(pkt)); err != nil {
					s.logger.Error("failed to send flushed capture frame", err)
					break
				}
			}
		}
	}

	return s.sendSpeaking(ctx, 0)
}

func (s *VoiceSession) sendSpeaking(ctx context.Context, flags signaling.SpeakingFlag) error {
	s.mu.RLock()
	ssrc := s.localSSRC
	transport := s.transport
	s.mu.RUnlock()

	if transport == nil {
		return ErrNotConnected
	}

	b, err := signaling.Marshal(signaling.SpeakingOP, signaling.SpeakingData{
		Speaking: flags,
		SSRC:     ssrc,
	})
	if err != nil {
		return err
	}

	return transport.SendText(ctx, b)
}

// IsSpeaking reports whether the local participant is currently
// announced as speaking.
func (s *VoiceSession) IsSpeaking() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.speaking
}

// SetMuted toggles the local mute state and notifies the Observer and
// any registered handlers. Muting while capturing stops speaking first
// (flushing whatever the pipeline had buffered), so no frame can leave
// after the caller believes the microphone is off; unmuting never
// resumes capture on its own, StartSpeaking must be called again.
func (s *VoiceSession) SetMuted(ctx context.Context, muted bool) error {
	s.mu.Lock()
	if s.muted == muted {
		s.mu.Unlock()
		return nil
	}
	s.muted = muted
	wasSpeaking := s.speaking
	s.mu.Unlock()

	if muted && wasSpeaking {
		if err := s.StopSpeaking(ctx); err != nil {
			return err
		}
	}

	s.observer.OnMuted(muted)
	s.events.Call(&MutedEvent{Muted: muted})
	return nil
}

// IsMuted reports the local mute state last set by SetMuted.
func (s *VoiceSession) IsMuted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.muted
}
