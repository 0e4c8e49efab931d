// Package voice implements a session-oriented participant in an SFU
// voice room: it negotiates keys over a signaling channel, encodes and
// encrypts captured audio to the room, and decrypts, reorders, conceals
// and decodes audio from everyone else in it.
package voice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/embervoice/voice/internal/backoff"
	"github.com/embervoice/voice/internal/config"
	"github.com/embervoice/voice/internal/handler"
	"github.com/embervoice/voice/internal/heart"
	"github.com/embervoice/voice/internal/logging"
	"github.com/embervoice/voice/internal/metrics"
	"github.com/embervoice/voice/internal/moreatomic"
	"github.com/embervoice/voice/voice/audio"
	"github.com/embervoice/voice/voice/jitter"
	"github.com/embervoice/voice/voice/packetcodec"
	"github.com/embervoice/voice/voice/signaling"
	"github.com/embervoice/voice/voice/transport"
)

// ConnectTimeout bounds how long a single connect or reconnect attempt
// may take before it's considered failed.
var ConnectTimeout = 10 * time.Second

// VoiceSession is the top-level state machine: connect → identify →
// ready → session-described → connected → reconnecting → disconnected.
// It owns exactly one transport, one heartbeat supervisor, zero-or-one
// AudioPipeline, one playback scheduler, and the SSRC-to-JitterBuffer
// map; all mutation of that state is serialized behind mu.
type VoiceSession struct {
	creds     Credentials
	userID    string
	sessionID string

	cfg      config.Config
	dialer   transport.Dialer
	observer Observer
	logger   logging.Logger
	metrics  *metrics.Recorder

	codec *audio.Codec
	sink  Sink

	events *handler.Handler

	mu sync.RWMutex

	state                 ConnectionState
	transport             transport.Transport
	keys                  *SessionKeys
	localSSRC             uint32
	intentionalDisconnect bool
	speaking              bool
	wasSpeaking           bool
	muted                 bool

	sender   *packetcodec.Sender
	receiver *packetcodec.Receiver
	pipeline *audio.Pipeline // present only while capturing, see StartSpeaking/StopSpeaking

	participants *participantIndex

	pace     *heart.Pacemaker
	backoff  *backoff.Backoff
	playback *playbackScheduler

	generation int // bumped on every (re)connect to invalidate stale goroutines

	connecting moreatomic.Bool
	closed     moreatomic.Bool

	// disconnectCh is closed exactly once, by Disconnect, so a blocked
	// reconnect backoff wakes up immediately instead of riding out its
	// full delay.
	disconnectCh chan struct{}
}

// Option configures optional collaborators of a VoiceSession.
type Option func(*VoiceSession)

// WithSink sets the playback sink.
func WithSink(sink Sink) Option { return func(s *VoiceSession) { s.sink = sink } }

// WithMetrics attaches a Prometheus recorder.
func WithMetrics(rec *metrics.Recorder) Option { return func(s *VoiceSession) { s.metrics = rec } }

// WithLogger overrides the default production logger.
func WithLogger(l logging.Logger) Option { return func(s *VoiceSession) { s.logger = l } }

// WithDialer overrides the default websocket transport dialer, mainly
// for tests.
func WithDialer(d transport.Dialer) Option { return func(s *VoiceSession) { s.dialer = d } }

// NewSession constructs a VoiceSession for userID, generating a stable
// session_id reused across every reconnect this instance performs.
func NewSession(creds Credentials, userID string, cfg config.Config, observer Observer, opts ...Option) (*VoiceSession, error) {
	codec, err := audio.NewCodec(cfg.OpusBitrate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build opus codec")
	}

	s := &VoiceSession{
		creds:        creds,
		userID:       userID,
		sessionID:    uuid.NewString(),
		cfg:          cfg,
		dialer:       transport.WebsocketDialer{},
		observer:     observer,
		logger:       logging.NewProduction(),
		codec:        codec,
		participants: newParticipantIndex(),
		backoff:      backoff.New(cfg.BackoffBase(), cfg.BackoffCap(), cfg.BackoffMaxTrys),
		events:       handler.New(),
		disconnectCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.events.OnPanic = func(rec interface{}) {
		s.logger.Error("recovered panic in registered event handler", errors.Errorf("%v", rec))
	}

	return s, nil
}

// SessionID returns the stable session identifier generated at
// construction and reused across reconnects.
func (s *VoiceSession) SessionID() string { return s.sessionID }

// AddHandler subscribes fn to one event type dispatched by this
// session (see events.go), returning a function that removes it. Most
// integrations should implement Observer instead; AddHandler suits a
// caller that only cares about one or two event types.
func (s *VoiceSession) AddHandler(fn interface{}) (rm func()) {
	return s.events.AddHandler(fn)
}

// State returns the current connection state.
func (s *VoiceSession) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *VoiceSession) setState(state ConnectionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.observer.OnStateChange(state)
	s.events.Call(&StateChangeEvent{State: state})
}

// Connect opens the signaling transport and runs the connect handshake
// (Identify → Ready → SelectProtocol → SessionDescribe) within
// ConnectTimeout.
func (s *VoiceSession) Connect(ctx context.Context) error {
	if !s.connecting.CompareAndSwap(false) {
		return ErrAlreadyConnecting
	}
	defer s.connecting.Set(false)

	s.mu.Lock()
	s.intentionalDisconnect = false
	s.mu.Unlock()

	connectCtx, cancel := context.WithTimeout(ctx, ConnectTimeout)
	defer cancel()

	s.setState(Connecting)

	if err := s.connectOnce(connectCtx); err != nil {
		s.setState(Disconnected)
		return err
	}

	s.backoff.Reset()
	s.setState(Connected)
	s.observer.OnConnected()
	s.events.Call(&ConnectedEvent{})

	return nil
}

// connectOnce performs one dial-and-handshake attempt and, on success,
// starts the heartbeat, playback scheduler and read loop for this
// connection generation.
func (s *VoiceSession) connectOnce(ctx context.Context) error {
	tr, err := s.dialer.Dial(ctx, s.creds.WSURL)
	if err != nil {
		return errors.Wrap(err, "failed to dial signaling endpoint")
	}

	s.mu.Lock()
	s.generation++
	generation := s.generation
	s.transport = tr
	s.mu.Unlock()

	messages := tr.Listen()

	identify, err := signaling.NewIdentify(s.creds.RoomID, s.userID, s.sessionID, s.creds.Token)
	if err != nil {
		tr.Close()
		return err
	}

	if err := s.sendEnvelope(ctx, tr, signaling.IdentifyOP, identify); err != nil {
		tr.Close()
		return err
	}

	ready, err := waitFor[signaling.ReadyData](ctx, messages, signaling.ReadyOP, nil)
	if err != nil {
		tr.Close()
		return errors.Wrap(err, "failed waiting for ready")
	}

	s.mu.Lock()
	s.localSSRC = ready.SSRC
	s.mu.Unlock()

	// Start the heartbeat pacemaker the moment heartbeat_interval is
	// known, rather than waiting on SessionDescribe: an SFU that is slow
	// to describe the session must not starve this client of heartbeats
	// in the meantime.
	heartrate := time.Duration(ready.HeartbeatInterval) * time.Millisecond
	pace, death := s.startHeartbeat(tr, heartrate)

	selectProto := signaling.SelectProtocolData{
		Protocol: "sfu",
		Data: signaling.SelectProtocolInnerData{
			Address: ready.IP,
			Port:    ready.Port,
			Mode:    Protocol,
		},
	}
	if err := s.sendEnvelope(ctx, tr, signaling.SelectProtocolOP, selectProto); err != nil {
		tr.Close()
		pace.Stop()
		return err
	}

	describe, err := waitFor[signaling.SessionDescribeData](ctx, messages, signaling.SessionDescribeOP, pace)
	if err != nil {
		tr.Close()
		pace.Stop()
		return errors.Wrap(err, "failed waiting for session describe")
	}

	keys, err := DecodeSessionKeys(describe.Mode, describe.SecretKey)
	if err != nil {
		tr.Close()
		pace.Stop()
		return err
	}

	s.mu.Lock()
	s.keys = &keys
	s.sender = packetcodec.NewSender(s.localSSRC, keys.Secret, 960)
	s.receiver = packetcodec.NewReceiver(keys.Secret)
	s.mu.Unlock()

	s.startSupervision(generation, tr, messages, death)

	s.mu.RLock()
	resumeSpeak := s.wasSpeaking
	s.mu.RUnlock()
	if resumeSpeak {
		if err := s.sendSpeaking(ctx, signaling.Microphone); err != nil {
			s.logger.Error("failed to re-assert speaking after reconnect", err)
		}
	}

	return nil
}

// startHeartbeat builds and starts the pacemaker for this connection
// generation, right after Ready carries heartbeat_interval — before
// SessionDescribe, SelectProtocol or the read loop exist — so a slow
// SFU cannot starve this client of heartbeats while it waits on the
// rest of the handshake.
func (s *VoiceSession) startHeartbeat(tr transport.Transport, heartrate time.Duration) (*heart.Pacemaker, chan error) {
	pace := heart.NewPacemaker(heartrate, func(ctx context.Context) error {
		return s.sendEnvelope(ctx, tr, signaling.HeartbeatOP, signaling.HeartbeatData{Nonce: time.Now().UnixNano()})
	})
	pace.ToleranceFactor = s.cfg.HeartbeatToleranceFactor
	pace.MissThreshold = s.cfg.HeartbeatMissThreshold

	s.mu.Lock()
	s.pace = pace
	s.mu.Unlock()

	return pace, pace.StartAsync(nil)
}

// startSupervision launches the goroutines that own the rest of this
// connection generation: the playback scheduler, and, under one
// errgroup, the inbound message loop plus a watcher on the
// already-started pacemaker's death channel. Pacemaker death closes the
// transport so the read loop ends; once both group members have
// returned, onTransportDown runs exactly once for this generation. The
// playback scheduler is not in the group and is stopped by teardown.
func (s *VoiceSession) startSupervision(generation int, tr transport.Transport, messages <-chan transport.Message, death <-chan error) {
	s.mu.Lock()
	s.playback = newPlaybackScheduler(s)
	s.mu.Unlock()

	s.playback.start()

	g := new(errgroup.Group)

	g.Go(func() error {
		s.readLoop(messages)
		return errors.Wrap(tr.Err(), "transport closed")
	})

	g.Go(func() error {
		err := <-death
		// Force the read loop to unblock so the group can finish.
		tr.Close()
		return err
	})

	go func() {
		cause := g.Wait()
		s.onTransportDown(generation, cause)
	}()
}

// readLoop dispatches inbound signaling and media frames until the
// transport's message channel closes.
func (s *VoiceSession) readLoop(messages <-chan transport.Message) {
	for msg := range messages {
		if msg.Binary {
			s.handleBinary(msg.Data)
			continue
		}
		s.handleText(msg.Data)
	}
}

func (s *VoiceSession) handleText(data []byte) {
	op, err := peekOp(data)
	if err != nil {
		s.logger.Debug("dropping malformed signaling frame")
		return
	}

	switch op {
	case signaling.HeartbeatAckOP:
		s.mu.RLock()
		pace := s.pace
		s.mu.RUnlock()
		if pace != nil {
			pace.Echo()
		}
	case signaling.UserJoinOP:
		var d signaling.UserJoinData
		if _, err := signaling.Unmarshal(data, &d); err != nil {
			s.logger.Debug("dropping malformed UserJoin")
			return
		}
		participant := s.participants.join(d.UserID, d.SSRC, func() *jitter.Buffer {
			cfg := jitter.Config{
				MinBufferMs:      s.cfg.JitterMinBufferMs,
				MaxBufferMs:      s.cfg.JitterMaxBufferMs,
				MaxMissingFrames: s.cfg.JitterMaxMissingRuns,
			}
			if s.metrics != nil {
				cfg.FramesConcealed = s.metrics.FramesConcealed
			}
			return jitter.New(s.codec, cfg)
		})
		s.observer.OnUserJoined(*participant)
		s.events.Call(&UserJoinEvent{Participant: *participant})
	case signaling.UserLeaveOP:
		var d signaling.UserLeaveData
		if _, err := signaling.Unmarshal(data, &d); err != nil {
			s.logger.Debug("dropping malformed UserLeave")
			return
		}
		if participant, ok := s.participants.leave(d.UserID); ok {
			s.observer.OnUserLeft(*participant)
			s.events.Call(&UserLeaveEvent{Participant: *participant})
		}
	case signaling.UserSpeakingOP:
		var d signaling.UserSpeakingData
		if _, err := signaling.Unmarshal(data, &d); err != nil {
			s.logger.Debug("dropping malformed UserSpeaking")
			return
		}
		if participant, ok := s.participants.setSpeaking(d.SSRC, d.Speaking); ok {
			s.observer.OnUserSpeaking(*participant)
			s.events.Call(&UserSpeakingEvent{Participant: *participant})
		}
	case signaling.ResumedOP:
		s.logger.Debug("resumed")
	default:
		s.logger.Debug("ignoring unknown or unexpected opcode")
	}
}

func (s *VoiceSession) handleBinary(data []byte) {
	s.mu.RLock()
	receiver := s.receiver
	s.mu.RUnlock()

	if receiver == nil {
		return
	}

	header, payload, err := receiver.Open(data, nil)
	if err != nil {
		if s.metrics != nil {
			s.metrics.PacketsDropped.Inc()
			s.metrics.AuthFailures.Inc()
		}
		s.logger.Debug("dropping packet that failed to decrypt")
		s.observer.OnError(err)
		s.events.Call(&ErrorEvent{Err: err})
		return
	}

	buf, ok := s.participants.jitterFor(header.SSRC)
	if !ok {
		return
	}

	buf.Push(header.Sequence, header.Timestamp, payload)
}

// onTransportDown is called exactly once per connection generation. It
// either starts the reconnect sequence or, for an intentional
// disconnect, does nothing (Disconnect already tore things down).
func (s *VoiceSession) onTransportDown(generation int, cause error) {
	s.mu.Lock()
	if s.generation != generation {
		// A newer generation already superseded this one.
		s.mu.Unlock()
		return
	}
	intentional := s.intentionalDisconnect
	s.mu.Unlock()

	s.teardownGeneration()

	if intentional {
		return
	}

	s.reconnectLoop(cause)
}

// reconnectLoop drives Reconnecting → Connecting → Connected (or gives
// up to Disconnected) using the configured backoff schedule.
func (s *VoiceSession) reconnectLoop(cause error) {
	for {
		s.mu.RLock()
		intentional := s.intentionalDisconnect
		s.mu.RUnlock()
		if intentional {
			return
		}

		delay, ok := s.backoff.Next()
		if !ok {
			err := errors.Wrap(cause, "reconnect attempts exhausted")
			s.setState(Disconnected)
			s.observer.OnDisconnected(err)
			s.events.Call(&DisconnectedEvent{Err: err})
			return
		}

		attempt := s.backoff.Attempt()
		s.setState(Reconnecting)
		s.observer.OnReconnecting(attempt, s.cfg.BackoffMaxTrys)
		s.events.Call(&ReconnectingEvent{Attempt: attempt, MaxAttempts: s.cfg.BackoffMaxTrys})
		if s.metrics != nil {
			s.metrics.Reconnects.Inc()
		}

		select {
		case <-time.After(delay):
		case <-s.disconnectCh:
			return
		}

		s.participants.reset()

		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		err := s.connectOnce(ctx)
		cancel()

		if err != nil {
			s.logger.Error("reconnect attempt failed", err)
			s.observer.OnError(err)
			s.events.Call(&ErrorEvent{Err: err})
			continue
		}

		s.backoff.Reset()
		s.setState(Connected)
		s.observer.OnConnected()
		s.events.Call(&ConnectedEvent{})
		return
	}
}

// teardownGeneration tears down the per-connection resources: heartbeat,
// playback scheduler, and the transport itself, in that order.
func (s *VoiceSession) teardownGeneration() {
	s.mu.Lock()
	pace := s.pace
	pb := s.playback
	tr := s.transport
	s.pace = nil
	s.playback = nil
	s.mu.Unlock()

	if pace != nil {
		pace.Stop()
	}
	if pb != nil {
		pb.Stop()
	}
	if tr != nil {
		tr.Close()
	}
}

// Disconnect is the one cancellation signal for the session. It is
// idempotent, cancels any in-flight reconnect, and tears down capture,
// transport, playback and keys. It never rearms the reconnect loop.
func (s *VoiceSession) Disconnect() error {
	if !s.closed.CompareAndSwap(false) {
		return nil
	}

	s.mu.Lock()
	s.intentionalDisconnect = true
	s.speaking = false
	s.pipeline = nil
	s.mu.Unlock()
	close(s.disconnectCh)

	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()

	s.mu.RLock()
	tr := s.transport
	s.mu.RUnlock()

	if tr != nil {
		_ = s.sendEnvelope(ctx, tr, signaling.ClientDisconnectOP, signaling.ClientDisconnectData{})
	}

	s.teardownGeneration()
	s.participants.reset()

	s.mu.Lock()
	s.keys = nil
	s.sender = nil
	s.receiver = nil
	s.mu.Unlock()

	s.setState(Disconnected)
	s.observer.OnDisconnected(nil)
	s.events.Call(&DisconnectedEvent{})

	return nil
}

// PushCapture feeds one arbitrary-length block of captured float
// samples through the session's own capture pipeline (built by
// StartSpeaking) and sends any resulting Opus packets. It must not
// block on the network: encoding happens inline, but the send itself
// uses a short per-call context so a stalled transport cannot stall
// the capture thread indefinitely.
func (s *VoiceSession) PushCapture(samples []float32) error {
	s.mu.RLock()
	speaking := s.speaking
	pipeline := s.pipeline
	sender := s.sender
	tr := s.transport
	s.mu.RUnlock()

	if !speaking || pipeline == nil || tr == nil {
		return nil
	}
	if sender == nil {
		return ErrNoSessionKeys
	}

	packets, err := pipeline.Process(samples)
	if err != nil {
		return errors.Wrap(err, "failed to encode capture block")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	for _, pkt := range packets {
		sealed := sender.Seal(pkt)
		if err := tr.SendBinary(ctx, sealed); err != nil {
			return errors.Wrap(err, "failed to send media frame")
		}
	}

	return nil
}

// Participants returns a snapshot of every currently known remote
// participant.
func (s *VoiceSession) Participants() []*Participant {
	return s.participants.all()
}

// ActiveSenders reports how many remote participants currently have
// audio buffered for playback, i.e. are actively sending rather than
// merely present in the room.
func (s *VoiceSession) ActiveSenders() int {
	return s.participants.activeSenders()
}

func (s *VoiceSession) sendEnvelope(ctx context.Context, tr transport.Transport, op signaling.OPCode, v interface{}) error {
	b, err := signaling.Marshal(op, v)
	if err != nil {
		return err
	}
	return tr.SendText(ctx, b)
}

// waitFor blocks until an envelope with the given opcode arrives,
// decoding its payload into T, or the context expires. Before the read
// loop takes over dispatch, this is also the only place HeartbeatAck
// can arrive; if pace is non-nil, waitFor echoes it and keeps waiting
// instead of discarding it, so a pacemaker started right after Ready
// still sees its acks while later handshake steps are in flight.
func waitFor[T any](ctx context.Context, messages <-chan transport.Message, want signaling.OPCode, pace *heart.Pacemaker) (T, error) {
	var zero T

	for {
		select {
		case msg, ok := <-messages:
			if !ok {
				return zero, errors.New("transport closed while waiting")
			}
			if msg.Binary {
				continue
			}

			op, err := peekOp(msg.Data)
			if err != nil {
				continue
			}
			if op == signaling.HeartbeatAckOP && pace != nil {
				pace.Echo()
				continue
			}
			if op != want {
				continue
			}

			var payload T
			if _, err := signaling.Unmarshal(msg.Data, &payload); err != nil {
				return zero, err
			}
			return payload, nil

		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

func peekOp(b []byte) (signaling.OPCode, error) {
	return signaling.Unmarshal(b, nil)
}
