// Package heart implements the heartbeat supervisor shared by the
// signaling connection: it sends heartbeats on a fixed interval, tracks
// acknowledgements, and declares the connection dead once too many
// beats go unanswered within tolerance.
package heart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// Debug is the logger Pacemaker uses for trace-level detail; it is a
// no-op by default.
var Debug = func(v ...interface{}) {}

// ErrDead surfaces on the death channel returned by StartAsync once the
// connection is declared unresponsive.
var ErrDead = errors.New("heartbeat: too many unacknowledged beats")

// AtomicTime is a thread-safe UnixNano timestamp.
type AtomicTime struct {
	unixnano int64
}

func (t *AtomicTime) Get() int64 { return atomic.LoadInt64(&t.unixnano) }

func (t *AtomicTime) Set(tm time.Time) { atomic.StoreInt64(&t.unixnano, tm.UnixNano()) }

func (t *AtomicTime) Time() time.Time { return time.Unix(0, t.Get()) }

// Pacemaker sends a heartbeat every Heartrate and tracks how many went
// unanswered. A connection is declared dead once MissThreshold
// consecutive beats exceed Heartrate*ToleranceFactor without an Echo.
type Pacemaker struct {
	// Heartrate is the interval between heartbeats, taken from the
	// signaling Ready payload's heartbeat_interval.
	Heartrate time.Duration

	// ToleranceFactor multiplies Heartrate to get the window an echo is
	// allowed to arrive in before counting as missed. Defaults to 1.5
	// if zero.
	ToleranceFactor float64

	// MissThreshold is how many consecutive missed beats before the
	// pacemaker reports death. Defaults to 2 if zero.
	MissThreshold int

	SentBeat AtomicTime
	EchoBeat AtomicTime

	// Pace sends one heartbeat. Any error it returns stops the pacemaker.
	Pace func(context.Context) error

	missed int32

	stop  chan struct{}
	once  sync.Once
	death chan error
}

// NewPacemaker constructs a Pacemaker with the given rate and pacer.
func NewPacemaker(heartrate time.Duration, pacer func(context.Context) error) *Pacemaker {
	return &Pacemaker{
		Heartrate:       heartrate,
		ToleranceFactor: 1.5,
		MissThreshold:   2,
		Pace:            pacer,
	}
}

// Echo records that a heartbeat acknowledgement was just received,
// resetting the missed-beat counter.
func (p *Pacemaker) Echo() {
	p.EchoBeat.Set(time.Now())
	atomic.StoreInt32(&p.missed, 0)
}

// lastBeatLate reports whether the gap between the last sent beat and
// the last received echo has grown past the tolerance window. Unlike
// comparing time.Since(SentBeat), this gap keeps growing every tick
// that goes unanswered, since EchoBeat stays frozen at the last ack
// while SentBeat keeps advancing — so a connection that never acks
// eventually trips it.
func (p *Pacemaker) lastBeatLate() bool {
	sent := p.SentBeat.Get()
	echo := p.EchoBeat.Get()

	if sent == 0 || echo == 0 {
		return false
	}
	if echo >= sent {
		return false
	}

	gap := time.Duration(sent - echo)
	return gap > p.tolerance()
}

func (p *Pacemaker) tolerance() time.Duration {
	factor := p.ToleranceFactor
	if factor <= 0 {
		factor = 1.5
	}
	return time.Duration(float64(p.Heartrate) * factor)
}

// MissedBeats reports the current consecutive-miss count.
func (p *Pacemaker) MissedBeats() int {
	return int(atomic.LoadInt32(&p.missed))
}

// Stop stops the pacemaker. Safe to call more than once.
func (p *Pacemaker) Stop() {
	p.once.Do(func() {
		close(p.stop)
	})
}

func (p *Pacemaker) pace() error {
	ctx, cancel := context.WithTimeout(context.Background(), p.Heartrate)
	defer cancel()

	return p.Pace(ctx)
}

func (p *Pacemaker) start() error {
	atomic.StoreInt32(&p.missed, 0)

	threshold := p.MissThreshold
	if threshold <= 0 {
		threshold = 2
	}

	tick := time.NewTicker(p.Heartrate)
	defer tick.Stop()

	p.Echo()

	for {
		if err := p.pace(); err != nil {
			return errors.Wrap(err, "failed to send heartbeat")
		}

		p.SentBeat.Set(time.Now())

		select {
		case <-p.stop:
			return nil
		case <-tick.C:
		}

		if p.lastBeatLate() {
			if atomic.AddInt32(&p.missed, 1) >= int32(threshold) {
				return ErrDead
			}
		}
	}
}

// StartAsync starts the pacemaker in its own goroutine, returning a
// channel that receives exactly once: the error start() returned (nil
// on a clean Stop). The optional WaitGroup is released when that
// goroutine exits.
func (p *Pacemaker) StartAsync(wg *sync.WaitGroup) (death chan error) {
	p.death = make(chan error, 1)
	p.stop = make(chan struct{})
	p.once = sync.Once{}

	if wg != nil {
		wg.Add(1)
	}

	go func() {
		p.death <- p.start()
		Debug("pacemaker stopped")

		if wg != nil {
			wg.Done()
		}
	}()

	return p.death
}
