package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tbarrett/upswatch/internal/event"
	"github.com/tbarrett/upswatch/internal/status"
)

// Poller lifecycle states. The machine only moves forward: a stopped
// poller is never restarted, Connect builds a fresh one each cycle.
const (
	pollerIdle int32 = iota
	pollerRunning
	pollerStopped
)

// poller refreshes the session snapshot at a fixed interval and publishes
// the results. It never owns the protocol client; every round-trip goes
// through Session.Refresh.
type poller struct {
	session  *Session
	device   string
	interval time.Duration
	bus      *event.Bus
	logger   *zap.Logger

	state    atomic.Int32
	cancel   context.CancelFunc
	stopOnce sync.Once
	done     chan struct{}

	// prev is only touched by the poll goroutine.
	prev status.PowerState
}

func newPoller(s *Session, device string, interval time.Duration, initial status.PowerState, bus *event.Bus, logger *zap.Logger) *poller {
	return &poller{
		session:  s,
		device:   device,
		interval: interval,
		bus:      bus,
		logger:   logger,
		done:     make(chan struct{}),
		prev:     initial,
	}
}

// start spawns the poll goroutine. Must be called at most once.
func (p *poller) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state.Store(pollerRunning)
	go p.run(ctx)
}

// stop requests cancellation and blocks until the poll goroutine has
// exited. Cancellation is observed at the top of each tick; an in-flight
// round-trip is allowed to finish first.
func (p *poller) stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

func (p *poller) run(ctx context.Context) {
	defer func() {
		p.state.Store(pollerStopped)
		close(p.done)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// tick runs one refresh. Failures are reported and the loop keeps its
// fixed interval; a broken tick is treated as transient.
func (p *poller) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	if _, err := p.session.Refresh(ctx); err != nil {
		p.logger.Warn("poll tick failed",
			zap.String("device", p.device),
			zap.Error(err),
		)
		_ = p.bus.Publish(ctx, event.New(event.TopicPollError, "poller", PollErrorEvent{
			Device:  p.device,
			Message: err.Error(),
		}))
		return
	}

	st := p.session.Status()

	if st.Power != p.prev {
		p.logger.Info("power state changed",
			zap.String("device", p.device),
			zap.String("from", string(p.prev)),
			zap.String("to", string(st.Power)),
		)
		_ = p.bus.Publish(ctx, event.New(event.TopicPowerTransition, "poller", PowerTransitionEvent{
			Device: p.device,
			From:   p.prev,
			To:     st.Power,
		}))
		p.prev = st.Power
	}

	_ = p.bus.Publish(ctx, event.New(event.TopicStatusUpdated, "poller", StatusEvent{
		Device: p.device,
		Status: st,
	}))
}
