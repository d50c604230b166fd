// Package server implements spec §4.10's ServerTrait lifecycle and the
// single-threaded cooperative driver loop spec §5 requires: one
// goroutine reads transport.Engine's Frames()/Events() channels and a
// timer tick in a select loop, so every session/router/dispatcher access
// below it needs no locking on the hot path.
package server

import (
	"time"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/metrics"
	"github.com/lcx/pantyhose/rpc"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

// Trait is spec §4.10's ServerTrait: every server kind (chat, session,
// master) implements it; cmd/pantyhose's main calls each method in order.
type Trait interface {
	Init(serverID uint32) error
	LateInit() error
	Run(stop <-chan struct{})
	Dispose()
}

// TimerFunc is one periodic job the driver's timer wheel runs on its own
// tick, never spawning a goroutine (spec §5 "no locks on any hot path" —
// timer jobs run on the driver goroutine between frame/event handling).
type TimerFunc struct {
	Interval time.Duration
	Fn       func()
	last     time.Time
}

// Driver is the generic run-loop shared by every server kind: it owns the
// transport engine, the front/back session tables, the rpc stack, and a
// small timer wheel, and drains Frames()/Events() plus timers from one
// goroutine until told to stop.
type Driver struct {
	Engine     *transport.Engine
	Fronts     *session.FrontSessionManager
	Backs      *session.BackSessionManager
	Forward    *rpc.ForwardManager
	BackDisp   *rpc.MessageDispatcher
	Factory    *message.Factory

	OnFrontFrame func(front *session.FrontSession, frame transport.Frame)
	OnBackFrame  func(back *session.BackSession, frame transport.Frame)

	timers []*TimerFunc
	stop   chan struct{}
}

func NewDriver(engine *transport.Engine, fronts *session.FrontSessionManager, backs *session.BackSessionManager) *Driver {
	return &Driver{
		Engine: engine,
		Fronts: fronts,
		Backs:  backs,
		stop:   make(chan struct{}),
	}
}

// AddTimer registers a job the driver loop runs every interval, on-loop.
func (d *Driver) AddTimer(interval time.Duration, fn func()) {
	d.timers = append(d.timers, &TimerFunc{Interval: interval, Fn: fn, last: time.Time{}})
}

// Run is spec §4.10's `run()`: the single cooperative select loop. It
// blocks until Stop is called.
func (d *Driver) Run() {
	tick := time.NewTicker(100 * time.Millisecond)
	defer tick.Stop()

	for {
		select {
		case <-d.stop:
			return
		case ev, ok := <-d.Engine.Events():
			if !ok {
				return
			}
			d.handleEvent(ev)
		case delivery, ok := <-d.Engine.Frames():
			if !ok {
				return
			}
			d.handleFrame(delivery)
		case now := <-tick.C:
			d.runTimers(now)
		}
	}
}

// Stop ends Run's loop. It closes the stop channel, so a second call
// panics; Base.Run calls it exactly once, when its own stop signal fires.
func (d *Driver) Stop() { close(d.stop) }

func (d *Driver) handleEvent(ev transport.Event) {
	switch ev.Kind {
	case transport.EventConnected:
		switch ev.Listener {
		case transport.ListenerFrontTCP, transport.ListenerFrontWS:
			d.Fronts.Create(ev.Conn)
			metrics.IncrCounterWithGroup("server", "front_session_created_total", 1)
		case transport.ListenerBackTCP:
			d.Backs.OnAccept(ev.Conn)
			metrics.IncrCounterWithGroup("server", "back_session_pending_total", 1)
		}
	case transport.EventDisconnected:
		d.Fronts.RemoveByConnID(ev.ConnID)
		d.Backs.OnClose(ev.ConnID, ev.Reason)
		log.Info().Uint64("conn", ev.ConnID).Msg("driver: connection closed")
	}
}

func (d *Driver) handleFrame(delivery transport.Delivery) {
	if front, ok := d.Fronts.ByConnID(delivery.ConnID); ok {
		if d.OnFrontFrame != nil {
			d.OnFrontFrame(front, delivery.Frame)
		}
		return
	}
	// Not a known front session id; it must be a registered (or still
	// pending) back-session connection instead.
	if back, ok := d.Backs.ByConnID(delivery.ConnID); ok && d.OnBackFrame != nil {
		d.OnBackFrame(back, delivery.Frame)
		return
	}
	log.Warn().Uint64("conn", delivery.ConnID).Msg("driver: frame from unknown connection, dropping")
}

func (d *Driver) runTimers(now time.Time) {
	for _, t := range d.timers {
		if t.last.IsZero() || now.Sub(t.last) >= t.Interval {
			t.last = now
			t.Fn()
		}
	}
}
