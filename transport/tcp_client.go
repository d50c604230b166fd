package transport

import (
	"context"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/metrics"
)

// ReconnectMinBackoff and ReconnectMaxBackoff are spec §4.2's outbound
// reconnect bounds: 500ms growing exponentially to 10s, ±20% jitter.
const (
	ReconnectMinBackoff = 500 * time.Millisecond
	ReconnectMaxBackoff = 10 * time.Second
)

// ClientConfig describes one outbound back-tier link this node redials
// for as long as the process runs (spec §4.2/§4.9: every node maintains a
// standing connection to every other server it talks to).
type ClientConfig struct {
	Addr       string
	Width      LengthWidth
	MaxPayload int
}

// DialingClient owns one reconnecting outbound TCP connection. OnConnect
// is invoked with the fresh Connection after every successful dial
// (including the first), letting the caller re-run the registration
// handshake each time per spec §4.6 ("registration is redone on every
// reconnect, not just the first"). OnConnect runs on the redial goroutine;
// it must not block.
type DialingClient struct {
	cfg       ClientConfig
	engine    *Engine
	onConnect func(Connection)
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewDialingClient(engine *Engine, cfg ClientConfig, onConnect func(Connection)) *DialingClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &DialingClient{cfg: cfg, engine: engine, onConnect: onConnect, ctx: ctx, cancel: cancel}
}

// Run blocks, redialing cfg.Addr with exponential backoff until Stop is
// called. Each successful connection is served until it drops, at which
// point Run resumes redialing.
func (d *DialingClient) Run() {
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		conn, err := d.dial()
		if err != nil {
			continue
		}

		tc := newTCPConn(d.engine, conn, d.cfg.Width, d.cfg.MaxPayload)
		tc.serve()
		metrics.IncrCounterWithGroup("transport", "outbound_connect_total", 1)
		d.engine.emitEvent(Event{ConnID: tc.ID(), Kind: EventConnected, Conn: tc, Listener: ListenerBackTCP})
		d.onConnect(tc)

		// Block until this connection's own read/write loop tears it down;
		// waiting on tc.ctx directly (rather than re-reading Engine.Events())
		// avoids racing the driver loop for the same event.
		<-tc.ctx.Done()
	}
}

func (d *DialingClient) dial() (net.Conn, error) {
	var conn net.Conn
	b := d.backoff()
	err := backoff.Retry(func() error {
		select {
		case <-d.ctx.Done():
			return backoff.Permanent(d.ctx.Err())
		default:
		}
		c, err := net.DialTimeout("tcp", d.cfg.Addr, 5*time.Second)
		if err != nil {
			log.Warn().Str("addr", d.cfg.Addr).Err(err).Msg("dialing client: dial failed, retrying")
			metrics.IncrCounterWithGroup("transport", "outbound_dial_error_total", 1)
			return err
		}
		conn = c
		return nil
	}, b)
	return conn, err
}

func (d *DialingClient) backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ReconnectMinBackoff
	b.MaxInterval = ReconnectMaxBackoff
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	return backoff.WithContext(b, d.ctx)
}

func (d *DialingClient) Stop() { d.cancel() }
