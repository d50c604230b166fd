package transport

import (
	"sync"
	"sync/atomic"

	"github.com/lcx/pantyhose/log"
)

// EventKind distinguishes the two lifecycle events a Connection emits
// upward (spec §4.2): Connected and Disconnected(reason).
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
)

// Event is a lifecycle notification delivered on Engine.Events(). Conn is
// only populated on EventConnected (the driver needs the live Connection
// to hand to session.Create/OnAccept/OnDial); EventDisconnected carries
// just the id, since by then the connection is already closed.
type Event struct {
	ConnID uint64
	Kind   EventKind
	Reason error
	Conn     Connection
	Listener ListenerKind
}

// Delivery is a decoded frame delivered upward on Engine.Frames(), paired
// with the connection id it arrived on so the single driver goroutine can
// look up the owning session without touching connection internals.
type Delivery struct {
	ConnID uint64
	Frame  Frame
}

// Connection is what spec §4.2 calls a Connection: send, close, and an
// upward delivery of frames/lifecycle events. The network engine is the
// only thing that holds concrete *tcpConn/*wsConn/*tcpClientConn values;
// everything above it (sessions, routers, the driver loop) only ever sees
// this interface plus the ids threaded through Delivery/Event.
type Connection interface {
	ID() uint64
	Send(msgID uint32, payload []byte) error
	Close(reason error)
	RemoteAddr() string
}

// SendBufferBytes is the spec §5 default bounded per-connection outbound
// queue capacity (64 KiB of queued bytes).
const SendBufferBytes = 64 * 1024

// outboundQueue is the shared per-connection backpressure primitive used
// by every Connection implementation, modeled directly on the teacher's
// tcpctx.sendCh + non-blocking select/default (net/tcp_transport.go).
// Queuing is tracked in bytes rather than message count so the 64 KiB
// budget in spec §5 is honored regardless of message size.
type outboundQueue struct {
	mu      sync.Mutex
	items   [][]byte
	queued  int64
	closed  bool
	notify  chan struct{}
	maxSize int64
}

func newOutboundQueue(maxSize int64) *outboundQueue {
	if maxSize <= 0 {
		maxSize = SendBufferBytes
	}
	return &outboundQueue{notify: make(chan struct{}, 1), maxSize: maxSize}
}

var errSendBackpressure = &queueError{"send channel is full"}
var errPeerGone = &queueError{"connection is closed"}

type queueError struct{ msg string }

func (e *queueError) Error() string { return e.msg }

func (q *outboundQueue) push(b []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return errPeerGone
	}
	if q.queued+int64(len(b)) > q.maxSize {
		return errSendBackpressure
	}
	q.items = append(q.items, b)
	q.queued += int64(len(b))
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *outboundQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	b := q.items[0]
	q.items = q.items[1:]
	q.queued -= int64(len(b))
	return b, true
}

func (q *outboundQueue) closeQueue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// nextConnID is the process-wide monotonic connection id allocator shared
// by every transport variant.
var nextConnID uint64

func allocConnID() uint64 {
	return atomic.AddUint64(&nextConnID, 1)
}

func logClose(kind string, id uint64, reason error) {
	if reason != nil {
		log.Warn().Str("transport", kind).Uint64("conn", id).Err(reason).Msg("connection closed")
	} else {
		log.Info().Str("transport", kind).Uint64("conn", id).Msg("connection closed")
	}
}
