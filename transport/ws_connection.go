package transport

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/metrics"
)

// wsUpgrader is shared across every accepted WebSocket connection; origin
// checking is deliberately permissive since the cluster's front-facing
// listeners sit behind whatever reverse proxy the deployment fronts them
// with (spec §4.2 leaves origin policy to the operator).
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsConn is a Connection over a gorilla/websocket connection, restricted
// to binary frames: spec §4.2 says a WS transport carries exactly the
// same [msg_id][len][payload] wire format as TCP, just inside binary
// frames. A text message is a protocol violation and closes the
// connection; ping, pong and close control frames are handled by
// gorilla/websocket's default handlers (a close frame ends the read loop
// with an error).
type wsConn struct {
	id         uint64
	conn       *websocket.Conn
	width      LengthWidth
	maxPayload int
	queue      *outboundQueue
	done       chan struct{}
	engine     *Engine
}

func newWSConn(engine *Engine, conn *websocket.Conn, width LengthWidth, maxPayload int) *wsConn {
	conn.SetReadLimit(int64(maxPayload) + int64(HeaderSize(width)))
	return &wsConn{
		id:         allocConnID(),
		conn:       conn,
		width:      width,
		maxPayload: maxPayload,
		queue:      newOutboundQueue(SendBufferBytes),
		done:       make(chan struct{}),
		engine:     engine,
	}
}

func (c *wsConn) ID() uint64         { return c.id }
func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

func (c *wsConn) Send(msgID uint32, payload []byte) error {
	if len(payload) > c.maxPayload {
		return message.NewError(message.ErrorKindProtocolError, errOversizeFrame(len(payload), c.maxPayload))
	}
	return c.queue.push(Encode(c.width, msgID, payload))
}

func (c *wsConn) Close(reason error) {
	select {
	case <-c.done:
		return
	default:
		close(c.done)
	}
	_ = c.conn.Close()
	logClose("ws", c.id, reason)
	metrics.IncrCounterWithGroup("transport", "ws_conn_closed_total", 1)
	c.engine.emitEvent(Event{ConnID: c.id, Kind: EventDisconnected, Reason: reason})
}

func (c *wsConn) serve() {
	go c.writeLoop()
	go c.readLoop()
}

func (c *wsConn) writeLoop() {
	for {
		b, ok := c.queue.pop()
		if !ok {
			select {
			case <-c.done:
				return
			case <-c.queue.notify:
				continue
			}
		}
		if err := c.conn.WriteMessage(websocket.BinaryMessage, b); err != nil {
			c.Close(err)
			return
		}
	}
}

func (c *wsConn) readLoop() {
	buf := NewDynamicBuffer(4096, 4096)
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			c.Close(err)
			return
		}
		if kind != websocket.BinaryMessage {
			c.Close(message.NewError(message.ErrorKindProtocolError, errNonBinaryWSFrame))
			return
		}

		buf.WriteSlice(data)
		for {
			frame, ok, err := TryFrame(buf, c.width, c.maxPayload)
			if err != nil {
				c.Close(err)
				return
			}
			if !ok {
				break
			}
			metrics.IncrCounterWithGroup("transport", "frames_received_total", 1)
			c.engine.emitDelivery(Delivery{ConnID: c.id, Frame: frame})
		}
	}
}

var errNonBinaryWSFrame = &queueError{"websocket transport only accepts binary frames"}
