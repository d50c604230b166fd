package server

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/rpc"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

type fakeConn struct {
	id   uint64
	sent [][]byte
}

var fakeConnIDs uint64

func newFakeConn() *fakeConn {
	return &fakeConn{id: atomic.AddUint64(&fakeConnIDs, 1)}
}

func (c *fakeConn) ID() uint64 { return c.id }
func (c *fakeConn) Send(msgID uint32, payload []byte) error {
	c.sent = append(c.sent, transport.Encode(transport.LengthWidth2, msgID, payload))
	return nil
}
func (c *fakeConn) Close(reason error) {}
func (c *fakeConn) RemoteAddr() string { return "127.0.0.1:0" }

func TestFrontFrameRouterDispatchesRegisteredHandler(t *testing.T) {
	r := NewFrontFrameRouter()
	var got uint32
	r.Register(5, func(front *session.FrontSession, payload []byte) { got = uint32(len(payload)) })

	fronts := session.NewFrontSessionManager()
	front := fronts.Create(newFakeConn())

	r.Dispatch(front, transport.Frame{MsgID: 5, Payload: []byte("abc")})
	require.Equal(t, uint32(3), got)
}

func TestFrontFrameRouterDropsUnregisteredMsgID(t *testing.T) {
	r := NewFrontFrameRouter()
	fronts := session.NewFrontSessionManager()
	front := fronts.Create(newFakeConn())

	// Must not panic for an unregistered id.
	r.Dispatch(front, transport.Frame{MsgID: 999, Payload: nil})
}

func TestWireFrontForwardRoutesRequestIntoForwardManager(t *testing.T) {
	fronts := session.NewFrontSessionManager()
	backs := session.NewBackSessionManager("secret")
	routers := rpc.NewRouterManager(backs)
	rpcMgr := rpc.NewManager(routers, backs)
	disp := rpc.NewMessageDispatcher()
	factory := message.NewFactory()
	fm := rpc.NewForwardManager(rpcMgr, fronts, disp, factory)

	backConn := newFakeConn()
	bs := backs.OnAccept(backConn)
	_, err := backs.OnRegister(backConn.ID(), session.BackKey{ServerType: "chat", ServerID: 1}, "secret")
	require.NoError(t, err)
	_ = bs

	front := fronts.Create(newFakeConn())
	r := NewFrontFrameRouter()
	WireFrontForward(r, fm)

	req := &message.RpcMessageFRequest{MsgUniqueID: 1, ServerType: "chat", TargetMsgID: message.MsgIDChatEchoBRequest}
	payload, err := req.Marshal()
	require.NoError(t, err)

	r.Dispatch(front, transport.Frame{MsgID: message.MsgIDRpcMessageFRequest, Payload: payload})

	require.Len(t, backConn.sent, 1)
}
