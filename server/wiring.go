package server

import (
	"github.com/lcx/pantyhose/cluster"
	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/rpc"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

// FrontFrameRouter decodes front-tier frames by msg_id and dispatches to
// whichever business handler is registered for it. Every server kind that
// exposes a front listener wires spec §4.8's RpcMessageFRequest/Notify
// pair into ForwardManager through WireFrontForward below.
type FrontFrameRouter struct {
	handlers map[uint32]func(*session.FrontSession, []byte)
}

func NewFrontFrameRouter() *FrontFrameRouter {
	return &FrontFrameRouter{handlers: make(map[uint32]func(*session.FrontSession, []byte))}
}

func (r *FrontFrameRouter) Register(msgID uint32, h func(*session.FrontSession, []byte)) {
	r.handlers[msgID] = h
}

func (r *FrontFrameRouter) Dispatch(front *session.FrontSession, frame transport.Frame) {
	h, ok := r.handlers[frame.MsgID]
	if !ok {
		log.Warn().Uint32("msg_id", frame.MsgID).Uint64("front_session", front.ID).Msg("front router: no handler, dropping frame")
		return
	}
	h(front, frame.Payload)
}

// WireFrontForward registers the RpcMessageFRequest/Notify family onto r,
// routing both into fm (spec §4.8 ingress).
func WireFrontForward(r *FrontFrameRouter, fm *rpc.ForwardManager) {
	r.Register(message.MsgIDRpcMessageFRequest, func(front *session.FrontSession, payload []byte) {
		req := &message.RpcMessageFRequest{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("front router: bad RpcMessageFRequest")
			return
		}
		fm.HandleRpcMessageFRequest(front, req)
	})
	r.Register(message.MsgIDRpcMessageFNotify, func(front *session.FrontSession, payload []byte) {
		req := &message.RpcMessageFNotify{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("front router: bad RpcMessageFNotify")
			return
		}
		fm.HandleRpcMessageFNotify(front, req)
	})
}

// BackFrameRouter is the back-tier equivalent: every server kind wires
// whichever subset of {forward, registration, heartbeat} messages apply
// to its role (every node wires forward; only the master wires
// registration+heartbeat-receive; only non-master nodes wire the
// registration-response/join/left notify family).
type BackFrameRouter struct {
	handlers map[uint32]func(*session.BackSession, []byte)
}

func NewBackFrameRouter() *BackFrameRouter {
	return &BackFrameRouter{handlers: make(map[uint32]func(*session.BackSession, []byte))}
}

func (r *BackFrameRouter) Register(msgID uint32, h func(*session.BackSession, []byte)) {
	r.handlers[msgID] = h
}

func (r *BackFrameRouter) Dispatch(back *session.BackSession, frame transport.Frame) {
	h, ok := r.handlers[frame.MsgID]
	if !ok {
		log.Warn().Uint32("msg_id", frame.MsgID).Msg("back router: no handler, dropping frame")
		return
	}
	h(back, frame.Payload)
}

// WireBackForward registers spec §4.8's back-tier forward family.
func WireBackForward(r *BackFrameRouter, fm *rpc.ForwardManager) {
	r.Register(message.MsgIDRpcForwardMessageBRequest, func(back *session.BackSession, payload []byte) {
		req := &message.RpcForwardMessageBRequest{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad RpcForwardMessageBRequest")
			return
		}
		fm.HandleRpcForwardMessageBRequest(back, req)
	})
	r.Register(message.MsgIDRpcForwardMessageBNotify, func(back *session.BackSession, payload []byte) {
		req := &message.RpcForwardMessageBNotify{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad RpcForwardMessageBNotify")
			return
		}
		fm.HandleRpcForwardMessageBNotify(back, req)
	})
	r.Register(message.MsgIDRpcForwardMessageBResponse, func(_ *session.BackSession, payload []byte) {
		resp := &message.RpcForwardMessageBResponse{}
		if err := resp.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad RpcForwardMessageBResponse")
			return
		}
		fm.HandleRpcForwardMessageBResponse(resp)
	})
}

// WireMaster registers the registration/heartbeat family the master node
// listens for on every accepted back connection (spec §4.9 steps 1-4).
func WireMaster(r *BackFrameRouter, m *cluster.Master) {
	r.Register(message.MsgIDNodeRegisterBRequest, func(back *session.BackSession, payload []byte) {
		req := &message.NodeRegisterBRequest{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad NodeRegisterBRequest")
			return
		}
		m.HandleRegister(back, req)
	})
	r.Register(message.MsgIDHeartbeatBNotify, func(_ *session.BackSession, payload []byte) {
		req := &message.HeartbeatBNotify{}
		if err := req.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad HeartbeatBNotify")
			return
		}
		m.HandleHeartbeat(req)
	})
}

// WireClusterManager registers the registration-response/join/left family
// every non-master node listens for on its standing link to the master.
func WireClusterManager(r *BackFrameRouter, cm *cluster.Manager) {
	r.Register(message.MsgIDNodeRegisterBResponse, func(_ *session.BackSession, payload []byte) {
		resp := &message.NodeRegisterBResponse{}
		if err := resp.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad NodeRegisterBResponse")
			return
		}
		cm.HandleRegisterResponse(resp)
	})
	r.Register(message.MsgIDNodeJoinedBNotify, func(_ *session.BackSession, payload []byte) {
		n := &message.NodeJoinedBNotify{}
		if err := n.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad NodeJoinedBNotify")
			return
		}
		cm.HandleNodeJoined(n)
	})
	r.Register(message.MsgIDNodeLeftBNotify, func(_ *session.BackSession, payload []byte) {
		n := &message.NodeLeftBNotify{}
		if err := n.Unmarshal(payload); err != nil {
			log.Warn().Err(err).Msg("back router: bad NodeLeftBNotify")
			return
		}
		cm.HandleNodeLeft(n)
	})
}
