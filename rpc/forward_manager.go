package rpc

import (
	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/session"
)

// ForwardManager is the spec §4.8 state machine: the stateless transit
// function wrapping a client's RpcMessageFRequest into a backend
// RpcForwardMessageBRequest and threading the RpcForwardMessageBResponse
// back to the originating front session. Grounded on
// original_source/src/framework/rpc/forward_manager.rs, which wires
// exactly these five handlers; Go's single-owner struct references stand
// in for the original's unsafe raw-pointer aliasing (ForwardManagerPtr),
// no unsafe needed since everything here runs on one driver goroutine.
type ForwardManager struct {
	rpc        *Manager
	fronts     *session.FrontSessionManager
	dispatcher *MessageDispatcher
	factory    *message.Factory
}

func NewForwardManager(rpcMgr *Manager, fronts *session.FrontSessionManager, dispatcher *MessageDispatcher, factory *message.Factory) *ForwardManager {
	return &ForwardManager{rpc: rpcMgr, fronts: fronts, dispatcher: dispatcher, factory: factory}
}

// HandleRpcMessageFRequest is spec §4.8's front-node ingress state
// machine: resolve a back-session for req.ServerType, wrap the call, and
// forward it. On NoRoute, answer the client directly with a synthetic
// error response rather than propagating an error upward (spec §7).
func (fm *ForwardManager) HandleRpcMessageFRequest(front *session.FrontSession, req *message.RpcMessageFRequest) {
	back, ok := fm.rpc.Resolve(front, req.ServerType)
	if !ok {
		fm.replyError(front, req.MsgUniqueID, message.ErrorKindNoRoute)
		return
	}

	fwd := &message.RpcForwardMessageBRequest{
		MsgUniqueID:    req.MsgUniqueID,
		FrontSessionID: front.ID,
		Meta:           front.Meta.Snapshot(),
		TargetMsgID:    req.TargetMsgID,
		Message:        req.Message,
	}
	payload, err := fwd.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal RpcForwardMessageBRequest")
		fm.replyError(front, req.MsgUniqueID, message.ErrorKindDecodeFailed)
		return
	}
	if err := back.Send(message.MsgIDRpcForwardMessageBRequest, payload); err != nil {
		log.Warn().Uint64("front_session", front.ID).Err(err).Msg("forward manager: send to back-session failed")
		fm.replyError(front, req.MsgUniqueID, message.ErrorKindPeerGone)
	}
}

// HandleRpcMessageFNotify mirrors HandleRpcMessageFRequest with no reply
// expected; NoRoute and send failures are logged and silently dropped.
func (fm *ForwardManager) HandleRpcMessageFNotify(front *session.FrontSession, req *message.RpcMessageFNotify) {
	back, ok := fm.rpc.Resolve(front, req.ServerType)
	if !ok {
		log.Warn().Str("server_type", req.ServerType).Msg("forward manager: no route for notify, dropping")
		return
	}
	fwd := &message.RpcForwardMessageBNotify{
		MsgUniqueID:    req.MsgUniqueID,
		FrontSessionID: front.ID,
		Meta:           front.Meta.Snapshot(),
		TargetMsgID:    req.TargetMsgID,
		Message:        req.Message,
	}
	payload, err := fwd.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal RpcForwardMessageBNotify")
		return
	}
	if err := back.Send(message.MsgIDRpcForwardMessageBNotify, payload); err != nil {
		log.Warn().Uint64("front_session", front.ID).Err(err).Msg("forward manager: notify send failed")
	}
}

// HandleRpcForwardMessageBRequest is spec §4.8's back-node target state
// machine: decode the inner message, dispatch to the registered handler,
// and send the reply back on the same back-session.
func (fm *ForwardManager) HandleRpcForwardMessageBRequest(back *session.BackSession, req *message.RpcForwardMessageBRequest) {
	inner, err := fm.factory.Decode(req.TargetMsgID, req.Message)
	if err != nil {
		fm.replyForwardError(back, req.MsgUniqueID, req.FrontSessionID, req.Meta, message.KindOf(err))
		return
	}

	replyMsgID, replyPayload, err := fm.dispatcher.DispatchRequest(back, req.FrontSessionID, req.TargetMsgID, inner)
	if err != nil {
		log.Error().Uint32("msg_id", req.TargetMsgID).Err(err).Msg("forward manager: request handler failed")
		fm.replyForwardError(back, req.MsgUniqueID, req.FrontSessionID, req.Meta, message.KindOf(err))
		return
	}

	resp := &message.RpcForwardMessageBResponse{
		MsgUniqueID:    req.MsgUniqueID,
		FrontSessionID: req.FrontSessionID,
		Meta:           req.Meta,
		TargetMsgID:    replyMsgID,
		Message:        replyPayload,
	}
	payload, err := resp.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal RpcForwardMessageBResponse")
		return
	}
	if err := back.Send(message.MsgIDRpcForwardMessageBResponse, payload); err != nil {
		log.Warn().Err(err).Msg("forward manager: reply send failed")
	}
}

// HandleRpcForwardMessageBNotify mirrors the request path with no reply.
func (fm *ForwardManager) HandleRpcForwardMessageBNotify(back *session.BackSession, req *message.RpcForwardMessageBNotify) {
	inner, err := fm.factory.Decode(req.TargetMsgID, req.Message)
	if err != nil {
		log.Warn().Uint32("msg_id", req.TargetMsgID).Err(err).Msg("forward manager: notify decode failed, dropping")
		return
	}
	if err := fm.dispatcher.DispatchNotify(back, req.FrontSessionID, req.TargetMsgID, inner); err != nil {
		log.Warn().Uint32("msg_id", req.TargetMsgID).Err(err).Msg("forward manager: notify handler failed")
	}
}

// HandleRpcForwardMessageBResponse is spec §4.8's front-node egress step:
// look up the originating front session by front_session_id and deliver
// the reply; a missing session (client gone) is a silent drop with one
// warning log, never an error surfaced anywhere else (spec §4.8, §9
// cancellation note).
func (fm *ForwardManager) HandleRpcForwardMessageBResponse(resp *message.RpcForwardMessageBResponse) {
	front, ok := fm.fronts.Get(resp.FrontSessionID)
	if !ok {
		log.Warn().Uint64("front_session", resp.FrontSessionID).Msg("forward manager: response for gone front session, dropping")
		return
	}

	reply := &message.RpcMessageFResponse{
		MsgUniqueID: resp.MsgUniqueID,
		ErrKind:     resp.ErrKind,
		TargetMsgID: resp.TargetMsgID,
		Message:     resp.Message,
	}
	payload, err := reply.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal RpcMessageFResponse")
		return
	}
	if err := front.Send(message.MsgIDRpcMessageFResponse, payload); err != nil {
		log.Warn().Uint64("front_session", resp.FrontSessionID).Err(err).Msg("forward manager: client reply send failed")
	}
}

// replyError answers the client directly with a synthetic error response,
// used for NoRoute and any failure before a forward request is even sent.
func (fm *ForwardManager) replyError(front *session.FrontSession, msgUniqueID uint32, kind message.ErrorKind) {
	resp := &message.RpcMessageFResponse{MsgUniqueID: msgUniqueID, ErrKind: kind}
	payload, err := resp.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal synthetic error response")
		return
	}
	if err := front.Send(message.MsgIDRpcMessageFResponse, payload); err != nil {
		log.Warn().Uint64("front_session", front.ID).Err(err).Msg("forward manager: synthetic error reply send failed")
	}
}

// replyForwardError answers via the forward-response path when the
// failure happens on the back node, so the front node's egress step
// still sees a well-formed RpcForwardMessageBResponse to translate.
func (fm *ForwardManager) replyForwardError(back *session.BackSession, msgUniqueID uint32, frontSessionID uint64, meta map[string]string, kind message.ErrorKind) {
	resp := &message.RpcForwardMessageBResponse{
		MsgUniqueID:    msgUniqueID,
		FrontSessionID: frontSessionID,
		Meta:           meta,
		ErrKind:        kind,
	}
	payload, err := resp.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("forward manager: failed to marshal forward error response")
		return
	}
	if err := back.Send(message.MsgIDRpcForwardMessageBResponse, payload); err != nil {
		log.Warn().Err(err).Msg("forward manager: forward error reply send failed")
	}
}
