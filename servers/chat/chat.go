// Package chat is the demo chat back-tier node grounding spec §8's
// end-to-end scenario 1: a client's RpcMessageFRequest addressed to
// server_type "chat" arrives here as a forwarded RpcForwardMessageBRequest
// and is echoed straight back.
package chat

import (
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/server"
	"github.com/lcx/pantyhose/session"
)

// Server embeds the shared server.Base and adds exactly one business
// handler; everything else (transport, sessions, rpc stack, cluster
// registration) comes from Base unchanged.
type Server struct {
	*server.Base
}

// New builds a chat Server. Handler registration happens here, before
// Init/LateInit are ever called, so there is no window where a forwarded
// request could arrive at an unregistered dispatcher.
func New(cfg server.NodeConfig) *Server {
	s := &Server{Base: server.NewBase(cfg)}
	s.BackDisp.Register(message.MsgIDChatEchoBRequest, s.handleEcho)
	return s
}

func (s *Server) handleEcho(back *session.BackSession, frontSessionID uint64, inner message.Message) (uint32, []byte, error) {
	req := inner.(*message.ChatEchoBRequest)
	resp := &message.ChatEchoBResponse{Text: req.Text}
	payload, err := resp.Marshal()
	if err != nil {
		return 0, nil, err
	}
	return message.MsgIDChatEchoBResponse, payload, nil
}
