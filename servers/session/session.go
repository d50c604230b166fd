// Package session is the demo session back-tier node: a minimal ping
// handler supplementing the original's session/login scope beyond the
// pure forwarding plumbing (SPEC_FULL.md §12).
package session

import (
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/server"
	"github.com/lcx/pantyhose/session"
)

// Server embeds server.Base and adds the ping business handler.
type Server struct {
	*server.Base
}

func New(cfg server.NodeConfig) *Server {
	s := &Server{Base: server.NewBase(cfg)}
	s.BackDisp.Register(message.MsgIDSessionPingBRequest, s.handlePing)
	return s
}

func (s *Server) handlePing(back *session.BackSession, frontSessionID uint64, inner message.Message) (uint32, []byte, error) {
	req := inner.(*message.SessionPingBRequest)
	resp := &message.SessionPingBResponse{Nonce: req.Nonce}
	payload, err := resp.Marshal()
	if err != nil {
		return 0, nil, err
	}
	return message.MsgIDSessionPingBResponse, payload, nil
}
