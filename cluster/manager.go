package cluster

import (
	"sync"
	"time"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/metrics"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

// Manager runs on every non-master node: it holds the single back-session
// to the master, drives the registration handshake on each (re)connect,
// sends periodic heartbeats, and keeps the advisory fleet view spec §4.9
// says is "updated solely via the notify stream".
type Manager struct {
	serverType string
	serverID   uint32
	authorKey  string
	endpoints  map[string]string

	mu     sync.RWMutex
	master *session.BackSession
	view   map[session.BackKey]message.ClusterNode
}

func NewManager(serverType string, serverID uint32, authorKey string, endpoints map[string]string) *Manager {
	return &Manager{
		serverType: serverType,
		serverID:   serverID,
		authorKey:  authorKey,
		endpoints:  endpoints,
		view:       make(map[session.BackKey]message.ClusterNode),
	}
}

// OnConnect is the transport.DialingClient callback: wrap conn as a
// BackSession against the master's well-known identity and re-run the
// registration handshake (spec §4.2 "each successful dial re-runs the
// registration handshake").
func (m *Manager) OnConnect(backs *session.BackSessionManager, conn transport.Connection) {
	bs := backs.OnDial(conn, session.BackKey{ServerType: "master", ServerID: 0})
	m.mu.Lock()
	m.master = bs
	m.mu.Unlock()

	req := &message.NodeRegisterBRequest{
		ClientToken: m.authorKey,
		ServerType:  m.serverType,
		ServerID:    m.serverID,
		Endpoints:   m.endpoints,
	}
	payload, err := req.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("cluster manager: failed to marshal registration request")
		return
	}
	if err := bs.Send(message.MsgIDNodeRegisterBRequest, payload); err != nil {
		log.Warn().Err(err).Msg("cluster manager: registration request send failed")
	}
}

// HandleRegisterResponse processes the master's answer, replacing the
// fleet view wholesale on success.
func (m *Manager) HandleRegisterResponse(resp *message.NodeRegisterBResponse) {
	if !resp.OK {
		log.Error().Str("reason", resp.Reason).Msg("cluster manager: registration rejected by master")
		metrics.IncrCounterWithGroup("cluster", "register_rejected_total", 1)
		return
	}

	view := make(map[session.BackKey]message.ClusterNode, len(resp.ClusterView))
	for _, n := range resp.ClusterView {
		view[session.BackKey{ServerType: n.ServerType, ServerID: n.ServerID}] = n
	}
	m.mu.Lock()
	m.view = view
	m.mu.Unlock()

	log.Info().Int("nodes", len(view)).Msg("cluster manager: registered, fleet view received")
	metrics.IncrCounterWithGroup("cluster", "register_success_total", 1)
}

// HandleNodeJoined adds one node to the advisory fleet view.
func (m *Manager) HandleNodeJoined(n *message.NodeJoinedBNotify) {
	key := session.BackKey{ServerType: n.ServerType, ServerID: n.ServerID}
	m.mu.Lock()
	m.view[key] = message.ClusterNode{ServerType: n.ServerType, ServerID: n.ServerID, Endpoint: n.Endpoint, Role: "inbound"}
	m.mu.Unlock()
	log.Info().Str("server_type", n.ServerType).Uint32("server_id", n.ServerID).Msg("cluster manager: node joined")
}

// HandleNodeLeft removes one node from the advisory fleet view.
func (m *Manager) HandleNodeLeft(n *message.NodeLeftBNotify) {
	key := session.BackKey{ServerType: n.ServerType, ServerID: n.ServerID}
	m.mu.Lock()
	delete(m.view, key)
	m.mu.Unlock()
	log.Warn().Str("server_type", n.ServerType).Uint32("server_id", n.ServerID).Msg("cluster manager: node left")
}

// FleetView returns a snapshot of every node known via the notify stream.
func (m *Manager) FleetView() []message.ClusterNode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]message.ClusterNode, 0, len(m.view))
	for _, n := range m.view {
		out = append(out, n)
	}
	return out
}

// SendHeartbeat fires one HeartbeatBNotify to the master; intended to be
// called every HeartbeatInterval by the server driver's timer wheel.
func (m *Manager) SendHeartbeat() {
	m.mu.RLock()
	master := m.master
	m.mu.RUnlock()
	if master == nil {
		return
	}
	payload, err := (&message.HeartbeatBNotify{ServerType: m.serverType, ServerID: m.serverID}).Marshal()
	if err != nil {
		log.Error().Err(err).Msg("cluster manager: failed to marshal heartbeat")
		return
	}
	if err := master.Send(message.MsgIDHeartbeatBNotify, payload); err != nil {
		log.Warn().Err(err).Msg("cluster manager: heartbeat send failed")
	}
}

// HeartbeatLoop runs SendHeartbeat every HeartbeatInterval until stop is
// closed. Kept as an optional convenience for servers that do not already
// have a timer wheel wired in; server.Driver prefers registering
// SendHeartbeat directly against its own timer wheel instead.
func (m *Manager) HeartbeatLoop(stop <-chan struct{}) {
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.SendHeartbeat()
		}
	}
}
