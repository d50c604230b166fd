// Package cluster implements spec §4.9: the master's registration and
// heartbeat state machine, and the non-master Manager that dials the
// master and maintains an advisory fleet view for the router.
package cluster

import (
	"fmt"
	"sync"
	"time"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/metrics"
	"github.com/lcx/pantyhose/session"
)

// HeartbeatInterval is the spec §4.9 cadence every node sends at.
const HeartbeatInterval = 5 * time.Second

// SuspectAfterMisses and EvictAfterMisses are spec §4.9's heartbeat
// thresholds (3 missed → suspect, 5 missed → evict + NodeLeftBNotify).
const (
	SuspectAfterMisses = 3
	EvictAfterMisses   = 5
)

// nodeState is the master's bookkeeping for one registered node, keyed by
// (server_type, server_id) via session.BackKey for reuse with the
// back-session table the master also keeps for send().
type nodeState struct {
	key          session.BackKey
	endpoint     string
	lastHeartbeat time.Time
	suspect      bool
}

// Master is spec §4.9's registration/heartbeat authority, run only on the
// one server whose configured server_type is "master". Grounded on the
// teacher's session/back-session model generalized to fleet-wide
// broadcast rather than a single forward path.
type Master struct {
	authorKey string
	backs     *session.BackSessionManager

	mu    sync.Mutex
	nodes map[session.BackKey]*nodeState
}

func NewMaster(authorKey string, backs *session.BackSessionManager) *Master {
	return &Master{
		authorKey: authorKey,
		backs:     backs,
		nodes:     make(map[session.BackKey]*nodeState),
	}
}

// HandleRegister implements spec §4.9 steps 1-4: validate, admit, answer
// with the current fleet view, and fan out NodeJoinedBNotify to the rest.
func (m *Master) HandleRegister(back *session.BackSession, req *message.NodeRegisterBRequest) {
	if req.ClientToken != m.authorKey {
		m.reject(back, "bad client token")
		return
	}
	if req.ServerType == "" {
		m.reject(back, "empty server_type")
		return
	}
	endpoint, ok := req.Endpoints["back_tcp"]
	if !ok || endpoint == "" {
		m.reject(back, "missing back_tcp endpoint")
		return
	}

	key := session.BackKey{ServerType: req.ServerType, ServerID: req.ServerID}

	m.mu.Lock()
	if _, dup := m.nodes[key]; dup {
		m.mu.Unlock()
		m.reject(back, fmt.Sprintf("server_id %d already registered for %s", req.ServerID, req.ServerType))
		return
	}
	m.mu.Unlock()

	// Promote the pending back-session into BackSessionManager's byKey
	// table so the router and broadcast() below can look it up by
	// BackKey, and so ExpirePending stops treating it as still pending
	// (spec §4.6's on_register).
	if _, err := m.backs.OnRegister(back.Conn.ID(), key, req.ClientToken); err != nil {
		m.reject(back, fmt.Sprintf("registration failed: %v", err))
		return
	}

	m.mu.Lock()
	view := m.viewLocked()
	m.nodes[key] = &nodeState{key: key, endpoint: endpoint, lastHeartbeat: time.Now()}
	m.mu.Unlock()

	resp := &message.NodeRegisterBResponse{OK: true, ClusterView: view}
	payload, err := resp.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("master: failed to marshal registration response")
		return
	}
	if err := back.Send(message.MsgIDNodeRegisterBResponse, payload); err != nil {
		log.Warn().Err(err).Msg("master: registration response send failed")
	}

	metrics.IncrCounterWithDimGroup("cluster", "node_registered_total", 1, metrics.Dimension{"server_type": req.ServerType})
	log.Info().Str("server_type", req.ServerType).Uint32("server_id", req.ServerID).Msg("master: node registered")

	m.broadcast(key, func(peer session.BackKey) ([]byte, error) {
		return (&message.NodeJoinedBNotify{ServerType: req.ServerType, ServerID: req.ServerID, Endpoint: endpoint}).Marshal()
	}, message.MsgIDNodeJoinedBNotify)
}

func (m *Master) reject(back *session.BackSession, reason string) {
	resp := &message.NodeRegisterBResponse{OK: false, Reason: reason}
	payload, err := resp.Marshal()
	if err == nil {
		_ = back.Send(message.MsgIDNodeRegisterBResponse, payload)
	}
	metrics.IncrCounterWithGroup("cluster", "node_register_rejected_total", 1)
	log.Warn().Str("reason", reason).Msg("master: rejecting registration")
	back.Conn.Close(message.NewError(message.ErrorKindAuthFailed, fmt.Errorf("%s", reason)))
}

func (m *Master) viewLocked() []message.ClusterNode {
	view := make([]message.ClusterNode, 0, len(m.nodes))
	for _, n := range m.nodes {
		view = append(view, message.ClusterNode{ServerType: n.key.ServerType, ServerID: n.key.ServerID, Endpoint: n.endpoint, Role: "inbound"})
	}
	return view
}

// HandleHeartbeat resets the missed-heartbeat state for the sender.
func (m *Master) HandleHeartbeat(req *message.HeartbeatBNotify) {
	key := session.BackKey{ServerType: req.ServerType, ServerID: req.ServerID}
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[key]
	if !ok {
		return
	}
	n.lastHeartbeat = time.Now()
	n.suspect = false
}

// CheckHeartbeats is invoked periodically (spec §4.10's driver-owned timer
// wheel) to mark nodes suspect after 3 missed beats and evict after 5,
// broadcasting NodeLeftBNotify on eviction.
func (m *Master) CheckHeartbeats() {
	now := time.Now()
	var evicted []session.BackKey

	m.mu.Lock()
	for key, n := range m.nodes {
		missed := int(now.Sub(n.lastHeartbeat) / HeartbeatInterval)
		switch {
		case missed >= EvictAfterMisses:
			delete(m.nodes, key)
			evicted = append(evicted, key)
		case missed >= SuspectAfterMisses:
			n.suspect = true
		}
	}
	m.mu.Unlock()

	for _, key := range evicted {
		log.Warn().Str("server_type", key.ServerType).Uint32("server_id", key.ServerID).Msg("master: evicting unresponsive node")
		metrics.IncrCounterWithDimGroup("cluster", "node_evicted_total", 1, metrics.Dimension{"server_type": key.ServerType})
		m.broadcast(key, func(peer session.BackKey) ([]byte, error) {
			return (&message.NodeLeftBNotify{ServerType: key.ServerType, ServerID: key.ServerID}).Marshal()
		}, message.MsgIDNodeLeftBNotify)
	}
}

// broadcast sends a notify built by build to every registered node other
// than exclude, best-effort (a send failure is logged, never aborts the
// fan-out).
func (m *Master) broadcast(exclude session.BackKey, build func(peer session.BackKey) ([]byte, error), msgID uint32) {
	m.mu.Lock()
	peers := make([]session.BackKey, 0, len(m.nodes))
	for key := range m.nodes {
		if key != exclude {
			peers = append(peers, key)
		}
	}
	m.mu.Unlock()

	for _, peer := range peers {
		bs, ok := m.backs.Get(peer)
		if !ok {
			continue
		}
		payload, err := build(peer)
		if err != nil {
			log.Error().Err(err).Msg("master: failed to marshal fleet notify")
			continue
		}
		if err := bs.Send(msgID, payload); err != nil {
			log.Warn().Str("server_type", peer.ServerType).Uint32("server_id", peer.ServerID).Err(err).Msg("master: fleet notify send failed")
		}
	}
}
