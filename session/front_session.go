package session

import (
	"sync"
	"sync/atomic"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/transport"
)

// GroupID names a broadcast bucket (spec §4.5 FrontSessionGroup).
type GroupID string

// FrontSession is a client-facing session: exactly one connection, a
// process-unique id, and the sticky routing metadata consulted by the
// router on every RPC resolve (spec §3 FrontSession).
type FrontSession struct {
	ID       uint64
	Conn     transport.Connection
	Meta     *Metadata
	groups   map[GroupID]struct{}
	groupsMu sync.Mutex
}

func newFrontSession(id uint64, conn transport.Connection) *FrontSession {
	return &FrontSession{
		ID:     id,
		Conn:   conn,
		Meta:   newMetadata(),
		groups: make(map[GroupID]struct{}),
	}
}

// Send writes a framed message to the session's connection and returns
// the connection's error (backpressure or peer gone) unchanged; Broadcast
// is what logs such a failure and drops the session instead of
// propagating it (spec §4.5's broadcast contract).
func (s *FrontSession) Send(msgID uint32, payload []byte) error {
	return s.Conn.Send(msgID, payload)
}

// FrontSessionManager is the client-facing session table (spec §4.5):
// id allocation, lookup, group membership, and best-effort broadcast.
// It is touched only by the owning server's single driver task per spec
// §5 — no internal locking beyond what's needed to let the transport
// engine's I/O goroutines hand events off safely.
type FrontSessionManager struct {
	mu       sync.RWMutex
	nextID   uint64
	byID     map[uint64]*FrontSession
	byConnID map[uint64]*FrontSession
	groups   map[GroupID]map[uint64]struct{}
}

func NewFrontSessionManager() *FrontSessionManager {
	return &FrontSessionManager{
		byID:     make(map[uint64]*FrontSession),
		byConnID: make(map[uint64]*FrontSession),
		groups:   make(map[GroupID]map[uint64]struct{}),
	}
}

// Create allocates a new front_session_id and registers the session,
// indexed both by that id and by the connection's own transport-wide id
// (the two are independent counters — the driver's frame-delivery path
// only ever knows the latter, see ByConnID).
func (m *FrontSessionManager) Create(conn transport.Connection) *FrontSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := atomic.AddUint64(&m.nextID, 1)
	fs := newFrontSession(id, conn)
	m.byID[id] = fs
	m.byConnID[conn.ID()] = fs
	return fs
}

// Get returns the session for front_session_id, if live.
func (m *FrontSessionManager) Get(id uint64) (*FrontSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs, ok := m.byID[id]
	return fs, ok
}

// ByConnID returns the session owning the transport connection id connID,
// the lookup the driver's frame-delivery path actually needs: Delivery
// carries the connection's own id, a separate counter from front_session_id.
func (m *FrontSessionManager) ByConnID(connID uint64) (*FrontSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fs, ok := m.byConnID[connID]
	return fs, ok
}

// Remove drops a session from the table and every group it belonged to,
// and closes its connection (spec §4.5 Remove).
func (m *FrontSessionManager) Remove(id uint64) {
	m.mu.Lock()
	fs, ok := m.byID[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byID, id)
	delete(m.byConnID, fs.Conn.ID())
	for g := range fs.groups {
		delete(m.groups[g], id)
	}
	m.mu.Unlock()

	fs.Conn.Close(nil)
}

// RemoveByConnID drops a session looked up by its transport connection id
// rather than its front_session_id — the shape the driver's disconnect
// event handler needs (spec §4.5, mirrors BackSessionManager.OnClose).
func (m *FrontSessionManager) RemoveByConnID(connID uint64) {
	m.mu.RLock()
	fs, ok := m.byConnID[connID]
	m.mu.RUnlock()
	if !ok {
		return
	}
	m.Remove(fs.ID)
}

// Join adds a session to a broadcast group.
func (m *FrontSessionManager) Join(id uint64, group GroupID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fs, ok := m.byID[id]
	if !ok {
		return
	}
	if m.groups[group] == nil {
		m.groups[group] = make(map[uint64]struct{})
	}
	m.groups[group][id] = struct{}{}
	fs.groupsMu.Lock()
	fs.groups[group] = struct{}{}
	fs.groupsMu.Unlock()
}

// Broadcast sends msgID/payload to every member of group, best-effort:
// a per-session send failure is logged and that session is marked for
// removal, never propagated to the caller (spec §4.5/§5).
func (m *FrontSessionManager) Broadcast(group GroupID, msgID uint32, payload []byte) {
	m.mu.RLock()
	members := make([]uint64, 0, len(m.groups[group]))
	for id := range m.groups[group] {
		members = append(members, id)
	}
	m.mu.RUnlock()

	var dead []uint64
	for _, id := range members {
		fs, ok := m.Get(id)
		if !ok {
			continue
		}
		if err := fs.Send(msgID, payload); err != nil {
			log.Warn().Uint64("front_session", id).Err(err).Msg("broadcast send failed, dropping session")
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		m.Remove(id)
	}
}

// SetMeta records the sticky server_id chosen for serverType on session id.
func (m *FrontSessionManager) SetMeta(id uint64, serverType string, serverID uint32) {
	if fs, ok := m.Get(id); ok {
		fs.Meta.Set(serverType, serverID)
	}
}

// GetMeta returns the sticky server_id for serverType on session id.
func (m *FrontSessionManager) GetMeta(id uint64, serverType string) (uint32, bool) {
	fs, ok := m.Get(id)
	if !ok {
		return 0, false
	}
	return fs.Meta.Get(serverType)
}

// Count returns the number of live front sessions.
func (m *FrontSessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID)
}
