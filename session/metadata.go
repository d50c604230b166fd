// Package session implements spec §4.5/§4.6: the front-session and
// back-session managers that own every live connection of a server
// process, plus the sticky routing metadata threaded through RPC calls.
package session

import (
	"strconv"
	"sync"
)

// Metadata is a front-session's sticky routing map, server_type → the
// server_id it was last routed to (spec §3 FrontSessionMetaData). The
// router consults it first on every resolve and persists a fresh pick
// into it the first time a session is routed to a given type.
type Metadata struct {
	mu    sync.RWMutex
	byTyp map[string]uint32
}

func newMetadata() *Metadata {
	return &Metadata{byTyp: make(map[string]uint32)}
}

// Get returns the sticky server_id for serverType, if one was recorded.
func (m *Metadata) Get(serverType string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byTyp[serverType]
	return id, ok
}

// Set records the server_id a session was routed to for serverType.
func (m *Metadata) Set(serverType string, serverID uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byTyp[serverType] = serverID
}

// Clear drops the sticky binding for serverType, forcing the next
// resolve to pick a fresh instance. Closing a back-session does not
// call it; a binding is dropped only by an explicit Clear.
func (m *Metadata) Clear(serverType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byTyp, serverType)
}

// Snapshot copies the whole map, the shape RpcForwardMessageBRequest.Meta
// wants (spec §4.8 step 3: "meta: snapshot(fsid.meta)").
func (m *Metadata) Snapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.byTyp))
	for k, v := range m.byTyp {
		out[k] = strconv.FormatUint(uint64(v), 10)
	}
	return out
}
