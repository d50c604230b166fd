package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/transport"
)

// BackKey identifies a registered back-session (spec §3 BackSession).
type BackKey struct {
	ServerType string
	ServerID   uint32
}

func (k BackKey) String() string { return fmt.Sprintf("%s:%d", k.ServerType, k.ServerID) }

// Role distinguishes which side dialed the TCP link.
type Role int

const (
	RoleInbound Role = iota
	RoleOutbound
)

// BackSession is a server-to-server link. Before registration it is
// pending and has no BackKey; on_register promotes it (spec §4.6).
type BackSession struct {
	Conn         transport.Connection
	Role         Role
	key          BackKey
	registered   bool
	acceptedAt   time.Time
}

func (s *BackSession) Key() (BackKey, bool) { return s.key, s.registered }

func (s *BackSession) Send(msgID uint32, payload []byte) error {
	return s.Conn.Send(msgID, payload)
}

// RegistrationTimeout is the spec §4.6 default pending-handshake deadline.
const RegistrationTimeout = 10 * time.Second

// BackSessionManager owns every server-to-server link of this process:
// pending (unregistered) handles plus the registered (server_type,
// server_id) → BackSession table (spec §4.6).
type BackSessionManager struct {
	mu        sync.RWMutex
	byKey     map[BackKey]*BackSession
	pending   map[uint64]*BackSession
	byConnID  map[uint64]*BackSession
	authKey   string
	onClose   func(key BackKey, reason error)
}

func NewBackSessionManager(authKey string) *BackSessionManager {
	return &BackSessionManager{
		byKey:    make(map[BackKey]*BackSession),
		pending:  make(map[uint64]*BackSession),
		byConnID: make(map[uint64]*BackSession),
		authKey:  authKey,
	}
}

// SetOnClose installs the callback invoked from OnClose, letting the
// cluster manager hear about every registered session going away without
// this package importing cluster (spec §4.6 on_close notifies the
// cluster manager).
func (m *BackSessionManager) SetOnClose(fn func(key BackKey, reason error)) {
	m.onClose = fn
}

// OnAccept registers a freshly accepted, not-yet-identified connection as
// pending, subject to RegistrationTimeout (spec §4.6 on_accept). The
// caller is responsible for actually enforcing the deadline (e.g. via the
// server driver's timer wheel) by calling ExpirePending.
func (m *BackSessionManager) OnAccept(conn transport.Connection) *BackSession {
	bs := &BackSession{Conn: conn, Role: RoleInbound, acceptedAt: time.Now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[conn.ID()] = bs
	m.byConnID[conn.ID()] = bs
	return bs
}

// OnDial registers an outbound connection this node initiated; it is
// promoted into byKey immediately since the dialer already knows the
// peer's identity from configuration, no handshake ambiguity to resolve.
func (m *BackSessionManager) OnDial(conn transport.Connection, key BackKey) *BackSession {
	bs := &BackSession{Conn: conn, Role: RoleOutbound, key: key, registered: true, acceptedAt: time.Now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byKey[key] = bs
	m.byConnID[conn.ID()] = bs
	return bs
}

// OnRegister promotes a pending handle once its registration request has
// been authenticated and validated for uniqueness (spec §4.6 on_register).
func (m *BackSessionManager) OnRegister(connID uint64, key BackKey, authKey string) (*BackSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if authKey != m.authKey {
		return nil, message.NewError(message.ErrorKindAuthFailed, fmt.Errorf("bad auth key"))
	}

	bs, ok := m.pending[connID]
	if !ok {
		return nil, message.NewError(message.ErrorKindProtocolError, fmt.Errorf("no pending session for conn %d", connID))
	}

	if existing, dup := m.byKey[key]; dup && existing.Conn.ID() != connID {
		return nil, message.NewError(message.ErrorKindDuplicateIdentity, fmt.Errorf("%s already registered", key))
	}

	delete(m.pending, connID)
	bs.key = key
	bs.registered = true
	m.byKey[key] = bs
	return bs, nil
}

// ExpirePending closes every pending handle accepted longer ago than
// RegistrationTimeout with a RegistrationTimeout error (spec §4.6).
func (m *BackSessionManager) ExpirePending() {
	m.mu.RLock()
	var expired []*BackSession
	cutoff := time.Now().Add(-RegistrationTimeout)
	for _, bs := range m.pending {
		if bs.acceptedAt.Before(cutoff) {
			expired = append(expired, bs)
		}
	}
	m.mu.RUnlock()

	for _, bs := range expired {
		err := message.NewError(message.ErrorKindRegistrationTimeout, fmt.Errorf("handshake not completed within %s", RegistrationTimeout))
		log.Warn().Uint64("conn", bs.Conn.ID()).Msg("back-session registration timed out")
		bs.Conn.Close(err)
		m.OnClose(bs.Conn.ID(), err)
	}
}

// Get returns the registered session for key, if live.
func (m *BackSessionManager) Get(key BackKey) (*BackSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.byKey[key]
	return bs, ok
}

// ByConnID returns the (pending or registered) session owning connID, for
// the driver loop to map an inbound Delivery back to its BackSession.
func (m *BackSessionManager) ByConnID(connID uint64) (*BackSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	bs, ok := m.byConnID[connID]
	return bs, ok
}

// IterByType returns every registered session of serverType.
func (m *BackSessionManager) IterByType(serverType string) []*BackSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*BackSession
	for k, bs := range m.byKey {
		if k.ServerType == serverType {
			out = append(out, bs)
		}
	}
	return out
}

// OnClose removes the session owning connID (pending or registered) and
// notifies the cluster manager via the installed callback.
func (m *BackSessionManager) OnClose(connID uint64, reason error) {
	m.mu.Lock()
	bs, ok := m.byConnID[connID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byConnID, connID)
	delete(m.pending, connID)
	var key BackKey
	hadKey := bs.registered
	if hadKey {
		key = bs.key
		if cur, ok := m.byKey[key]; ok && cur == bs {
			delete(m.byKey, key)
		}
	}
	m.mu.Unlock()

	if hadKey && m.onClose != nil {
		m.onClose(key, reason)
	}
}
