package rpc

import (
	"fmt"

	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/session"
)

// Manager is the spec §4.7 RpcManager: resolves a front session to a
// BackSession for a target server_type, either via the sticky router
// (CallWithSession) or by bypassing routing entirely for control-plane
// traffic that must land on a specific instance (CallToServer), grounded
// on original_source/src/framework/rpc/rpc_manager.rs's
// call_with_session/call_to_server split.
type Manager struct {
	routers *RouterManager
	backs   *session.BackSessionManager
}

func NewManager(routers *RouterManager, backs *session.BackSessionManager) *Manager {
	return &Manager{routers: routers, backs: backs}
}

// Resolve implements spec §4.7's resolve(front_session, target_type):
// calls the router, persists a fresh pick into the front session's
// metadata, and returns the live BackSession or false if none exists.
func (m *Manager) Resolve(fs *session.FrontSession, targetType string) (*session.BackSession, bool) {
	return m.CallWithSession(fs.Meta, targetType)
}

// CallWithSession routes by front-session metadata (spec §4.7 resolve).
func (m *Manager) CallWithSession(meta *session.Metadata, targetType string) (*session.BackSession, bool) {
	serverID, ok := m.routers.Resolve(meta, targetType)
	if !ok {
		return nil, false
	}
	return m.backs.Get(session.BackKey{ServerType: targetType, ServerID: serverID})
}

// CallToServer routes directly to an explicit server_id, bypassing the
// router and any sticky metadata. Supplemented from the original's
// call_to_server: master/cluster control-plane traffic (e.g. heartbeats,
// targeted kicks) must not be subject to sticky-session routing.
func (m *Manager) CallToServer(serverType string, serverID uint32) (*session.BackSession, error) {
	bs, ok := m.backs.Get(session.BackKey{ServerType: serverType, ServerID: serverID})
	if !ok {
		return nil, message.NewError(message.ErrorKindNoRoute,
			fmt.Errorf("no back-session for %s:%d", serverType, serverID))
	}
	return bs, nil
}
