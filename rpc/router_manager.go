package rpc

import (
	"sync"

	"github.com/lcx/pantyhose/session"
)

// RouterManager holds, per server_type, the router function chosen for
// it (spec §4.7: "RpcManager owns, per server_type, a router function
// and a list of registered server types with their router").
type RouterManager struct {
	mu      sync.RWMutex
	routers map[string]Func
	backs   *session.BackSessionManager
}

func NewRouterManager(backs *session.BackSessionManager) *RouterManager {
	return &RouterManager{routers: make(map[string]Func), backs: backs}
}

// Register installs the router used for every resolve against serverType.
// Types not explicitly registered fall back to StickyRouter.
func (rm *RouterManager) Register(serverType string, fn Func) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.routers[serverType] = fn
}

func (rm *RouterManager) routerFor(serverType string) Func {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	if fn, ok := rm.routers[serverType]; ok {
		return fn
	}
	return StickyRouter
}

// Resolve picks a server_id for serverType given meta, consulting the
// back-session manager for the live candidate set and each candidate's
// current connection count as its load signal.
func (rm *RouterManager) Resolve(meta *session.Metadata, serverType string) (uint32, bool) {
	sessions := rm.backs.IterByType(serverType)
	if len(sessions) == 0 {
		return 0, false
	}
	// Connections is fixed at 1 per candidate: this process tracks one
	// BackSession per (server_type, server_id), not per-instance client
	// load, so every live candidate is weighted equally and the sticky
	// router's least-loaded tiebreak degrades to a uniform random pick.
	candidates := make([]Candidate, 0, len(sessions))
	for _, bs := range sessions {
		key, _ := bs.Key()
		candidates = append(candidates, Candidate{ServerID: key.ServerID, Connections: 1})
	}
	return rm.routerFor(serverType)(meta, serverType, candidates)
}
