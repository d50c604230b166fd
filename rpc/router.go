// Package rpc implements spec §4.7/§4.8: the per-server-type router, the
// RpcManager that resolves a front session to a target back-session, and
// the forward manager state machine that ties a client's RPC request to
// a backend handler and threads the reply back.
package rpc

import (
	"math/rand/v2"

	"github.com/lcx/pantyhose/session"
)

// Strategy names a selectable router behavior (spec §4.7).
type Strategy int

const (
	StrategySticky Strategy = iota
	StrategyRoundRobin
	StrategyHashOnSession
)

// Func is the router signature spec §9 insists stay pure: no I/O, easy
// to unit-test with a mock fleet view. Control-plane traffic that bypasses
// front-session stickiness (RpcManager.CallToServer) does not call a
// router at all; it looks the requested server_id up directly.
type Func func(meta *session.Metadata, serverType string, candidates []Candidate) (uint32, bool)

// Candidate is one alive instance of a server_type, with enough load
// information for the least-loaded fallback (original_source's
// router_manager.rs falls back to a random pick; this module reconciles
// that with spec §4.7's "least-loaded" wording by picking uniformly among
// whichever candidates are tied for the lowest connection count).
type Candidate struct {
	ServerID    uint32
	Connections int
}

// StickyRouter is the spec §4.7 default: consult meta first; if unset or
// the bound instance is no longer a candidate, pick randomly among the
// least-loaded candidates and persist the pick into meta.
func StickyRouter(meta *session.Metadata, serverType string, candidates []Candidate) (uint32, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	if meta != nil {
		if id, ok := meta.Get(serverType); ok && stillCandidate(id, candidates) {
			return id, true
		}
	}
	id := leastLoadedRandom(candidates)
	if meta != nil {
		meta.Set(serverType, id)
	}
	return id, true
}

// RoundRobinRouter cycles through candidates in the order supplied,
// ignoring sticky metadata entirely.
func RoundRobinRouter(state *uint64) Func {
	return func(_ *session.Metadata, _ string, candidates []Candidate) (uint32, bool) {
		if len(candidates) == 0 {
			return 0, false
		}
		idx := int(*state % uint64(len(candidates)))
		*state++
		return candidates[idx].ServerID, true
	}
}

// HashOnSessionRouter picks deterministically from a caller-supplied hash
// (e.g. the front_session_id), the same candidate every time for a given
// hash and candidate set.
func HashOnSessionRouter(hash uint64) Func {
	return func(_ *session.Metadata, _ string, candidates []Candidate) (uint32, bool) {
		if len(candidates) == 0 {
			return 0, false
		}
		return candidates[hash%uint64(len(candidates))].ServerID, true
	}
}

func stillCandidate(id uint32, candidates []Candidate) bool {
	for _, c := range candidates {
		if c.ServerID == id {
			return true
		}
	}
	return false
}

func leastLoadedRandom(candidates []Candidate) uint32 {
	min := candidates[0].Connections
	for _, c := range candidates[1:] {
		if c.Connections < min {
			min = c.Connections
		}
	}
	var tied []uint32
	for _, c := range candidates {
		if c.Connections == min {
			tied = append(tied, c.ServerID)
		}
	}
	return tied[rand.IntN(len(tied))]
}
