package cluster

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"

	"github.com/lcx/pantyhose/log"
)

// Registry optionally publishes this node's presence to Consul, purely
// for external tooling (dashboards, ad-hoc debugging) — cluster routing
// itself never consults Consul, only the master's own fleet view (spec
// §4.9, §9). A nil *Registry is always valid and every method is then a
// no-op, matching SPEC_FULL.md §11's "no-op when unconfigured" wiring.
type Registry struct {
	client  *consulapi.Client
	id      string
	enabled bool
}

// NewRegistry builds a Registry against addr (a Consul HTTP API address).
// An empty addr disables publishing entirely.
func NewRegistry(addr string) (*Registry, error) {
	if addr == "" {
		return &Registry{}, nil
	}
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("cluster registry: consul client: %w", err)
	}
	return &Registry{client: client, enabled: true}, nil
}

// Register publishes one service instance for this node.
func (r *Registry) Register(serverType string, serverID uint32, host string, port int) error {
	if r == nil || !r.enabled {
		return nil
	}
	r.id = fmt.Sprintf("pantyhose-%s-%d", serverType, serverID)
	reg := &consulapi.AgentServiceRegistration{
		ID:      r.id,
		Name:    serverType,
		Port:    port,
		Address: host,
		Tags:    []string{"pantyhose"},
		Check: &consulapi.AgentServiceCheck{
			TTL:                            "15s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := r.client.Agent().ServiceRegister(reg); err != nil {
		log.Warn().Str("server_type", serverType).Uint32("server_id", serverID).Err(err).Msg("cluster registry: consul register failed")
		return err
	}
	return nil
}

// Heartbeat passes the TTL health check; call on the same cadence as the
// master heartbeat so an operator watching Consul sees consistent state.
func (r *Registry) Heartbeat() {
	if r == nil || !r.enabled {
		return
	}
	if err := r.client.Agent().PassTTL("service:"+r.id, "alive"); err != nil {
		log.Warn().Err(err).Msg("cluster registry: consul TTL pass failed")
	}
}

// Deregister removes this node's service entry on clean shutdown.
func (r *Registry) Deregister() {
	if r == nil || !r.enabled {
		return
	}
	if err := r.client.Agent().ServiceDeregister(r.id); err != nil {
		log.Warn().Err(err).Msg("cluster registry: consul deregister failed")
	}
}
