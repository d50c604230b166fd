package server

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/lcx/pantyhose/cluster"
	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/rpc"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

// pendingSweepInterval is how often the driver's timer wheel checks for
// back-sessions that never completed registration (spec §4.6).
const pendingSweepInterval = 2 * time.Second

// PeerConfig is one statically-configured outbound back-tier link this
// node dials and keeps redialing for the life of the process (spec §4.2,
// §6 — the deployment's server config names every peer by address; there
// is no service-discovery-driven dial list).
type PeerConfig struct {
	ServerType string
	ServerID   uint32
	Addr       string
}

// NodeConfig is every per-process setting a concrete server kind (chat,
// session, master) needs to build its Base. It is the subset of spec
// §6's ServerConfig that Base itself consumes; config.ServerConfig parses
// the full XML document and maps into this shape.
type NodeConfig struct {
	ServerType string
	ServerID   uint32
	AuthorKey  string

	FrontTCPAddr string
	FrontWSAddr  string
	BackTCPAddr  string

	MasterAddr string // empty on the master node itself
	Peers      []PeerConfig

	Width      transport.LengthWidth
	MaxPayload int

	// ConsulAddr optionally publishes this node's presence to Consul for
	// external tooling; empty disables it entirely (spec §11's
	// no-op-when-unconfigured wiring).
	ConsulAddr string
}

// Base is the common ServerTrait scaffolding every concrete server kind
// embeds: it wires transport.Engine, the front/back session managers, the
// full rpc stack, and server.Driver, leaving FrontRouter/BackRouter for
// the embedding server kind to add its own handlers to before LateInit
// starts listening (spec §4.10's init()/late_init() split).
type Base struct {
	Config NodeConfig

	Factory  *message.Factory
	Fronts   *session.FrontSessionManager
	Backs    *session.BackSessionManager
	Routers  *rpc.RouterManager
	RPC      *rpc.Manager
	BackDisp *rpc.MessageDispatcher
	Forward  *rpc.ForwardManager

	Engine *transport.Engine
	Driver *Driver

	FrontRouter *FrontFrameRouter
	BackRouter  *BackFrameRouter

	Master  *cluster.Master  // non-nil only when Config.ServerType == "master"
	Cluster *cluster.Manager // non-nil on every other node

	Registry *cluster.Registry

	dialers []*transport.DialingClient
}

// NewBase wires every shared component but performs no I/O; LateInit
// starts listening and dialing once the embedding server kind has
// registered its own handlers.
func NewBase(cfg NodeConfig) *Base {
	b := &Base{Config: cfg}

	reg, err := cluster.NewRegistry(cfg.ConsulAddr)
	if err != nil {
		log.Warn().Err(err).Msg("base: consul registry disabled")
		reg, _ = cluster.NewRegistry("")
	}
	b.Registry = reg

	b.Factory = message.NewFactory()
	b.Fronts = session.NewFrontSessionManager()
	b.Backs = session.NewBackSessionManager(cfg.AuthorKey)
	b.Routers = rpc.NewRouterManager(b.Backs)
	b.RPC = rpc.NewManager(b.Routers, b.Backs)
	b.BackDisp = rpc.NewMessageDispatcher()
	b.Forward = rpc.NewForwardManager(b.RPC, b.Fronts, b.BackDisp, b.Factory)

	b.Engine = transport.NewEngine()
	b.Driver = NewDriver(b.Engine, b.Fronts, b.Backs)

	b.FrontRouter = NewFrontFrameRouter()
	b.BackRouter = NewBackFrameRouter()
	WireFrontForward(b.FrontRouter, b.Forward)
	WireBackForward(b.BackRouter, b.Forward)

	if cfg.ServerType == "master" {
		b.Master = cluster.NewMaster(cfg.AuthorKey, b.Backs)
		WireMaster(b.BackRouter, b.Master)
	} else {
		endpoints := map[string]string{}
		if cfg.BackTCPAddr != "" {
			endpoints["back_tcp"] = cfg.BackTCPAddr
		}
		b.Cluster = cluster.NewManager(cfg.ServerType, cfg.ServerID, cfg.AuthorKey, endpoints)
		WireClusterManager(b.BackRouter, b.Cluster)
	}

	b.Driver.OnFrontFrame = b.FrontRouter.Dispatch
	b.Driver.OnBackFrame = b.BackRouter.Dispatch
	b.Backs.SetOnClose(func(key session.BackKey, reason error) {
		log.Warn().Str("server_type", key.ServerType).Uint32("server_id", key.ServerID).Msg("base: back-session closed")
	})

	return b
}

// Init implements spec §4.10's init(): NewBase already built every
// component, so this just records the assigned serverID. Embedding
// server kinds call this first, then register their own handlers onto
// BackDisp before calling LateInit.
func (b *Base) Init(serverID uint32) error {
	b.Config.ServerID = serverID
	return nil
}

// LateInit starts every configured listener and outbound dialer, and
// installs the timer-wheel jobs every node needs (pending-handshake
// sweep, heartbeat send/check). Split from Init so handler registration
// always happens before traffic can possibly arrive.
func (b *Base) LateInit() error {
	if b.Config.FrontTCPAddr != "" {
		if err := b.Engine.Listen(transport.EngineConfig{Kind: transport.ListenerFrontTCP, Addr: b.Config.FrontTCPAddr, Width: b.Config.Width, MaxPayload: b.Config.MaxPayload}); err != nil {
			return fmt.Errorf("base: front tcp listen: %w", err)
		}
	}
	if b.Config.FrontWSAddr != "" {
		if err := b.Engine.Listen(transport.EngineConfig{Kind: transport.ListenerFrontWS, Addr: b.Config.FrontWSAddr, Width: b.Config.Width, MaxPayload: b.Config.MaxPayload}); err != nil {
			return fmt.Errorf("base: front ws listen: %w", err)
		}
	}
	if b.Config.BackTCPAddr != "" {
		if err := b.Engine.Listen(transport.EngineConfig{Kind: transport.ListenerBackTCP, Addr: b.Config.BackTCPAddr, Width: b.Config.Width, MaxPayload: b.Config.MaxPayload}); err != nil {
			return fmt.Errorf("base: back tcp listen: %w", err)
		}
	}

	if b.Config.MasterAddr != "" {
		dc := transport.NewDialingClient(b.Engine, transport.ClientConfig{Addr: b.Config.MasterAddr, Width: b.Config.Width, MaxPayload: b.Config.MaxPayload}, func(conn transport.Connection) {
			b.Cluster.OnConnect(b.Backs, conn)
		})
		b.dialers = append(b.dialers, dc)
		go dc.Run()
	}
	for _, p := range b.Config.Peers {
		peer := p
		dc := transport.NewDialingClient(b.Engine, transport.ClientConfig{Addr: peer.Addr, Width: b.Config.Width, MaxPayload: b.Config.MaxPayload}, func(conn transport.Connection) {
			b.Backs.OnDial(conn, session.BackKey{ServerType: peer.ServerType, ServerID: peer.ServerID})
		})
		b.dialers = append(b.dialers, dc)
		go dc.Run()
	}

	b.Driver.AddTimer(pendingSweepInterval, b.Backs.ExpirePending)
	if b.Master != nil {
		b.Driver.AddTimer(cluster.HeartbeatInterval, b.Master.CheckHeartbeats)
	}
	if b.Cluster != nil {
		b.Driver.AddTimer(cluster.HeartbeatInterval, b.Cluster.SendHeartbeat)
	}

	if registryAddr := b.Config.BackTCPAddr; registryAddr != "" {
		if host, port, err := splitHostPort(registryAddr); err == nil {
			if err := b.Registry.Register(b.Config.ServerType, b.Config.ServerID, host, port); err != nil {
				log.Warn().Err(err).Msg("base: consul register failed, continuing without it")
			}
			b.Driver.AddTimer(cluster.HeartbeatInterval, b.Registry.Heartbeat)
		}
	}

	return nil
}

// splitHostPort resolves "host:port" into a loopback-safe host and a
// numeric port, treating an empty host (":9000") as "127.0.0.1" since
// that is what external tooling would actually dial.
func splitHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, err
	}
	if host == "" {
		host = "127.0.0.1"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, err
	}
	return host, port, nil
}

// Run blocks on Driver.Run, stopping it once stop fires (spec §4.10's
// run(stop_signal)).
func (b *Base) Run(stop <-chan struct{}) {
	go func() {
		<-stop
		b.Driver.Stop()
	}()
	b.Driver.Run()
}

// Dispose tears down every dialer and listener, then flushes logging
// last so any error logged during teardown itself still reaches its
// appenders (spec §4.10 "dispose runs teardown in reverse order; logging
// guards are released last").
func (b *Base) Dispose() {
	b.Registry.Deregister()
	for _, dc := range b.dialers {
		dc.Stop()
	}
	b.Engine.Close()
	log.Refresh()
}
