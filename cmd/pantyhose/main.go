// Command pantyhose starts one node of the cluster: `pantyhose
// <config_path> <server_id>` (spec §6). Config path defaults to
// bin/config.xml, server id defaults to 1.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/lcx/pantyhose/config"
	"github.com/lcx/pantyhose/log"
	"github.com/lcx/pantyhose/server"
	"github.com/lcx/pantyhose/servers/chat"
	"github.com/lcx/pantyhose/servers/session"
	"github.com/lcx/pantyhose/transport"
)

const (
	defaultConfigPath = "bin/config.xml"
	defaultServerID   = 1
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := defaultConfigPath
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}
	serverID := uint32(defaultServerID)
	if len(os.Args) > 2 {
		id, err := strconv.ParseUint(os.Args[2], 10, 32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pantyhose: bad server_id %q: %v\n", os.Args[2], err)
			return 1
		}
		serverID = uint32(id)
	}

	cfg, err := config.LoadServerConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pantyhose: %v\n", err)
		return 1
	}
	if err := log.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "pantyhose: log init: %v\n", err)
		return 1
	}

	group, entry, ok := cfg.FindServerByID(serverID)
	if !ok {
		fmt.Fprintf(os.Stderr, "pantyhose: no <server id=%d/> entry in %s\n", serverID, configPath)
		return 1
	}

	nodeCfg := server.NodeConfig{
		ServerType: group.Name,
		ServerID:   entry.ID,
		AuthorKey:  cfg.Author.Key,
		Width:      transport.LengthWidth2,
		MaxPayload: transport.DefaultMaxPayload,
	}
	if entry.FrontTCPPort != 0 {
		nodeCfg.FrontTCPAddr = fmt.Sprintf(":%d", entry.FrontTCPPort)
	}
	if entry.FrontWSPort != 0 {
		nodeCfg.FrontWSAddr = fmt.Sprintf(":%d", entry.FrontWSPort)
	}
	if entry.BackTCPPort != 0 {
		nodeCfg.BackTCPAddr = fmt.Sprintf(":%d", entry.BackTCPPort)
	}
	if group.Name != "master" {
		if masterGroup, ok := cfg.FindGroup("master"); ok && len(masterGroup.Servers) > 0 {
			nodeCfg.MasterAddr = fmt.Sprintf("127.0.0.1:%d", masterGroup.Servers[0].BackTCPPort)
		}
	}

	var trait server.Trait
	switch group.Name {
	case "chat":
		trait = chat.New(nodeCfg)
	case "session":
		trait = session.New(nodeCfg)
	case "master":
		// The master carries no business handlers of its own: NewBase
		// already wires the registration/heartbeat plumbing cluster.Master
		// needs, so Base itself satisfies server.Trait here.
		trait = server.NewBase(nodeCfg)
	default:
		fmt.Fprintf(os.Stderr, "pantyhose: unknown server_type %q\n", group.Name)
		return 1
	}

	if err := trait.Init(serverID); err != nil {
		fmt.Fprintf(os.Stderr, "pantyhose: init failed: %v\n", err)
		return 1
	}
	if err := trait.LateInit(); err != nil {
		fmt.Fprintf(os.Stderr, "pantyhose: late init failed: %v\n", err)
		return 1
	}

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		close(stop)
	}()

	trait.Run(stop)
	trait.Dispose()
	return 0
}
