package server_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lcx/pantyhose/server"
	"github.com/lcx/pantyhose/servers/chat"
	"github.com/lcx/pantyhose/session"
	"github.com/lcx/pantyhose/transport"
)

// TestMasterAndChatNodeRegisterOverRealTCP exercises spec §4.9's
// handshake end to end: a chat node dials a live master over loopback
// TCP and must appear in the master's fleet within the heartbeat window.
func TestMasterAndChatNodeRegisterOverRealTCP(t *testing.T) {
	master := server.NewBase(server.NodeConfig{
		ServerType:  "master",
		ServerID:    1,
		AuthorKey:   "secret",
		BackTCPAddr: "127.0.0.1:0",
		Width:       transport.LengthWidth2,
		MaxPayload:  transport.DefaultMaxPayload,
	})
	require.NoError(t, master.Init(1))
	require.NoError(t, master.LateInit())
	masterStop := make(chan struct{})
	go master.Run(masterStop)
	defer func() {
		close(masterStop)
		master.Dispose()
	}()

	masterAddr := master.Engine.Addrs()[0].String()

	node := chat.New(server.NodeConfig{
		ServerType:  "chat",
		ServerID:    1,
		AuthorKey:   "secret",
		BackTCPAddr: "127.0.0.1:0",
		MasterAddr:  masterAddr,
		Width:       transport.LengthWidth2,
		MaxPayload:  transport.DefaultMaxPayload,
	})
	require.NoError(t, node.Init(1))
	require.NoError(t, node.LateInit())
	nodeStop := make(chan struct{})
	go node.Run(nodeStop)
	defer func() {
		close(nodeStop)
		node.Dispose()
	}()

	require.Eventually(t, func() bool {
		_, ok := master.Backs.Get(session.BackKey{ServerType: "chat", ServerID: 1})
		return ok
	}, 2*time.Second, 20*time.Millisecond)
}
