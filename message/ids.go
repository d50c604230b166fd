package message

// Message id table, frozen at build time. In the original system this table
// is produced by a build-time tool that scans message definitions in
// lexicographic file order and numbers them from 1 (see spec §6); that tool
// is out of scope here; this file is the frozen table it would have
// produced, grouped by source file the way the scan would visit them.
const (
	// chat.go
	MsgIDChatEchoBRequest  uint32 = 1
	MsgIDChatEchoBResponse uint32 = 2

	// cluster.go
	MsgIDHeartbeatBNotify     uint32 = 3
	MsgIDNodeJoinedBNotify    uint32 = 4
	MsgIDNodeLeftBNotify      uint32 = 5
	MsgIDNodeRegisterBRequest uint32 = 6
	MsgIDNodeRegisterBResponse uint32 = 7

	// rpc.go
	MsgIDRpcForwardMessageBNotify   uint32 = 8
	MsgIDRpcForwardMessageBRequest  uint32 = 9
	MsgIDRpcForwardMessageBResponse uint32 = 10
	MsgIDRpcMessageFNotify          uint32 = 11
	MsgIDRpcMessageFRequest         uint32 = 12
	MsgIDRpcMessageFResponse        uint32 = 13

	// session.go
	MsgIDSessionPingBRequest  uint32 = 14
	MsgIDSessionPingBResponse uint32 = 15
)
