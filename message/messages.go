package message

import "google.golang.org/protobuf/encoding/protowire"

// Message is satisfied by every typed value the MessageFactory can produce
// and every value sessions can send. Implementations hand-roll a
// proto3-wire-compatible encoding; see wire.go.
type Message interface {
	MsgID() uint32
	Marshal() ([]byte, error)
	Unmarshal(b []byte) error
}

// ---- client <-> front ----------------------------------------------------

// RpcMessageFRequest is the client's RPC envelope addressed to a server_type.
type RpcMessageFRequest struct {
	MsgUniqueID uint32
	ServerType  string
	TargetMsgID uint32
	Message     []byte
}

func (m *RpcMessageFRequest) MsgID() uint32 { return MsgIDRpcMessageFRequest }

func (m *RpcMessageFRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendString(b, 2, m.ServerType)
	b = appendUint32(b, 3, m.TargetMsgID)
	b = appendBytes(b, 4, m.Message)
	return b, nil
}

func (m *RpcMessageFRequest) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 3:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 4:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// RpcMessageFResponse is the reply delivered to the client. ErrKind is
// ErrorKindNone for a normal reply, or one of the synthetic error kinds
// from spec §7 when the server answered without a real handler result.
type RpcMessageFResponse struct {
	MsgUniqueID uint32
	TargetMsgID uint32
	Message     []byte
	ErrKind     ErrorKind
}

func (m *RpcMessageFResponse) MsgID() uint32 { return MsgIDRpcMessageFResponse }

func (m *RpcMessageFResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendUint32(b, 2, m.TargetMsgID)
	b = appendBytes(b, 3, m.Message)
	b = appendUint32(b, 4, uint32(m.ErrKind))
	return b, nil
}

func (m *RpcMessageFResponse) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 3:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		case 4:
			u, n := protowire.ConsumeVarint(v)
			m.ErrKind = ErrorKind(u)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// RpcMessageFNotify is the one-way counterpart of RpcMessageFRequest.
// MsgUniqueID is carried for observability only (spec §9 open question i);
// it is not load-bearing for correctness.
type RpcMessageFNotify struct {
	MsgUniqueID uint32
	ServerType  string
	TargetMsgID uint32
	Message     []byte
}

func (m *RpcMessageFNotify) MsgID() uint32 { return MsgIDRpcMessageFNotify }

func (m *RpcMessageFNotify) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendString(b, 2, m.ServerType)
	b = appendUint32(b, 3, m.TargetMsgID)
	b = appendBytes(b, 4, m.Message)
	return b, nil
}

func (m *RpcMessageFNotify) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 3:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 4:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// ---- server <-> server (forwarded RPC envelopes) -------------------------

// RpcForwardMessageBRequest is the front->back forwarded call. The tuple
// (FrontSessionID, MsgUniqueID) is the entire correlation state for the
// call; no node allocates anything to track it (spec §4.8).
type RpcForwardMessageBRequest struct {
	MsgUniqueID    uint32
	FrontSessionID uint64
	Meta           map[string]string
	TargetMsgID    uint32
	Message        []byte
}

func (m *RpcForwardMessageBRequest) MsgID() uint32 { return MsgIDRpcForwardMessageBRequest }

func (m *RpcForwardMessageBRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendUint64(b, 2, m.FrontSessionID)
	b = appendStringMap(b, 3, m.Meta)
	b = appendUint32(b, 4, m.TargetMsgID)
	b = appendBytes(b, 5, m.Message)
	return b, nil
}

func (m *RpcForwardMessageBRequest) Unmarshal(b []byte) error {
	m.Meta = nil
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.FrontSessionID = u
			return n, true, nil
		case 3:
			entry, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, true, nil
			}
			k, val, derr := decodeStringMapEntry(entry)
			if derr != nil {
				return 0, true, derr
			}
			if m.Meta == nil {
				m.Meta = make(map[string]string)
			}
			m.Meta[k] = val
			return n, true, nil
		case 4:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 5:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		}
		return 0, false, nil
	})
	return err
}

// RpcForwardMessageBResponse is the back->front forwarded reply.
type RpcForwardMessageBResponse struct {
	MsgUniqueID    uint32
	FrontSessionID uint64
	Meta           map[string]string
	TargetMsgID    uint32
	Message        []byte
	ErrKind        ErrorKind
}

func (m *RpcForwardMessageBResponse) MsgID() uint32 { return MsgIDRpcForwardMessageBResponse }

func (m *RpcForwardMessageBResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendUint64(b, 2, m.FrontSessionID)
	b = appendStringMap(b, 3, m.Meta)
	b = appendUint32(b, 4, m.TargetMsgID)
	b = appendBytes(b, 5, m.Message)
	b = appendUint32(b, 6, uint32(m.ErrKind))
	return b, nil
}

func (m *RpcForwardMessageBResponse) Unmarshal(b []byte) error {
	m.Meta = nil
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.FrontSessionID = u
			return n, true, nil
		case 3:
			entry, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, true, nil
			}
			k, val, derr := decodeStringMapEntry(entry)
			if derr != nil {
				return 0, true, derr
			}
			if m.Meta == nil {
				m.Meta = make(map[string]string)
			}
			m.Meta[k] = val
			return n, true, nil
		case 4:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 5:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		case 6:
			u, n := protowire.ConsumeVarint(v)
			m.ErrKind = ErrorKind(u)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// RpcForwardMessageBNotify is the one-way counterpart forwarded to a back session.
type RpcForwardMessageBNotify struct {
	MsgUniqueID    uint32
	FrontSessionID uint64
	Meta           map[string]string
	TargetMsgID    uint32
	Message        []byte
}

func (m *RpcForwardMessageBNotify) MsgID() uint32 { return MsgIDRpcForwardMessageBNotify }

func (m *RpcForwardMessageBNotify) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint32(b, 1, m.MsgUniqueID)
	b = appendUint64(b, 2, m.FrontSessionID)
	b = appendStringMap(b, 3, m.Meta)
	b = appendUint32(b, 4, m.TargetMsgID)
	b = appendBytes(b, 5, m.Message)
	return b, nil
}

func (m *RpcForwardMessageBNotify) Unmarshal(b []byte) error {
	m.Meta = nil
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.MsgUniqueID = uint32(u)
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.FrontSessionID = u
			return n, true, nil
		case 3:
			entry, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, true, nil
			}
			k, val, derr := decodeStringMapEntry(entry)
			if derr != nil {
				return 0, true, derr
			}
			if m.Meta == nil {
				m.Meta = make(map[string]string)
			}
			m.Meta[k] = val
			return n, true, nil
		case 4:
			u, n := protowire.ConsumeVarint(v)
			m.TargetMsgID = uint32(u)
			return n, true, nil
		case 5:
			bs, n := protowire.ConsumeBytes(v)
			m.Message = append([]byte(nil), bs...)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// ---- cluster registration -------------------------------------------------

// ClusterNode is one entry of a ClusterView (spec §3).
type ClusterNode struct {
	ServerType string
	ServerID   uint32
	Endpoint   string
	Role       string
}

func (c *ClusterNode) marshalInto(b []byte, num protowire.Number) []byte {
	var entry []byte
	entry = appendString(entry, 1, c.ServerType)
	entry = appendUint32(entry, 2, c.ServerID)
	entry = appendString(entry, 3, c.Endpoint)
	entry = appendString(entry, 4, c.Role)
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, entry)
}

func decodeClusterNode(b []byte) (ClusterNode, error) {
	var c ClusterNode
	err := decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			s, n := consumeString(v)
			c.ServerType = s
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			c.ServerID = uint32(u)
			return n, true, nil
		case 3:
			s, n := consumeString(v)
			c.Endpoint = s
			return n, true, nil
		case 4:
			s, n := consumeString(v)
			c.Role = s
			return n, true, nil
		}
		return 0, false, nil
	})
	return c, err
}

// NodeRegisterBRequest is sent by a newcomer node to the master on every
// (re)connect (spec §4.9).
type NodeRegisterBRequest struct {
	ClientToken string
	ServerType  string
	ServerID    uint32
	Endpoints   map[string]string
}

func (m *NodeRegisterBRequest) MsgID() uint32 { return MsgIDNodeRegisterBRequest }

func (m *NodeRegisterBRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ClientToken)
	b = appendString(b, 2, m.ServerType)
	b = appendUint32(b, 3, m.ServerID)
	b = appendStringMap(b, 4, m.Endpoints)
	return b, nil
}

func (m *NodeRegisterBRequest) Unmarshal(b []byte) error {
	m.Endpoints = nil
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			s, n := consumeString(v)
			m.ClientToken = s
			return n, true, nil
		case 2:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 3:
			u, n := protowire.ConsumeVarint(v)
			m.ServerID = uint32(u)
			return n, true, nil
		case 4:
			entry, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, true, nil
			}
			k, val, derr := decodeStringMapEntry(entry)
			if derr != nil {
				return 0, true, derr
			}
			if m.Endpoints == nil {
				m.Endpoints = make(map[string]string)
			}
			m.Endpoints[k] = val
			return n, true, nil
		}
		return 0, false, nil
	})
}

// NodeRegisterBResponse is the master's answer to a registration request.
type NodeRegisterBResponse struct {
	OK          bool
	Reason      string
	ClusterView []ClusterNode
}

func (m *NodeRegisterBResponse) MsgID() uint32 { return MsgIDNodeRegisterBResponse }

func (m *NodeRegisterBResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendBool(b, 1, m.OK)
	b = appendString(b, 2, m.Reason)
	for i := range m.ClusterView {
		b = m.ClusterView[i].marshalInto(b, 3)
	}
	return b, nil
}

func (m *NodeRegisterBResponse) Unmarshal(b []byte) error {
	m.ClusterView = nil
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			u, n := protowire.ConsumeVarint(v)
			m.OK = u != 0
			return n, true, nil
		case 2:
			s, n := consumeString(v)
			m.Reason = s
			return n, true, nil
		case 3:
			entry, n := protowire.ConsumeBytes(v)
			if n < 0 {
				return n, true, nil
			}
			c, derr := decodeClusterNode(entry)
			if derr != nil {
				return 0, true, derr
			}
			m.ClusterView = append(m.ClusterView, c)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// NodeJoinedBNotify is pushed by the master to every other node on a
// successful registration.
type NodeJoinedBNotify struct {
	ServerType string
	ServerID   uint32
	Endpoint   string
}

func (m *NodeJoinedBNotify) MsgID() uint32 { return MsgIDNodeJoinedBNotify }

func (m *NodeJoinedBNotify) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ServerType)
	b = appendUint32(b, 2, m.ServerID)
	b = appendString(b, 3, m.Endpoint)
	return b, nil
}

func (m *NodeJoinedBNotify) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.ServerID = uint32(u)
			return n, true, nil
		case 3:
			s, n := consumeString(v)
			m.Endpoint = s
			return n, true, nil
		}
		return 0, false, nil
	})
}

// NodeLeftBNotify is pushed by the master when a node is evicted or
// disconnects cleanly.
type NodeLeftBNotify struct {
	ServerType string
	ServerID   uint32
}

func (m *NodeLeftBNotify) MsgID() uint32 { return MsgIDNodeLeftBNotify }

func (m *NodeLeftBNotify) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ServerType)
	b = appendUint32(b, 2, m.ServerID)
	return b, nil
}

func (m *NodeLeftBNotify) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.ServerID = uint32(u)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// HeartbeatBNotify is sent by every node to the master every 5s (spec §4.9).
type HeartbeatBNotify struct {
	ServerType string
	ServerID   uint32
}

func (m *HeartbeatBNotify) MsgID() uint32 { return MsgIDHeartbeatBNotify }

func (m *HeartbeatBNotify) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.ServerType)
	b = appendUint32(b, 2, m.ServerID)
	return b, nil
}

func (m *HeartbeatBNotify) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		switch num {
		case 1:
			s, n := consumeString(v)
			m.ServerType = s
			return n, true, nil
		case 2:
			u, n := protowire.ConsumeVarint(v)
			m.ServerID = uint32(u)
			return n, true, nil
		}
		return 0, false, nil
	})
}

// ---- demo business messages (chat server, end-to-end scenario 1) --------

type ChatEchoBRequest struct {
	Text string
}

func (m *ChatEchoBRequest) MsgID() uint32 { return MsgIDChatEchoBRequest }

func (m *ChatEchoBRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Text)
	return b, nil
}

func (m *ChatEchoBRequest) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		if num == 1 {
			s, n := consumeString(v)
			m.Text = s
			return n, true, nil
		}
		return 0, false, nil
	})
}

type ChatEchoBResponse struct {
	Text string
}

func (m *ChatEchoBResponse) MsgID() uint32 { return MsgIDChatEchoBResponse }

func (m *ChatEchoBResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Text)
	return b, nil
}

func (m *ChatEchoBResponse) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		if num == 1 {
			s, n := consumeString(v)
			m.Text = s
			return n, true, nil
		}
		return 0, false, nil
	})
}

// SessionPingBRequest/Response round out the session demo server
// (supplements the original's session/login scope beyond pure plumbing).
type SessionPingBRequest struct {
	Nonce uint64
}

func (m *SessionPingBRequest) MsgID() uint32 { return MsgIDSessionPingBRequest }

func (m *SessionPingBRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.Nonce)
	return b, nil
}

func (m *SessionPingBRequest) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		if num == 1 {
			u, n := protowire.ConsumeVarint(v)
			m.Nonce = u
			return n, true, nil
		}
		return 0, false, nil
	})
}

type SessionPingBResponse struct {
	Nonce uint64
}

func (m *SessionPingBResponse) MsgID() uint32 { return MsgIDSessionPingBResponse }

func (m *SessionPingBResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendUint64(b, 1, m.Nonce)
	return b, nil
}

func (m *SessionPingBResponse) Unmarshal(b []byte) error {
	return decodeFields(b, func(num protowire.Number, typ protowire.Type, v []byte) (int, bool, error) {
		if num == 1 {
			u, n := protowire.ConsumeVarint(v)
			m.Nonce = u
			return n, true, nil
		}
		return 0, false, nil
	})
}
