package message

import "fmt"

// Creator constructs a zero-value instance of a registered message type,
// the same "MsgCreator" shape the teacher's net/message.go and
// net/message_mgr.go register per msg_id, generalized here to a plain
// function value.
type Creator func() Message

// Factory is the MessageFactory named throughout spec §4.4/§4.8: a
// registry mapping msg_id to (decoder, encoder), populated once at init
// and read-only thereafter so it may be shared by reference across every
// session of a server (spec §5 shared-resource policy).
type Factory struct {
	creators map[uint32]Creator
}

// NewFactory builds the default factory, pre-registering every message
// type this module knows about. Additional processors may be built with
// NewEmptyFactory and Register for a server that only speaks a subset.
func NewFactory() *Factory {
	f := NewEmptyFactory()
	f.Register(MsgIDRpcMessageFRequest, func() Message { return &RpcMessageFRequest{} })
	f.Register(MsgIDRpcMessageFResponse, func() Message { return &RpcMessageFResponse{} })
	f.Register(MsgIDRpcMessageFNotify, func() Message { return &RpcMessageFNotify{} })
	f.Register(MsgIDRpcForwardMessageBRequest, func() Message { return &RpcForwardMessageBRequest{} })
	f.Register(MsgIDRpcForwardMessageBResponse, func() Message { return &RpcForwardMessageBResponse{} })
	f.Register(MsgIDRpcForwardMessageBNotify, func() Message { return &RpcForwardMessageBNotify{} })
	f.Register(MsgIDNodeRegisterBRequest, func() Message { return &NodeRegisterBRequest{} })
	f.Register(MsgIDNodeRegisterBResponse, func() Message { return &NodeRegisterBResponse{} })
	f.Register(MsgIDNodeJoinedBNotify, func() Message { return &NodeJoinedBNotify{} })
	f.Register(MsgIDNodeLeftBNotify, func() Message { return &NodeLeftBNotify{} })
	f.Register(MsgIDHeartbeatBNotify, func() Message { return &HeartbeatBNotify{} })
	f.Register(MsgIDChatEchoBRequest, func() Message { return &ChatEchoBRequest{} })
	f.Register(MsgIDChatEchoBResponse, func() Message { return &ChatEchoBResponse{} })
	f.Register(MsgIDSessionPingBRequest, func() Message { return &SessionPingBRequest{} })
	f.Register(MsgIDSessionPingBResponse, func() Message { return &SessionPingBResponse{} })
	return f
}

// NewEmptyFactory builds a factory with no registrations, for a server
// instance that plugs in its own message processor (spec §4.4).
func NewEmptyFactory() *Factory {
	return &Factory{creators: make(map[uint32]Creator)}
}

// Register adds or overwrites the creator for msgID. Called at init only;
// the factory is treated as read-only once a server starts accepting
// connections.
func (f *Factory) Register(msgID uint32, c Creator) {
	f.creators[msgID] = c
}

// Contains reports whether msgID has a registered creator.
func (f *Factory) Contains(msgID uint32) bool {
	_, ok := f.creators[msgID]
	return ok
}

// Decode implements the message processor capability from spec §4.4:
// decode(msg_id, payload_bytes) -> TypedMessage | DecodeError. An unknown
// msg_id returns a *Error{Kind: ErrorKindUnknownHandler} so callers can
// distinguish "no such message" from "bytes did not parse".
func (f *Factory) Decode(msgID uint32, payload []byte) (Message, error) {
	creator, ok := f.creators[msgID]
	if !ok {
		return nil, NewError(ErrorKindUnknownHandler, fmt.Errorf("msg_id %d not registered", msgID))
	}
	msg := creator()
	if err := msg.Unmarshal(payload); err != nil {
		return nil, NewError(ErrorKindDecodeFailed, err)
	}
	return msg, nil
}

// Encode is the symmetrical encode half; kept on Factory for parity with
// the teacher's codec.Codec interface, though every concrete Message
// already knows how to marshal itself.
func (f *Factory) Encode(msg Message) ([]byte, error) {
	return msg.Marshal()
}
