package rpc

import (
	"fmt"
	"sync"

	"github.com/lcx/pantyhose/message"
	"github.com/lcx/pantyhose/session"
)

// Handler processes one decoded inner message forwarded to this node as
// the target of an RPC, and returns the reply msg_id + payload to send
// back (spec §4.8 step 3). A notify handler's return value is ignored.
type Handler func(back *session.BackSession, frontSessionID uint64, inner message.Message) (replyMsgID uint32, replyPayload []byte, err error)

// MessageDispatcher is spec §4.8's Map<u16, Handler>, populated at init
// time and read-only thereafter (spec §5 shared-resource policy).
type MessageDispatcher struct {
	mu       sync.RWMutex
	handlers map[uint32]Handler
}

func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{handlers: make(map[uint32]Handler)}
}

// Register binds msgID to handler. Intended for init time only; calling
// after the server starts accepting connections races the dispatch path.
func (d *MessageDispatcher) Register(msgID uint32, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[msgID] = h
}

// DispatchRequest implements spec §4.8 step 2: unknown msg_id produces
// an UnknownHandler error so the caller can answer with a synthetic
// RpcForwardMessageBResponse.
func (d *MessageDispatcher) DispatchRequest(back *session.BackSession, frontSessionID uint64, msgID uint32, inner message.Message) (uint32, []byte, error) {
	d.mu.RLock()
	h, ok := d.handlers[msgID]
	d.mu.RUnlock()
	if !ok {
		return 0, nil, message.NewError(message.ErrorKindUnknownHandler,
			fmt.Errorf("no handler registered for msg_id %d", msgID))
	}
	return h(back, frontSessionID, inner)
}

// DispatchNotify is the one-way counterpart: the reply, if any, is
// discarded (spec §4.8 "Notify path: identical but no reply step").
func (d *MessageDispatcher) DispatchNotify(back *session.BackSession, frontSessionID uint64, msgID uint32, inner message.Message) error {
	d.mu.RLock()
	h, ok := d.handlers[msgID]
	d.mu.RUnlock()
	if !ok {
		return message.NewError(message.ErrorKindUnknownHandler,
			fmt.Errorf("no handler registered for msg_id %d", msgID))
	}
	_, _, err := h(back, frontSessionID, inner)
	return err
}
