package transport

import (
	"github.com/meshpair/meshpair-go/pkg/ident"
)

// Sender hands notification packets to the network.
type Sender interface {
	// SendNotification sends packet (token || payload) to addr.
	SendNotification(addr ident.Address, packet []byte) error
}

// ResponseHandler receives the response to a request, or an error if none
// arrived in time.
type ResponseHandler func(resp *Message, err error)

// Transport is the full transport collaborator of a mesh node.
type Transport interface {
	Sender

	// SendRequest sends a request for path to addr. handler is called once,
	// from the transport's receive context, with the response or an error.
	SendRequest(addr ident.Address, path string, payload []byte, handler ResponseHandler) error

	// SendObserve asks addr to push changes of path to this node under token.
	// handler, if not nil, is called once with the remote's answer (whose
	// payload is the current state) or an error if none arrived in time.
	SendObserve(addr ident.Address, path string, token ident.Token, handler ResponseHandler) error

	// SendCancel ends the Observe relationship identified by token.
	SendCancel(addr ident.Address, token ident.Token) error
}

// Handler processes inbound messages other than responses. A non-nil return
// value is sent back to the originator.
type Handler interface {
	HandleMessage(from ident.Address, msg *Message) *Message
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(from ident.Address, msg *Message) *Message

// HandleMessage calls f.
func (f HandlerFunc) HandleMessage(from ident.Address, msg *Message) *Message {
	return f(from, msg)
}
