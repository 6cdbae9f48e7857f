package node

import (
	"errors"

	"github.com/meshpair/meshpair-go/pkg/fault"
	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/subscription"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// HandleMessage dispatches an inbound envelope. It implements
// transport.Handler.
func (n *Node) HandleMessage(from ident.Address, msg *transport.Message) *transport.Message {
	switch msg.Kind {
	case transport.KindObserve:
		return n.handleObserve(from, msg)
	case transport.KindCancel:
		return n.handleCancel(msg)
	case transport.KindNotification:
		n.handleNotification(msg)
		return nil
	case transport.KindRequest:
		return n.handleRequest(msg)
	default:
		return nil
	}
}

func (n *Node) handleObserve(from ident.Address, msg *transport.Message) *transport.Message {
	resource, ok := n.resources.index(msg.Path)
	if !ok {
		return response(msg, transport.StatusNotFound, nil)
	}

	token := msg.ObserveToken()
	result, err := n.reg.Subscribe(token, resource, from, msg.Device)
	if err != nil {
		n.debug("observe refused", "device", msg.Device, "path", msg.Path, "error", err)
		return response(msg, statusFor(err), nil)
	}

	if result != subscription.NoUpdateNeeded {
		action := log.ActionUpdate
		if result == subscription.AddedNewDevice || result.Has(subscription.URIAdded) {
			action = log.ActionAdd
		}
		n.events.Table(msg.Device, log.TableEvent{
			Table:    log.TableRegistry,
			Action:   action,
			Slot:     -1,
			Resource: uint8(resource),
			Token:    token.String(),
			Detail:   result.String(),
		})
	}

	state, _ := n.State(resource)
	return response(msg, transport.StatusOK, state)
}

func (n *Node) handleCancel(msg *transport.Message) *transport.Message {
	token := msg.ObserveToken()
	if err := n.reg.Unsubscribe(msg.Device, token); err != nil {
		n.debug("cancel refused", "device", msg.Device, "token", token, "error", err)
		return response(msg, statusFor(err), nil)
	}
	n.events.Table(msg.Device, log.TableEvent{
		Table:  log.TableRegistry,
		Action: log.ActionDelete,
		Slot:   -1,
		Token:  token.String(),
	})
	return response(msg, transport.StatusOK, nil)
}

func (n *Node) handleNotification(msg *transport.Message) {
	n.obs.Deliver(msg.ObserveToken(), msg.Payload)
}

func (n *Node) handleRequest(msg *transport.Message) *transport.Message {
	resource, ok := n.resources.index(msg.Path)
	if !ok {
		return response(msg, transport.StatusNotFound, nil)
	}
	state, ok := n.State(resource)
	if !ok {
		return response(msg, transport.StatusNotFound, nil)
	}
	return response(msg, transport.StatusOK, state)
}

func response(req *transport.Message, status transport.Status, payload []byte) *transport.Message {
	return &transport.Message{
		Kind:    transport.KindResponse,
		Token:   req.Token,
		Status:  status,
		Payload: payload,
	}
}

// statusFor maps an error category to a response status.
func statusFor(err error) transport.Status {
	switch {
	case err == nil:
		return transport.StatusOK
	case errors.Is(err, fault.ErrInvalidArgument):
		return transport.StatusBadRequest
	case errors.Is(err, fault.ErrConflict):
		return transport.StatusConflict
	case errors.Is(err, fault.ErrCapacityExceeded):
		return transport.StatusResourceFull
	case errors.Is(err, fault.ErrNotFound):
		return transport.StatusNotFound
	default:
		return transport.StatusInternalError
	}
}
