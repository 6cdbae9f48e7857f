package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/log"
	"github.com/meshpair/meshpair-go/pkg/subscription"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// ErrNoTransport is returned by client operations on a node built without
// a transport.
var ErrNoTransport = errors.New("node has no transport")

// Observe asks the paired device deviceName to push changes of resource to
// this node and returns the token identifying the observation.
func (n *Node) Observe(deviceName string, resource ident.ResourceIndex) (ident.Token, error) {
	if n.tr == nil {
		return ident.Token{}, ErrNoTransport
	}
	path, ok := n.resources.path(resource)
	if !ok {
		return ident.Token{}, ErrUnknownResource
	}
	entry, err := n.dir.Get(deviceName)
	if err != nil {
		return ident.Token{}, err
	}
	if entry.Address.IsZero() {
		return ident.Token{}, ErrAddressUnknown
	}

	var token ident.Token
	for {
		token = ident.RandomToken()
		err = n.obs.Watch(token, deviceName, resource)
		if !errors.Is(err, subscription.ErrTokenInUse) {
			break
		}
	}
	if err != nil {
		return ident.Token{}, err
	}

	if !hasResource(entry.Resources, resource) {
		if _, _, err := n.dir.AddResource(deviceName, resource); err != nil {
			_ = n.obs.Forget(token)
			return ident.Token{}, err
		}
	}

	answered := func(resp *transport.Message, err error) {
		n.observeAnswered(deviceName, token, resp, err)
	}
	if err := n.tr.SendObserve(entry.Address, path, token, answered); err != nil {
		_ = n.obs.Forget(token)
		return ident.Token{}, fmt.Errorf("observe %s on %s: %w", path, deviceName, err)
	}

	n.events.Table(deviceName, log.TableEvent{
		Table:    log.TableObservations,
		Action:   log.ActionAdd,
		Slot:     -1,
		Resource: uint8(resource),
		Token:    token.String(),
	})
	return token, nil
}

// observeAnswered settles an observation once the remote has answered. A
// refused or unanswered observe is dropped from the table; an accepted one
// delivers the current state carried by the response.
func (n *Node) observeAnswered(deviceName string, token ident.Token, resp *transport.Message, err error) {
	if err == nil && resp.Status == transport.StatusOK {
		if len(resp.Payload) > 0 {
			n.obs.Deliver(token, resp.Payload)
		}
		return
	}

	var detail string
	if err != nil {
		detail = err.Error()
	} else {
		detail = resp.Status.String()
	}
	if n.obs.Forget(token) != nil {
		// Already cancelled locally.
		return
	}
	n.warn("observe not established", "name", deviceName, "token", token, "reason", detail)
	n.events.Table(deviceName, log.TableEvent{
		Table:  log.TableObservations,
		Action: log.ActionDelete,
		Slot:   -1,
		Token:  token.String(),
		Detail: detail,
	})
}

// Unobserve cancels the observation held under token.
func (n *Node) Unobserve(token ident.Token) error {
	o, ok := n.obs.Lookup(token)
	if !ok {
		return subscription.ErrTokenNotExist
	}
	_ = n.obs.Forget(token)
	n.events.Table(o.DeviceName, log.TableEvent{
		Table:  log.TableObservations,
		Action: log.ActionDelete,
		Slot:   -1,
		Token:  token.String(),
	})

	if n.tr == nil {
		return nil
	}
	entry, err := n.dir.Get(o.DeviceName)
	if err != nil || entry.Address.IsZero() {
		// Nothing to tell a device that is gone or unreachable.
		return nil
	}
	if err := n.tr.SendCancel(entry.Address, token); err != nil {
		return fmt.Errorf("cancel %s on %s: %w", token, o.DeviceName, err)
	}
	return nil
}

type getResult struct {
	resp *transport.Message
	err  error
}

// Get reads the current state of resource from the paired device
// deviceName. It waits for the response or for ctx to be done.
func (n *Node) Get(ctx context.Context, deviceName string, resource ident.ResourceIndex) ([]byte, error) {
	if n.tr == nil {
		return nil, ErrNoTransport
	}
	path, ok := n.resources.path(resource)
	if !ok {
		return nil, ErrUnknownResource
	}
	entry, err := n.dir.Get(deviceName)
	if err != nil {
		return nil, err
	}
	if entry.Address.IsZero() {
		return nil, ErrAddressUnknown
	}

	ch := make(chan getResult, 1)
	err = n.tr.SendRequest(entry.Address, path, nil, func(resp *transport.Message, err error) {
		ch <- getResult{resp: resp, err: err}
	})
	if err != nil {
		return nil, fmt.Errorf("get %s from %s: %w", path, deviceName, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("get %s from %s: %w", path, deviceName, r.err)
		}
		if r.resp.Status != transport.StatusOK {
			return nil, fmt.Errorf("%w: %s", ErrRemoteStatus, r.resp.Status)
		}
		return r.resp.Payload, nil
	}
}

func hasResource(resources []ident.ResourceIndex, resource ident.ResourceIndex) bool {
	for _, r := range resources {
		if r == resource {
			return true
		}
	}
	return false
}
