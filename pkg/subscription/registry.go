package subscription

import (
	"log/slog"
	"sync"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/transport"
)

// Registry tracks the peers observing this node's resources.
type Registry struct {
	mu sync.Mutex

	config  Config
	devices []*observer

	sender transport.Sender
	logger *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the operational logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry that sends notifications via sender.
func NewRegistry(config Config, sender transport.Sender, opts ...Option) *Registry {
	config = config.withDefaults()
	r := &Registry{
		config:  config,
		devices: make([]*observer, config.MaxDevices),
		sender:  sender,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe records that deviceName at addr observes resource under token.
func (r *Registry) Subscribe(token ident.Token, resource ident.ResourceIndex, addr ident.Address, deviceName string) (Result, error) {
	if resource == ident.NoResource {
		return NoUpdateNeeded, ErrInvalidResource
	}
	if addr.IsZero() {
		return NoUpdateNeeded, ident.ErrInvalidAddress
	}
	if token.IsZero() {
		return NoUpdateNeeded, ErrInvalidToken
	}
	name, err := ident.NewName(deviceName)
	if err != nil {
		return NoUpdateNeeded, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, slot := r.findDeviceLocked(deviceName)

	// Token uniqueness: the token may only already belong to the uri-slot
	// that this call would update.
	if owner, uri := r.findTokenLocked(token); owner != nil {
		if owner != dev || owner.uris[uri].resource != resource {
			return NoUpdateNeeded, ErrTokenInUse
		}
	}

	if dev == nil {
		slot = r.freeDeviceLocked()
		if slot < 0 {
			return NoUpdateNeeded, ErrListFull
		}
		dev = &observer{
			name: name,
			addr: addr,
			uris: make([]*uriSlot, r.config.MaxURIsPerDevice),
		}
		dev.uris[0] = &uriSlot{token: token, resource: resource}
		r.devices[slot] = dev
		r.debug("subscription added for new device", "slot", slot, "device", deviceName, "resource", resource, "token", token)
		return AddedNewDevice, nil
	}

	// Decide everything before mutating so a rejected call leaves the slot untouched.
	var result Result
	uri := dev.findResource(resource)
	if uri < 0 {
		uri = dev.freeURI()
		if uri < 0 {
			return NoUpdateNeeded, ErrListFull
		}
		result |= URIAdded
	} else if dev.uris[uri].token != token {
		result |= TokenUpdated
	}
	if dev.addr != addr {
		result |= AddressUpdated
	}

	if result.Has(URIAdded) {
		dev.uris[uri] = &uriSlot{token: token, resource: resource}
	}
	if result.Has(TokenUpdated) {
		dev.uris[uri].token = token
	}
	if result.Has(AddressUpdated) {
		dev.addr = addr
	}

	if result != NoUpdateNeeded {
		r.debug("subscription updated", "slot", slot, "device", deviceName, "resource", resource, "token", token, "result", result)
	}
	return result, nil
}

// Unsubscribe clears the uri-slot holding token under deviceName. The device
// slot itself stays allocated even if no uri-slot remains.
func (r *Registry) Unsubscribe(deviceName string, token ident.Token) error {
	if token.IsZero() {
		return ErrInvalidToken
	}
	if _, err := ident.NewName(deviceName); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dev, _ := r.findDeviceLocked(deviceName)
	if dev == nil {
		return ErrDeviceNotFound
	}
	uri := dev.findToken(token)
	if uri < 0 {
		return ErrTokenNotExist
	}
	dev.uris[uri] = nil

	r.debug("subscription removed", "device", deviceName, "token", token)
	return nil
}

// UnsubscribeAll frees the device slot of deviceName with all its uri-slots.
func (r *Registry) UnsubscribeAll(deviceName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, slot := r.findDeviceLocked(deviceName)
	if slot < 0 {
		return ErrDeviceNotFound
	}
	r.devices[slot] = nil

	r.debug("device subscriptions removed", "slot", slot, "device", deviceName)
	return nil
}

type target struct {
	addr  ident.Address
	token ident.Token
}

// Notify sends payload to every observer of resource and returns the number
// of observers notified.
func (r *Registry) Notify(resource ident.ResourceIndex, payload []byte) (int, error) {
	if resource == ident.NoResource {
		return 0, ErrInvalidResource
	}
	if len(payload) > r.config.MaxPayloadSize {
		return 0, ErrPayloadTooLarge
	}

	r.mu.Lock()
	var targets []target
	for _, dev := range r.devices {
		if dev == nil {
			continue
		}
		for _, u := range dev.uris {
			if u != nil && u.resource == resource {
				targets = append(targets, target{addr: dev.addr, token: u.token})
			}
		}
	}
	sender := r.sender
	r.mu.Unlock()

	if sender == nil {
		return 0, nil
	}

	// Send outside the lock; delivery is fire-and-forget.
	for _, t := range targets {
		packet := transport.EncodeNotification(t.token, payload)
		if err := sender.SendNotification(t.addr, packet); err != nil {
			r.warn("notification send failed", "address", t.addr, "token", t.token, "error", err)
		}
	}
	return len(targets), nil
}

// DeleteAll clears the whole registry.
func (r *Registry) DeleteAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.devices {
		r.devices[i] = nil
	}
	r.debug("subscription registry cleared")
}

// Count returns the number of occupied uri-slots.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, dev := range r.devices {
		if dev == nil {
			continue
		}
		for _, u := range dev.uris {
			if u != nil {
				n++
			}
		}
	}
	return n
}

// Entries returns a snapshot of all occupied device slots in slot order.
func (r *Registry) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, 0)
	for i, dev := range r.devices {
		if dev == nil {
			continue
		}
		e := Entry{Slot: i, DeviceName: dev.name.String(), Address: dev.addr}
		for j, u := range dev.uris {
			if u != nil {
				e.URIs = append(e.URIs, URI{Slot: j, Token: u.token, Resource: u.resource})
			}
		}
		out = append(out, e)
	}
	return out
}

func (r *Registry) findDeviceLocked(name string) (*observer, int) {
	for i, dev := range r.devices {
		if dev != nil && dev.name.String() == name {
			return dev, i
		}
	}
	return nil, -1
}

func (r *Registry) findTokenLocked(token ident.Token) (*observer, int) {
	for _, dev := range r.devices {
		if dev == nil {
			continue
		}
		if uri := dev.findToken(token); uri >= 0 {
			return dev, uri
		}
	}
	return nil, -1
}

func (r *Registry) freeDeviceLocked() int {
	for i, dev := range r.devices {
		if dev == nil {
			return i
		}
	}
	return -1
}

func (r *Registry) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}

func (r *Registry) warn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}
