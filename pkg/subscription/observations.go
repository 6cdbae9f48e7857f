package subscription

import (
	"log/slog"
	"sync"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// StateHandler receives the payloads of notifications for resources this
// node observes on remote devices.
type StateHandler interface {
	OnResourceStateChanged(token ident.Token, payload []byte)
}

// Observation is an Observe relationship this node holds on a remote device.
type Observation struct {
	Token      ident.Token
	DeviceName string
	Resource   ident.ResourceIndex
}

// Observations tracks the tokens this node issued when observing remote
// resources and routes inbound notifications to a StateHandler.
type Observations struct {
	mu sync.Mutex

	slots   []*Observation
	handler StateHandler
	logger  *slog.Logger
}

// NewObservations creates a table with room for size observations.
func NewObservations(size int, handler StateHandler, logger *slog.Logger) *Observations {
	if size <= 0 {
		size = DefaultMaxDevices
	}
	return &Observations{
		slots:   make([]*Observation, size),
		handler: handler,
		logger:  logger,
	}
}

// Watch records an observation under token.
func (o *Observations) Watch(token ident.Token, deviceName string, resource ident.ResourceIndex) error {
	if token.IsZero() {
		return ErrInvalidToken
	}
	if resource == ident.NoResource {
		return ErrInvalidResource
	}
	if _, err := ident.NewName(deviceName); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	free := -1
	for i, s := range o.slots {
		if s == nil {
			if free < 0 {
				free = i
			}
			continue
		}
		if s.Token == token {
			return ErrTokenInUse
		}
	}
	if free < 0 {
		return ErrListFull
	}
	o.slots[free] = &Observation{Token: token, DeviceName: deviceName, Resource: resource}
	return nil
}

// Forget removes the observation held under token.
func (o *Observations) Forget(token ident.Token) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i, s := range o.slots {
		if s != nil && s.Token == token {
			o.slots[i] = nil
			return nil
		}
	}
	return ErrTokenNotExist
}

// ForgetDevice removes every observation held on deviceName and returns
// how many were removed.
func (o *Observations) ForgetDevice(deviceName string) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := 0
	for i, s := range o.slots {
		if s != nil && s.DeviceName == deviceName {
			o.slots[i] = nil
			n++
		}
	}
	return n
}

// Lookup returns the observation held under token.
func (o *Observations) Lookup(token ident.Token) (Observation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, s := range o.slots {
		if s != nil && s.Token == token {
			return *s, true
		}
	}
	return Observation{}, false
}

// Deliver hands payload to the StateHandler if token belongs to a known
// observation. It reports whether the notification was routed.
func (o *Observations) Deliver(token ident.Token, payload []byte) bool {
	obs, ok := o.Lookup(token)
	if !ok {
		if o.logger != nil {
			o.logger.Debug("notification for unknown token ignored", "token", token)
		}
		return false
	}
	if o.handler != nil {
		o.handler.OnResourceStateChanged(obs.Token, payload)
	}
	return true
}

// All returns a snapshot of the current observations.
func (o *Observations) All() []Observation {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]Observation, 0)
	for _, s := range o.slots {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

// Clear removes every observation.
func (o *Observations) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := range o.slots {
		o.slots[i] = nil
	}
}
