package subscription

import (
	"fmt"
	"strings"

	"github.com/meshpair/meshpair-go/pkg/fault"
	"github.com/meshpair/meshpair-go/pkg/ident"
)

// Subscription errors.
var (
	ErrInvalidResource = fmt.Errorf("%w: resource index 0 is reserved", fault.ErrInvalidArgument)
	ErrInvalidToken    = fmt.Errorf("%w: zero token", fault.ErrInvalidArgument)
	ErrPayloadTooLarge = fmt.Errorf("%w: payload too large", fault.ErrInvalidArgument)
	ErrTokenInUse      = fmt.Errorf("%w: token already in use", fault.ErrConflict)
	ErrListFull        = fmt.Errorf("%w: subscription list full", fault.ErrCapacityExceeded)
	ErrDeviceNotFound  = fmt.Errorf("%w: no subscriptions for device", fault.ErrNotFound)
	ErrTokenNotExist   = fmt.Errorf("%w: token does not exist", fault.ErrNotFound)
)

// Default limits.
const (
	DefaultMaxDevices       = 20
	DefaultMaxURIsPerDevice = 4
	DefaultMaxPayloadSize   = 64
)

// Config holds registry limits.
type Config struct {
	// MaxDevices is the number of device slots.
	MaxDevices int

	// MaxURIsPerDevice is the number of uri-slots per device.
	MaxURIsPerDevice int

	// MaxPayloadSize is the largest notification payload accepted by Notify.
	MaxPayloadSize int
}

// DefaultConfig returns the default registry configuration.
func DefaultConfig() Config {
	return Config{
		MaxDevices:       DefaultMaxDevices,
		MaxURIsPerDevice: DefaultMaxURIsPerDevice,
		MaxPayloadSize:   DefaultMaxPayloadSize,
	}
}

func (c Config) withDefaults() Config {
	if c.MaxDevices <= 0 {
		c.MaxDevices = DefaultMaxDevices
	}
	if c.MaxURIsPerDevice <= 0 {
		c.MaxURIsPerDevice = DefaultMaxURIsPerDevice
	}
	if c.MaxPayloadSize <= 0 {
		c.MaxPayloadSize = DefaultMaxPayloadSize
	}
	return c
}

// Result describes what Subscribe changed.
type Result uint8

// Result bits and values.
const (
	// NoUpdateNeeded means the subscription was already recorded as given.
	NoUpdateNeeded Result = 0

	// AddressUpdated means the device's cached address was replaced.
	AddressUpdated Result = 1 << 0

	// TokenUpdated means an existing resource was re-registered with a new token.
	TokenUpdated Result = 1 << 1

	// URIAdded means a new resource was added for a known device.
	URIAdded Result = 1 << 2

	// AddedNewDevice means a device slot was allocated for a new device.
	AddedNewDevice Result = 1 << 7
)

// Has reports whether all bits of flag are set in r.
func (r Result) Has(flag Result) bool {
	return flag != 0 && r&flag == flag
}

// String returns the set flags joined by "|".
func (r Result) String() string {
	switch r {
	case NoUpdateNeeded:
		return "NO_UPDATE_NEEDED"
	case AddedNewDevice:
		return "ADDED_NEW_DEVICE"
	}
	var parts []string
	if r.Has(AddressUpdated) {
		parts = append(parts, "ADDRESS_UPDATED")
	}
	if r.Has(TokenUpdated) {
		parts = append(parts, "TOKEN_UPDATED")
	}
	if r.Has(URIAdded) {
		parts = append(parts, "URI_ADDED")
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, "|")
}

// URI is a snapshot of an occupied uri-slot.
type URI struct {
	Slot     int
	Token    ident.Token
	Resource ident.ResourceIndex
}

// Entry is a snapshot of an occupied device slot.
type Entry struct {
	Slot       int
	DeviceName string
	Address    ident.Address
	URIs       []URI
}

// uriSlot is one Observe relationship.
type uriSlot struct {
	token    ident.Token
	resource ident.ResourceIndex
}

// observer is an occupied device slot. Free uri-slots hold nil.
type observer struct {
	name ident.Name
	addr ident.Address
	uris []*uriSlot
}

func (o *observer) findResource(resource ident.ResourceIndex) int {
	for i, u := range o.uris {
		if u != nil && u.resource == resource {
			return i
		}
	}
	return -1
}

func (o *observer) findToken(token ident.Token) int {
	for i, u := range o.uris {
		if u != nil && u.token == token {
			return i
		}
	}
	return -1
}

func (o *observer) freeURI() int {
	for i, u := range o.uris {
		if u == nil {
			return i
		}
	}
	return -1
}
