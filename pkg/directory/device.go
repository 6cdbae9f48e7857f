package directory

import (
	"fmt"

	"github.com/meshpair/meshpair-go/pkg/fault"
	"github.com/meshpair/meshpair-go/pkg/ident"
)

// Directory errors.
var (
	ErrAlreadyExists  = fmt.Errorf("%w: device already paired", fault.ErrConflict)
	ErrNoSpace        = fmt.Errorf("%w: no free device slot", fault.ErrCapacityExceeded)
	ErrResourcesFull  = fmt.Errorf("%w: no free resource slot", fault.ErrCapacityExceeded)
	ErrNotFound       = fmt.Errorf("%w: device not paired", fault.ErrNotFound)
	ErrInvalidSlot    = fmt.Errorf("%w: slot index out of range or empty", fault.ErrInvalidArgument)
	ErrInvalidURISlot = fmt.Errorf("%w: resource slot index out of range", fault.ErrInvalidArgument)
	ErrNoResource     = fmt.Errorf("%w: resource index 0 is reserved", fault.ErrInvalidArgument)
)

// Default capacities.
const (
	DefaultMaxDevices   = 10
	DefaultMaxResources = 4
)

// Config holds directory capacities.
type Config struct {
	// MaxDevices is the number of device slots.
	MaxDevices int

	// MaxResources is the number of resource slots per device.
	MaxResources int
}

// DefaultConfig returns the default directory configuration.
func DefaultConfig() Config {
	return Config{
		MaxDevices:   DefaultMaxDevices,
		MaxResources: DefaultMaxResources,
	}
}

// UpdateResult reports the outcome of UpdateAddress.
type UpdateResult uint8

const (
	// NoUpdateNeeded means the stored address already matched.
	NoUpdateNeeded UpdateResult = iota

	// Updated means the stored address was replaced.
	Updated
)

// String returns the result name.
func (r UpdateResult) String() string {
	switch r {
	case NoUpdateNeeded:
		return "NO_UPDATE_NEEDED"
	case Updated:
		return "UPDATED"
	default:
		return "UNKNOWN"
	}
}

// Device is an occupied directory slot.
type Device struct {
	// Name uniquely identifies the device.
	Name ident.Name

	// Address is the device's current mesh address.
	Address ident.Address

	// Resources maps resource slots to local resource indices.
	// Free slots hold ident.NoResource.
	Resources []ident.ResourceIndex
}

func (d *Device) clone() Device {
	c := *d
	c.Resources = append([]ident.ResourceIndex(nil), d.Resources...)
	return c
}

// Entry is a snapshot of an occupied slot.
type Entry struct {
	Slot int
	Device
}
