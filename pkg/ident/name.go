package ident

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/meshpair/meshpair-go/pkg/fault"
)

// MaxNameLen is the maximum length of a device name in bytes.
const MaxNameLen = 31

// HardwareAddrLen is the length of the hex encoded hardware address suffix.
const HardwareAddrLen = 16

// Name errors.
var (
	ErrEmptyName     = fmt.Errorf("%w: empty device name", fault.ErrInvalidArgument)
	ErrNameTooLong   = fmt.Errorf("%w: device name exceeds %d bytes", fault.ErrInvalidArgument, MaxNameLen)
	ErrMalformedName = errors.New("malformed device name")
)

// Name is a device name bounded to MaxNameLen bytes.
// The zero value is not a valid name.
type Name struct {
	s string
}

// NewName validates s and returns it as a Name.
func NewName(s string) (Name, error) {
	if s == "" {
		return Name{}, ErrEmptyName
	}
	if len(s) > MaxNameLen {
		return Name{}, ErrNameTooLong
	}
	if strings.IndexByte(s, 0) >= 0 {
		return Name{}, fmt.Errorf("%w: device name contains NUL", fault.ErrInvalidArgument)
	}
	return Name{s: s}, nil
}

// MustName is like NewName but panics on error. Intended for constants and tests.
func MustName(s string) Name {
	n, err := NewName(s)
	if err != nil {
		panic(err)
	}
	return n
}

// String returns the name as a string.
func (n Name) String() string {
	return n.s
}

// IsZero reports whether n is the zero (invalid) name.
func (n Name) IsZero() bool {
	return n.s == ""
}

// DeviceType is the numeric device-type tag carried in a device name.
type DeviceType uint8

// Known device types.
const (
	TypeUnknown      DeviceType = 0
	TypeControlPanel DeviceType = 1
	TypeLight        DeviceType = 2
	TypeButton       DeviceType = 3
	TypeSensor       DeviceType = 4
	TypeThermostat   DeviceType = 5
	TypePlug         DeviceType = 6
)

// String returns a human-readable device type name.
func (t DeviceType) String() string {
	switch t {
	case TypeControlPanel:
		return "CONTROL_PANEL"
	case TypeLight:
		return "LIGHT"
	case TypeButton:
		return "BUTTON"
	case TypeSensor:
		return "SENSOR"
	case TypeThermostat:
		return "THERMOSTAT"
	case TypePlug:
		return "PLUG"
	default:
		return "UNKNOWN"
	}
}

// ParseDeviceType parses either a decimal tag ("3") or a type name ("button").
func ParseDeviceType(s string) (DeviceType, error) {
	if v, err := strconv.ParseUint(s, 10, 8); err == nil {
		return DeviceType(v), nil
	}
	switch strings.ToUpper(strings.ReplaceAll(s, "-", "_")) {
	case "CONTROL_PANEL", "PANEL", "HUB":
		return TypeControlPanel, nil
	case "LIGHT":
		return TypeLight, nil
	case "BUTTON":
		return TypeButton, nil
	case "SENSOR":
		return TypeSensor, nil
	case "THERMOSTAT":
		return TypeThermostat, nil
	case "PLUG":
		return TypePlug, nil
	}
	return TypeUnknown, fmt.Errorf("%w: unknown device type %q", fault.ErrInvalidArgument, s)
}

// Parts are the components of a device name.
type Parts struct {
	// Group is the logical name shared by nodes that belong together.
	Group string

	// Type is the device-type tag.
	Type DeviceType

	// HardwareAddr is the hex encoded factory hardware address.
	HardwareAddr string
}

// ParseName splits a device name into its group, type and hardware address.
// The group may itself contain underscores; type and hardware address are
// always the last two fields.
func ParseName(s string) (Parts, error) {
	last := strings.LastIndexByte(s, '_')
	if last <= 0 {
		return Parts{}, ErrMalformedName
	}
	hw := s[last+1:]
	rest := s[:last]

	mid := strings.LastIndexByte(rest, '_')
	if mid <= 0 {
		return Parts{}, ErrMalformedName
	}
	group := rest[:mid]
	typ := rest[mid+1:]

	if len(hw) != HardwareAddrLen {
		return Parts{}, fmt.Errorf("%w: hardware address must be %d hex chars", ErrMalformedName, HardwareAddrLen)
	}
	if _, err := hex.DecodeString(hw); err != nil {
		return Parts{}, fmt.Errorf("%w: hardware address: %v", ErrMalformedName, err)
	}
	v, err := strconv.ParseUint(typ, 10, 8)
	if err != nil {
		return Parts{}, fmt.Errorf("%w: device type %q", ErrMalformedName, typ)
	}

	return Parts{
		Group:        group,
		Type:         DeviceType(v),
		HardwareAddr: strings.ToLower(hw),
	}, nil
}

// FormatName builds a device name from its parts and validates the result.
func FormatName(p Parts) (Name, error) {
	if p.Group == "" {
		return Name{}, fmt.Errorf("%w: empty group", fault.ErrInvalidArgument)
	}
	if _, err := hex.DecodeString(p.HardwareAddr); err != nil || len(p.HardwareAddr) != HardwareAddrLen {
		return Name{}, fmt.Errorf("%w: hardware address %q", fault.ErrInvalidArgument, p.HardwareAddr)
	}
	return NewName(fmt.Sprintf("%s_%d_%s", p.Group, p.Type, strings.ToLower(p.HardwareAddr)))
}
