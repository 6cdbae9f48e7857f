// Package version provides protocol version parsing, comparison and the
// TXT record form advertised over DNS-SD.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Current is the protocol version implemented by this library.
const Current = "1.0"

// SpecVersion represents a parsed "major.minor" protocol version.
type SpecVersion struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (SpecVersion, error) {
	majorStr, minorStr, ok := strings.Cut(s, ".")
	if !ok {
		return SpecVersion{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}
	major, err := strconv.ParseUint(majorStr, 10, 16)
	if err != nil {
		return SpecVersion{}, fmt.Errorf("invalid version %q: major: %w", s, err)
	}
	minor, err := strconv.ParseUint(minorStr, 10, 16)
	if err != nil {
		return SpecVersion{}, fmt.Errorf("invalid version %q: minor: %w", s, err)
	}
	return SpecVersion{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v SpecVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v SpecVersion) Compatible(other SpecVersion) bool {
	return v.Major == other.Major
}

// CurrentMajor returns the major component of Current.
func CurrentMajor() uint16 {
	v, _ := Parse(Current)
	return v.Major
}

// TXTValue returns the value of the "v" TXT record for a major version.
// Only the major version is advertised; minor revisions stay compatible.
func TXTValue(major uint16) string {
	return strconv.FormatUint(uint64(major), 10)
}

// MajorFromTXT extracts the major version from a "v" TXT record value.
func MajorFromTXT(value string) (uint16, error) {
	if value == "" {
		return 0, fmt.Errorf("empty version TXT record")
	}
	major, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid version TXT record %q: %w", value, err)
	}
	return uint16(major), nil
}

// SupportsTXT reports whether a peer advertising value speaks a protocol
// version this library can pair with.
func SupportsTXT(value string) bool {
	major, err := MajorFromTXT(value)
	return err == nil && major == CurrentMajor()
}
