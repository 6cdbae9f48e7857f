package rules

import (
	"fmt"
	"strings"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// Tag values of the compact allow-list encoding.
const (
	// TagEnd terminates a list of device-type tags.
	TagEnd uint8 = 0xFF

	// TagAll as the first tag allows every device type.
	TagAll uint8 = 0xFE

	// TagNone as the first tag allows no device type.
	TagNone uint8 = 0xFD
)

type allowMode uint8

const (
	modeReject allowMode = iota
	modeAll
	modeNone
	modeTypes
)

// AllowList is an ordered set of allowed device types, or one of the special
// values "allow everything" / "allow nothing". The zero value rejects all.
type AllowList struct {
	mode  allowMode
	types []ident.DeviceType
}

// AllowAll returns an allow list accepting every device type.
func AllowAll() AllowList {
	return AllowList{mode: modeAll}
}

// AllowNone returns an allow list accepting no device type.
func AllowNone() AllowList {
	return AllowList{mode: modeNone}
}

// AllowTypes returns an allow list accepting the given device types.
// An empty call rejects everything.
func AllowTypes(types ...ident.DeviceType) AllowList {
	if len(types) == 0 {
		return AllowList{}
	}
	seen := make(map[ident.DeviceType]struct{}, len(types))
	out := make([]ident.DeviceType, 0, len(types))
	for _, t := range types {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return AllowList{mode: modeTypes, types: out}
}

// AllowListFromTags decodes the compact encoding: a sequence of type tags
// terminated by TagEnd, or TagAll / TagNone as the first tag. A list without
// a terminator, or with no entries before it, rejects everything.
func AllowListFromTags(tags []uint8) AllowList {
	if len(tags) == 0 {
		return AllowList{}
	}
	switch tags[0] {
	case TagAll:
		return AllowAll()
	case TagNone:
		return AllowNone()
	}

	var types []ident.DeviceType
	for _, tag := range tags {
		if tag == TagEnd {
			return AllowTypes(types...)
		}
		if tag == TagAll || tag == TagNone {
			// Special values are only meaningful in first position.
			return AllowList{}
		}
		types = append(types, ident.DeviceType(tag))
	}
	return AllowList{}
}

// ParseAllowList parses the configuration form of an allow list: a single
// "all" or "none", or a list of device types by tag or name.
func ParseAllowList(entries []string) (AllowList, error) {
	if len(entries) == 0 {
		return AllowList{}, nil
	}
	if len(entries) == 1 {
		switch strings.ToLower(strings.TrimSpace(entries[0])) {
		case "all", "*":
			return AllowAll(), nil
		case "none":
			return AllowNone(), nil
		}
	}

	types := make([]ident.DeviceType, 0, len(entries))
	for _, e := range entries {
		t, err := ident.ParseDeviceType(strings.TrimSpace(e))
		if err != nil {
			return AllowList{}, fmt.Errorf("allow list: %w", err)
		}
		types = append(types, t)
	}
	return AllowTypes(types...), nil
}

// Allows reports whether t is on the list.
func (l AllowList) Allows(t ident.DeviceType) bool {
	switch l.mode {
	case modeAll:
		return true
	case modeTypes:
		for _, allowed := range l.types {
			if allowed == t {
				return true
			}
		}
	}
	return false
}

// Tags returns the compact encoding of the list.
func (l AllowList) Tags() []uint8 {
	switch l.mode {
	case modeAll:
		return []uint8{TagAll}
	case modeNone:
		return []uint8{TagNone}
	case modeTypes:
		tags := make([]uint8, 0, len(l.types)+1)
		for _, t := range l.types {
			tags = append(tags, uint8(t))
		}
		return append(tags, TagEnd)
	default:
		return nil
	}
}

// String returns a human-readable form of the list.
func (l AllowList) String() string {
	switch l.mode {
	case modeAll:
		return "all"
	case modeNone:
		return "none"
	case modeTypes:
		names := make([]string, len(l.types))
		for i, t := range l.types {
			names[i] = t.String()
		}
		return strings.Join(names, ",")
	default:
		return "reject"
	}
}
