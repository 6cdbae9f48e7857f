package discovery

import (
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/meshpair/meshpair-go/pkg/ident"
	"github.com/meshpair/meshpair-go/pkg/version"
)

// Service constants.
const (
	// ServiceType is the DNS-SD service type of mesh nodes.
	ServiceType = "_meshpair._udp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the advertised port.
	DefaultPort = 5683
)

// TXT record keys.
const (
	TXTKeyVersion = "v"
	TXTKeyGroup   = "gr"
	TXTKeyType    = "dt"
)

// Timing defaults.
const (
	DefaultBrowseInterval = 30 * time.Second
	DefaultBrowseWindow   = 5 * time.Second
	DefaultTTL            = 120 * time.Second
)

// Discovery errors.
var (
	ErrNoAddress    = errors.New("service entry has no usable address")
	ErrTypeMismatch = errors.New("TXT device type does not match instance name")
	ErrVersion      = errors.New("unsupported protocol version")
)

// ServiceEntry is a resolved DNS-SD instance, independent of the mDNS library.
type ServiceEntry struct {
	Instance string
	Host     string
	Port     int
	Text     []string
	Addrs    []net.IP
}

// Candidate is a device offered for pairing.
type Candidate struct {
	Name    string
	Address ident.Address
	Host    string
	Port    int
}

// Sink receives discovered candidates. It must not block.
type Sink interface {
	Candidate(name string, addr ident.Address) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(name string, addr ident.Address) error

// Candidate calls f.
func (f SinkFunc) Candidate(name string, addr ident.Address) error {
	return f(name, addr)
}

// ToCandidate validates the entry and picks its mesh address.
func (e *ServiceEntry) ToCandidate() (Candidate, error) {
	parts, err := ident.ParseName(e.Instance)
	if err != nil {
		return Candidate{}, fmt.Errorf("instance %q: %w", e.Instance, err)
	}
	if _, err := ident.NewName(e.Instance); err != nil {
		return Candidate{}, fmt.Errorf("instance %q: %w", e.Instance, err)
	}

	txt := StringsToTXTRecords(e.Text)
	if v, ok := txt[TXTKeyVersion]; ok && !version.SupportsTXT(v) {
		return Candidate{}, fmt.Errorf("instance %q: %w: v=%s", e.Instance, ErrVersion, v)
	}
	if dt, ok := txt[TXTKeyType]; ok {
		v, err := strconv.ParseUint(dt, 10, 8)
		if err != nil || ident.DeviceType(v) != parts.Type {
			return Candidate{}, fmt.Errorf("instance %q: %w", e.Instance, ErrTypeMismatch)
		}
	}

	ip := pickAddress(e.Addrs)
	if ip == nil {
		return Candidate{}, fmt.Errorf("instance %q: %w", e.Instance, ErrNoAddress)
	}
	addr, err := ident.AddressFromIP(ip)
	if err != nil {
		return Candidate{}, fmt.Errorf("instance %q: %w", e.Instance, err)
	}

	return Candidate{
		Name:    e.Instance,
		Address: addr,
		Host:    e.Host,
		Port:    e.Port,
	}, nil
}

// pickAddress prefers a routable IPv6 address, then IPv4, then link-local
// IPv6. Link-local addresses carry no zone here and only work on a single link.
func pickAddress(addrs []net.IP) net.IP {
	var v4, linkLocal net.IP
	for _, ip := range addrs {
		switch {
		case ip == nil || ip.IsUnspecified():
			continue
		case ip.To4() != nil:
			if v4 == nil {
				v4 = ip
			}
		case ip.IsLinkLocalUnicast():
			if linkLocal == nil {
				linkLocal = ip
			}
		default:
			return ip
		}
	}
	if v4 != nil {
		return v4
	}
	return linkLocal
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeTXT builds the TXT records advertised for name.
func EncodeTXT(name ident.Name) (TXTRecordMap, error) {
	parts, err := ident.ParseName(name.String())
	if err != nil {
		return nil, err
	}
	return TXTRecordMap{
		TXTKeyVersion: version.TXTValue(version.CurrentMajor()),
		TXTKeyGroup:   parts.Group,
		TXTKeyType:    strconv.Itoa(int(parts.Type)),
	}, nil
}

// TXTRecordsToStrings converts a TXTRecordMap to "key=value" strings,
// sorted by key.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, k+"="+v)
	}
	sort.Strings(result)
	return result
}

// StringsToTXTRecords parses "key=value" strings into a TXTRecordMap.
func StringsToTXTRecords(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, _ := strings.Cut(s, "=")
		if k != "" {
			txt[k] = v
		}
	}
	return txt
}
