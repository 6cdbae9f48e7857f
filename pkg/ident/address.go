package ident

import (
	"encoding/binary"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/meshpair/meshpair-go/pkg/fault"
)

// AddressLen is the length of a mesh address in bytes.
const AddressLen = 16

// Address is a 16-byte mesh network address.
type Address [AddressLen]byte

// ErrInvalidAddress is returned when an address is zero or cannot be parsed.
var ErrInvalidAddress = fmt.Errorf("%w: invalid address", fault.ErrInvalidArgument)

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String returns the IPv6 text form of the address.
func (a Address) String() string {
	return netip.AddrFrom16(a).String()
}

// IP returns the address as a net.IP.
func (a Address) IP() net.IP {
	ip := make(net.IP, AddressLen)
	copy(ip, a[:])
	return ip
}

// AddressFromIP converts an IPv4 or IPv6 address to an Address.
// IPv4 addresses are stored in their IPv4-mapped IPv6 form.
func AddressFromIP(ip net.IP) (Address, error) {
	ip16 := ip.To16()
	if ip16 == nil {
		return Address{}, ErrInvalidAddress
	}
	var a Address
	copy(a[:], ip16)
	if a.IsZero() {
		return Address{}, ErrInvalidAddress
	}
	return a, nil
}

// ParseAddress parses an IPv4 or IPv6 text address.
func ParseAddress(s string) (Address, error) {
	ip, err := netip.ParseAddr(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	a := Address(ip.As16())
	if a.IsZero() {
		return Address{}, ErrInvalidAddress
	}
	return a, nil
}

// TokenLen is the length of an Observe token in bytes.
const TokenLen = 4

// Token identifies a CoAP Observe exchange.
type Token [TokenLen]byte

// IsZero reports whether t is the all-zero token.
func (t Token) IsZero() bool {
	return t == Token{}
}

// Uint32 returns the token as a big-endian integer.
func (t Token) Uint32() uint32 {
	return binary.BigEndian.Uint32(t[:])
}

// String returns the token as eight lowercase hex digits without prefix.
func (t Token) String() string {
	return fmt.Sprintf("%08x", t.Uint32())
}

// TokenFromUint32 builds a token from its big-endian integer form.
func TokenFromUint32(v uint32) Token {
	var t Token
	binary.BigEndian.PutUint32(t[:], v)
	return t
}

// ParseToken parses the 8 hex digit form returned by Token.String.
func ParseToken(s string) (Token, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, 32)
	if err != nil {
		return Token{}, fmt.Errorf("%w: token %q", fault.ErrInvalidArgument, s)
	}
	return TokenFromUint32(uint32(v)), nil
}

// RandomToken returns a random non-zero token drawn from a version 4 UUID.
func RandomToken() Token {
	for {
		id := uuid.New()
		var t Token
		copy(t[:], id[:TokenLen])
		if !t.IsZero() {
			return t
		}
	}
}

// ResourceIndex is an index into the local resource table.
type ResourceIndex uint8

// NoResource is the reserved "no resource" index.
const NoResource ResourceIndex = 0
