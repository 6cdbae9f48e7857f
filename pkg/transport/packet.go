package transport

import (
	"errors"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

// ErrShortPacket is returned for packets shorter than a token.
var ErrShortPacket = errors.New("notification packet shorter than token")

// EncodeNotification builds a notification packet: token followed by payload.
func EncodeNotification(token ident.Token, payload []byte) []byte {
	packet := make([]byte, ident.TokenLen+len(payload))
	copy(packet, token[:])
	copy(packet[ident.TokenLen:], payload)
	return packet
}

// DecodeNotification splits a notification packet into token and payload.
// The returned payload aliases packet.
func DecodeNotification(packet []byte) (ident.Token, []byte, error) {
	var token ident.Token
	if len(packet) < ident.TokenLen {
		return token, nil, ErrShortPacket
	}
	copy(token[:], packet[:ident.TokenLen])
	return token, packet[ident.TokenLen:], nil
}
