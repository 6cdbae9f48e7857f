package transport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

func TestNotificationPacket(t *testing.T) {
	token := ident.TokenFromUint32(0x01020304)

	packet := EncodeNotification(token, []byte{0xFF})
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0xFF}, packet)

	gotToken, payload, err := DecodeNotification(packet)
	require.NoError(t, err)
	assert.Equal(t, token, gotToken)
	assert.Equal(t, []byte{0xFF}, payload)
}

func TestNotificationPacketEmptyPayload(t *testing.T) {
	packet := EncodeNotification(ident.TokenFromUint32(7), nil)
	assert.Len(t, packet, ident.TokenLen)

	_, payload, err := DecodeNotification(packet)
	require.NoError(t, err)
	assert.Empty(t, payload)
}

func TestDecodeNotificationShort(t *testing.T) {
	_, _, err := DecodeNotification([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrShortPacket)
}

func TestMessageRoundTrip(t *testing.T) {
	msg := &Message{
		Kind:    KindObserve,
		Token:   []byte{0xde, 0xad, 0xbe, 0xef},
		Path:    "state",
		Device:  "device1_3_aabbccddeeff0011",
		Payload: []byte{1, 2},
	}

	data, err := EncodeMessage(msg)
	require.NoError(t, err)

	decoded, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
	assert.Equal(t, uint32(0xdeadbeef), decoded.ObserveToken().Uint32())
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		err  error
	}{
		{"zero kind", Message{Token: []byte{1, 2, 3, 4}}, ErrInvalidKind},
		{"unknown kind", Message{Kind: 9, Token: []byte{1, 2, 3, 4}}, ErrInvalidKind},
		{"short token", Message{Kind: KindCancel, Token: []byte{1}}, ErrInvalidToken},
		{"zero token", Message{Kind: KindCancel, Token: []byte{0, 0, 0, 0}}, ErrInvalidToken},
		{"ok", Message{Kind: KindCancel, Token: []byte{0, 0, 0, 1}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestEncodeMessageTooLarge(t *testing.T) {
	_, err := EncodeMessage(&Message{
		Kind:    KindNotification,
		Token:   []byte{1, 2, 3, 4},
		Payload: bytes.Repeat([]byte{0xAA}, MaxDatagramSize),
	})
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecodeMessageGarbage(t *testing.T) {
	_, err := DecodeMessage([]byte{0xff, 0x00, 0x13})
	assert.Error(t, err)

	_, err = DecodeMessage(make([]byte, MaxDatagramSize+1))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestKindAndStatusStrings(t *testing.T) {
	assert.Equal(t, "OBSERVE", KindObserve.String())
	assert.Equal(t, "UNKNOWN", Kind(0).String())
	assert.Equal(t, "RESOURCE_FULL", StatusResourceFull.String())
	assert.False(t, Kind(0).IsValid())
	assert.True(t, KindCancel.IsValid())
}
