package ident

import (
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/pkg/fault"
)

func TestNewName(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantErr error
	}{
		{"valid", "device1_3_aabbccddeeff0011", nil},
		{"max length", strings.Repeat("a", MaxNameLen), nil},
		{"empty", "", ErrEmptyName},
		{"too long", strings.Repeat("a", MaxNameLen+1), ErrNameTooLong},
		{"nul byte", "dev\x00ice", fault.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NewName(tt.in)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				assert.True(t, n.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.in, n.String())
		})
	}
}

func TestNameErrorsAreInvalidArgument(t *testing.T) {
	_, err := NewName(strings.Repeat("x", 40))
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    Parts
		wantErr bool
	}{
		{in: "device1_3_aabbccddeeff0011", want: Parts{Group: "device1", Type: TypeButton, HardwareAddr: "aabbccddeeff0011"}},
		{in: "living_room_2_0011223344556677", want: Parts{Group: "living_room", Type: TypeLight, HardwareAddr: "0011223344556677"}},
		{in: "hub_1_AABBCCDDEEFF0011", want: Parts{Group: "hub", Type: TypeControlPanel, HardwareAddr: "aabbccddeeff0011"}},
		{in: "device1", wantErr: true},
		{in: "device1_3", wantErr: true},
		{in: "_3_aabbccddeeff0011", wantErr: true},
		{in: "device1_x_aabbccddeeff0011", wantErr: true},
		{in: "device1_3_aabbcc", wantErr: true},
		{in: "device1_3_zzbbccddeeff0011", wantErr: true},
		{in: "device1_300_aabbccddeeff0011", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseName(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedName)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatName(t *testing.T) {
	n, err := FormatName(Parts{Group: "device1", Type: TypeLight, HardwareAddr: "AABBCCDDEEFF0011"})
	require.NoError(t, err)
	assert.Equal(t, "device1_2_aabbccddeeff0011", n.String())

	p, err := ParseName(n.String())
	require.NoError(t, err)
	assert.Equal(t, "device1", p.Group)

	_, err = FormatName(Parts{Group: "", Type: TypeLight, HardwareAddr: "aabbccddeeff0011"})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = FormatName(Parts{Group: "g", Type: TypeLight, HardwareAddr: "abc"})
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)

	_, err = FormatName(Parts{Group: strings.Repeat("g", 20), Type: TypeLight, HardwareAddr: "aabbccddeeff0011"})
	assert.ErrorIs(t, err, ErrNameTooLong)
}

func TestParseDeviceType(t *testing.T) {
	for in, want := range map[string]DeviceType{
		"3":             TypeButton,
		"light":         TypeLight,
		"control-panel": TypeControlPanel,
		"hub":           TypeControlPanel,
		"PLUG":          TypePlug,
	} {
		got, err := ParseDeviceType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseDeviceType("toaster")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
}

func TestAddress(t *testing.T) {
	a, err := ParseAddress("fd00::1")
	require.NoError(t, err)
	assert.False(t, a.IsZero())
	assert.Equal(t, "fd00::1", a.String())

	b, err := AddressFromIP(net.ParseIP("fd00::1"))
	require.NoError(t, err)
	assert.Equal(t, a, b)

	v4, err := ParseAddress("127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, byte(0xff), v4[10])
	assert.Equal(t, byte(127), v4[12])

	_, err = ParseAddress("::")
	assert.ErrorIs(t, err, ErrInvalidAddress)
	_, err = ParseAddress("not-an-ip")
	assert.ErrorIs(t, err, fault.ErrInvalidArgument)
	_, err = AddressFromIP(nil)
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

func TestToken(t *testing.T) {
	tok := TokenFromUint32(0x01020304)
	assert.Equal(t, Token{0x01, 0x02, 0x03, 0x04}, tok)
	assert.Equal(t, uint32(0x01020304), tok.Uint32())
	assert.Equal(t, "01020304", tok.String())
	assert.Equal(t, "0000000a", TokenFromUint32(0xa).String())
	assert.True(t, Token{}.IsZero())
	assert.False(t, tok.IsZero())
}

func TestRandomToken(t *testing.T) {
	seen := make(map[Token]bool)
	for i := 0; i < 64; i++ {
		tok := RandomToken()
		require.False(t, tok.IsZero())
		seen[tok] = true
	}
	// 64 draws from 2^32 values collide with negligible probability.
	assert.Greater(t, len(seen), 60)
}

func TestParseToken(t *testing.T) {
	tok := TokenFromUint32(0x01020304)
	got, err := ParseToken(tok.String())
	require.NoError(t, err)
	assert.Equal(t, tok, got)

	got, err = ParseToken("0xdeadbeef")
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), got.Uint32())

	for _, bad := range []string{"", "xyz", "1ffffffff"} {
		_, err := ParseToken(bad)
		assert.ErrorIs(t, err, fault.ErrInvalidArgument, bad)
	}
}
