package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshpair/meshpair-go/pkg/ident"
)

const (
	localLight = "device1_2_0011223344556677"
	localPanel = "hub_1_8899aabbccddeeff"
)

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name      string
		candidate string
		local     string
		allow     AllowList
		want      bool
	}{
		{"same group on list", "device1_3_aabbccddeeff0011", localLight, AllowTypes(ident.TypeButton), true},
		{"same group not on list", "device1_4_aabbccddeeff0011", localLight, AllowTypes(ident.TypeButton), false},
		{"other group", "device2_3_aabbccddeeff0011", localLight, AllowTypes(ident.TypeButton), false},
		{"other group allow all", "device2_3_aabbccddeeff0011", localLight, AllowAll(), false},
		{"panel accepts other group", "device2_3_aabbccddeeff0011", localPanel, AllowTypes(ident.TypeButton), true},
		{"panel still checks list", "device2_4_aabbccddeeff0011", localPanel, AllowTypes(ident.TypeButton), false},
		{"allow all", "device1_4_aabbccddeeff0011", localLight, AllowAll(), true},
		{"allow none", "device1_3_aabbccddeeff0011", localLight, AllowNone(), false},
		{"zero list fails closed", "device1_3_aabbccddeeff0011", localLight, AllowList{}, false},
		{"empty types fails closed", "device1_3_aabbccddeeff0011", localLight, AllowTypes(), false},
		{"malformed candidate", "device1", localLight, AllowAll(), false},
		{"malformed local", "device1_3_aabbccddeeff0011", "light", AllowAll(), false},
		{"empty candidate", "", localLight, AllowAll(), false},
		{"self", localLight, localLight, AllowAll(), false},
		{"group prefix is not a match", "device10_3_aabbccddeeff0011", localLight, AllowAll(), false},
		{"underscored group", "living_room_3_aabbccddeeff0011", "living_room_2_0011223344556677", AllowAll(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.candidate, tt.local, tt.allow))
		})
	}
}

func TestAllowListFromTags(t *testing.T) {
	tests := []struct {
		name  string
		tags  []uint8
		allow []ident.DeviceType
		deny  []ident.DeviceType
	}{
		{"terminated list", []uint8{3, 4, TagEnd}, []ident.DeviceType{3, 4}, []ident.DeviceType{2, 5}},
		{"trailing garbage ignored", []uint8{3, TagEnd, 4}, []ident.DeviceType{3}, []ident.DeviceType{4}},
		{"all", []uint8{TagAll}, []ident.DeviceType{0, 1, 2, 200}, nil},
		{"none", []uint8{TagNone, 3}, nil, []ident.DeviceType{3}},
		{"empty", nil, nil, []ident.DeviceType{0, 3}},
		{"only terminator", []uint8{TagEnd}, nil, []ident.DeviceType{3}},
		{"unterminated", []uint8{3, 4}, nil, []ident.DeviceType{3, 4}},
		{"special value in middle", []uint8{3, TagAll, TagEnd}, nil, []ident.DeviceType{3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := AllowListFromTags(tt.tags)
			for _, typ := range tt.allow {
				assert.True(t, l.Allows(typ), "type %d should be allowed", typ)
			}
			for _, typ := range tt.deny {
				assert.False(t, l.Allows(typ), "type %d should be denied", typ)
			}
		})
	}
}

func TestAllowListTagsRoundTrip(t *testing.T) {
	for _, l := range []AllowList{AllowAll(), AllowNone(), AllowTypes(ident.TypeButton, ident.TypeSensor)} {
		got := AllowListFromTags(l.Tags())
		assert.Equal(t, l.String(), got.String())
	}
	assert.Nil(t, AllowList{}.Tags())
}

func TestAllowTypesDeduplicates(t *testing.T) {
	l := AllowTypes(ident.TypeButton, ident.TypeButton, ident.TypeLight)
	assert.Equal(t, []uint8{3, 2, TagEnd}, l.Tags())
}

func TestParseAllowList(t *testing.T) {
	l, err := ParseAllowList([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, "all", l.String())

	l, err = ParseAllowList([]string{"none"})
	require.NoError(t, err)
	assert.False(t, l.Allows(ident.TypeButton))

	l, err = ParseAllowList([]string{"button", "4"})
	require.NoError(t, err)
	assert.True(t, l.Allows(ident.TypeButton))
	assert.True(t, l.Allows(ident.TypeSensor))
	assert.False(t, l.Allows(ident.TypeLight))

	l, err = ParseAllowList(nil)
	require.NoError(t, err)
	assert.Equal(t, "reject", l.String())

	_, err = ParseAllowList([]string{"button", "toaster"})
	assert.Error(t, err)
}

func TestEvaluator(t *testing.T) {
	e, err := NewEvaluator(ident.MustName(localLight), AllowTypes(ident.TypeButton))
	require.NoError(t, err)
	assert.True(t, e.Eligible("device1_3_aabbccddeeff0011"))
	assert.False(t, e.Eligible("device2_3_aabbccddeeff0011"))
	assert.Equal(t, localLight, e.LocalName())

	_, err = NewEvaluator(ident.MustName("light"), AllowAll())
	assert.Error(t, err)
}
