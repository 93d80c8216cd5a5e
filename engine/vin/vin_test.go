package vin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WessleyAI/keyintel/engine/domain"
)

func TestDecode_BMWGermany(t *testing.T) {
	res := Decode("WBA8E9C50GK123456")
	require.True(t, res.Valid)
	assert.Equal(t, ReasonNone, res.Reason)
	assert.Equal(t, "BMW (Germany)", res.Manufacturer)
	assert.Equal(t, "✓ BMW (Germany)", res.Message)
	require.NotNil(t, res.Make)
	assert.Equal(t, domain.MakeBMW, *res.Make)
	require.NotNil(t, res.Year)
	assert.Equal(t, 2016, *res.Year)
}

func TestDecode_YearCode(t *testing.T) {
	res := Decode("WVWZZZAUZLW123456")
	require.True(t, res.Valid)
	require.NotNil(t, res.Year)
	assert.Equal(t, 2020, *res.Year)
	assert.Equal(t, domain.MakeVolkswagen, *res.Make)

	// '9' is not a year code in the table: valid VIN, no year.
	res = Decode("WAUZZZ8V9FA123456")
	require.True(t, res.Valid)
	assert.Equal(t, domain.MakeAudi, *res.Make)
	res = Decode("WAUZZZ8V999123456")
	require.True(t, res.Valid)
	assert.Nil(t, res.Year)
}

func TestDecode_UnknownWMI(t *testing.T) {
	res := Decode("JTDKB20U093123456")
	require.True(t, res.Valid)
	assert.Equal(t, UnknownManufacturer, res.Manufacturer)
	assert.Nil(t, res.Make)
	assert.Equal(t, "✓ Unknown", res.Message)
}

func TestDecode_Normalizes(t *testing.T) {
	res := Decode("  wba8e9c50gk123456 ")
	require.True(t, res.Valid)
	assert.Equal(t, "WBA8E9C50GK123456", res.VIN)
}

func TestDecode_Invalid(t *testing.T) {
	cases := []struct {
		name   string
		in     string
		reason Reason
		msg    string
	}{
		{"empty", "   ", ReasonEmpty, ""},
		{"short", "WBA123", ReasonLength, "Need 17 chars (got 6)"},
		{"long", "WBA8E9C50GK1234567", ReasonLength, "Need 17 chars (got 18)"},
		{"I", "WBA8E9C50IK123456", ReasonForbidden, "Invalid: I"},
		{"O and Q", "WBAOE9C50GK12345Q", ReasonForbidden, "Invalid: O, Q"},
		{"lowercase o", "wbaoe9c50gk123456", ReasonForbidden, "Invalid: O"},
		{"punctuation", "WBA8E9C50-K123456", ReasonNotAlnum, "Must be alphanumeric"},
		{"non-ascii", "WBA8E9C50ÄK123456", ReasonNotAlnum, "Must be alphanumeric"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := Decode(tc.in)
			assert.False(t, res.Valid)
			assert.Equal(t, tc.reason, res.Reason)
			assert.Equal(t, tc.msg, res.Message)
			assert.Nil(t, res.Make)
			assert.Nil(t, res.Year)
		})
	}
}

func TestWMI(t *testing.T) {
	assert.Equal(t, "WDD", WMI("wdd2050461F123456"))
	assert.Equal(t, "", WMI("W"))
}
