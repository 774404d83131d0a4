package mug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/mug"
)

func TestEncodeTempWireFormat(t *testing.T) {
	// 55.00 °C is 5500 hundredths, little-endian 0x157c.
	assert.Equal(t, []byte{0x7c, 0x15}, mug.EncodeTemp(55.0))
	assert.Equal(t, []byte{0x88, 0x13}, mug.EncodeTemp(50.0))
	assert.Equal(t, []byte{0x6a, 0x18}, mug.EncodeTemp(62.5))
}

func TestTempRoundTrip(t *testing.T) {
	for _, celsius := range []float64{0, 22.0, 50.0, 55.0, 58.25, 62.5, 99.99} {
		got, err := mug.DecodeTemp(mug.EncodeTemp(celsius))
		require.NoError(t, err)
		assert.Equal(t, celsius, got, "round trip of %.2f", celsius)
	}
}

func TestDecodeTempShortPayload(t *testing.T) {
	_, err := mug.DecodeTemp([]byte{0x7c})
	assert.Error(t, err)

	_, err = mug.DecodeTemp(nil)
	assert.Error(t, err)
}

func TestClampTargetTemp(t *testing.T) {
	assert.Equal(t, mug.MinTargetTemp, mug.ClampTargetTemp(10.0))
	assert.Equal(t, mug.MaxTargetTemp, mug.ClampTargetTemp(70.0))
	assert.Equal(t, 55.0, mug.ClampTargetTemp(55.0))
	assert.Equal(t, mug.MinTargetTemp, mug.ClampTargetTemp(mug.MinTargetTemp))
	assert.Equal(t, mug.MaxTargetTemp, mug.ClampTargetTemp(mug.MaxTargetTemp))
}

func TestDecodeBattery(t *testing.T) {
	b, err := mug.DecodeBattery([]byte{0x50, 0x01})
	require.NoError(t, err)
	assert.Equal(t, uint8(80), b.Level)
	assert.True(t, b.Charging)

	b, err = mug.DecodeBattery([]byte{0x64, 0x00})
	require.NoError(t, err)
	assert.Equal(t, uint8(100), b.Level)
	assert.False(t, b.Charging)

	_, err = mug.DecodeBattery([]byte{0x50})
	assert.Error(t, err)
}

func TestDecodeLiquidState(t *testing.T) {
	tests := []struct {
		raw  byte
		want mug.LiquidState
	}{
		{0x01, mug.LiquidEmpty},
		{0x02, mug.LiquidFilling},
		{0x04, mug.LiquidCooling},
		{0x05, mug.LiquidHeating},
		{0x06, mug.LiquidStable},
	}
	for _, tc := range tests {
		got, ok := mug.DecodeLiquidState([]byte{tc.raw})
		require.True(t, ok, "state 0x%02x", tc.raw)
		assert.Equal(t, tc.want, got)
	}

	// Unknown raw values must be reported as not-ok, never as a panic or a
	// bogus state.
	for _, raw := range []byte{0x00, 0x03, 0x07, 0xff} {
		_, ok := mug.DecodeLiquidState([]byte{raw})
		assert.False(t, ok, "state 0x%02x should be unrecognized", raw)
	}

	_, ok := mug.DecodeLiquidState(nil)
	assert.False(t, ok)
}

func TestDecodeUnit(t *testing.T) {
	u, ok := mug.DecodeUnit([]byte{0x00})
	require.True(t, ok)
	assert.Equal(t, mug.UnitCelsius, u)

	u, ok = mug.DecodeUnit([]byte{0x01})
	require.True(t, ok)
	assert.Equal(t, mug.UnitFahrenheit, u)

	_, ok = mug.DecodeUnit([]byte{0x02})
	assert.False(t, ok)
}

func TestColorRoundTrip(t *testing.T) {
	c := mug.Color{R: 0xff, G: 0x8c, B: 0x00, A: 0xff}
	encoded := mug.EncodeColor(c)
	assert.Equal(t, []byte{0xff, 0x8c, 0x00, 0xff}, encoded)

	got, err := mug.DecodeColor(encoded)
	require.NoError(t, err)
	assert.Equal(t, c, got)
	assert.Equal(t, "#ff8c00ff", got.String())

	_, err = mug.DecodeColor([]byte{0xff, 0x8c, 0x00})
	assert.Error(t, err)
}

func TestUnitConversion(t *testing.T) {
	assert.InDelta(t, 131.0, mug.CelsiusToFahrenheit(55.0), 0.001)
	assert.InDelta(t, 55.0, mug.FahrenheitToCelsius(131.0), 0.001)
	assert.InDelta(t, 32.0, mug.CelsiusToFahrenheit(0.0), 0.001)
}
