package mug

import (
	"encoding/binary"
	"fmt"
)

// Target temperature limits in °C. Setters clamp into this range.
const (
	MinTargetTemp = 50.0
	MaxTargetTemp = 62.5
)

// tempScale is the wire resolution: temperatures travel as uint16
// little-endian in units of 0.01 °C.
const tempScale = 100.0

// TemperatureUnit is the device's display unit preference.
type TemperatureUnit uint8

const (
	UnitCelsius    TemperatureUnit = 0x00
	UnitFahrenheit TemperatureUnit = 0x01
)

func (u TemperatureUnit) Valid() bool {
	return u == UnitCelsius || u == UnitFahrenheit
}

func (u TemperatureUnit) String() string {
	switch u {
	case UnitCelsius:
		return "celsius"
	case UnitFahrenheit:
		return "fahrenheit"
	default:
		return fmt.Sprintf("unit(0x%02x)", uint8(u))
	}
}

// LiquidState is the device-reported cup contents / thermal status.
type LiquidState uint8

const (
	LiquidEmpty   LiquidState = 0x01
	LiquidFilling LiquidState = 0x02
	LiquidCooling LiquidState = 0x04
	LiquidHeating LiquidState = 0x05
	LiquidStable  LiquidState = 0x06
)

func (s LiquidState) Valid() bool {
	switch s {
	case LiquidEmpty, LiquidFilling, LiquidCooling, LiquidHeating, LiquidStable:
		return true
	}
	return false
}

func (s LiquidState) String() string {
	switch s {
	case LiquidEmpty:
		return "empty"
	case LiquidFilling:
		return "filling"
	case LiquidCooling:
		return "cooling"
	case LiquidHeating:
		return "heating"
	case LiquidStable:
		return "stable"
	default:
		return fmt.Sprintf("liquid-state(0x%02x)", uint8(s))
	}
}

// Color is the LED color, 4 raw bytes RGBA on the wire.
type Color struct {
	R, G, B, A uint8
}

func (c Color) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// Battery is the decoded battery characteristic.
type Battery struct {
	Level    uint8 // percent, 0-100
	Charging bool
}

// EncodeTemp encodes a temperature in °C into the 2-byte wire form.
func EncodeTemp(celsius float64) []byte {
	raw := uint16(celsius*tempScale + 0.5)
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, raw)
	return buf
}

// DecodeTemp decodes the 2-byte wire form into °C.
func DecodeTemp(data []byte) (float64, error) {
	if len(data) < 2 {
		return 0, fmt.Errorf("temperature payload too short: %d bytes", len(data))
	}
	return float64(binary.LittleEndian.Uint16(data)) / tempScale, nil
}

// DecodeBattery decodes the battery characteristic: one percent byte followed
// by one charging-flag byte.
func DecodeBattery(data []byte) (Battery, error) {
	if len(data) < 2 {
		return Battery{}, fmt.Errorf("battery payload too short: %d bytes", len(data))
	}
	return Battery{Level: data[0], Charging: data[1] != 0}, nil
}

// DecodeLiquidState decodes the single-byte liquid state. Unrecognized raw
// values are reported via ok=false and must be ignored, not treated as an
// error: newer firmware emits states this client does not know.
func DecodeLiquidState(data []byte) (LiquidState, bool) {
	if len(data) < 1 {
		return 0, false
	}
	s := LiquidState(data[0])
	return s, s.Valid()
}

// DecodeUnit decodes the single-byte unit preference; unknown values are
// ignored via ok=false.
func DecodeUnit(data []byte) (TemperatureUnit, bool) {
	if len(data) < 1 {
		return 0, false
	}
	u := TemperatureUnit(data[0])
	return u, u.Valid()
}

// EncodeUnit encodes the unit preference byte.
func EncodeUnit(u TemperatureUnit) []byte {
	return []byte{byte(u)}
}

// DecodeColor decodes the 4-byte RGBA LED color.
func DecodeColor(data []byte) (Color, error) {
	if len(data) < 4 {
		return Color{}, fmt.Errorf("color payload too short: %d bytes", len(data))
	}
	return Color{R: data[0], G: data[1], B: data[2], A: data[3]}, nil
}

// EncodeColor encodes the LED color as 4 raw bytes.
func EncodeColor(c Color) []byte {
	return []byte{c.R, c.G, c.B, c.A}
}

// DecodeLiquidLevel decodes the single-byte liquid level.
func DecodeLiquidLevel(data []byte) (uint8, error) {
	if len(data) < 1 {
		return 0, fmt.Errorf("liquid level payload empty")
	}
	return data[0], nil
}

// ClampTargetTemp clamps a requested target temperature into the range the
// device accepts.
func ClampTargetTemp(celsius float64) float64 {
	if celsius < MinTargetTemp {
		return MinTargetTemp
	}
	if celsius > MaxTargetTemp {
		return MaxTargetTemp
	}
	return celsius
}

// CelsiusToFahrenheit converts for display; the device state is always
// tracked in °C.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius converts user input expressed in °F.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// isAllZero reports whether every byte of a secret-key readback is zero,
// which the device uses to signal "authorization not established".
func isAllZero(data []byte) bool {
	for _, b := range data {
		if b != 0 {
			return false
		}
	}
	return true
}
