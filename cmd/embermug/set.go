package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/singerbj/ember-mug/internal/mug"
)

// setCmd groups the verified write commands. Each subcommand connects,
// applies the write (which round-trips through the device), and disconnects.
var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Write a verified setting to the mug",
}

var setTempCmd = &cobra.Command{
	Use:   "temp <celsius|preset>",
	Short: "Set the target temperature",
	Long: `Set the target drink temperature in °C, or by preset name from the
settings file. Values outside the supported range are clamped. The write is
verified against the device; a mug that silently ignores it reports an
error instead of pretending success.`,
	Args: cobra.ExactArgs(1),
	RunE: runSetTemp,
}

var setUnitCmd = &cobra.Command{
	Use:   "unit <c|f>",
	Short: "Set the display unit",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetUnit,
}

var setColorCmd = &cobra.Command{
	Use:   "color <rrggbb[aa]>",
	Short: "Set the LED color",
	Args:  cobra.ExactArgs(1),
	RunE:  runSetColor,
}

func init() {
	setCmd.AddCommand(setTempCmd)
	setCmd.AddCommand(setUnitCmd)
	setCmd.AddCommand(setColorCmd)
}

func runSetTemp(cmd *cobra.Command, args []string) error {
	m, st, cfgPath, err := buildManager(cmd)
	if err != nil {
		return err
	}

	celsius, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		preset, ok := st.Preset(args[0])
		if !ok {
			return fmt.Errorf("%q is neither a temperature nor a known preset", args[0])
		}
		celsius = preset.Celsius
	}

	if err := connectAndWait(cmd.Context(), m); err != nil {
		return err
	}
	defer m.Disconnect()

	if err := m.SetTargetTemp(cmd.Context(), celsius); err != nil {
		return err
	}

	applied := m.State().TargetTemp
	fmt.Printf("Target temperature set to %.1f°C\n", applied)

	st.LastTargetTemp = applied
	if err := st.Save(cfgPath); err != nil {
		return fmt.Errorf("target applied but settings not saved: %w", err)
	}
	return nil
}

func runSetUnit(cmd *cobra.Command, args []string) error {
	var unit mug.TemperatureUnit
	switch strings.ToLower(args[0]) {
	case "c", "celsius":
		unit = mug.UnitCelsius
	case "f", "fahrenheit":
		unit = mug.UnitFahrenheit
	default:
		return fmt.Errorf("unknown unit %q (use c or f)", args[0])
	}

	m, st, cfgPath, err := buildManager(cmd)
	if err != nil {
		return err
	}

	if err := connectAndWait(cmd.Context(), m); err != nil {
		return err
	}
	defer m.Disconnect()

	if err := m.SetTemperatureUnit(cmd.Context(), unit); err != nil {
		return err
	}
	fmt.Printf("Display unit set to %s\n", unit)

	st.TemperatureUnit = unit.String()
	if err := st.Save(cfgPath); err != nil {
		return fmt.Errorf("unit applied but settings not saved: %w", err)
	}
	return nil
}

func runSetColor(cmd *cobra.Command, args []string) error {
	c, err := parseColor(args[0])
	if err != nil {
		return err
	}

	m, st, cfgPath, err := buildManager(cmd)
	if err != nil {
		return err
	}

	if err := connectAndWait(cmd.Context(), m); err != nil {
		return err
	}
	defer m.Disconnect()

	if err := m.SetColor(cmd.Context(), c); err != nil {
		return err
	}
	fmt.Printf("LED color set to %s\n", c)

	st.Color.R, st.Color.G, st.Color.B, st.Color.A = c.R, c.G, c.B, c.A
	if err := st.Save(cfgPath); err != nil {
		return fmt.Errorf("color applied but settings not saved: %w", err)
	}
	return nil
}

// parseColor parses "rrggbb" or "rrggbbaa" hex, with an optional leading '#'.
func parseColor(s string) (mug.Color, error) {
	s = strings.TrimPrefix(strings.ToLower(s), "#")
	if len(s) != 6 && len(s) != 8 {
		return mug.Color{}, fmt.Errorf("color must be rrggbb or rrggbbaa hex, got %q", s)
	}

	raw, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return mug.Color{}, fmt.Errorf("invalid color %q: %w", s, err)
	}

	if len(s) == 6 {
		raw = raw<<8 | 0xff
	}
	return mug.Color{
		R: uint8(raw >> 24),
		G: uint8(raw >> 16),
		B: uint8(raw >> 8),
		A: uint8(raw),
	}, nil
}
