package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/singerbj/ember-mug/internal/mug"
)

// watchCmd connects to the mug and streams state changes until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect and watch live mug state",
	Long: `Discover the mug, connect, and print state changes as they arrive:
drink temperature, target, liquid state, battery and LED color.

Press Ctrl+C to disconnect and exit.`,
	RunE: runWatch,
}

var (
	stateColor = color.New(color.FgCyan)
	okColor    = color.New(color.FgGreen, color.Bold)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed, color.Bold)
)

var fahrenheit bool

func init() {
	watchCmd.Flags().BoolVarP(&fahrenheit, "fahrenheit", "f", false, "Display temperatures in °F")
}

func runWatch(cmd *cobra.Command, _ []string) error {
	m, _, _, err := buildManager(cmd)
	if err != nil {
		return err
	}

	events, cancel := m.Events()
	defer cancel()

	if err := m.StartScanning(cmd.Context()); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-sigCh:
			fmt.Println()
			m.StopScanning()
			m.Disconnect()
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev mug.Event) {
	switch ev.Kind {
	case mug.EventScanning:
		if ev.Scanning {
			warnColor.Println("Scanning...")
		}
	case mug.EventDeviceFound:
		fmt.Printf("Found %s\n", okColor.Sprint(ev.DeviceName))
	case mug.EventConnected:
		okColor.Println("Connected")
	case mug.EventDisconnected:
		warnColor.Println("Disconnected")
	case mug.EventStateChange:
		printState(ev.State)
	case mug.EventError:
		errColor.Printf("ERROR: %s\n", FormatUserError(ev.Err))
	}
}

func printState(st mug.DeviceState) {
	cur, target, unit := st.CurrentTemp, st.TargetTemp, "°C"
	if fahrenheit {
		cur = mug.CelsiusToFahrenheit(cur)
		target = mug.CelsiusToFahrenheit(target)
		unit = "°F"
	}

	charge := fmt.Sprintf("%d%%", st.BatteryLevel)
	if st.IsCharging {
		charge += "+"
	}

	stateColor.Printf("%-18s  %5.1f%s -> %5.1f%s  %-8s  batt %s  led %s\n",
		st.DeviceName, cur, unit, target, unit, st.LiquidState, charge, st.Color)
}
