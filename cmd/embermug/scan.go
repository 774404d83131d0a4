package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/singerbj/ember-mug/internal/ble"
	"github.com/singerbj/ember-mug/internal/mug"
)

// scanCmd lists nearby peripherals, highlighting ones that match the mug
// name filter.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby devices",
	Long: `Scan for nearby BLE peripherals and show which ones match the mug
name filter. Useful to verify the mug is advertising before connecting.`,
	RunE: runScan,
}

var scanDuration time.Duration

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan duration")
}

type foundDevice struct {
	name string
	addr string
	rssi int
}

func runScan(cmd *cobra.Command, _ []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	adapter := buildAdapter(cmd, logger)

	nameFilter := mug.DefaultNameFilter
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		nameFilter = name
	}

	readyCtx, cancelReady := context.WithTimeout(cmd.Context(), 5*time.Second)
	err = adapter.WaitReady(readyCtx)
	cancelReady()
	if err != nil {
		return fmt.Errorf("bluetooth adapter unavailable: %w", err)
	}

	fmt.Printf("Scanning for %s...\n", scanDuration)

	devices := hashmap.New[string, foundDevice]()
	scanCtx, cancelScan := context.WithTimeout(cmd.Context(), scanDuration)
	defer cancelScan()

	err = adapter.Scan(scanCtx, false, func(adv ble.Advertisement) {
		devices.Set(adv.Addr(), foundDevice{
			name: adv.LocalName(),
			addr: adv.Addr(),
			rssi: adv.RSSI(),
		})
	})
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	var list []foundDevice
	devices.Range(func(_ string, d foundDevice) bool {
		list = append(list, d)
		return true
	})
	sort.Slice(list, func(i, j int) bool { return list[i].rssi > list[j].rssi })

	match := color.New(color.FgGreen, color.Bold)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\t")
	for _, d := range list {
		name := d.name
		if name == "" {
			name = "(unnamed)"
		}
		if strings.Contains(strings.ToLower(d.name), strings.ToLower(nameFilter)) {
			name = match.Sprint(name) + " *"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t\n", name, d.addr, d.rssi)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("%d device(s) found, * matches %q\n", len(list), nameFilter)
	return nil
}
