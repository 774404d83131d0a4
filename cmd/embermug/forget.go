package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// forgetCmd drops the retained device identity and rediscovers from scratch.
// Used when a stale pairing is suspected: the mug shows up but writes fail
// or the connection never completes setup.
var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Forget the device and rediscover",
	Long: `Drop the retained device identity and perform a fresh discovery and
connect. Combine with removing the mug from the OS Bluetooth settings when a
stale pairing is suspected.`,
	RunE: runForget,
}

func runForget(cmd *cobra.Command, _ []string) error {
	m, _, _, err := buildManager(cmd)
	if err != nil {
		return err
	}

	m.ForgetAndRepair()

	if err := connectAndWait(cmd.Context(), m); err != nil {
		return err
	}
	defer m.Disconnect()

	st := m.State()
	fmt.Printf("Reconnected to %s (battery %d%%)\n", st.DeviceName, st.BatteryLevel)
	return nil
}
