package main

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/singerbj/ember-mug/internal/ble"
	"github.com/singerbj/ember-mug/internal/mug"
	"github.com/singerbj/ember-mug/internal/mug/sim"
	"github.com/singerbj/ember-mug/internal/settings"
)

// connectTimeout bounds the whole scan-and-connect sequence for one-shot
// commands.
const connectTimeout = 90 * time.Second

// buildManager wires the manager from flags: logger, settings, and either
// the real adapter or the simulator.
func buildManager(cmd *cobra.Command) (*mug.Manager, *settings.Settings, string, error) {
	logger, err := configureLogger(cmd)
	if err != nil {
		return nil, nil, "", err
	}

	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		cfgPath, err = settings.DefaultPath()
		if err != nil {
			return nil, nil, "", err
		}
	}
	st, err := settings.Load(cfgPath)
	if err != nil {
		return nil, nil, "", err
	}

	opts := mug.DefaultOptions()
	if name, _ := cmd.Flags().GetString("name"); name != "" {
		opts.NameFilter = name
	}
	opts.DefaultTargetTemp = st.LastTargetTemp

	adapter := buildAdapter(cmd, logger)
	return mug.NewManager(adapter, opts, logger), st, cfgPath, nil
}

// buildAdapter returns the simulator when --sim is set, the go-ble binding
// otherwise.
func buildAdapter(cmd *cobra.Command, logger *logrus.Logger) ble.Adapter {
	if useSim, _ := cmd.Flags().GetBool("sim"); useSim {
		return sim.New(sim.DefaultOptions())
	}
	return ble.NewAdapter(logger)
}

// connectAndWait starts scanning and blocks until the manager reaches Ready
// or surfaces a terminal error.
func connectAndWait(ctx context.Context, m *mug.Manager) error {
	events, cancel := m.Events()
	defer cancel()

	ctx, cancelCtx := context.WithTimeout(ctx, connectTimeout)
	defer cancelCtx()

	if err := m.StartScanning(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			m.StopScanning()
			return fmt.Errorf("timed out waiting for a device: %w", ErrNoDevice)
		case ev, ok := <-events:
			if !ok {
				return ErrNoDevice
			}
			switch ev.Kind {
			case mug.EventConnected:
				return nil
			case mug.EventError:
				return ev.Err
			}
		}
	}
}
