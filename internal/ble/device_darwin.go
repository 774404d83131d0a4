//go:build darwin

package ble

import (
	blelib "github.com/go-ble/ble"
	"github.com/go-ble/ble/darwin"
)

func newDevice() (blelib.Device, error) {
	return darwin.NewDevice()
}
