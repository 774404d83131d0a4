//go:build linux

package ble

import (
	blelib "github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func newDevice() (blelib.Device, error) {
	return linux.NewDevice()
}
