// Package ble defines the adapter binding: the minimal contract the protocol
// client needs from a BLE stack (scan, connect, discover, read, write,
// subscribe) plus the production implementation backed by go-ble.
//
// The mug package consumes only the interfaces in this file, so the whole
// stack can be replaced by the simulator in tests.
package ble

import (
	"context"
	"strings"
)

// Property is the set of GATT operations a characteristic supports.
type Property uint8

const (
	PropertyRead Property = 1 << iota
	PropertyWrite
	PropertyWriteNoResponse
	PropertyNotify
)

// Has reports whether all bits of p2 are set in p.
func (p Property) Has(p2 Property) bool {
	return p&p2 == p2
}

func (p Property) String() string {
	var parts []string
	if p.Has(PropertyRead) {
		parts = append(parts, "read")
	}
	if p.Has(PropertyWrite) {
		parts = append(parts, "write")
	}
	if p.Has(PropertyWriteNoResponse) {
		parts = append(parts, "write-no-response")
	}
	if p.Has(PropertyNotify) {
		parts = append(parts, "notify")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Advertisement is a single discovery event.
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
}

// Characteristic describes one discovered GATT characteristic.
type Characteristic struct {
	UUID       string // normalized: lowercase, no dashes
	Properties Property
}

// Client is a live link to a connected peripheral. All characteristic
// references use normalized UUID strings.
type Client interface {
	// Characteristics returns the characteristics of the given service, or an
	// error if the service is absent on the device.
	Characteristics(serviceUUID string) ([]Characteristic, error)

	Read(ctx context.Context, charUUID string) ([]byte, error)
	Write(ctx context.Context, charUUID string, data []byte, withResponse bool) error

	// Subscribe registers a notification handler. The data slice passed to the
	// handler is only valid for the duration of the call.
	Subscribe(charUUID string, handler func(data []byte)) error
	Unsubscribe(charUUID string) error

	// Disconnected is closed when the link drops, whether requested or not.
	Disconnected() <-chan struct{}

	// Close tears the link down. Safe to call more than once.
	Close() error
}

// Adapter is the entry point to a BLE stack.
type Adapter interface {
	// WaitReady blocks until the adapter is powered and usable, or ctx ends.
	WaitReady(ctx context.Context) error

	// Scan runs discovery until ctx is cancelled, invoking handler for each
	// advertisement. A ctx cancellation is a normal completion, not an error.
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error

	// Connect dials the peripheral at addr and performs service discovery.
	Connect(ctx context.Context, addr string) (Client, error)
}

// NormalizeUUID converts a UUID string to the internal format used for all
// lookups: lowercase with dashes removed. Accepts both dashed and already
// normalized input.
func NormalizeUUID(uuid string) string {
	return strings.ToLower(strings.ReplaceAll(uuid, "-", ""))
}

// ShortenUUID returns a truncated UUID for log output.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}
