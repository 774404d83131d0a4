// Package sim is a device simulator implementing the same adapter contract
// as the production BLE binding, with simple thermal physics. It stands in
// for real hardware in tests and behind the CLI's --sim flag.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/singerbj/ember-mug/internal/ble"
	"github.com/singerbj/ember-mug/internal/mug"
)

// scanBeaconInterval is how often the simulated peripheral re-advertises.
const scanBeaconInterval = 10 * time.Millisecond

// Options configures a simulated device.
type Options struct {
	DeviceName string
	Addr       string

	// ApplyWrites controls whether characteristic writes stick. A device
	// that never applies writes models firmware silently ignoring them.
	ApplyWrites bool
	// Enrolled controls whether the device accepts a fresh secret key. An
	// unenrolled device reads the key back as all zeros.
	Enrolled bool

	// AdapterOff makes WaitReady block until its context expires.
	AdapterOff bool
	// MissingService makes service discovery fail.
	MissingService bool
	// FailConnects fails this many Connect calls before succeeding.
	FailConnects int
	// DecoyNames are additional non-matching peripherals advertised during
	// scans.
	DecoyNames []string

	StartTemp    float64
	TargetTemp   float64
	LiquidState  mug.LiquidState
	BatteryLevel uint8
	Charging     bool
	Color        mug.Color

	// HeatRate is the thermal drift toward the target in °C per second.
	HeatRate float64
}

// DefaultOptions returns a healthy, enrolled, write-applying mug.
func DefaultOptions() Options {
	return Options{
		DeviceName:   "EMBER CERAMIC MUG",
		Addr:         "aa:bb:cc:dd:ee:ff",
		ApplyWrites:  true,
		Enrolled:     true,
		StartTemp:    22.0,
		TargetTemp:   55.0,
		LiquidState:  mug.LiquidEmpty,
		BatteryLevel: 80,
		Color:        mug.Color{R: 0xff, G: 0x8c, B: 0x00, A: 0xff},
		HeatRate:     0.5,
	}
}

// Device is a simulated mug. It implements both ble.Adapter and ble.Client:
// Connect returns the device itself.
type Device struct {
	mu       sync.Mutex
	opts     Options
	values   map[string][]byte
	notify   map[string]func([]byte)
	disc     chan struct{}
	closed   bool
	failures int
	lastStep time.Time
}

var (
	_ ble.Adapter = (*Device)(nil)
	_ ble.Client  = (*Device)(nil)
)

// New creates a simulated device.
func New(opts Options) *Device {
	d := &Device{
		opts:     opts,
		values:   make(map[string][]byte),
		notify:   make(map[string]func([]byte)),
		disc:     make(chan struct{}),
		failures: opts.FailConnects,
		lastStep: time.Now(),
	}

	d.setField(mug.FieldName, []byte(opts.DeviceName))
	d.setField(mug.FieldCurrentTemp, mug.EncodeTemp(opts.StartTemp))
	d.setField(mug.FieldTargetTemp, mug.EncodeTemp(opts.TargetTemp))
	d.setField(mug.FieldUnit, mug.EncodeUnit(mug.UnitCelsius))
	d.setField(mug.FieldLiquidLevel, []byte{0x00})
	charging := byte(0x00)
	if opts.Charging {
		charging = 0x01
	}
	d.setField(mug.FieldBattery, []byte{opts.BatteryLevel, charging})
	d.setField(mug.FieldLiquidState, []byte{byte(opts.LiquidState)})
	d.setField(mug.FieldDSK, make([]byte, 4))
	d.setField(mug.FieldUDSK, make([]byte, 16)) // all-zero: no key established
	d.setField(mug.FieldColor, mug.EncodeColor(opts.Color))
	return d
}

func (d *Device) setField(f mug.Field, data []byte) {
	uuid, _ := mug.UUIDForField(f)
	d.values[uuid] = data
}

func fieldUUID(f mug.Field) string {
	uuid, _ := mug.UUIDForField(f)
	return uuid
}

// ----------------------------
// ble.Adapter
// ----------------------------

func (d *Device) WaitReady(ctx context.Context) error {
	d.mu.Lock()
	off := d.opts.AdapterOff
	d.mu.Unlock()
	if !off {
		return nil
	}
	<-ctx.Done()
	return fmt.Errorf("simulated adapter is powered off")
}

type advertisement struct {
	name string
	addr string
}

func (a advertisement) LocalName() string { return a.name }
func (a advertisement) Addr() string      { return a.addr }
func (a advertisement) RSSI() int         { return -42 }
func (a advertisement) Connectable() bool { return true }

func (d *Device) Scan(ctx context.Context, _ bool, handler func(ble.Advertisement)) error {
	ticker := time.NewTicker(scanBeaconInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for i, decoy := range d.opts.DecoyNames {
				handler(advertisement{name: decoy, addr: fmt.Sprintf("de:c0:00:00:00:%02x", i)})
			}
			handler(advertisement{name: d.opts.DeviceName, addr: d.opts.Addr})
		}
	}
}

func (d *Device) Connect(ctx context.Context, addr string) (ble.Client, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if addr != d.opts.Addr {
		return nil, fmt.Errorf("unknown device %q", addr)
	}
	if d.failures > 0 {
		d.failures--
		return nil, fmt.Errorf("simulated connect failure")
	}
	d.disc = make(chan struct{})
	d.closed = false
	return d, nil
}

// ----------------------------
// ble.Client
// ----------------------------

func (d *Device) Characteristics(serviceUUID string) ([]ble.Characteristic, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opts.MissingService || ble.NormalizeUUID(serviceUUID) != mug.ServiceUUID {
		return nil, fmt.Errorf("service %q not found", serviceUUID)
	}

	props := map[mug.Field]ble.Property{
		mug.FieldName:        ble.PropertyRead | ble.PropertyWrite,
		mug.FieldCurrentTemp: ble.PropertyRead,
		mug.FieldTargetTemp:  ble.PropertyRead | ble.PropertyWrite,
		mug.FieldUnit:        ble.PropertyRead | ble.PropertyWrite,
		mug.FieldLiquidLevel: ble.PropertyRead,
		mug.FieldBattery:     ble.PropertyRead,
		mug.FieldLiquidState: ble.PropertyRead,
		mug.FieldDSK:         ble.PropertyRead,
		mug.FieldUDSK:        ble.PropertyRead | ble.PropertyWrite,
		mug.FieldPushEvents:  ble.PropertyNotify,
		mug.FieldColor:       ble.PropertyRead | ble.PropertyWrite,
	}

	chars := make([]ble.Characteristic, 0, len(props))
	for f, p := range props {
		chars = append(chars, ble.Characteristic{UUID: fieldUUID(f), Properties: p})
	}
	return chars, nil
}

func (d *Device) Read(_ context.Context, charUUID string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	uuid := ble.NormalizeUUID(charUUID)
	if uuid == fieldUUID(mug.FieldCurrentTemp) || uuid == fieldUUID(mug.FieldLiquidState) {
		d.stepPhysics()
	}

	data, ok := d.values[uuid]
	if !ok {
		return nil, fmt.Errorf("characteristic %q not found", charUUID)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (d *Device) Write(_ context.Context, charUUID string, data []byte, _ bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	uuid := ble.NormalizeUUID(charUUID)
	if _, ok := d.values[uuid]; !ok {
		return fmt.Errorf("characteristic %q not found", charUUID)
	}

	// The secret key only sticks on an enrolled device; everything else only
	// sticks when the device applies writes. Rejected writes are silent:
	// the transport succeeds and state is unchanged, exactly like real
	// firmware without authorization.
	if uuid == fieldUUID(mug.FieldUDSK) {
		if !d.opts.Enrolled {
			return nil
		}
	} else if !d.opts.ApplyWrites {
		return nil
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	d.values[uuid] = cp
	return nil
}

func (d *Device) Subscribe(charUUID string, handler func([]byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.notify[ble.NormalizeUUID(charUUID)] = handler
	return nil
}

func (d *Device) Unsubscribe(charUUID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.notify, ble.NormalizeUUID(charUUID))
	return nil
}

func (d *Device) Disconnected() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disc
}

func (d *Device) Close() error {
	d.dropLink()
	return nil
}

func (d *Device) dropLink() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.closed {
		d.closed = true
		close(d.disc)
	}
}

// ----------------------------
// Test and CLI hooks
// ----------------------------

// SetApplyWrites toggles write application at runtime, modeling firmware
// that starts dropping writes after the capability probe passed.
func (d *Device) SetApplyWrites(apply bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opts.ApplyWrites = apply
}

// PushEvent delivers a push-event code to the subscribed client.
func (d *Device) PushEvent(code byte) {
	d.mu.Lock()
	handler := d.notify[fieldUUID(mug.FieldPushEvents)]
	d.mu.Unlock()
	if handler != nil {
		handler([]byte{code})
	}
}

// SimulateDisconnect drops the link as if the device went out of range.
func (d *Device) SimulateDisconnect() {
	d.dropLink()
}

// SetCurrentTemp pins the simulated drink temperature.
func (d *Device) SetCurrentTemp(celsius float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setField(mug.FieldCurrentTemp, mug.EncodeTemp(celsius))
	d.lastStep = time.Now()
}

// SetLiquidState pins the simulated liquid state.
func (d *Device) SetLiquidState(s mug.LiquidState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setField(mug.FieldLiquidState, []byte{byte(s)})
}

// stepPhysics advances the thermal model: the drink drifts toward the target
// at HeatRate and the liquid state follows. Caller must hold d.mu.
func (d *Device) stepPhysics() {
	now := time.Now()
	elapsed := now.Sub(d.lastStep).Seconds()
	d.lastStep = now

	state, _ := mug.DecodeLiquidState(d.values[fieldUUID(mug.FieldLiquidState)])
	if state == mug.LiquidEmpty || state == mug.LiquidFilling || d.opts.HeatRate <= 0 {
		return
	}

	cur, err := mug.DecodeTemp(d.values[fieldUUID(mug.FieldCurrentTemp)])
	if err != nil {
		return
	}
	target, err := mug.DecodeTemp(d.values[fieldUUID(mug.FieldTargetTemp)])
	if err != nil {
		return
	}

	delta := target - cur
	step := d.opts.HeatRate * elapsed
	if math.Abs(delta) <= step {
		cur = target
	} else if delta > 0 {
		cur += step
	} else {
		cur -= step
	}
	d.setField(mug.FieldCurrentTemp, mug.EncodeTemp(cur))

	switch {
	case math.Abs(target-cur) <= 0.25:
		d.setField(mug.FieldLiquidState, []byte{byte(mug.LiquidStable)})
	case target > cur:
		d.setField(mug.FieldLiquidState, []byte{byte(mug.LiquidHeating)})
	default:
		d.setField(mug.FieldLiquidState, []byte{byte(mug.LiquidCooling)})
	}
}
