package mug

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"

	"github.com/singerbj/ember-mug/internal/ble"
)

// Phase is the connection lifecycle state. Every async completion checks the
// owning session id rather than a bare "connected" boolean, so timers and
// callbacks firing after teardown are guarded no-ops.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseScanning
	PhaseConnecting
	PhaseSettingUp
	PhaseReady
	PhaseDisconnecting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseScanning:
		return "scanning"
	case PhaseConnecting:
		return "connecting"
	case PhaseSettingUp:
		return "setting-up"
	case PhaseReady:
		return "ready"
	case PhaseDisconnecting:
		return "disconnecting"
	default:
		return "unknown"
	}
}

// tempTolerance is how far an echoed target temperature may deviate from the
// written one before the write counts as not applied.
const tempTolerance = 0.5

// Options configures the manager's timing and discovery behavior.
type Options struct {
	// NameFilter is the case-insensitive substring matched against advertised
	// local names. The device family does not reliably advertise its service
	// UUID, so discovery filters by name.
	NameFilter string

	// MaxRetries is the number of sequential connect attempts before one
	// terminal ConnectionFailed is emitted.
	MaxRetries int

	AdapterReadyTimeout time.Duration
	ConnectTimeout      time.Duration
	OperationTimeout    time.Duration
	// AuthWriteTimeout bounds the secret-key write alone, so devices that do
	// not support authorization fail fast instead of eating the general
	// write timeout.
	AuthWriteTimeout  time.Duration
	VerifySettleDelay time.Duration
	PollInterval      time.Duration

	// DefaultTargetTemp, when non-zero, is written to the device after a
	// successful connect (the persisted "last chosen" target). Best effort.
	DefaultTargetTemp float64
}

// DefaultOptions returns the production defaults.
func DefaultOptions() *Options {
	return &Options{
		NameFilter:          DefaultNameFilter,
		MaxRetries:          3,
		AdapterReadyTimeout: 5 * time.Second,
		ConnectTimeout:      10 * time.Second,
		OperationTimeout:    2 * time.Second,
		AuthWriteTimeout:    1 * time.Second,
		VerifySettleDelay:   200 * time.Millisecond,
		PollInterval:        2 * time.Second,
	}
}

// session is one live connection. Exactly one exists per manager; it is
// created on a successful dial and destroyed wholesale on disconnect or
// fatal error.
type session struct {
	id       uint64
	addr     string
	name     string
	client   ble.Client
	registry *Registry
	writable bool
	readOnly bool

	ctx    context.Context
	cancel context.CancelFunc
}

// Manager owns discovery, the connection lifecycle and all device I/O. It is
// the sole writer of the device state; consumers observe through Events()
// and State().
type Manager struct {
	adapter ble.Adapter
	opts    *Options
	logger  *logrus.Logger
	emitter *Emitter
	store   *Store

	mu             sync.Mutex
	phase          Phase
	session        *session
	sessionSeq     uint64
	scanCancel     context.CancelFunc
	rememberedAddr string

	// sleep is replaceable in tests to make backoff and settle delays
	// instantaneous.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewManager creates a manager over the given adapter binding.
func NewManager(adapter ble.Adapter, opts *Options, logger *logrus.Logger) *Manager {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}
	emitter := NewEmitter()
	return &Manager{
		adapter: adapter,
		opts:    opts,
		logger:  logger,
		emitter: emitter,
		store:   NewStore(emitter),
		sleep:   sleepCtx,
	}
}

// Events subscribes to the event bus. The cancel func releases the
// subscription and closes the channel.
func (m *Manager) Events() (<-chan Event, func()) {
	return m.emitter.Subscribe()
}

// State returns a defensive copy of the current device state.
func (m *Manager) State() DeviceState {
	return m.store.Snapshot()
}

// Phase returns the current lifecycle phase.
func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// StartScanning begins discovery and, on the first name match, connects with
// retry. It returns immediately; progress is reported through events.
func (m *Manager) StartScanning(ctx context.Context) error {
	m.mu.Lock()
	if m.phase != PhaseIdle {
		phase := m.phase
		m.mu.Unlock()
		return fmt.Errorf("cannot start scanning while %s", phase)
	}
	m.phase = PhaseScanning
	scanCtx, cancel := context.WithCancel(ctx)
	m.scanCancel = cancel
	m.mu.Unlock()

	m.emitter.Emit(Event{Kind: EventScanning, Scanning: true})
	go m.scanAndConnect(scanCtx)
	return nil
}

// StopScanning cancels an in-progress scan. A no-op when not scanning.
func (m *Manager) StopScanning() {
	m.mu.Lock()
	cancel := m.scanCancel
	m.scanCancel = nil
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Disconnect stops polling, tears the link down, clears the handle table and
// broadcasts the disconnected state.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	s := m.session
	if s != nil {
		m.phase = PhaseDisconnecting
	}
	m.mu.Unlock()

	if s != nil {
		m.teardown(s, true)
	}
}

// ForgetAndRepair cancels any in-progress scan, disconnects, and drops the
// retained device identity so the next scan performs fresh discovery. Used
// when a stale pairing is suspected.
func (m *Manager) ForgetAndRepair() {
	m.StopScanning()
	m.Disconnect()

	m.mu.Lock()
	m.rememberedAddr = ""
	m.mu.Unlock()
	m.logger.Info("Forgot device identity, next scan performs fresh discovery")
}

// scanAndConnect runs the discovery phase, then hands off to the retrying
// connect path. It owns the EventScanning(false) emission.
func (m *Manager) scanAndConnect(ctx context.Context) {
	readyCtx, cancel := context.WithTimeout(ctx, m.opts.AdapterReadyTimeout)
	err := m.adapter.WaitReady(readyCtx)
	cancel()
	if err != nil {
		m.emitter.Emit(Event{Kind: EventScanning, Scanning: false})
		m.failToIdle(&Error{
			Kind:     KindAdapterUnavailable,
			Msg:      "bluetooth adapter never became ready",
			Guidance: "enable Bluetooth and retry",
			Cause:    err,
		})
		return
	}

	m.mu.Lock()
	remembered := m.rememberedAddr
	m.mu.Unlock()

	// Seen-address table: the stack may deliver the same peripheral many
	// times per scan window.
	seen := hashmap.New[string, struct{}]()

	// The scan handler runs on the adapter's goroutine.
	var matchMu sync.Mutex
	var foundAddr, foundName string

	scanCtx, cancelScan := context.WithCancel(ctx)
	err = m.adapter.Scan(scanCtx, false, func(adv ble.Advertisement) {
		addr := adv.Addr()
		if _, loaded := seen.GetOrInsert(addr, struct{}{}); loaded {
			return
		}
		matchMu.Lock()
		defer matchMu.Unlock()
		if foundAddr != "" || !matchAdvertisement(adv, remembered, m.opts.NameFilter) {
			return
		}
		foundAddr, foundName = addr, adv.LocalName()
		m.logger.WithFields(logrus.Fields{
			"name":    foundName,
			"address": addr,
			"rssi":    adv.RSSI(),
		}).Info("Discovered device")
		cancelScan()
	})
	cancelScan()

	matchMu.Lock()
	addr, name := foundAddr, foundName
	matchMu.Unlock()

	m.emitter.Emit(Event{Kind: EventScanning, Scanning: false})

	if err != nil {
		m.failToIdle(newError(KindScanFailure, "scan failed", err))
		return
	}
	if addr == "" {
		// Cancelled by StopScanning or the caller's context.
		m.setPhase(PhaseIdle)
		return
	}

	m.emitter.Emit(Event{Kind: EventDeviceFound, DeviceName: name})

	m.mu.Lock()
	m.rememberedAddr = addr
	m.phase = PhaseConnecting
	m.mu.Unlock()

	m.connectWithRetry(ctx, addr, name)
}

// matchAdvertisement applies the discovery filter: the remembered address
// when one is retained, otherwise a case-insensitive name substring match.
func matchAdvertisement(adv ble.Advertisement, rememberedAddr, nameFilter string) bool {
	if rememberedAddr != "" {
		return adv.Addr() == rememberedAddr
	}
	return strings.Contains(strings.ToLower(adv.LocalName()), strings.ToLower(nameFilter))
}

// backoffDelay returns the wait before retry n (1-based): 2^(n-1) seconds.
func backoffDelay(retry int) time.Duration {
	return time.Duration(1<<uint(retry-1)) * time.Second
}

// connectWithRetry attempts connect sequentially with exponential backoff.
// Individual attempt failures are absorbed; exactly one terminal
// ConnectionFailed is emitted after the retries are exhausted.
func (m *Manager) connectWithRetry(ctx context.Context, addr, name string) {
	var lastErr error
	for attempt := 1; attempt <= m.opts.MaxRetries; attempt++ {
		if attempt > 1 {
			delay := backoffDelay(attempt - 1)
			m.logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"delay":   delay,
			}).Info("Retrying connect")
			if err := m.sleep(ctx, delay); err != nil {
				m.setPhase(PhaseIdle)
				return
			}
		}

		err := m.connect(ctx, addr, name)
		if err == nil {
			return
		}
		lastErr = err
		m.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"error":   err,
		}).Warn("Connect attempt failed")
	}

	m.failToIdle(&Error{
		Kind:     KindConnectionFailed,
		Msg:      fmt.Sprintf("failed after %d attempts", m.opts.MaxRetries),
		Guidance: "move the device closer and make sure it is awake",
		Cause:    lastErr,
	})
}

// connect performs one full connection attempt: a timeout-guarded dial
// followed by the strictly sequential setup pipeline. Any pipeline failure
// tears the session down and fails the attempt as a whole.
func (m *Manager) connect(ctx context.Context, addr, name string) error {
	m.setPhase(PhaseConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	client, err := m.adapter.Connect(dialCtx, addr)
	cancel()
	if err != nil {
		// The adapter binding already performed a best-effort disconnect of
		// the in-flight link when the deadline hit.
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(KindConnectionTimeout,
				fmt.Sprintf("no connection within %s", m.opts.ConnectTimeout), err)
		}
		return err
	}

	m.mu.Lock()
	m.sessionSeq++
	sctx, scancel := context.WithCancel(context.Background())
	s := &session{
		id:     m.sessionSeq,
		addr:   addr,
		name:   name,
		client: client,
		ctx:    sctx,
		cancel: scancel,
	}
	m.session = s
	m.phase = PhaseSettingUp
	m.mu.Unlock()

	// Watch for drops before declaring success: the device can disconnect
	// mid-setup and that must not go unnoticed.
	go m.watchDisconnect(s)

	if err := m.setup(s); err != nil {
		m.teardown(s, false)
		return err
	}
	return nil
}

// setup runs the post-connect pipeline in strict sequence.
func (m *Manager) setup(s *session) error {
	chars, err := s.client.Characteristics(ServiceUUID)
	if err != nil {
		return &Error{
			Kind:     KindServiceNotFound,
			Msg:      "device does not expose the mug service",
			Guidance: "this does not look like a supported device",
			Cause:    err,
		}
	}
	s.registry = BuildRegistry(chars)
	m.logger.WithField("fields", s.registry.Len()).Debug("Built characteristic registry")

	// Best-effort reads of the protected key fields. On stacks that pair
	// lazily this triggers the platform pairing flow; failures are tolerated.
	for _, f := range []Field{FieldUDSK, FieldDSK} {
		if h, ok := s.registry.Lookup(f); ok {
			opCtx, cancel := context.WithTimeout(s.ctx, m.opts.OperationTimeout)
			if _, err := s.client.Read(opCtx, h.UUID); err != nil {
				m.logger.WithFields(logrus.Fields{"field": f, "error": err}).
					Debug("Pairing-trigger read failed")
			}
			cancel()
		}
	}

	s.readOnly = m.enableWriteAuthorization(s)
	if s.readOnly {
		s.writable = false
	} else {
		s.writable = m.probeWriteCapability(s)
	}

	if h, ok := s.registry.Lookup(FieldPushEvents); ok {
		sid := s.id
		if err := s.client.Subscribe(h.UUID, func(data []byte) {
			m.handlePush(sid, data)
		}); err != nil {
			return fmt.Errorf("failed to subscribe to push events: %w", err)
		}
	}

	m.refreshAll(s)

	go m.pollLoop(s)

	m.mu.Lock()
	m.phase = PhaseReady
	m.mu.Unlock()

	m.store.Update(func(st *DeviceState) {
		st.Connected = true
		if st.DeviceName == "" {
			st.DeviceName = s.name
		}
	})
	m.emitter.Emit(Event{Kind: EventConnected, DeviceName: s.name})
	m.logger.WithField("address", s.addr).Info("Device connected")

	// Apply the persisted connect-time default target, best effort.
	if m.opts.DefaultTargetTemp > 0 && s.writable {
		if err := m.SetTargetTemp(s.ctx, m.opts.DefaultTargetTemp); err != nil {
			m.logger.WithError(err).Warn("Failed to apply default target temperature")
		}
	}
	return nil
}

// watchDisconnect reacts to the link dropping outside of a requested
// disconnect.
func (m *Manager) watchDisconnect(s *session) {
	select {
	case <-s.ctx.Done():
		return
	case <-s.client.Disconnected():
	}

	m.mu.Lock()
	active := m.session != nil && m.session.id == s.id && m.phase != PhaseDisconnecting
	wasReady := m.phase == PhaseReady
	m.mu.Unlock()
	if !active {
		return
	}

	m.logger.Warn("Device disconnected unexpectedly")
	m.teardown(s, wasReady)
	// Mid-setup drops fail the in-flight attempt, which the retry loop
	// absorbs; only a drop from Ready is a terminal surfaced error.
	if wasReady {
		m.emitError(&Error{
			Kind:     KindUnexpectedDisconnect,
			Msg:      "device dropped the connection",
			Guidance: "scan again to reconnect",
		})
	}
}

// teardown destroys the session: cancels its timers and watchers, drops the
// handle table wholesale and broadcasts the disconnected state. Idempotent;
// only the caller that still owns the live session proceeds.
func (m *Manager) teardown(s *session, emitDisconnected bool) {
	m.mu.Lock()
	if m.session == nil || m.session.id != s.id {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.phase = PhaseIdle
	m.mu.Unlock()

	s.cancel()
	if h, ok := s.registry.Lookup(FieldPushEvents); ok {
		_ = s.client.Unsubscribe(h.UUID)
	}
	if err := s.client.Close(); err != nil {
		m.logger.WithError(err).Debug("Link close reported an error")
	}
	s.registry = nil

	// Connected flips off; the other fields are retained for UI continuity.
	m.store.Update(func(st *DeviceState) { st.Connected = false })
	if emitDisconnected {
		m.emitter.Emit(Event{Kind: EventDisconnected})
	}
	m.logger.Info("Session torn down")
}

// SetTargetTemp writes the target temperature (°C), clamped into the
// supported range, and verifies the device applied it within 0.5 °C.
func (m *Manager) SetTargetTemp(ctx context.Context, celsius float64) error {
	clamped := ClampTargetTemp(celsius)
	return m.writeVerified(ctx, FieldTargetTemp, EncodeTemp(clamped), func(echo []byte) bool {
		got, err := DecodeTemp(echo)
		return err == nil && math.Abs(got-clamped) <= tempTolerance
	})
}

// SetTemperatureUnit writes the display unit preference and verifies the
// exact byte round-trips.
func (m *Manager) SetTemperatureUnit(ctx context.Context, unit TemperatureUnit) error {
	if !unit.Valid() {
		return fmt.Errorf("invalid temperature unit 0x%02x", uint8(unit))
	}
	return m.writeVerified(ctx, FieldUnit, EncodeUnit(unit), func(echo []byte) bool {
		got, ok := DecodeUnit(echo)
		return ok && got == unit
	})
}

// SetColor writes the LED color and verifies the RGB channels round-trip;
// alpha may be adjusted by the device and is not compared.
func (m *Manager) SetColor(ctx context.Context, c Color) error {
	return m.writeVerified(ctx, FieldColor, EncodeColor(c), func(echo []byte) bool {
		got, err := DecodeColor(echo)
		return err == nil && got.R == c.R && got.G == c.G && got.B == c.B
	})
}

// writeVerified is the per-command verification path: write, wait briefly,
// re-read the same field and compare. This is the only way to tell "silently
// ignored by firmware" apart from a genuine transport failure.
func (m *Manager) writeVerified(ctx context.Context, f Field, payload []byte, verify func(echo []byte) bool) error {
	m.mu.Lock()
	s := m.session
	ready := m.phase == PhaseReady
	m.mu.Unlock()

	if s == nil || !ready {
		return newError(KindWriteRejected, "not connected", nil)
	}
	if !s.writable {
		return &Error{
			Kind:     KindWriteNotApplied,
			Msg:      fmt.Sprintf("device is read-only, refusing to write %s", f),
			Guidance: readOnlyGuidance,
		}
	}

	h, ok := s.registry.Lookup(f)
	if !ok {
		return newError(KindCharacteristicMissing,
			fmt.Sprintf("field %s is not supported by this firmware", f), nil)
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opts.OperationTimeout)
	err := s.client.Write(opCtx, h.UUID, payload, h.Props.Has(ble.PropertyWrite))
	cancel()
	if err != nil {
		return newError(KindWriteRejected, fmt.Sprintf("transport write of %s failed", f), err)
	}

	if err := m.sleep(s.ctx, m.opts.VerifySettleDelay); err != nil {
		return newError(KindWriteRejected, "session ended during verification", err)
	}

	opCtx, cancel = context.WithTimeout(ctx, m.opts.OperationTimeout)
	echo, err := s.client.Read(opCtx, h.UUID)
	cancel()
	if err != nil {
		return newError(KindWriteRejected, fmt.Sprintf("verification read of %s failed", f), err)
	}

	if !verify(echo) {
		return &Error{
			Kind:     KindWriteNotApplied,
			Msg:      fmt.Sprintf("device did not apply the %s write", f),
			Guidance: readOnlyGuidance,
		}
	}

	m.applyField(f, echo)
	return nil
}

// activeSession returns the session when sid still identifies the live one,
// nil otherwise.
func (m *Manager) activeSession(sid uint64) *session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && m.session.id == sid {
		return m.session
	}
	return nil
}

func (m *Manager) setPhase(p Phase) {
	m.mu.Lock()
	m.phase = p
	m.mu.Unlock()
}

// failToIdle surfaces a terminal error and returns the manager to Idle.
func (m *Manager) failToIdle(err *Error) {
	m.setPhase(PhaseIdle)
	m.emitError(err)
}

func (m *Manager) emitError(err *Error) {
	m.logger.WithField("kind", err.Kind).Error(err.Error())
	m.emitter.Emit(Event{Kind: EventError, Err: err})
}

// sleepCtx sleeps for d unless ctx ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
