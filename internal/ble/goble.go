package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	blelib "github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// readyPollInterval is how often WaitReady re-attempts adapter creation while
// the stack reports a not-powered state.
const readyPollInterval = 500 * time.Millisecond

// DeviceFactory creates blelib.Device instances (can be overridden in tests).
var DeviceFactory = func() (blelib.Device, error) {
	return newDevice()
}

// NewAdapter returns the production Adapter backed by go-ble.
func NewAdapter(logger *logrus.Logger) Adapter {
	if logger == nil {
		logger = logrus.New()
	}
	return &gobleAdapter{logger: logger}
}

type gobleAdapter struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev blelib.Device
}

// ensureDevice creates the underlying ble.Device on first use. Creation fails
// while the adapter is powered off, which WaitReady turns into a retry loop.
func (a *gobleAdapter) ensureDevice() (blelib.Device, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.dev != nil {
		return a.dev, nil
	}

	dev, err := DeviceFactory()
	if err != nil {
		if strings.Contains(err.Error(), "central manager has invalid state") {
			return nil, fmt.Errorf("bluetooth adapter is not powered on: %w", err)
		}
		return nil, err
	}
	a.dev = dev
	return dev, nil
}

func (a *gobleAdapter) WaitReady(ctx context.Context) error {
	var lastErr error
	for {
		_, err := a.ensureDevice()
		if err == nil {
			return nil
		}
		lastErr = err

		a.logger.WithError(lastErr).Debug("Adapter not ready, waiting...")
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("adapter never became ready: %w", lastErr)
			}
			return ctx.Err()
		case <-time.After(readyPollInterval):
		}
	}
}

func (a *gobleAdapter) Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error {
	dev, err := a.ensureDevice()
	if err != nil {
		return err
	}

	err = dev.Scan(ctx, allowDup, func(adv blelib.Advertisement) {
		handler(gobleAdvertisement{adv})
	})
	// go-ble reports scan-window expiry via the context; both are normal stops.
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

func (a *gobleAdapter) Connect(ctx context.Context, addr string) (Client, error) {
	dev, err := a.ensureDevice()
	if err != nil {
		return nil, err
	}

	client, err := dev.Dial(ctx, blelib.NewAddr(addr))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device %q: %w", addr, err)
	}

	profile, err := client.DiscoverProfile(true)
	if err != nil {
		_ = client.CancelConnection()
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	c := &gobleClient{
		client:  client,
		logger:  a.logger,
		byUUID:  make(map[string]*blelib.Characteristic),
		svcs:    make(map[string][]Characteristic),
		subbed:  make(map[string]*blelib.Characteristic),
		discCh:  make(chan struct{}),
	}
	c.populate(profile)

	go func() {
		<-client.Disconnected()
		c.closeDisc()
	}()

	return c, nil
}

type gobleAdvertisement struct {
	adv blelib.Advertisement
}

func (g gobleAdvertisement) LocalName() string { return g.adv.LocalName() }
func (g gobleAdvertisement) Addr() string      { return g.adv.Addr().String() }
func (g gobleAdvertisement) RSSI() int         { return g.adv.RSSI() }
func (g gobleAdvertisement) Connectable() bool { return g.adv.Connectable() }

type gobleClient struct {
	client blelib.Client
	logger *logrus.Logger

	mu     sync.RWMutex
	byUUID map[string]*blelib.Characteristic
	svcs   map[string][]Characteristic
	subbed map[string]*blelib.Characteristic

	discOnce sync.Once
	discCh   chan struct{}
}

func (c *gobleClient) closeDisc() {
	c.discOnce.Do(func() { close(c.discCh) })
}

func (c *gobleClient) populate(profile *blelib.Profile) {
	for _, svc := range profile.Services {
		svcUUID := NormalizeUUID(svc.UUID.String())
		chars := make([]Characteristic, 0, len(svc.Characteristics))
		for _, ch := range svc.Characteristics {
			charUUID := NormalizeUUID(ch.UUID.String())
			c.byUUID[charUUID] = ch
			chars = append(chars, Characteristic{
				UUID:       charUUID,
				Properties: propsFromBLE(ch.Property),
			})
			c.logger.WithFields(logrus.Fields{
				"service_uuid": ShortenUUID(svcUUID),
				"char_uuid":    ShortenUUID(charUUID),
			}).Debug("Discovered characteristic")
		}
		c.svcs[svcUUID] = chars
	}
}

func propsFromBLE(p blelib.Property) Property {
	var out Property
	if p&blelib.CharRead != 0 {
		out |= PropertyRead
	}
	if p&blelib.CharWrite != 0 {
		out |= PropertyWrite
	}
	if p&blelib.CharWriteNR != 0 {
		out |= PropertyWriteNoResponse
	}
	if p&blelib.CharNotify != 0 || p&blelib.CharIndicate != 0 {
		out |= PropertyNotify
	}
	return out
}

func (c *gobleClient) lookup(charUUID string) (*blelib.Characteristic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.byUUID[NormalizeUUID(charUUID)]
	if !ok {
		return nil, fmt.Errorf("characteristic %q not found", charUUID)
	}
	return ch, nil
}

func (c *gobleClient) Characteristics(serviceUUID string) ([]Characteristic, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	chars, ok := c.svcs[NormalizeUUID(serviceUUID)]
	if !ok {
		return nil, fmt.Errorf("service %q not found", serviceUUID)
	}
	out := make([]Characteristic, len(chars))
	copy(out, chars)
	return out, nil
}

func (c *gobleClient) Read(ctx context.Context, charUUID string) ([]byte, error) {
	ch, err := c.lookup(charUUID)
	if err != nil {
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		data, err := c.client.ReadCharacteristic(ch)
		done <- result{data, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", ShortenUUID(charUUID), r.err)
		}
		return r.data, nil
	}
}

func (c *gobleClient) Write(ctx context.Context, charUUID string, data []byte, withResponse bool) error {
	ch, err := c.lookup(charUUID)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.client.WriteCharacteristic(ch, data, !withResponse)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s: %w", ShortenUUID(charUUID), err)
		}
		return nil
	}
}

func (c *gobleClient) Subscribe(charUUID string, handler func([]byte)) error {
	ch, err := c.lookup(charUUID)
	if err != nil {
		return err
	}

	if err := c.client.Subscribe(ch, false, handler); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", ShortenUUID(charUUID), err)
	}

	c.mu.Lock()
	c.subbed[NormalizeUUID(charUUID)] = ch
	c.mu.Unlock()
	return nil
}

func (c *gobleClient) Unsubscribe(charUUID string) error {
	ch, err := c.lookup(charUUID)
	if err != nil {
		return err
	}

	err1 := c.client.Unsubscribe(ch, false) // notify
	err2 := c.client.Unsubscribe(ch, true)  // indicate

	c.mu.Lock()
	delete(c.subbed, NormalizeUUID(charUUID))
	c.mu.Unlock()

	// Only an error if both modes failed
	if err1 != nil && err2 != nil {
		return fmt.Errorf("failed to unsubscribe from %s: notify=%v, indicate=%v",
			ShortenUUID(charUUID), err1, err2)
	}
	return nil
}

func (c *gobleClient) Disconnected() <-chan struct{} {
	return c.discCh
}

func (c *gobleClient) Close() error {
	c.mu.Lock()
	subbed := make([]*blelib.Characteristic, 0, len(c.subbed))
	for _, ch := range c.subbed {
		subbed = append(subbed, ch)
	}
	c.subbed = make(map[string]*blelib.Characteristic)
	c.mu.Unlock()

	for _, ch := range subbed {
		_ = c.client.Unsubscribe(ch, false)
	}

	err := c.client.CancelConnection()
	c.closeDisc()
	return err
}
