package sim_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/ble"
	"github.com/singerbj/ember-mug/internal/mug"
	"github.com/singerbj/ember-mug/internal/mug/sim"
)

func charUUID(t *testing.T, f mug.Field) string {
	t.Helper()
	uuid, ok := mug.UUIDForField(f)
	require.True(t, ok)
	return uuid
}

func TestScanAdvertisesDeviceAndDecoys(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DecoyNames = []string{"Living Room TV"}
	dev := sim.New(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	seen := make(map[string]bool)
	err := dev.Scan(ctx, false, func(adv ble.Advertisement) {
		seen[adv.LocalName()] = true
	})
	require.NoError(t, err, "scan cancellation is a normal completion")

	assert.True(t, seen["EMBER CERAMIC MUG"])
	assert.True(t, seen["Living Room TV"])
}

func TestConnectFailuresThenSuccess(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.FailConnects = 1
	dev := sim.New(opts)
	ctx := context.Background()

	_, err := dev.Connect(ctx, opts.Addr)
	require.Error(t, err)

	client, err := dev.Connect(ctx, opts.Addr)
	require.NoError(t, err)
	require.NotNil(t, client)

	_, err = dev.Connect(ctx, "00:00:00:00:00:00")
	assert.Error(t, err, "unknown address must not connect")
}

func TestCharacteristicsRequireTheMugService(t *testing.T) {
	dev := sim.New(sim.DefaultOptions())

	chars, err := dev.Characteristics(mug.ServiceUUID)
	require.NoError(t, err)
	assert.Len(t, chars, 11)

	_, err = dev.Characteristics("0000180f00001000800000805f9b34fb")
	assert.Error(t, err)

	missing := sim.DefaultOptions()
	missing.MissingService = true
	_, err = sim.New(missing).Characteristics(mug.ServiceUUID)
	assert.Error(t, err)
}

func TestWriteGating(t *testing.T) {
	ctx := context.Background()
	target := charUUID(t, mug.FieldTargetTemp)
	udsk := charUUID(t, mug.FieldUDSK)

	t.Run("applied when enabled", func(t *testing.T) {
		dev := sim.New(sim.DefaultOptions())
		require.NoError(t, dev.Write(ctx, target, mug.EncodeTemp(60.0), true))

		data, err := dev.Read(ctx, target)
		require.NoError(t, err)
		got, err := mug.DecodeTemp(data)
		require.NoError(t, err)
		assert.Equal(t, 60.0, got)
	})

	t.Run("silently dropped when disabled", func(t *testing.T) {
		opts := sim.DefaultOptions()
		opts.ApplyWrites = false
		dev := sim.New(opts)

		// The transport accepts the write; the value just never changes.
		require.NoError(t, dev.Write(ctx, target, mug.EncodeTemp(60.0), true))

		data, err := dev.Read(ctx, target)
		require.NoError(t, err)
		got, err := mug.DecodeTemp(data)
		require.NoError(t, err)
		assert.Equal(t, 55.0, got)
	})

	t.Run("secret key needs enrollment", func(t *testing.T) {
		opts := sim.DefaultOptions()
		opts.Enrolled = false
		dev := sim.New(opts)

		key := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
		require.NoError(t, dev.Write(ctx, udsk, key, true))

		data, err := dev.Read(ctx, udsk)
		require.NoError(t, err)
		assert.Equal(t, make([]byte, 16), data, "key must read back all-zero")
	})
}

func TestPhysicsDriftsTowardTarget(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.StartTemp = 50.0
	opts.TargetTemp = 55.0
	opts.LiquidState = mug.LiquidHeating
	opts.HeatRate = 1000.0 // reach target within one step
	dev := sim.New(opts)
	ctx := context.Background()

	time.Sleep(20 * time.Millisecond)

	data, err := dev.Read(ctx, charUUID(t, mug.FieldCurrentTemp))
	require.NoError(t, err)
	got, err := mug.DecodeTemp(data)
	require.NoError(t, err)
	assert.Equal(t, 55.0, got)

	state, err := dev.Read(ctx, charUUID(t, mug.FieldLiquidState))
	require.NoError(t, err)
	ls, ok := mug.DecodeLiquidState(state)
	require.True(t, ok)
	assert.Equal(t, mug.LiquidStable, ls)
}

func TestPhysicsFrozenWhileEmpty(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.StartTemp = 22.0
	opts.LiquidState = mug.LiquidEmpty
	opts.HeatRate = 1000.0
	dev := sim.New(opts)

	time.Sleep(20 * time.Millisecond)

	data, err := dev.Read(context.Background(), charUUID(t, mug.FieldCurrentTemp))
	require.NoError(t, err)
	got, err := mug.DecodeTemp(data)
	require.NoError(t, err)
	assert.Equal(t, 22.0, got, "an empty mug does not heat")
}

func TestPushEventDelivery(t *testing.T) {
	dev := sim.New(sim.DefaultOptions())

	var got []byte
	require.NoError(t, dev.Subscribe(charUUID(t, mug.FieldPushEvents), func(data []byte) {
		got = append([]byte(nil), data...)
	}))

	dev.PushEvent(0x05)
	assert.Equal(t, []byte{0x05}, got)

	require.NoError(t, dev.Unsubscribe(charUUID(t, mug.FieldPushEvents)))
	dev.PushEvent(0x04)
	assert.Equal(t, []byte{0x05}, got, "no delivery after unsubscribe")
}

func TestDisconnectedChannel(t *testing.T) {
	dev := sim.New(sim.DefaultOptions())
	ctx := context.Background()

	client, err := dev.Connect(ctx, sim.DefaultOptions().Addr)
	require.NoError(t, err)

	select {
	case <-client.Disconnected():
		t.Fatal("link should be up")
	default:
	}

	dev.SimulateDisconnect()
	select {
	case <-client.Disconnected():
	case <-time.After(time.Second):
		t.Fatal("disconnect channel never closed")
	}

	// Close after drop is safe, and reconnecting arms a fresh channel.
	require.NoError(t, client.Close())
	client, err = dev.Connect(ctx, sim.DefaultOptions().Addr)
	require.NoError(t, err)
	select {
	case <-client.Disconnected():
		t.Fatal("fresh link should be up")
	default:
	}
}
