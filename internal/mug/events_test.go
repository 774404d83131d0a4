package mug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/mug"
)

func TestEmitterFansOut(t *testing.T) {
	e := mug.NewEmitter()

	ch1, cancel1 := e.Subscribe()
	ch2, cancel2 := e.Subscribe()
	defer cancel1()
	defer cancel2()

	e.Emit(mug.Event{Kind: mug.EventDeviceFound, DeviceName: "EMBER CERAMIC MUG"})

	for _, ch := range []<-chan mug.Event{ch1, ch2} {
		ev := <-ch
		assert.Equal(t, mug.EventDeviceFound, ev.Kind)
		assert.Equal(t, "EMBER CERAMIC MUG", ev.DeviceName)
	}
}

func TestEmitterNeverBlocksOnStalledSubscriber(t *testing.T) {
	e := mug.NewEmitter()
	_, cancelStalled := e.Subscribe() // never reads
	defer cancelStalled()

	// Far more events than the subscriber buffer holds; Emit must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			e.Emit(mug.Event{Kind: mug.EventStateChange})
		}
	}()
	<-done
}

func TestSubscribeCancelClosesChannel(t *testing.T) {
	e := mug.NewEmitter()
	ch, cancel := e.Subscribe()

	cancel()
	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after cancel")

	// Cancel is safe to call again, and emits after cancel are dropped.
	cancel()
	e.Emit(mug.Event{Kind: mug.EventConnected})
}

func TestStalledSubscriberKeepsNewestEvents(t *testing.T) {
	e := mug.NewEmitter()
	ch, cancel := e.Subscribe()
	defer cancel()

	// Overflow the buffer; the oldest events are dropped first.
	total := 200
	for i := 0; i < total; i++ {
		e.Emit(mug.Event{Kind: mug.EventStateChange, State: mug.DeviceState{LiquidLevel: uint8(i)}})
	}

	var last mug.Event
	drained := 0
	for {
		select {
		case ev := <-ch:
			last = ev
			drained++
			continue
		default:
		}
		break
	}

	require.Greater(t, drained, 0)
	assert.Less(t, drained, total, "buffer should have overflowed")
	assert.Equal(t, uint8(total-1), last.State.LiquidLevel, "newest event survives")
}
