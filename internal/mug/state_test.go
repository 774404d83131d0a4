package mug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/mug"
)

func TestStoreBroadcastsEveryUpdate(t *testing.T) {
	e := mug.NewEmitter()
	s := mug.NewStore(e)

	ch, cancel := e.Subscribe()
	defer cancel()

	s.Update(func(st *mug.DeviceState) { st.CurrentTemp = 42.0 })

	ev := <-ch
	require.Equal(t, mug.EventStateChange, ev.Kind)
	assert.Equal(t, 42.0, ev.State.CurrentTemp)

	// A no-op mutation still broadcasts; updates are not deduplicated.
	s.Update(func(*mug.DeviceState) {})
	ev = <-ch
	assert.Equal(t, mug.EventStateChange, ev.Kind)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := mug.NewStore(mug.NewEmitter())

	snap := s.Snapshot()
	assert.Equal(t, mug.LiquidEmpty, snap.LiquidState)
	assert.Equal(t, mug.UnitCelsius, snap.Unit)
	assert.Equal(t, mug.MinTargetTemp, snap.TargetTemp)

	snap.CurrentTemp = 99.0
	assert.Zero(t, s.Snapshot().CurrentTemp, "mutating a snapshot must not touch the store")
}
