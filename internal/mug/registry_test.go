package mug_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/singerbj/ember-mug/internal/ble"
	"github.com/singerbj/ember-mug/internal/mug"
)

func charFor(t *testing.T, f mug.Field, props ble.Property) ble.Characteristic {
	t.Helper()
	uuid, ok := mug.UUIDForField(f)
	require.True(t, ok)
	return ble.Characteristic{UUID: uuid, Properties: props}
}

func TestBuildRegistryMapsKnownFields(t *testing.T) {
	chars := []ble.Characteristic{
		charFor(t, mug.FieldCurrentTemp, ble.PropertyRead),
		charFor(t, mug.FieldTargetTemp, ble.PropertyRead|ble.PropertyWrite),
		// Unknown characteristics on the service are ignored.
		{UUID: "fc54ffff236c4c948fa9944a3e5353fa", Properties: ble.PropertyRead},
	}

	r := mug.BuildRegistry(chars)
	assert.Equal(t, 2, r.Len())

	h, ok := r.Lookup(mug.FieldTargetTemp)
	require.True(t, ok)
	assert.True(t, h.Props.Has(ble.PropertyWrite))

	uuid, _ := mug.UUIDForField(mug.FieldTargetTemp)
	assert.Equal(t, uuid, h.UUID)
}

func TestLookupAbsentFieldIsNotAnError(t *testing.T) {
	r := mug.BuildRegistry([]ble.Characteristic{
		charFor(t, mug.FieldCurrentTemp, ble.PropertyRead),
	})

	_, ok := r.Lookup(mug.FieldColor)
	assert.False(t, ok)

	// A nil registry (post-teardown) behaves like an empty one.
	var nilReg *mug.Registry
	_, ok = nilReg.Lookup(mug.FieldCurrentTemp)
	assert.False(t, ok)
	assert.Equal(t, 0, nilReg.Len())
	assert.Nil(t, nilReg.Fields())
}

func TestBuildRegistryAcceptsDashedUUIDs(t *testing.T) {
	r := mug.BuildRegistry([]ble.Characteristic{
		{UUID: "FC540002-236C-4C94-8FA9-944A3E5353FA", Properties: ble.PropertyRead},
	})

	_, ok := r.Lookup(mug.FieldCurrentTemp)
	assert.True(t, ok)
}

func TestFieldsFollowCanonicalOrder(t *testing.T) {
	// Deliberately reversed discovery order.
	chars := []ble.Characteristic{
		charFor(t, mug.FieldColor, ble.PropertyRead|ble.PropertyWrite),
		charFor(t, mug.FieldBattery, ble.PropertyRead),
		charFor(t, mug.FieldName, ble.PropertyRead),
	}

	r := mug.BuildRegistry(chars)
	assert.Equal(t, []mug.Field{mug.FieldName, mug.FieldBattery, mug.FieldColor}, r.Fields())
}
