// Package mug implements the protocol client for the Ember smart mug: device
// discovery, connection lifecycle, the characteristic codec, the
// write-authorization gate, and push/poll state synchronization.
package mug

// The mug exposes one vendor GATT service. It is not reliably present in
// advertisements, so discovery filters on the advertised name instead.
const (
	// ServiceUUID is the vendor service containing every mug characteristic.
	ServiceUUID = "fc543622236c4c948fa9944a3e5353fa"

	// DefaultNameFilter matches the advertised local name of the device
	// family (case-insensitive substring).
	DefaultNameFilter = "ember"
)

// Field is the logical name of a device characteristic. All reads and writes
// go through the registry keyed by Field; raw UUIDs never leave this file.
type Field string

const (
	FieldName        Field = "name"
	FieldCurrentTemp Field = "current-temp"
	FieldTargetTemp  Field = "target-temp"
	FieldUnit        Field = "temperature-unit"
	FieldLiquidLevel Field = "liquid-level"
	FieldBattery     Field = "battery"
	FieldLiquidState Field = "liquid-state"
	FieldDSK         Field = "dsk"
	FieldUDSK        Field = "udsk"
	FieldPushEvents  Field = "push-events"
	FieldColor       Field = "led-color"
)

// fieldUUIDs maps logical fields to their characteristic UUIDs (normalized:
// lowercase, no dashes). All characteristics share the vendor suffix.
var fieldUUIDs = map[Field]string{
	FieldName:        "fc540001236c4c948fa9944a3e5353fa",
	FieldCurrentTemp: "fc540002236c4c948fa9944a3e5353fa",
	FieldTargetTemp:  "fc540003236c4c948fa9944a3e5353fa",
	FieldUnit:        "fc540004236c4c948fa9944a3e5353fa",
	FieldLiquidLevel: "fc540005236c4c948fa9944a3e5353fa",
	FieldBattery:     "fc540007236c4c948fa9944a3e5353fa",
	FieldLiquidState: "fc540008236c4c948fa9944a3e5353fa",
	FieldDSK:         "fc54000d236c4c948fa9944a3e5353fa",
	FieldUDSK:        "fc54000e236c4c948fa9944a3e5353fa",
	FieldPushEvents:  "fc540012236c4c948fa9944a3e5353fa",
	FieldColor:       "fc540014236c4c948fa9944a3e5353fa",
}

// fieldOrder is the canonical field order used when rebuilding the registry
// and refreshing the full state after connect.
var fieldOrder = []Field{
	FieldName,
	FieldCurrentTemp,
	FieldTargetTemp,
	FieldUnit,
	FieldLiquidLevel,
	FieldBattery,
	FieldLiquidState,
	FieldDSK,
	FieldUDSK,
	FieldPushEvents,
	FieldColor,
}

// UUIDForField returns the characteristic UUID for a logical field. Exposed
// for the simulator, which implements the same wire contract.
func UUIDForField(f Field) (string, bool) {
	uuid, ok := fieldUUIDs[f]
	return uuid, ok
}
