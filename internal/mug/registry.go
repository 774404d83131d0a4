package mug

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/singerbj/ember-mug/internal/ble"
)

// Handle is a discovered characteristic bound to a logical field.
type Handle struct {
	UUID  string
	Props ble.Property
}

// Registry maps logical fields to discovered handles. It is rebuilt wholesale
// on every connect and invalidated wholesale on disconnect; fields the
// firmware does not expose are simply absent, which callers treat as
// "unsupported", never as an error.
type Registry struct {
	fields *orderedmap.OrderedMap[Field, Handle]
}

// BuildRegistry matches the discovered characteristics of the vendor service
// against the logical field table. Iteration order follows the canonical
// field order, so full-state refreshes are deterministic.
func BuildRegistry(chars []ble.Characteristic) *Registry {
	byUUID := make(map[string]ble.Characteristic, len(chars))
	for _, c := range chars {
		byUUID[ble.NormalizeUUID(c.UUID)] = c
	}

	fields := orderedmap.New[Field, Handle]()
	for _, f := range fieldOrder {
		uuid := fieldUUIDs[f]
		c, ok := byUUID[uuid]
		if !ok {
			continue
		}
		fields.Set(f, Handle{UUID: uuid, Props: c.Properties})
	}
	return &Registry{fields: fields}
}

// Lookup returns the handle for a logical field. ok is false when the field
// is not mapped on this firmware.
func (r *Registry) Lookup(f Field) (Handle, bool) {
	if r == nil {
		return Handle{}, false
	}
	return r.fields.Get(f)
}

// Fields returns the mapped logical fields in canonical order.
func (r *Registry) Fields() []Field {
	if r == nil {
		return nil
	}
	out := make([]Field, 0, r.fields.Len())
	for pair := r.fields.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// Len returns the number of mapped fields.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return r.fields.Len()
}
