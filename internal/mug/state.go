package mug

import "sync"

// DeviceState is the canonical in-memory mirror of the device. External
// callers only ever see copies; the manager is the sole writer.
type DeviceState struct {
	Connected    bool
	DeviceName   string
	BatteryLevel uint8
	IsCharging   bool
	CurrentTemp  float64 // °C
	TargetTemp   float64 // °C, clamped to [MinTargetTemp, MaxTargetTemp]
	LiquidLevel  uint8
	LiquidState  LiquidState
	Unit         TemperatureUnit
	Color        Color
}

// defaultState is the snapshot before the first connect.
func defaultState() DeviceState {
	return DeviceState{
		LiquidState: LiquidEmpty,
		Unit:        UnitCelsius,
		TargetTemp:  MinTargetTemp,
	}
}

// Store holds the DeviceState and broadcasts a full-state snapshot on every
// update. Updates are not deduplicated: a no-op mutation still broadcasts,
// preserving the at-least-once contract consumers rely on.
type Store struct {
	mu      sync.RWMutex
	state   DeviceState
	emitter *Emitter
}

func NewStore(emitter *Emitter) *Store {
	return &Store{
		state:   defaultState(),
		emitter: emitter,
	}
}

// Snapshot returns a defensive copy of the current state.
func (s *Store) Snapshot() DeviceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies mutate under the lock and broadcasts the resulting state.
func (s *Store) Update(mutate func(*DeviceState)) {
	s.mu.Lock()
	mutate(&s.state)
	snapshot := s.state
	s.mu.Unlock()

	s.emitter.Emit(Event{Kind: EventStateChange, State: snapshot})
}
