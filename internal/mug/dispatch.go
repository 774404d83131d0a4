package mug

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Push event codes delivered on the push-events characteristic. Each code
// maps to exactly one targeted re-read; there is deliberately no bulk
// refresh on the event path.
const (
	pushBatteryChanged     = 0x01
	pushCharging           = 0x02
	pushNotCharging        = 0x03
	pushTargetTempChanged  = 0x04
	pushCurrentTempChanged = 0x05
	pushLiquidLevelChanged = 0x07
	pushLiquidStateChanged = 0x08
)

// pushEventField maps a push-event code to the field to re-read. Unrecognized
// codes return ok=false and are dropped without touching state.
func pushEventField(code byte) (Field, bool) {
	switch code {
	case pushBatteryChanged, pushCharging, pushNotCharging:
		return FieldBattery, true
	case pushTargetTempChanged:
		return FieldTargetTemp, true
	case pushCurrentTempChanged:
		return FieldCurrentTemp, true
	case pushLiquidLevelChanged:
		return FieldLiquidLevel, true
	case pushLiquidStateChanged:
		return FieldLiquidState, true
	}
	return "", false
}

// pollFields are re-read unconditionally on every poll tick while connected,
// as a backstop against missed or unsupported notifications. The poll path
// is idempotent with the push path; the last store write wins.
var pollFields = []Field{FieldCurrentTemp, FieldLiquidState}

// handlePush processes one notification from the push-events characteristic.
// Notifications can fire after teardown; the session-id guard makes those a
// no-op instead of an error against a dead session.
func (m *Manager) handlePush(sid uint64, data []byte) {
	s := m.activeSession(sid)
	if s == nil || len(data) == 0 {
		return
	}

	code := data[0]
	field, ok := pushEventField(code)
	if !ok {
		m.logger.WithField("code", code).Debug("Dropping unrecognized push event")
		return
	}

	m.logger.WithFields(logrus.Fields{
		"code":  code,
		"field": field,
	}).Debug("Push event")
	_ = m.refreshField(s, field)
}

// pollLoop re-reads the poll fields at a fixed interval until the session
// context is cancelled.
func (m *Manager) pollLoop(s *session) {
	ticker := time.NewTicker(m.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if m.activeSession(s.id) == nil {
				return
			}
			for _, f := range pollFields {
				_ = m.refreshField(s, f)
			}
		}
	}
}

// refreshField re-reads one logical field and folds the result into the
// store. An unmapped field means "unsupported on this firmware" and is not an
// error; a failed read is absorbed (the next push or poll retries it).
func (m *Manager) refreshField(s *session, f Field) error {
	h, ok := s.registry.Lookup(f)
	if !ok {
		return nil
	}

	opCtx, cancel := context.WithTimeout(s.ctx, m.opts.OperationTimeout)
	data, err := s.client.Read(opCtx, h.UUID)
	cancel()
	if err != nil {
		m.logger.WithFields(logrus.Fields{
			"field": f,
			"error": err,
		}).Debug("Field read failed")
		return err
	}

	m.applyField(f, data)
	return nil
}

// refreshAll reads every mapped data field once, in canonical order. Secret
// keys and the notify-only event channel carry no state and are skipped.
func (m *Manager) refreshAll(s *session) {
	for _, f := range s.registry.Fields() {
		switch f {
		case FieldDSK, FieldUDSK, FieldPushEvents:
			continue
		}
		_ = m.refreshField(s, f)
	}
}

// applyField decodes a field payload into the store. Unrecognized raw bytes
// for enum fields are ignored, never applied and never an error.
func (m *Manager) applyField(f Field, data []byte) {
	switch f {
	case FieldName:
		m.store.Update(func(st *DeviceState) { st.DeviceName = string(data) })
	case FieldCurrentTemp:
		if t, err := DecodeTemp(data); err == nil {
			m.store.Update(func(st *DeviceState) { st.CurrentTemp = t })
		}
	case FieldTargetTemp:
		if t, err := DecodeTemp(data); err == nil {
			m.store.Update(func(st *DeviceState) { st.TargetTemp = t })
		}
	case FieldUnit:
		if u, ok := DecodeUnit(data); ok {
			m.store.Update(func(st *DeviceState) { st.Unit = u })
		}
	case FieldLiquidLevel:
		if lvl, err := DecodeLiquidLevel(data); err == nil {
			m.store.Update(func(st *DeviceState) { st.LiquidLevel = lvl })
		}
	case FieldBattery:
		if b, err := DecodeBattery(data); err == nil {
			m.store.Update(func(st *DeviceState) {
				st.BatteryLevel = b.Level
				st.IsCharging = b.Charging
			})
		}
	case FieldLiquidState:
		if ls, ok := DecodeLiquidState(data); ok {
			m.store.Update(func(st *DeviceState) { st.LiquidState = ls })
		}
	case FieldColor:
		if c, err := DecodeColor(data); err == nil {
			m.store.Update(func(st *DeviceState) { st.Color = c })
		}
	}
}
