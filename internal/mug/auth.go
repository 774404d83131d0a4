package mug

import (
	"context"

	"github.com/google/uuid"

	"github.com/singerbj/ember-mug/internal/ble"
)

// The device silently ignores writes to most characteristics until a
// device-specific secret key (UDSK) has been established, and the key is only
// accepted if the physical device was previously enrolled through the
// vendor's companion app. There is no way to detect that precondition except
// by probing, which is what the two routines below do.

// enableWriteAuthorization runs the authorization enable sequence. It returns
// true when the session must be downgraded to read-only: the connection still
// proceeds, only setters are gated.
func (m *Manager) enableWriteAuthorization(s *session) (readOnly bool) {
	h, ok := s.registry.Lookup(FieldUDSK)
	if !ok {
		m.logger.Info("No secret-key characteristic on this firmware, session is read-only")
		return true
	}

	// A non-zero stored key means authorization was established on a
	// previous connection.
	opCtx, cancel := context.WithTimeout(s.ctx, m.opts.OperationTimeout)
	stored, err := s.client.Read(opCtx, h.UUID)
	cancel()
	if err == nil && len(stored) > 0 && !isAllZero(stored) {
		m.logger.Debug("Write authorization already established")
		return false
	}

	// Establish a fresh key. The write gets its own short timeout, distinct
	// from the general operation timeout, so unsupported devices fail fast.
	key := uuid.New()
	authCtx, cancel := context.WithTimeout(s.ctx, m.opts.AuthWriteTimeout)
	err = s.client.Write(authCtx, h.UUID, key[:], h.Props.Has(ble.PropertyWrite))
	cancel()
	if err != nil {
		m.logger.WithError(err).Warnf("Secret-key write failed, proceeding read-only (%s)", readOnlyGuidance)
		return true
	}

	opCtx, cancel = context.WithTimeout(s.ctx, m.opts.OperationTimeout)
	echo, err := s.client.Read(opCtx, h.UUID)
	cancel()
	if err != nil || isAllZero(echo) {
		m.logger.Warnf("Secret key did not take, proceeding read-only (%s)", readOnlyGuidance)
		return true
	}

	m.logger.Debug("Write authorization established")
	return false
}

// probeWriteCapability checks whether writes actually stick by perturbing the
// LED color, verifying the readback and restoring the original. The result
// gates every public setter.
func (m *Manager) probeWriteCapability(s *session) bool {
	h, ok := s.registry.Lookup(FieldColor)
	if !ok {
		// Nothing to probe against; per-command verification still catches
		// silently dropped writes.
		return true
	}

	opCtx, cancel := context.WithTimeout(s.ctx, m.opts.OperationTimeout)
	orig, err := s.client.Read(opCtx, h.UUID)
	cancel()
	if err != nil || len(orig) < 4 {
		m.logger.WithError(err).Debug("Capability probe skipped, color unreadable")
		return true
	}

	perturbed := make([]byte, len(orig))
	copy(perturbed, orig)
	perturbed[0] ^= 0x01

	withResponse := h.Props.Has(ble.PropertyWrite)
	write := func(data []byte) error {
		wCtx, cancel := context.WithTimeout(s.ctx, m.opts.OperationTimeout)
		defer cancel()
		return s.client.Write(wCtx, h.UUID, data, withResponse)
	}

	if err := write(perturbed); err != nil {
		m.logger.WithError(err).Warn("Capability probe write failed")
		return false
	}
	if err := m.sleep(s.ctx, m.opts.VerifySettleDelay); err != nil {
		return false
	}

	opCtx, cancel = context.WithTimeout(s.ctx, m.opts.OperationTimeout)
	echo, err := s.client.Read(opCtx, h.UUID)
	cancel()

	applied := err == nil && len(echo) >= 3 &&
		echo[0] == perturbed[0] && echo[1] == perturbed[1] && echo[2] == perturbed[2]

	// Restore the original color before reporting either way.
	if err := write(orig); err != nil {
		m.logger.WithError(err).Debug("Failed to restore LED color after probe")
	}

	if !applied {
		m.logger.Warnf("Writes are not applied by this device (%s)", readOnlyGuidance)
	}
	return applied
}
