package mug

import (
	"context"
	"time"
)

// SetManagerSleep replaces the manager's sleep func so backoff and settle
// delays are observable and instantaneous in tests.
func SetManagerSleep(m *Manager, fn func(ctx context.Context, d time.Duration) error) {
	m.sleep = fn
}

var (
	BackoffDelay       = backoffDelay
	MatchAdvertisement = matchAdvertisement
	PushEventField     = pushEventField
)
