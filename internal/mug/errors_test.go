package mug_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/singerbj/ember-mug/internal/mug"
)

func TestErrorIsMatchesKind(t *testing.T) {
	err := &mug.Error{Kind: mug.KindWriteNotApplied, Msg: "device ignored the write"}

	assert.ErrorIs(t, err, mug.ErrWriteNotApplied)
	assert.NotErrorIs(t, err, mug.ErrWriteRejected)
}

func TestErrorIsThroughWrapping(t *testing.T) {
	inner := &mug.Error{Kind: mug.KindServiceNotFound, Msg: "no mug service"}
	outer := &mug.Error{Kind: mug.KindConnectionFailed, Msg: "failed after 3 attempts", Cause: inner}

	assert.ErrorIs(t, outer, mug.ErrConnectionFailed)
	assert.ErrorIs(t, outer, mug.ErrServiceNotFound)

	wrapped := fmt.Errorf("connect: %w", outer)
	assert.ErrorIs(t, wrapped, mug.ErrConnectionFailed)
}

func TestErrorString(t *testing.T) {
	err := &mug.Error{
		Kind:  mug.KindConnectionTimeout,
		Msg:   "no connection within 10s",
		Cause: errors.New("context deadline exceeded"),
	}
	assert.Equal(t, "connection_timeout: no connection within 10s: context deadline exceeded", err.Error())

	bare := &mug.Error{Kind: mug.KindScanFailure}
	assert.Equal(t, "scan_failure", bare.Error())
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("outer: %w", &mug.Error{Kind: mug.KindAdapterUnavailable})
	assert.Equal(t, mug.KindAdapterUnavailable, mug.KindOf(err))
	assert.Equal(t, mug.ErrorKind(""), mug.KindOf(errors.New("plain")))
}

func TestGuidanceOf(t *testing.T) {
	err := &mug.Error{
		Kind:     mug.KindAdapterUnavailable,
		Guidance: "enable Bluetooth and retry",
	}
	assert.Equal(t, "enable Bluetooth and retry", mug.GuidanceOf(err))
	assert.Equal(t, "", mug.GuidanceOf(errors.New("plain")))
}
