package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/singerbj/ember-mug/internal/mug"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "boom",
		},
		{
			name: "protocol error with guidance",
			err: &mug.Error{
				Kind:     mug.KindAdapterUnavailable,
				Msg:      "bluetooth adapter never became ready",
				Guidance: "enable Bluetooth and retry",
			},
			want: "bluetooth adapter never became ready - enable Bluetooth and retry",
		},
		{
			name: "protocol error without guidance",
			err:  &mug.Error{Kind: mug.KindScanFailure, Msg: "scan failed"},
			want: "scan failed",
		},
		{
			name: "kind only",
			err:  &mug.Error{Kind: mug.KindScanFailure},
			want: "scan_failure",
		},
		{
			name: "wrapped protocol error",
			err: fmt.Errorf("connect: %w", &mug.Error{
				Kind:     mug.KindConnectionFailed,
				Msg:      "failed after 3 attempts",
				Guidance: "move the device closer and make sure it is awake",
			}),
			want: "failed after 3 attempts - move the device closer and make sure it is awake",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, FormatUserError(tc.err))
		})
	}
}
