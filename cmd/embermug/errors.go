package main

import (
	"errors"

	"github.com/singerbj/ember-mug/internal/mug"
)

// ErrNoDevice indicates discovery finished without finding a matching mug.
var ErrNoDevice = errors.New("no matching device found")

// FormatUserError turns an error into a clean, actionable message for
// stderr. Protocol errors carry their own guidance; everything else is
// printed as-is.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var merr *mug.Error
	if errors.As(err, &merr) {
		msg := merr.Msg
		if msg == "" {
			msg = string(merr.Kind)
		}
		if merr.Guidance != "" {
			return msg + " - " + merr.Guidance
		}
		return msg
	}

	return err.Error()
}
