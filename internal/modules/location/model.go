// README: Device position fix pushed by the UI shell.
package location

import (
	"errors"
	"time"

	"delivery/internal/types"
)

var (
	ErrNoFix        = errors.New("no position reported yet")
	ErrInvalidFix   = errors.New("invalid position")
	ErrToggleBusy   = errors.New("availability change already in progress")
	ErrStateUnknown = errors.New("availability not loaded")
)

type Fix struct {
	Position   types.Point `json:"position"`
	AccuracyM  float64     `json:"accuracy_m,omitempty"`
	RecordedAt time.Time   `json:"recorded_at"`
}
