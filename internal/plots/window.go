package plots

import (
	"errors"
	"fmt"

	"github.com/rislab/flight-review/internal/models"
)

// WindowPadding is the fraction of the recorded span added on each side.
const WindowPadding = 0.05

// ErrEmptySpan is returned when a recording does not span any time.
var ErrEmptySpan = errors.New("recording has an empty time span")

// ComputeWindow returns the padded time window of the primary recording.
func ComputeWindow(rec *models.LogRecording) (models.TimeWindow, error) {
	if rec == nil {
		return models.TimeWindow{}, fmt.Errorf("computing window: nil recording")
	}
	if rec.LastTimestamp <= rec.StartTimestamp {
		return models.TimeWindow{}, fmt.Errorf("computing window [%d, %d]: %w",
			rec.StartTimestamp, rec.LastTimestamp, ErrEmptySpan)
	}
	start := float64(rec.StartTimestamp)
	end := float64(rec.LastTimestamp)
	pad := (end - start) * WindowPadding
	return models.TimeWindow{Start: start - pad, End: end + pad}, nil
}
