package device

import (
	"context"
	"errors"
	"math"

	"github.com/hollis-dev/rollcall/internal/model"
)

// ErrPermissionDenied means the device cannot provide a position right now.
// Callers surface it as a settings problem, never as a crash.
var ErrPermissionDenied = errors.New("location unavailable or not permitted")

// Locator provides the device's current GPS position.
type Locator interface {
	Current(ctx context.Context) (model.Coordinates, error)
}

// LocatorFunc adapts a function to the Locator interface.
type LocatorFunc func(ctx context.Context) (model.Coordinates, error)

func (f LocatorFunc) Current(ctx context.Context) (model.Coordinates, error) {
	return f(ctx)
}

// FixedLocator reports the kiosk's configured position. Wall-mounted kiosks
// do not move, so their coordinates come from deployment config.
type FixedLocator struct {
	Coords model.Coordinates
}

func (l FixedLocator) Current(ctx context.Context) (model.Coordinates, error) {
	if l.Coords.Latitude == 0 && l.Coords.Longitude == 0 {
		return model.Coordinates{}, ErrPermissionDenied
	}
	return l.Coords, nil
}

// Round6 truncates a coordinate to six decimal places, the precision the
// backend stores.
func Round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
