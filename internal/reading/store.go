package reading

import (
	"context"
	"time"
)

// Store is the read side of the reading store.
type Store interface {
	// Latest returns the newest reading for cameraID, or nil when the camera
	// has none.
	Latest(ctx context.Context, cameraID string) (*Reading, error)

	// Since returns every reading of cameraID no older than window.
	Since(ctx context.Context, cameraID string, window time.Duration, order Order) ([]Reading, error)

	// Recent returns up to limit readings, newest first. limit <= 0 uses the
	// store default.
	Recent(ctx context.Context, cameraID string, limit int) ([]Reading, error)
}

func checkCamera(cameraID string) error {
	if cameraID == "" {
		return invalidInput("camera id is required")
	}
	return nil
}

func checkWindow(window time.Duration) error {
	if window <= 0 {
		return invalidInput("window must be positive")
	}
	return nil
}
