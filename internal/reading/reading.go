// Package reading reads fire-classification results per camera from the
// reading store. The scanner asks for the latest reading; the API serves the
// recent history.
package reading

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/firewatch-dev/firewatch/internal/errors"
)

const componentReading = "reading"

// Sentinel errors. Match with errors.Is.
var (
	ErrInvalidInput     = errors.NewKind("invalid input", errors.CategoryValidation)
	ErrStoreUnavailable = errors.NewKind("reading store unavailable", errors.CategoryNetwork)
	ErrDataIntegrity    = errors.NewKind("malformed reading", errors.CategoryDataIntegrity)
	ErrConfigMissing    = errors.NewKind("AWS credentials not configured", errors.CategoryConfiguration)
)

// Label is the classifier verdict.
type Label string

const (
	LabelFire   Label = "fire"
	LabelNoFire Label = "nofire"
)

// ParseLabel accepts "fire", "nofire" and "no_fire".
func ParseLabel(s string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fire":
		return LabelFire, true
	case "nofire", "no_fire":
		return LabelNoFire, true
	}
	return "", false
}

// Reading is one classification result for one camera image.
type Reading struct {
	CameraID    string   `json:"cam_name"`
	Timestamp   int64    `json:"timestamp"`
	FireScore   float64  `json:"fire_score"`
	Label       Label    `json:"label"`
	NoFireScore *float64 `json:"no_fire_score,omitempty"`
	ID          string   `json:"id,omitempty"`
}

// Time returns the capture time.
func (r *Reading) Time() time.Time { return time.Unix(r.Timestamp, 0) }

// IsFire reports whether the classifier labeled the image as fire.
func (r *Reading) IsFire() bool { return r.Label == LabelFire }

// ConfidencePercent is fire_score as a rounded percentage.
func (r *Reading) ConfidencePercent() int { return int(math.Round(r.FireScore * 100)) }

// Within reports whether the reading is no older than window at now.
func (r *Reading) Within(now time.Time, window time.Duration) bool {
	return r.Timestamp >= now.Add(-window).Unix()
}

// Validate checks the invariants every stored reading must hold.
func (r *Reading) Validate() error {
	switch {
	case r.CameraID == "":
		return integrityError("cam_name missing", r)
	case r.Timestamp <= 0:
		return integrityError("timestamp missing", r)
	case math.IsNaN(r.FireScore) || r.FireScore < 0 || r.FireScore > 1:
		return integrityError(fmt.Sprintf("fire_score %v outside [0,1]", r.FireScore), r)
	case r.Label != LabelFire && r.Label != LabelNoFire:
		return integrityError(fmt.Sprintf("unknown label %q", r.Label), r)
	}
	return nil
}

// Order selects the sort order of multi-reading queries.
type Order int

const (
	NewestFirst Order = iota
	Chronological
)

func integrityError(detail string, r *Reading) error {
	return errors.New(fmt.Errorf("%w: %s", ErrDataIntegrity, detail)).
		Component(componentReading).
		Context("camera_id", r.CameraID).
		Build()
}

func invalidInput(detail string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrInvalidInput, detail)).
		Component(componentReading).
		Build()
}

func unavailable(op, cameraID string, err error) error {
	return errors.New(fmt.Errorf("%w: %w", ErrStoreUnavailable, err)).
		Component(componentReading).
		Context("operation", op).
		Context("camera_id", cameraID).
		Build()
}
