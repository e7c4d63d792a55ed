package notifier

import (
	"fmt"
	"math"
	"strconv"
)

// FireAlert is the message the scanner sends for a triggering reading. The
// camera id is always present; name is added when it differs.
func FireAlert(cameraID, cameraName string, confidencePercent int) string {
	camera := cameraID
	if cameraName != "" && cameraName != cameraID {
		camera = fmt.Sprintf("%s (%s)", cameraName, cameraID)
	}
	return fmt.Sprintf("🔥 FIRE ALERT: Potential fire detected by camera %s with %d%% confidence. Please check the camera feed immediately.",
		camera, confidencePercent)
}

// ProbabilityAlert is the templated alert sent on explicit request. A
// probability in (0, 1] is a fire score and renders as a rounded percent, as
// alerts from the scanner do; anything else is already a percentage and
// renders exactly as given.
func ProbabilityAlert(cameraName string, probability float64) string {
	return fmt.Sprintf("🚨 Fire Alert: %s has detected a potential fire with %s%% probability.",
		cameraName, formatProbability(probability))
}

// Welcome confirms a new subscription.
func Welcome(cameraName string) string {
	return fmt.Sprintf("👋 Welcome! You've successfully subscribed to fire alerts for %s. "+
		"You'll receive SMS notifications when potential fires are detected. Reply STOP to unsubscribe.", cameraName)
}

func formatProbability(p float64) string {
	if p > 0 && p <= 1 {
		return strconv.Itoa(int(math.Round(p * 100)))
	}
	return strconv.FormatFloat(p, 'f', -1, 64)
}
