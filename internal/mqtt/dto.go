package mqtt

import (
	"time"
)

// AlertEvent is the JSON payload published for every fire alert sent.
//
// Field names are part of the topic contract consumed by home automation
// setups; add fields, do not rename them.
type AlertEvent struct {
	CameraID       string    `json:"cameraId"`
	CameraName     string    `json:"cameraName,omitempty"`
	SubscriptionID string    `json:"subscriptionId"`
	Phone          string    `json:"phone"` // masked
	FireScore      float64   `json:"fireScore"`
	Confidence     int       `json:"confidence"` // percent
	ReadingTime    time.Time `json:"readingTime"`
	SentAt         time.Time `json:"sentAt"`
	Provider       string    `json:"provider,omitempty"`
	MessageID      string    `json:"messageId,omitempty"`
}
