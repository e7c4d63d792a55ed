// Package subscription stores (user, camera, phone) bindings that request SMS
// alerts, and runs the welcome flow when one is created.
package subscription

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

const componentSubscription = "subscription"

// Sentinel errors. Match with errors.Is.
var (
	ErrNotFound         = errors.NewKind("subscription not found", errors.CategoryNotFound)
	ErrInvalidInput     = errors.NewKind("invalid subscription", errors.CategoryValidation)
	ErrStoreUnavailable = errors.NewKind("subscription store unavailable", errors.CategoryDatabase)
)

// Subscription binds a phone number to a camera's alerts.
type Subscription struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	UserID      string    `gorm:"index;size:64" json:"user_id,omitempty"`
	CameraID    string    `gorm:"column:camera_id;index;not null;size:128" json:"camera_id"`
	PhoneNumber string    `gorm:"column:phone_number;not null;size:16" json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName keeps the table name used by the rest of the deployment.
func (Subscription) TableName() string { return "alert_subscriptions" }

// BeforeCreate assigns a UUID when none is set.
func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// newSubscription validates input and normalizes the phone number to E.164.
func newSubscription(cameraID, phoneNumber, userID string) (*Subscription, error) {
	cameraID = strings.TrimSpace(cameraID)
	if cameraID == "" {
		return nil, errors.New(errors.Join(ErrInvalidInput, errors.NewStd("camera id is required"))).
			Component(componentSubscription).
			Build()
	}
	if strings.TrimSpace(phoneNumber) == "" {
		return nil, errors.New(errors.Join(ErrInvalidInput, errors.NewStd("phone number is required"))).
			Component(componentSubscription).
			Build()
	}
	e164, err := phone.E164(phoneNumber)
	if err != nil {
		return nil, err
	}
	return &Subscription{
		CameraID:    cameraID,
		PhoneNumber: e164,
		UserID:      strings.TrimSpace(userID),
	}, nil
}
