package subscription

import (
	"context"
	"fmt"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/phone"
)

// WelcomePolicy decides what a failed welcome message does to the new
// subscription.
type WelcomePolicy string

const (
	// WelcomeNonBlocking keeps the subscription and reports a warning.
	WelcomeNonBlocking WelcomePolicy = "nonblocking"
	// WelcomeRollback deletes the subscription and returns the send error.
	WelcomeRollback WelcomePolicy = "rollback"
)

// CameraNamer resolves a display name for a camera id.
type CameraNamer interface {
	DisplayName(cameraID string) string
}

// Created is the outcome of Subscribe.
type Created struct {
	Subscription *Subscription     `json:"subscription"`
	Welcome      *notifier.Receipt `json:"welcome,omitempty"`
	Warning      string            `json:"warning,omitempty"`
}

// Service creates subscriptions and sends the welcome message.
type Service struct {
	store    Store
	notifier notifier.Notifier
	cameras  CameraNamer
	policy   WelcomePolicy
	log      logger.Logger
}

// NewService wires a store to the notifier used for welcome messages.
func NewService(store Store, n notifier.Notifier, cameras CameraNamer, policy WelcomePolicy) *Service {
	if policy == "" {
		policy = WelcomeNonBlocking
	}
	return &Service{
		store:    store,
		notifier: n,
		cameras:  cameras,
		policy:   policy,
		log:      logger.Global().Module(componentSubscription),
	}
}

// List returns every subscription.
func (s *Service) List(ctx context.Context) ([]Subscription, error) { return s.store.List(ctx) }

// ListByUser returns the subscriptions created by one user.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Subscription, error) {
	return s.store.ListByUser(ctx, userID)
}

// Subscribe stores the subscription and sends exactly one welcome message
// before returning. The current readings of the camera play no part.
func (s *Service) Subscribe(ctx context.Context, cameraID, phoneNumber, userID string) (*Created, error) {
	sub, err := s.store.Create(ctx, cameraID, phoneNumber, userID)
	if err != nil {
		return nil, err
	}
	s.log.Info("subscription created",
		logger.String("subscription_id", sub.ID),
		logger.String("camera_id", sub.CameraID),
		logger.String("phone", phone.Mask(sub.PhoneNumber)))

	receipt, sendErr := s.notifier.Send(ctx, sub.PhoneNumber, notifier.Welcome(s.displayName(sub.CameraID)))
	if sendErr == nil {
		return &Created{Subscription: sub, Welcome: receipt}, nil
	}

	s.log.Warn("welcome message failed",
		logger.String("subscription_id", sub.ID),
		logger.String("policy", string(s.policy)),
		logger.Error(sendErr))

	if s.policy == WelcomeRollback {
		if err := s.store.Delete(context.WithoutCancel(ctx), sub.ID); err != nil {
			return nil, errors.Join(sendErr, fmt.Errorf("rolling back subscription %s: %w", sub.ID, err))
		}
		return nil, sendErr
	}
	return &Created{
		Subscription: sub,
		Warning:      "subscription saved but the welcome message could not be sent",
	}, nil
}

// Unsubscribe deletes a subscription by id.
func (s *Service) Unsubscribe(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.log.Info("subscription deleted", logger.String("subscription_id", id))
	return nil
}

func (s *Service) displayName(cameraID string) string {
	if s.cameras == nil {
		return cameraID
	}
	return s.cameras.DisplayName(cameraID)
}
