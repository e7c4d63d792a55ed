// Package alert evaluates every subscription against its camera's latest
// reading and sends fire alerts.
package alert

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/mqtt"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
	"github.com/firewatch-dev/firewatch/internal/phone"
	"github.com/firewatch-dev/firewatch/internal/reading"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

const componentAlert = "alert"

// Outcome of one subscription within a scan.
type Outcome string

const (
	OutcomeQuiet      Outcome = metrics.OutcomeQuiet
	OutcomeSent       Outcome = metrics.OutcomeSent
	OutcomeSuppressed Outcome = metrics.OutcomeSuppressed
	OutcomeFailed     Outcome = metrics.OutcomeFailed
)

// SubscriptionLister is the part of the subscription store the scanner needs.
type SubscriptionLister interface {
	List(ctx context.Context) ([]subscription.Subscription, error)
}

// CameraNamer resolves display names for messages.
type CameraNamer interface {
	DisplayName(cameraID string) string
}

// EventPublisher receives an event for every alert sent.
type EventPublisher interface {
	PublishAlert(ctx context.Context, ev mqtt.AlertEvent) error
}

// Intent is a decision to message one subscriber about one reading.
type Intent struct {
	Subscription subscription.Subscription
	Reading      reading.Reading
	Message      string
}

// Result describes what happened to one subscription.
type Result struct {
	SubscriptionID string     `json:"subscription_id"`
	CameraID       string     `json:"camera_id"`
	Phone          string     `json:"phone"` // masked
	Outcome        Outcome    `json:"outcome"`
	ReadingTime    *time.Time `json:"reading_time,omitempty"`
	FireScore      float64    `json:"fire_score,omitempty"`
	MessageID      string     `json:"message_id,omitempty"`
	Error          string     `json:"error,omitempty"`
}

// Report summarizes a scan.
type Report struct {
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Subscriptions int       `json:"subscriptions"`
	Triggered     int       `json:"triggered"`
	Sent          int       `json:"sent"`
	Suppressed    int       `json:"suppressed"`
	Failed        int       `json:"failed"`
	Results       []Result  `json:"results"`
}

// Scanner runs alert scans. Scans are independent; overlapping scans only
// coordinate through the suppressor.
type Scanner struct {
	subs        SubscriptionLister
	readings    reading.Store
	notifier    notifier.Notifier
	rule        Rule
	cameras     CameraNamer
	suppressor  Suppressor
	publisher   EventPublisher
	metrics     *metrics.AlertMetrics
	concurrency int
	now         func() time.Time
	log         logger.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(s *Scanner) { s.now = now } }

// WithCameras sets the display name source.
func WithCameras(c CameraNamer) Option { return func(s *Scanner) { s.cameras = c } }

// WithSuppressor sets the duplicate suppression policy.
func WithSuppressor(sp Suppressor) Option { return func(s *Scanner) { s.suppressor = sp } }

// WithPublisher publishes an event for each sent alert.
func WithPublisher(p EventPublisher) Option { return func(s *Scanner) { s.publisher = p } }

// WithMetrics records scan metrics.
func WithMetrics(m *metrics.AlertMetrics) Option { return func(s *Scanner) { s.metrics = m } }

// WithConcurrency bounds how many subscriptions are evaluated at once.
func WithConcurrency(n int) Option {
	return func(s *Scanner) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// NewScanner creates a scanner.
func NewScanner(subs SubscriptionLister, readings reading.Store, n notifier.Notifier, rule Rule, opts ...Option) *Scanner {
	s := &Scanner{
		subs:        subs,
		readings:    readings,
		notifier:    n,
		rule:        rule,
		suppressor:  NoSuppression{},
		concurrency: 1,
		now:         time.Now,
		log:         logger.Global().Module(componentAlert),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan evaluates every subscription once. Only a failure to list
// subscriptions fails the scan; per-subscription failures are recorded in
// the report.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	start := s.now()

	subs, err := s.subs.List(ctx)
	if err != nil {
		s.recordScan(metrics.StatusError, start)
		return nil, errors.New(err).
			Component(componentAlert).
			Context("operation", "list_subscriptions").
			Build()
	}

	results := make([]Result, len(subs))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := range subs {
		g.Go(func() error {
			results[i] = s.evaluate(ctx, subs[i], start)
			return nil
		})
	}
	_ = g.Wait()

	report := &Report{
		StartedAt:     start,
		Subscriptions: len(subs),
		Results:       results,
	}
	for _, r := range results {
		switch r.Outcome {
		case OutcomeSent:
			report.Triggered++
			report.Sent++
		case OutcomeSuppressed:
			report.Triggered++
			report.Suppressed++
		case OutcomeFailed:
			report.Failed++
		}
		if s.metrics != nil {
			s.metrics.RecordOutcome(string(r.Outcome))
		}
	}
	report.FinishedAt = s.now()
	s.recordScan(metrics.StatusSuccess, start)

	s.log.Info("scan finished",
		logger.Int("subscriptions", report.Subscriptions),
		logger.Int("sent", report.Sent),
		logger.Int("suppressed", report.Suppressed),
		logger.Int("failed", report.Failed),
		logger.Duration("duration", report.FinishedAt.Sub(start)))
	return report, nil
}

// evaluate handles one subscription. It never panics past its caller.
func (s *Scanner) evaluate(ctx context.Context, sub subscription.Subscription, now time.Time) (res Result) {
	res = Result{
		SubscriptionID: sub.ID,
		CameraID:       sub.CameraID,
		Phone:          phone.Mask(sub.PhoneNumber),
		Outcome:        OutcomeQuiet,
	}
	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeFailed
			res.Error = fmt.Sprintf("panic: %v", p)
			s.log.Error("subscription evaluation panicked",
				logger.String("subscription_id", sub.ID),
				logger.Any("panic", p))
		}
	}()

	latest, err := s.readings.Latest(ctx, sub.CameraID)
	if err != nil {
		return s.failed(res, "latest reading", err)
	}
	if latest != nil {
		t := latest.Time()
		res.ReadingTime = &t
		res.FireScore = latest.FireScore
	}
	if !s.rule.Triggered(latest, now) {
		return res
	}

	ok, err := s.suppressor.Claim(ctx, sub.ID, sub.CameraID)
	if err != nil {
		// An unavailable suppressor must not silence a fire alert.
		s.log.Warn("suppressor unavailable, sending anyway",
			logger.String("subscription_id", sub.ID),
			logger.Error(err))
	} else if !ok {
		res.Outcome = OutcomeSuppressed
		return res
	}

	intent := Intent{
		Subscription: sub,
		Reading:      *latest,
		Message:      notifier.FireAlert(sub.CameraID, s.displayName(sub.CameraID), latest.ConfidencePercent()),
	}
	receipt, err := s.notifier.Send(ctx, sub.PhoneNumber, intent.Message)
	if err != nil {
		if relErr := s.suppressor.Release(context.WithoutCancel(ctx), sub.ID, sub.CameraID); relErr != nil {
			s.log.Warn("releasing suppression failed", logger.Error(relErr))
		}
		return s.failed(res, "send", err)
	}

	res.Outcome = OutcomeSent
	if receipt != nil {
		res.MessageID = receipt.MessageID
	}
	s.log.Info("fire alert sent",
		logger.String("subscription_id", sub.ID),
		logger.String("camera_id", sub.CameraID),
		logger.String("phone", res.Phone),
		logger.Int("confidence", latest.ConfidencePercent()))
	s.publish(ctx, intent, receipt, now)
	return res
}

func (s *Scanner) failed(res Result, stage string, err error) Result {
	res.Outcome = OutcomeFailed
	res.Error = fmt.Sprintf("%s: %v", stage, err)
	s.log.Warn("subscription failed",
		logger.String("subscription_id", res.SubscriptionID),
		logger.String("camera_id", res.CameraID),
		logger.String("stage", stage),
		logger.Error(err))
	return res
}

func (s *Scanner) publish(ctx context.Context, in Intent, receipt *notifier.Receipt, now time.Time) {
	if s.publisher == nil {
		return
	}
	ev := mqtt.AlertEvent{
		CameraID:       in.Subscription.CameraID,
		CameraName:     s.displayName(in.Subscription.CameraID),
		SubscriptionID: in.Subscription.ID,
		Phone:          phone.Mask(in.Subscription.PhoneNumber),
		FireScore:      in.Reading.FireScore,
		Confidence:     in.Reading.ConfidencePercent(),
		ReadingTime:    in.Reading.Time().UTC(),
		SentAt:         now.UTC(),
	}
	if receipt != nil {
		ev.Provider = receipt.Provider
		ev.MessageID = receipt.MessageID
	}
	if err := s.publisher.PublishAlert(ctx, ev); err != nil {
		s.log.Warn("alert event not published", logger.Error(err))
	}
}

func (s *Scanner) displayName(cameraID string) string {
	if s.cameras == nil {
		return cameraID
	}
	return s.cameras.DisplayName(cameraID)
}

func (s *Scanner) recordScan(status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	end := s.now()
	s.metrics.RecordScan(status, end.Sub(start).Seconds(), end.Unix())
}
