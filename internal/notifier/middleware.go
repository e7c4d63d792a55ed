package notifier

import (
	"context"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/observability/metrics"
)

// RateLimited spaces sends with a token bucket. Send waits for a token until
// ctx is done.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
	metrics *metrics.NotifierMetrics
}

// NewRateLimited allows perMinute sends per minute with the given burst.
// perMinute <= 0 returns next unchanged.
func NewRateLimited(next Notifier, perMinute, burst int, m *metrics.NotifierMetrics) Notifier {
	if perMinute <= 0 {
		return next
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
		metrics: m,
	}
}

func (r *RateLimited) Name() string { return r.next.Name() }

func (r *RateLimited) Send(ctx context.Context, phoneNumber, message string) (*Receipt, error) {
	if !r.limiter.Allow() {
		if r.metrics != nil {
			r.metrics.RecordRateLimited(r.next.Name())
		}
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, errors.New(errors.Join(ErrRateLimited, err)).
				Component(componentNotifier).
				Context("provider", r.next.Name()).
				Build()
		}
	}
	return r.next.Send(ctx, phoneNumber, message)
}

// LengthPolicy decides what happens to messages longer than the limit.
type LengthPolicy string

const (
	Truncate LengthPolicy = "truncate"
	Reject   LengthPolicy = "reject"
)

type lengthLimited struct {
	next   Notifier
	limit  int
	policy LengthPolicy
}

// WithLengthLimit bounds message length in characters. limit <= 0 returns next
// unchanged. Truncation keeps whole characters and ends with an ellipsis.
func WithLengthLimit(next Notifier, limit int, policy LengthPolicy) Notifier {
	if limit <= 0 {
		return next
	}
	return &lengthLimited{next: next, limit: limit, policy: policy}
}

func (l *lengthLimited) Name() string { return l.next.Name() }

func (l *lengthLimited) Send(ctx context.Context, phoneNumber, message string) (*Receipt, error) {
	if utf8.RuneCountInString(message) > l.limit {
		if l.policy == Reject {
			return nil, errors.New(ErrMessageTooLong).
				Component(componentNotifier).
				Context("length", utf8.RuneCountInString(message)).
				Context("max", l.limit).
				Build()
		}
		message = truncate(message, l.limit)
	}
	return l.next.Send(ctx, phoneNumber, message)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 1 {
		return string(runes[:limit])
	}
	return string(runes[:limit-1]) + "…"
}

// Instrumented records delivery metrics around next.
type Instrumented struct {
	next    Notifier
	metrics *metrics.NotifierMetrics
}

// NewInstrumented wraps next; a nil m returns next unchanged.
func NewInstrumented(next Notifier, m *metrics.NotifierMetrics) Notifier {
	if m == nil {
		return next
	}
	return &Instrumented{next: next, metrics: m}
}

func (i *Instrumented) Name() string { return i.next.Name() }

func (i *Instrumented) Send(ctx context.Context, phoneNumber, message string) (*Receipt, error) {
	start := time.Now()
	receipt, err := i.next.Send(ctx, phoneNumber, message)
	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusError
		i.metrics.RecordDeliveryError(i.next.Name(), string(errors.CategoryOf(err)))
	}
	i.metrics.RecordDelivery(i.next.Name(), status, time.Since(start).Seconds())
	return receipt, err
}
