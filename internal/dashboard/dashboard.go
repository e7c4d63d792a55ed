// Package dashboard summarizes recent readings across the camera catalog.
package dashboard

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/logger"
	"github.com/firewatch-dev/firewatch/internal/reading"
)

const (
	summaryKey   = "summary"
	fetchWorkers = 8
)

// Catalog lists the cameras to summarize.
type Catalog interface {
	All() []camera.Camera
}

// FireAlert is a camera whose latest reading is above the alert threshold.
type FireAlert struct {
	CameraID    string  `json:"cameraId"`
	CameraName  string  `json:"cameraName"`
	Probability float64 `json:"probability"` // percent, two decimals
	Timestamp   int64   `json:"timestamp"`
}

// TrendPoint is the mean fire probability of all readings in one hour of day.
type TrendPoint struct {
	Time           string  `json:"time"` // "15:00"
	AvgProbability float64 `json:"avgProbability"`
	Readings       int     `json:"readings"`
}

// Summary is the dashboard payload.
type Summary struct {
	GeneratedAt        time.Time    `json:"generatedAt"`
	TotalCameras       int          `json:"totalCameras"`
	ActiveFires        int          `json:"activeFires"`
	AverageProbability float64      `json:"averageProbability"`
	TotalReadings      int          `json:"totalReadings"`
	Alerts             []FireAlert  `json:"alerts"`
	Trend              []TrendPoint `json:"trend"`
	FailedCameras      []string     `json:"failedCameras,omitempty"`
}

// Service builds summaries and caches them briefly.
type Service struct {
	readings  reading.Store
	cameras   Catalog
	window    time.Duration
	threshold float64
	location  *time.Location
	cache     *cache.Cache
	now       func() time.Time
	log       logger.Logger
}

// NewService creates a dashboard service. A zero cache TTL disables caching.
func NewService(readings reading.Store, cameras Catalog, settings conf.DashboardSettings) *Service {
	s := &Service{
		readings:  readings,
		cameras:   cameras,
		window:    settings.TrendWindow,
		threshold: settings.AlertThreshold,
		location:  time.UTC,
		now:       time.Now,
		log:       logger.Global().Module("dashboard"),
	}
	if settings.CacheTTL > 0 {
		s.cache = cache.New(settings.CacheTTL, 2*settings.CacheTTL)
	}
	return s
}

// Invalidate drops the cached summary.
func (s *Service) Invalidate() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

// Summary returns the current summary. Cameras whose readings cannot be
// fetched are listed in FailedCameras; the call fails only when every
// camera fails.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(summaryKey); ok {
			return v.(*Summary), nil
		}
	}

	cams := s.cameras.All()
	perCamera := make([][]reading.Reading, len(cams))
	var (
		mu     sync.Mutex
		failed []string
		last   error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, cam := range cams {
		g.Go(func() error {
			rs, err := s.readings.Since(gctx, cam.ID, s.window, reading.Chronological)
			if err != nil {
				mu.Lock()
				failed = append(failed, cam.ID)
				last = err
				mu.Unlock()
				s.log.Warn("camera readings unavailable", logger.String("camera_id", cam.ID), logger.Error(err))
				return nil
			}
			perCamera[i] = rs
			return nil
		})
	}
	_ = g.Wait()

	if len(cams) > 0 && len(failed) == len(cams) {
		return nil, errors.New(fmt.Errorf("all cameras failed: %w", last)).
			Component("dashboard").
			Build()
	}

	sum := s.build(cams, perCamera)
	slices.Sort(failed)
	sum.FailedCameras = failed
	if s.cache != nil && len(failed) == 0 {
		s.cache.SetDefault(summaryKey, sum)
	}
	return sum, nil
}

func (s *Service) build(cams []camera.Camera, perCamera [][]reading.Reading) *Summary {
	sum := &Summary{
		GeneratedAt:  s.now(),
		TotalCameras: len(cams),
		Alerts:       []FireAlert{},
		Trend:        []TrendPoint{},
	}

	var total float64
	hourly := make(map[int]*TrendPoint)
	for i, cam := range cams {
		rs := perCamera[i]
		if len(rs) == 0 {
			continue
		}
		if slices.ContainsFunc(rs, func(r reading.Reading) bool { return r.IsFire() }) {
			sum.ActiveFires++
		}
		for _, r := range rs {
			pct := r.FireScore * 100
			total += pct
			sum.TotalReadings++

			h := r.Time().In(s.location).Hour()
			tp, ok := hourly[h]
			if !ok {
				tp = &TrendPoint{Time: fmt.Sprintf("%02d:00", h)}
				hourly[h] = tp
			}
			tp.AvgProbability += pct
			tp.Readings++
		}

		latest := rs[len(rs)-1]
		if latest.FireScore > s.threshold {
			sum.Alerts = append(sum.Alerts, FireAlert{
				CameraID:    cam.ID,
				CameraName:  cam.Name,
				Probability: round2(latest.FireScore * 100),
				Timestamp:   latest.Timestamp,
			})
		}
	}

	if sum.TotalReadings > 0 {
		sum.AverageProbability = round2(total / float64(sum.TotalReadings))
	}
	for _, tp := range hourly {
		tp.AvgProbability = round2(tp.AvgProbability / float64(tp.Readings))
		sum.Trend = append(sum.Trend, *tp)
	}
	slices.SortFunc(sum.Trend, func(a, b TrendPoint) int { return strings.Compare(a.Time, b.Time) })
	return sum
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
