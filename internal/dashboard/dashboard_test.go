package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firewatch-dev/firewatch/internal/camera"
	"github.com/firewatch-dev/firewatch/internal/conf"
	"github.com/firewatch-dev/firewatch/internal/reading"
)

var testNow = time.Date(2026, 7, 4, 18, 30, 0, 0, time.UTC)

func at(hour, minute int) int64 {
	return time.Date(2026, 7, 4, hour, minute, 0, 0, time.UTC).Unix()
}

func newFixture(t *testing.T, ttl time.Duration) (*Service, *reading.MemoryStore) {
	t.Helper()
	store := reading.NewMemoryStore()
	store.SetClock(func() time.Time { return testNow })
	require.NoError(t, store.Add(
		reading.Reading{CameraID: "cam-a", Timestamp: at(17, 0), FireScore: 0.2, Label: reading.LabelNoFire},
		reading.Reading{CameraID: "cam-a", Timestamp: at(18, 0), FireScore: 0.9, Label: reading.LabelFire},
		reading.Reading{CameraID: "cam-b", Timestamp: at(17, 30), FireScore: 0.6, Label: reading.LabelFire},
		reading.Reading{CameraID: "cam-b", Timestamp: at(18, 10), FireScore: 0.3, Label: reading.LabelNoFire},
		// Outside the trend window.
		reading.Reading{CameraID: "cam-c", Timestamp: testNow.Add(-48 * time.Hour).Unix(), FireScore: 1, Label: reading.LabelFire},
	))

	cams := camera.New([]camera.Camera{
		{ID: "cam-a", Name: "Camera A"},
		{ID: "cam-b", Name: "Camera B"},
		{ID: "cam-c", Name: "Camera C"},
	})
	svc := NewService(store, cams, conf.DashboardSettings{TrendWindow: 24 * time.Hour, AlertThreshold: 0.5, CacheTTL: ttl})
	svc.now = func() time.Time { return testNow }
	return svc, store
}

func TestSummary(t *testing.T) {
	svc, _ := newFixture(t, 0)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, sum.TotalCameras)
	assert.Equal(t, 4, sum.TotalReadings)
	assert.Equal(t, 2, sum.ActiveFires, "cameras with any fire reading in the window")
	assert.InDelta(t, 50.0, sum.AverageProbability, 0.001)

	require.Len(t, sum.Alerts, 1, "only latest readings above the threshold")
	assert.Equal(t, FireAlert{CameraID: "cam-a", CameraName: "Camera A", Probability: 90, Timestamp: at(18, 0)}, sum.Alerts[0])

	require.Len(t, sum.Trend, 2)
	assert.Equal(t, TrendPoint{Time: "17:00", AvgProbability: 40, Readings: 2}, sum.Trend[0])
	assert.Equal(t, TrendPoint{Time: "18:00", AvgProbability: 60, Readings: 2}, sum.Trend[1])
	assert.Empty(t, sum.FailedCameras)
}

func TestSummaryPartialFailure(t *testing.T) {
	svc, store := newFixture(t, time.Minute)
	store.FailCamera("cam-b", reading.ErrStoreUnavailable)

	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"cam-b"}, sum.FailedCameras)
	assert.Equal(t, 2, sum.TotalReadings)

	// Partial results are not cached.
	store.FailCamera("cam-b", nil)
	sum, err = svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.FailedCameras)
}

func TestSummaryAllCamerasFail(t *testing.T) {
	svc, store := newFixture(t, 0)
	for _, id := range []string{"cam-a", "cam-b", "cam-c"} {
		store.FailCamera(id, reading.ErrStoreUnavailable)
	}
	_, err := svc.Summary(context.Background())
	require.ErrorIs(t, err, reading.ErrStoreUnavailable)
}

func TestSummaryCached(t *testing.T) {
	svc, store := newFixture(t, time.Minute)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)

	require.NoError(t, store.Add(reading.Reading{CameraID: "cam-c", Timestamp: at(18, 20), FireScore: 0.99, Label: reading.LabelFire}))
	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, second)

	svc.Invalidate()
	third, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, third.TotalReadings)
	assert.Len(t, third.Alerts, 2)
}

func TestSummaryEmptyCatalog(t *testing.T) {
	svc := NewService(reading.NewMemoryStore(), camera.New(nil), conf.DashboardSettings{TrendWindow: time.Hour})
	sum, err := svc.Summary(context.Background())
	require.NoError(t, err)
	assert.Zero(t, sum.TotalCameras)
	assert.NotNil(t, sum.Alerts)
	assert.NotNil(t, sum.Trend)
}
