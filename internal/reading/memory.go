package reading

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps readings in process. It backs the demo mode and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	readings map[string][]Reading // chronological per camera
	failures map[string]error
	now      func() time.Time
	limit    int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		readings: make(map[string][]Reading),
		failures: make(map[string]error),
		now:      time.Now,
		limit:    100,
	}
}

// SetClock replaces the time source used by Since.
func (m *MemoryStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Add inserts readings. Invalid readings are rejected as a whole.
func (m *MemoryStore) Add(readings ...Reading) error {
	for i := range readings {
		if err := readings[i].Validate(); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range readings {
		list := append(m.readings[r.CameraID], r)
		slices.SortStableFunc(list, func(a, b Reading) int {
			switch {
			case a.Timestamp < b.Timestamp:
				return -1
			case a.Timestamp > b.Timestamp:
				return 1
			}
			return 0
		})
		m.readings[r.CameraID] = list
	}
	return nil
}

// FailCamera makes every query for cameraID fail with err. A nil err clears it.
func (m *MemoryStore) FailCamera(cameraID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, cameraID)
		return
	}
	m.failures[cameraID] = err
}

// LoadFile reads a JSON array of readings, the format the reading fetch
// endpoint returns.
func (m *MemoryStore) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading demo data: %w", err)
	}
	var readings []Reading
	if err := json.Unmarshal(data, &readings); err != nil {
		return fmt.Errorf("parsing demo data %s: %w", path, err)
	}
	for i := range readings {
		if l, ok := ParseLabel(string(readings[i].Label)); ok {
			readings[i].Label = l
		}
	}
	return m.Add(readings...)
}

// Cameras returns the ids of every camera with readings, sorted.
func (m *MemoryStore) Cameras() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.readings))
	for id := range m.readings {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *MemoryStore) Latest(ctx context.Context, cameraID string) (*Reading, error) {
	list, err := m.snapshot(ctx, cameraID)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	r := list[len(list)-1]
	return &r, nil
}

func (m *MemoryStore) Since(ctx context.Context, cameraID string, window time.Duration, order Order) ([]Reading, error) {
	if err := checkWindow(window); err != nil {
		return nil, err
	}
	list, err := m.snapshot(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	cutoff := m.now().Add(-window).Unix()
	m.mu.RUnlock()

	out := make([]Reading, 0, len(list))
	for _, r := range list {
		if r.Timestamp >= cutoff {
			out = append(out, r)
		}
	}
	if order == NewestFirst {
		slices.Reverse(out)
	}
	return out, nil
}

func (m *MemoryStore) Recent(ctx context.Context, cameraID string, limit int) ([]Reading, error) {
	list, err := m.snapshot(ctx, cameraID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = m.limit
	}
	slices.Reverse(list)
	if len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (m *MemoryStore) snapshot(ctx context.Context, cameraID string) ([]Reading, error) {
	if err := checkCamera(cameraID); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("query", cameraID, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.failures[cameraID]; err != nil {
		return nil, err
	}
	return slices.Clone(m.readings[cameraID]), nil
}
