package stash

import (
	"context"
	"errors"
	"sync"
	"time"
)

var errQuota = errors.New("quota exceeded")

// spyStore wraps a MemoryStore and counts calls. Set and Get can be made to fail.
type spyStore struct {
	*MemoryStore

	mu      sync.Mutex
	gets    int
	sets    int
	deletes int
	failSet error
	failGet error
}

func newSpyStore() *spyStore {
	return &spyStore{MemoryStore: NewMemoryStore()}
}

func (s *spyStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.failGet
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *spyStore) Set(ctx context.Context, key string, data []byte) error {
	s.mu.Lock()
	s.sets++
	err := s.failSet
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Set(ctx, key, data)
}

func (s *spyStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	s.deletes++
	err := s.failSet
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.MemoryStore.Delete(ctx, key)
}

func (s *spyStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

// preload writes raw bytes straight into the backing store, bypassing cells.
func (s *spyStore) preload(key, raw string) {
	_ = s.MemoryStore.Set(context.Background(), key, []byte(raw))
}

// raw returns the stored bytes for key.
func (s *spyStore) raw(key string) (string, bool) {
	data, ok, _ := s.MemoryStore.Get(context.Background(), key)
	return string(data), ok
}

// recordingMetrics counts metrics callbacks.
type recordingMetrics struct {
	NoOpMetricsProvider

	mu       sync.Mutex
	reads    int
	diverged int
	writes   int
	skipped  int
	failures []string
	publish  []int
	states   []State
}

func (m *recordingMetrics) OnRead(_ string, diverged bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if diverged {
		m.diverged++
	}
}

func (m *recordingMetrics) OnWrite(_ string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
}

func (m *recordingMetrics) OnWriteSkipped(_ string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped++
}

func (m *recordingMetrics) OnFailure(_, stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, stage)
}

func (m *recordingMetrics) OnPublish(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publish = append(m.publish, n)
}

func (m *recordingMetrics) OnStateChange(_, to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, to)
}
