package batch

import (
	"sync"
	"time"

	"schedparser/internal/model"
)

// Metrics метрики обработки групп
type Metrics struct {
	mu             sync.RWMutex
	processed      int64
	failed         int64
	inFlight       int
	peakInFlight   int
	processingTime time.Duration
	runs           int64
	lastRunAt      time.Time
	lastRun        Summary
}

// MetricsSnapshot копия метрик на момент вызова
type MetricsSnapshot struct {
	Processed      int64         `json:"processed"`
	Failed         int64         `json:"failed"`
	InFlight       int           `json:"in_flight"`
	PeakInFlight   int           `json:"peak_in_flight"`
	ProcessingTime time.Duration `json:"processing_time"`
	Runs           int64         `json:"runs"`
	LastRunAt      time.Time     `json:"last_run_at,omitempty"`
	LastRun        Summary       `json:"last_run"`
}

func (m *Metrics) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
	if m.inFlight > m.peakInFlight {
		m.peakInFlight = m.inFlight
	}
}

func (m *Metrics) end(res model.ParseResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	if res.IsSuccessful() {
		m.processed++
	} else {
		m.failed++
	}
	m.processingTime += res.Duration
}

func (m *Metrics) finishRun(at time.Time, summary Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs++
	m.lastRunAt = at
	m.lastRun = summary
}

// Snapshot возвращает текущие метрики
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return MetricsSnapshot{
		Processed:      m.processed,
		Failed:         m.failed,
		InFlight:       m.inFlight,
		PeakInFlight:   m.peakInFlight,
		ProcessingTime: m.processingTime,
		Runs:           m.runs,
		LastRunAt:      m.lastRunAt,
		LastRun:        m.lastRun,
	}
}

// Summary итоги одного запуска
type Summary struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Deleted   int           `json:"deleted"`
	Duration  time.Duration `json:"duration"`
}

// Summarize подсчитывает итоги по результатам групп
func Summarize(results []model.ParseResult) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		if r.IsSuccessful() {
			s.Succeeded++
		} else {
			s.Failed++
		}
		s.Added += r.LessonsAdded
		s.Updated += r.LessonsUpdated
		s.Deleted += r.LessonsDeleted
	}
	return s
}
