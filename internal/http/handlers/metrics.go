package handlers

import (
	"net/http"
	"sync"
	"time"

	"tryon/internal/tryon"
)

// attemptMetrics counts try-on outcomes since process start. Nothing is
// persisted.
type attemptMetrics struct {
	mu       sync.Mutex
	started  time.Time
	attempts int
	success  int
	failures map[tryon.Kind]int
}

func newAttemptMetrics() *attemptMetrics {
	return &attemptMetrics{started: time.Now(), failures: make(map[tryon.Kind]int)}
}

func (m *attemptMetrics) began() {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()
}

func (m *attemptMetrics) succeeded() {
	m.mu.Lock()
	m.success++
	m.mu.Unlock()
}

func (m *attemptMetrics) failed(kind tryon.Kind) {
	m.mu.Lock()
	m.failures[kind]++
	m.mu.Unlock()
}

func (m *attemptMetrics) snapshot() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	failures := make(map[string]int, len(m.failures))
	total := 0
	for kind, n := range m.failures {
		failures[string(kind)] = n
		total += n
	}
	return map[string]any{
		"uptime_seconds":    int(time.Since(m.started).Seconds()),
		"attempt_started":   m.attempts,
		"attempt_succeeded": m.success,
		"attempt_failed":    total,
		"failures_by_kind":  failures,
	}
}

// Metrics handles GET /v1/metrics.
func (a *App) Metrics(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, a.metrics.snapshot())
}
