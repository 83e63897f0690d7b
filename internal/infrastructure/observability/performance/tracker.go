// Package performance provides lightweight operation tracking for
// RevTrace request handling and journey reconstruction.
package performance

import (
	"fmt"
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string         `json:"operation"` // e.g., "ingest:store_event", "journey:build"
	StartTime time.Time      `json:"startTime"`
	EndTime   time.Time      `json:"endTime"`
	Duration  time.Duration  `json:"duration"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Completed bool           `json:"completed"`
}

// Complete marks the operation as finished and calculates final metrics
func (m *Marker) Complete() {
	if m.Completed {
		return // Prevent double completion
	}

	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    map[string]*Marker
	maxMarkers int
	counter    uint64
	started    time.Time
	mu         sync.RWMutex
}

// NewTracker creates a performance tracker.
func NewTracker() *Tracker {
	return &Tracker{
		markers:    make(map[string]*Marker),
		maxMarkers: 10000,
		started:    time.Now(),
	}
}

// StartOperation begins tracking a new operation and returns its marker.
func (t *Tracker) StartOperation(operation string) *Marker {
	marker := &Marker{
		Operation: operation,
		StartTime: time.Now(),
		Success:   true, // Assume success unless SetError is called
	}

	t.mu.Lock()
	t.counter++
	id := fmt.Sprintf("%s_%d_%d", operation, marker.StartTime.UnixNano(), t.counter)
	t.markers[id] = marker
	if len(t.markers) > t.maxMarkers {
		t.evictOldestLocked()
	}
	t.mu.Unlock()

	return marker
}

// GetRecentMetrics returns completed markers within the given window.
func (t *Tracker) GetRecentMetrics(within time.Duration) []Marker {
	t.mu.RLock()
	defer t.mu.RUnlock()

	cutoff := time.Now().Add(-within)
	var metrics []Marker
	for _, marker := range t.markers {
		if marker.Completed && marker.EndTime.After(cutoff) {
			metrics = append(metrics, *marker)
		}
	}
	return metrics
}

// GetOverallStats returns aggregate statistics across all retained markers.
func (t *Tracker) GetOverallStats() map[string]any {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var completed, failed int
	var totalDuration time.Duration
	for _, marker := range t.markers {
		if !marker.Completed {
			continue
		}
		completed++
		totalDuration += marker.Duration
		if !marker.Success {
			failed++
		}
	}

	stats := map[string]any{
		"uptime":           time.Since(t.started).String(),
		"trackedMarkers":   len(t.markers),
		"completedMarkers": completed,
		"failedMarkers":    failed,
	}
	if completed > 0 {
		stats["avgDuration"] = (totalDuration / time.Duration(completed)).String()
	}
	return stats
}

// Cleanup discards completed markers older than one hour.
func (t *Tracker) Cleanup() {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := time.Now().Add(-time.Hour)
	for id, marker := range t.markers {
		if marker.Completed && marker.EndTime.Before(cutoff) {
			delete(t.markers, id)
		}
	}
}

// evictOldestLocked removes the oldest completed marker. Caller holds mu.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, marker := range t.markers {
		if !marker.Completed {
			continue
		}
		if oldestID == "" || marker.EndTime.Before(oldest) {
			oldestID = id
			oldest = marker.EndTime
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}
