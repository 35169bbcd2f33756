// Package activity keeps an in-memory log of recent admin actions: plugin
// registrations and removals, theme activations and hook failures.
package activity

import (
	"sync"

	"pressadmin/internal/clock"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of records kept when none is configured.
const DefaultCapacity = 200

// Action types
const (
	ActionPluginRegistered   = "plugin_registered"
	ActionPluginFailed       = "plugin_failed"
	ActionPluginRejected     = "plugin_rejected"
	ActionPluginUnregistered = "plugin_unregistered"
	ActionThemeActivated     = "theme_activated"
	ActionThemeFailed        = "theme_failed"
	ActionHookFailed         = "hook_failed"
)

// Tracker records actions in a bounded ring, newest last.
type Tracker struct {
	mu       sync.RWMutex
	clock    clock.Clock
	logger   *zap.Logger
	capacity int
	records  []Record
	last     map[string]Record
}

// NewTracker creates a tracker keeping at most capacity records.
func NewTracker(clk clock.Clock, logger *zap.Logger, capacity int) *Tracker {
	if clk == nil {
		clk = clock.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		clock:    clk,
		logger:   logger.Named("activity"),
		capacity: capacity,
		records:  make([]Record, 0, capacity),
		last:     make(map[string]Record),
	}
}

// Record appends an action for subject and returns the stored record.
func (t *Tracker) Record(subject, actionType, reason string, details map[string]interface{}) Record {
	rec := Record{
		Timestamp:  t.clock.Now(),
		Subject:    subject,
		ActionType: actionType,
		Reason:     reason,
		Details:    details,
	}

	t.mu.Lock()
	if len(t.records) == t.capacity {
		copy(t.records, t.records[1:])
		t.records = t.records[:len(t.records)-1]
	}
	t.records = append(t.records, rec)
	t.last[subject] = rec
	t.mu.Unlock()

	t.logger.Debug("Activity recorded",
		zap.String("subject", subject),
		zap.String("action", actionType),
		zap.String("reason", reason))

	return rec
}

// Recent returns up to limit records, newest first. A limit of zero or less
// returns every record.
func (t *Tracker) Recent(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	n := len(t.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	result := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		result = append(result, t.records[i])
	}
	return result
}

// Last returns the most recent record for subject.
func (t *Tracker) Last(subject string) (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.last[subject]
	return rec, ok
}

// Len returns the number of stored records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
