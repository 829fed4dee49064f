package writer

import (
	"sync"
	"time"

	"github.com/vjranagit/tickstats/pkg/types"
)

// Filter decides whether a series should be skipped before the caller does
// the work of building it. A series is blocked when its measurement name is
// disabled, or when the same series was written within the block window.
type Filter struct {
	window time.Duration
	recent *recentCache

	mu       sync.RWMutex
	disabled map[string]struct{}
}

// NewFilter creates a filter. A window <= 0 turns off the rate limit and
// only disabled names are blocked.
func NewFilter(window time.Duration, capacity int, disabled ...string) *Filter {
	f := &Filter{
		window:   window,
		disabled: make(map[string]struct{}, len(disabled)),
	}
	if window > 0 {
		f.recent = newRecentCache(capacity, window)
	}
	for _, name := range disabled {
		f.disabled[name] = struct{}{}
	}
	return f
}

// SetEnabled toggles a measurement name at runtime
func (f *Filter) SetEnabled(name string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if enabled {
		delete(f.disabled, name)
		return
	}
	f.disabled[name] = struct{}{}
}

// IsBlocked reports whether s should be skipped at time now
func (f *Filter) IsBlocked(s types.Series, now time.Time) bool {
	f.mu.RLock()
	_, off := f.disabled[s.Name()]
	f.mu.RUnlock()
	if off {
		return true
	}

	if f.recent == nil {
		return false
	}
	return f.recent.Seen(s.Fingerprint(), now)
}

// Record marks s as written at time at
func (f *Filter) Record(s types.Series, at time.Time) {
	if f.recent == nil {
		return
	}
	f.recent.Put(s.Fingerprint(), at)
}

// Tracked returns the number of series remembered for the block window
func (f *Filter) Tracked() int {
	if f.recent == nil {
		return 0
	}
	return f.recent.Len()
}
