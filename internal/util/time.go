package util

import (
	"fmt"
	"sync"
	"time"
)

// Date layouts used in documents
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

// TimeProvider resolves "now" and calendar dates in the configured timezone.
// Cycle windows and dated sections depend on it, so a single provider is
// shared process-wide.
type TimeProvider struct {
	mu       sync.RWMutex
	location *time.Location
	clock    func() time.Time
}

var (
	globalTimeProvider *TimeProvider
	timeMu             sync.Mutex
)

// NewTimeProvider creates a provider for timezone ("" or "Local" = system zone)
func NewTimeProvider(timezone string) (*TimeProvider, error) {
	tp := &TimeProvider{clock: time.Now}
	if err := tp.SetTimezone(timezone); err != nil {
		return nil, err
	}
	return tp, nil
}

// InitializeTimeProvider replaces the global provider
func InitializeTimeProvider(timezone string) error {
	tp, err := NewTimeProvider(timezone)
	if err != nil {
		return err
	}
	timeMu.Lock()
	globalTimeProvider = tp
	timeMu.Unlock()
	return nil
}

// GetTimeProvider returns the global provider, defaulting to the local zone
func GetTimeProvider() *TimeProvider {
	timeMu.Lock()
	defer timeMu.Unlock()
	if globalTimeProvider == nil {
		globalTimeProvider = &TimeProvider{location: time.Local, clock: time.Now}
	}
	return globalTimeProvider
}

// SetTimezone updates the provider's zone
func (tp *TimeProvider) SetTimezone(timezone string) error {
	loc := time.Local
	if timezone != "" && timezone != "Local" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w\nValid examples: Local, UTC, America/New_York, Europe/London", timezone, err)
		}
		loc = l
	}

	tp.mu.Lock()
	defer tp.mu.Unlock()
	tp.location = loc
	return nil
}

// SetClock overrides the time source, used by tests
func (tp *TimeProvider) SetClock(clock func() time.Time) {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	if clock == nil {
		clock = time.Now
	}
	tp.clock = clock
}

// Location returns the configured zone
func (tp *TimeProvider) Location() *time.Location {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.location
}

// Now returns the current time in the configured zone
func (tp *TimeProvider) Now() time.Time {
	tp.mu.RLock()
	defer tp.mu.RUnlock()
	return tp.clock().In(tp.location)
}

// In converts t to the configured zone
func (tp *TimeProvider) In(t time.Time) time.Time {
	return t.In(tp.Location())
}

// FormatDate renders t's calendar date in the configured zone
func (tp *TimeProvider) FormatDate(t time.Time) string {
	return tp.In(t).Format(DateLayout)
}

// ParseDate parses YYYY-MM-DD as midday in the configured zone, so the result
// sits inside that day's cycle window regardless of DST shifts.
func (tp *TimeProvider) ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, tp.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", s, err)
	}
	return d.Add(12 * time.Hour), nil
}
