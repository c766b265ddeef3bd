package buffer

import "time"

// TimeProvider is an interface for getting the current time and waiting.
// This allows injecting a manual clock for deterministic testing of the delivery cycle.
type TimeProvider interface {
	// Now returns the current time.
	Now() time.Time
	// After returns a channel that receives once the duration has elapsed.
	After(d time.Duration) <-chan time.Time
}

// RealTimeProvider implements TimeProvider using the actual system time.
type RealTimeProvider struct{}

// Now returns the current system time.
func (RealTimeProvider) Now() time.Time {
	return time.Now()
}

// After waits using the standard library timer.
func (RealTimeProvider) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// getTimeProvider returns the provided TimeProvider if non-nil,
// otherwise a RealTimeProvider.
func getTimeProvider(tp TimeProvider) TimeProvider {
	if tp != nil {
		return tp
	}
	return RealTimeProvider{}
}
