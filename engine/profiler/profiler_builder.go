package profiler

import "time"

// ProfilerBuilderOption is a functional option for configuring a Profiler via NewProfiler.
type ProfilerBuilderOption func(*Profiler)

// WithUpdateInterval is an option builder that sets how often statistics are logged.
//
// Parameters:
//   - d: the logging interval, values below 1ms are ignored
//
// Returns:
//   - ProfilerBuilderOption: a function that applies the interval option to a profiler
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d >= time.Millisecond {
			p.updateInterval = d
		}
	}
}
