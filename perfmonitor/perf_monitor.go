// Package perfmonitor provides a small stopwatch for measuring how long a
// unit of work took, reported in milliseconds.
package perfmonitor

import "time"

// PerformanceMonitor records a start and end instant. It is not safe for
// concurrent use; give each goroutine its own monitor.
type PerformanceMonitor struct {
	startTime time.Time
	endTime   time.Time
}

// NewPerformanceMonitor returns a monitor with no recorded times.
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{}
}

// Start records the current time as the start of the measurement.
func (p *PerformanceMonitor) Start() {
	p.startTime = time.Now()
}

// Stop records the current time as the end of the measurement. It does
// nothing if Start has not been called since the last Reset.
func (p *PerformanceMonitor) Stop() {
	if p.startTime.IsZero() {
		return
	}

	p.endTime = time.Now()
}

// Reset clears both recorded times.
func (p *PerformanceMonitor) Reset() {
	p.startTime = time.Time{}
	p.endTime = time.Time{}
}

// ElapsedMilliseconds returns the time between Start and Stop in
// milliseconds, or 0 if either has not been recorded.
//
// Returns:
//   - The elapsed time as fractional milliseconds
func (p *PerformanceMonitor) ElapsedMilliseconds() float64 {
	if p.startTime.IsZero() || p.endTime.IsZero() {
		return 0
	}

	return float64(p.endTime.Sub(p.startTime)) / float64(time.Millisecond)
}
