package membership

import "sync/atomic"

// ShutdownSignal tells the watch loop to stop consuming events and stop
// reconnecting. The zero value is clear.
type ShutdownSignal struct {
	set atomic.Bool
}

// Set requests shutdown
func (s *ShutdownSignal) Set() {
	s.set.Store(true)
}

// Clear withdraws a shutdown request
func (s *ShutdownSignal) Clear() {
	s.set.Store(false)
}

// IsSet reports whether shutdown was requested
func (s *ShutdownSignal) IsSet() bool {
	return s.set.Load()
}
