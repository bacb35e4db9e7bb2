package stream

import "time"

// ReconnectState tracks the delay before the next reconnection attempt. It is
// owned by exactly one Manager and is not safe for concurrent use; the
// manager serializes all reconnect attempts on one goroutine.
type ReconnectState struct {
	floor   time.Duration
	ceiling time.Duration
	current time.Duration
}

// NewReconnectState creates a backoff state starting at floor. A ceiling of
// zero leaves the delay uncapped.
func NewReconnectState(floor, ceiling time.Duration) *ReconnectState {
	return &ReconnectState{
		floor:   floor,
		ceiling: ceiling,
		current: floor,
	}
}

// Next returns the delay to wait before the upcoming attempt and doubles the
// delay for the one after it.
func (s *ReconnectState) Next() time.Duration {
	delay := s.current
	if s.ceiling > 0 && delay > s.ceiling {
		delay = s.ceiling
	}

	s.current *= 2
	if s.ceiling > 0 && s.current > s.ceiling {
		s.current = s.ceiling
	}

	return delay
}

// Reset returns the delay to its floor. Called on every successful session.
func (s *ReconnectState) Reset() {
	s.current = s.floor
}

// Current returns the delay the next call to Next would wait.
func (s *ReconnectState) Current() time.Duration {
	return s.current
}
