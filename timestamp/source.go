// Package timestamp issues strictly increasing write timestamps.
//
// A timestamp packs a millisecond tick and a counter into a uint64:
//
//	| tick (44 bits) | counter (20 bits) |
//
// Within one millisecond up to 2^20 timestamps can be issued before the
// counter carries into the tick. Values are monotonic within a process only;
// two processes writing to the same store may interleave.
package timestamp

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	counterBits = 20
	counterMask = 1<<counterBits - 1
)

// Source hands out timestamps. The zero value is not usable; use New.
type Source struct {
	clock clock.Clock
	last  uint64
}

// Option configures a Source.
type Option func(*Source)

// WithClock sets the clock ticks are read from.
func WithClock(c clock.Clock) Option {
	return func(s *Source) {
		s.clock = c
	}
}

// New returns a Source reading the wall clock.
func New(opts ...Option) *Source {
	s := &Source{clock: clock.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns a timestamp strictly greater than every timestamp previously
// returned by s. It is safe for concurrent use.
func (s *Source) Next() uint64 {
	now := uint64(s.clock.Now().UnixNano()/int64(time.Millisecond)) << counterBits
	for {
		last := atomic.LoadUint64(&s.last)
		next := last + 1
		if now > next {
			next = now
		}
		if atomic.CompareAndSwapUint64(&s.last, last, next) {
			return next
		}
	}
}

// Split returns the wall time and counter packed into ts.
func Split(ts uint64) (time.Time, uint64) {
	ms := int64(ts >> counterBits)
	return time.Unix(0, ms*int64(time.Millisecond)).UTC(), ts & counterMask
}
