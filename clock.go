package hkgsafety

import "time"

// Clock returns a monotonic timestamp in microseconds. The value may wrap;
// elapsed times are computed with unsigned subtraction and stay correct
// across one wrap.
type Clock func() uint32

// MonotonicClock returns a Clock counting microseconds since its creation.
func MonotonicClock() Clock {
	start := time.Now()
	return func() uint32 {
		return uint32(time.Since(start).Microseconds())
	}
}

// stamp is a timestamp that may be unset.
type stamp struct {
	at  uint32
	set bool
}

func stampAt(now uint32) stamp {
	return stamp{at: now, set: true}
}

// within reports whether the stamp is set and less than window µs old.
func (s stamp) within(now, window uint32) bool {
	return s.set && now-s.at < window
}
