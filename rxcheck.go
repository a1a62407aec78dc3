package hkgsafety

import (
	"github.com/notnil/hkgsafety/canbus"
)

// Integrity extracts and computes the checksum and counter of a frame.
// hkg.Integrity implements it for this vehicle family.
type Integrity interface {
	Checksum(canbus.Frame) uint8
	ComputeChecksum(canbus.Frame) uint8
	Counter(canbus.Frame) uint8
}

const (
	// maxMissedFrames is how many expected periods a message may go missing
	// before it counts as lagging.
	maxMissedFrames = 10
	// minLagLimit keeps slow messages from tripping the timestep check on
	// scheduling jitter.
	minLagLimit uint32 = 1_000_000
)

// CheckMsg describes the integrity properties of one inbound message.
type CheckMsg struct {
	ID               uint32
	Bus              int
	Len              uint8
	CheckChecksum    bool
	MaxCounter       uint8  // highest counter value; 0 means no counter
	ExpectedTimestep uint32 // nominal period in µs
	// Tolerance is how long past ExpectedTimestep the message may be late,
	// in µs. Zero allows max(10 periods, 1 s) in total.
	Tolerance uint32
}

func (m CheckMsg) lagLimit() uint32 {
	if m.Tolerance != 0 {
		return m.ExpectedTimestep + m.Tolerance
	}
	return max(m.ExpectedTimestep*maxMissedFrames, minLagLimit)
}

func (m CheckMsg) matches(f canbus.Frame) bool {
	return m.ID == f.ID && m.Bus == f.Bus
}

// CheckSet groups alternative encodings of the same logical message. The
// first member seen binds the set; the others are ignored afterwards.
type CheckSet struct {
	Msgs []CheckMsg

	bound bool
	index int

	seen   bool
	lastTS uint32

	checksumOK   bool
	synced       bool
	lastCounter  uint8
	counterFault bool
	lagging      bool
}

// lookup returns the member f belongs to.
func (c *CheckSet) lookup(f canbus.Frame) (int, bool) {
	if c.bound {
		return c.index, c.Msgs[c.index].matches(f)
	}
	for i, m := range c.Msgs {
		if m.matches(f) {
			return i, true
		}
	}
	return 0, false
}

func (c *CheckSet) observe(f canbus.Frame, now uint32, in Integrity) {
	m := c.Msgs[c.index]
	c.lagging = c.seen && now-c.lastTS > m.lagLimit()
	c.seen = true
	c.lastTS = now

	c.checksumOK = !m.CheckChecksum || in.Checksum(f) == in.ComputeChecksum(f)

	if m.MaxCounter == 0 {
		return
	}
	cnt := in.Counter(f)
	step := (int(cnt) - int(c.lastCounter) + int(m.MaxCounter) + 1) % (int(m.MaxCounter) + 1)
	switch {
	case !c.synced:
		c.synced = true
	case step == 1:
		c.counterFault = false
	case step == 2 && !c.counterFault:
		// one dropped frame is tolerated while in sync
	default:
		c.counterFault = true
	}
	c.lastCounter = cnt
}

func (c *CheckSet) valid() bool {
	return c.seen && c.checksumOK && !c.counterFault && !c.lagging
}

// CheckStatus is a read-only view of one check set.
type CheckStatus struct {
	ID         uint32 // bound member, or the first member before binding
	Bus        int
	Seen       bool
	ChecksumOK bool
	CounterOK  bool
	Lagging    bool
}

// Valid reports whether the message has been seen and passes every check.
func (s CheckStatus) Valid() bool {
	return s.Seen && s.ChecksumOK && s.CounterOK && !s.Lagging
}

// RxChecks is the per-session integrity validator for inbound frames.
type RxChecks struct {
	sets   []CheckSet
	initTS uint32
	valid  bool
}

func newRxChecks(sets []CheckSet, now uint32) *RxChecks {
	return &RxChecks{sets: sets, initTS: now}
}

// Len returns the number of check sets.
func (r *RxChecks) Len() int {
	if r == nil {
		return 0
	}
	return len(r.sets)
}

// Check validates f against every set covering its identifier and bus and
// records the observation. Frames covered by no set pass.
func (r *RxChecks) Check(f canbus.Frame, now uint32, in Integrity) bool {
	ok := true
	for i := range r.sets {
		cs := &r.sets[i]
		idx, match := cs.lookup(f)
		if !match {
			continue
		}
		if f.Len != cs.Msgs[idx].Len {
			ok = false
			continue
		}
		if !cs.bound {
			cs.bound, cs.index = true, idx
		}
		cs.observe(f, now, in)
		if !cs.valid() {
			ok = false
		}
	}
	return ok
}

// sweep refreshes the lag state of every set at time now. It reports whether
// any set is lagging and whether all sets are currently valid.
func (r *RxChecks) sweep(now uint32) (lagging, valid bool) {
	valid = true
	for i := range r.sets {
		cs := &r.sets[i]
		m := cs.Msgs[cs.index]
		switch {
		case cs.seen:
			cs.lagging = now-cs.lastTS > m.lagLimit()
		default:
			cs.lagging = now-r.initTS > m.lagLimit()
		}
		lagging = lagging || cs.lagging
		valid = valid && cs.valid()
	}
	r.valid = valid
	return lagging, valid
}

// Status returns a view of every set in table order.
func (r *RxChecks) Status() []CheckStatus {
	if r == nil {
		return nil
	}
	out := make([]CheckStatus, len(r.sets))
	for i, cs := range r.sets {
		m := cs.Msgs[cs.index]
		out[i] = CheckStatus{
			ID:         m.ID,
			Bus:        m.Bus,
			Seen:       cs.seen,
			ChecksumOK: cs.checksumOK,
			CounterOK:  !cs.counterFault,
			Lagging:    cs.lagging,
		}
	}
	return out
}
