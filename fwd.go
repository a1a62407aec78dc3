package hkgsafety

import (
	"strconv"
	"strings"

	"github.com/notnil/hkgsafety/hkg"
)

// Targets is the set of buses a frame is relayed to.
type Targets uint8

// NoForward drops the frame.
const NoForward Targets = 0

// To returns the target set holding the given buses.
func To(buses ...int) Targets {
	var t Targets
	for _, b := range buses {
		if b >= 0 && b < 8 {
			t |= 1 << b
		}
	}
	return t
}

// Has reports whether bus is a target.
func (t Targets) Has(bus int) bool {
	return bus >= 0 && bus < 8 && t&(1<<bus) != 0
}

// Buses returns the targets in ascending order.
func (t Targets) Buses() []int {
	var out []int
	for b := range 8 {
		if t.Has(b) {
			out = append(out, b)
		}
	}
	return out
}

func (t Targets) String() string {
	if t == NoForward {
		return "none"
	}
	var parts []string
	for _, b := range t.Buses() {
		parts = append(parts, strconv.Itoa(b))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func isSteerGroup(id uint32) bool { return id == hkg.IDLKAS11 || id == hkg.IDLFAHDAMFC }

func isFCAGroup(id uint32) bool { return id == hkg.IDFCA11 || id == hkg.IDFCA12 }

// forwardStandard relays between the vehicle side (bus 0) and the camera side
// (bus 2), holding back stock frames the compute module has recently
// replaced.
func (s *Session) forwardStandard(bus int, id uint32, now uint32) Targets {
	echo := &s.st.lastOpTx
	switch bus {
	case 0:
		if id == hkg.IDMDPS12 && echo[echoMDPS].within(now, steerEchoWindow) {
			return NoForward
		}
		return To(2)
	case 2:
		switch {
		case isSteerGroup(id):
			if echo[echoLKAS].within(now, steerEchoWindow) {
				return NoForward
			}
		case hkg.IsSCC(id):
			if echo[echoSCC].within(now, sccEchoWindow) {
				return NoForward
			}
		case isFCAGroup(id):
			if echo[echoFCA].within(now, sccEchoWindow) {
				return NoForward
			}
		}
		return To(0)
	}
	return NoForward
}

// forwardAdaptive relays according to the learned topology. A stock frame
// the compute module is currently replacing is consumed against its live
// counter instead of being relayed everywhere.
func (s *Session) forwardAdaptive(bus int, id uint32) Targets {
	t := &s.topo
	bus1 := NoForward
	if t.ForwardBus1 {
		bus1 = To(1)
	}

	if !t.ForwardBus2 {
		switch {
		case bus == 0:
			return bus1
		case bus == 1 && t.ForwardBus1:
			return To(0)
		}
		return NoForward
	}

	switch {
	case bus == 0:
		switch {
		case id == hkg.IDCLU11 && t.MDPSBus != 0 && suppress(&t.opCLULive):
			return To(2)
		case id == hkg.IDMDPS12 && suppress(&t.opMDPSLive):
			return bus1
		case id == hkg.IDEMS11 && suppress(&t.opEMSLive):
			return To(2)
		}
		return To(2) | bus1
	case bus == 1 && t.ForwardBus1:
		switch {
		case id == hkg.IDMDPS12 && suppress(&t.opMDPSLive):
			return To(0)
		case hkg.IsSCC(id) && suppress(&t.opSCCLive):
			return To(2)
		}
		return To(0, 2)
	case bus == 2:
		switch {
		case isSteerGroup(id) && suppress(&t.opLKASLive):
			if t.MDPSBus == 0 {
				return bus1
			}
			return NoForward
		case hkg.IsSCC(id) && suppress(&t.opSCCLive):
			return bus1
		}
		return To(0) | bus1
	}
	return NoForward
}
