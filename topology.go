package hkgsafety

import (
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

const (
	busUnknown = -1

	// lcanHoldFrames is how many camera LKAS11 frames bus 1 keeps its L-CAN
	// classification after the last gateway frame.
	lcanHoldFrames = 500
	// lkasBus0HoldFrames is how many camera LKAS11 frames bus 2 stays
	// unforwarded after LKAS11 was seen on bus 0.
	lkasBus0HoldFrames = 20
	// opLiveFrames is how many relayed frames the compute module's own
	// transmission of a message suppresses the stock one.
	opLiveFrames = 20
)

// Routing is the learned bus layout.
type Routing struct {
	MDPSBus     int // bus the steering-assist unit talks on, -1 until seen
	SCCBus      int // bus the cruise controller talks on, -1 until seen
	LCANOnBus1  bool
	ForwardBus1 bool
	ForwardBus2 bool
}

// Topology learns where the steering-assist unit, the cruise controller and
// an L-CAN gateway sit, and which auxiliary buses need relaying. It only
// changes on observed traffic and on init.
type Topology struct {
	Routing

	lkasBus0Cnt int
	lcanBus1Cnt int

	// Saturating counters re-armed when the compute module transmits the
	// message, decremented when the stock message is suppressed.
	opLKASLive int
	opMDPSLive int
	opCLULive  int
	opSCCLive  int
	opEMSLive  int
}

func (t *Topology) reset() {
	*t = Topology{Routing: Routing{MDPSBus: busUnknown, SCCBus: busUnknown, ForwardBus2: true}}
}

func (t *Topology) routing() Routing {
	return t.Routing
}

// observe updates the layout from a frame, valid or not.
func (t *Topology) observe(f canbus.Frame) {
	if f.Bus == 1 && hkg.IsLCANGateway(f.ID) {
		t.lcanBus1Cnt = lcanHoldFrames
		if t.ForwardBus1 || !t.LCANOnBus1 {
			t.LCANOnBus1 = true
			t.ForwardBus1 = false
		}
	}

	if f.ID == hkg.IDLKAS11 {
		if f.Bus == 0 && t.ForwardBus2 {
			t.ForwardBus2 = false
			t.lkasBus0Cnt = lkasBus0HoldFrames
		}
		if f.Bus == 2 {
			if t.lkasBus0Cnt > 0 {
				t.lkasBus0Cnt--
			} else if !t.ForwardBus2 {
				t.ForwardBus2 = true
			}
			if t.lcanBus1Cnt > 0 {
				t.lcanBus1Cnt--
			} else if t.LCANOnBus1 {
				t.LCANOnBus1 = false
			}
		}
	}

	// Bus 1 carrying L-CAN never hosts the steering unit or cruise controller.
	onLCAN := f.Bus == 1 && t.LCANOnBus1

	if (f.ID == hkg.IDMDPS12 || f.ID == hkg.IDMDPS11) && t.MDPSBus != f.Bus && !onLCAN {
		t.MDPSBus = f.Bus
		if f.Bus == 1 && !t.ForwardBus1 && !t.LCANOnBus1 {
			t.ForwardBus1 = true
		}
	}

	if (f.ID == hkg.IDSCC11 || f.ID == hkg.IDSCC12) && t.SCCBus != f.Bus && !onLCAN {
		t.SCCBus = f.Bus
		if f.Bus == 1 && !t.ForwardBus1 {
			t.ForwardBus1 = true
		}
	}
}

// rearm marks a message as recently sent by the compute module.
func (t *Topology) rearm(f canbus.Frame) {
	switch f.ID {
	case hkg.IDLKAS11:
		t.opLKASLive = opLiveFrames
	case hkg.IDMDPS12:
		t.opMDPSLive = opLiveFrames
	case hkg.IDCLU11:
		if f.Bus == 1 {
			t.opCLULive = opLiveFrames
		}
	case hkg.IDSCC12:
		t.opSCCLive = opLiveFrames
	case hkg.IDEMS11:
		t.opEMSLive = opLiveFrames
	}
}

// suppress reports whether the counter is live and counts one suppressed
// stock frame against it.
func suppress(cnt *int) bool {
	if *cnt <= 0 {
		return false
	}
	*cnt--
	return true
}

func (s *Session) receiveAdaptive(f canbus.Frame, now uint32) bool {
	valid := s.rx.Check(f, now, s.integrity)
	if !valid {
		s.setControls(false, "rx integrity")
	}

	// Stock LKAS11 on bus 0 after the relay switched means the harness is
	// not where the learned layout says it is: forget everything and relearn.
	if f.Bus == 0 && f.ID == hkg.IDLKAS11 && s.topo.ForwardBus2 && now-s.initTS > relayTransitionTimeout {
		s.st = safetyState{tsTorqueCheckLast: now}
		s.topo.reset()
		s.logger.Warn("unexpected relay layout, relearning topology")
	}

	// Frames from an L-CAN bus are diagnostics, never vehicle state.
	if f.Bus == 1 && s.topo.LCANOnBus1 {
		valid = false
	}

	before := s.topo.routing()
	s.topo.observe(f)
	if after := s.topo.routing(); after != before {
		s.logger.Info("bus topology changed",
			"mdps_bus", after.MDPSBus,
			"scc_bus", after.SCCBus,
			"lcan_on_bus1", after.LCANOnBus1,
			"forward_bus1", after.ForwardBus1,
			"forward_bus2", after.ForwardBus2,
		)
	}

	if !valid {
		return false
	}

	switch {
	case f.ID == hkg.IDMDPS12 && f.Bus == s.topo.MDPSBus:
		s.st.torqueDriver.Update(hkg.MDPS12{StrColTq: uint16(f.Bits(0, 11))}.DriverTorque())
	case f.ID == hkg.IDSCC11 && s.topo.opSCCLive == 0:
		s.mainModeUpdate(f.Bit(0))
	case f.ID == hkg.IDCLU11 && f.Bus == 0 && s.topo.SCCBus == busUnknown && s.topo.opSCCLive == 0:
		s.noSCCButtonUpdate(uint8(f.Bits(0, 3)))
	case f.ID == hkg.IDWHLSPD11 && f.Bus == 0:
		s.updateMoving(f)
	}

	s.st.gasPressed = false
	s.st.brakePressed = false
	s.genericRxChecks(false, now)
	return true
}

// mainModeUpdate engages on the rising edge of the cruise main mode and
// disengages whenever it is off.
func (s *Session) mainModeUpdate(available bool) {
	if available && !s.st.cruiseAvailable {
		s.st.cruiseEngaged = true
		s.setControls(true, "cruise main mode")
	}
	if !available {
		s.st.cruiseEngaged = false
		s.setControls(false, "cruise main mode off")
	}
	s.st.cruiseAvailable = available
}

// noSCCButtonUpdate engages from the steering wheel buttons on vehicles
// without a cruise controller.
func (s *Session) noSCCButtonUpdate(button uint8) {
	switch button {
	case hkg.ButtonResume, hkg.ButtonSet:
		if !s.st.controlsAllowed {
			s.st.cruiseAvailable = true
			s.st.cruiseEngaged = true
			s.setControls(true, "cruise button")
		}
	case hkg.ButtonCancel:
		s.st.cruiseEngaged = false
		s.setControls(false, "cancel button")
	}
}
