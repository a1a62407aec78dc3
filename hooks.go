package hkgsafety

import (
	"fmt"

	"github.com/notnil/hkgsafety/canbus"
)

// Init selects the default, longitudinal or camera-SCC variant from p and
// resets the session. Camera SCC wins over longitudinal control.
func (s *Session) Init(p Param) *RxChecks {
	v := VariantDefault
	switch {
	case p.Has(ParamCameraSCC):
		v = VariantCameraSCC
	case p.Has(ParamLongitudinal):
		v = VariantLongitudinal
	}
	return s.configure(v, p)
}

// InitLegacy selects the legacy variant. Longitudinal control and camera SCC
// are forced off.
func (s *Session) InitLegacy(p Param) *RxChecks {
	return s.configure(VariantLegacy, p&^(ParamLongitudinal|ParamCameraSCC))
}

// InitAdaptive selects the adaptive variant, which learns the bus topology at
// runtime.
func (s *Session) InitAdaptive(p Param) *RxChecks {
	return s.configure(VariantAdaptive, p&^ParamCameraSCC)
}

// Setup runs the init hook named by h.
func (s *Session) Setup(h HookSet, p Param) (*RxChecks, error) {
	switch h {
	case HooksStandard:
		return s.Init(p), nil
	case HooksLegacy:
		return s.InitLegacy(p), nil
	case HooksAdaptive:
		return s.InitAdaptive(p), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownHookSet, uint8(h))
}

func (s *Session) configure(v Variant, p Param) *RxChecks {
	now := s.clock()
	s.variant = v
	s.param = p
	s.gas = gasSignalFor(p)
	s.steer = DefaultSteeringLimits
	if p.Has(ParamAltLimits) {
		s.steer = AltSteeringLimits
	}
	s.long = DefaultLongitudinalLimits
	s.txMsgs = txMsgsFor(v)
	s.rx = newRxChecks(rxChecksFor(v), now)
	s.initTS = now
	s.st = safetyState{tsTorqueCheckLast: now}
	s.topo.reset()

	s.logger.Info("safety hooks initialized",
		"variant", v,
		"param", p,
		"checks", s.rx.Len(),
		"max_steer", s.steer.MaxSteer,
	)
	return s.rx
}

// Receive validates an inbound frame, updates the vehicle state from it and
// reports whether it passed the integrity checks. Any failure disables
// controls.
func (s *Session) Receive(f canbus.Frame) bool {
	if s.variant == VariantUninitialized {
		return false
	}
	now := s.clock()
	if s.variant == VariantAdaptive {
		return s.receiveAdaptive(f, now)
	}
	return s.receiveStandard(f, now)
}

// Transmit reports whether the compute module may place f on its bus.
func (s *Session) Transmit(f canbus.Frame) bool {
	if s.variant == VariantUninitialized || s.st.relayMalfunction {
		return false
	}
	now := s.clock()
	ok := msgAllowed(f, s.txMsgs) && !s.commandViolation(f, now)
	s.recordTx(f, ok, now)
	return ok
}

// Forward returns the buses a frame received on bus with identifier id is
// relayed to.
func (s *Session) Forward(bus int, id uint32) Targets {
	if s.variant == VariantUninitialized || s.st.relayMalfunction {
		return NoForward
	}
	if s.variant == VariantAdaptive {
		return s.forwardAdaptive(bus, id)
	}
	return s.forwardStandard(bus, id, s.clock())
}

// Tick re-evaluates message timeliness without a new frame. A message that
// stopped arriving disables controls. It reports whether every check set is
// currently valid.
func (s *Session) Tick() bool {
	if s.rx == nil {
		return false
	}
	lagging, valid := s.rx.sweep(s.clock())
	if lagging {
		s.setControls(false, "rx message lagging")
	}
	return valid
}

// RxChecksValid reports the result of the last Tick.
func (s *Session) RxChecksValid() bool {
	return s.rx != nil && s.rx.valid
}

// RxStatus returns the state of every integrity check set.
func (s *Session) RxStatus() []CheckStatus {
	return s.rx.Status()
}
