package hkgsafety

import (
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

// commandViolation applies the per-message signal checks to an allow-listed
// frame.
func (s *Session) commandViolation(f canbus.Frame, now uint32) bool {
	switch f.ID {
	case hkg.IDFCA11:
		var m hkg.FCA11
		return m.UnmarshalCANFrame(f) != nil || m.Active()
	case hkg.IDSCC12:
		var m hkg.SCC12
		if err := m.UnmarshalCANFrame(f); err != nil {
			return true
		}
		// Both copies of the request are checked; either may be acted on.
		return s.accelViolation(m.AccelRaw) || s.accelViolation(m.Accel)
	case hkg.IDLKAS11:
		var m hkg.LKAS11
		if err := m.UnmarshalCANFrame(f); err != nil {
			return true
		}
		return s.steerViolation(m.Torque, m.SteerReq, now)
	case hkg.IDRadarUDS:
		return !hkg.IsTesterPresent(f)
	case hkg.IDCLU11:
		return s.buttonViolation(f)
	}
	return false
}

// steerViolation checks a steering torque request and advances the rate
// limit state. Every check is evaluated so the state stays consistent.
// Torque without the steer request bit is always a violation.
func (s *Session) steerViolation(desired int, steerReq bool, now uint32) bool {
	l := s.steer
	st := &s.st
	violation := false

	if st.controlsAllowed {
		violation = maxLimitCheck(desired, l.MaxSteer, -l.MaxSteer) || violation
		violation = driverLimitCheck(desired, st.desiredTorqueLast, &st.torqueDriver, l) || violation
		st.desiredTorqueLast = desired

		violation = rtRateLimitCheck(desired, st.rtTorqueLast, l.MaxRTDelta) || violation
		if now-st.tsTorqueCheckLast > l.MaxRTInterval {
			st.rtTorqueLast = desired
			st.tsTorqueCheckLast = now
		}
	} else if desired != 0 {
		violation = true
	}
	if desired != 0 && !steerReq {
		violation = true
	}

	if violation || !st.controlsAllowed {
		st.desiredTorqueLast = 0
		st.rtTorqueLast = 0
		st.tsTorqueCheckLast = now
	}
	return violation
}

// accelViolation reports whether an acceleration request is out of bounds or
// sent while longitudinal control is not allowed. The inactive value always
// passes.
func (s *Session) accelViolation(accel int) bool {
	allowed := s.st.controlsAllowed && !s.st.gasPressedPrev
	inRange := !maxLimitCheck(accel, s.long.MaxAccel, s.long.MinAccel)
	return !(allowed && inRange) && accel != s.long.InactiveAccel
}

// buttonViolation restricts button frames to cancel presses while controls
// are off, on every bus CLU11 may be sent to. The adaptive hooks only gate the
// copy meant for a steering unit moved to bus 1.
func (s *Session) buttonViolation(f canbus.Frame) bool {
	if s.st.controlsAllowed {
		return false
	}
	var m hkg.CLU11
	if err := m.UnmarshalCANFrame(f); err != nil {
		return true
	}
	if m.Button == hkg.ButtonCancel {
		return false
	}
	switch s.variant {
	case VariantAdaptive:
		return f.Bus != s.topo.MDPSBus && s.topo.MDPSBus == 1
	case VariantLongitudinal:
		return false
	default:
		return true
	}
}

// recordTx remembers what the compute module sent for the forwarding
// debounce. A blocked frame clears the record.
func (s *Session) recordTx(f canbus.Frame, allowed bool, now uint32) {
	if s.variant == VariantAdaptive {
		if allowed {
			s.topo.rearm(f)
		}
		return
	}
	var c echoClass
	switch f.ID {
	case hkg.IDLKAS11:
		c = echoLKAS
	case hkg.IDSCC12:
		c = echoSCC
	case hkg.IDMDPS12:
		c = echoMDPS
	case hkg.IDFCA11:
		c = echoFCA
	default:
		return
	}
	if allowed {
		s.st.lastOpTx[c] = stampAt(now)
	} else {
		s.st.lastOpTx[c] = stamp{}
	}
}
