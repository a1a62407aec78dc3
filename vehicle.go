package hkgsafety

import (
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

func (s *Session) receiveStandard(f canbus.Frame, now uint32) bool {
	if !s.rx.Check(f, now, s.integrity) {
		s.setControls(false, "rx integrity")
		return false
	}

	// The cruise controller sits on bus 0 or, behind the camera, on bus 2.
	if f.ID == hkg.IDSCC11 {
		s.cruiseAvailableUpdate(f.Bit(0))
	}

	if f.Bus == 0 {
		switch f.ID {
		case hkg.IDMDPS12:
			s.st.torqueDriver.Update(hkg.MDPS12{StrColTq: uint16(f.Bits(0, 11))}.DriverTorque())
		case hkg.IDCLU11:
			s.cruiseButtonUpdate(uint8(f.Bits(0, 3)), f.Bit(3))
		case hkg.IDWHLSPD11:
			s.updateMoving(f)
		case hkg.IDTCS13:
			s.st.brakePressed = f.Bit(55)
		}
		s.updateGas(f)
	}

	// Gas and brake never disengage in this family: both are decoded and
	// then cleared, so the generic checks below always see them released.
	s.st.gasPressed = false
	s.st.brakePressed = false

	stockECU := f.Bus == 0 && (f.ID == hkg.IDLKAS11 ||
		(s.variant == VariantLongitudinal && f.ID == hkg.IDSCC12))
	s.genericRxChecks(stockECU, now)
	return true
}

func (s *Session) updateMoving(f canbus.Frame) {
	fl := int(f.Bits(0, 14))
	rr := int(f.Bits(48, 14))
	s.st.vehicleMoving = fl > StandstillThreshold || rr > StandstillThreshold
}

func (s *Session) updateGas(f canbus.Frame) {
	switch {
	case s.gas == GasEV && f.ID == hkg.IDEEMS11:
		s.st.gasPressed = f.Bits(31, 8) != 0
	case s.gas == GasHybrid && f.ID == hkg.IDEEMS11:
		s.st.gasPressed = f.Byte(7) != 0
	case s.gas == GasCombustion && f.ID == hkg.IDEMS16:
		s.st.gasPressed = f.Bits(62, 2) != 0
	}
}

// genericRxChecks applies the checks shared by every variant after a frame
// has updated the state.
func (s *Session) genericRxChecks(stockECU bool, now uint32) {
	if s.st.gasPressed && !s.st.gasPressedPrev {
		s.setControls(false, "gas pressed")
	}
	s.st.gasPressedPrev = s.st.gasPressed

	if s.st.brakePressed && (!s.st.brakePressedPrev || s.st.vehicleMoving) {
		s.setControls(false, "brake pressed")
	}
	s.st.brakePressedPrev = s.st.brakePressed

	if stockECU && now-s.initTS > relayTransitionTimeout {
		s.setRelayMalfunction()
	}
}

// cruiseAvailableUpdate tracks the cruise main mode reported by SCC11.
func (s *Session) cruiseAvailableUpdate(available bool) {
	if !available {
		s.st.cruiseEngaged = false
		s.setControls(false, "cruise unavailable")
	}
	s.st.cruiseAvailable = available
}

// cruiseButtonUpdate engages on resume or set and disengages on cancel. The
// main button toggles mainOn on its rising edge.
func (s *Session) cruiseButtonUpdate(button uint8, main bool) {
	if main && !s.st.mainButtonPrev {
		s.st.mainOn = !s.st.mainOn
	}
	s.st.mainButtonPrev = main

	switch button {
	case hkg.ButtonResume, hkg.ButtonSet:
		if !s.st.controlsAllowed && (s.st.cruiseAvailable || s.variant == VariantLongitudinal) {
			s.st.cruiseEngaged = true
			s.setControls(true, "cruise button")
		}
	case hkg.ButtonCancel:
		s.st.cruiseEngaged = false
		s.setControls(false, "cancel button")
	}
}
