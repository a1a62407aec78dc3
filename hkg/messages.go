package hkg

import (
	"bytes"

	"github.com/notnil/hkgsafety/canbus"
)

// Signal offsets shared with the safety hooks.
const (
	SteerTorqueOffset = 1024 // LKAS11 CR_Lkas_StrToqReq
	AccelOffset       = 1023 // SCC12 aReqRaw / aReqValue
)

// LKAS11 is the lane keeping steering command.
type LKAS11 struct {
	Torque   int  // requested torque, -1024..1023
	SteerReq bool // CF_Lkas_ActToi
}

func (m LKAS11) MarshalCANFrame() (canbus.Frame, error) {
	if err := inRange("LKAS11 torque", m.Torque, -SteerTorqueOffset, 2047-SteerTorqueOffset); err != nil {
		return canbus.Frame{}, err
	}
	f := newFrame(IDLKAS11, 8)
	f.SetBits(16, 11, uint64(m.Torque+SteerTorqueOffset))
	f.SetBit(27, m.SteerReq)
	return f, nil
}

func (m *LKAS11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDLKAS11, 8); err != nil {
		return err
	}
	m.Torque = int(f.Bits(16, 11)) - SteerTorqueOffset
	m.SteerReq = f.Bit(27)
	return nil
}

// MDPS12 carries the driver column torque measured by the steering-assist unit.
type MDPS12 struct {
	StrColTq uint16 // raw, 11 bits
}

// DriverTorque returns the column torque scaled to the units of the older
// MDPS torque signal the steering limits are expressed in.
func (m MDPS12) DriverTorque() int {
	return int(float64(m.StrColTq)*0.79 - 808)
}

func (m MDPS12) MarshalCANFrame() (canbus.Frame, error) {
	if err := inRange("MDPS12 column torque", int(m.StrColTq), 0, 0x7FF); err != nil {
		return canbus.Frame{}, err
	}
	f := newFrame(IDMDPS12, 8)
	f.SetBits(0, 11, uint64(m.StrColTq))
	return f, nil
}

func (m *MDPS12) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDMDPS12, 8); err != nil {
		return err
	}
	m.StrColTq = uint16(f.Bits(0, 11))
	return nil
}

// SCC11 carries the cruise controller main mode.
type SCC11 struct {
	MainModeACC bool
}

func (m SCC11) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDSCC11, 8)
	f.SetBit(0, m.MainModeACC)
	return f, nil
}

func (m *SCC11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDSCC11, 8); err != nil {
		return err
	}
	m.MainModeACC = f.Bit(0)
	return nil
}

// SCC12 is the acceleration request. The request is encoded twice and both
// copies are checked independently.
type SCC12 struct {
	AccelRaw int // aReqRaw, 0.01 m/s²
	Accel    int // aReqValue, 0.01 m/s²
	Counter  uint8
}

func (m SCC12) MarshalCANFrame() (canbus.Frame, error) {
	for _, v := range []int{m.AccelRaw, m.Accel} {
		if err := inRange("SCC12 accel", v, -AccelOffset, 2047-AccelOffset); err != nil {
			return canbus.Frame{}, err
		}
	}
	f := newFrame(IDSCC12, 8)
	f.SetBits(24, 11, uint64(m.AccelRaw+AccelOffset))
	f.SetBits(37, 11, uint64(m.Accel+AccelOffset))
	f.SetBits(56, 4, uint64(m.Counter&0xF))
	return withChecksum(f), nil
}

func (m *SCC12) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDSCC12, 8); err != nil {
		return err
	}
	m.AccelRaw = int(f.Bits(24, 11)) - AccelOffset
	m.Accel = int(f.Bits(37, 11)) - AccelOffset
	m.Counter = Counter(f)
	return nil
}

// CLU11 carries the steering wheel cruise buttons.
type CLU11 struct {
	Button  uint8 // ButtonNone, ButtonResume, ButtonSet or ButtonCancel
	Main    bool
	Counter uint8
}

func (m CLU11) MarshalCANFrame() (canbus.Frame, error) {
	if err := inRange("CLU11 button", int(m.Button), 0, 7); err != nil {
		return canbus.Frame{}, err
	}
	f := newFrame(IDCLU11, 4)
	f.SetBits(0, 3, uint64(m.Button))
	f.SetBit(3, m.Main)
	f.SetBits(28, 4, uint64(m.Counter&0xF))
	return f, nil
}

func (m *CLU11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDCLU11, 4); err != nil {
		return err
	}
	m.Button = uint8(f.Bits(0, 3))
	m.Main = f.Bit(3)
	m.Counter = Counter(f)
	return nil
}

// WHLSPD11 carries the four wheel speeds.
type WHLSPD11 struct {
	FL, FR, RL, RR uint16 // raw, 14 bits
	Counter        uint8
}

func (m WHLSPD11) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDWHLSPD11, 8)
	for i, v := range []uint16{m.FL, m.FR, m.RL, m.RR} {
		if err := inRange("WHL_SPD11 speed", int(v), 0, 0x3FFF); err != nil {
			return canbus.Frame{}, err
		}
		f.SetBits(uint8(16*i), 14, uint64(v))
	}
	c := uint64(m.Counter & 0xF)
	f.SetBits(14, 2, c&0x3)
	f.SetBits(30, 2, c>>2)
	return withChecksum(f), nil
}

func (m *WHLSPD11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDWHLSPD11, 8); err != nil {
		return err
	}
	m.FL = uint16(f.Bits(0, 14))
	m.FR = uint16(f.Bits(16, 14))
	m.RL = uint16(f.Bits(32, 14))
	m.RR = uint16(f.Bits(48, 14))
	m.Counter = Counter(f)
	return nil
}

// TCS13 carries the driver braking flag.
type TCS13 struct {
	DriverBraking bool
	Counter       uint8
}

func (m TCS13) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDTCS13, 8)
	f.SetBit(55, m.DriverBraking)
	f.SetBits(13, 3, uint64(m.Counter&0x7))
	return withChecksum(f), nil
}

func (m *TCS13) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDTCS13, 8); err != nil {
		return err
	}
	m.DriverBraking = f.Bit(55)
	m.Counter = Counter(f)
	return nil
}

// EMS16 carries the accelerator state of combustion vehicles.
type EMS16 struct {
	Gas     uint8 // 2 bits, nonzero while the pedal is pressed
	Counter uint8
}

func (m EMS16) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDEMS16, 8)
	f.SetBits(62, 2, uint64(m.Gas&0x3))
	f.SetBits(60, 2, uint64(m.Counter&0x3))
	return withChecksum(f), nil
}

func (m *EMS16) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDEMS16, 8); err != nil {
		return err
	}
	m.Gas = uint8(f.Bits(62, 2))
	m.Counter = Counter(f)
	return nil
}

// EEMS11 carries the accelerator pedal of electrified vehicles. Which field
// is meaningful depends on the powertrain.
type EEMS11 struct {
	AccelPedalEV     uint8 // Accel_Pedal_Pos, bits 31..38
	AccelPedalHybrid uint8 // CR_Vcu_AccPedDep_Pos, byte 7
}

func (m EEMS11) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDEEMS11, 8)
	f.SetBits(31, 8, uint64(m.AccelPedalEV))
	f.SetBits(56, 8, uint64(m.AccelPedalHybrid))
	return f, nil
}

func (m *EEMS11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDEEMS11, 8); err != nil {
		return err
	}
	m.AccelPedalEV = uint8(f.Bits(31, 8))
	m.AccelPedalHybrid = uint8(f.Bits(56, 8))
	return nil
}

// FCA11 is the forward collision avoidance message. The gatekeeper only ever
// lets through values that request no deceleration.
type FCA11 struct {
	DecCmd    uint8 // CR_VSM_DecCmd
	CmdAct    bool  // FCA_CmdAct
	DecCmdAct bool  // CF_VSM_DecCmdAct
}

func (m FCA11) MarshalCANFrame() (canbus.Frame, error) {
	f := newFrame(IDFCA11, 8)
	f.SetBits(8, 8, uint64(m.DecCmd))
	f.SetBit(20, m.CmdAct)
	f.SetBit(31, m.DecCmdAct)
	return f, nil
}

func (m *FCA11) UnmarshalCANFrame(f canbus.Frame) error {
	if err := expect(f, IDFCA11, 8); err != nil {
		return err
	}
	m.DecCmd = f.Byte(1)
	m.CmdAct = f.Bit(20)
	m.DecCmdAct = f.Bit(31)
	return nil
}

// Active reports whether the message requests any deceleration.
func (m FCA11) Active() bool {
	return m.DecCmd != 0 || m.CmdAct || m.DecCmdAct
}

// TesterPresent is the UDS "tester present, suppress response" request, the
// only payload allowed on the radar diagnostic address.
var TesterPresent = [8]byte{0x02, 0x3E, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}

// TesterPresentFrame returns the tester-present request addressed to the
// radar.
func TesterPresentFrame() canbus.Frame {
	return canbus.Frame{ID: IDRadarUDS, Len: 8, Data: TesterPresent}
}

// IsTesterPresent reports whether f carries exactly the tester-present
// request.
func IsTesterPresent(f canbus.Frame) bool {
	return f.Len == 8 && bytes.Equal(f.Data[:], TesterPresent[:])
}
