package hkgsafety

import (
	"log/slog"

	"github.com/notnil/hkgsafety/hkg"
)

// relayTransitionTimeout is how long after init stock ECU traffic on the
// vehicle side is still accepted while the relay switches over.
const relayTransitionTimeout uint32 = 1_000_000

// Debounce windows applied to relayed frames the compute module has recently
// sent itself.
const (
	steerEchoWindow uint32 = 200_000
	sccEchoWindow   uint32 = 400_000
)

type echoClass uint8

const (
	echoLKAS echoClass = iota
	echoSCC
	echoMDPS
	echoFCA
	numEchoClasses
)

// safetyState is everything an init hook resets.
type safetyState struct {
	controlsAllowed  bool
	relayMalfunction bool

	vehicleMoving    bool
	gasPressed       bool
	gasPressedPrev   bool
	brakePressed     bool
	brakePressedPrev bool

	cruiseAvailable bool
	cruiseEngaged   bool
	mainOn          bool
	mainButtonPrev  bool

	torqueDriver      Sample
	desiredTorqueLast int
	rtTorqueLast      int
	tsTorqueCheckLast uint32

	lastOpTx [numEchoClasses]stamp
}

// Session is the safety state of one vehicle session. The zero value is not
// usable; create sessions with NewSession. A new session is uninitialized and
// denies everything until one of the init hooks runs.
type Session struct {
	clock     Clock
	logger    *slog.Logger
	integrity Integrity

	variant Variant
	param   Param
	gas     GasSignal
	steer   SteeringLimits
	long    LongitudinalLimits
	txMsgs  []AllowedMsg
	rx      *RxChecks
	initTS  uint32

	st   safetyState
	topo Topology
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the timestamp source. Defaults to MonotonicClock.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the logger for state transitions. Defaults to discarding.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithIntegrity overrides the checksum and counter extraction. Defaults to
// hkg.Integrity.
func WithIntegrity(in Integrity) Option {
	return func(s *Session) { s.integrity = in }
}

// NewSession returns an uninitialized session.
func NewSession(opts ...Option) *Session {
	s := &Session{}
	for _, o := range opts {
		o(s)
	}
	if s.clock == nil {
		s.clock = MonotonicClock()
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.integrity == nil {
		s.integrity = hkg.Integrity{}
	}
	s.topo.reset()
	return s
}

// Variant returns the variant chosen by the last init hook.
func (s *Session) Variant() Variant { return s.variant }

// ControlsAllowed reports whether the compute module may currently actuate.
func (s *Session) ControlsAllowed() bool { return s.st.controlsAllowed }

// RelayMalfunction reports whether stock ECU traffic was seen where only the
// compute module should be transmitting.
func (s *Session) RelayMalfunction() bool { return s.st.relayMalfunction }

func (s *Session) setControls(allowed bool, reason string) {
	if s.st.controlsAllowed == allowed || (allowed && s.st.relayMalfunction) {
		return
	}
	s.st.controlsAllowed = allowed
	s.logger.Info("controls changed", "allowed", allowed, "reason", reason)
}

func (s *Session) setRelayMalfunction() {
	if s.st.relayMalfunction {
		return
	}
	s.st.relayMalfunction = true
	s.setControls(false, "relay malfunction")
	s.logger.Warn("relay malfunction", "variant", s.variant)
}

// Snapshot is a copy of the externally interesting session state.
type Snapshot struct {
	Variant          Variant
	Param            Param
	ControlsAllowed  bool
	RelayMalfunction bool
	VehicleMoving    bool
	GasPressed       bool
	BrakePressed     bool
	CruiseAvailable  bool
	CruiseEngaged    bool
	MainOn           bool

	DesiredTorqueLast int
	RTTorqueLast      int
	DriverTorqueMin   int
	DriverTorqueMax   int

	RxChecksValid bool
	Topology      Routing
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	return Snapshot{
		Variant:           s.variant,
		Param:             s.param,
		ControlsAllowed:   s.st.controlsAllowed,
		RelayMalfunction:  s.st.relayMalfunction,
		VehicleMoving:     s.st.vehicleMoving,
		GasPressed:        s.st.gasPressed,
		BrakePressed:      s.st.brakePressed,
		CruiseAvailable:   s.st.cruiseAvailable,
		CruiseEngaged:     s.st.cruiseEngaged,
		MainOn:            s.st.mainOn,
		DesiredTorqueLast: s.st.desiredTorqueLast,
		RTTorqueLast:      s.st.rtTorqueLast,
		DriverTorqueMin:   s.st.torqueDriver.Min,
		DriverTorqueMax:   s.st.torqueDriver.Max,
		RxChecksValid:     s.RxChecksValid(),
		Topology:          s.topo.routing(),
	}
}
