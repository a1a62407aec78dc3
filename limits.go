package hkgsafety

// SteeringLimits bound the steering torque the compute module may command.
// Torques are in LKAS11 units; times in microseconds.
type SteeringLimits struct {
	MaxSteer    int // absolute torque limit
	MaxRateUp   int // per-frame increase of |torque|
	MaxRateDown int // per-frame decrease of |torque| once above the driver envelope

	MaxRTDelta    int    // change allowed within one real-time window
	MaxRTInterval uint32 // real-time window length

	DriverTorqueAllowance int // driver torque ignored before it shrinks the envelope
	DriverTorqueFactor    int // envelope shrink per unit of driver torque
}

// LongitudinalLimits bound the acceleration requests in 0.01 m/s².
type LongitudinalLimits struct {
	MaxAccel      int
	MinAccel      int
	InactiveAccel int // value meaning "no request", always allowed
}

func hyundaiLimits(maxSteer, rateUp, rateDown int) SteeringLimits {
	return SteeringLimits{
		MaxSteer:              maxSteer,
		MaxRateUp:             rateUp,
		MaxRateDown:           rateDown,
		MaxRTDelta:            112,
		MaxRTInterval:         250000,
		DriverTorqueAllowance: 50,
		DriverTorqueFactor:    2,
	}
}

var (
	DefaultSteeringLimits = hyundaiLimits(384, 3, 7)
	AltSteeringLimits     = hyundaiLimits(270, 2, 3)

	DefaultLongitudinalLimits = LongitudinalLimits{MaxAccel: 200, MinAccel: -350}
)

// StandstillThreshold is the raw wheel speed above which the vehicle counts as
// moving (about 1 kph).
const StandstillThreshold = 30

// maxLimitCheck reports whether val lies outside [minVal, maxVal].
func maxLimitCheck(val, maxVal, minVal int) bool {
	return val > maxVal || val < minVal
}

// driverLimitCheck reports whether val violates the rate limits relative to
// the previous command, widened or narrowed by the driver's own torque.
func driverLimitCheck(val, last int, driver *Sample, l SteeringLimits) bool {
	highestRL := max(last, 0) + l.MaxRateUp
	lowestRL := min(last, 0) - l.MaxRateUp

	driverMax := l.MaxSteer + (l.DriverTorqueAllowance+driver.Max)*l.DriverTorqueFactor
	driverMin := -l.MaxSteer + (-l.DriverTorqueAllowance+driver.Min)*l.DriverTorqueFactor

	// Above the driver envelope the command has to move back toward zero.
	highest := min(highestRL, max(last-l.MaxRateDown, max(driverMax, 0)))
	lowest := max(lowestRL, min(last+l.MaxRateDown, min(driverMin, 0)))

	return maxLimitCheck(val, highest, lowest)
}

// rtRateLimitCheck reports whether val moved more than maxDelta away from the
// reference of the current real-time window.
func rtRateLimitCheck(val, ref, maxDelta int) bool {
	highest := max(ref, 0) + maxDelta
	lowest := min(ref, 0) - maxDelta
	return maxLimitCheck(val, highest, lowest)
}
