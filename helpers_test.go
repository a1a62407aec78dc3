package hkgsafety

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

type fakeClock struct{ now uint32 }

func (c *fakeClock) Now() uint32 { return c.now }
func (c *fakeClock) Advance(us uint32) { c.now += us }
func (c *fakeClock) AdvanceMS(ms uint32) { c.now += ms * 1000 }

func newTestSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: 1000}
	return NewSession(WithClock(clk.Now)), clk
}

func frameOf(t *testing.T, m hkg.FrameMarshaler, bus int) canbus.Frame {
	t.Helper()
	f, err := m.MarshalCANFrame()
	require.NoError(t, err)
	return f.OnBus(bus)
}

func lkasFrame(t *testing.T, torque, bus int) canbus.Frame {
	return frameOf(t, hkg.LKAS11{Torque: torque, SteerReq: torque != 0}, bus)
}

func sccFrame(t *testing.T, accel int) canbus.Frame {
	return frameOf(t, hkg.SCC12{AccelRaw: accel, Accel: accel}, 0)
}

// mdpsForTorque returns the column torque report closest to t once scaled.
func mdpsForTorque(t int) hkg.MDPS12 {
	raw := math.Round(float64(t+808) / 0.79)
	return hkg.MDPS12{StrColTq: uint16(min(max(raw, 0), 0x7FF))}
}

func buttonFrame(t *testing.T, button uint8, bus int) canbus.Frame {
	return frameOf(t, hkg.CLU11{Button: button}, bus)
}

// engage turns controls on the way the driver does on a vehicle with the
// cruise controller on bus 0.
func engage(t *testing.T, s *Session) {
	t.Helper()
	require.True(t, s.Receive(frameOf(t, hkg.SCC11{MainModeACC: true}, 0)))
	require.True(t, s.Receive(buttonFrame(t, hkg.ButtonResume, 0)))
	require.True(t, s.ControlsAllowed())
}

// rampTorque sends torque commands from the current value to target in steps
// of step, 10 ms apart, and requires every one of them to pass.
func rampTorque(t *testing.T, s *Session, clk *fakeClock, from, target, step int) {
	t.Helper()
	for v := from; v != target; {
		if target > v {
			v = min(v+step, target)
		} else {
			v = max(v-step, target)
		}
		clk.AdvanceMS(10)
		require.True(t, s.Transmit(lkasFrame(t, v, 0)), "torque %d", v)
	}
}
