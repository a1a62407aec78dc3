package hkgsafety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/hkgsafety/hkg"
)

func TestTargets(t *testing.T) {
	assert.Equal(t, "none", NoForward.String())
	assert.Equal(t, "[0 2]", To(2, 0).String())
	assert.Equal(t, []int{1, 2}, To(1, 2).Buses())
	assert.True(t, To(1).Has(1))
	assert.False(t, To(1).Has(-1))
	assert.Equal(t, NoForward, To(-1, 9))
	assert.Nil(t, NoForward.Buses())
}

func TestForwardStandardRoutes(t *testing.T) {
	s, _ := newTestSession(t)
	s.Init(0)

	assert.Equal(t, To(2), s.Forward(0, hkg.IDCLU11))
	assert.Equal(t, To(2), s.Forward(0, hkg.IDMDPS12))
	assert.Equal(t, NoForward, s.Forward(1, hkg.IDCLU11))
	assert.Equal(t, To(0), s.Forward(2, hkg.IDLKAS11))
	assert.Equal(t, To(0), s.Forward(2, hkg.IDSCC12))
	assert.Equal(t, To(0), s.Forward(2, hkg.IDFCA11))
	assert.Equal(t, NoForward, s.Forward(3, hkg.IDCLU11))
}

func TestForwardSuppressesSteeringEcho(t *testing.T) {
	s, clk := newTestSession(t)
	s.Init(0)
	engage(t, s)

	require.True(t, s.Transmit(lkasFrame(t, 0, 0)))
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDLKAS11))
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDLFAHDAMFC))
	assert.Equal(t, To(0), s.Forward(2, hkg.IDSCC12), "other groups are unaffected")

	clk.Advance(steerEchoWindow - 1)
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDLKAS11))
	clk.Advance(1)
	assert.Equal(t, To(0), s.Forward(2, hkg.IDLKAS11))
}

func TestForwardSuppressesCruiseEcho(t *testing.T) {
	s, clk := newTestSession(t)
	s.Init(0)

	require.True(t, s.Transmit(sccFrame(t, 0)))
	for _, id := range []uint32{hkg.IDSCC11, hkg.IDSCC12, hkg.IDSCC13, hkg.IDSCC14} {
		assert.Equal(t, NoForward, s.Forward(2, id), hkg.Name(id))
	}
	clk.Advance(sccEchoWindow - 1)
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDSCC11))
	clk.Advance(1)
	assert.Equal(t, To(0), s.Forward(2, hkg.IDSCC11))
}

func TestForwardSuppressesCollisionAvoidanceEcho(t *testing.T) {
	s, _ := newTestSession(t)
	s.Init(0)

	require.True(t, s.Transmit(frameOf(t, hkg.FCA11{}, 0)))
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDFCA11))
	assert.Equal(t, NoForward, s.Forward(2, hkg.IDFCA12))
}

func TestForwardSuppressesSteeringUnitEcho(t *testing.T) {
	s, _ := newTestSession(t)
	s.Init(0)

	require.True(t, s.Transmit(frameOf(t, hkg.MDPS12{}, 2)))
	assert.Equal(t, NoForward, s.Forward(0, hkg.IDMDPS12))
	assert.Equal(t, To(2), s.Forward(0, hkg.IDCLU11))
}

func TestForwardBlockedCommandClearsEcho(t *testing.T) {
	s, _ := newTestSession(t)
	s.Init(0)
	engage(t, s)

	require.True(t, s.Transmit(lkasFrame(t, 0, 0)))
	require.False(t, s.Transmit(lkasFrame(t, 50, 0)))
	assert.Equal(t, To(0), s.Forward(2, hkg.IDLKAS11), "stock command relayed again")
}
