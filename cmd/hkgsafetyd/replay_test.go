package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/hkgsafety"
)

func loadString(t *testing.T, s string) *Trace {
	t.Helper()
	tr, err := LoadTrace(strings.NewReader(s))
	require.NoError(t, err)
	return tr
}

func TestLoadTrace(t *testing.T) {
	tr := loadString(t, `
hooks: adaptive
params: [hybrid_gas]
events:
  - {at: 10, op: rx, bus: 1, id: 0x251, data: "00 01 02 03 04 05 06 07"}
  - {at: 20, op: fwd, bus: 0, id: 0x4F1, expect: [2, 1]}
  - {at: 20, op: tick, expect: true}
`)
	require.Len(t, tr.Events, 3)

	rx := tr.Events[0]
	assert.Equal(t, uint32(0x251), rx.ID)
	assert.Nil(t, rx.Expect)
	assert.Equal(t, 1, rx.frame.Bus)
	assert.Equal(t, uint8(8), rx.frame.Len)
	assert.Equal(t, byte(0x07), rx.frame.Data[7])

	fwd := tr.Events[1].Expect
	require.NotNil(t, fwd)
	assert.Equal(t, hkgsafety.To(1, 2), fwd.Targets)

	assert.True(t, tr.Events[2].Expect.Verdict)
}

func TestLoadTraceRejects(t *testing.T) {
	tests := []struct {
		name, doc string
	}{
		{"empty", ``},
		{"unknown field", "hooks: standard\nspeed: 3\n"},
		{"unknown hooks", "hooks: toyota\n"},
		{"unknown param", "params: [turbo]\n"},
		{"unknown op", "events: [{at: 1, op: send, bus: 0, id: 0x340}]\n"},
		{"bus out of range", "events: [{at: 1, op: rx, bus: 9, id: 0x340}]\n"},
		{"time goes backwards", "events: [{at: 5, op: tick}, {at: 4, op: tick}]\n"},
		{"bad hex", "events: [{at: 1, op: rx, bus: 0, id: 0x340, data: zz}]\n"},
		{"too long", "events: [{at: 1, op: rx, bus: 0, id: 0x340, data: 000102030405060708}]\n"},
		{"bad id", "events: [{at: 1, op: tx, bus: 0, id: 0x20000000}]\n"},
		{"bool for fwd", "events: [{at: 1, op: fwd, bus: 0, id: 0x340, expect: true}]\n"},
		{"list for tx", "events: [{at: 1, op: tx, bus: 0, id: 0x340, expect: [0]}]\n"},
		{"target out of range", "events: [{at: 1, op: fwd, bus: 0, id: 0x340, expect: [8]}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTrace(strings.NewReader(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestReplayEngagementTrace(t *testing.T) {
	f, err := os.Open("testdata/engage.yaml")
	require.NoError(t, err)
	defer f.Close()
	tr, err := LoadTrace(f)
	require.NoError(t, err)

	var out bytes.Buffer
	res, err := Replay(tr, &out)
	require.NoError(t, err)

	assert.Equal(t, 10, res.Events)
	assert.Equal(t, 10, res.Checked)
	assert.Zero(t, res.Failed, out.String())
	assert.False(t, res.Final.ControlsAllowed)
	assert.Contains(t, out.String(), "LKAS11")
	assert.NotContains(t, out.String(), "FAIL")
}

func TestReplayReportsFailures(t *testing.T) {
	tr := loadString(t, `
hooks: standard
events:
  - {at: 1000, op: tx, bus: 0, id: 0x340, data: "00 00 03 0C 00 00 00 00", expect: true}
  - {at: 2000, op: fwd, bus: 1, id: 0x340}
`)
	var out bytes.Buffer
	res, err := Replay(tr, &out)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Events)
	assert.Equal(t, 1, res.Checked)
	assert.Equal(t, 1, res.Failed)
	assert.Contains(t, out.String(), "blocked")
	assert.Contains(t, out.String(), "FAIL")
}

func TestReplayRelayMalfunction(t *testing.T) {
	tr := loadString(t, `
hooks: standard
events:
  - {at: 0, op: tx, bus: 0, id: 0x340, data: "00 00 00 04 00 00 00 00", expect: true}
  - {at: 1000001, op: rx, bus: 0, id: 0x340, data: "00 00 00 04 00 00 00 00"}
  - {at: 1000002, op: tx, bus: 0, id: 0x340, data: "00 00 00 04 00 00 00 00", expect: false}
  - {at: 1000003, op: fwd, bus: 0, id: 0x4F1, expect: []}
`)
	res, err := Replay(tr, new(bytes.Buffer))
	require.NoError(t, err)
	assert.Zero(t, res.Failed)
	assert.True(t, res.Final.RelayMalfunction)
}

func TestReplayCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", "testdata/engage.yaml"})
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "10 events, 10 checked, 0 failed")
}
