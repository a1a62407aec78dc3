package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/notnil/hkgsafety"
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

var replayCmd = &cobra.Command{
	Use:   "replay <trace.yaml|->",
	Short: "Evaluate a recorded frame trace against the safety hooks",
	Long: `replay feeds every event of a YAML trace to a fresh session whose clock
follows the trace timestamps, prints each decision and fails when an event's
expectation is not met.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

// Trace is a recorded or hand-written sequence of hook invocations.
type Trace struct {
	Hooks  string   `yaml:"hooks"`
	Params []string `yaml:"params"`
	Events []Event  `yaml:"events"`
}

// Event is one hook invocation at a point in time.
type Event struct {
	At     uint32       `yaml:"at"` // microseconds
	Op     string       `yaml:"op"` // rx, tx, fwd or tick
	Bus    int          `yaml:"bus"`
	ID     uint32       `yaml:"id"`
	Data   string       `yaml:"data"` // hex, spaces allowed
	Expect *Expectation `yaml:"expect"`

	frame canbus.Frame
}

// Expectation is a verdict for rx, tx and tick, or a set of target buses
// for fwd.
type Expectation struct {
	Verdict bool
	Targets hkgsafety.Targets
	forward bool
}

func (e *Expectation) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		return n.Decode(&e.Verdict)
	case yaml.SequenceNode:
		var buses []int
		if err := n.Decode(&buses); err != nil {
			return err
		}
		for _, b := range buses {
			if b < 0 || b > 7 {
				return fmt.Errorf("line %d: target bus %d out of range", n.Line, b)
			}
		}
		e.Targets = hkgsafety.To(buses...)
		e.forward = true
		return nil
	}
	return fmt.Errorf("line %d: expect must be a bool or a list of buses", n.Line)
}

// LoadTrace decodes and validates a trace. Unknown fields are rejected.
func LoadTrace(r io.Reader) (*Trace, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var tr Trace
	if err := dec.Decode(&tr); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("trace: empty document")
		}
		return nil, fmt.Errorf("trace: %w", err)
	}
	if err := tr.validate(); err != nil {
		return nil, err
	}
	return &tr, nil
}

func (tr *Trace) validate() error {
	if _, err := hkgsafety.ParseHookSet(tr.Hooks); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	if _, err := hkgsafety.ParseParams(tr.Params...); err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	var last uint32
	for i := range tr.Events {
		ev := &tr.Events[i]
		if i > 0 && ev.At < last {
			return fmt.Errorf("trace: event %d: time %d goes backwards from %d", i, ev.At, last)
		}
		last = ev.At

		switch ev.Op {
		case "rx", "tx", "fwd":
			if ev.Bus < 0 || ev.Bus > 7 {
				return fmt.Errorf("trace: event %d: bus %d out of range", i, ev.Bus)
			}
		case "tick":
		default:
			return fmt.Errorf("trace: event %d: unknown op %q", i, ev.Op)
		}
		if ev.Expect != nil && ev.Expect.forward != (ev.Op == "fwd") {
			want := "bool"
			if ev.Op == "fwd" {
				want = "bus list"
			}
			return fmt.Errorf("trace: event %d: %s expects a %s", i, ev.Op, want)
		}
		if ev.Op == "rx" || ev.Op == "tx" {
			f, err := parseFrame(ev.ID, ev.Data)
			if err != nil {
				return fmt.Errorf("trace: event %d: %w", i, err)
			}
			ev.frame = f.OnBus(ev.Bus)
		}
	}
	return nil
}

func parseFrame(id uint32, data string) (canbus.Frame, error) {
	payload, err := hex.DecodeString(strings.Join(strings.Fields(data), ""))
	if err != nil {
		return canbus.Frame{}, fmt.Errorf("data: %w", err)
	}
	if len(payload) > 8 {
		return canbus.Frame{}, fmt.Errorf("data: %d bytes", len(payload))
	}
	f := canbus.Frame{ID: id, Extended: id > 0x7FF, Len: uint8(len(payload))}
	copy(f.Data[:], payload)
	if err := f.Validate(); err != nil {
		return canbus.Frame{}, err
	}
	return f, nil
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Events  int
	Checked int
	Failed  int
	Final   hkgsafety.Snapshot
}

// Replay runs tr against a new session and writes one line per event to w.
// The session is initialized at the time of the first event.
func Replay(tr *Trace, w io.Writer) (ReplayResult, error) {
	hooks, err := hkgsafety.ParseHookSet(tr.Hooks)
	if err != nil {
		return ReplayResult{}, err
	}
	param, err := hkgsafety.ParseParams(tr.Params...)
	if err != nil {
		return ReplayResult{}, err
	}

	var now uint32
	if len(tr.Events) > 0 {
		now = tr.Events[0].At
	}
	s := hkgsafety.NewSession(hkgsafety.WithClock(func() uint32 { return now }))
	if _, err := s.Setup(hooks, param); err != nil {
		return ReplayResult{}, err
	}
	fmt.Fprintf(w, "# hooks=%s params=%s variant=%s\n", hooks, param, s.Variant())

	var res ReplayResult
	for _, ev := range tr.Events {
		now = ev.At
		var (
			got  string
			pass = true
		)
		switch ev.Op {
		case "rx":
			v := s.Receive(ev.frame)
			got = verdict(v, "valid", "invalid")
			pass = ev.Expect == nil || ev.Expect.Verdict == v
		case "tx":
			v := s.Transmit(ev.frame)
			got = verdict(v, "allowed", "blocked")
			pass = ev.Expect == nil || ev.Expect.Verdict == v
		case "fwd":
			t := s.Forward(ev.Bus, ev.ID)
			got = "-> " + t.String()
			pass = ev.Expect == nil || ev.Expect.Targets == t
		case "tick":
			v := s.Tick()
			got = verdict(v, "checks valid", "checks invalid")
			pass = ev.Expect == nil || ev.Expect.Verdict == v
		}

		res.Events++
		mark := ""
		if ev.Expect != nil {
			res.Checked++
			mark = "ok"
			if !pass {
				res.Failed++
				mark = "FAIL"
			}
		}
		if ev.Op == "tick" {
			fmt.Fprintf(w, "%10d  %-4s  %-22s %-16s %s\n", ev.At, ev.Op, "", got, mark)
			continue
		}
		fmt.Fprintf(w, "%10d  %-4s  bus=%d %-16s %-16s %s\n", ev.At, ev.Op, ev.Bus, hkg.Name(ev.ID), got, mark)
	}
	res.Final = s.Snapshot()
	return res, nil
}

func verdict(v bool, yes, no string) string {
	if v {
		return yes
	}
	return no
}

func runReplay(cmd *cobra.Command, args []string) error {
	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	tr, err := LoadTrace(r)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	res, err := Replay(tr, out)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# %d events, %d checked, %d failed; controls_allowed=%t relay_malfunction=%t\n",
		res.Events, res.Checked, res.Failed, res.Final.ControlsAllowed, res.Final.RelayMalfunction)
	if res.Failed > 0 {
		return fmt.Errorf("replay: %d of %d expectations failed", res.Failed, res.Checked)
	}
	return nil
}
