package hkgsafety

import (
	"errors"
	"fmt"
	"strings"
)

// Param is the packed configuration word handed to the init hooks.
type Param uint16

const (
	ParamEVGas        Param = 1 << 0 // gas pedal from E_EMS11, electric layout
	ParamHybridGas    Param = 1 << 1 // gas pedal from E_EMS11, hybrid layout
	ParamLongitudinal Param = 1 << 2 // compute module owns longitudinal control
	ParamCameraSCC    Param = 1 << 3 // cruise controller sits behind the camera on bus 2
	ParamAltLimits    Param = 1 << 6 // reduced steering torque limits
)

// Has reports whether every bit of flag is set.
func (p Param) Has(flag Param) bool {
	return p&flag == flag
}

var paramNames = []struct {
	name string
	bit  Param
}{
	{"ev_gas", ParamEVGas},
	{"hybrid_gas", ParamHybridGas},
	{"longitudinal", ParamLongitudinal},
	{"camera_scc", ParamCameraSCC},
	{"alt_limits", ParamAltLimits},
}

// ParseParams builds a Param from flag names such as "longitudinal".
func ParseParams(names ...string) (Param, error) {
	var p Param
outer:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		for _, pn := range paramNames {
			if pn.name == n {
				p |= pn.bit
				continue outer
			}
		}
		return 0, fmt.Errorf("hkgsafety: unknown parameter %q", n)
	}
	return p, nil
}

func (p Param) String() string {
	var parts []string
	for _, pn := range paramNames {
		if p.Has(pn.bit) {
			parts = append(parts, pn.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// HookSet names one of the entry points used to initialize a session.
type HookSet uint8

const (
	HooksStandard HookSet = iota // Init
	HooksLegacy                  // InitLegacy
	HooksAdaptive                // InitAdaptive
)

var ErrUnknownHookSet = errors.New("hkgsafety: unknown hook set")

// ParseHookSet maps "standard", "legacy" or "adaptive" to a HookSet.
func ParseHookSet(s string) (HookSet, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "standard", "":
		return HooksStandard, nil
	case "legacy":
		return HooksLegacy, nil
	case "adaptive":
		return HooksAdaptive, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownHookSet, s)
}

func (h HookSet) String() string {
	switch h {
	case HooksStandard:
		return "standard"
	case HooksLegacy:
		return "legacy"
	case HooksAdaptive:
		return "adaptive"
	}
	return fmt.Sprintf("HookSet(%d)", uint8(h))
}

// Variant is the configuration a session runs in. It is chosen once by an
// init hook and never changes until the next init.
type Variant uint8

const (
	VariantUninitialized Variant = iota
	VariantDefault               // compute module steers, vehicle cruise controller owns acceleration
	VariantLongitudinal          // compute module also owns acceleration; the radar is silenced
	VariantCameraSCC             // cruise controller sits behind the camera on bus 2
	VariantLegacy                // older vehicles without counters or checksums on some messages
	VariantAdaptive              // bus topology learned at runtime
)

func (v Variant) String() string {
	switch v {
	case VariantUninitialized:
		return "uninitialized"
	case VariantDefault:
		return "default"
	case VariantLongitudinal:
		return "longitudinal"
	case VariantCameraSCC:
		return "camera-scc"
	case VariantLegacy:
		return "legacy"
	case VariantAdaptive:
		return "adaptive"
	}
	return fmt.Sprintf("Variant(%d)", uint8(v))
}

// GasSignal selects where the gas pedal state is decoded from.
type GasSignal uint8

const (
	GasCombustion GasSignal = iota // EMS16
	GasEV                          // E_EMS11, electric layout
	GasHybrid                      // E_EMS11, hybrid layout
)

func gasSignalFor(p Param) GasSignal {
	switch {
	case p.Has(ParamEVGas):
		return GasEV
	case p.Has(ParamHybridGas):
		return GasHybrid
	default:
		return GasCombustion
	}
}
