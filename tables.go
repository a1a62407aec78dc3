package hkgsafety

import (
	"github.com/notnil/hkgsafety/canbus"
	"github.com/notnil/hkgsafety/hkg"
)

// AllowedMsg is one entry of a transmit allow-list.
type AllowedMsg struct {
	ID  uint32
	Bus int
	Len uint8
}

func msgAllowed(f canbus.Frame, list []AllowedMsg) bool {
	for _, m := range list {
		if m.ID == f.ID && m.Bus == f.Bus && m.Len == f.Len {
			return true
		}
	}
	return false
}

var (
	defaultTxMsgs = []AllowedMsg{
		{hkg.IDLKAS11, 0, 8},
		{hkg.IDCLU11, 0, 4},
		{hkg.IDLFAHDAMFC, 0, 4},
		{hkg.IDCLU11, 2, 4},
		{hkg.IDMDPS12, 2, 8},
		{hkg.IDSCC11, 0, 8},
		{hkg.IDSCC12, 0, 8},
		{hkg.IDSCC13, 0, 8},
		{hkg.IDSCC14, 0, 8},
		{hkg.IDFCA11, 0, 8},
		{hkg.IDFCA12, 0, 8},
		{hkg.IDFRTRADAR11, 0, 8},
	}

	longitudinalTxMsgs = []AllowedMsg{
		{hkg.IDLKAS11, 0, 8},
		{hkg.IDCLU11, 0, 4},
		{hkg.IDLFAHDAMFC, 0, 4},
		{hkg.IDSCC11, 0, 8},
		{hkg.IDSCC12, 0, 8},
		{hkg.IDSCC13, 0, 8},
		{hkg.IDSCC14, 0, 8},
		{hkg.IDFRTRADAR11, 0, 2},
		{hkg.IDFCA11, 0, 8},
		{hkg.IDFCA12, 0, 8},
		{hkg.IDRadarUDS, 0, 8},
		{hkg.IDCLU11, 2, 4},
		{hkg.IDMDPS12, 2, 8},
	}

	cameraSCCTxMsgs = []AllowedMsg{
		{hkg.IDLKAS11, 0, 8},
		{hkg.IDCLU11, 2, 4},
		{hkg.IDLFAHDAMFC, 0, 4},
		{hkg.IDMDPS12, 2, 8},
		{hkg.IDCLU11, 0, 4},
		{hkg.IDSCC11, 0, 8},
		{hkg.IDSCC12, 0, 8},
		{hkg.IDSCC13, 0, 8},
		{hkg.IDSCC14, 0, 8},
		{hkg.IDFCA11, 0, 8},
		{hkg.IDFCA12, 0, 8},
		{hkg.IDFRTRADAR11, 0, 8},
	}

	adaptiveTxMsgs = []AllowedMsg{
		{hkg.IDLKAS11, 0, 8}, {hkg.IDLKAS11, 1, 8},
		{hkg.IDCLU11, 0, 4}, {hkg.IDCLU11, 1, 4}, {hkg.IDCLU11, 2, 4},
		{hkg.IDLFAHDAMFC, 0, 4},
		{hkg.IDMDPS12, 2, 8},
		{hkg.IDSCC11, 0, 8},
		{hkg.IDSCC12, 0, 8},
		{hkg.IDSCC13, 0, 8},
		{hkg.IDSCC14, 0, 8},
		{hkg.IDFRTRADAR11, 0, 8},
		{hkg.IDEMS11, 1, 8},
		{hkg.IDFCA12, 0, 8},
		{hkg.IDFCA11, 0, 8},
		{hkg.IDRadarUDS, 0, 8},
	}
)

func txMsgsFor(v Variant) []AllowedMsg {
	switch v {
	case VariantLongitudinal:
		return longitudinalTxMsgs
	case VariantCameraSCC:
		return cameraSCCTxMsgs
	case VariantAdaptive:
		return adaptiveTxMsgs
	case VariantDefault, VariantLegacy:
		return defaultTxMsgs
	}
	return nil
}

// gasSet accepts either engine message; whichever shows up first binds.
func gasSet() CheckSet {
	return CheckSet{Msgs: []CheckMsg{
		{ID: hkg.IDEMS16, Len: 8, CheckChecksum: true, MaxCounter: 3, ExpectedTimestep: 10000},
		{ID: hkg.IDEEMS11, Len: 8, ExpectedTimestep: 10000},
	}}
}

func single(m CheckMsg) CheckSet {
	return CheckSet{Msgs: []CheckMsg{m}}
}

// rxChecksFor returns a fresh check table for v. Tables carry per-session
// state and are never shared.
func rxChecksFor(v Variant) []CheckSet {
	var (
		wheels = CheckMsg{ID: hkg.IDWHLSPD11, Len: 8, CheckChecksum: true, MaxCounter: 15, ExpectedTimestep: 10000}
		brake  = CheckMsg{ID: hkg.IDTCS13, Len: 8, CheckChecksum: true, MaxCounter: 7, ExpectedTimestep: 10000}
		accel  = CheckMsg{ID: hkg.IDSCC12, Len: 8, CheckChecksum: true, MaxCounter: 15, ExpectedTimestep: 20000}
	)
	switch v {
	case VariantDefault:
		return []CheckSet{gasSet(), single(wheels), single(brake), single(accel)}
	case VariantCameraSCC:
		accel.Bus = 2
		return []CheckSet{gasSet(), single(wheels), single(brake), single(accel)}
	case VariantLongitudinal:
		buttons := CheckMsg{ID: hkg.IDCLU11, Len: 4, MaxCounter: 15, ExpectedTimestep: 20000}
		return []CheckSet{gasSet(), single(wheels), single(brake), single(buttons)}
	case VariantLegacy, VariantAdaptive:
		return []CheckSet{gasSet(), single(CheckMsg{ID: hkg.IDWHLSPD11, Len: 8, ExpectedTimestep: 20000})}
	}
	return nil
}
