package hkg

import "fmt"

// Message identifiers.
const (
	IDLCANGateway1 uint32 = 0x20C // only present on a bus carrying L-CAN
	IDMDPS12       uint32 = 0x251
	IDEMS16        uint32 = 0x260
	IDEMS11        uint32 = 0x316
	IDLKAS11       uint32 = 0x340
	IDEEMS11       uint32 = 0x371
	IDMDPS11       uint32 = 0x381
	IDWHLSPD11     uint32 = 0x386
	IDSCC14        uint32 = 0x389
	IDFCA11        uint32 = 0x38D
	IDTCS13        uint32 = 0x394
	IDSCC11        uint32 = 0x420
	IDSCC12        uint32 = 0x421
	IDFCA12        uint32 = 0x483
	IDLFAHDAMFC    uint32 = 0x485
	IDFRTRADAR11   uint32 = 0x4A2
	IDCLU11        uint32 = 0x4F1
	IDSCC13        uint32 = 0x50A
	IDLCANGateway2 uint32 = 0x510 // only present on a bus carrying L-CAN
	IDRadarUDS     uint32 = 0x7D0
)

var names = map[uint32]string{
	IDLCANGateway1: "LCAN_20C",
	IDMDPS12:       "MDPS12",
	IDEMS16:        "EMS16",
	IDEMS11:        "EMS11",
	IDLKAS11:       "LKAS11",
	IDEEMS11:       "E_EMS11",
	IDMDPS11:       "MDPS11",
	IDWHLSPD11:     "WHL_SPD11",
	IDSCC14:        "SCC14",
	IDFCA11:        "FCA11",
	IDTCS13:        "TCS13",
	IDSCC11:        "SCC11",
	IDSCC12:        "SCC12",
	IDFCA12:        "FCA12",
	IDLFAHDAMFC:    "LFAHDA_MFC",
	IDFRTRADAR11:   "FRT_RADAR11",
	IDCLU11:        "CLU11",
	IDSCC13:        "SCC13",
	IDLCANGateway2: "LCAN_510",
	IDRadarUDS:     "RADAR_UDS",
}

// Name returns the DBC name of id, or its hex form when unknown.
func Name(id uint32) string {
	if n, ok := names[id]; ok {
		return n
	}
	return fmt.Sprintf("0x%03X", id)
}

// IsSCC reports whether id is one of the four cruise controller messages.
func IsSCC(id uint32) bool {
	return id == IDSCC11 || id == IDSCC12 || id == IDSCC13 || id == IDSCC14
}

// IsLCANGateway reports whether id is only ever sent by the L-CAN gateway.
func IsLCANGateway(id uint32) bool {
	return id == IDLCANGateway1 || id == IDLCANGateway2
}

// Cruise buttons carried by CLU11.
const (
	ButtonNone   uint8 = 0
	ButtonResume uint8 = 1
	ButtonSet    uint8 = 2
	ButtonCancel uint8 = 4
)
