// Package hkg describes the CAN messages of the Hyundai/Kia/Genesis vehicle
// family that the safety hooks inspect or gate.
//
// It provides:
//   - message identifiers and their DBC names
//   - checksum and rolling counter extraction and computation
//   - typed message codecs implementing FrameMarshaler / FrameUnmarshaler
//   - the UDS tester-present payload allowed on the radar diagnostic address
//
// Codecs only cover the signals the safety layer reads or writes; other
// signals of a message are left zero on marshal and ignored on unmarshal.
package hkg
