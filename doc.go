// Package hkgsafety is the gatekeeper between an autonomous-driving compute
// module and the CAN buses of a Hyundai/Kia/Genesis vehicle.
//
// A Session holds everything one vehicle session needs: the integrity check
// tables for inbound frames, the vehicle state derived from them, the bus
// topology learned at runtime and the limits applied to outbound commands. It
// exposes the four hook entry points:
//
//	Init / InitLegacy / InitAdaptive  select a variant from packed parameter bits
//	Receive(frame)                    validate an inbound frame and update state
//	Transmit(frame)                   allow or block a frame proposed by the compute module
//	Forward(bus, id)                  decide which buses an inbound frame is relayed to
//
// Every decision fails closed: an uninitialized session, an unknown frame or
// ambiguous state denies transmission and relay.
//
// A Session is not safe for concurrent use. Callers serialize every entry
// point, as the gateway package does with a single mutex.
package hkgsafety
