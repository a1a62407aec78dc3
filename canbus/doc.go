// Package canbus provides the frame model and bus plumbing the safety hooks
// and the gateway are built on.
//
// It includes:
//   - A Frame type carrying the bus segment it was seen on, with validation
//     and little-endian bit/byte accessors
//   - A Bus interface, an in-memory loopback bus for tests and simulations and
//     a Mux fanning received frames out to filtered subscribers
//   - Frame filters, parseable from identifier, range and mask terms
//   - A Group joining several buses keyed by bus index into one Bus
//   - A slog decorator for any Bus
//   - A Linux SocketCAN driver and interface helpers (linux-only)
package canbus
