//go:build linux

package canbus

import (
	"context"
	"net"
	"sync"

	"go.einride.tech/can/pkg/socketcan"
)

// socketCAN implements Bus over a Linux SocketCAN raw socket. A single reader
// goroutine pumps received frames into a channel so Receive can honour its
// context.
type socketCAN struct {
	conn   net.Conn
	tx     *socketcan.Transmitter
	bus    int
	frames chan Frame

	mu     sync.Mutex
	err    error
	closed chan struct{}
	once   sync.Once
}

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g., "can0"). Received frames are stamped with the given bus index.
func DialSocketCAN(ctx context.Context, iface string, bus int) (Bus, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, err
	}
	s := &socketCAN{
		conn:   conn,
		tx:     socketcan.NewTransmitter(conn),
		bus:    bus,
		frames: make(chan Frame, 256),
		closed: make(chan struct{}),
	}
	go s.pump()
	return s, nil
}

func (s *socketCAN) pump() {
	defer close(s.frames)
	rx := socketcan.NewReceiver(s.conn)
	for rx.Receive() {
		if rx.HasErrorFrame() {
			continue
		}
		select {
		case s.frames <- fromEinride(rx.Frame(), s.bus):
		case <-s.closed:
			return
		}
	}
	s.mu.Lock()
	s.err = rx.Err()
	s.mu.Unlock()
}

// Send writes one frame. The frame's Bus field is ignored; the socket decides
// the segment.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	if err := frame.Validate(); err != nil {
		return err
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	return s.tx.TransmitFrame(ctx, frame.toEinride())
}

// Receive returns the next frame read from the socket.
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			s.mu.Lock()
			err := s.err
			s.mu.Unlock()
			if err == nil {
				err = ErrClosed
			}
			return Frame{}, err
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

func (s *socketCAN) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closed)
		// Closing the conn unblocks the reader goroutine.
		err = s.conn.Close()
	})
	return err
}
