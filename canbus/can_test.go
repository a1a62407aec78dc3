package canbus

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestFrame_ValidateAndString(t *testing.T) {
	cases := []struct {
		name    string
		frame   Frame
		wantStr string
	}{
		{
			name:    "standard frame with data",
			frame:   MustFrame(0x123, []byte{0xDE, 0xAD}),
			wantStr: "123 [2] DE AD",
		},
		{
			name:    "extended RTR, zero length",
			frame:   Frame{ID: 0x1ABCDEFF, Extended: true, RTR: true, Len: 0},
			wantStr: "1ABCDEFF [0] RTR",
		},
	}

	for _, tc := range cases {
		if err := tc.frame.Validate(); err != nil {
			t.Fatalf("%s: Validate() error = %v", tc.name, err)
		}
		if got := tc.frame.String(); got != tc.wantStr {
			t.Fatalf("%s: String() = %q, want %q", tc.name, got, tc.wantStr)
		}
	}

	if err := (Frame{ID: 0x800}).Validate(); err != ErrInvalidID {
		t.Fatalf("expected invalid standard ID, got %v", err)
	}
	if err := (Frame{ID: 0x20000000, Extended: true}).Validate(); err != ErrInvalidID {
		t.Fatalf("expected invalid extended ID, got %v", err)
	}
	if err := (Frame{ID: 0x100, Bus: -1}).Validate(); err != ErrInvalidBus {
		t.Fatalf("expected invalid bus, got %v", err)
	}
	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("MustFrame should panic for len>8")
			}
		}()
		_ = MustFrame(0x123, make([]byte, 9))
	}()
}

func TestFrame_OnBusAndPayload(t *testing.T) {
	f := MustFrame(0x340, []byte{1, 2, 3})
	g := f.OnBus(2)
	if f.Bus != 0 || g.Bus != 2 || g.ID != 0x340 {
		t.Fatalf("unexpected frames %+v %+v", f, g)
	}
	if !bytes.Equal(g.Payload(), []byte{1, 2, 3}) {
		t.Fatalf("payload %X", g.Payload())
	}
}

func TestLoopbackBus_SendReceive_MultiEndpoint(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()

	a := bus.Open()
	b := bus.Open()
	c := bus.Open()
	defer a.Close()
	defer b.Close()
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	send := MustFrame(0x321, []byte("hello")).OnBus(2)

	done := make(chan error, 1)
	go func() { done <- a.Send(ctx, send) }()

	gotB, err := b.Receive(ctx)
	if err != nil {
		t.Fatalf("receive b: %v", err)
	}
	gotC, err := c.Receive(ctx)
	if err != nil {
		t.Fatalf("receive c: %v", err)
	}
	if gotB != send {
		t.Fatalf("b mismatch: got %+v want %+v", gotB, send)
	}
	if gotC != send {
		t.Fatalf("c mismatch: got %+v want %+v", gotC, send)
	}
	if err := <-done; err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotB.String() != "321 [5] 68 65 6C 6C 6F" {
		t.Fatalf("string: got %q", gotB.String())
	}
}

func TestLoopbackBus_ReceiveHonoursContext(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	a := bus.Open()
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := a.Receive(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestLoopbackBus_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()

	_ = a.Close()
	if _, err := a.Receive(ctx); err == nil {
		t.Fatalf("closed endpoint should error on Receive")
	}
	if err := a.Send(ctx, MustFrame(0x1, nil)); err == nil {
		t.Fatalf("closed endpoint should error on Send")
	}

	_ = bus.Close()
	if _, err := b.Receive(ctx); err == nil {
		t.Fatalf("endpoint should error after bus close")
	}
	if err := b.Send(ctx, MustFrame(0x1, nil)); err == nil {
		t.Fatalf("endpoint should error on Send after bus close")
	}
	if _, err := bus.Open().Receive(ctx); err != ErrClosed {
		t.Fatalf("endpoint opened on closed bus should be closed, got %v", err)
	}
}

func TestLoopbackBus_CloseDuringSend(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for range 50 {
		bus := NewLoopbackBus()
		a, b := bus.Open(), bus.Open()
		done := make(chan error, 1)
		go func() {
			for i := range 200 {
				if err := a.Send(ctx, MustFrame(uint32(i), nil)); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}()
		_ = b.Close()
		if err := <-done; err != nil {
			t.Fatalf("send while receiver closes: %v", err)
		}
		if _, err := b.Receive(ctx); err != ErrClosed {
			t.Fatalf("closed endpoint returned %v, want ErrClosed", err)
		}
		_ = bus.Close()
	}
}

func TestFilters_Basics(t *testing.T) {
	f1 := MustFrame(0x100, []byte{1})
	f2 := MustFrame(0x101, []byte{2}).OnBus(2)

	if !ByID(0x100)(f1) || ByID(0x100)(f2) {
		t.Fatalf("ByID failure")
	}
	if !ByIDs(0x100, 0x102)(f1) || ByIDs(0x100, 0x102)(f2) {
		t.Fatalf("ByIDs failure")
	}
	if !ByBus(2)(f2) || ByBus(2)(f1) {
		t.Fatalf("ByBus failure")
	}
	if !ByRange(0x100, 0x1FF)(f2) || ByRange(0x200, 0x2FF)(f2) || !ByRange(0x1FF, 0x100)(f2) {
		t.Fatalf("ByRange failure")
	}
	if !ByMask(0x100, 0x7FF)(f1) || ByMask(0x100, 0x7FF)(f2) {
		t.Fatalf("ByMask failure")
	}
	if !And(ByID(0x100), ByBus(0))(f1) || And(ByID(0x101), ByBus(0))(f2) {
		t.Fatalf("And failure")
	}
	if And(nil, ByBus(2))(f1) || !Or(nil, ByBus(2))(f2) {
		t.Fatalf("nil operand failure")
	}
	if !Or(ByID(0x100), ByID(0x999))(f1) || Or(ByID(0x999), ByID(0x998))(f1) {
		t.Fatalf("Or failure")
	}
	if Not(ByID(0x100))(f1) || !Not(ByID(0x999))(f1) || !Not(nil)(f1) {
		t.Fatalf("Not failure")
	}
}

func TestParseFilter(t *testing.T) {
	frame := func(id uint32) Frame { return Frame{ID: id, Extended: id > 0x7FF} }
	cases := []struct {
		terms []string
		match []uint32
		miss  []uint32
	}{
		{[]string{"0x4F1", " 593"}, []uint32{0x4F1, 593}, []uint32{0x340}},
		{[]string{"0x400-0x4FF"}, []uint32{0x400, 0x4F1, 0x4FF}, []uint32{0x3FF, 0x500}},
		{[]string{"0x500/0x700"}, []uint32{0x500, 0x5FF}, []uint32{0x400, 0x600}},
		{[]string{"0x300-0x3FF", "!0x340"}, []uint32{0x300, 0x386}, []uint32{0x340, 0x4F1}},
		{[]string{"!0x380/0x7F0"}, []uint32{0x340, 0x4F1}, []uint32{0x386}},
		{[]string{"0x340", "!0x300-0x3FF"}, nil, []uint32{0x340}},
	}
	for _, tc := range cases {
		f, err := ParseFilter(tc.terms...)
		if err != nil {
			t.Fatalf("%v: %v", tc.terms, err)
		}
		for _, id := range tc.match {
			if !f(frame(id)) {
				t.Errorf("%v: %#x should match", tc.terms, id)
			}
		}
		for _, id := range tc.miss {
			if f(frame(id)) {
				t.Errorf("%v: %#x should not match", tc.terms, id)
			}
		}
	}

	if f, err := ParseFilter(); err != nil || f != nil {
		t.Fatalf("no terms: got filter=%v err=%v", f != nil, err)
	}
	for _, bad := range []string{"LKAS11", "0x20000000", "0x400-", "/0x7FF", "!"} {
		if _, err := ParseFilter(bad); err == nil {
			t.Errorf("%q: expected error", bad)
		}
	}
}

func TestMux_Subscribe_Filtering_And_Close(t *testing.T) {
	bus := NewLoopbackBus()
	defer bus.Close()
	m := NewMux(bus.Open())
	defer m.Close()

	chA, cancelA := m.Subscribe(ByID(0x100), 1)
	chB, cancelB := m.Subscribe(ByRange(0x200, 0x2FF), 2)
	defer cancelB()

	producer := bus.Open()
	defer producer.Close()

	send := func(id uint32) { _ = producer.Send(context.Background(), MustFrame(id, []byte{1, 2, 3})) }

	send(0x100) // A
	send(0x210) // B
	send(0x105) // nobody

	select {
	case f := <-chA:
		if f.ID != 0x100 {
			t.Fatalf("A got %03X", f.ID)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for A")
	}
	select {
	case f := <-chB:
		if f.ID != 0x210 {
			t.Fatalf("B got %03X", f.ID)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatalf("timeout waiting for B")
	}
	select {
	case f := <-chA:
		t.Fatalf("A should be empty, got %03X", f.ID)
	case <-time.After(100 * time.Millisecond):
	}

	cancelA()
	send(0x100)
	select {
	case _, ok := <-chA:
		if ok {
			t.Fatalf("A should remain closed")
		}
	case <-time.After(100 * time.Millisecond):
	}

	_ = m.Close()
	if _, ok := <-chB; ok {
		t.Fatalf("B should be closed after mux close")
	}
	late, _ := m.Subscribe(nil, 1)
	if _, ok := <-late; ok {
		t.Fatalf("subscription after close should be closed")
	}
}
