package canbus

import (
	"context"
	"fmt"
)

func ExampleLoopbackBus() {
	ctx := context.Background()
	bus := NewLoopbackBus()
	a := bus.Open()
	b := bus.Open()
	defer a.Close()
	defer b.Close()

	go func() { _ = a.Send(ctx, MustFrame(0x123, []byte("hi"))) }()
	f, _ := b.Receive(ctx)
	fmt.Printf("ID=%03X LEN=%d DATA=%x\n", f.ID, f.Len, f.Payload())
	// Output: ID=123 LEN=2 DATA=6869
}

func ExampleFrame_Bits() {
	f := MustFrame(0x340, []byte{0x00, 0x00, 0x64, 0x0C, 0x00, 0x00, 0x00, 0x00})
	torque := int(f.Bits(16, 11)) - 1024
	fmt.Println(torque, f.Bit(27))
	// Output: 100 true
}
