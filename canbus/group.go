package canbus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Group presents several buses, keyed by bus index, as one Bus.
//
// Receive merges the members and stamps each frame with the index of the
// member it came from. Send routes a frame to the member named by Frame.Bus.
// The compute module side of a gateway uses it when every vehicle segment has
// its own upstream interface.
type Group struct {
	members map[int]Bus
	ctx     context.Context
	cancel  context.CancelFunc
	frames  chan Frame
	wg      sync.WaitGroup

	mu  sync.Mutex
	err error
}

// NewGroup starts one reader per member. The group owns the members and
// closes them on Close.
func NewGroup(members map[int]Bus) *Group {
	ctx, cancel := context.WithCancel(context.Background())
	g := &Group{
		members: members,
		ctx:     ctx,
		cancel:  cancel,
		frames:  make(chan Frame, 64*len(members)+1),
	}
	for idx, b := range members {
		g.wg.Add(1)
		go g.read(idx, b)
	}
	go func() {
		g.wg.Wait()
		close(g.frames)
	}()
	return g
}

func (g *Group) read(idx int, b Bus) {
	defer g.wg.Done()
	for {
		f, err := b.Receive(g.ctx)
		if err != nil {
			if g.ctx.Err() == nil {
				g.mu.Lock()
				if g.err == nil {
					g.err = fmt.Errorf("canbus: group member %d: %w", idx, err)
				}
				g.mu.Unlock()
				g.cancel()
			}
			return
		}
		f.Bus = idx
		select {
		case g.frames <- f:
		case <-g.ctx.Done():
			return
		}
	}
}

// Send transmits f on the member f.Bus.
func (g *Group) Send(ctx context.Context, f Frame) error {
	b, ok := g.members[f.Bus]
	if !ok {
		return fmt.Errorf("%w: %d", ErrInvalidBus, f.Bus)
	}
	return b.Send(ctx, f)
}

// Receive returns the next frame from any member. After a member fails the
// group stops and Receive returns that member's error.
func (g *Group) Receive(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-g.frames:
		if !ok {
			g.mu.Lock()
			err := g.err
			g.mu.Unlock()
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

// Close stops the readers and closes every member.
func (g *Group) Close() error {
	g.cancel()
	var errs []error
	for _, b := range g.members {
		if err := b.Close(); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, err)
		}
	}
	g.wg.Wait()
	return errors.Join(errs...)
}
