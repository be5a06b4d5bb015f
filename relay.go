package compress

import (
	"errors"
	"runtime"
)

// relayContext confines the surface relay to a single goroutine that
// exclusively owns the graphics context. Render calls from the pump
// are redirected onto that goroutine's queue; cross-thread use of the
// graphics handle is never allowed.
type relayContext struct {
	relay SurfaceRelay

	ops      chan relayOp
	done     chan struct{}
	closeErr error
}

type relayOp struct {
	frame  *FrameUnit
	dst    Surface
	result chan error
}

var errRelayClosed = errors.New("relay context closed")

func newRelayContext(relay SurfaceRelay) *relayContext {
	c := &relayContext{
		relay: relay,
		ops:   make(chan relayOp),
		done:  make(chan struct{}),
	}
	go c.loop()
	return c
}

// loop runs on the goroutine that owns the graphics context. The relay
// is also closed here so its teardown happens on the owning thread.
func (c *relayContext) loop() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for op := range c.ops {
		op.result <- c.relay.Render(op.frame, op.dst)
	}
	c.closeErr = c.relay.Close()
	close(c.done)
}

// Render composites a frame onto dst at the frame's presentation
// timestamp, executed on the owner goroutine. Blocks until done.
func (c *relayContext) Render(frame *FrameUnit, dst Surface) error {
	op := relayOp{frame: frame, dst: dst, result: make(chan error, 1)}
	select {
	case c.ops <- op:
		return <-op.result
	case <-c.done:
		return errRelayClosed
	}
}

// Close drains the queue, tears the relay down on its owner goroutine
// and waits for it to finish. Safe to call once.
func (c *relayContext) Close() error {
	close(c.ops)
	<-c.done
	return c.closeErr
}
