package pipeline

import (
	"runtime"
	"sync/atomic"
)

// console guards the terminal between the escalation worker, which
// holds it while it talks to a human, and the status worker, which only
// prints when it is free. Contention is rare and short, so acquire spins.
type console struct {
	free atomic.Bool
}

func newConsole() *console {
	c := &console{}
	c.free.Store(true)
	return c
}

func (c *console) acquire() {
	for !c.free.CompareAndSwap(true, false) {
		runtime.Gosched()
	}
}

func (c *console) tryAcquire() bool {
	return c.free.CompareAndSwap(true, false)
}

func (c *console) release() {
	c.free.Store(true)
}
