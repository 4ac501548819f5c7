package scanner

import (
	"context"
	"sync"
)

// gate blocks workers while the scan is paused
type gate struct {
	mutex  sync.Mutex
	cond   *sync.Cond
	paused bool
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mutex)
	return g
}

func (g *gate) pause() {
	g.mutex.Lock()
	g.paused = true
	g.mutex.Unlock()
}

func (g *gate) resume() {
	g.mutex.Lock()
	g.paused = false
	g.mutex.Unlock()
	g.cond.Broadcast()
}

func (g *gate) isPaused() bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	return g.paused
}

// wake releases waiters so they can observe cancellation
func (g *gate) wake() {
	g.mutex.Lock()
	g.mutex.Unlock()
	g.cond.Broadcast()
}

// wait blocks while paused. It returns false if ctx ended while waiting.
// Callers must arrange for wake to run when ctx is cancelled.
func (g *gate) wait(ctx context.Context) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	for g.paused && ctx.Err() == nil {
		g.cond.Wait()
	}
	return ctx.Err() == nil
}
