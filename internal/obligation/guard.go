package obligation

import "sync/atomic"

// Guard provides single-flight mutual exclusion and a pause switch for a
// queue. RunBatch and Compact assume they execute under TryEnter/Exit; they
// are not safe for concurrent unguarded invocation against the same queue.
type Guard struct {
	busy   atomic.Bool
	paused atomic.Bool
}

// TryEnter acquires the single-flight slot. Returns ErrPaused when the queue
// is paused and ErrBusy when another invocation holds the slot.
func (g *Guard) TryEnter() error {
	if g.paused.Load() {
		return ErrPaused
	}
	if !g.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	// Re-check after acquisition so a concurrent Pause cannot be outraced.
	if g.paused.Load() {
		g.busy.Store(false)
		return ErrPaused
	}
	return nil
}

// Exit releases the single-flight slot.
func (g *Guard) Exit() { g.busy.Store(false) }

// Pause blocks future TryEnter calls until Resume.
func (g *Guard) Pause() { g.paused.Store(true) }

// Resume lifts a pause.
func (g *Guard) Resume() { g.paused.Store(false) }

// Paused reports the pause flag.
func (g *Guard) Paused() bool { return g.paused.Load() }
