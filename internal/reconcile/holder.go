package reconcile

import "sync/atomic"

// Holder publishes the current Engine. Swapping installs a new engine for
// subsequent calls; calls already running keep the engine they loaded.
type Holder struct {
	current atomic.Pointer[Engine]
}

func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	h.current.Store(e)
	return h
}

func (h *Holder) Load() *Engine {
	return h.current.Load()
}

// Swap installs e and returns the previous engine.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}
