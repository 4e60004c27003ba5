package authgate

import "sync"

// DrainState is the process-wide shutdown flag shared between the engine
// and whatever owns the server lifecycle. It is explicit, injected state —
// not a package-level variable — so two engines in one process can drain
// independently and tests can exercise drain without globals.
//
// Reads and writes go through the lock. During drain the engine rejects
// new session-creating operations while in-flight validations complete.
type DrainState struct {
	mu       sync.Mutex
	draining bool
}

// NewDrainState returns a DrainState in the serving (not draining) state.
func NewDrainState() *DrainState {
	return &DrainState{}
}

// BeginDrain flips the flag. Idempotent.
func (d *DrainState) BeginDrain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draining = true
}

// EndDrain clears the flag, returning the engine to normal service.
func (d *DrainState) EndDrain() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.draining = false
}

// Draining reports the current drain state.
func (d *DrainState) Draining() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.draining
}
