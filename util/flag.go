package util

import (
	"sync"
)

// Flag is a one-way boolean: it starts unset and can only ever move to
// set. It is the pipeline's cancellation token; stages poll IsSet at
// their loop heads and anything may Wait for it. Setting the flag does
// not wake goroutines blocked elsewhere, so shutdown must also close
// the queues they may be waiting on.
type Flag struct {
	set bool
	c   *sync.Cond
}

func NewFlag() *Flag {
	return &Flag{
		c: sync.NewCond(&sync.Mutex{}),
	}
}

// Set raises the flag. Idempotent.
func (f *Flag) Set() {
	f.c.L.Lock()
	defer f.c.L.Unlock()
	if !f.set {
		f.set = true
		f.c.Broadcast()
	}
}

// IsSet reports whether the flag has been raised.
func (f *Flag) IsSet() bool {
	f.c.L.Lock()
	defer f.c.L.Unlock()
	return f.set
}

// Wait blocks until the flag is raised.
func (f *Flag) Wait() {
	f.c.L.Lock()
	defer f.c.L.Unlock()
	for !f.set {
		f.c.Wait()
	}
}
