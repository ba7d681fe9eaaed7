package proc

import "sync"
import "sync/atomic"

// Spinlock_t is a mutual exclusion lock owned by a cpu rather than by a
// goroutine, so it may be released by a different goroutine than the one
// that acquired it, as long as both ran on the same cpu. holding one keeps
// "interrupts" off on that cpu.
type Spinlock_t struct {
	mu   sync.Mutex
	cpu  atomic.Pointer[Cpu_t]
	name string
}

func (l *Spinlock_t) Init(name string) {
	l.name = name
}

func (l *Spinlock_t) Acquire(c *Cpu_t) {
	// disable interrupts to avoid deadlock.
	c.push_off()
	if l.holding(c) {
		panic("acquire " + l.name)
	}
	l.mu.Lock()
	l.cpu.Store(c)
}

func (l *Spinlock_t) Release(c *Cpu_t) {
	if !l.holding(c) {
		panic("release " + l.name)
	}
	l.cpu.Store(nil)
	l.mu.Unlock()
	c.pop_off()
}

// is this cpu holding the lock? interrupts must be off.
func (l *Spinlock_t) holding(c *Cpu_t) bool {
	return l.cpu.Load() == c
}
