package proc

import "time"

// Cpu_t is one simulated processor. its fields are only touched by the
// goroutine that currently occupies the cpu: the scheduler or the thread it
// switched to.
type Cpu_t struct {
	Id int
	// the thread running on this cpu, or nil
	Kt *Kthread_t
	// swtch here to enter the scheduler
	ctx Context_t
	// depth of push_off nesting
	noff int
	// were interrupts enabled before push_off?
	intena bool
	intr   bool
	kick   chan struct{}
}

func (c *Cpu_t) init(id int) {
	c.Id = id
	c.ctx = Context_t{wake: make(chan struct{}, 1), started: true}
	c.kick = make(chan struct{}, 1)
}

func (c *Cpu_t) intr_on() {
	c.intr = true
}

func (c *Cpu_t) intr_off() {
	c.intr = false
}

func (c *Cpu_t) intr_get() bool {
	return c.intr
}

// push_off/pop_off are like intr_off()/intr_on() except that they are
// matched: it takes two pop_off()s to undo two push_off()s. also, if
// interrupts are initially off, then push_off, pop_off leaves them off.
func (c *Cpu_t) push_off() {
	old := c.intr_get()
	c.intr_off()
	if c.noff == 0 {
		c.intena = old
	}
	c.noff++
}

func (c *Cpu_t) pop_off() {
	if c.intr_get() {
		panic("pop_off - interruptible")
	}
	if c.noff < 1 {
		panic("pop_off")
	}
	c.noff--
	if c.noff == 0 && c.intena {
		c.intr_on()
	}
}

// wait for runnable work
func (c *Cpu_t) idle() {
	t := time.NewTimer(time.Millisecond)
	select {
	case <-c.kick:
	case <-t.C:
	}
	t.Stop()
}

func (c *Cpu_t) poke() {
	select {
	case c.kick <- struct{}{}:
	default:
	}
}
