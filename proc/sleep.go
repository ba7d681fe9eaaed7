package proc

// Sleep atomically releases lk and sleeps on ch. lk is reacquired when the
// thread is woken.
func (pt *Ptable_t) Sleep(t *Kthread_t, ch interface{}, lk *Spinlock_t) {
	// once we hold t.lock we can be guaranteed that we won't miss any
	// wakeup (wakeup locks t.lock), so it's okay to release lk.
	cr := t.Lock()
	lk.Release(t.cpu)

	t.chan_ = ch
	t.state = SLEEPING

	pt.Sched(cr)

	t.chan_ = nil

	cr.Unlock()
	lk.Acquire(t.cpu)
}

// Wakeup makes every thread sleeping on ch runnable, except the caller.
// caller may be nil when called from the clock. must be called without any
// thread lock held.
func (pt *Ptable_t) Wakeup(caller *Kthread_t, ch interface{}) {
	c := &pt.irq
	if caller != nil {
		c = caller.cpu
	}
	woke := false
	for i := range pt.procs {
		p := &pt.procs[i]
		for j := range p.Kts {
			kt := &p.Kts[j]
			if kt == caller {
				continue
			}
			kt.lock.Acquire(c)
			if kt.state == SLEEPING && kt.chan_ == ch {
				kt.state = RUNNABLE
				woke = true
			}
			kt.lock.Release(c)
		}
	}
	if woke {
		pt.Stats.Nwakeup.Inc()
		pt.kick()
	}
}

// Waitguard_t is held while the wait lock is. it is the only way to take
// the wait lock and the only way to take process locks under it.
type Waitguard_t struct {
	pt *Ptable_t
	t  *Kthread_t
}

// Lockwait acquires the wait lock. it must be the first lock t takes.
func (pt *Ptable_t) Lockwait(t *Kthread_t) *Waitguard_t {
	if t.cpu.noff != 0 {
		panic("wait lock must be taken first")
	}
	pt.waitlock.Acquire(t.cpu)
	return &Waitguard_t{pt: pt, t: t}
}

func (g *Waitguard_t) Lockproc(p *Proc_t) {
	p.lock.Acquire(g.t.cpu)
}

func (g *Waitguard_t) Unlockproc(p *Proc_t) {
	p.lock.Release(g.t.cpu)
}

func (g *Waitguard_t) Unlock() {
	g.pt.waitlock.Release(g.t.cpu)
}

// Sleep sleeps on ch, releasing the wait lock meanwhile.
func (g *Waitguard_t) Sleep(ch interface{}) {
	g.pt.Sleep(g.t, ch, &g.pt.waitlock)
}
