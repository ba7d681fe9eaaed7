package proc

import "time"

// clock interrupts Clockintr every Tickus microseconds until shutdown.
func (pt *Ptable_t) clock() {
	defer pt.wg.Done()
	tk := time.NewTicker(time.Duration(pt.lim.Tickus) * time.Microsecond)
	defer tk.Stop()
	for {
		select {
		case <-pt.done:
			return
		case <-tk.C:
			pt.Clockintr()
		}
	}
}

// Clockintr charges the tick to every process according to what its
// threads were doing when it arrived, then advances the tick count and
// wakes sleepers. it runs on the clock's own cpu.
func (pt *Ptable_t) Clockintr() {
	c := &pt.irq
	for i := range pt.procs {
		p := &pt.procs[i]
		var running, runnable, sleeping, live bool
		for j := range p.Kts {
			kt := &p.Kts[j]
			kt.lock.Acquire(c)
			switch kt.state {
			case RUNNING:
				running = true
			case RUNNABLE:
				runnable = true
			case SLEEPING:
				sleeping = true
			}
			if kt.state != UNUSED {
				live = true
			}
			kt.lock.Release(c)
		}
		if live {
			p.Atime.Tick(running, runnable, sleeping)
		}
	}

	pt.tickslock.Acquire(c)
	pt.ticks.Add(1)
	pt.Wakeup(nil, &pt.ticks)
	pt.tickslock.Release(c)
}

func (pt *Ptable_t) Uptime() int64 {
	return pt.ticks.Load()
}

// Sleepticks sleeps for n clock ticks. returns -1 if t is killed
// meanwhile.
func (pt *Ptable_t) Sleepticks(t *Kthread_t, n int) int {
	pt.tickslock.Acquire(t.cpu)
	t0 := pt.ticks.Load()
	for pt.ticks.Load()-t0 < int64(n) {
		if pt.Killed(t) {
			pt.tickslock.Release(t.cpu)
			return -1
		}
		pt.Sleep(t, &pt.ticks, &pt.tickslock)
	}
	pt.tickslock.Release(t.cpu)
	return 0
}

// Usertrap runs on every return to user space: a killed thread or process
// exits here, and a thread that used up its quantum yields.
func (pt *Ptable_t) Usertrap(t *Kthread_t) {
	if pt.Kthread_killed(t) {
		pt.Kthread_exit(t, -1)
	}
	if pt.Killed(t) {
		pt.Exit(t, -1, "")
	}
	if pt.ticks.Load() > t.qstart {
		pt.Yield(t)
	}
}
