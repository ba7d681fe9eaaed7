package proc

import "github.com/EliasA5/xv6-riscv/accnt"
import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"

// Crit_t proves that a thread holds its own lock; only Kthread_t.Lock makes
// one.
type Crit_t struct {
	kt *Kthread_t
}

func (kt *Kthread_t) Lock() Crit_t {
	kt.lock.Acquire(kt.cpu)
	return Crit_t{kt: kt}
}

func (cr Crit_t) Unlock() {
	cr.kt.lock.Release(cr.kt.cpu)
}

// Boot starts a scheduler on every cpu and the clock. Userinit must have
// been called.
func (pt *Ptable_t) Boot() {
	if pt.initproc == nil {
		panic("boot without init")
	}
	for i := range pt.cpus {
		pt.wg.Add(1)
		go pt.Scheduler(&pt.cpus[i])
	}
	pt.wg.Add(1)
	go pt.clock()
	klog.Sub("proc").Info("booted", "ncpu", len(pt.cpus),
		"policy", pt.policy.Load())
}

// Shutdown stops the schedulers once their current threads give up the
// cpu, and the clock. threads that are not running stay parked.
func (pt *Ptable_t) Shutdown() {
	if pt.shutdown.Swap(true) {
		return
	}
	close(pt.done)
	pt.kick()
	pt.wg.Wait()
}

// wake idle cpus; something became runnable
func (pt *Ptable_t) kick() {
	for i := range pt.cpus {
		pt.cpus[i].poke()
	}
}

// Scheduler is the per-cpu loop. it returns only at shutdown. each round:
//   - choose a thread to run.
//   - swtch to start running that thread.
//   - eventually that thread transfers control via swtch back to the
//     scheduler.
func (pt *Ptable_t) Scheduler(c *Cpu_t) {
	defer pt.wg.Done()
	c.Kt = nil
	for !pt.shutdown.Load() {
		// avoid deadlock by ensuring that devices can interrupt.
		c.intr_on()

		ran := false
		switch pt.policy.Load() {
		case defs.SCHED_RR:
			ran = pt.rrpass(c)
		default:
			// the pick is made without locks; run rechecks the state
			if kt := pt.pick(c); kt != nil {
				ran = pt.run(c, kt)
			}
		}
		if !ran {
			c.idle()
		}
	}
}

// one pass over the whole table, running each runnable thread once
func (pt *Ptable_t) rrpass(c *Cpu_t) bool {
	ran := false
	for i := range pt.procs {
		p := &pt.procs[i]
		for j := range p.Kts {
			if pt.shutdown.Load() {
				return ran
			}
			if pt.run(c, &p.Kts[j]) {
				ran = true
			}
		}
	}
	return ran
}

// run switches to kt if it is runnable. it is the thread's job to release
// its lock and then reacquire it before jumping back to us.
func (pt *Ptable_t) run(c *Cpu_t, kt *Kthread_t) bool {
	kt.lock.Acquire(c)
	ran := false
	if kt.state == RUNNABLE {
		kt.state = RUNNING
		kt.cpu = c
		kt.qstart = pt.ticks.Load()
		c.Kt = kt
		kt.Proc.Atime.Charge()
		pt.Stats.Nswtch.Inc()
		Swtch(&c.ctx, &kt.ctx)

		// thread is done running for now. it should have changed its
		// state before coming back.
		c.Kt = nil
		ran = true
	}
	kt.lock.Release(c)
	return ran
}

// runnable thread whose process has the smallest accumulator (priority
// policy) or virtual runtime (cfs), lowest slot first on ties.
func (pt *Ptable_t) pick(c *Cpu_t) *Kthread_t {
	pol := pt.policy.Load()
	var best *Kthread_t
	var bestkey int64
	for i := range pt.procs {
		p := &pt.procs[i]
		for j := range p.Kts {
			kt := &p.Kts[j]
			kt.lock.Acquire(c)
			ok := kt.state == RUNNABLE
			kt.lock.Release(c)
			if !ok {
				continue
			}
			var key int64
			if pol == defs.SCHED_PRIORITY {
				key = p.Atime.Accumulator()
			} else {
				key = p.Atime.Vruntime()
			}
			if best == nil || key < bestkey {
				best = kt
				bestkey = key
			}
		}
	}
	return best
}

func (pt *Ptable_t) schedcheck(cr Crit_t) *Kthread_t {
	kt := cr.kt
	c := kt.cpu
	if !kt.lock.holding(c) {
		panic("sched t->lock")
	}
	if c.noff != 1 {
		panic("sched locks")
	}
	if kt.state == RUNNING {
		panic("sched running")
	}
	if c.intr_get() {
		panic("sched interruptible")
	}
	return kt
}

// Sched switches to the scheduler. the thread must hold only its own lock
// and have changed its state. intena is saved and restored because it is a
// property of this kernel thread, not this cpu.
func (pt *Ptable_t) Sched(cr Crit_t) {
	kt := pt.schedcheck(cr)
	intena := kt.cpu.intena
	Swtch(&kt.ctx, &kt.cpu.ctx)
	// possibly on another cpu now
	kt.cpu.intena = intena
}

// schedfinal is Sched for a thread that will never run again.
func (pt *Ptable_t) schedfinal(cr Crit_t) {
	kt := pt.schedcheck(cr)
	swtchfinal(&kt.ctx, &kt.cpu.ctx)
}

// Yield gives up the cpu for one scheduling round.
func (pt *Ptable_t) Yield(t *Kthread_t) {
	cr := t.Lock()
	t.state = RUNNABLE
	pt.Sched(cr)
	cr.Unlock()
}

// a new thread's first scheduling by Scheduler() starts here.
func (pt *Ptable_t) forkret(kt *Kthread_t) {
	// still holding kt.lock from scheduler.
	kt.lock.Release(kt.cpu)

	p := kt.Proc
	p.lock.Acquire(kt.cpu)
	fn := p.ucode[p.Trapframe(kt).Epc]
	p.lock.Release(kt.cpu)

	fn(kt)
	pt.Kthread_exit(kt, 0)
}

// Set_policy switches the scheduling policy and returns the old one.
func (pt *Ptable_t) Set_policy(pol int) (int, defs.Err_t) {
	switch pol {
	case defs.SCHED_RR, defs.SCHED_PRIORITY, defs.SCHED_CFS:
	default:
		return 0, -defs.EINVAL
	}
	old := pt.policy.Swap(int32(pol))
	klog.Sub("proc").Info("policy", "old", old, "new", pol)
	return int(old), 0
}

func (pt *Ptable_t) Policy() int {
	return int(pt.policy.Load())
}

func (pt *Ptable_t) Set_ps_priority(t *Kthread_t, prio int) defs.Err_t {
	if prio < defs.PS_PRIO_MIN || prio > defs.PS_PRIO_MAX {
		return -defs.EINVAL
	}
	t.Proc.Atime.Setps(prio)
	return 0
}

func (pt *Ptable_t) Set_cfs_priority(t *Kthread_t, prio int) defs.Err_t {
	if prio < defs.CFS_PRIO_MIN || prio > defs.CFS_PRIO_MAX {
		return -defs.EINVAL
	}
	t.Proc.Atime.Setcfs(prio)
	return 0
}

// Get_cfs_stats returns the cfs priority and tick accounting of process pid.
func (pt *Ptable_t) Get_cfs_stats(t *Kthread_t, pid defs.Pid_t) (accnt.Cfsstat_t, defs.Err_t) {
	p := pt.lookup(t.cpu, pid)
	if p == nil {
		return accnt.Cfsstat_t{}, -defs.ESRCH
	}
	st := p.Atime.Fetch()
	p.lock.Release(t.cpu)
	return st, 0
}
