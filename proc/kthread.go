package proc

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"

// Kthread_create starts a new thread of t's process running fn on the user
// stack [stackva, stackva+size). returns the new tid, or -1 if every thread
// slot is taken.
func (pt *Ptable_t) Kthread_create(t *Kthread_t, fn Ufunc_t, stackva,
	size int) defs.Tid_t {
	p := t.Proc
	c := t.cpu
	p.lock.Acquire(c)
	if p.exiting {
		p.lock.Release(c)
		return -1
	}
	nkt := pt.allockthread(c, p)
	if nkt == nil {
		p.lock.Release(c)
		return -1
	}
	tf := p.Trapframe(nkt)
	tf.Epc = uint64(len(p.ucode))
	p.ucode = append(p.ucode, fn)
	tf.Sp = uint64(stackva + size)
	nkt.state = RUNNABLE
	tid := nkt.Tid
	nkt.lock.Release(c)
	p.lock.Release(c)
	pt.kick()
	klog.Sub("proc").Debug("kthread_create", "pid", p.Pid, "tid", tid)
	return tid
}

func (pt *Ptable_t) Kthread_id(t *Kthread_t) defs.Tid_t {
	cr := t.Lock()
	tid := t.Tid
	cr.Unlock()
	return tid
}

// Kthread_kill marks thread tid of t's process killed. the victim exits the
// next time it returns to user space; a sleeping victim is woken so that it
// notices promptly.
func (pt *Ptable_t) Kthread_kill(t *Kthread_t, tid defs.Tid_t) defs.Err_t {
	p := t.Proc
	c := t.cpu
	for i := range p.Kts {
		kt := &p.Kts[i]
		kt.lock.Acquire(c)
		if kt.Tid == tid && kt.state != UNUSED && kt.state != ZOMBIE {
			kt.killed = true
			if kt.state == SLEEPING {
				kt.state = RUNNABLE
			}
			kt.lock.Release(c)
			pt.kick()
			return 0
		}
		kt.lock.Release(c)
	}
	return -defs.ESRCH
}

func (pt *Ptable_t) Kthread_killed(t *Kthread_t) bool {
	cr := t.Lock()
	k := t.killed
	cr.Unlock()
	return k
}

// Kthread_join is not supported.
func (pt *Ptable_t) Kthread_join(t *Kthread_t, tid defs.Tid_t, status int) defs.Err_t {
	return -defs.ENOSYS
}

// are all threads of p other than t gone? p.lock must be held.
func (pt *Ptable_t) lastkt(c *Cpu_t, p *Proc_t, t *Kthread_t) bool {
	for i := range p.Kts {
		kt := &p.Kts[i]
		if kt == t {
			continue
		}
		kt.lock.Acquire(c)
		st := kt.state
		kt.lock.Release(c)
		if st != UNUSED && st != ZOMBIE {
			return false
		}
	}
	return true
}

// Kthread_exit ends t. if t was the last live thread of its process, the
// whole process exits with status. does not return.
func (pt *Ptable_t) Kthread_exit(t *Kthread_t, status int) {
	p := t.Proc
	c := t.cpu
	p.lock.Acquire(c)
	if pt.lastkt(c, p, t) {
		p.lock.Release(c)
		pt.Exit(t, status, "")
	}
	pt.ktzombie(t, status)
}

// ktzombie turns t into a zombie and leaves the cpu for good. p.lock must
// be held.
func (pt *Ptable_t) ktzombie(t *Kthread_t, status int) {
	p := t.Proc
	// an exiting sibling may wait for us
	pt.Wakeup(t, p)
	klog.Sub("proc").Debug("kthread_exit", "pid", p.Pid, "tid", t.Tid,
		"status", status)
	cr := t.Lock()
	t.xstate = status
	t.state = ZOMBIE
	p.lock.Release(t.cpu)
	pt.schedfinal(cr)
	panic("zombie exit")
}
