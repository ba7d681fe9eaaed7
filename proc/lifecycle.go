package proc

import "encoding/binary"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/mem"
import "github.com/EliasA5/xv6-riscv/util"
import "github.com/EliasA5/xv6-riscv/vm"

// Userinit sets up the first user process, running fn. it must be called
// before Boot.
func (pt *Ptable_t) Userinit(fn Ufunc_t) *Proc_t {
	if pt.initproc != nil {
		panic("two inits")
	}
	c := &pt.cpus[0]
	p := pt.allocproc(c)
	if p == nil {
		panic("userinit: allocproc")
	}
	// one page of user memory, like the initcode page
	sz, err := p.Vm.Uvmalloc(0, mem.PGSIZE, vm.PTE_W|vm.PTE_X)
	if err != 0 {
		panic("userinit: uvmalloc")
	}
	p.Vm.Sz = sz
	kt := pt.allockthread(c, p)
	p.ucode = []Ufunc_t{fn}
	tf := p.Trapframe(kt)
	// user program counter and stack pointer
	tf.Epc = 0
	tf.Sp = uint64(mem.PGSIZE)
	p.Name = "init"
	p.state = RUNNABLE
	kt.state = RUNNABLE
	kt.lock.Release(c)
	p.lock.Release(c)
	pt.initproc = p
	return p
}

// Fork creates a child process that is a copy of t's process: memory, swap
// contents and t's saved registers. the child's single thread runs fn and
// sees A0 == 0. returns the child's pid, or -1.
func (pt *Ptable_t) Fork(t *Kthread_t, fn Ufunc_t) defs.Pid_t {
	p := t.Proc
	c := t.cpu
	p.lock.Acquire(c)
	ucode := append([]Ufunc_t(nil), p.ucode...)
	name := p.Name
	p.lock.Release(c)

	np := pt.allocproc(c)
	if np == nil {
		return -1
	}

	// copy user memory, and the swapped pages, from parent to child.
	p.Vm.Lock_pmap()
	err := p.Vm.Uvmcopy(&np.Vm, p.Vm.Sz)
	if err == 0 {
		np.Vm.Sz = p.Vm.Sz
		if p.Swap != nil {
			if e := p.Swap.Fork(np.Swap); e != nil {
				klog.Sub("proc").Error("fork swap", "pid", p.Pid, "err", e)
				err = -defs.EIO
			}
		}
	}
	p.Vm.Unlock_pmap()
	if err != 0 {
		pt.freeproc(c, np)
		np.lock.Release(c)
		return -1
	}

	nkt := pt.allockthread(c, np)
	ntf := np.Trapframe(nkt)
	*ntf = *p.Trapframe(t)
	// cause fork to return 0 in the child.
	ntf.A0 = 0
	ntf.Epc = uint64(len(ucode))
	np.ucode = append(ucode, fn)
	np.Name = name
	pid := np.Pid
	nkt.lock.Release(c)
	np.lock.Release(c)

	g := pt.Lockwait(t)
	np.parent = p.Ref()
	g.Unlock()

	np.lock.Acquire(c)
	np.state = RUNNABLE
	nkt.lock.Acquire(c)
	nkt.state = RUNNABLE
	nkt.lock.Release(c)
	np.lock.Release(c)
	pt.kick()
	pt.Stats.Nfork.Inc()
	klog.Sub("proc").Debug("fork", "parent", p.Pid, "pid", pid)
	return pid
}

// pass p's abandoned children to init. g must be held.
func (pt *Ptable_t) reparent(g *Waitguard_t, p *Proc_t) {
	me := p.Ref()
	for i := range pt.procs {
		pp := &pt.procs[i]
		if pp.parent == me {
			pp.parent = pt.initproc.Ref()
			pt.Wakeup(g.t, pt.initproc)
		}
	}
}

// Exit ends t's process with status and msg; msg is kept for the parent's
// wait. the other threads are killed and the caller waits until they are
// all zombies. if another thread is already exiting the process, t just
// becomes a zombie. does not return. an exited process remains in the
// zombie state until its parent calls wait.
func (pt *Ptable_t) Exit(t *Kthread_t, status int, msg string) {
	p := t.Proc
	if p == pt.initproc {
		panic("init exiting")
	}
	c := t.cpu
	p.lock.Acquire(c)
	if p.exiting {
		pt.ktzombie(t, status)
	}
	p.exiting = true
	for i := range p.Kts {
		kt := &p.Kts[i]
		if kt == t {
			continue
		}
		kt.lock.Acquire(c)
		if kt.state != UNUSED && kt.state != ZOMBIE {
			kt.killed = true
			if kt.state == SLEEPING {
				kt.state = RUNNABLE
			}
		}
		kt.lock.Release(c)
	}
	pt.kick()
	for !pt.lastkt(t.cpu, p, t) {
		pt.Sleep(t, p, &p.lock)
	}
	c = t.cpu
	for i := range p.Kts {
		kt := &p.Kts[i]
		if kt == t {
			continue
		}
		kt.lock.Acquire(c)
		if kt.state == ZOMBIE {
			kt.freekthread()
		}
		kt.lock.Release(c)
	}
	pid := p.Pid
	p.lock.Release(c)

	if p.Swap != nil {
		p.Vm.Lock_pmap()
		p.Swap.Remove()
		p.Vm.Unlock_pmap()
	}

	g := pt.Lockwait(t)

	// give any children to init.
	pt.reparent(g, p)

	// parent might be sleeping in wait().
	if pp := pt.Deref(p.parent); pp != nil {
		pt.Wakeup(t, pp)
	}

	c = t.cpu
	p.lock.Acquire(c)
	p.xstate = status
	util.Safestrcpy(p.xmsg[:], msg)
	p.state = ZOMBIE
	cr := t.Lock()
	t.xstate = status
	t.state = ZOMBIE
	p.lock.Release(c)
	g.Unlock()

	pt.Stats.Nexit.Inc()
	klog.Sub("proc").Debug("exit", "pid", pid, "status", status, "msg", msg)
	// jump into the scheduler, never to return.
	pt.schedfinal(cr)
	panic("zombie exit")
}

// Wait waits for a child process to exit and returns its pid, exit status
// and message. if addr is not zero the status is also copied out to that
// user address. fails with -ECHILD if there are no children and -EINTR if
// the caller is killed.
func (pt *Ptable_t) Wait(t *Kthread_t, addr int) (defs.Pid_t, int, string, defs.Err_t) {
	p := t.Proc
	me := p.Ref()
	g := pt.Lockwait(t)
	for {
		// scan through table looking for exited children.
		havekids := false
		for i := range pt.procs {
			pp := &pt.procs[i]
			if pp.parent != me {
				continue
			}
			// make sure the child isn't still in exit() or swtch().
			g.Lockproc(pp)
			havekids = true
			if pp.state == ZOMBIE {
				pid := pp.Pid
				st := pp.xstate
				msg := util.Cstr(pp.xmsg[:])
				if addr != 0 {
					var buf [4]uint8
					binary.LittleEndian.PutUint32(buf[:], uint32(int32(st)))
					if err := p.Vm.K2user(buf[:], addr); err != 0 {
						g.Unlockproc(pp)
						g.Unlock()
						return -1, 0, "", err
					}
				}
				pt.freeproc(t.cpu, pp)
				g.Unlockproc(pp)
				g.Unlock()
				return pid, st, msg, 0
			}
			g.Unlockproc(pp)
		}

		// no point waiting if we don't have any children.
		if !havekids {
			g.Unlock()
			return -1, 0, "", -defs.ECHILD
		}
		if pt.Killed(t) {
			g.Unlock()
			return -1, 0, "", -defs.EINTR
		}

		// wait for a child to exit.
		g.Sleep(p)
	}
}

// Kill marks process pid killed. its threads exit the next time they
// return to user space; sleeping ones are woken so that they notice.
func (pt *Ptable_t) Kill(t *Kthread_t, pid defs.Pid_t) defs.Err_t {
	c := t.cpu
	p := pt.lookup(c, pid)
	if p == nil {
		return -defs.ESRCH
	}
	p.killed = true
	for i := range p.Kts {
		kt := &p.Kts[i]
		if kt == t {
			continue
		}
		kt.lock.Acquire(c)
		if kt.state == SLEEPING {
			// wake thread from sleep().
			kt.state = RUNNABLE
		}
		kt.lock.Release(c)
	}
	p.lock.Release(c)
	pt.kick()
	return 0
}

func (pt *Ptable_t) Setkilled(t *Kthread_t) {
	p := t.Proc
	p.lock.Acquire(t.cpu)
	p.killed = true
	p.lock.Release(t.cpu)
}

// Killed reports whether t or its process was killed.
func (pt *Ptable_t) Killed(t *Kthread_t) bool {
	p := t.Proc
	c := t.cpu
	p.lock.Acquire(c)
	k := p.killed
	p.lock.Release(c)
	cr := t.Lock()
	k = k || t.killed
	cr.Unlock()
	return k
}

func (pt *Ptable_t) Getpid(t *Kthread_t) defs.Pid_t {
	return t.Proc.Pid
}
