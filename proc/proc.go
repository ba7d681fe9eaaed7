package proc

import "fmt"
import "sync"
import "sync/atomic"
import "unsafe"

import "github.com/EliasA5/xv6-riscv/accnt"
import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/hashtable"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/limits"
import "github.com/EliasA5/xv6-riscv/mem"
import "github.com/EliasA5/xv6-riscv/stats"
import "github.com/EliasA5/xv6-riscv/swap"
import "github.com/EliasA5/xv6-riscv/vm"

type Procstate_t int

const (
	UNUSED Procstate_t = iota
	USED
	SLEEPING
	RUNNABLE
	RUNNING
	ZOMBIE
)

var statenames = [...]string{
	UNUSED:   "unused",
	USED:     "used",
	SLEEPING: "sleep ",
	RUNNABLE: "runble",
	RUNNING:  "run   ",
	ZOMBIE:   "zombie",
}

func (s Procstate_t) String() string {
	if s >= 0 && int(s) < len(statenames) {
		return statenames[s]
	}
	return "???"
}

// Ufunc_t is a user program. it runs on its own kernel thread and returns
// to exit the thread.
type Ufunc_t func(*Kthread_t)

// saved user registers of one thread. Epc indexes the process' user text.
type Trapframe_t struct {
	Kernel_sp uint64
	Epc       uint64
	Ra        uint64
	Sp        uint64
	A0        uint64
	A1        uint64
	A2        uint64
	A3        uint64
	A4        uint64
	A5        uint64
	A6        uint64
	A7        uint64
}

// Ref_t names a process table slot. it goes stale when the slot is freed.
type Ref_t struct {
	Idx int
	Gen uint32
}

var noref = Ref_t{Idx: -1}

type Kthread_t struct {
	lock Spinlock_t

	// lock must be held when using these:
	state Procstate_t
	// if non-nil, sleeping on chan
	chan_  interface{}
	killed bool
	xstate int
	Tid    defs.Tid_t

	// the process this thread belongs to; never changes
	Proc *Proc_t
	// index into Proc.Kts and the trapframe page
	idx int

	ctx Context_t
	// the cpu this thread is running on; only meaningful to the thread
	// itself
	cpu *Cpu_t
	// tick at which the thread was last dispatched
	qstart int64
}

type Proc_t struct {
	lock Spinlock_t

	// lock must be held when using these:
	state   Procstate_t
	Pid     defs.Pid_t
	killed  bool
	exiting bool
	xstate  int
	xmsg    [defs.EXITMSGLEN]uint8
	// user text; a trapframe's Epc indexes it
	ucode []Ufunc_t
	Name  string

	// protected by the wait lock
	parent Ref_t

	idx int
	gen atomic.Uint32

	// Vm, its pmap lock protects Swap
	Vm   vm.Vm_t
	Swap *swap.Swap_t

	tidlock Spinlock_t
	nexttid defs.Tid_t

	Kts  []Kthread_t
	tfpa mem.Pa_t
	tfs  []Trapframe_t

	Atime accnt.Accnt_t
}

func (p *Proc_t) Ref() Ref_t {
	return Ref_t{Idx: p.idx, Gen: p.gen.Load()}
}

// Trapframe returns kt's slot of its process' trapframe page.
func (p *Proc_t) Trapframe(kt *Kthread_t) *Trapframe_t {
	if kt.Proc != p {
		panic("trapframe of foreign thread")
	}
	return &p.tfs[kt.idx]
}

type ptstats_t struct {
	Nswtch  stats.Counter_t
	Nfork   stats.Counter_t
	Nexit   stats.Counter_t
	Nkthr   stats.Counter_t
	Nwakeup stats.Counter_t
}

// Ptable_t holds every process, thread and cpu of the kernel.
type Ptable_t struct {
	lim   *limits.Syslimit_t
	phys  *mem.Physmem_t
	procs []Proc_t
	cpus  []Cpu_t
	// the clock goroutine runs on irq; debugging dumps run on dbg
	irq Cpu_t
	dbg Cpu_t

	pidlock Spinlock_t
	nextpid defs.Pid_t
	// pid -> Ref_t of live processes
	pids *hashtable.Hashtable_t

	// helps ensure that wakeups of wait()ing parents are not lost. helps
	// obey the memory model when using p.parent. must be acquired before
	// any p.lock.
	waitlock Spinlock_t

	initproc   *Proc_t
	trampoline mem.Pa_t

	tickslock Spinlock_t
	ticks     atomic.Int64

	policy   atomic.Int32
	shutdown atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	Stats ptstats_t
}

// Mkptable builds the process table for lim on top of phys.
func Mkptable(lim *limits.Syslimit_t, phys *mem.Physmem_t) *Ptable_t {
	if n := unsafe.Sizeof(Trapframe_t{}) * uintptr(lim.Nkt); n > uintptr(mem.PGSIZE) {
		panic(fmt.Sprintf("%d threads do not fit a trapframe page", lim.Nkt))
	}
	pt := &Ptable_t{lim: lim, phys: phys}
	pt.pidlock.Init("nextpid")
	pt.waitlock.Init("wait_lock")
	pt.tickslock.Init("time")
	pt.nextpid = 1
	pt.pids = hashtable.MkHash(lim.Nproc)
	pt.done = make(chan struct{})
	pt.procs = make([]Proc_t, lim.Nproc)
	for i := range pt.procs {
		p := &pt.procs[i]
		p.lock.Init("proc")
		p.tidlock.Init("thrd_counter")
		p.idx = i
		p.gen.Store(1)
		p.parent = noref
		p.Kts = make([]Kthread_t, lim.Nkt)
		for j := range p.Kts {
			kt := &p.Kts[j]
			kt.lock.Init("thrd_lock")
			kt.Proc = p
			kt.idx = j
		}
	}
	pt.cpus = make([]Cpu_t, lim.Ncpu)
	for i := range pt.cpus {
		pt.cpus[i].init(i)
	}
	pt.irq.init(-1)
	pt.dbg.init(-2)
	pa, ok := phys.Kzalloc()
	if !ok {
		panic("no memory for trampoline")
	}
	pt.trampoline = pa
	switch lim.Policy {
	case "priority":
		pt.policy.Store(defs.SCHED_PRIORITY)
	case "cfs":
		pt.policy.Store(defs.SCHED_CFS)
	default:
		pt.policy.Store(defs.SCHED_RR)
	}
	return pt
}

func (pt *Ptable_t) Phys() *mem.Physmem_t {
	return pt.phys
}

// Deref returns the process r names, or nil if the slot was freed since.
func (pt *Ptable_t) Deref(r Ref_t) *Proc_t {
	if r.Idx < 0 || r.Idx >= len(pt.procs) {
		return nil
	}
	p := &pt.procs[r.Idx]
	if p.gen.Load() != r.Gen {
		return nil
	}
	return p
}

// lookup returns the live process with pid, locked, or nil.
func (pt *Ptable_t) lookup(c *Cpu_t, pid defs.Pid_t) *Proc_t {
	v, ok := pt.pids.Get(pid)
	if !ok {
		return nil
	}
	p := pt.Deref(v.(Ref_t))
	if p == nil {
		return nil
	}
	p.lock.Acquire(c)
	if p.Pid != pid || p.state == UNUSED {
		p.lock.Release(c)
		return nil
	}
	return p
}

func (pt *Ptable_t) allocpid(c *Cpu_t) defs.Pid_t {
	pt.pidlock.Acquire(c)
	pid := pt.nextpid
	pt.nextpid++
	pt.pidlock.Release(c)
	return pid
}

func (p *Proc_t) alloctid(c *Cpu_t) defs.Tid_t {
	p.tidlock.Acquire(c)
	p.nexttid++
	tid := p.nexttid
	p.tidlock.Release(c)
	return tid
}

// smallest accumulator among live processes other than me, so that a new
// process does not monopolize the priority scheduler.
func (pt *Ptable_t) minaccum(me *Proc_t) int64 {
	var min int64
	found := false
	pt.pids.Iter(func(_ defs.Pid_t, v interface{}) bool {
		p := pt.Deref(v.(Ref_t))
		if p == nil || p == me {
			return false
		}
		a := p.Atime.Accumulator()
		if !found || a < min {
			min = a
			found = true
		}
		return false
	})
	return min
}

// allocproc looks for an UNUSED process slot. if found, it is initialized
// with a fresh pid, a trapframe page and a page table that maps the
// trampoline and the trapframes, and returned with p.lock held. the caller
// must finish populating the process and release p.lock. returns nil if
// there are no free slots or memory runs out; nothing is left allocated in
// that case.
func (pt *Ptable_t) allocproc(c *Cpu_t) *Proc_t {
	var p *Proc_t
	for i := range pt.procs {
		pp := &pt.procs[i]
		pp.lock.Acquire(c)
		if pp.state == UNUSED {
			p = pp
			break
		}
		pp.lock.Release(c)
	}
	if p == nil {
		return nil
	}
	if !pt.lim.Procs.Take() {
		p.lock.Release(c)
		return nil
	}
	p.Pid = pt.allocpid(c)
	p.state = USED
	p.nexttid = 0
	pt.pids.Set(p.Pid, p.Ref())

	fail := func(what string) *Proc_t {
		klog.Sub("proc").Warn("allocproc failed", "pid", p.Pid, "what", what)
		pt.freeproc(c, p)
		p.lock.Release(c)
		return nil
	}

	tfpa, ok := pt.phys.Kzalloc()
	if !ok {
		return fail("trapframe")
	}
	p.tfpa = tfpa
	tfpg := pt.phys.Dmap(tfpa)
	p.tfs = unsafe.Slice((*Trapframe_t)(unsafe.Pointer(tfpg)), pt.lim.Nkt)

	if !p.Vm.Uvmcreate(pt.phys) {
		return fail("pagetable")
	}
	// the trampoline is only used by the supervisor, on the way to/from
	// user space, so not PTE_U.
	if p.Vm.Mappages(vm.TRAMPOLINE, mem.PGSIZE, pt.trampoline,
		vm.PTE_R|vm.PTE_X) != 0 {
		return fail("trampoline")
	}
	if p.Vm.Mappages(vm.TRAPFRAME, mem.PGSIZE, p.tfpa,
		vm.PTE_R|vm.PTE_W) != 0 {
		return fail("trapframe map")
	}

	sw, err := swap.Mkswap(pt.lim, p.Pid)
	if err != nil {
		klog.Sub("proc").Error("swap store", "pid", p.Pid, "err", err)
		return fail("swap")
	}
	p.Swap = sw
	if sw != nil {
		p.Vm.Fault = sw
	}
	p.Atime.Init(defs.PS_PRIO_DEF, defs.CFS_PRIO_DEF, pt.minaccum(p))
	return p
}

func (pt *Ptable_t) unmapif(p *Proc_t, va int) {
	if pte := p.Vm.Walk(va, false); pte != nil && *pte&vm.PTE_V != 0 {
		p.Vm.Unmap(va, 1, false, nil)
	}
}

// free a proc structure and the data hanging from it, including user pages
// and swap slots. p.lock must be held.
func (pt *Ptable_t) freeproc(c *Cpu_t, p *Proc_t) {
	for i := range p.Kts {
		kt := &p.Kts[i]
		// waits for a thread that is still switching away
		kt.lock.Acquire(c)
		kt.freekthread()
		kt.lock.Release(c)
	}
	as := &p.Vm
	as.Lock_pmap()
	if as.P_pmap != 0 {
		pt.unmapif(p, vm.TRAMPOLINE)
		pt.unmapif(p, vm.TRAPFRAME)
		var freeslot func(int)
		if p.Swap != nil {
			freeslot = p.Swap.Freeslot
		}
		as.Uvmfree(as.Sz, freeslot)
	}
	if p.Swap != nil {
		p.Swap.Remove()
		p.Swap.Pol.Clear()
		p.Swap = nil
	}
	as.Fault = nil
	as.Unlock_pmap()
	if p.tfpa != 0 {
		pt.phys.Kfree(p.tfpa)
		p.tfpa = 0
		p.tfs = nil
	}
	if p.Pid != 0 {
		pt.pids.Del(p.Pid)
		pt.lim.Procs.Give()
	}
	p.Pid = 0
	p.parent = noref
	p.Name = ""
	p.killed = false
	p.exiting = false
	p.xstate = 0
	p.xmsg = [defs.EXITMSGLEN]uint8{}
	p.ucode = nil
	p.state = UNUSED
	p.gen.Add(1)
}

// allockthread finds a free thread slot of p, which is UNUSED or a ZOMBIE
// that has switched away for good, and prepares it to start at forkret.
// p.lock must be held. the thread is returned with its lock held, or nil
// if all slots are taken.
func (pt *Ptable_t) allockthread(c *Cpu_t, p *Proc_t) *Kthread_t {
	for i := range p.Kts {
		kt := &p.Kts[i]
		kt.lock.Acquire(c)
		if kt.state == UNUSED || kt.state == ZOMBIE {
			kt.freekthread()
			kt.Tid = p.alloctid(c)
			kt.state = USED
			kt.ctx = Context_t{wake: make(chan struct{}, 1)}
			kt.ctx.entry = func() {
				pt.forkret(kt)
			}
			tf := p.Trapframe(kt)
			*tf = Trapframe_t{}
			tf.Kernel_sp = uint64(vm.TRAPFRAME)
			pt.Stats.Nkthr.Inc()
			return kt
		}
		kt.lock.Release(c)
	}
	return nil
}

// kt.lock must be held.
func (kt *Kthread_t) freekthread() {
	kt.Tid = 0
	kt.chan_ = nil
	kt.killed = false
	kt.xstate = 0
	kt.state = UNUSED
	kt.ctx = Context_t{}
	kt.cpu = nil
}
