package proc

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/vm"

// Growproc grows or shrinks t's process memory by n bytes. when paging is
// enabled, a process may not grow past Totalpages, and new pages beyond the
// resident budget are swapped out immediately.
func (pt *Ptable_t) Growproc(t *Kthread_t, n int) defs.Err_t {
	p := t.Proc
	as := &p.Vm
	as.Lock_pmap()
	defer as.Unlock_pmap()

	sz := as.Sz
	if n < 0 {
		if sz+n < 0 {
			return -defs.EINVAL
		}
		var freeslot func(int)
		if p.Swap != nil {
			freeslot = p.Swap.Freeslot
		}
		as.Sz = as.Uvmdealloc(sz, sz+n, freeslot)
		return 0
	}
	if n == 0 {
		return 0
	}
	newsz := sz + n
	if newsz >= vm.TRAPFRAME {
		return -defs.ENOMEM
	}
	if p.Swap != nil && vm.Pgroundup(newsz)/vm.PGSIZE > pt.lim.Totalpages {
		klog.Sub("proc").Warn("growproc over limit", "pid", p.Pid,
			"sz", newsz, "max", pt.lim.Totalpages*vm.PGSIZE)
		return -defs.ENOMEM
	}
	nsz, err := as.Uvmalloc(sz, newsz, vm.PTE_W)
	if err != 0 {
		return err
	}
	as.Sz = nsz
	if p.Swap == nil {
		return 0
	}

	// evict the tail of the new pages until the resident budget holds
	over := as.Resident() - pt.lim.Psycpages
	newpages := (vm.Pgroundup(nsz) - vm.Pgroundup(sz)) / vm.PGSIZE
	if over > newpages {
		over = newpages
	}
	if over <= 0 {
		return 0
	}
	start := vm.Pgroundup(nsz) - over*vm.PGSIZE
	if err := p.Swap.Evictrange_inner(as, start, over); err != 0 {
		as.Sz = as.Uvmdealloc(nsz, sz, p.Swap.Freeslot)
		return err
	}
	return 0
}

// Memsize returns the size of t's process memory in bytes.
func (pt *Ptable_t) Memsize(t *Kthread_t) int {
	as := &t.Proc.Vm
	as.Lock_pmap()
	sz := as.Sz
	as.Unlock_pmap()
	return sz
}

// Copyout copies src to user address va of t's process, faulting in pages
// as needed.
func (pt *Ptable_t) Copyout(t *Kthread_t, va int, src []uint8) defs.Err_t {
	if va < 0 || va+len(src) > pt.Memsize(t) {
		return -defs.EFAULT
	}
	return t.Proc.Vm.K2user(src, va)
}

// Copyin copies len(dst) bytes from user address va of t's process.
func (pt *Ptable_t) Copyin(t *Kthread_t, dst []uint8, va int) defs.Err_t {
	if va < 0 || va+len(dst) > pt.Memsize(t) {
		return -defs.EFAULT
	}
	return t.Proc.Vm.User2k(dst, va)
}
