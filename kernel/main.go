package main

import "encoding/binary"
import "fmt"
import "os"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/limits"
import "github.com/EliasA5/xv6-riscv/mem"
import "github.com/EliasA5/xv6-riscv/proc"
import "github.com/EliasA5/xv6-riscv/sys"
import "github.com/EliasA5/xv6-riscv/util"

// exits with a nonzero status if pages do not survive being swapped out:
// fills every page allowed, then reads them back in reverse.
func pagestress(s *sys.Sys_t, lim *limits.Syslimit_t) proc.Ufunc_t {
	return func(kt *proc.Kthread_t) {
		pt := s.Ptable()
		base := s.Memsize(kt)
		npages := lim.Totalpages - base/mem.PGSIZE
		if old := s.Sbrk(kt, npages*mem.PGSIZE); old != base {
			s.Exit(kt, 1, "paging: sbrk")
		}
		pg := make([]uint8, mem.PGSIZE)
		for i := 0; i < npages; i++ {
			for j := range pg {
				pg[j] = uint8(i ^ j)
			}
			if pt.Copyout(kt, base+i*mem.PGSIZE, pg) != 0 {
				s.Exit(kt, 2, "paging: copyout")
			}
		}
		for i := npages - 1; i >= 0; i-- {
			if pt.Copyin(kt, pg, base+i*mem.PGSIZE) != 0 {
				s.Exit(kt, 3, "paging: copyin")
			}
			for j := range pg {
				if pg[j] != uint8(i^j) {
					s.Exit(kt, 4, fmt.Sprintf("paging: page %d", i))
				}
			}
		}
		s.Exit(kt, 0, "paging ok")
	}
}

// starts a thread per free slot, kills some of them and exits while the
// rest are still sleeping.
func threads(s *sys.Sys_t, lim *limits.Syslimit_t) proc.Ufunc_t {
	return func(kt *proc.Kthread_t) {
		stacksz := s.Memsize(kt) / lim.Nkt
		var tids []int
		for i := 1; i < lim.Nkt; i++ {
			tid := s.Kthread_create(kt, func(t *proc.Kthread_t) {
				for {
					s.Sleep(t, 1)
				}
			}, i*stacksz, stacksz)
			if tid < 0 {
				s.Exit(kt, 1, "threads: create")
			}
			tids = append(tids, tid)
		}
		for i := 0; i < len(tids); i += 2 {
			if s.Kthread_kill(kt, defs.Tid_t(tids[i])) != 0 {
				s.Exit(kt, 2, "threads: kill")
			}
		}
		s.Sleep(kt, 2)
		s.Exit(kt, 0, "threads ok")
	}
}

func forkwait(s *sys.Sys_t) proc.Ufunc_t {
	return func(kt *proc.Kthread_t) {
		pid := s.Fork(kt, func(c *proc.Kthread_t) {
			s.Exit(c, 7, "child")
		})
		if pid < 0 {
			s.Exit(kt, 1, "forkwait: fork")
		}
		if s.Wait(kt, 0, 0) != pid {
			s.Exit(kt, 2, "forkwait: wait")
		}
		s.Exit(kt, 0, "forkwait ok")
	}
}

type result_t struct {
	pid    int
	status int
	msg    string
}

// init starts the workload, reports how each program exited on done, then
// reaps orphans forever.
func initmain(s *sys.Sys_t, lim *limits.Syslimit_t,
	done chan<- []result_t) proc.Ufunc_t {
	return func(kt *proc.Kthread_t) {
		pt := s.Ptable()
		progs := []proc.Ufunc_t{pagestress(s, lim), threads(s, lim),
			forkwait(s)}
		n := 0
		for _, fn := range progs {
			if s.Fork(kt, fn) > 0 {
				n++
			}
		}
		var res []result_t
		// the status and message land in init's page
		const staddr, msgaddr = 16, 32
		for i := 0; i < n; i++ {
			pid := s.Wait(kt, staddr, msgaddr)
			if pid < 0 {
				break
			}
			b := make([]uint8, 4+defs.EXITMSGLEN)
			pt.Copyin(kt, b[:4], staddr)
			pt.Copyin(kt, b[4:], msgaddr)
			st := int(int32(binary.LittleEndian.Uint32(b)))
			res = append(res, result_t{pid, st, util.Cstr(b[4:])})
		}
		done <- res
		for {
			if s.Wait(kt, 0, 0) < 0 {
				s.Sleep(kt, 10)
			}
		}
	}
}

func main() {
	lim := limits.MkSysLimit()
	if len(os.Args) > 1 {
		var err error
		lim, err = limits.Load(os.Args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
	}
	klog.Init(lim.Loglevel, os.Stderr)
	klog.L().Info("boot", "ncpu", lim.Ncpu, "nproc", lim.Nproc,
		"swap", lim.Swapalgo, "policy", lim.Policy)

	pt := proc.Mkptable(lim, mem.Mkphysmem(lim.Nframes))
	s := sys.Mksys(pt)
	done := make(chan []result_t, 1)
	pt.Userinit(initmain(s, lim, done))
	pt.Boot()
	res := <-done

	failed := false
	for _, r := range res {
		fmt.Printf("pid %d exited %d: %s\n", r.pid, r.status, r.msg)
		if r.status != 0 {
			failed = true
		}
	}
	fmt.Printf("%s\n", pt.Stats2String())
	pt.Procdump(os.Stdout)
	pt.Shutdown()
	if failed {
		os.Exit(1)
	}
}
