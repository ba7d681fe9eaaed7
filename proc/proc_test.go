package proc

import "bytes"
import "fmt"
import "strings"
import "testing"
import "time"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/limits"
import "github.com/EliasA5/xv6-riscv/mem"

func mklim(algo string) *limits.Syslimit_t {
	lim := limits.MkSysLimit()
	lim.Nproc = 8
	lim.Nkt = 4
	lim.Ncpu = 2
	lim.Nframes = 512
	lim.Psycpages = 4
	lim.Totalpages = 8
	lim.Swapalgo = algo
	lim.Tickus = 200
	lim.Procs = limits.Sysatomic_t(lim.Nproc)
	return lim
}

// boot a kernel whose init runs body and then reaps orphans forever. the
// test fails if body returns an error or takes too long.
func runinit(t *testing.T, lim *limits.Syslimit_t,
	body func(pt *Ptable_t, kt *Kthread_t) error) *Ptable_t {
	t.Helper()
	pt := Mkptable(lim, mem.Mkphysmem(lim.Nframes))
	res := make(chan error, 1)
	pt.Userinit(func(kt *Kthread_t) {
		res <- body(pt, kt)
		for {
			if _, _, _, err := pt.Wait(kt, 0); err == -defs.ECHILD {
				pt.Sleepticks(kt, 1)
			}
		}
	})
	pt.Boot()
	defer pt.Shutdown()
	select {
	case err := <-res:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(20 * time.Second):
		t.Fatalf("init timed out")
	}
	return pt
}

// sleeps until killed, then exits from the trap path
func sleeper(pt *Ptable_t) Ufunc_t {
	return func(c *Kthread_t) {
		for {
			pt.Sleepticks(c, 1)
			pt.Usertrap(c)
		}
	}
}

// state of thread tid of c's process
func ktstate(c *Kthread_t, tid defs.Tid_t) Procstate_t {
	p := c.Proc
	for i := range p.Kts {
		kt := &p.Kts[i]
		kt.lock.Acquire(c.cpu)
		st, id := kt.state, kt.Tid
		kt.lock.Release(c.cpu)
		if id == tid && st != UNUSED {
			return st
		}
	}
	return UNUSED
}

// wait for child pid and check how it exited
func reap(pt *Ptable_t, kt *Kthread_t, pid defs.Pid_t, status int,
	msg string) error {
	wpid, st, m, err := pt.Wait(kt, 0)
	if err != 0 {
		return fmt.Errorf("wait: %v", err)
	}
	if wpid != pid || st != status || m != msg {
		return fmt.Errorf("wait got %v %v %q, want %v %v %q", wpid, st, m,
			pid, status, msg)
	}
	return nil
}

func TestForkWait(t *testing.T) {
	runinit(t, mklim("scfifo"), func(pt *Ptable_t, kt *Kthread_t) error {
		n0 := pt.Phys().Nfree()
		kt.Proc.Trapframe(kt).A0 = 5
		pid := pt.Fork(kt, func(c *Kthread_t) {
			st := 10
			if c.Proc.Trapframe(c).A0 != 0 {
				st = 11
			}
			pt.Exit(c, st, "bye")
		})
		if pid <= 1 {
			return fmt.Errorf("fork %v", pid)
		}
		if err := reap(pt, kt, pid, 10, "bye"); err != nil {
			return err
		}

		// returning from the only thread exits with status 0; the status
		// is copied out when asked for
		pid = pt.Fork(kt, func(c *Kthread_t) {})
		wpid, st, _, err := pt.Wait(kt, 16)
		if err != 0 || wpid != pid || st != 0 {
			return fmt.Errorf("wait %v %v %v", wpid, st, err)
		}
		pid = pt.Fork(kt, func(c *Kthread_t) {
			pt.Exit(c, -3, "")
		})
		if _, _, _, err := pt.Wait(kt, 16); err != 0 {
			return fmt.Errorf("wait %v", err)
		}
		b := make([]uint8, 4)
		if err := pt.Copyin(kt, b, 16); err != 0 {
			return fmt.Errorf("copyin %v", err)
		}
		if b[0] != 0xfd || b[1] != 0xff || b[2] != 0xff || b[3] != 0xff {
			return fmt.Errorf("status bytes %v", b)
		}

		if _, _, _, err := pt.Wait(kt, 0); err != -defs.ECHILD {
			return fmt.Errorf("wait without children: %v", err)
		}
		if n := pt.Phys().Nfree(); n != n0 {
			return fmt.Errorf("leaked %v frames", n0-n)
		}
		return nil
	})
}

func TestPidsAndKill(t *testing.T) {
	lim := mklim("scfifo")
	pt := runinit(t, lim, func(pt *Ptable_t, kt *Kthread_t) error {
		seen := make(map[defs.Pid_t]bool)
		var max defs.Pid_t
		for i := 0; i < lim.Nproc-1; i++ {
			pid := pt.Fork(kt, sleeper(pt))
			if pid < 0 {
				return fmt.Errorf("fork %d failed", i)
			}
			if seen[pid] || pid == pt.Getpid(kt) {
				return fmt.Errorf("pid %v reused", pid)
			}
			seen[pid] = true
			if pid > max {
				max = pid
			}
		}
		if pid := pt.Fork(kt, sleeper(pt)); pid != -1 {
			return fmt.Errorf("fork into a full table: %v", pid)
		}
		if err := pt.Kill(kt, max+100); err != -defs.ESRCH {
			return fmt.Errorf("kill of bogus pid: %v", err)
		}
		for pid := range seen {
			if err := pt.Kill(kt, pid); err != 0 {
				return fmt.Errorf("kill %v: %v", pid, err)
			}
		}
		for n := len(seen); n > 0; n-- {
			pid, st, _, err := pt.Wait(kt, 0)
			if err != 0 || !seen[pid] || st != -1 {
				return fmt.Errorf("wait %v %v %v", pid, st, err)
			}
			delete(seen, pid)
		}
		pid := pt.Fork(kt, func(c *Kthread_t) {})
		if pid <= max {
			return fmt.Errorf("new pid %v not fresh", pid)
		}
		return reap(pt, kt, pid, 0, "")
	})
	var b bytes.Buffer
	pt.Procdump(&b)
	if !strings.Contains(b.String(), "init") {
		t.Fatalf("procdump: %q", b.String())
	}
	if pt.Stats.Nfork.Get() != int64(lim.Nproc) {
		t.Fatalf("forks %v", pt.Stats.Nfork.Get())
	}
}

func TestSleepWakeup(t *testing.T) {
	pt := runinit(t, mklim("nfua"), func(pt *Ptable_t, kt *Kthread_t) error {
		var lk Spinlock_t
		lk.Init("cond")
		cond := false
		pid := pt.Fork(kt, func(c *Kthread_t) {
			lk.Acquire(c.cpu)
			for !cond {
				pt.Sleep(c, &cond, &lk)
			}
			lk.Release(c.cpu)
			pt.Exit(c, 1, "woken")
		})
		pt.Sleepticks(kt, 3)
		lk.Acquire(kt.cpu)
		cond = true
		pt.Wakeup(kt, &cond)
		lk.Release(kt.cpu)
		return reap(pt, kt, pid, 1, "woken")
	})
	if pt.Stats.Nwakeup.Get() == 0 {
		t.Fatalf("no wakeups counted")
	}
	if pt.Uptime() < 3 {
		t.Fatalf("uptime %v", pt.Uptime())
	}
}

func TestKthreads(t *testing.T) {
	lim := mklim("scfifo")
	runinit(t, lim, func(pt *Ptable_t, kt *Kthread_t) error {
		pid := pt.Fork(kt, func(c *Kthread_t) {
			me := pt.Kthread_id(c)
			var tids []defs.Tid_t
			for i := 0; i < lim.Nkt-1; i++ {
				tid := pt.Kthread_create(c, sleeper(pt), 0, 0)
				if tid < 0 || tid == me {
					pt.Exit(c, 1, "create")
				}
				tids = append(tids, tid)
			}
			if pt.Kthread_create(c, sleeper(pt), 0, 0) != -1 {
				pt.Exit(c, 2, "overflow")
			}
			if pt.Kthread_join(c, tids[0], 0) != -defs.ENOSYS {
				pt.Exit(c, 3, "join")
			}
			if pt.Kthread_kill(c, 1000) != -defs.ESRCH {
				pt.Exit(c, 4, "kill bogus")
			}
			if pt.Kthread_kill(c, tids[0]) != 0 {
				pt.Exit(c, 5, "kill")
			}
			for ktstate(c, tids[0]) != ZOMBIE {
				pt.Sleepticks(c, 1)
			}
			// the zombie's slot is free again
			tid := pt.Kthread_create(c, func(*Kthread_t) {}, 0, 0)
			if tid <= tids[len(tids)-1] {
				pt.Exit(c, 6, "reuse")
			}
			pt.Exit(c, 42, "threads")
		})
		return reap(pt, kt, pid, 42, "threads")
	})
}

func TestKthreadExitLast(t *testing.T) {
	runinit(t, mklim("lapa"), func(pt *Ptable_t, kt *Kthread_t) error {
		pid := pt.Fork(kt, func(c *Kthread_t) {
			tid := pt.Kthread_create(c, func(n *Kthread_t) {
				tf := n.Proc.Trapframe(n)
				if tf.Sp != 4096+512 {
					pt.Exit(n, 1, "stack")
				}
			}, 4096, 512)
			for ktstate(c, tid) != ZOMBIE {
				if pt.Sleepticks(c, 1) < 0 {
					pt.Usertrap(c)
				}
			}
			// the last thread takes the process with it
			pt.Kthread_exit(c, 9)
		})
		return reap(pt, kt, pid, 9, "")
	})
}

func TestPreempt(t *testing.T) {
	lim := mklim("scfifo")
	lim.Ncpu = 1
	for _, pol := range []string{"rr", "priority", "cfs"} {
		lim.Policy = pol
		lim.Procs = limits.Sysatomic_t(lim.Nproc)
		pt := runinit(t, lim, func(pt *Ptable_t, kt *Kthread_t) error {
			spin := func(c *Kthread_t) {
				end := pt.Uptime() + 20
				for pt.Uptime() < end {
					pt.Usertrap(c)
				}
				st, err := pt.Get_cfs_stats(c, pt.Getpid(c))
				if err != 0 || st.Rtime == 0 {
					pt.Exit(c, 1, "")
				}
				pt.Exit(c, 0, "")
			}
			p1 := pt.Fork(kt, spin)
			p2 := pt.Fork(kt, spin)
			for i := 0; i < 2; i++ {
				pid, st, _, err := pt.Wait(kt, 0)
				if err != 0 || (pid != p1 && pid != p2) || st != 0 {
					return fmt.Errorf("%s: wait %v %v %v", pol, pid, st, err)
				}
			}
			return nil
		})
		if pt.Stats.Nswtch.Get() < 3 {
			t.Fatalf("%s: %v switches", pol, pt.Stats.Nswtch.Get())
		}
	}
}
