package proc

import "fmt"
import "io"

import "github.com/EliasA5/xv6-riscv/stats"
import "github.com/EliasA5/xv6-riscv/swap"

// Procdump prints a process listing to w. for debugging; not to be called
// concurrently with itself.
func (pt *Ptable_t) Procdump(w io.Writer) {
	c := &pt.dbg
	fmt.Fprintf(w, "\n")
	for i := range pt.procs {
		p := &pt.procs[i]
		p.lock.Acquire(c)
		if p.state == UNUSED {
			p.lock.Release(c)
			continue
		}
		busy := UNUSED
		kts := ""
		for j := range p.Kts {
			kt := &p.Kts[j]
			kt.lock.Acquire(c)
			if kt.state != UNUSED {
				kts += fmt.Sprintf(" [%d %s]", kt.Tid, kt.state)
				if busyrank(kt.state) > busyrank(busy) {
					busy = kt.state
				}
			}
			kt.lock.Release(c)
		}
		st := p.state
		if st != ZOMBIE && busy != UNUSED {
			st = busy
		}
		fmt.Fprintf(w, "%d %s %s%s", p.Pid, st, p.Name, kts)
		p.lock.Release(c)

		p.Vm.Lock_pmap()
		sz, res, pg := p.Vm.Sz, 0, 0
		if p.Vm.P_pmap != 0 {
			res, pg = p.Vm.Resident(), p.Vm.Paged()
		}
		p.Vm.Unlock_pmap()
		fmt.Fprintf(w, " sz %d resident %d paged %d\n", sz, res, pg)
	}
}

// a live process is shown in the state of its busiest thread: running,
// then runnable, then sleeping.
func busyrank(s Procstate_t) int {
	switch s {
	case RUNNING:
		return 3
	case RUNNABLE:
		return 2
	case SLEEPING:
		return 1
	}
	return 0
}

func (pt *Ptable_t) Stats2String() string {
	return "proc:" + stats.Stats2String(&pt.Stats) + "swap:" + swap.Stats2String()
}
