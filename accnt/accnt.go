package accnt

import "sync"

// per-process scheduling accounting, in clock ticks
type Accnt_t struct {
	Rtime  int64
	Stime  int64
	Retime int64
	// sum of ps priorities charged at each dispatch
	Accum   int64
	Psprio  int
	Cfsprio int
	sync.Mutex
}

type Cfsstat_t struct {
	Cfsprio int
	Rtime   int64
	Stime   int64
	Retime  int64
}

var decay = [...]int64{75, 100, 125}

func (a *Accnt_t) Init(psprio, cfsprio int, accum int64) {
	a.Lock()
	a.Rtime, a.Stime, a.Retime = 0, 0, 0
	a.Accum = accum
	a.Psprio = psprio
	a.Cfsprio = cfsprio
	a.Unlock()
}

// Tick charges one clock tick according to what the process' threads were
// doing when the tick arrived.
func (a *Accnt_t) Tick(running, runnable, sleeping bool) {
	a.Lock()
	switch {
	case running:
		a.Rtime++
	case runnable:
		a.Retime++
	case sleeping:
		a.Stime++
	}
	a.Unlock()
}

// Charge is called each time one of the process' threads is dispatched.
func (a *Accnt_t) Charge() {
	a.Lock()
	a.Accum += int64(a.Psprio)
	a.Unlock()
}

func (a *Accnt_t) Accumulator() int64 {
	a.Lock()
	defer a.Unlock()
	return a.Accum
}

func (a *Accnt_t) Vruntime() int64 {
	a.Lock()
	defer a.Unlock()
	tot := a.Rtime + a.Stime + a.Retime
	if tot == 0 {
		return 0
	}
	return a.Rtime * decay[a.Cfsprio] / tot
}

func (a *Accnt_t) Setps(prio int) {
	a.Lock()
	a.Psprio = prio
	a.Unlock()
}

func (a *Accnt_t) Setcfs(prio int) {
	a.Lock()
	a.Cfsprio = prio
	a.Unlock()
}

func (a *Accnt_t) Fetch() Cfsstat_t {
	a.Lock()
	defer a.Unlock()
	return Cfsstat_t{Cfsprio: a.Cfsprio, Rtime: a.Rtime, Stime: a.Stime,
		Retime: a.Retime}
}
