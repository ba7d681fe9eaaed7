package limits

import "encoding/json"
import "fmt"
import "os"
import "sync/atomic"

type Sysatomic_t int64

type Syslimit_t struct {
	// size of the process table
	Nproc int `json:"NPROC"`
	// kernel threads per process
	Nkt int `json:"NKT"`
	// scheduler CPUs
	Ncpu int `json:"NCPU"`
	// physical frames, including those used for page tables
	Nframes int `json:"NFRAMES"`
	// resident user pages allowed per process
	Psycpages int `json:"MAX_PSYC_PAGES"`
	// virtual user pages allowed per process
	Totalpages int `json:"MAX_TOTAL_PAGES"`
	// page replacement: scfifo, nfua, lapa or none
	Swapalgo string `json:"SWAP_ALGO"`
	// initial scheduling policy: rr, priority or cfs
	Policy string `json:"SCHED_POLICY"`
	// directory for per-process swap files; empty keeps swap in memory
	Swapdir string `json:"SWAP_DIR"`
	// clock interrupt period in microseconds
	Tickus   int    `json:"TICK_US"`
	Loglevel string `json:"LOG_LEVEL"`

	// live processes; protected by atomic ops
	Procs Sysatomic_t `json:"-"`
}

func MkSysLimit() *Syslimit_t {
	ret := &Syslimit_t{
		Nproc:      64,
		Nkt:        8,
		Ncpu:       3,
		Nframes:    4096,
		Psycpages:  16,
		Totalpages: 32,
		Swapalgo:   "scfifo",
		Policy:     "rr",
		Tickus:     1000,
		Loglevel:   "warn",
	}
	ret.Procs = Sysatomic_t(ret.Nproc)
	return ret
}

// Load overlays the JSON file at path on the defaults.
func Load(path string) (*Syslimit_t, error) {
	ret := MkSysLimit()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("limits: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, ret); err != nil {
		return nil, fmt.Errorf("limits: parse %s: %w", path, err)
	}
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	ret.Procs = Sysatomic_t(ret.Nproc)
	return ret, nil
}

func (s *Syslimit_t) Validate() error {
	switch {
	case s.Nproc < 2:
		return fmt.Errorf("limits: NPROC %d < 2", s.Nproc)
	case s.Nkt < 1:
		return fmt.Errorf("limits: NKT %d < 1", s.Nkt)
	case s.Ncpu < 1:
		return fmt.Errorf("limits: NCPU %d < 1", s.Ncpu)
	case s.Psycpages < 1 || s.Totalpages < s.Psycpages:
		return fmt.Errorf("limits: bad page budget %d/%d", s.Psycpages,
			s.Totalpages)
	case s.Tickus <= 0:
		return fmt.Errorf("limits: TICK_US %d", s.Tickus)
	}
	switch s.Swapalgo {
	case "scfifo", "nfua", "lapa", "none":
	default:
		return fmt.Errorf("limits: unknown SWAP_ALGO %q", s.Swapalgo)
	}
	switch s.Policy {
	case "rr", "priority", "cfs":
	default:
		return fmt.Errorf("limits: unknown SCHED_POLICY %q", s.Policy)
	}
	return nil
}

// number of swap slots each process owns
func (s *Syslimit_t) Swapslots() int {
	return s.Totalpages - s.Psycpages
}

func (s *Sysatomic_t) Given(_n uint) {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	atomic.AddInt64((*int64)(s), n)
}

func (s *Sysatomic_t) Taken(_n uint) bool {
	n := int64(_n)
	if n < 0 {
		panic("too mighty")
	}
	g := atomic.AddInt64((*int64)(s), -n)
	if g >= 0 {
		return true
	}
	atomic.AddInt64((*int64)(s), n)
	return false
}

// returns false if the limit has been reached.
func (s *Sysatomic_t) Take() bool {
	return s.Taken(1)
}

func (s *Sysatomic_t) Give() {
	s.Given(1)
}
