package defs

type Tid_t int

type Pid_t int

// scheduling policy ids accepted by set_policy
const (
	SCHED_RR       = 0
	SCHED_PRIORITY = 1
	SCHED_CFS      = 2
)

const (
	PS_PRIO_MIN = 1
	PS_PRIO_MAX = 10
	PS_PRIO_DEF = 5

	CFS_PRIO_MIN = 0
	CFS_PRIO_MAX = 2
	CFS_PRIO_DEF = 1
)

// bytes of exit message kept for the parent
const EXITMSGLEN = 32
