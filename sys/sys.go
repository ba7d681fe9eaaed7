package sys

import "encoding/binary"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/klog"
import "github.com/EliasA5/xv6-riscv/proc"
import "github.com/EliasA5/xv6-riscv/util"

// system call numbers, passed in a7. fork and kthread_create start new code
// and are only reachable through their methods.
const (
	SYS_EXIT             = 2
	SYS_WAIT             = 3
	SYS_KILL             = 6
	SYS_GETPID           = 11
	SYS_SBRK             = 12
	SYS_SLEEP            = 13
	SYS_UPTIME           = 14
	SYS_MEMSIZE          = 22
	SYS_SET_PS_PRIORITY  = 23
	SYS_SET_CFS_PRIORITY = 24
	SYS_GET_CFS_STATS    = 25
	SYS_SET_POLICY       = 26
	SYS_KTHREAD_ID       = 28
	SYS_KTHREAD_KILL     = 29
	SYS_KTHREAD_EXIT     = 30
	SYS_KTHREAD_JOIN     = 31
)

// Sys_t is the boundary between user programs and the process table. every
// call that returns goes back to user space through Usertrap, where killed
// threads and expired quanta are handled.
type Sys_t struct {
	pt *proc.Ptable_t
}

func Mksys(pt *proc.Ptable_t) *Sys_t {
	return &Sys_t{pt: pt}
}

func (s *Sys_t) Ptable() *proc.Ptable_t {
	return s.pt
}

func (s *Sys_t) usertrap(kt *proc.Kthread_t, ret int) int {
	s.pt.Usertrap(kt)
	return ret
}

// Syscall dispatches the call whose number is in a7 with arguments from
// a0..a2 of kt's trapframe and leaves the result in a0.
func (s *Sys_t) Syscall(kt *proc.Kthread_t) int {
	tf := kt.Proc.Trapframe(kt)
	sysno := int(tf.A7)
	a1 := int(int64(tf.A0))
	a2 := int(int64(tf.A1))
	a3 := int(int64(tf.A2))

	ret := int(-defs.ENOSYS)
	switch sysno {
	case SYS_EXIT:
		msg, err := s.copyinstr(kt, a2, defs.EXITMSGLEN)
		if err != 0 {
			msg = ""
		}
		s.Exit(kt, a1, msg)
	case SYS_WAIT:
		ret = s.Wait(kt, a1, a2)
	case SYS_KILL:
		ret = s.Kill(kt, defs.Pid_t(a1))
	case SYS_GETPID:
		ret = int(s.Getpid(kt))
	case SYS_SBRK:
		ret = s.Sbrk(kt, a1)
	case SYS_SLEEP:
		ret = s.Sleep(kt, a1)
	case SYS_UPTIME:
		ret = int(s.Uptime(kt))
	case SYS_MEMSIZE:
		ret = s.Memsize(kt)
	case SYS_SET_PS_PRIORITY:
		ret = s.Set_ps_priority(kt, a1)
	case SYS_SET_CFS_PRIORITY:
		ret = s.Set_cfs_priority(kt, a1)
	case SYS_GET_CFS_STATS:
		ret = s.Get_cfs_stats(kt, defs.Pid_t(a1), a2)
	case SYS_SET_POLICY:
		ret = s.Set_policy(kt, a1)
	case SYS_KTHREAD_ID:
		ret = int(s.Kthread_id(kt))
	case SYS_KTHREAD_KILL:
		ret = s.Kthread_kill(kt, defs.Tid_t(a1))
	case SYS_KTHREAD_EXIT:
		s.Kthread_exit(kt, a1)
	case SYS_KTHREAD_JOIN:
		ret = s.Kthread_join(kt, defs.Tid_t(a1), a2)
	default:
		klog.Sub("sys").Warn("unknown syscall", "pid", kt.Proc.Pid,
			"sysno", sysno, "args", []int{a1, a2, a3})
		ret = s.usertrap(kt, ret)
	}
	// the thread may have been rescheduled; its trapframe has not moved
	tf.A0 = uint64(ret)
	return ret
}

// reads a NUL terminated string of at most max bytes from user address va
func (s *Sys_t) copyinstr(kt *proc.Kthread_t, va, max int) (string, defs.Err_t) {
	if va == 0 {
		return "", 0
	}
	sz := s.pt.Memsize(kt)
	if va < 0 || va >= sz {
		return "", -defs.EFAULT
	}
	buf := make([]uint8, util.Min(max, sz-va))
	if err := s.pt.Copyin(kt, buf, va); err != 0 {
		return "", err
	}
	return util.Cstr(buf), 0
}

// Fork starts a copy of kt's process whose thread runs fn. returns the
// child's pid, or -EAGAIN when out of processes or memory.
func (s *Sys_t) Fork(kt *proc.Kthread_t, fn proc.Ufunc_t) int {
	if fn == nil {
		return s.usertrap(kt, int(-defs.EINVAL))
	}
	pid := s.pt.Fork(kt, fn)
	klog.Sub("sys").Debug("fork", "pid", kt.Proc.Pid, "child", pid)
	if pid < 0 {
		return s.usertrap(kt, int(-defs.EAGAIN))
	}
	return s.usertrap(kt, int(pid))
}

// Exit does not return.
func (s *Sys_t) Exit(kt *proc.Kthread_t, status int, msg string) {
	klog.Sub("sys").Debug("exit", "pid", kt.Proc.Pid, "status", status)
	s.pt.Exit(kt, status, msg)
}

// Wait reaps a child. its status is stored at user address addr and its
// exit message at msgaddr, when they are not zero. returns the child's pid.
func (s *Sys_t) Wait(kt *proc.Kthread_t, addr, msgaddr int) int {
	if msgaddr != 0 && (msgaddr < 0 ||
		msgaddr+defs.EXITMSGLEN > s.pt.Memsize(kt)) {
		return s.usertrap(kt, int(-defs.EFAULT))
	}
	pid, st, msg, err := s.pt.Wait(kt, addr)
	if err != 0 {
		return s.usertrap(kt, int(err))
	}
	if msgaddr != 0 {
		var buf [defs.EXITMSGLEN]uint8
		util.Safestrcpy(buf[:], msg)
		if err := s.pt.Copyout(kt, msgaddr, buf[:]); err != 0 {
			return s.usertrap(kt, int(err))
		}
	}
	klog.Sub("sys").Debug("wait", "pid", kt.Proc.Pid, "child", pid,
		"status", st)
	return s.usertrap(kt, int(pid))
}

func (s *Sys_t) Kill(kt *proc.Kthread_t, pid defs.Pid_t) int {
	if pid <= 0 {
		return s.usertrap(kt, int(-defs.EINVAL))
	}
	err := s.pt.Kill(kt, pid)
	klog.Sub("sys").Debug("kill", "pid", kt.Proc.Pid, "victim", pid,
		"err", err)
	return s.usertrap(kt, int(err))
}

func (s *Sys_t) Getpid(kt *proc.Kthread_t) defs.Pid_t {
	pid := s.pt.Getpid(kt)
	s.usertrap(kt, 0)
	return pid
}

// Sleep sleeps for n ticks. returns -EINTR if killed meanwhile.
func (s *Sys_t) Sleep(kt *proc.Kthread_t, n int) int {
	if n < 0 {
		return s.usertrap(kt, int(-defs.EINVAL))
	}
	if s.pt.Sleepticks(kt, n) < 0 {
		return s.usertrap(kt, int(-defs.EINTR))
	}
	return s.usertrap(kt, 0)
}

// Sbrk grows or shrinks memory by n bytes and returns the old size.
func (s *Sys_t) Sbrk(kt *proc.Kthread_t, n int) int {
	old := s.pt.Memsize(kt)
	if err := s.pt.Growproc(kt, n); err != 0 {
		klog.Sub("sys").Debug("sbrk", "pid", kt.Proc.Pid, "n", n,
			"err", err)
		return s.usertrap(kt, int(err))
	}
	return s.usertrap(kt, old)
}

func (s *Sys_t) Memsize(kt *proc.Kthread_t) int {
	return s.usertrap(kt, s.pt.Memsize(kt))
}

func (s *Sys_t) Uptime(kt *proc.Kthread_t) int64 {
	up := s.pt.Uptime()
	s.usertrap(kt, 0)
	return up
}

// Kthread_create starts fn on a new thread of kt's process with the user
// stack [stack, stack+size). returns the new tid, or -EAGAIN if every
// thread slot is taken.
func (s *Sys_t) Kthread_create(kt *proc.Kthread_t, fn proc.Ufunc_t,
	stack, size int) int {
	if fn == nil || stack < 0 || size <= 0 ||
		stack+size > s.pt.Memsize(kt) {
		return s.usertrap(kt, int(-defs.EINVAL))
	}
	tid := s.pt.Kthread_create(kt, fn, stack, size)
	klog.Sub("sys").Debug("kthread_create", "pid", kt.Proc.Pid,
		"tid", tid)
	if tid < 0 {
		return s.usertrap(kt, int(-defs.EAGAIN))
	}
	return s.usertrap(kt, int(tid))
}

func (s *Sys_t) Kthread_id(kt *proc.Kthread_t) defs.Tid_t {
	tid := s.pt.Kthread_id(kt)
	s.usertrap(kt, 0)
	return tid
}

func (s *Sys_t) Kthread_kill(kt *proc.Kthread_t, tid defs.Tid_t) int {
	if tid <= 0 {
		return s.usertrap(kt, int(-defs.EINVAL))
	}
	return s.usertrap(kt, int(s.pt.Kthread_kill(kt, tid)))
}

// Kthread_exit does not return.
func (s *Sys_t) Kthread_exit(kt *proc.Kthread_t, status int) {
	s.pt.Kthread_exit(kt, status)
}

func (s *Sys_t) Kthread_join(kt *proc.Kthread_t, tid defs.Tid_t, addr int) int {
	return s.usertrap(kt, int(s.pt.Kthread_join(kt, tid, addr)))
}

// Set_policy switches the scheduler to rr (0), priority (1) or cfs (2).
func (s *Sys_t) Set_policy(kt *proc.Kthread_t, pol int) int {
	old, err := s.pt.Set_policy(pol)
	if err != 0 {
		return s.usertrap(kt, int(err))
	}
	klog.Sub("sys").Info("set_policy", "pid", kt.Proc.Pid, "old", old,
		"new", pol)
	return s.usertrap(kt, 0)
}

func (s *Sys_t) Set_ps_priority(kt *proc.Kthread_t, prio int) int {
	return s.usertrap(kt, int(s.pt.Set_ps_priority(kt, prio)))
}

func (s *Sys_t) Set_cfs_priority(kt *proc.Kthread_t, prio int) int {
	return s.usertrap(kt, int(s.pt.Set_cfs_priority(kt, prio)))
}

// Get_cfs_stats stores the cfs priority, run, sleep and runnable ticks of
// process pid as four little-endian int32s at user address addr.
func (s *Sys_t) Get_cfs_stats(kt *proc.Kthread_t, pid defs.Pid_t, addr int) int {
	st, err := s.pt.Get_cfs_stats(kt, pid)
	if err != 0 {
		return s.usertrap(kt, int(err))
	}
	var buf [16]uint8
	binary.LittleEndian.PutUint32(buf[0:], uint32(int32(st.Cfsprio)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(int32(st.Rtime)))
	binary.LittleEndian.PutUint32(buf[8:], uint32(int32(st.Stime)))
	binary.LittleEndian.PutUint32(buf[12:], uint32(int32(st.Retime)))
	if err := s.pt.Copyout(kt, addr, buf[:]); err != 0 {
		return s.usertrap(kt, int(err))
	}
	return s.usertrap(kt, 0)
}
