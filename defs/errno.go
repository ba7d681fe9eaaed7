package defs

import "strconv"

const (
	EPERM   Err_t = 1
	ESRCH   Err_t = 3
	EINTR   Err_t = 4
	EIO     Err_t = 5
	ECHILD  Err_t = 10
	EAGAIN  Err_t = 11
	ENOMEM  Err_t = 12
	EFAULT  Err_t = 14
	EINVAL  Err_t = 22
	ENOSPC  Err_t = 28
	ENOSYS  Err_t = 38
	ENOHEAP Err_t = 511
)

// Err_t values are returned negated; zero means success.
type Err_t int

var errnames = map[Err_t]string{
	EPERM:   "EPERM",
	ESRCH:   "ESRCH",
	EINTR:   "EINTR",
	EIO:     "EIO",
	ECHILD:  "ECHILD",
	EAGAIN:  "EAGAIN",
	ENOMEM:  "ENOMEM",
	EFAULT:  "EFAULT",
	EINVAL:  "EINVAL",
	ENOSPC:  "ENOSPC",
	ENOSYS:  "ENOSYS",
	ENOHEAP: "ENOHEAP",
}

func (e Err_t) String() string {
	if e == 0 {
		return "ok"
	}
	n := e
	if n < 0 {
		n = -n
	}
	if s, ok := errnames[n]; ok {
		if e < 0 {
			return "-" + s
		}
		return s
	}
	return "errno(" + strconv.Itoa(int(e)) + ")"
}
