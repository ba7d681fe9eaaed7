//go:build !unix

package swap

import "fmt"

import "github.com/EliasA5/xv6-riscv/defs"

func Mkfilestore(dir string, pid defs.Pid_t, nslots int) (Store_i, error) {
	return nil, fmt.Errorf("swap: file store not supported on this platform")
}
