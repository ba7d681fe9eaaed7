package swap

import "fmt"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/mem"

// Store_i is a process' backing store. blocks are addressed by byte offset;
// the swap code only ever uses slot*PGSIZE.
type Store_i interface {
	Readat(dst []uint8, off int) error
	Writeat(src []uint8, off int) error
	// releases the store; it cannot be used afterwards
	Remove() error
}

// Mkstore creates the backing store for process pid with room for nslots
// pages. an empty dir keeps the pages in memory.
func Mkstore(dir string, pid defs.Pid_t, nslots int) (Store_i, error) {
	if dir == "" {
		return Mkmemstore(nslots), nil
	}
	fs, err := Mkfilestore(dir, pid, nslots)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

type Memstore_t struct {
	blks []uint8
}

func Mkmemstore(nslots int) *Memstore_t {
	return &Memstore_t{blks: make([]uint8, nslots*mem.PGSIZE)}
}

func (ms *Memstore_t) bounds(n, off int) error {
	if ms.blks == nil {
		return fmt.Errorf("swap: store removed")
	}
	if off < 0 || off+n > len(ms.blks) {
		return fmt.Errorf("swap: offset %d+%d out of range", off, n)
	}
	return nil
}

func (ms *Memstore_t) Readat(dst []uint8, off int) error {
	if err := ms.bounds(len(dst), off); err != nil {
		return err
	}
	copy(dst, ms.blks[off:])
	return nil
}

func (ms *Memstore_t) Writeat(src []uint8, off int) error {
	if err := ms.bounds(len(src), off); err != nil {
		return err
	}
	copy(ms.blks[off:], src)
	return nil
}

func (ms *Memstore_t) Remove() error {
	ms.blks = nil
	return nil
}
