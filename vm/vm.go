package vm

import "github.com/EliasA5/xv6-riscv/mem"

const PTE_V mem.Pa_t = 1 << 0
const PTE_R mem.Pa_t = 1 << 1
const PTE_W mem.Pa_t = 1 << 2
const PTE_X mem.Pa_t = 1 << 3
const PTE_U mem.Pa_t = 1 << 4
const PTE_G mem.Pa_t = 1 << 5
const PTE_A mem.Pa_t = 1 << 6
const PTE_D mem.Pa_t = 1 << 7

// our flag; set when the page's contents live in the swap store. the
// frame number field then holds the swap slot index.
const PTE_PG mem.Pa_t = 1 << 9

const PTE_FLAGS mem.Pa_t = 0x3ff

const PGSIZE int = mem.PGSIZE
const PGSHIFT uint = mem.PGSHIFT

// one beyond the highest possible virtual address. MAXVA is actually one
// bit less than the max allowed by Sv39, to avoid having to sign-extend
// virtual addresses that have the high bit set.
const MAXVA int = 1 << (9 + 9 + 9 + 12 - 1)

// the trampoline page is mapped at the highest address in every user
// address space; the trapframe page sits just below it.
const TRAMPOLINE int = MAXVA - PGSIZE
const TRAPFRAME int = TRAMPOLINE - PGSIZE

func PX(level uint, va int) int {
	return (va >> (PGSHIFT + 9*level)) & 0x1ff
}

func PA2PTE(pa mem.Pa_t) mem.Pa_t {
	return (pa >> 12) << 10
}

func PTE2PA(pte mem.Pa_t) mem.Pa_t {
	return (pte >> 10) << 12
}

func Slot2pte(slot int) mem.Pa_t {
	return mem.Pa_t(slot) << 10
}

func Pte2slot(pte mem.Pa_t) int {
	return int(pte >> 10)
}

func Pgroundup(sz int) int {
	return (sz + PGSIZE - 1) &^ (PGSIZE - 1)
}

func Pgrounddown(a int) int {
	return a &^ (PGSIZE - 1)
}

// a resident user page
func Isresident(pte mem.Pa_t) bool {
	return pte&PTE_V != 0 && pte&PTE_U != 0
}

// a page whose contents were moved to the swap store
func Ispaged(pte mem.Pa_t) bool {
	return pte&PTE_V == 0 && pte&PTE_PG != 0
}
