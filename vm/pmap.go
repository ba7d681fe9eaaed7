package vm

import "fmt"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/mem"

// returns the address of the PTE for va in the page table rooted at p_pmap.
// if alloc is set, missing page-table pages are created. returns nil if
// either 1) alloc was false and the mapping doesn't exist or 2) alloc was
// true but we failed to allocate a page-table page.
func Walk(phys *mem.Physmem_t, p_pmap mem.Pa_t, va int, alloc bool) *mem.Pa_t {
	if va < 0 || va >= MAXVA {
		panic(fmt.Sprintf("walk %#x", va))
	}
	pmap := mem.Pg2pmap(phys.Dmap(p_pmap))
	for level := uint(2); level > 0; level-- {
		pte := &pmap[PX(level, va)]
		if *pte&PTE_V != 0 {
			pmap = mem.Pg2pmap(phys.Dmap(PTE2PA(*pte)))
			continue
		}
		if !alloc {
			return nil
		}
		np, ok := phys.Kzalloc()
		if !ok {
			return nil
		}
		*pte = PA2PTE(np) | PTE_V
		pmap = mem.Pg2pmap(phys.Dmap(np))
	}
	return &pmap[PX(0, va)]
}

// returns the physical address va maps to, or 0 if it is not a resident
// user page.
func Walkaddr(phys *mem.Physmem_t, p_pmap mem.Pa_t, va int) mem.Pa_t {
	if va < 0 || va >= MAXVA {
		return 0
	}
	pte := Walk(phys, p_pmap, va, false)
	if pte == nil || !Isresident(*pte) {
		return 0
	}
	return PTE2PA(*pte)
}

// creates PTEs for virtual addresses starting at va that refer to physical
// addresses starting at pa. va and size might not be page-aligned.
func Mappages(phys *mem.Physmem_t, p_pmap mem.Pa_t, va, size int, pa mem.Pa_t,
	perm mem.Pa_t) defs.Err_t {
	if size == 0 {
		panic("mappages: size")
	}
	a := Pgrounddown(va)
	last := Pgrounddown(va + size - 1)
	for {
		pte := Walk(phys, p_pmap, a, true)
		if pte == nil {
			return -defs.ENOMEM
		}
		if *pte&PTE_V != 0 || *pte&PTE_PG != 0 {
			panic(fmt.Sprintf("mappages: remap %#x", a))
		}
		*pte = PA2PTE(pa) | perm | PTE_V
		if a == last {
			break
		}
		a += PGSIZE
		pa += mem.Pa_t(PGSIZE)
	}
	return 0
}

// removes npages of mappings starting from va, which must be page-aligned.
// resident frames are freed when dofree is set; for paged-out entries
// swapped is called with the slot index so the caller can release it.
func Unmap(phys *mem.Physmem_t, p_pmap mem.Pa_t, va, npages int, dofree bool,
	swapped func(int)) {
	if va%PGSIZE != 0 {
		panic("uvmunmap: not aligned")
	}
	for a := va; a < va+npages*PGSIZE; a += PGSIZE {
		pte := Walk(phys, p_pmap, a, false)
		if pte == nil {
			panic(fmt.Sprintf("uvmunmap: walk %#x", a))
		}
		switch {
		case Ispaged(*pte):
			if swapped != nil {
				swapped(Pte2slot(*pte))
			}
		case *pte&PTE_V == 0:
			panic(fmt.Sprintf("uvmunmap: not mapped %#x", a))
		case *pte&PTE_FLAGS == PTE_V:
			panic("uvmunmap: not a leaf")
		case dofree:
			phys.Kfree(PTE2PA(*pte))
		}
		*pte = 0
	}
}

// recursively free page-table pages. all leaf mappings must already have
// been removed.
func Freewalk(phys *mem.Physmem_t, p_pmap mem.Pa_t) {
	pmap := mem.Pg2pmap(phys.Dmap(p_pmap))
	for i, pte := range pmap {
		if pte&PTE_V != 0 && pte&(PTE_R|PTE_W|PTE_X) == 0 {
			Freewalk(phys, PTE2PA(pte))
			pmap[i] = 0
		} else if pte&PTE_V != 0 || pte&PTE_PG != 0 {
			panic("freewalk: leaf")
		}
	}
	phys.Kfree(p_pmap)
}
