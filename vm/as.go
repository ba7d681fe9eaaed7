package vm

import "sync"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/mem"

// Faulter_i brings a paged-out page back. it is called with the pmap lock
// held.
type Faulter_i interface {
	Pgfault_inner(as *Vm_t, va int) defs.Err_t
}

// Vm_t is one process' user address space.
type Vm_t struct {
	// lock for the pmap, Sz and whatever swap state Fault keeps for
	// this address space
	sync.Mutex

	Phys   *mem.Physmem_t
	P_pmap mem.Pa_t
	// bytes of user memory, starting at va 0
	Sz int

	Fault Faulter_i

	pgfltaken bool
}

func (as *Vm_t) Lock_pmap() {
	as.Lock()
	as.pgfltaken = true
}

func (as *Vm_t) Unlock_pmap() {
	as.pgfltaken = false
	as.Unlock()
}

func (as *Vm_t) Lockassert_pmap() {
	if !as.pgfltaken {
		panic("pgfl lock must be held")
	}
}

// Uvmcreate allocates an empty page table. returns false if out of memory.
func (as *Vm_t) Uvmcreate(phys *mem.Physmem_t) bool {
	pa, ok := phys.Kzalloc()
	if !ok {
		return false
	}
	as.Phys = phys
	as.P_pmap = pa
	as.Sz = 0
	return true
}

func (as *Vm_t) Walk(va int, alloc bool) *mem.Pa_t {
	return Walk(as.Phys, as.P_pmap, va, alloc)
}

func (as *Vm_t) Mappages(va, size int, pa, perm mem.Pa_t) defs.Err_t {
	return Mappages(as.Phys, as.P_pmap, va, size, pa, perm)
}

func (as *Vm_t) Unmap(va, npages int, dofree bool, swapped func(int)) {
	Unmap(as.Phys, as.P_pmap, va, npages, dofree, swapped)
}

// allocate PTEs and zeroed frames to grow the user memory from oldsz to
// newsz, which need not be page aligned. returns the new size, or the
// error with everything allocated so far released.
func (as *Vm_t) Uvmalloc(oldsz, newsz int, xperm mem.Pa_t) (int, defs.Err_t) {
	if newsz < oldsz {
		return oldsz, 0
	}
	for a := Pgroundup(oldsz); a < newsz; a += PGSIZE {
		pa, ok := as.Phys.Kzalloc()
		if !ok {
			as.Uvmdealloc(a, oldsz, nil)
			return 0, -defs.ENOMEM
		}
		if err := as.Mappages(a, PGSIZE, pa, PTE_R|PTE_U|xperm); err != 0 {
			as.Phys.Kfree(pa)
			as.Uvmdealloc(a, oldsz, nil)
			return 0, err
		}
	}
	return newsz, 0
}

// deallocate user pages to bring the process size from oldsz to newsz.
// oldsz can be larger than the actual process size. returns the new size.
func (as *Vm_t) Uvmdealloc(oldsz, newsz int, swapped func(int)) int {
	if newsz >= oldsz {
		return oldsz
	}
	if Pgroundup(newsz) < Pgroundup(oldsz) {
		npages := (Pgroundup(oldsz) - Pgroundup(newsz)) / PGSIZE
		as.Unmap(Pgroundup(newsz), npages, true, swapped)
	}
	return newsz
}

// free user memory pages, then the page-table pages themselves.
func (as *Vm_t) Uvmfree(sz int, swapped func(int)) {
	if sz > 0 {
		as.Unmap(0, Pgroundup(sz)/PGSIZE, true, swapped)
	}
	Freewalk(as.Phys, as.P_pmap)
	as.P_pmap = 0
	as.Sz = 0
}

// copies the parent's memory into the child's page table: resident pages
// are duplicated, paged-out entries are copied as-is so that they refer to
// the same slot of the child's (copied) swap store. on failure every page
// mapped into the child is released.
func (as *Vm_t) Uvmcopy(child *Vm_t, sz int) defs.Err_t {
	for a := 0; a < sz; a += PGSIZE {
		pte := as.Walk(a, false)
		if pte == nil {
			panic("uvmcopy: pte should exist")
		}
		if Ispaged(*pte) {
			cpte := child.Walk(a, true)
			if cpte == nil {
				child.Unmap(0, a/PGSIZE, true, nil)
				return -defs.ENOMEM
			}
			*cpte = *pte
			continue
		}
		if *pte&PTE_V == 0 {
			panic("uvmcopy: page not present")
		}
		npa, ok := as.Phys.Kalloc()
		if !ok {
			child.Unmap(0, a/PGSIZE, true, nil)
			return -defs.ENOMEM
		}
		*as.Phys.Dmap(npa) = *as.Phys.Dmap(PTE2PA(*pte))
		flags := *pte & PTE_FLAGS &^ PTE_V
		if err := child.Mappages(a, PGSIZE, npa, flags); err != 0 {
			as.Phys.Kfree(npa)
			child.Unmap(0, a/PGSIZE, true, nil)
			return err
		}
	}
	return 0
}

// number of resident user pages below Sz
func (as *Vm_t) Resident() int {
	n := 0
	for a := 0; a < as.Sz; a += PGSIZE {
		pte := as.Walk(a, false)
		if pte != nil && Isresident(*pte) {
			n++
		}
	}
	return n
}

// number of paged-out user pages below Sz
func (as *Vm_t) Paged() int {
	n := 0
	for a := 0; a < as.Sz; a += PGSIZE {
		pte := as.Walk(a, false)
		if pte != nil && Ispaged(*pte) {
			n++
		}
	}
	return n
}

// returns the bytes of the user page at va starting at va's offset, faulting
// the page in if it was paged out. sets the accessed bit, and the dirty bit
// when write is set.
func (as *Vm_t) Userdmap8_inner(va int, write bool) ([]uint8, defs.Err_t) {
	as.Lockassert_pmap()
	if va < 0 || va >= MAXVA {
		return nil, -defs.EFAULT
	}
	pte := as.Walk(va, false)
	if pte == nil {
		return nil, -defs.EFAULT
	}
	if Ispaged(*pte) {
		if as.Fault == nil {
			return nil, -defs.EFAULT
		}
		if err := as.Fault.Pgfault_inner(as, va); err != 0 {
			return nil, err
		}
	}
	if !Isresident(*pte) {
		return nil, -defs.EFAULT
	}
	if write && *pte&PTE_W == 0 {
		return nil, -defs.EFAULT
	}
	*pte |= PTE_A
	if write {
		*pte |= PTE_D
	}
	voff := va & (PGSIZE - 1)
	pg := as.Phys.Dmap8(PTE2PA(*pte))
	return pg[voff:], 0
}

// copies src to the user virtual address uva.
func (as *Vm_t) K2user(src []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	ret := as.K2user_inner(src, uva)
	as.Unlock_pmap()
	return ret
}

func (as *Vm_t) K2user_inner(src []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for len(src) != 0 {
		dst, err := as.Userdmap8_inner(uva+cnt, true)
		if err != 0 {
			return err
		}
		did := copy(dst, src)
		src = src[did:]
		cnt += did
	}
	return 0
}

// copies len(dst) bytes from userspace address uva to dst
func (as *Vm_t) User2k(dst []uint8, uva int) defs.Err_t {
	as.Lock_pmap()
	ret := as.User2k_inner(dst, uva)
	as.Unlock_pmap()
	return ret
}

func (as *Vm_t) User2k_inner(dst []uint8, uva int) defs.Err_t {
	as.Lockassert_pmap()
	cnt := 0
	for len(dst) != 0 {
		src, err := as.Userdmap8_inner(uva+cnt, false)
		if err != 0 {
			return err
		}
		did := copy(dst, src)
		dst = dst[did:]
		cnt += did
	}
	return 0
}
