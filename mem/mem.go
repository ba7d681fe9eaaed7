package mem

import "fmt"
import "sync"
import "unsafe"

const PGSHIFT uint = 12
const PGSIZE int = 1 << PGSHIFT
const PGOFFSET Pa_t = 0xfff
const PGMASK Pa_t = ^(PGOFFSET)

// the first frame's physical address; address zero is never a frame
const KERNBASE Pa_t = 0x80000000

type Pa_t uintptr
type Bytepg_t [PGSIZE]uint8
type Pg_t [512]uint64

// a frame's page viewed as page table entries
type Pmap_t [512]Pa_t

func Pg2bytes(pg *Pg_t) *Bytepg_t {
	return (*Bytepg_t)(unsafe.Pointer(pg))
}

func Pg2pmap(pg *Pg_t) *Pmap_t {
	return (*Pmap_t)(unsafe.Pointer(pg))
}

type Physpg_t struct {
	// index into pgs of next page on free list
	nexti uint32
	inuse bool
}

// Physmem_t is a fixed pool of frames handed out one page at a time.
type Physmem_t struct {
	sync.Mutex
	pgs  []Pg_t
	meta []Physpg_t
	// index into pgs of first free pg
	freei   uint32
	freelen int
}

const nofree = ^uint32(0)

func Mkphysmem(nframes int) *Physmem_t {
	if nframes <= 0 {
		panic("no frames")
	}
	phys := &Physmem_t{}
	phys.pgs = make([]Pg_t, nframes)
	phys.meta = make([]Physpg_t, nframes)
	phys.freei = nofree
	for i := nframes - 1; i >= 0; i-- {
		phys.meta[i].nexti = phys.freei
		phys.freei = uint32(i)
	}
	phys.freelen = nframes
	return phys
}

func (phys *Physmem_t) pa2idx(pa Pa_t) uint32 {
	if pa&PGOFFSET != 0 || pa < KERNBASE {
		panic(fmt.Sprintf("bad pa %#x", pa))
	}
	idx := uint64((pa - KERNBASE) >> PGSHIFT)
	if idx >= uint64(len(phys.pgs)) {
		panic(fmt.Sprintf("pa out of range %#x", pa))
	}
	return uint32(idx)
}

func (phys *Physmem_t) idx2pa(idx uint32) Pa_t {
	return KERNBASE + Pa_t(idx)<<PGSHIFT
}

// Kalloc returns a frame filled with junk, or false when memory is
// exhausted.
func (phys *Physmem_t) Kalloc() (Pa_t, bool) {
	phys.Lock()
	idx := phys.freei
	if idx == nofree {
		phys.Unlock()
		return 0, false
	}
	m := &phys.meta[idx]
	phys.freei = m.nexti
	phys.freelen--
	m.inuse = true
	phys.Unlock()
	pg := &phys.pgs[idx]
	for i := range pg {
		pg[i] = 0x0505050505050505
	}
	return phys.idx2pa(idx), true
}

func (phys *Physmem_t) Kzalloc() (Pa_t, bool) {
	pa, ok := phys.Kalloc()
	if ok {
		*phys.Dmap(pa) = Pg_t{}
	}
	return pa, ok
}

func (phys *Physmem_t) Kfree(pa Pa_t) {
	idx := phys.pa2idx(pa)
	pg := &phys.pgs[idx]
	// fill with junk to catch dangling refs
	for i := range pg {
		pg[i] = 0x0101010101010101
	}
	phys.Lock()
	m := &phys.meta[idx]
	if !m.inuse {
		phys.Unlock()
		panic(fmt.Sprintf("kfree: double free %#x", pa))
	}
	m.inuse = false
	m.nexti = phys.freei
	phys.freei = idx
	phys.freelen++
	phys.Unlock()
}

func (phys *Physmem_t) Dmap(pa Pa_t) *Pg_t {
	return &phys.pgs[phys.pa2idx(pa)]
}

func (phys *Physmem_t) Dmap8(pa Pa_t) *Bytepg_t {
	return Pg2bytes(phys.Dmap(pa))
}

func (phys *Physmem_t) Nfree() int {
	phys.Lock()
	defer phys.Unlock()
	return phys.freelen
}

func (phys *Physmem_t) Nframes() int {
	return len(phys.pgs)
}
