package vm

import "testing"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/mem"

func mkas(t *testing.T, nframes int) *Vm_t {
	as := &Vm_t{}
	if !as.Uvmcreate(mem.Mkphysmem(nframes)) {
		t.Fatalf("uvmcreate")
	}
	return as
}

func TestSlotEncoding(t *testing.T) {
	for _, slot := range []int{0, 1, 17, 31} {
		pte := Slot2pte(slot) | PTE_PG | PTE_U
		if !Ispaged(pte) || Isresident(pte) {
			t.Fatalf("slot %v: bad classification", slot)
		}
		if got := Pte2slot(pte); got != slot {
			t.Fatalf("slot %v came back as %v", slot, got)
		}
	}
}

func TestAllocDealloc(t *testing.T) {
	as := mkas(t, 32)
	free := as.Phys.Nfree()
	sz, err := as.Uvmalloc(0, 3*PGSIZE+1, PTE_W)
	if err != 0 {
		t.Fatalf("uvmalloc %v", err)
	}
	as.Sz = sz
	if as.Resident() != 4 {
		t.Fatalf("resident %v", as.Resident())
	}
	for a := 0; a < sz; a += PGSIZE {
		if Walkaddr(as.Phys, as.P_pmap, a) == 0 {
			t.Fatalf("page %#x not mapped", a)
		}
	}
	as.Sz = as.Uvmdealloc(sz, PGSIZE, nil)
	if as.Resident() != 1 {
		t.Fatalf("resident after shrink %v", as.Resident())
	}
	as.Uvmfree(as.Sz, nil)
	if as.Phys.Nfree() != free+1 {
		t.Fatalf("leaked frames: %v free, want %v", as.Phys.Nfree(), free+1)
	}
}

func TestAllocRollback(t *testing.T) {
	// the root plus two interior page-table pages leave five frames
	as := mkas(t, 8)
	if _, err := as.Uvmalloc(0, PGSIZE, PTE_W); err != 0 {
		t.Fatalf("first page %v", err)
	}
	before := as.Phys.Nfree()
	if _, err := as.Uvmalloc(PGSIZE, 64*PGSIZE, PTE_W); err != -defs.ENOMEM {
		t.Fatalf("expected ENOMEM, got %v", err)
	}
	if as.Phys.Nfree() != before {
		t.Fatalf("rollback leaked: %v != %v", as.Phys.Nfree(), before)
	}
}

func TestCopyinCopyout(t *testing.T) {
	as := mkas(t, 16)
	sz, _ := as.Uvmalloc(0, 2*PGSIZE, PTE_W)
	as.Sz = sz
	msg := []uint8("crosses a page boundary")
	uva := PGSIZE - 5
	if err := as.K2user(msg, uva); err != 0 {
		t.Fatalf("k2user %v", err)
	}
	got := make([]uint8, len(msg))
	if err := as.User2k(got, uva); err != 0 {
		t.Fatalf("user2k %v", err)
	}
	if string(got) != string(msg) {
		t.Fatalf("got %q", got)
	}
	pte := as.Walk(PGSIZE, false)
	if *pte&PTE_A == 0 || *pte&PTE_D == 0 {
		t.Fatalf("accessed/dirty not set: %#x", *pte)
	}
	if err := as.K2user(msg, 2*PGSIZE); err != -defs.EFAULT {
		t.Fatalf("write past sz: %v", err)
	}
}

func TestReadOnly(t *testing.T) {
	as := mkas(t, 16)
	sz, _ := as.Uvmalloc(0, PGSIZE, 0)
	as.Sz = sz
	if err := as.K2user([]uint8{1}, 0); err != -defs.EFAULT {
		t.Fatalf("write to read-only page: %v", err)
	}
	b := make([]uint8, 1)
	if err := as.User2k(b, 0); err != 0 {
		t.Fatalf("read of read-only page: %v", err)
	}
}

type fakefault_t struct {
	as    *Vm_t
	calls int
	pa    mem.Pa_t
}

func (f *fakefault_t) Pgfault_inner(as *Vm_t, va int) defs.Err_t {
	as.Lockassert_pmap()
	f.calls++
	pte := as.Walk(va, false)
	*pte = PA2PTE(f.pa) | PTE_V | PTE_R | PTE_W | PTE_U
	return 0
}

func TestFaultHook(t *testing.T) {
	as := mkas(t, 16)
	sz, _ := as.Uvmalloc(0, PGSIZE, PTE_W)
	as.Sz = sz
	pte := as.Walk(0, false)
	pa := PTE2PA(*pte)
	as.Phys.Dmap8(pa)[3] = 42
	*pte = Slot2pte(0) | PTE_PG | PTE_R | PTE_W | PTE_U
	if as.Resident() != 0 || as.Paged() != 1 {
		t.Fatalf("resident %v paged %v", as.Resident(), as.Paged())
	}
	f := &fakefault_t{pa: pa}
	as.Fault = f
	b := make([]uint8, 1)
	if err := as.User2k(b, 3); err != 0 {
		t.Fatalf("user2k %v", err)
	}
	if f.calls != 1 || b[0] != 42 {
		t.Fatalf("calls %v byte %v", f.calls, b[0])
	}
	as.User2k(b, 3)
	if f.calls != 1 {
		t.Fatalf("faulted a resident page")
	}
}

func TestCopy(t *testing.T) {
	as := mkas(t, 32)
	sz, _ := as.Uvmalloc(0, 2*PGSIZE, PTE_W)
	as.Sz = sz
	as.K2user([]uint8("parent"), 10)
	// page out the second page by hand
	pte := as.Walk(PGSIZE, false)
	as.Phys.Kfree(PTE2PA(*pte))
	*pte = Slot2pte(5) | PTE_PG | PTE_R | PTE_W | PTE_U

	child := &Vm_t{}
	child.Uvmcreate(as.Phys)
	if err := as.Uvmcopy(child, sz); err != 0 {
		t.Fatalf("uvmcopy %v", err)
	}
	child.Sz = sz
	got := make([]uint8, 6)
	child.User2k(got, 10)
	if string(got) != "parent" {
		t.Fatalf("child sees %q", got)
	}
	child.K2user([]uint8("child!"), 10)
	as.User2k(got, 10)
	if string(got) != "parent" {
		t.Fatalf("child write visible in parent: %q", got)
	}
	cpte := child.Walk(PGSIZE, false)
	if !Ispaged(*cpte) || Pte2slot(*cpte) != 5 {
		t.Fatalf("paged entry not copied: %#x", *cpte)
	}
	var slots []int
	child.Uvmfree(sz, func(s int) { slots = append(slots, s) })
	if len(slots) != 1 || slots[0] != 5 {
		t.Fatalf("swapped callback %v", slots)
	}
}
