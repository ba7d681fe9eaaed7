package mem

import "testing"

func TestAllocAll(t *testing.T) {
	const n = 16
	phys := Mkphysmem(n)
	seen := make(map[Pa_t]bool)
	for i := 0; i < n; i++ {
		pa, ok := phys.Kalloc()
		if !ok {
			t.Fatalf("alloc %d failed", i)
		}
		if pa&PGOFFSET != 0 || pa < KERNBASE {
			t.Fatalf("bad pa %#x", pa)
		}
		if seen[pa] {
			t.Fatalf("pa %#x handed out twice", pa)
		}
		seen[pa] = true
	}
	if _, ok := phys.Kalloc(); ok {
		t.Fatalf("allocated past the end")
	}
	if phys.Nfree() != 0 {
		t.Fatalf("nfree %v", phys.Nfree())
	}
	for pa := range seen {
		phys.Kfree(pa)
	}
	if phys.Nfree() != n {
		t.Fatalf("nfree %v", phys.Nfree())
	}
}

func TestZeroAndBytes(t *testing.T) {
	phys := Mkphysmem(2)
	pa, _ := phys.Kzalloc()
	b := phys.Dmap8(pa)
	for i := range b {
		if b[i] != 0 {
			t.Fatalf("byte %d not zero", i)
		}
	}
	b[8] = 0xff
	if phys.Dmap(pa)[1] != 0xff {
		t.Fatalf("byte view and word view disagree")
	}
	pm := Pg2pmap(phys.Dmap(pa))
	if pm[1] != 0xff {
		t.Fatalf("pmap view disagrees")
	}
}

func TestDoubleFree(t *testing.T) {
	phys := Mkphysmem(1)
	pa, _ := phys.Kalloc()
	phys.Kfree(pa)
	defer func() {
		if recover() == nil {
			t.Fatalf("double free not caught")
		}
	}()
	phys.Kfree(pa)
}
