package limits

import "os"
import "path/filepath"
import "testing"

func TestDefaultsValid(t *testing.T) {
	s := MkSysLimit()
	if err := s.Validate(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if s.Swapslots() != 16 {
		t.Fatalf("swap slots %v", s.Swapslots())
	}
}

func TestLoadOverlay(t *testing.T) {
	p := filepath.Join(t.TempDir(), "kernel.json")
	cfg := `{"SWAP_ALGO": "lapa", "NCPU": 1, "MAX_PSYC_PAGES": 4}`
	if err := os.WriteFile(p, []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	s, err := Load(p)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Swapalgo != "lapa" || s.Ncpu != 1 || s.Psycpages != 4 {
		t.Fatalf("overlay not applied: %+v", s)
	}
	if s.Nproc != 64 || s.Totalpages != 32 {
		t.Fatalf("defaults lost: %+v", s)
	}
	if !s.Procs.Take() {
		t.Fatalf("proc budget empty")
	}
}

func TestLoadRejects(t *testing.T) {
	bad := []string{
		`{"SWAP_ALGO": "lru"}`,
		`{"SCHED_POLICY": "edf"}`,
		`{"MAX_PSYC_PAGES": 40}`,
		`{"NKT": 0}`,
		`{`,
	}
	dir := t.TempDir()
	for i, c := range bad {
		p := filepath.Join(dir, "bad.json")
		if err := os.WriteFile(p, []byte(c), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(p); err == nil {
			t.Fatalf("%d: %s accepted", i, c)
		}
	}
	if _, err := Load(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("missing file accepted")
	}
}

func TestSysatomic(t *testing.T) {
	var s Sysatomic_t = 2
	if !s.Take() || !s.Take() {
		t.Fatalf("take failed")
	}
	if s.Take() {
		t.Fatalf("over limit")
	}
	s.Give()
	if !s.Take() {
		t.Fatalf("give lost")
	}
}
