package accnt

import "testing"

func TestVruntime(t *testing.T) {
	var a Accnt_t
	a.Init(5, 0, 0)
	if a.Vruntime() != 0 {
		t.Fatalf("no ticks yet")
	}
	a.Tick(true, false, false)
	a.Tick(false, true, false)
	a.Tick(false, false, true)
	a.Tick(true, true, true)
	st := a.Fetch()
	if st.Rtime != 2 || st.Retime != 1 || st.Stime != 1 {
		t.Fatalf("bad ticks %+v", st)
	}
	// 2*75/4
	if v := a.Vruntime(); v != 37 {
		t.Fatalf("vruntime %v", v)
	}
	a.Setcfs(2)
	if v := a.Vruntime(); v != 62 {
		t.Fatalf("vruntime %v", v)
	}
}

func TestAccumulator(t *testing.T) {
	var a Accnt_t
	a.Init(3, 1, 10)
	a.Charge()
	a.Setps(7)
	a.Charge()
	if a.Accumulator() != 20 {
		t.Fatalf("accum %v", a.Accumulator())
	}
}
