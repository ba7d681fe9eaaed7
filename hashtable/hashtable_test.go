package hashtable

import "math/rand"
import "sync"
import "sync/atomic"
import "testing"
import "time"

import "github.com/EliasA5/xv6-riscv/defs"

func fill(t *testing.T, ht *Hashtable_t, n int) {
	for i := 1; i <= n; i++ {
		pid := defs.Pid_t(i)
		ht.Set(pid, i)
		v, ok := ht.Get(pid)
		if !ok {
			t.Fatalf("%v key", pid)
		}
		if v != i {
			t.Fatalf("%v val", pid)
		}
	}
}

func count(ht *Hashtable_t) int {
	n := 0
	ht.Iter(func(defs.Pid_t, interface{}) bool {
		n++
		return false
	})
	return n
}

const SZ = 10

func TestSimple(t *testing.T) {
	ht := MkHash(SZ)

	fill(t, ht, 3*SZ)
	if n := count(ht); n != 3*SZ {
		t.Fatalf("size %v", n)
	}
	for i := 2; i <= 3*SZ; i++ {
		pid := defs.Pid_t(i)
		ht.Del(pid)
		v, ok := ht.Get(1)
		if !ok {
			t.Fatalf("1 key")
		}
		if v != 1 {
			t.Fatalf("1 val")
		}
		if _, ok := ht.Get(pid); ok {
			t.Fatalf("%v key after del", pid)
		}
	}
	if n := count(ht); n != 1 {
		t.Fatalf("size after del %v", n)
	}
}

func TestSetKeepsExisting(t *testing.T) {
	ht := MkHash(SZ)
	if _, ok := ht.Set(3, "first"); !ok {
		t.Fatalf("insert failed")
	}
	v, ok := ht.Set(3, "second")
	if ok || v != "first" {
		t.Fatalf("set replaced existing: %v %v", v, ok)
	}
	if v, _ := ht.Get(3); v != "first" {
		t.Fatalf("get %v", v)
	}
}

func TestOneBucket(t *testing.T) {
	ht := MkHash(1)
	for i := 1; i <= 5; i++ {
		ht.Set(defs.Pid_t(6-i), i)
	}
	for i := 1; i <= 5; i++ {
		if v, ok := ht.Get(defs.Pid_t(6 - i)); !ok || v != i {
			t.Fatalf("pid %v: %v %v", 6-i, v, ok)
		}
	}
	ht.Del(3)
	if _, ok := ht.Get(3); ok {
		t.Fatalf("3 after del")
	}
	if n := count(ht); n != 4 {
		t.Fatalf("size %v", n)
	}
}

func TestIter(t *testing.T) {
	ht := MkHash(SZ)
	for i := 1; i <= 5; i++ {
		ht.Set(defs.Pid_t(i), i*10)
	}
	sum := 0
	ht.Iter(func(pid defs.Pid_t, v interface{}) bool {
		sum += v.(int)
		return false
	})
	if sum != 150 {
		t.Fatalf("sum %v", sum)
	}
	found := ht.Iter(func(pid defs.Pid_t, v interface{}) bool {
		return pid == 4
	})
	if !found {
		t.Fatalf("iter did not stop")
	}
}

func TestDelMissing(t *testing.T) {
	ht := MkHash(SZ)
	ht.Set(1, 1)
	defer func() {
		if recover() == nil {
			t.Fatalf("del of missing key did not panic")
		}
	}()
	ht.Del(2)
}

const NPROC = 4
const NSEC = 1

func doop(t *testing.T, ht *Hashtable_t, pid defs.Pid_t, v int) {
	_, b := ht.Set(pid, v)
	if !b {
		t.Fatalf("%v key already exists", pid)
	}
	r, ok := ht.Get(pid)
	if !ok {
		t.Fatalf("%v key", pid)
	}
	if v != r {
		t.Fatalf("%v val", v)
	}
	ht.Del(pid)
	if _, ok = ht.Get(pid); ok {
		t.Fatalf("%v key", pid)
	}
}

// the writer owns pids above SZ, which it adds and removes
func writer(t *testing.T, ht *Hashtable_t, done *int32) int {
	n := 0
	for atomic.LoadInt32(done) == 0 {
		v := rand.Intn(SZ)
		doop(t, ht, defs.Pid_t(SZ+1+v), v)
		n++
	}
	return n
}

func reader(t *testing.T, ht *Hashtable_t, done *int32) int {
	n := 0
	for atomic.LoadInt32(done) == 0 {
		v := 1 + rand.Intn(SZ)
		r, ok := ht.Get(defs.Pid_t(v))
		if !ok {
			t.Fatalf("%v key", v)
		}
		if v != r {
			t.Fatalf("%v val", v)
		}
		n++
	}
	return n
}

func TestManyReaderOneWriter(t *testing.T) {
	ht := MkHash(SZ)
	fill(t, ht, SZ)

	var wg sync.WaitGroup
	done := int32(0)
	var nreads, nwrites int64
	for p := 0; p < NPROC; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if id == 0 {
				atomic.AddInt64(&nwrites, int64(writer(t, ht, &done)))
			} else {
				atomic.AddInt64(&nreads, int64(reader(t, ht, &done)))
			}
		}(p)
	}
	time.Sleep(NSEC * time.Second)
	atomic.StoreInt32(&done, 1)
	wg.Wait()
	t.Logf("reads %d/s writes %d/s", nreads, nwrites)
}
