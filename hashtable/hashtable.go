package hashtable

import "sync"
import "sync/atomic"
import "unsafe"

import "github.com/EliasA5/xv6-riscv/defs"

type elem_t struct {
	pid     defs.Pid_t
	value   interface{}
	keyHash uint32
	next    *elem_t
}

type bucket_t struct {
	sync.Mutex
	first *elem_t
}

// Hashtable_t maps pids to values. it has a fixed number of buckets, each a
// list sorted by key hash. lookups take no locks; writers lock one bucket
// and publish elements with atomic stores.
type Hashtable_t struct {
	table []*bucket_t
}

func MkHash(size int) *Hashtable_t {
	ht := &Hashtable_t{}
	ht.table = make([]*bucket_t, size)
	for i := range ht.table {
		ht.table[i] = &bucket_t{}
	}
	return ht
}

func (ht *Hashtable_t) Get(pid defs.Pid_t) (interface{}, bool) {
	kh := khash(pid)
	b := ht.bucket(kh)
	for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
		if e.pid == pid {
			return e.value, true
		}
		if kh < e.keyHash {
			break
		}
	}
	return nil, false
}

// Set inserts pid if it is absent and returns (value, true). if pid is
// present, the table is unchanged and the existing value is returned with
// false.
func (ht *Hashtable_t) Set(pid defs.Pid_t, value interface{}) (interface{}, bool) {
	kh := khash(pid)
	b := ht.bucket(kh)
	b.Lock()
	defer b.Unlock()

	prev := &b.first
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			return e.value, false
		}
		if kh < e.keyHash {
			break
		}
		prev = &e.next
	}
	n := &elem_t{pid: pid, value: value, keyHash: kh, next: *prev}
	storeptr(prev, n)
	return value, true
}

// Del removes pid, which must be present.
func (ht *Hashtable_t) Del(pid defs.Pid_t) {
	kh := khash(pid)
	b := ht.bucket(kh)
	b.Lock()
	defer b.Unlock()

	prev := &b.first
	for e := b.first; e != nil; e = e.next {
		if e.pid == pid {
			storeptr(prev, e.next)
			return
		}
		if kh < e.keyHash {
			break
		}
		prev = &e.next
	}
	panic("del of non-existing pid")
}

// Iter calls f on every element until f returns true. returns true if f
// did.
func (ht *Hashtable_t) Iter(f func(defs.Pid_t, interface{}) bool) bool {
	for _, b := range ht.table {
		for e := loadptr(&b.first); e != nil; e = loadptr(&e.next) {
			if f(e.pid, e.value) {
				return true
			}
		}
	}
	return false
}

func (ht *Hashtable_t) bucket(keyHash uint32) *bucket_t {
	return ht.table[keyHash%uint32(len(ht.table))]
}

func loadptr(e **elem_t) *elem_t {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(e))
	return (*elem_t)(atomic.LoadPointer(ptr))
}

func storeptr(p **elem_t, n *elem_t) {
	ptr := (*unsafe.Pointer)(unsafe.Pointer(p))
	atomic.StorePointer(ptr, unsafe.Pointer(n))
}

// knuth multiplicative hash
func khash(pid defs.Pid_t) uint32 {
	return uint32(2654435761) * uint32(pid)
}
