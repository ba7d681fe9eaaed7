//go:build unix

package swap

import "os"
import "path/filepath"
import "testing"

func TestFilestore(t *testing.T) {
	dir := t.TempDir()
	fs, err := Mkfilestore(dir, 7, 2)
	if err != nil {
		t.Fatalf("mkfilestore: %v", err)
	}
	path := filepath.Join(dir, "swap7")
	if fi, err := os.Stat(path); err != nil || fi.Size() != 2*4096 {
		t.Fatalf("swap file: %v %v", fi, err)
	}
	src := []uint8("page contents")
	if err := fs.Writeat(src, 4096); err != nil {
		t.Fatalf("write: %v", err)
	}
	dst := make([]uint8, len(src))
	if err := fs.Readat(dst, 4096); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(dst) != string(src) {
		t.Fatalf("read back %q", dst)
	}
	if err := fs.Readat(make([]uint8, 10), 2*4096); err == nil {
		t.Fatalf("read past the end succeeded")
	}
	if err := fs.Remove(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("swap file still there: %v", err)
	}
	if err := fs.Writeat(src, 0); err == nil {
		t.Fatalf("write after remove succeeded")
	}
}

func TestFileRoundtrip(t *testing.T) {
	for _, algo := range []string{"scfifo", "lapa"} {
		t.Run(algo, func(t *testing.T) {
			roundtrip(t, mklim(algo, t.TempDir()))
		})
	}
}
