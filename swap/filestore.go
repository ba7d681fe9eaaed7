//go:build unix

package swap

import "fmt"
import "io"
import "path/filepath"

import "golang.org/x/sys/unix"

import "github.com/EliasA5/xv6-riscv/defs"
import "github.com/EliasA5/xv6-riscv/mem"

// Filestore_t keeps a process' swapped pages in the file swap<pid>.
type Filestore_t struct {
	fd   int
	path string
}

func Mkfilestore(dir string, pid defs.Pid_t, nslots int) (*Filestore_t, error) {
	path := filepath.Join(dir, fmt.Sprintf("swap%d", pid))
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("swap: open %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, int64(nslots*mem.PGSIZE)); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("swap: truncate %s: %w", path, err)
	}
	return &Filestore_t{fd: fd, path: path}, nil
}

func (fs *Filestore_t) Readat(dst []uint8, off int) error {
	if fs.fd < 0 {
		return fmt.Errorf("swap: %s removed", fs.path)
	}
	for len(dst) != 0 {
		n, err := unix.Pread(fs.fd, dst, int64(off))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("swap: read %s at %d: %w", fs.path, off, err)
		}
		if n == 0 {
			return fmt.Errorf("swap: read %s at %d: %w", fs.path, off,
				io.ErrUnexpectedEOF)
		}
		dst = dst[n:]
		off += n
	}
	return nil
}

func (fs *Filestore_t) Writeat(src []uint8, off int) error {
	if fs.fd < 0 {
		return fmt.Errorf("swap: %s removed", fs.path)
	}
	for len(src) != 0 {
		n, err := unix.Pwrite(fs.fd, src, int64(off))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return fmt.Errorf("swap: write %s at %d: %w", fs.path, off, err)
		}
		src = src[n:]
		off += n
	}
	return nil
}

// Sync flushes the store to stable storage.
func (fs *Filestore_t) Sync() error {
	if err := unix.Fsync(fs.fd); err != nil {
		return fmt.Errorf("swap: fsync %s: %w", fs.path, err)
	}
	return nil
}

func (fs *Filestore_t) Remove() error {
	if fs.fd < 0 {
		return nil
	}
	cerr := unix.Close(fs.fd)
	fs.fd = -1
	if err := unix.Unlink(fs.path); err != nil {
		return fmt.Errorf("swap: unlink %s: %w", fs.path, err)
	}
	if cerr != nil {
		return fmt.Errorf("swap: close %s: %w", fs.path, cerr)
	}
	return nil
}
