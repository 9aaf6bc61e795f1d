package vm

import (
	"errors"
	"io"
)

// FileSystem backs the OPEN syscall. Flags are the program's open(2) flags,
// passed through untouched.
type FileSystem interface {
	Open(name string, flags int) (io.ReadCloser, error)
}

var errBadFD = errors.New("bad file descriptor")

// fileTable maps program file descriptors to open files. Descriptor 0 is
// the configured standard input, if any.
type fileTable struct {
	fs    FileSystem
	files map[int64]io.ReadCloser
	next  int64
}

func newFileTable(fs FileSystem, stdin io.Reader) *fileTable {
	t := &fileTable{
		fs:    fs,
		files: make(map[int64]io.ReadCloser),
		next:  3,
	}
	if stdin != nil {
		t.files[0] = io.NopCloser(stdin)
	}
	return t
}

func (t *fileTable) open(name string, flags int) (int64, error) {
	if t.fs == nil {
		return -1, errors.New("no file system configured")
	}
	f, err := t.fs.Open(name, flags)
	if err != nil {
		return -1, err
	}
	fd := t.next
	t.next++
	t.files[fd] = f
	return fd, nil
}

func (t *fileTable) read(fd int64, buf []byte) (int, error) {
	f, ok := t.files[fd]
	if !ok {
		return -1, errBadFD
	}
	n, err := f.Read(buf)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (t *fileTable) close(fd int64) error {
	f, ok := t.files[fd]
	if !ok {
		return errBadFD
	}
	delete(t.files, fd)
	return f.Close()
}

func (t *fileTable) closeAll() {
	for fd, f := range t.files {
		_ = f.Close()
		delete(t.files, fd)
	}
}
