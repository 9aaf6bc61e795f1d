//go:build unix

package vm

import (
	"io"

	"golang.org/x/sys/unix"
)

// HostFS opens files on the host through the raw open(2)/read(2)/close(2)
// system calls, so the program sees host semantics unchanged.
type HostFS struct{}

type hostFile struct {
	fd int
}

func (HostFS) Open(name string, flags int) (io.ReadCloser, error) {
	fd, err := unix.Open(name, flags|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, err
	}
	return &hostFile{fd: fd}, nil
}

func (f *hostFile) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	n, err := unix.Read(f.fd, p)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (f *hostFile) Close() error {
	return unix.Close(f.fd)
}
