//go:build !unix

package vm

import (
	"io"
	"os"
)

// HostFS opens files on the host file system.
type HostFS struct{}

func (HostFS) Open(name string, flags int) (io.ReadCloser, error) {
	return os.OpenFile(name, flags, 0o644)
}
