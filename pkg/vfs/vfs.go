// Package vfs is an in-memory, flat, read-mostly file store that sandboxes
// the open/read/close syscalls of a running program. It is usually loaded
// from a host directory once, before the program starts.
package vfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("c4vm.vfs")

// MaxDiskBytes bounds the total size of all files on a disk.
const MaxDiskBytes = 16 * 1024 * 1024

// accessMode masks the O_RDONLY/O_WRONLY/O_RDWR bits of open(2) flags.
const accessMode = 3

// validFilename accepts flat names only: no directories, no "..".
var validFilename = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_.\-]{0,63}$`)

var (
	ErrFileNotFound    = errors.New("file not found")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrQuotaExceeded   = errors.New("disk quota exceeded")
	ErrReadOnly        = errors.New("files can only be opened for reading")
)

type FileEntry struct {
	Data []byte
}

// VirtualDisk is safe for concurrent use. Files handed out by Open are
// snapshots: later writes do not affect an open reader.
type VirtualDisk struct {
	Mu        sync.RWMutex
	Files     map[string]*FileEntry
	UsedBytes int
}

// NewVirtualDisk creates an empty disk.
func NewVirtualDisk() *VirtualDisk {
	return &VirtualDisk{
		Files: make(map[string]*FileEntry),
	}
}

// cleanName strips a leading "./" and validates the rest.
func cleanName(filename string) (string, error) {
	name := strings.TrimPrefix(filename, "./")
	if !validFilename.MatchString(name) || strings.Contains(name, "..") {
		return "", ErrInvalidFilename
	}
	return name, nil
}

// Write stores a copy of data under filename, replacing any existing file.
func (vd *VirtualDisk) Write(filename string, data []byte) error {
	name, err := cleanName(filename)
	if err != nil {
		return err
	}

	vd.Mu.Lock()
	defer vd.Mu.Unlock()

	oldSize := 0
	if existing, ok := vd.Files[name]; ok {
		oldSize = len(existing.Data)
	}
	newSize := len(data)
	if vd.UsedBytes-oldSize+newSize > MaxDiskBytes {
		return ErrQuotaExceeded
	}

	newData := make([]byte, newSize)
	copy(newData, data)
	vd.Files[name] = &FileEntry{Data: newData}
	vd.UsedBytes = vd.UsedBytes - oldSize + newSize
	return nil
}

// Read returns the contents of filename. The slice must not be modified.
func (vd *VirtualDisk) Read(filename string) ([]byte, error) {
	name, err := cleanName(filename)
	if err != nil {
		return nil, err
	}

	vd.Mu.RLock()
	defer vd.Mu.RUnlock()

	entry, ok := vd.Files[name]
	if !ok {
		return nil, ErrFileNotFound
	}
	return entry.Data, nil
}

// Size returns the size of a file in bytes.
func (vd *VirtualDisk) Size(filename string) (int, error) {
	data, err := vd.Read(filename)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}

// List returns a sorted list of all filenames.
func (vd *VirtualDisk) List() []string {
	vd.Mu.RLock()
	defer vd.Mu.RUnlock()

	keys := make([]string, 0, len(vd.Files))
	for k := range vd.Files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Open implements the VM's file system hook. Only read access is allowed.
func (vd *VirtualDisk) Open(filename string, flags int) (io.ReadCloser, error) {
	if flags&accessMode != os.O_RDONLY {
		return nil, ErrReadOnly
	}
	data, err := vd.Read(filename)
	if err != nil {
		return nil, err
	}
	log.Debugf("open %s (%d bytes)", filename, len(data))
	return io.NopCloser(bytes.NewReader(data)), nil
}

// LoadFrom populates the disk from the regular files of a host directory.
// Files with invalid names or that do not fit are skipped. A missing
// directory is not an error.
func (vd *VirtualDisk) LoadFrom(path string) error {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		name := entry.Name()
		raw, err := os.ReadFile(filepath.Join(path, name))
		if err != nil {
			log.Warningf("skipping %s: %v", name, err)
			continue
		}
		if err := vd.Write(name, raw); err != nil {
			log.Warningf("skipping %s: %v", name, err)
			continue
		}
		loaded++
	}
	log.Infof("loaded %d files from %s", loaded, path)
	return nil
}
