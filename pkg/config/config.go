// Package config handles c4vm.toml run configuration.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"c4vm/pkg/compiler"
	"c4vm/pkg/vm"
)

// DefaultFile is looked up in the working directory when no -config flag
// is given.
const DefaultFile = "c4vm.toml"

// Config is a c4vm.toml run configuration.
type Config struct {
	VM  VM  `toml:"vm"`
	FS  FS  `toml:"fs"`
	Log Log `toml:"log"`
}

// VM sizes the program's memory regions, in bytes.
type VM struct {
	DataSize  int  `toml:"data_size"`
	HeapSize  int  `toml:"heap_size"`
	StackSize int  `toml:"stack_size"`
	Trace     bool `toml:"trace"`
}

// FS selects the backing store for open(). An empty Storage means the host
// file system.
type FS struct {
	Storage string `toml:"storage"`
}

// Log sets the diagnostic log verbosity. Program output is never logged.
type Log struct {
	Verbosity int `toml:"verbosity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		VM: VM{
			DataSize:  compiler.DefaultMaxData,
			HeapSize:  vm.DefaultHeapSize,
			StackSize: vm.DefaultStackSize,
		},
	}
}

// Parse decodes TOML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %s", undecoded[0])
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load reads a configuration file. A missing file yields the defaults only
// when optional is set.
func Load(path string, optional bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if optional && os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return c, nil
}

// Validate rejects sizes the VM cannot run with.
func (c *Config) Validate() error {
	if c.VM.DataSize <= 0 {
		return fmt.Errorf("vm.data_size must be positive, got %d", c.VM.DataSize)
	}
	if c.VM.HeapSize < 0 {
		return fmt.Errorf("vm.heap_size must not be negative, got %d", c.VM.HeapSize)
	}
	if c.VM.StackSize < 1024 {
		return fmt.Errorf("vm.stack_size must be at least 1024, got %d", c.VM.StackSize)
	}
	if c.Log.Verbosity < -1 {
		return fmt.Errorf("log.verbosity must be -1 or more, got %d", c.Log.Verbosity)
	}
	return nil
}
