package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"c4vm/pkg/asm"
	"c4vm/pkg/compiler"
	"c4vm/pkg/config"
	"c4vm/pkg/vfs"
	"c4vm/pkg/vm"
)

var log = commonlog.GetLogger("c4vm.main")

const usage = "usage: c4vm [-s] [-d] [-o image] [-config file] [-storage dir] [-v n] file ...\n" +
	"       c4vm -run-bin image ..."

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run is the whole command line tool. Everything after the source file (or
// after the flags, with -run-bin) is passed to the program as argv.
func run(args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("c4vm", flag.ContinueOnError)
	flags.SetOutput(stderr)
	listing := flags.Bool("s", false, "print each source line with the code it produced, then stop")
	trace := flags.Bool("d", false, "trace every executed instruction")
	outPath := flags.String("o", "", "write the compiled image to this path instead of running it")
	runBinPath := flags.String("run-bin", "", "run an existing compiled image")
	configPath := flags.String("config", "", "run configuration (default "+config.DefaultFile+" if present)")
	storagePath := flags.String("storage", "", "serve open() from the files of this directory")
	verbosity := flags.Int("v", 0, "diagnostic log verbosity, -1 for silent")
	flags.Usage = func() { fmt.Fprintln(stderr, usage) }
	if err := flags.Parse(args); err != nil {
		return 2
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath, false)
	} else {
		cfg, err = config.Load(config.DefaultFile, true)
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}
	if isFlagSet(flags, "v") {
		cfg.Log.Verbosity = *verbosity
	}
	if *storagePath != "" {
		cfg.FS.Storage = *storagePath
	}
	cfg.VM.Trace = cfg.VM.Trace || *trace
	configureLog(cfg.Log.Verbosity)

	rest := flags.Args()
	var prog *vm.Program
	var argv []string
	if *runBinPath != "" {
		if *listing || *outPath != "" {
			fmt.Fprintln(stderr, "-run-bin cannot be combined with -s or -o")
			return 2
		}
		prog, err = readImage(*runBinPath)
		if err != nil {
			fmt.Fprintf(stderr, "could not load image %s: %v\n", *runBinPath, err)
			return -1
		}
		argv = append([]string{*runBinPath}, rest...)
	} else {
		if len(rest) == 0 {
			fmt.Fprintln(stderr, usage)
			return -1
		}
		src, err := os.ReadFile(rest[0])
		if err != nil {
			fmt.Fprintf(stderr, "could not open(%s)\n", rest[0])
			return -1
		}
		opts := compiler.Options{MaxData: cfg.VM.DataSize}
		if *listing {
			opts.Listing = stdout
		}
		prog, err = build(rest[0], string(src), opts)
		if err != nil {
			fmt.Fprintln(stderr, err)
			return -1
		}
		if *listing {
			return 0
		}
		if *outPath != "" {
			if err := writeImage(*outPath, prog); err != nil {
				fmt.Fprintf(stderr, "could not write image %s: %v\n", *outPath, err)
				return -1
			}
			log.Infof("wrote %d code words, %d data bytes to %s", len(prog.Code), len(prog.Data), *outPath)
			return 0
		}
		argv = rest
	}

	vcfg := vm.Config{
		HeapSize:  cfg.VM.HeapSize,
		StackSize: cfg.VM.StackSize,
		Output:    stdout,
		Stdin:     os.Stdin,
	}
	if cfg.VM.Trace {
		vcfg.Trace = stdout
	}
	if cfg.FS.Storage != "" {
		disk := vfs.NewVirtualDisk()
		if err := disk.LoadFrom(cfg.FS.Storage); err != nil {
			fmt.Fprintf(stderr, "could not load storage %s: %v\n", cfg.FS.Storage, err)
			return -1
		}
		log.Infof("storage %s: %s", cfg.FS.Storage, storageSummary(disk))
		vcfg.FS = disk
	}

	machine, err := vm.New(prog, vcfg)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}
	code, err := machine.Run(argv)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return -1
	}
	return int(code)
}

// build compiles C source, or assembles it when the file is a .s listing.
func build(path, src string, opts compiler.Options) (*vm.Program, error) {
	if strings.EqualFold(filepath.Ext(path), ".s") {
		return asm.Assemble(src)
	}
	return compiler.Compile(src, opts)
}

// storageSummary lists the files a program can open, with their sizes.
func storageSummary(disk *vfs.VirtualDisk) string {
	names := disk.List()
	if len(names) == 0 {
		return "empty"
	}
	parts := make([]string, 0, len(names))
	for _, name := range names {
		size, err := disk.Size(name)
		if err != nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s (%d bytes)", name, size))
	}
	return strings.Join(parts, ", ")
}

// configureLog maps 0 (the default) to errors only and each step above it
// to one more level of detail.
func configureLog(verbosity int) {
	if verbosity < 0 {
		commonlog.Configure(-4, nil)
		return
	}
	commonlog.Configure(verbosity-2, nil)
}

func isFlagSet(flags *flag.FlagSet, name string) bool {
	set := false
	flags.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func writeImage(path string, prog *vm.Program) error {
	img, err := prog.MarshalImage()
	if err != nil {
		return err
	}
	return os.WriteFile(path, img, 0o644)
}

func readImage(path string) (*vm.Program, error) {
	img, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return vm.UnmarshalImage(img)
}
