// Command desktop runs a C program in a window. Its output is drawn as a
// text console and typed lines become its standard input.
package main

import (
	"flag"
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/image/font/basicfont"

	"c4vm/pkg/compiler"
	"c4vm/pkg/vfs"
	"c4vm/pkg/vm"
)

var log = commonlog.GetLogger("c4vm.desktop")

const (
	cyclesPerFrame = 100000
	scrollback     = 500
	charWidth      = 7
	lineHeight     = 13
	margin         = 4
)

// runner drives a VM from its own goroutine. Each tick lets it execute up
// to budget instructions, so a program blocked in read() never stalls the
// window.
type runner struct {
	machine *vm.VM
	out     io.Writer
	budget  int
	tick    chan struct{}
	done    chan struct{}
	err     error
}

func newRunner(machine *vm.VM, out io.Writer, budget int) *runner {
	return &runner{
		machine: machine,
		out:     out,
		budget:  budget,
		tick:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (r *runner) start(args []string) {
	go func() {
		defer close(r.done)
		if err := r.machine.Start(args); err != nil {
			r.fail(err)
			return
		}
		for range r.tick {
			for i := 0; i < r.budget && !r.machine.Halted(); i++ {
				if err := r.machine.Step(); err != nil {
					r.fail(err)
					return
				}
			}
			if r.machine.Halted() {
				return
			}
		}
	}()
}

func (r *runner) fail(err error) {
	r.err = err
	fmt.Fprintf(r.out, "\n%v\n", err)
	log.Errorf("%s", err)
}

// step asks for another budget of cycles. It never blocks.
func (r *runner) step() {
	select {
	case r.tick <- struct{}{}:
	default:
	}
}

func (r *runner) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// keyboard collects typed characters into a line and hands finished lines
// to the program's stdin in order.
type keyboard struct {
	line  []rune
	lines chan string
	stdin *io.PipeWriter
}

func newKeyboard() (*keyboard, io.Reader) {
	pr, pw := io.Pipe()
	k := &keyboard{lines: make(chan string, 64), stdin: pw}
	go func() {
		for line := range k.lines {
			if _, err := io.WriteString(pw, line); err != nil {
				return
			}
		}
		pw.Close()
	}()
	return k, pr
}

func (k *keyboard) submit(echo io.Writer) {
	line := string(k.line) + "\n"
	k.line = k.line[:0]
	io.WriteString(echo, line)
	select {
	case k.lines <- line:
	default:
		log.Warningf("input dropped, program is not reading")
	}
}

// Game is the ebiten window.
type Game struct {
	run  *runner
	out  *console
	keys *keyboard
	face text.Face
	eof  bool
}

func (g *Game) Update() error {
	if !g.run.finished() && !g.eof {
		g.keys.line = append(g.keys.line, ebiten.AppendInputChars(nil)...)
		if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(g.keys.line) > 0 {
			g.keys.line = g.keys.line[:len(g.keys.line)-1]
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
			g.keys.submit(g.out)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
			g.eof = true
			close(g.keys.lines)
		}
	}
	g.run.step()
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(color.Black)
	suffix := ""
	if !g.run.finished() && !g.eof {
		suffix = string(g.keys.line) + "_"
	}
	op := &text.DrawOptions{}
	op.GeoM.Translate(margin, margin)
	op.LineSpacing = lineHeight
	op.ColorScale.ScaleWithColor(color.RGBA{0xc0, 0xff, 0xc0, 0xff})
	text.Draw(screen, g.out.tail(consoleRows, suffix), g.face, op)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return consoleCols*charWidth + 2*margin, consoleRows*lineHeight + 2*margin
}

func main() {
	storage := flag.String("storage", "", "serve open() from the files of this directory")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: desktop [-storage dir] file ...")
		os.Exit(2)
	}
	commonlog.Configure(-2, nil)

	path := flag.Arg(0)
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not open(%s)\n", path)
		os.Exit(1)
	}
	prog, err := compiler.Compile(string(src), compiler.Options{})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	out := newConsole(scrollback)
	keys, stdin := newKeyboard()
	cfg := vm.Config{Output: out, Stdin: stdin}
	if *storage != "" {
		disk := vfs.NewVirtualDisk()
		if err := disk.LoadFrom(*storage); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.FS = disk
	}
	machine, err := vm.New(prog, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	r := newRunner(machine, out, cyclesPerFrame)
	r.start(flag.Args())

	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	ebiten.SetWindowSize(2*(consoleCols*charWidth+2*margin), 2*(consoleRows*lineHeight+2*margin))
	ebiten.SetWindowTitle("c4vm: " + path)

	game := &Game{run: r, out: out, keys: keys, face: text.NewGoXFace(basicfont.Face7x13)}
	if err := ebiten.RunGame(game); err != nil {
		log.Errorf("%s", err)
		os.Exit(1)
	}
	if !r.finished() || r.err != nil {
		os.Exit(-1)
	}
	os.Exit(int(machine.ExitCode()))
}
