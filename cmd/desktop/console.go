package main

import (
	"strings"
	"sync"
)

const (
	consoleCols = 80
	consoleRows = 30
	tabWidth    = 8
)

// console is the program's terminal: a scrollback of finished lines plus
// the line being written. It is written by the VM goroutine and read by
// Draw.
type console struct {
	mu    sync.Mutex
	lines []string
	cur   []byte
	max   int
}

func newConsole(scrollback int) *console {
	return &console{max: scrollback}
}

// Write appends program output, wrapping at consoleCols.
func (c *console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, b := range p {
		switch b {
		case '\n':
			c.newline()
		case '\r':
			c.cur = c.cur[:0]
		case '\b':
			if len(c.cur) > 0 {
				c.cur = c.cur[:len(c.cur)-1]
			}
		case '\t':
			for {
				c.put(' ')
				if len(c.cur)%tabWidth == 0 {
					break
				}
			}
		default:
			if b < ' ' || b > '~' {
				b = '?'
			}
			c.put(b)
		}
	}
	return len(p), nil
}

func (c *console) put(b byte) {
	if len(c.cur) == consoleCols {
		c.newline()
	}
	c.cur = append(c.cur, b)
}

func (c *console) newline() {
	c.lines = append(c.lines, string(c.cur))
	c.cur = c.cur[:0]
	if len(c.lines) > c.max {
		c.lines = c.lines[len(c.lines)-c.max:]
	}
}

// tail returns the last rows lines, the unfinished one included, followed
// by suffix on the last line.
func (c *console) tail(rows int, suffix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	all := append(append([]string(nil), c.lines...), string(c.cur)+suffix)
	if len(all) > rows {
		all = all[len(all)-rows:]
	}
	return strings.Join(all, "\n")
}
