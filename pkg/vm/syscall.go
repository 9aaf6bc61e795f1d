package vm

import (
	"bytes"
	"fmt"
	"io"
)

// syscall executes one of the host calls OPEN..EXIT. Arguments stay on the
// stack (the caller's ADJ drops them); the last pushed argument is arg(0).
func (v *VM) syscall(op Opcode) error {
	switch op {
	case OPEN:
		pathAddr, err := v.arg(1)
		if err != nil {
			return err
		}
		flags, err := v.arg(0)
		if err != nil {
			return err
		}
		path, err := v.mem.cstring(pathAddr)
		if err != nil {
			return v.memFault(err)
		}
		fd, err := v.files.open(path, int(flags))
		if err != nil {
			log.Debugf("open(%q): %v", path, err)
		}
		v.a = fd

	case READ:
		fd, err := v.arg(2)
		if err != nil {
			return err
		}
		bufAddr, err := v.arg(1)
		if err != nil {
			return err
		}
		n, err := v.arg(0)
		if err != nil {
			return err
		}
		buf, err := v.mem.slice(bufAddr, n)
		if err != nil {
			return v.memFault(err)
		}
		got, err := v.files.read(fd, buf)
		if err != nil {
			log.Debugf("read(%d): %v", fd, err)
			got = -1
		}
		v.a = int64(got)

	case CLOS:
		fd, err := v.arg(0)
		if err != nil {
			return err
		}
		v.a = 0
		if err := v.files.close(fd); err != nil {
			v.a = -1
		}

	case PRTF:
		// The call site's trailing ADJ tells how many words were pushed.
		if v.pc+1 >= len(v.prog.Code) || Opcode(v.prog.Code[v.pc]) != ADJ {
			return v.fail("printf without arguments", nil)
		}
		nargs := v.prog.Code[v.pc+1]
		if nargs < 1 {
			return v.fail("printf without arguments", nil)
		}
		fmtAddr, err := v.arg(nargs - 1)
		if err != nil {
			return err
		}
		format, err := v.mem.cstring(fmtAddr)
		if err != nil {
			return v.memFault(err)
		}
		args := make([]int64, nargs-1)
		for i := range args {
			if args[i], err = v.arg(nargs - 2 - int64(i)); err != nil {
				return err
			}
		}
		s, err := formatC(v.mem, format, args)
		if err != nil {
			return v.memFault(err)
		}
		n, _ := io.WriteString(v.out, s)
		v.a = int64(n)

	case MALC:
		n, err := v.arg(0)
		if err != nil {
			return err
		}
		v.a = v.heap.alloc(n)

	case FREE:
		addr, err := v.arg(0)
		if err != nil {
			return err
		}
		v.heap.release(addr)

	case MSET:
		dst, err := v.arg(2)
		if err != nil {
			return err
		}
		val, err := v.arg(1)
		if err != nil {
			return err
		}
		n, err := v.arg(0)
		if err != nil {
			return err
		}
		buf, err := v.mem.slice(dst, n)
		if err != nil {
			return v.memFault(err)
		}
		for i := range buf {
			buf[i] = byte(val)
		}
		v.a = dst

	case MCMP:
		p, err := v.arg(2)
		if err != nil {
			return err
		}
		q, err := v.arg(1)
		if err != nil {
			return err
		}
		n, err := v.arg(0)
		if err != nil {
			return err
		}
		x, err := v.mem.slice(p, n)
		if err != nil {
			return v.memFault(err)
		}
		y, err := v.mem.slice(q, n)
		if err != nil {
			return v.memFault(err)
		}
		v.a = int64(bytes.Compare(x, y))

	case EXIT:
		code, err := v.arg(0)
		if err != nil {
			return err
		}
		fmt.Fprintf(v.out, "exit(%d) cycle = %d\n", code, v.cycle)
		v.halted = true
		v.exitCode = code
		log.Debugf("exit(%d) after %d cycles, %d heap bytes live", code, v.cycle, v.heap.inUse())
	}
	return nil
}
