package vm

import (
	"fmt"
	"strings"
)

// formatC renders a C printf format against word arguments. %s and %c take
// their argument from VM memory. Missing arguments read as 0.
func formatC(mem *memory, format string, args []int64) (string, error) {
	var out strings.Builder
	next := 0
	arg := func() int64 {
		if next >= len(args) {
			next++
			return 0
		}
		v := args[next]
		next++
		return v
	}

	for i := 0; i < len(format); i++ {
		ch := format[i]
		if ch != '%' {
			out.WriteByte(ch)
			continue
		}
		start := i
		i++
		if i >= len(format) {
			out.WriteByte('%')
			break
		}

		var conv strings.Builder
		conv.WriteByte('%')

		for i < len(format) && strings.IndexByte("-+ #0", format[i]) >= 0 {
			conv.WriteByte(format[i])
			i++
		}
		if i < len(format) && format[i] == '*' {
			fmt.Fprintf(&conv, "%d", arg())
			i++
		} else {
			for i < len(format) && format[i] >= '0' && format[i] <= '9' {
				conv.WriteByte(format[i])
				i++
			}
		}
		if i < len(format) && format[i] == '.' {
			conv.WriteByte('.')
			i++
			if i < len(format) && format[i] == '*' {
				if p := arg(); p >= 0 {
					fmt.Fprintf(&conv, "%d", p)
				}
				i++
			} else {
				for i < len(format) && format[i] >= '0' && format[i] <= '9' {
					conv.WriteByte(format[i])
					i++
				}
			}
		}
		for i < len(format) && strings.IndexByte("hlqjzt", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			out.WriteString(format[start:])
			break
		}

		switch verb := format[i]; verb {
		case '%':
			out.WriteByte('%')
		case 'd', 'i':
			fmt.Fprintf(&out, conv.String()+"d", arg())
		case 'u':
			fmt.Fprintf(&out, conv.String()+"d", uint64(arg()))
		case 'x', 'X', 'o':
			fmt.Fprintf(&out, conv.String()+string(verb), uint64(arg()))
		case 'c':
			// one raw byte, not the UTF-8 encoding of a rune
			fmt.Fprintf(&out, conv.String()+"s", string([]byte{byte(arg())}))
		case 'p':
			fmt.Fprintf(&out, "0x%x", uint64(arg()))
		case 's':
			addr := arg()
			s := "(null)"
			if addr != 0 {
				var err error
				if s, err = mem.cstring(addr); err != nil {
					return out.String(), err
				}
			}
			fmt.Fprintf(&out, conv.String()+"s", s)
		default:
			out.WriteString(format[start : i+1])
		}
	}
	return out.String(), nil
}
