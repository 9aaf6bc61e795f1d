package vm

import "testing"

func TestFormatC(t *testing.T) {
	mem := newMemory([]byte("abc\x00"), 64, 64)
	str := DataBase

	tests := []struct {
		format string
		args   []int64
		want   string
	}{
		{"plain", nil, "plain"},
		{"%d|%i", []int64{-3, 4}, "-3|4"},
		{"%5d|%-5d|%05d", []int64{42, 42, 42}, "   42|42   |00042"},
		{"%x %X %o", []int64{255, 255, 8}, "ff FF 10"},
		{"%u", []int64{-1}, "18446744073709551615"},
		{"%c%c", []int64{'h', 'i' + 256}, "hi"},
		{"%c|%3c|%-2c|", []int64{200, 255, 128}, "\xc8|  \xff|\x80 |"},
		{"%s!", []int64{str}, "abc!"},
		{"%.2s", []int64{str}, "ab"},
		{"%*d", []int64{4, 7}, "   7"},
		{"%ld %lld", []int64{1, 2}, "1 2"},
		{"%s", []int64{0}, "(null)"},
		{"100%%", nil, "100%"},
		{"%d %d", []int64{1}, "1 0"},
		{"%q", nil, "%q"},
		{"tail %", nil, "tail %"},
		{"%p", []int64{16}, "0x10"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := formatC(mem, tt.format, tt.args)
			if err != nil {
				t.Fatalf("formatC failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("formatC(%q) = %q, want %q", tt.format, got, tt.want)
			}
		})
	}
}

func TestFormatC_BadString(t *testing.T) {
	mem := newMemory(nil, 16, 16)
	if _, err := formatC(mem, "%s", []int64{1 << 40}); err == nil {
		t.Errorf("expected a memory fault for a wild %%s pointer")
	}
}
