package wire

import (
	"strings"
	"testing"
)

func TestHexdump(t *testing.T) {
	b := append([]byte("identities"), 0x00, 0xff)
	out := Hexdump("recv", b)

	if !strings.HasPrefix(out, "recv (12 bytes)") {
		t.Fatalf("header got=%q", out)
	}
	if !strings.Contains(out, "00000000") {
		t.Fatalf("offset column missing: %q", out)
	}
	if !strings.Contains(out, "69 64 65 6e 74 69 74 69") {
		t.Fatalf("hex column missing: %q", out)
	}
	if !strings.Contains(out, "|identities..|") {
		t.Fatalf("ascii column got=%q", out)
	}
}

func TestHexdumpWrapsRows(t *testing.T) {
	out := Hexdump("x", make([]byte, 20))
	if !strings.Contains(out, "\n00000010") {
		t.Fatalf("second row missing: %q", out)
	}
	if got := strings.Count(out, "\n"); got != 2 {
		t.Fatalf("row count got=%d: %q", got, out)
	}
}

func TestHexdumpEmpty(t *testing.T) {
	if out := Hexdump("empty", nil); out != "empty (0 bytes)" {
		t.Fatalf("got=%q", out)
	}
}
