package wire

import (
	"fmt"
	"strings"
)

// Hexdump renders b as offset/hex/ASCII lines for trace logging.
func Hexdump(label string, b []byte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s (%d bytes)", label, len(b))
	for off := 0; off < len(b); off += 16 {
		end := off + 16
		if end > len(b) {
			end = len(b)
		}
		row := b[off:end]

		var hexCol strings.Builder
		var asciiCol strings.Builder
		for i, c := range row {
			if i == 8 {
				hexCol.WriteByte(' ')
			}
			fmt.Fprintf(&hexCol, "%02x ", c)
			if c >= 0x20 && c <= 0x7e {
				asciiCol.WriteByte(c)
			} else {
				asciiCol.WriteByte('.')
			}
		}
		fmt.Fprintf(&sb, "\n%08x  %-49s |%s|", off, hexCol.String(), asciiCol.String())
	}
	return sb.String()
}
