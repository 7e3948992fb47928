package geometry

import (
	"fmt"
	"io"
	"strings"
)

// Fields are the three parts of an address. Offset occupies the lowest B
// bits, Index the next S bits and Tag the rest.
type Fields struct {
	Tag    uint64
	Index  uint64
	Offset uint64
}

// Mask returns a value with the lowest n bits set. n may be 0 or 64.
func Mask(n int) uint64 {
	if n <= 0 {
		return 0
	}
	if n >= AddressBits {
		return ^uint64(0)
	}
	return (uint64(1) << uint(n)) - 1
}

// shr and shl treat shifts of 64 or more bits as moving every bit out.
func shr(v uint64, n int) uint64 {
	if n >= AddressBits {
		return 0
	}
	return v >> uint(n)
}

func shl(v uint64, n int) uint64 {
	if n >= AddressBits {
		return 0
	}
	return v << uint(n)
}

// Decode splits addr into tag, index and offset for s index bits and b offset
// bits.
func Decode(addr uint64, s, b int) Fields {
	return Fields{
		Offset: addr & Mask(b),
		Index:  shr(addr, b) & Mask(s),
		Tag:    shr(addr, s+b),
	}
}

// Encode is the inverse of Decode. Bits of a field that do not fit in its
// width are dropped.
func Encode(tag, index, offset uint64, s, b int) uint64 {
	return shl(tag, s+b) | shl(index&Mask(s), b) | (offset & Mask(b))
}

// WriteTable prints the decoded fields of addr as a table with a binary and a
// hexadecimal row.
func WriteTable(w io.Writer, addr uint64, g Geometry) error {
	f := g.Decode(addr)
	rows := [][]string{
		{"tag", "index", "offset"},
		{
			binaryString(f.Tag, g.TagBits()),
			binaryString(f.Index, g.S),
			binaryString(f.Offset, g.B),
		},
		{
			fmt.Sprintf("0x%x", f.Tag),
			fmt.Sprintf("0x%x", f.Index),
			fmt.Sprintf("0x%x", f.Offset),
		},
	}

	widths := make([]int, len(rows[0]))
	for c := range widths {
		for _, row := range rows {
			if len(row[c])+2 > widths[c] {
				widths[c] = len(row[c]) + 2
			}
		}
		widths[c] = 4*((widths[c]+2)/4) + 1
	}

	bar := "+"
	for _, width := range widths {
		bar += strings.Repeat("-", width) + "+"
	}

	line := func(row []string) string {
		var sb strings.Builder
		sb.WriteString("|")
		for c, cell := range row {
			sb.WriteString(" ")
			sb.WriteString(cell)
			sb.WriteString(strings.Repeat(" ", widths[c]-len(cell)-1))
			sb.WriteString("|")
		}
		return sb.String()
	}

	out := []string{bar, line(rows[0]), bar, line(rows[1]), line(rows[2]), bar}
	_, err := fmt.Fprintln(w, strings.Join(out, "\n"))
	return err
}

func binaryString(v uint64, width int) string {
	if width <= 0 {
		return ""
	}
	return fmt.Sprintf("%0*b", width, v)
}
