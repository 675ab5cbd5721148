package sse

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Decoder turns a sequence of byte chunks into text.
//
// Valid UTF-8 is decoded strictly. A multi-byte sequence cut off at the end of
// a chunk is carried over to the next call instead of being decoded early.
// Bytes that can never form valid UTF-8 fall back to ISO-8859-1, one byte per
// rune, so nothing is dropped. Decisions are made per rune, which keeps the
// decoded text independent of where the chunk boundaries fall.
type Decoder struct {
	carry []byte
}

// Decode returns the text decodable from chunk plus any bytes carried over
// from the previous call.
func (d *Decoder) Decode(chunk []byte) string {
	data := chunk
	if len(d.carry) > 0 {
		data = append(d.carry, chunk...)
		d.carry = nil
	}

	tail := incompleteTail(data)
	if tail > 0 {
		d.carry = append([]byte(nil), data[len(data)-tail:]...)
		data = data[:len(data)-tail]
	}

	if utf8.Valid(data) {
		return string(data)
	}
	return decodePermissive(data)
}

// Flush decodes whatever is still carried over. It is called once the source
// is exhausted, at which point a truncated sequence can no longer complete.
func (d *Decoder) Flush() string {
	if len(d.carry) == 0 {
		return ""
	}
	text := decodePermissive(d.carry)
	d.carry = nil
	return text
}

// incompleteTail returns the length of a trailing UTF-8 sequence in b that
// has a valid start byte but is missing its continuation bytes.
func incompleteTail(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return 0
		}
		return len(b) - i
	}
	return 0
}

func decodePermissive(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))

	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(charmap.ISO8859_1.DecodeByte(b[i]))
			i++
			continue
		}
		sb.WriteRune(r)
		i += size
	}

	return sb.String()
}
