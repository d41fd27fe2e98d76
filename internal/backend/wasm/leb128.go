package wasm

import "bytes"

// LEB128 helpers shared by the encoder and the section reader.

func writeUleb(buf *bytes.Buffer, v uint64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

func writeSleb(buf *bytes.Buffer, v int64) {
	for {
		b := byte(v & 0x7F)
		v >>= 7
		signBit := b&0x40 != 0
		if (v == 0 && !signBit) || (v == -1 && signBit) {
			buf.WriteByte(b)
			return
		}
		buf.WriteByte(b | 0x80)
	}
}

// readUleb decodes an unsigned LEB128 value starting at data[off].
// Returns the value and the index just past it, or ok=false on
// truncation or a value wider than 64 bits.
func readUleb(data []byte, off int) (v uint64, next int, ok bool) {
	var shift uint
	for off < len(data) {
		b := data[off]
		off++
		if shift >= 64 {
			return 0, 0, false
		}
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, off, true
		}
		shift += 7
	}
	return 0, 0, false
}
