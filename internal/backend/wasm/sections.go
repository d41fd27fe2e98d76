package wasm

import (
	"bytes"
	"fmt"
)

// SectionInfo describes one decoded section frame.
type SectionInfo struct {
	ID   byte
	Size uint32
	// Offset of the payload within the module bytes.
	Offset int
}

func SectionName(id byte) string {
	switch id {
	case secType:
		return "type"
	case secImport:
		return "import"
	case secFunction:
		return "function"
	case secTable:
		return "table"
	case secMemory:
		return "memory"
	case secGlobal:
		return "global"
	case secExport:
		return "export"
	case secStart:
		return "start"
	case secElement:
		return "element"
	case secCode:
		return "code"
	case secData:
		return "data"
	default:
		return fmt.Sprintf("unknown(%d)", id)
	}
}

// DecodeSections checks the module header and walks the section
// frames. Every declared size must land exactly on the next frame or
// the end of the input.
func DecodeSections(data []byte) ([]SectionInfo, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("wasm: module too short (%d bytes)", len(data))
	}
	if !bytes.Equal(data[:4], wasmMagic) {
		return nil, fmt.Errorf("wasm: bad magic % X", data[:4])
	}
	if !bytes.Equal(data[4:8], wasmVersion) {
		return nil, fmt.Errorf("wasm: unsupported version % X", data[4:8])
	}

	var infos []SectionInfo
	off := 8
	for off < len(data) {
		id := data[off]
		off++
		size, next, ok := readUleb(data, off)
		if !ok {
			return nil, fmt.Errorf("wasm: truncated size of section %s", SectionName(id))
		}
		off = next
		if size > uint64(len(data)-off) {
			return nil, fmt.Errorf("wasm: section %s claims %d bytes, %d remain", SectionName(id), size, len(data)-off)
		}
		infos = append(infos, SectionInfo{ID: id, Size: uint32(size), Offset: off})
		off += int(size)
	}
	return infos, nil
}
