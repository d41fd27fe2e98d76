package wasm

import (
	"bytes"
	"encoding/binary"
	"math"

	"fortio.org/safecast"

	"lumen/internal/ir"
)

// Section ids in mandated emission order.
const (
	secType     byte = 1
	secImport   byte = 2
	secFunction byte = 3
	secTable    byte = 4
	secMemory   byte = 5
	secGlobal   byte = 6
	secExport   byte = 7
	secStart    byte = 8
	secElement  byte = 9
	secCode     byte = 10
	secData     byte = 11
)

var (
	wasmMagic   = []byte{0x00, 0x61, 0x73, 0x6D}
	wasmVersion = []byte{0x01, 0x00, 0x00, 0x00}
)

const (
	funcTypeTag byte = 0x60
	funcRefType byte = 0x70
	endOpcode   byte = 0x0B
	kindFunc    byte = 0x00
	kindTable   byte = 0x01
	kindMemory  byte = 0x02
	kindGlobal  byte = 0x03
)

type encoder struct {
	reg *Registry
	cfg *Config
}

func newEncoder(reg *Registry, cfg *Config) *encoder {
	return &encoder{reg: reg, cfg: cfg}
}

// ulebCount writes a length or index that must fit u32. Overflow is
// the encoder's only size failure mode.
func ulebCount(buf *bytes.Buffer, n int, what string) error {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return errf(ErrEncodingOverflow, "", "%s %d exceeds u32", what, n)
	}
	writeUleb(buf, uint64(v))
	return nil
}

func writeName(buf *bytes.Buffer, s string) error {
	if err := ulebCount(buf, len(s), "name length"); err != nil {
		return err
	}
	buf.WriteString(s)
	return nil
}

// writeSection frames a non-empty payload as [id][size][payload].
// Empty payloads are dropped entirely, never framed.
func writeSection(out *bytes.Buffer, id byte, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	out.WriteByte(id)
	if err := ulebCount(out, len(payload), "section size"); err != nil {
		return err
	}
	out.Write(payload)
	return nil
}

func (e *encoder) encodeModule(mod *ir.Module, plans []*FuncPlan) ([]byte, error) {
	var out bytes.Buffer
	out.Write(wasmMagic)
	out.Write(wasmVersion)

	sections := []func(*ir.Module, []*FuncPlan) ([]byte, error){
		e.typeSection,
		e.importSection,
		e.functionSection,
		e.tableSection,
		e.memorySection,
		e.globalSection,
		e.exportSection,
		e.startSection,
		e.elementSection,
		e.codeSection,
		e.dataSection,
	}
	ids := []byte{
		secType, secImport, secFunction, secTable, secMemory,
		secGlobal, secExport, secStart, secElement, secCode, secData,
	}
	for i, build := range sections {
		payload, err := build(mod, plans)
		if err != nil {
			return nil, err
		}
		if err := writeSection(&out, ids[i], payload); err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}

func (e *encoder) typeSection(*ir.Module, []*FuncPlan) ([]byte, error) {
	fts := e.reg.FuncTypes()
	if len(fts) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(fts), "type"); err != nil {
		return nil, err
	}
	for _, ft := range fts {
		buf.WriteByte(funcTypeTag)
		if err := writeValTypes(&buf, ft.Params); err != nil {
			return nil, err
		}
		if err := writeValTypes(&buf, ft.Results); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func writeValTypes(buf *bytes.Buffer, vs []ValType) error {
	if err := ulebCount(buf, len(vs), "value type"); err != nil {
		return err
	}
	for _, v := range vs {
		b, ok := v.wireByte()
		if !ok {
			return errf(ErrUnsupportedType, "", "%s has no wire form", v)
		}
		buf.WriteByte(b)
	}
	return nil
}

func (e *encoder) importSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if len(e.reg.imports) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(e.reg.imports), "import"); err != nil {
		return nil, err
	}
	for _, id := range e.reg.imports {
		f := mod.Funcs[id]
		if err := writeName(&buf, f.ImportModule); err != nil {
			return nil, err
		}
		if err := writeName(&buf, f.ImportField); err != nil {
			return nil, err
		}
		buf.WriteByte(kindFunc)
		sig, _ := e.reg.SignatureIndex(id)
		writeUleb(&buf, uint64(sig))
	}
	return buf.Bytes(), nil
}

func (e *encoder) functionSection(*ir.Module, []*FuncPlan) ([]byte, error) {
	if len(e.reg.defined) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(e.reg.defined), "function"); err != nil {
		return nil, err
	}
	for _, id := range e.reg.defined {
		sig, _ := e.reg.SignatureIndex(id)
		writeUleb(&buf, uint64(sig))
	}
	return buf.Bytes(), nil
}

func (e *encoder) tableSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if len(mod.TableFuncs) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	writeUleb(&buf, 1)
	buf.WriteByte(funcRefType)
	// Sized exactly: every address-taken function has a slot, no room
	// for runtime growth.
	buf.WriteByte(0x01)
	if err := ulebCount(&buf, len(mod.TableFuncs), "table size"); err != nil {
		return nil, err
	}
	if err := ulebCount(&buf, len(mod.TableFuncs), "table max"); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *encoder) memorySection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if mod.Memory.Pages == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	writeUleb(&buf, 1)
	if mod.Memory.HasMax {
		buf.WriteByte(0x01)
		writeUleb(&buf, uint64(mod.Memory.Pages))
		writeUleb(&buf, uint64(mod.Memory.MaxPages))
	} else {
		buf.WriteByte(0x00)
		writeUleb(&buf, uint64(mod.Memory.Pages))
	}
	return buf.Bytes(), nil
}

func (e *encoder) globalSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if len(mod.Globals) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(mod.Globals), "global"); err != nil {
		return nil, err
	}
	for i := range mod.Globals {
		g := &mod.Globals[i]
		vt, err := e.reg.Resolve(g.Type)
		if err != nil {
			return nil, err
		}
		wb, ok := vt.wireByte()
		if !ok {
			return nil, errf(ErrUnsupportedType, "", "global %q lowers to %s", g.Name, vt)
		}
		buf.WriteByte(wb)
		if g.Mutable {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		var init ir.Const
		if g.HasInit {
			init = g.Init
		} else {
			init = zeroConst(vt)
		}
		if err := e.writeConstExpr(&buf, vt, init, mod); err != nil {
			return nil, err
		}
		buf.WriteByte(endOpcode)
	}
	return buf.Bytes(), nil
}

func zeroConst(vt ValType) ir.Const {
	if vt == ValF32 || vt == ValF64 {
		return ir.FloatConst(0)
	}
	return ir.IntConst(0)
}

// writeConstExpr emits a constant initializer matching vt. Integer
// constants feeding a float slot are widened; everything else must
// match.
func (e *encoder) writeConstExpr(buf *bytes.Buffer, vt ValType, c ir.Const, mod *ir.Module) error {
	intVal := func() (int64, bool) {
		switch c.Kind {
		case ir.ConstInt:
			return c.Int, true
		case ir.ConstBool:
			if c.Bool {
				return 1, true
			}
			return 0, true
		case ir.ConstNull:
			return 0, true
		case ir.ConstFunc:
			slot, ok := mod.TableSlot(c.Func)
			if !ok {
				return 0, false
			}
			return int64(slot), true
		}
		return 0, false
	}
	switch vt {
	case ValI32:
		v, ok := intVal()
		if !ok {
			return errf(ErrUnsupportedType, "", "constant kind %d in i32 initializer", c.Kind)
		}
		buf.WriteByte(0x41)
		writeSleb(buf, v)
	case ValI64:
		v, ok := intVal()
		if !ok {
			return errf(ErrUnsupportedType, "", "constant kind %d in i64 initializer", c.Kind)
		}
		buf.WriteByte(0x42)
		writeSleb(buf, v)
	case ValF32:
		v := c.Float
		if c.Kind == ir.ConstInt {
			v = float64(c.Int)
		} else if c.Kind != ir.ConstFloat {
			return errf(ErrUnsupportedType, "", "constant kind %d in f32 initializer", c.Kind)
		}
		buf.WriteByte(0x43)
		var le [4]byte
		binary.LittleEndian.PutUint32(le[:], math.Float32bits(float32(v)))
		buf.Write(le[:])
	case ValF64:
		v := c.Float
		if c.Kind == ir.ConstInt {
			v = float64(c.Int)
		} else if c.Kind != ir.ConstFloat {
			return errf(ErrUnsupportedType, "", "constant kind %d in f64 initializer", c.Kind)
		}
		buf.WriteByte(0x44)
		var le [8]byte
		binary.LittleEndian.PutUint64(le[:], math.Float64bits(v))
		buf.Write(le[:])
	default:
		return errf(ErrUnsupportedType, "", "void initializer")
	}
	return nil
}

func (e *encoder) exportSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	type export struct {
		name string
		kind byte
		idx  uint64
	}
	var exports []export
	for _, f := range mod.Funcs {
		if f.Flags.Has(ir.FlagExported) && !f.IsExternal() {
			idx, ok := e.reg.FuncIndex(f.ID)
			if !ok {
				return nil, errf(ErrDanglingReference, f.Name, "exported function not indexed")
			}
			exports = append(exports, export{name: f.Name, kind: kindFunc, idx: uint64(idx)})
		}
	}
	if mod.Memory.Pages > 0 && mod.Memory.ExportName != "" {
		exports = append(exports, export{name: mod.Memory.ExportName, kind: kindMemory})
	}
	for i := range mod.Globals {
		if mod.Globals[i].Exported {
			exports = append(exports, export{name: mod.Globals[i].Name, kind: kindGlobal, idx: uint64(i)})
		}
	}
	if len(exports) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(exports), "export"); err != nil {
		return nil, err
	}
	for _, ex := range exports {
		if err := writeName(&buf, ex.name); err != nil {
			return nil, err
		}
		buf.WriteByte(ex.kind)
		writeUleb(&buf, ex.idx)
	}
	return buf.Bytes(), nil
}

func (e *encoder) startSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if !mod.Start.IsValid() {
		return nil, nil
	}
	idx, ok := e.reg.FuncIndex(mod.Start)
	if !ok {
		return nil, errf(ErrDanglingReference, "", "start function %d not indexed", mod.Start)
	}
	var buf bytes.Buffer
	writeUleb(&buf, uint64(idx))
	return buf.Bytes(), nil
}

func (e *encoder) elementSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if len(mod.TableFuncs) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	writeUleb(&buf, 1)
	writeUleb(&buf, 0)
	buf.WriteByte(0x41)
	writeSleb(&buf, 0)
	buf.WriteByte(endOpcode)
	if err := ulebCount(&buf, len(mod.TableFuncs), "element"); err != nil {
		return nil, err
	}
	for _, id := range mod.TableFuncs {
		idx, ok := e.reg.FuncIndex(id)
		if !ok {
			return nil, errf(ErrDanglingReference, "", "table function %d not indexed", id)
		}
		writeUleb(&buf, uint64(idx))
	}
	return buf.Bytes(), nil
}

func (e *encoder) codeSection(mod *ir.Module, plans []*FuncPlan) ([]byte, error) {
	if len(e.reg.defined) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(e.reg.defined), "code"); err != nil {
		return nil, err
	}
	for _, id := range e.reg.defined {
		f := mod.Funcs[id]
		plan := plans[id]
		if plan == nil {
			return nil, errf(ErrDanglingReference, f.Name, "no analysis plan")
		}
		body, err := e.encodeBody(mod, f, plan)
		if err != nil {
			return nil, err
		}
		if err := ulebCount(&buf, len(body), "body size"); err != nil {
			return nil, err
		}
		buf.Write(body)
	}
	return buf.Bytes(), nil
}

func (e *encoder) dataSection(mod *ir.Module, _ []*FuncPlan) ([]byte, error) {
	if len(mod.Data) == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := ulebCount(&buf, len(mod.Data), "data"); err != nil {
		return nil, err
	}
	for _, seg := range mod.Data {
		writeUleb(&buf, 0)
		buf.WriteByte(0x41)
		writeSleb(&buf, int64(seg.Offset))
		buf.WriteByte(endOpcode)
		if err := ulebCount(&buf, len(seg.Bytes), "data segment"); err != nil {
			return nil, err
		}
		buf.Write(seg.Bytes)
	}
	return buf.Bytes(), nil
}
