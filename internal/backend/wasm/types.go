package wasm

import (
	"strings"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// ValType is a wasm value type. ValVoid never reaches the wire; it
// stands for "no value" in signatures and resolved unit types.
type ValType uint8

const (
	ValVoid ValType = iota
	ValI32
	ValI64
	ValF32
	ValF64
)

func (v ValType) String() string {
	switch v {
	case ValVoid:
		return "void"
	case ValI32:
		return "i32"
	case ValI64:
		return "i64"
	case ValF32:
		return "f32"
	case ValF64:
		return "f64"
	default:
		return "ValType(?)"
	}
}

// wireByte is the binary encoding of a value type.
func (v ValType) wireByte() (byte, bool) {
	switch v {
	case ValI32:
		return 0x7F, true
	case ValI64:
		return 0x7E, true
	case ValF32:
		return 0x7D, true
	case ValF64:
		return 0x7C, true
	default:
		return 0, false
	}
}

// FuncType is a deduplicated entry in the type section.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (ft FuncType) key() string {
	var sb strings.Builder
	for _, p := range ft.Params {
		sb.WriteByte(byte(p))
	}
	sb.WriteByte(0xFF)
	for _, r := range ft.Results {
		sb.WriteByte(byte(r))
	}
	return sb.String()
}

// Registry maps IR types to wasm value types and owns the deduplicated
// function-type table plus the module's function index space. Imported
// functions take the low indices in declaration order, defined
// functions follow.
type Registry struct {
	interner *types.Interner

	resolved map[types.TypeID]ValType

	funcTypes []FuncType
	typeIndex map[string]uint32

	sigOf   map[ir.FuncID]uint32
	indexOf map[ir.FuncID]uint32
	imports []ir.FuncID
	defined []ir.FuncID
}

func NewRegistry(in *types.Interner) *Registry {
	return &Registry{
		interner:  in,
		resolved:  make(map[types.TypeID]ValType),
		typeIndex: make(map[string]uint32),
		sigOf:     make(map[ir.FuncID]uint32),
		indexOf:   make(map[ir.FuncID]uint32),
	}
}

// Resolve lowers an IR type to a wasm value type. NoTypeID and unit
// resolve to void. Results are cached, so repeated resolution of the
// same id is idempotent and cheap.
func (r *Registry) Resolve(id types.TypeID) (ValType, error) {
	if id == types.NoTypeID {
		return ValVoid, nil
	}
	if v, ok := r.resolved[id]; ok {
		return v, nil
	}
	t, ok := r.interner.Lookup(id)
	if !ok {
		return ValVoid, errf(ErrDanglingReference, "", "type id %d not in interner", id)
	}
	var v ValType
	switch t.Kind {
	case types.KindUnit:
		v = ValVoid
	case types.KindBool:
		v = ValI32
	case types.KindInt, types.KindUint:
		if t.Width != types.WidthAny && t.Width <= types.Width32 {
			v = ValI32
		} else {
			v = ValI64
		}
	case types.KindFloat:
		if t.Width != types.WidthAny && t.Width <= types.Width32 {
			v = ValF32
		} else {
			v = ValF64
		}
	case types.KindString, types.KindPointer, types.KindArray, types.KindStruct, types.KindFn:
		// Lowered to a linear-memory address.
		v = ValI32
	default:
		return ValVoid, errf(ErrUnsupportedType, "", "cannot lower %s", t)
	}
	r.resolved[id] = v
	return v, nil
}

// RegisterFunc assigns f a slot in the function index space and a
// deduplicated type-section index. Must be called for imports before
// any defined function.
func (r *Registry) RegisterFunc(f *ir.Func) error {
	ft := FuncType{}
	for _, p := range f.Sig.Params {
		v, err := r.Resolve(p)
		if err != nil {
			return wrapFn(err, f.Name)
		}
		if v == ValVoid {
			return errf(ErrUnsupportedType, f.Name, "void parameter")
		}
		ft.Params = append(ft.Params, v)
	}
	res, err := r.Resolve(f.Sig.Result)
	if err != nil {
		return wrapFn(err, f.Name)
	}
	if res != ValVoid {
		ft.Results = []ValType{res}
	}

	key := ft.key()
	sig, ok := r.typeIndex[key]
	if !ok {
		sig = uint32(len(r.funcTypes))
		r.funcTypes = append(r.funcTypes, ft)
		r.typeIndex[key] = sig
	}
	r.sigOf[f.ID] = sig

	if f.IsExternal() {
		r.indexOf[f.ID] = uint32(len(r.imports))
		r.imports = append(r.imports, f.ID)
	} else {
		r.defined = append(r.defined, f.ID)
	}
	return nil
}

// finishIndexing shifts defined functions above the import space.
func (r *Registry) finishIndexing() {
	base := uint32(len(r.imports))
	for i, id := range r.defined {
		r.indexOf[id] = base + uint32(i)
	}
}

func (r *Registry) SignatureIndex(id ir.FuncID) (uint32, bool) {
	sig, ok := r.sigOf[id]
	return sig, ok
}

func (r *Registry) FuncIndex(id ir.FuncID) (uint32, bool) {
	idx, ok := r.indexOf[id]
	return idx, ok
}

func (r *Registry) FuncTypes() []FuncType { return r.funcTypes }

func wrapFn(err error, fn string) error {
	if be, ok := err.(*Error); ok && be.Fn == "" {
		be.Fn = fn
	}
	return err
}
