package ir

import "lumen/internal/types"

// Global is one module-level variable.
type Global struct {
	Name     string
	Type     types.TypeID
	Mutable  bool
	Exported bool
	HasInit  bool
	Init     Const
}

// MemorySpec sizes the module's linear memory in 64KiB pages. Pages == 0
// means the module declares no memory. ExportName, when set, exports the
// memory under that name.
type MemorySpec struct {
	Pages      uint32
	MaxPages   uint32
	HasMax     bool
	ExportName string
}

// DataSegment is a byte blob placed at a fixed memory offset.
type DataSegment struct {
	Offset int32
	Bytes  []byte
}

// Module is a whole translation unit as handed over by the frontend.
// Funcs are addressed by FuncID == index. External functions may appear
// anywhere in the slice; output ordering is the backend's concern.
type Module struct {
	Name    string
	Funcs   []*Func
	Globals []Global

	// Start, when valid, names the function run at instantiation.
	Start FuncID

	// TableFuncs are the address-taken functions, in table slot order.
	// A ConstFunc operand resolves to its slot here.
	TableFuncs []FuncID

	Memory MemorySpec
	Data   []DataSegment
}

func NewModule(name string) *Module {
	return &Module{Name: name, Start: NoFuncID}
}

func (m *Module) FuncExists(id FuncID) bool {
	return id >= 0 && int(id) < len(m.Funcs)
}

// TableSlot returns the table index for fn, or false when fn is not
// address-taken.
func (m *Module) TableSlot(fn FuncID) (uint32, bool) {
	for i, f := range m.TableFuncs {
		if f == fn {
			return uint32(i), true
		}
	}
	return 0, false
}
