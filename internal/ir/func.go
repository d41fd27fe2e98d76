package ir

import "lumen/internal/types"

// Local is one slot in a function frame. Parameters occupy the first
// len(Sig.Params) slots in declaration order.
type Local struct {
	Name string
	Type types.TypeID
}

// Signature is a function's parameter and result types. Result is
// NoTypeID (or the unit type) for void functions.
type Signature struct {
	Params []types.TypeID
	Result types.TypeID
}

// FuncFlags carries per-function attributes set by the frontend.
type FuncFlags uint8

const (
	// FlagExternal marks an imported function: no body, resolved through
	// ImportModule/ImportField.
	FlagExternal FuncFlags = 1 << iota
	// FlagExported makes the function visible by Name in the output.
	FlagExported
	// FlagRecursive marks a function the frontend found in a call cycle.
	FlagRecursive
)

func (f FuncFlags) Has(flag FuncFlags) bool { return f&flag != 0 }

// Block is a basic block: straight-line instructions closed by one
// terminator.
type Block struct {
	Instrs []Instr
	Term   Terminator
}

// Func is one function. Blocks are addressed by position; Entry is
// where execution starts. External functions carry an empty Blocks
// slice.
type Func struct {
	ID    FuncID
	Name  string
	Sig   Signature
	Flags FuncFlags

	ImportModule string
	ImportField  string

	Locals []Local
	Blocks []Block
	Entry  BlockID
}

func (f *Func) IsExternal() bool { return f.Flags.Has(FlagExternal) }

func (f *Func) BlockExists(id BlockID) bool {
	return id >= 0 && int(id) < len(f.Blocks)
}

func (f *Func) LocalExists(id LocalID) bool {
	return id >= 0 && int(id) < len(f.Locals)
}
