package ir

import "lumen/internal/types"

// OperandKind discriminates Operand.
type OperandKind uint8

const (
	OperandInvalid OperandKind = iota
	OperandConst
	OperandLocal
)

// Operand is a value read by an instruction: a constant or a local.
type Operand struct {
	Kind  OperandKind
	Type  types.TypeID
	Const Const
	Local LocalID
}

func ConstOperand(c Const, t types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: t, Const: c}
}

func LocalOperand(l LocalID, t types.TypeID) Operand {
	return Operand{Kind: OperandLocal, Type: t, Local: l}
}

// ConstKind discriminates Const.
type ConstKind uint8

const (
	ConstInvalid ConstKind = iota
	ConstInt
	ConstFloat
	ConstBool
	ConstNull
	ConstFunc
)

// Const is a literal value. Exactly the field selected by Kind is
// meaningful.
type Const struct {
	Kind  ConstKind
	Int   int64
	Float float64
	Bool  bool
	Func  FuncID
}

func IntConst(v int64) Const     { return Const{Kind: ConstInt, Int: v} }
func FloatConst(v float64) Const { return Const{Kind: ConstFloat, Float: v} }
func BoolConst(v bool) Const     { return Const{Kind: ConstBool, Bool: v} }
func NullConst() Const           { return Const{Kind: ConstNull} }
func FuncConst(f FuncID) Const   { return Const{Kind: ConstFunc, Func: f} }

// BinOp is a binary operator in an RValue.
type BinOp uint8

const (
	OpInvalid BinOp = iota
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

// IsCompare reports whether op produces a bool.
func (op BinOp) IsCompare() bool { return op >= OpEq && op <= OpGe }

// UnOp is a unary operator in an RValue.
type UnOp uint8

const (
	OpNone UnOp = iota
	OpNeg
	OpNot
	OpBitNot
)

// RValueKind discriminates RValue.
type RValueKind uint8

const (
	RValueInvalid RValueKind = iota
	RValueUse
	RValueUnary
	RValueBinary
)

// RValue is the right-hand side of an assignment.
type RValue struct {
	Kind   RValueKind
	Use    Operand
	Unary  UnaryExpr
	Binary BinaryExpr
}

type UnaryExpr struct {
	Op UnOp
	X  Operand
}

type BinaryExpr struct {
	Op BinOp
	L  Operand
	R  Operand
}

func UseRValue(o Operand) RValue {
	return RValue{Kind: RValueUse, Use: o}
}

func UnaryRValue(op UnOp, x Operand) RValue {
	return RValue{Kind: RValueUnary, Unary: UnaryExpr{Op: op, X: x}}
}

func BinaryRValue(op BinOp, l, r Operand) RValue {
	return RValue{Kind: RValueBinary, Binary: BinaryExpr{Op: op, L: l, R: r}}
}

// InstrKind discriminates Instr.
type InstrKind uint8

const (
	InstrInvalid InstrKind = iota
	InstrAssign
	InstrLoad
	InstrStore
	InstrCall
	InstrPhi
	InstrNop
)

// Instr is one non-terminator instruction. The variant struct selected
// by Kind holds the payload; the others stay zero.
type Instr struct {
	Kind   InstrKind
	Assign AssignInstr
	Load   LoadInstr
	Store  StoreInstr
	Call   CallInstr
	Phi    PhiInstr
}

// AssignInstr computes Src into Dst.
type AssignInstr struct {
	Dst LocalID
	Src RValue
}

// LoadInstr reads memory at Addr into Dst.
type LoadInstr struct {
	Dst  LocalID
	Addr Operand
}

// StoreInstr writes Val to memory at Addr.
type StoreInstr struct {
	Addr Operand
	Val  Operand
}

// CallInstr calls Func with Args. Dst receives the result when HasDst;
// a result-producing call without HasDst is dropped.
type CallInstr struct {
	HasDst bool
	Dst    LocalID
	Func   FuncID
	Args   []Operand
}

// PhiInstr selects a value for Dst by incoming edge. Lowering relies on
// the frontend convention that every predecessor assigns Dst on its own
// edge, so a phi emits no code of its own.
type PhiInstr struct {
	Dst      LocalID
	Incoming []PhiEdge
}

type PhiEdge struct {
	From  BlockID
	Value Operand
}

func AssignOf(dst LocalID, src RValue) Instr {
	return Instr{Kind: InstrAssign, Assign: AssignInstr{Dst: dst, Src: src}}
}

func LoadOf(dst LocalID, addr Operand) Instr {
	return Instr{Kind: InstrLoad, Load: LoadInstr{Dst: dst, Addr: addr}}
}

func StoreOf(addr, val Operand) Instr {
	return Instr{Kind: InstrStore, Store: StoreInstr{Addr: addr, Val: val}}
}

func CallOf(dst LocalID, fn FuncID, args ...Operand) Instr {
	return Instr{Kind: InstrCall, Call: CallInstr{HasDst: dst.IsValid(), Dst: dst, Func: fn, Args: args}}
}

func PhiOf(dst LocalID, incoming ...PhiEdge) Instr {
	return Instr{Kind: InstrPhi, Phi: PhiInstr{Dst: dst, Incoming: incoming}}
}

func Nop() Instr { return Instr{Kind: InstrNop} }

// Dst returns the local the instruction writes, if any.
func (in *Instr) Dst() (LocalID, bool) {
	switch in.Kind {
	case InstrAssign:
		return in.Assign.Dst, true
	case InstrLoad:
		return in.Load.Dst, true
	case InstrCall:
		if in.Call.HasDst {
			return in.Call.Dst, true
		}
	case InstrPhi:
		return in.Phi.Dst, true
	}
	return NoLocalID, false
}
