package wasm

import (
	"bytes"

	"lumen/internal/ir"
	"lumen/internal/types"
)

// Control and variable opcodes.
const (
	opUnreachable byte = 0x00
	opNop         byte = 0x01
	opBlock       byte = 0x02
	opLoop        byte = 0x03
	opIf          byte = 0x04
	opElse        byte = 0x05
	opBr          byte = 0x0C
	opBrTable     byte = 0x0E
	opReturn      byte = 0x0F
	opCall        byte = 0x10
	opDrop        byte = 0x1A
	opLocalGet    byte = 0x20
	opLocalSet    byte = 0x21
	blockVoid     byte = 0x40
)

// bodyEncoder lowers one function body. Multi-block functions use a
// dispatch loop: every basic block becomes one arm of a br_table over
// a synthetic program-counter local, and arms are ordered by the
// layout plan so hot chains stay adjacent in the code stream.
type bodyEncoder struct {
	enc  *encoder
	mod  *ir.Module
	f    *ir.Func
	plan *FuncPlan

	buf     bytes.Buffer
	posOf   map[ir.BlockID]int
	pcLocal uint32
	usesPC  bool
}

func (e *encoder) encodeBody(mod *ir.Module, f *ir.Func, plan *FuncPlan) ([]byte, error) {
	be := &bodyEncoder{enc: e, mod: mod, f: f, plan: plan}
	straight := len(f.Blocks) == 1 && len(plan.CFG.Succs[f.Entry]) == 0
	be.usesPC = !straight
	be.pcLocal = uint32(len(f.Locals))

	if err := be.writeLocals(); err != nil {
		return nil, err
	}
	if straight {
		if err := be.writeBlock(f.Entry, 0); err != nil {
			return nil, err
		}
	} else {
		if err := be.writeDispatch(); err != nil {
			return nil, err
		}
	}
	be.buf.WriteByte(endOpcode)
	return be.buf.Bytes(), nil
}

// writeLocals emits the run-length-encoded local declarations: frame
// locals beyond the parameters, plus the dispatch pc when used.
func (be *bodyEncoder) writeLocals() error {
	var decls []ValType
	for _, l := range be.f.Locals[len(be.f.Sig.Params):] {
		vt, err := be.localValType(l.Type)
		if err != nil {
			return err
		}
		decls = append(decls, vt)
	}
	if be.usesPC {
		decls = append(decls, ValI32)
	}

	type group struct {
		vt    ValType
		count int
	}
	var groups []group
	for _, vt := range decls {
		if n := len(groups); n > 0 && groups[n-1].vt == vt {
			groups[n-1].count++
		} else {
			groups = append(groups, group{vt: vt, count: 1})
		}
	}
	if err := ulebCount(&be.buf, len(groups), "local group"); err != nil {
		return err
	}
	for _, g := range groups {
		if err := ulebCount(&be.buf, g.count, "local group size"); err != nil {
			return err
		}
		wb, ok := g.vt.wireByte()
		if !ok {
			return errf(ErrUnsupportedType, be.f.Name, "local of type %s", g.vt)
		}
		be.buf.WriteByte(wb)
	}
	return nil
}

// localValType maps a frame slot's IR type, treating unit slots as i32
// scratch so frontends may declare them freely.
func (be *bodyEncoder) localValType(id types.TypeID) (ValType, error) {
	vt, err := be.enc.reg.Resolve(id)
	if err != nil {
		return 0, wrapFn(err, be.f.Name)
	}
	if vt == ValVoid {
		vt = ValI32
	}
	return vt, nil
}

func (be *bodyEncoder) writeDispatch() error {
	n := len(be.plan.Layout)
	be.posOf = make(map[ir.BlockID]int, n)
	for i, b := range be.plan.Layout {
		be.posOf[b] = i
	}

	// pc = entry arm
	be.buf.WriteByte(0x41)
	writeSleb(&be.buf, int64(be.posOf[be.f.Entry]))
	be.buf.WriteByte(opLocalSet)
	writeUleb(&be.buf, uint64(be.pcLocal))

	be.buf.WriteByte(opLoop)
	be.buf.WriteByte(blockVoid)
	// Innermost block is the first layout arm, so br label k selects
	// arm k.
	for i := 0; i < n; i++ {
		be.buf.WriteByte(opBlock)
		be.buf.WriteByte(blockVoid)
	}
	be.buf.WriteByte(opLocalGet)
	writeUleb(&be.buf, uint64(be.pcLocal))
	be.buf.WriteByte(opBrTable)
	if err := ulebCount(&be.buf, n, "dispatch arm"); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		writeUleb(&be.buf, uint64(i))
	}
	writeUleb(&be.buf, uint64(n-1))

	for i, b := range be.plan.Layout {
		be.buf.WriteByte(endOpcode)
		loopDepth := n - 1 - i
		if err := be.writeBlock(b, loopDepth); err != nil {
			return err
		}
	}
	be.buf.WriteByte(endOpcode) // loop
	be.buf.WriteByte(opUnreachable)
	return nil
}

// writeBlock lowers one basic block's instructions and terminator.
// loopDepth is the br distance back to the dispatch loop from this
// arm.
func (be *bodyEncoder) writeBlock(b ir.BlockID, loopDepth int) error {
	blk := &be.f.Blocks[b]
	for i := range blk.Instrs {
		if err := be.writeInstr(&blk.Instrs[i]); err != nil {
			return err
		}
	}
	return be.writeTerminator(&blk.Term, loopDepth)
}

func (be *bodyEncoder) setPC(target ir.BlockID) {
	be.buf.WriteByte(0x41)
	writeSleb(&be.buf, int64(be.posOf[target]))
	be.buf.WriteByte(opLocalSet)
	writeUleb(&be.buf, uint64(be.pcLocal))
}

func (be *bodyEncoder) br(depth int) error {
	be.buf.WriteByte(opBr)
	return ulebCount(&be.buf, depth, "branch depth")
}

func (be *bodyEncoder) writeTerminator(t *ir.Terminator, loopDepth int) error {
	switch t.Kind {
	case ir.TermReturn:
		if t.Return.HasValue {
			if err := be.pushOperand(t.Return.Value); err != nil {
				return err
			}
		}
		be.buf.WriteByte(opReturn)
		return nil
	case ir.TermUnreachable:
		be.buf.WriteByte(opUnreachable)
		return nil
	case ir.TermJump:
		be.setPC(t.Jump.Target)
		return be.br(loopDepth)
	case ir.TermIf:
		if err := be.pushOperand(t.If.Cond); err != nil {
			return err
		}
		be.buf.WriteByte(opIf)
		be.buf.WriteByte(blockVoid)
		be.setPC(t.If.Then)
		be.buf.WriteByte(opElse)
		be.setPC(t.If.Else)
		be.buf.WriteByte(endOpcode)
		return be.br(loopDepth)
	case ir.TermSwitch:
		vt, err := be.operandValType(t.Switch.Value)
		if err != nil {
			return err
		}
		be.setPC(t.Switch.Default)
		for _, c := range t.Switch.Cases {
			if err := be.pushOperand(t.Switch.Value); err != nil {
				return err
			}
			switch vt {
			case ValI64:
				be.buf.WriteByte(0x42)
				writeSleb(&be.buf, c.Value)
				be.buf.WriteByte(0x51) // i64.eq
			default:
				be.buf.WriteByte(0x41)
				writeSleb(&be.buf, c.Value)
				be.buf.WriteByte(0x46) // i32.eq
			}
			be.buf.WriteByte(opIf)
			be.buf.WriteByte(blockVoid)
			be.setPC(c.Target)
			be.buf.WriteByte(endOpcode)
		}
		return be.br(loopDepth)
	default:
		return errf(ErrInvalidTerminator, be.f.Name, "kind %d reached lowering", t.Kind)
	}
}

func (be *bodyEncoder) writeInstr(in *ir.Instr) error {
	switch in.Kind {
	case ir.InstrNop:
		be.buf.WriteByte(opNop)
		return nil
	case ir.InstrAssign:
		if err := be.pushRValue(&in.Assign.Src); err != nil {
			return err
		}
		return be.setLocal(in.Assign.Dst)
	case ir.InstrLoad:
		if err := be.pushOperand(in.Load.Addr); err != nil {
			return err
		}
		vt, err := be.localValType(be.f.Locals[in.Load.Dst].Type)
		if err != nil {
			return err
		}
		op, align := loadOpcode(vt)
		be.buf.WriteByte(op)
		writeUleb(&be.buf, uint64(align))
		writeUleb(&be.buf, 0)
		return be.setLocal(in.Load.Dst)
	case ir.InstrStore:
		if err := be.pushOperand(in.Store.Addr); err != nil {
			return err
		}
		if err := be.pushOperand(in.Store.Val); err != nil {
			return err
		}
		vt, err := be.operandValType(in.Store.Val)
		if err != nil {
			return err
		}
		op, align := storeOpcode(vt)
		be.buf.WriteByte(op)
		writeUleb(&be.buf, uint64(align))
		writeUleb(&be.buf, 0)
		return nil
	case ir.InstrCall:
		return be.writeCall(&in.Call)
	case ir.InstrPhi:
		// Predecessors assigned the destination on their edges.
		return nil
	default:
		return errf(ErrInvalidTerminator, be.f.Name, "invalid instruction kind %d", in.Kind)
	}
}

func (be *bodyEncoder) writeCall(c *ir.CallInstr) error {
	for _, a := range c.Args {
		if err := be.pushOperand(a); err != nil {
			return err
		}
	}
	idx, ok := be.enc.reg.FuncIndex(c.Func)
	if !ok {
		return errf(ErrDanglingReference, be.f.Name, "call to unindexed function %d", c.Func)
	}
	be.buf.WriteByte(opCall)
	writeUleb(&be.buf, uint64(idx))

	callee := be.mod.Funcs[c.Func]
	res, err := be.enc.reg.Resolve(callee.Sig.Result)
	if err != nil {
		return wrapFn(err, be.f.Name)
	}
	switch {
	case c.HasDst && res != ValVoid:
		return be.setLocal(c.Dst)
	case c.HasDst:
		return errf(ErrDanglingReference, be.f.Name, "call result wanted from void function %q", callee.Name)
	case res != ValVoid:
		be.buf.WriteByte(opDrop)
	}
	return nil
}

func (be *bodyEncoder) setLocal(id ir.LocalID) error {
	if !be.f.LocalExists(id) {
		return errf(ErrDanglingReference, be.f.Name, "write to unknown local %d", id)
	}
	be.buf.WriteByte(opLocalSet)
	writeUleb(&be.buf, uint64(id))
	return nil
}

func (be *bodyEncoder) operandValType(o ir.Operand) (ValType, error) {
	vt, err := be.enc.reg.Resolve(o.Type)
	if err != nil {
		return 0, wrapFn(err, be.f.Name)
	}
	if vt == ValVoid {
		vt = ValI32
	}
	return vt, nil
}

func (be *bodyEncoder) pushOperand(o ir.Operand) error {
	switch o.Kind {
	case ir.OperandLocal:
		if !be.f.LocalExists(o.Local) {
			return errf(ErrDanglingReference, be.f.Name, "read of unknown local %d", o.Local)
		}
		be.buf.WriteByte(opLocalGet)
		writeUleb(&be.buf, uint64(o.Local))
		return nil
	case ir.OperandConst:
		vt, err := be.operandValType(o)
		if err != nil {
			return err
		}
		return be.enc.writeConstExpr(&be.buf, vt, o.Const, be.mod)
	default:
		return errf(ErrDanglingReference, be.f.Name, "invalid operand")
	}
}

func (be *bodyEncoder) pushRValue(rv *ir.RValue) error {
	switch rv.Kind {
	case ir.RValueUse:
		return be.pushOperand(rv.Use)
	case ir.RValueUnary:
		return be.pushUnary(&rv.Unary)
	case ir.RValueBinary:
		return be.pushBinary(&rv.Binary)
	default:
		return errf(ErrDanglingReference, be.f.Name, "invalid rvalue")
	}
}

func (be *bodyEncoder) pushUnary(u *ir.UnaryExpr) error {
	vt, err := be.operandValType(u.X)
	if err != nil {
		return err
	}
	switch u.Op {
	case ir.OpNeg:
		switch vt {
		case ValF32:
			if err := be.pushOperand(u.X); err != nil {
				return err
			}
			be.buf.WriteByte(0x8C)
		case ValF64:
			if err := be.pushOperand(u.X); err != nil {
				return err
			}
			be.buf.WriteByte(0x9A)
		case ValI64:
			be.buf.WriteByte(0x42)
			writeSleb(&be.buf, 0)
			if err := be.pushOperand(u.X); err != nil {
				return err
			}
			be.buf.WriteByte(0x7D) // i64.sub
		default:
			be.buf.WriteByte(0x41)
			writeSleb(&be.buf, 0)
			if err := be.pushOperand(u.X); err != nil {
				return err
			}
			be.buf.WriteByte(0x6B) // i32.sub
		}
	case ir.OpNot:
		if err := be.pushOperand(u.X); err != nil {
			return err
		}
		if vt == ValI64 {
			be.buf.WriteByte(0x50) // i64.eqz
		} else {
			be.buf.WriteByte(0x45) // i32.eqz
		}
	case ir.OpBitNot:
		if err := be.pushOperand(u.X); err != nil {
			return err
		}
		if vt == ValI64 {
			be.buf.WriteByte(0x42)
			writeSleb(&be.buf, -1)
			be.buf.WriteByte(0x85) // i64.xor
		} else {
			be.buf.WriteByte(0x41)
			writeSleb(&be.buf, -1)
			be.buf.WriteByte(0x73) // i32.xor
		}
	default:
		return errf(ErrUnsupportedType, be.f.Name, "unary op %d", u.Op)
	}
	return nil
}

func (be *bodyEncoder) pushBinary(b *ir.BinaryExpr) error {
	if err := be.pushOperand(b.L); err != nil {
		return err
	}
	if err := be.pushOperand(b.R); err != nil {
		return err
	}
	vt, err := be.operandValType(b.L)
	if err != nil {
		return err
	}
	op, ok := binaryOpcode(b.Op, vt, be.isUnsigned(b.L.Type))
	if !ok {
		return errf(ErrUnsupportedType, be.f.Name, "operator %d on %s", b.Op, vt)
	}
	be.buf.WriteByte(op)
	return nil
}

func (be *bodyEncoder) isUnsigned(id types.TypeID) bool {
	t, ok := be.enc.reg.interner.Lookup(id)
	return ok && t.Kind == types.KindUint
}

func loadOpcode(vt ValType) (byte, uint32) {
	switch vt {
	case ValI64:
		return 0x29, 3
	case ValF32:
		return 0x2A, 2
	case ValF64:
		return 0x2B, 3
	default:
		return 0x28, 2
	}
}

func storeOpcode(vt ValType) (byte, uint32) {
	switch vt {
	case ValI64:
		return 0x37, 3
	case ValF32:
		return 0x38, 2
	case ValF64:
		return 0x39, 3
	default:
		return 0x36, 2
	}
}

func binaryOpcode(op ir.BinOp, vt ValType, unsigned bool) (byte, bool) {
	pick := func(s, u byte) byte {
		if unsigned {
			return u
		}
		return s
	}
	switch vt {
	case ValI32:
		switch op {
		case ir.OpAdd:
			return 0x6A, true
		case ir.OpSub:
			return 0x6B, true
		case ir.OpMul:
			return 0x6C, true
		case ir.OpDiv:
			return pick(0x6D, 0x6E), true
		case ir.OpMod:
			return pick(0x6F, 0x70), true
		case ir.OpAnd:
			return 0x71, true
		case ir.OpOr:
			return 0x72, true
		case ir.OpXor:
			return 0x73, true
		case ir.OpShl:
			return 0x74, true
		case ir.OpShr:
			return pick(0x75, 0x76), true
		case ir.OpEq:
			return 0x46, true
		case ir.OpNe:
			return 0x47, true
		case ir.OpLt:
			return pick(0x48, 0x49), true
		case ir.OpGt:
			return pick(0x4A, 0x4B), true
		case ir.OpLe:
			return pick(0x4C, 0x4D), true
		case ir.OpGe:
			return pick(0x4E, 0x4F), true
		}
	case ValI64:
		switch op {
		case ir.OpAdd:
			return 0x7C, true
		case ir.OpSub:
			return 0x7D, true
		case ir.OpMul:
			return 0x7E, true
		case ir.OpDiv:
			return pick(0x7F, 0x80), true
		case ir.OpMod:
			return pick(0x81, 0x82), true
		case ir.OpAnd:
			return 0x83, true
		case ir.OpOr:
			return 0x84, true
		case ir.OpXor:
			return 0x85, true
		case ir.OpShl:
			return 0x86, true
		case ir.OpShr:
			return pick(0x87, 0x88), true
		case ir.OpEq:
			return 0x51, true
		case ir.OpNe:
			return 0x52, true
		case ir.OpLt:
			return pick(0x53, 0x54), true
		case ir.OpGt:
			return pick(0x55, 0x56), true
		case ir.OpLe:
			return pick(0x57, 0x58), true
		case ir.OpGe:
			return pick(0x59, 0x5A), true
		}
	case ValF32:
		switch op {
		case ir.OpAdd:
			return 0x92, true
		case ir.OpSub:
			return 0x93, true
		case ir.OpMul:
			return 0x94, true
		case ir.OpDiv:
			return 0x95, true
		case ir.OpEq:
			return 0x5B, true
		case ir.OpNe:
			return 0x5C, true
		case ir.OpLt:
			return 0x5D, true
		case ir.OpGt:
			return 0x5E, true
		case ir.OpLe:
			return 0x5F, true
		case ir.OpGe:
			return 0x60, true
		}
	case ValF64:
		switch op {
		case ir.OpAdd:
			return 0xA0, true
		case ir.OpSub:
			return 0xA1, true
		case ir.OpMul:
			return 0xA2, true
		case ir.OpDiv:
			return 0xA3, true
		case ir.OpEq:
			return 0x61, true
		case ir.OpNe:
			return 0x62, true
		case ir.OpLt:
			return 0x63, true
		case ir.OpGt:
			return 0x64, true
		case ir.OpLe:
			return 0x65, true
		case ir.OpGe:
			return 0x66, true
		}
	}
	return 0, false
}
