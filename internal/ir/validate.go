package ir

import (
	"errors"
	"fmt"
)

// Validate checks module-level invariants the backend relies on:
// every block reference resolves, every block is terminated, every
// operand local exists, and call/start/table references name real
// functions. All violations are reported, joined into one error.
func Validate(m *Module) error {
	var errs []error

	if m.Start.IsValid() && !m.FuncExists(m.Start) {
		errs = append(errs, fmt.Errorf("module %q: start references unknown function %d", m.Name, m.Start))
	}
	for i, fn := range m.TableFuncs {
		if !m.FuncExists(fn) {
			errs = append(errs, fmt.Errorf("module %q: table slot %d references unknown function %d", m.Name, i, fn))
		}
	}

	for i, f := range m.Funcs {
		if f.ID != FuncID(i) {
			errs = append(errs, fmt.Errorf("module %q: func %q has id %d at index %d", m.Name, f.Name, f.ID, i))
		}
		if err := validateFunc(m, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func validateFunc(m *Module, f *Func) error {
	var errs []error

	if f.IsExternal() {
		if len(f.Blocks) != 0 {
			errs = append(errs, fmt.Errorf("func %q: external function has %d blocks", f.Name, len(f.Blocks)))
		}
		if f.ImportModule == "" || f.ImportField == "" {
			errs = append(errs, fmt.Errorf("func %q: external function without import names", f.Name))
		}
		return errors.Join(errs...)
	}

	if !f.BlockExists(f.Entry) {
		errs = append(errs, fmt.Errorf("func %q: entry block %d does not exist", f.Name, f.Entry))
	}
	if len(f.Sig.Params) > len(f.Locals) {
		errs = append(errs, fmt.Errorf("func %q: %d params but only %d locals", f.Name, len(f.Sig.Params), len(f.Locals)))
	}

	checkBlock := func(where string, id BlockID) {
		if !f.BlockExists(id) {
			errs = append(errs, fmt.Errorf("func %q: %s references unknown block %d", f.Name, where, id))
		}
	}
	checkLocal := func(where string, id LocalID) {
		if !f.LocalExists(id) {
			errs = append(errs, fmt.Errorf("func %q: %s references unknown local %d", f.Name, where, id))
		}
	}
	checkOperand := func(where string, o Operand) {
		switch o.Kind {
		case OperandLocal:
			checkLocal(where, o.Local)
		case OperandConst:
			if o.Const.Kind == ConstInvalid {
				errs = append(errs, fmt.Errorf("func %q: %s has invalid constant", f.Name, where))
			}
			if o.Const.Kind == ConstFunc && !m.FuncExists(o.Const.Func) {
				errs = append(errs, fmt.Errorf("func %q: %s references unknown function %d", f.Name, where, o.Const.Func))
			}
		default:
			errs = append(errs, fmt.Errorf("func %q: %s has invalid operand", f.Name, where))
		}
	}
	checkRValue := func(where string, rv RValue) {
		switch rv.Kind {
		case RValueUse:
			checkOperand(where, rv.Use)
		case RValueUnary:
			checkOperand(where, rv.Unary.X)
		case RValueBinary:
			checkOperand(where, rv.Binary.L)
			checkOperand(where, rv.Binary.R)
		default:
			errs = append(errs, fmt.Errorf("func %q: %s has invalid rvalue", f.Name, where))
		}
	}

	for bi := range f.Blocks {
		b := &f.Blocks[bi]
		for ii := range b.Instrs {
			in := &b.Instrs[ii]
			where := fmt.Sprintf("block %d instr %d", bi, ii)
			switch in.Kind {
			case InstrAssign:
				checkLocal(where, in.Assign.Dst)
				checkRValue(where, in.Assign.Src)
			case InstrLoad:
				checkLocal(where, in.Load.Dst)
				checkOperand(where, in.Load.Addr)
			case InstrStore:
				checkOperand(where, in.Store.Addr)
				checkOperand(where, in.Store.Val)
			case InstrCall:
				if in.Call.HasDst {
					checkLocal(where, in.Call.Dst)
				}
				if !m.FuncExists(in.Call.Func) {
					errs = append(errs, fmt.Errorf("func %q: %s calls unknown function %d", f.Name, where, in.Call.Func))
				} else if in.Call.Func == f.ID && !f.Flags.Has(FlagRecursive) {
					errs = append(errs, fmt.Errorf("func %q: %s calls itself without the recursive flag", f.Name, where))
				}
				for _, a := range in.Call.Args {
					checkOperand(where, a)
				}
			case InstrPhi:
				checkLocal(where, in.Phi.Dst)
				for _, e := range in.Phi.Incoming {
					checkBlock(where, e.From)
					checkOperand(where, e.Value)
				}
			case InstrNop:
			default:
				errs = append(errs, fmt.Errorf("func %q: %s has invalid instruction kind %d", f.Name, where, in.Kind))
			}
		}

		where := fmt.Sprintf("block %d terminator", bi)
		switch b.Term.Kind {
		case TermNone:
			errs = append(errs, fmt.Errorf("func %q: block %d is not terminated", f.Name, bi))
		case TermReturn:
			if b.Term.Return.HasValue {
				checkOperand(where, b.Term.Return.Value)
			}
		case TermJump:
			checkBlock(where, b.Term.Jump.Target)
		case TermIf:
			checkOperand(where, b.Term.If.Cond)
			checkBlock(where, b.Term.If.Then)
			checkBlock(where, b.Term.If.Else)
		case TermSwitch:
			checkOperand(where, b.Term.Switch.Value)
			seen := make(map[int64]bool)
			for _, c := range b.Term.Switch.Cases {
				if seen[c.Value] {
					errs = append(errs, fmt.Errorf("func %q: %s has duplicate case value %d", f.Name, where, c.Value))
				}
				seen[c.Value] = true
				checkBlock(where, c.Target)
			}
			checkBlock(where, b.Term.Switch.Default)
		case TermUnreachable:
		default:
			errs = append(errs, fmt.Errorf("func %q: block %d has invalid terminator kind %d", f.Name, bi, b.Term.Kind))
		}
	}

	return errors.Join(errs...)
}
