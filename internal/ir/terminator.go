package ir

// TermKind discriminates Terminator. TermNone marks a block the
// frontend failed to terminate; validation rejects it.
type TermKind uint8

const (
	TermNone TermKind = iota
	TermReturn
	TermJump
	TermIf
	TermSwitch
	TermUnreachable
)

// Terminator ends a block. Exactly the variant selected by Kind is
// meaningful.
type Terminator struct {
	Kind   TermKind
	Return ReturnTerm
	Jump   JumpTerm
	If     IfTerm
	Switch SwitchTerm
}

type ReturnTerm struct {
	HasValue bool
	Value    Operand
}

type JumpTerm struct {
	Target BlockID
}

// IfTerm branches on Cond. Then and Else are always two distinct edges
// even when they name the same block.
type IfTerm struct {
	Cond Operand
	Then BlockID
	Else BlockID
}

// SwitchTerm dispatches on Value. Case values must be distinct;
// Validate rejects duplicates.
type SwitchTerm struct {
	Value   Operand
	Cases   []SwitchCase
	Default BlockID
}

type SwitchCase struct {
	Value  int64
	Target BlockID
}

func ReturnVoid() Terminator {
	return Terminator{Kind: TermReturn}
}

func ReturnValue(v Operand) Terminator {
	return Terminator{Kind: TermReturn, Return: ReturnTerm{HasValue: true, Value: v}}
}

func JumpTo(target BlockID) Terminator {
	return Terminator{Kind: TermJump, Jump: JumpTerm{Target: target}}
}

func IfThenElse(cond Operand, then, els BlockID) Terminator {
	return Terminator{Kind: TermIf, If: IfTerm{Cond: cond, Then: then, Else: els}}
}

func SwitchOn(v Operand, def BlockID, cases ...SwitchCase) Terminator {
	return Terminator{Kind: TermSwitch, Switch: SwitchTerm{Value: v, Cases: cases, Default: def}}
}

func Unreachable() Terminator {
	return Terminator{Kind: TermUnreachable}
}

// Targets appends every successor block id to dst and returns it.
// If terminators contribute both edges even when they coincide.
func (t *Terminator) Targets(dst []BlockID) []BlockID {
	switch t.Kind {
	case TermJump:
		dst = append(dst, t.Jump.Target)
	case TermIf:
		dst = append(dst, t.If.Then, t.If.Else)
	case TermSwitch:
		for _, c := range t.Switch.Cases {
			dst = append(dst, c.Target)
		}
		dst = append(dst, t.Switch.Default)
	}
	return dst
}
