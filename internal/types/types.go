package types

import "fmt"

// TypeID is a dense index into an Interner. NoTypeID marks "no type"
// (for example a function without a result).
type TypeID int32

const NoTypeID TypeID = -1

func (id TypeID) IsValid() bool { return id >= 0 }

// Kind discriminates Type. The set is closed; code switching on Kind
// should handle every constant and fail loudly on anything else.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnit
	KindBool
	KindInt
	KindUint
	KindFloat
	KindString
	KindPointer
	KindArray
	KindStruct
	KindFn
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnit:
		return "unit"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindPointer:
		return "pointer"
	case KindArray:
		return "array"
	case KindStruct:
		return "struct"
	case KindFn:
		return "fn"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Width is the bit width of a numeric type. WidthAny is the
// platform-sized variant (int/uint without a suffix).
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
)

// Type is a flat interned type record. Elem is set for pointers and
// arrays, Count for arrays, Nominal distinguishes struct types that
// are otherwise shapeless at this level. Field layout and function
// signatures live with the frontend; the backend only needs the
// lowering shape.
type Type struct {
	Kind    Kind
	Width   Width
	Elem    TypeID
	Count   uint32
	Nominal uint32
}

func (t Type) String() string {
	switch t.Kind {
	case KindInt, KindUint, KindFloat:
		if t.Width == WidthAny {
			return t.Kind.String()
		}
		return fmt.Sprintf("%s%d", t.Kind, t.Width)
	case KindPointer:
		return fmt.Sprintf("ptr(#%d)", t.Elem)
	case KindArray:
		return fmt.Sprintf("array(#%d, %d)", t.Elem, t.Count)
	case KindStruct:
		return fmt.Sprintf("struct#%d", t.Nominal)
	default:
		return t.Kind.String()
	}
}
