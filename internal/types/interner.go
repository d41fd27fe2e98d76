package types

import (
	"fmt"

	"fortio.org/safecast"
)

// Interner deduplicates Type records and hands out dense TypeIDs.
// Structural types (everything except structs) intern to the same id
// for the same shape; structs are distinguished by their Nominal tag.
type Interner struct {
	types   []Type
	typeKey map[Type]TypeID

	nextNominal uint32

	Builtins Builtins
}

// Builtins are the ids every module shares. Seeded by NewInterner in a
// fixed order, so they are stable across runs and across serialization.
type Builtins struct {
	Unit   TypeID
	Bool   TypeID
	Int    TypeID
	I8     TypeID
	I16    TypeID
	I32    TypeID
	I64    TypeID
	Uint   TypeID
	U8     TypeID
	U16    TypeID
	U32    TypeID
	U64    TypeID
	F32    TypeID
	F64    TypeID
	String TypeID
}

func NewInterner() *Interner {
	in := &Interner{typeKey: make(map[Type]TypeID)}
	b := &in.Builtins
	b.Unit = in.intern(Type{Kind: KindUnit})
	b.Bool = in.intern(Type{Kind: KindBool})
	b.Int = in.intern(Type{Kind: KindInt, Width: WidthAny})
	b.I8 = in.intern(Type{Kind: KindInt, Width: Width8})
	b.I16 = in.intern(Type{Kind: KindInt, Width: Width16})
	b.I32 = in.intern(Type{Kind: KindInt, Width: Width32})
	b.I64 = in.intern(Type{Kind: KindInt, Width: Width64})
	b.Uint = in.intern(Type{Kind: KindUint, Width: WidthAny})
	b.U8 = in.intern(Type{Kind: KindUint, Width: Width8})
	b.U16 = in.intern(Type{Kind: KindUint, Width: Width16})
	b.U32 = in.intern(Type{Kind: KindUint, Width: Width32})
	b.U64 = in.intern(Type{Kind: KindUint, Width: Width64})
	b.F32 = in.intern(Type{Kind: KindFloat, Width: Width32})
	b.F64 = in.intern(Type{Kind: KindFloat, Width: Width64})
	b.String = in.intern(Type{Kind: KindString})
	return in
}

func (in *Interner) intern(t Type) TypeID {
	if id, ok := in.typeKey[t]; ok {
		return id
	}
	raw, err := safecast.Conv[int32](len(in.types))
	if err != nil {
		panic(fmt.Sprintf("types: interner overflow: %v", err))
	}
	id := TypeID(raw)
	in.types = append(in.types, t)
	in.typeKey[t] = id
	return id
}

// MakePointer interns a pointer to elem.
func (in *Interner) MakePointer(elem TypeID) TypeID {
	return in.intern(Type{Kind: KindPointer, Elem: elem})
}

// MakeArray interns a fixed-size array of elem.
func (in *Interner) MakeArray(elem TypeID, count uint32) TypeID {
	return in.intern(Type{Kind: KindArray, Elem: elem, Count: count})
}

// MakeFn interns the uniform function-value type. Signatures are not
// part of the record; calls resolve them through the IR.
func (in *Interner) MakeFn() TypeID {
	return in.intern(Type{Kind: KindFn})
}

// RegisterStruct mints a fresh nominal struct type. Two calls never
// return the same id.
func (in *Interner) RegisterStruct() TypeID {
	n := in.nextNominal
	in.nextNominal++
	return in.intern(Type{Kind: KindStruct, Nominal: n})
}

// Lookup returns the record for id, or false when id is out of range.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id < 0 || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup is Lookup for ids the caller has already validated.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic(fmt.Sprintf("types: unknown TypeID %d", id))
	}
	return t
}

func (in *Interner) Len() int { return len(in.types) }

// Export snapshots the full type table in id order, for serialization.
func (in *Interner) Export() []Type {
	out := make([]Type, len(in.types))
	copy(out, in.types)
	return out
}

// FromTypes rebuilds an interner from an exported table. The table must
// begin with the builtin prefix NewInterner seeds, in the same order.
func FromTypes(table []Type) (*Interner, error) {
	seed := NewInterner()
	if len(table) < seed.Len() {
		return nil, fmt.Errorf("types: table too short: %d entries, want at least %d", len(table), seed.Len())
	}
	for i := 0; i < seed.Len(); i++ {
		if table[i] != seed.types[i] {
			return nil, fmt.Errorf("types: builtin prefix mismatch at id %d: got %v, want %v", i, table[i], seed.types[i])
		}
	}
	for _, t := range table[seed.Len():] {
		if t.Kind == KindInvalid || t.Kind > KindFn {
			return nil, fmt.Errorf("types: bad kind %d in table", t.Kind)
		}
		if t.Kind == KindStruct && t.Nominal >= seed.nextNominal {
			seed.nextNominal = t.Nominal + 1
		}
		if id, ok := seed.typeKey[t]; ok {
			return nil, fmt.Errorf("types: duplicate record in table (already id %d)", id)
		}
		seed.intern(t)
	}
	return seed, nil
}
