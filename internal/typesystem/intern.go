package typesystem

import (
	"strconv"
	"strings"
	"sync"
)

// Primitive type names
const (
	Bool  = "bool"
	Char  = "char"
	I8    = "i8"
	I16   = "i16"
	I32   = "i32"
	I64   = "i64"
	Isize = "isize"
	U8    = "u8"
	U16   = "u16"
	U32   = "u32"
	U64   = "u64"
	Usize = "usize"
	F32   = "f32"
	F64   = "f64"
	Str   = "str"
	Never = "!"
)

// PrimNames lists every primitive accepted by Interner.Prim.
var PrimNames = []string{Bool, Char, I8, I16, I32, I64, Isize, U8, U16, U32, U64, Usize, F32, F64, Str, Never}

// IsPrimName reports whether name is a primitive type.
func IsPrimName(name string) bool {
	for _, p := range PrimNames {
		if p == name {
			return true
		}
	}
	return false
}

// Interner owns every type of a compilation unit. Types are never freed.
// It is safe for concurrent use.
type Interner struct {
	mu    sync.Mutex
	byKey map[string]*Type
	all   []*Type
	err   *Type
	unit  *Type
}

func NewInterner() *Interner {
	in := &Interner{byKey: make(map[string]*Type)}
	in.err = in.intern(&Type{kind: KindError})
	in.unit = in.intern(&Type{kind: KindTuple})
	return in
}

// Len returns the number of distinct types interned so far.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.all)
}

func (in *Interner) Error() *Type { return in.err }
func (in *Interner) Unit() *Type  { return in.unit }

func (in *Interner) Prim(name string) *Type {
	return in.intern(&Type{kind: KindPrim, name: name})
}

func (in *Interner) Adt(def DefID, name string, args []*Type, regions []Region) *Type {
	return in.intern(&Type{kind: KindAdt, def: def, name: name, args: args, regions: regions})
}

func (in *Interner) Ref(r Region, mut bool, elem *Type) *Type {
	return in.intern(&Type{kind: KindRef, region: r, mut: mut, args: []*Type{elem}})
}

func (in *Interner) Ptr(mut bool, elem *Type) *Type {
	return in.intern(&Type{kind: KindPtr, mut: mut, args: []*Type{elem}})
}

func (in *Interner) Box(elem *Type) *Type {
	return in.intern(&Type{kind: KindBox, args: []*Type{elem}})
}

func (in *Interner) Tuple(elems ...*Type) *Type {
	return in.intern(&Type{kind: KindTuple, args: elems})
}

func (in *Interner) FnPtr(inputs []*Type, output *Type) *Type {
	return in.intern(&Type{kind: KindFnPtr, args: sigArgs(inputs, output)})
}

func (in *Interner) Closure(def DefID, name string, kind ClosureKind, inputs []*Type, output *Type) *Type {
	return in.intern(&Type{kind: KindClosure, def: def, name: name, ckind: kind, args: sigArgs(inputs, output)})
}

// Param builds the index-th generic parameter of the enclosing item.
func (in *Interner) Param(index uint32, name string) *Type {
	return in.intern(&Type{kind: KindParam, index: index, name: name})
}

// Infer builds the type inference variable with the given id.
func (in *Interner) Infer(id uint32) *Type {
	return in.intern(&Type{kind: KindInfer, index: id})
}

func (in *Interner) Projection(p ProjectionTy) *Type {
	return in.intern(&Type{kind: KindProjection, proj: &p})
}

func (in *Interner) Dynamic(d DynTy) *Type {
	return in.intern(&Type{kind: KindDynamic, def: d.Def, name: d.Name, dyn: &d})
}

func sigArgs(inputs []*Type, output *Type) []*Type {
	args := make([]*Type, 0, len(inputs)+1)
	args = append(args, inputs...)
	return append(args, output)
}

func (in *Interner) intern(t *Type) *Type {
	key := structuralKey(t)

	in.mu.Lock()
	defer in.mu.Unlock()
	if existing, ok := in.byKey[key]; ok {
		return existing
	}
	t.args = cloneTypes(t.args)
	t.regions = cloneRegions(t.regions)
	t.id = uint32(len(in.all))
	t.flags = computeFlags(t)
	in.byKey[key] = t
	in.all = append(in.all, t)
	return t
}

func computeFlags(t *Type) Flags {
	var f Flags
	switch t.kind {
	case KindParam:
		f |= HasParams
		if t.index == 0 && t.name == "Self" {
			f |= HasSelf
		}
	case KindInfer:
		f |= HasInfer
	case KindProjection:
		f |= HasProjection
		for _, r := range t.proj.Trait.Regions {
			f |= r.flags()
		}
	case KindError:
		f |= HasError
	case KindRef:
		f |= t.region.flags()
	case KindAdt:
		for _, r := range t.regions {
			f |= r.flags()
		}
	case KindDynamic:
		for _, r := range t.dyn.Regions {
			f |= r.flags()
		}
	}
	for _, c := range t.children() {
		f |= c.flags
	}
	return f
}

// structuralKey identifies a type by its constructor and the ids of its
// already-interned children.
func structuralKey(t *Type) string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(t.kind)))
	sb.WriteByte('|')
	switch t.kind {
	case KindPrim:
		sb.WriteString(t.name)
	case KindAdt:
		sb.WriteString(t.def.String())
		writeRegionKeys(&sb, t.regions)
		writeIDs(&sb, t.args)
	case KindRef:
		sb.WriteString(t.region.key())
		if t.mut {
			sb.WriteString("mut")
		}
		writeIDs(&sb, t.args)
	case KindPtr:
		if t.mut {
			sb.WriteString("mut")
		}
		writeIDs(&sb, t.args)
	case KindBox, KindTuple, KindFnPtr:
		writeIDs(&sb, t.args)
	case KindClosure:
		sb.WriteString(t.def.String())
		sb.WriteString(strconv.Itoa(int(t.ckind)))
		writeIDs(&sb, t.args)
	case KindParam:
		sb.WriteString(strconv.Itoa(int(t.index)))
		sb.WriteByte(':')
		sb.WriteString(t.name)
	case KindInfer:
		sb.WriteString(strconv.Itoa(int(t.index)))
	case KindProjection:
		sb.WriteString(t.proj.Key())
	case KindDynamic:
		sb.WriteString(t.dyn.Def.String())
		writeRegionKeys(&sb, t.dyn.Regions)
		writeIDs(&sb, t.dyn.Args)
		for _, b := range t.dyn.Bindings {
			sb.WriteString(b.Item)
			sb.WriteByte('=')
			writeID(&sb, b.Ty)
			sb.WriteByte(';')
		}
	}
	return sb.String()
}

func writeID(sb *strings.Builder, t *Type) {
	if t == nil {
		sb.WriteString("nil")
		return
	}
	sb.WriteByte('#')
	sb.WriteString(strconv.Itoa(int(t.id)))
}

func writeIDs(sb *strings.Builder, ts []*Type) {
	sb.WriteByte('(')
	for i, t := range ts {
		if i > 0 {
			sb.WriteByte(',')
		}
		writeID(sb, t)
	}
	sb.WriteByte(')')
}

func writeRegionKeys(sb *strings.Builder, rs []Region) {
	for _, r := range rs {
		sb.WriteString(r.key())
		sb.WriteByte(',')
	}
}

func cloneTypes(ts []*Type) []*Type {
	if ts == nil {
		return nil
	}
	return append([]*Type(nil), ts...)
}

func cloneRegions(rs []Region) []Region {
	if rs == nil {
		return nil
	}
	return append([]Region(nil), rs...)
}
