package typesystem

import (
	"fmt"
	"strings"
)

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	var sb strings.Builder
	writeType(&sb, t)
	return sb.String()
}

func writeType(sb *strings.Builder, t *Type) {
	switch t.kind {
	case KindPrim:
		sb.WriteString(t.name)
	case KindAdt:
		sb.WriteString(t.name)
		writeGenericArgs(sb, t.regions, t.args, nil)
	case KindRef:
		sb.WriteByte('&')
		if t.region.Kind != ReErased {
			sb.WriteString(t.region.String())
			sb.WriteByte(' ')
		}
		if t.mut {
			sb.WriteString("mut ")
		}
		writeType(sb, t.args[0])
	case KindPtr:
		if t.mut {
			sb.WriteString("*mut ")
		} else {
			sb.WriteString("*const ")
		}
		writeType(sb, t.args[0])
	case KindBox:
		sb.WriteString("Box<")
		writeType(sb, t.args[0])
		sb.WriteByte('>')
	case KindTuple:
		sb.WriteByte('(')
		for i, e := range t.args {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeType(sb, e)
		}
		if len(t.args) == 1 {
			sb.WriteByte(',')
		}
		sb.WriteByte(')')
	case KindFnPtr:
		sb.WriteString("fn")
		writeSig(sb, t)
	case KindClosure:
		fmt.Fprintf(sb, "[closure %s]", t.name)
	case KindParam:
		sb.WriteString(t.name)
	case KindInfer:
		fmt.Fprintf(sb, "$%d", t.index)
	case KindProjection:
		sb.WriteString(t.proj.String())
	case KindDynamic:
		sb.WriteString("dyn ")
		sb.WriteString(t.dyn.Name)
		writeGenericArgs(sb, t.dyn.Regions, t.dyn.Args, t.dyn.Bindings)
	case KindError:
		sb.WriteString("{error}")
	}
}

func writeSig(sb *strings.Builder, t *Type) {
	sb.WriteByte('(')
	for i, in := range t.Inputs() {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeType(sb, in)
	}
	sb.WriteByte(')')
	if out := t.Output(); !out.IsUnit() {
		sb.WriteString(" -> ")
		writeType(sb, out)
	}
}

func writeGenericArgs(sb *strings.Builder, regions []Region, args []*Type, bindings []AssocBinding) {
	n := 0
	for _, r := range regions {
		if r.Kind == ReErased {
			continue
		}
		n++
	}
	if n+len(args)+len(bindings) == 0 {
		return
	}
	sb.WriteByte('<')
	first := true
	sep := func() {
		if !first {
			sb.WriteString(", ")
		}
		first = false
	}
	for _, r := range regions {
		if r.Kind == ReErased {
			continue
		}
		sep()
		sb.WriteString(r.String())
	}
	for _, a := range args {
		sep()
		writeType(sb, a)
	}
	for _, b := range bindings {
		sep()
		sb.WriteString(b.Item)
		sb.WriteString(" = ")
		writeType(sb, b.Ty)
	}
	sb.WriteByte('>')
}
