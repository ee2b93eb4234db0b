package typesystem

import "fmt"

// RegionKind distinguishes the lifetimes the solver can observe.
type RegionKind uint8

const (
	// ReErased is a region removed before caching or codegen.
	ReErased RegionKind = iota
	ReStatic
	// ReEarly is an early-bound generic region parameter, substituted like a type parameter.
	ReEarly
	// ReLate is a region bound by a higher-ranked binder (for<'a>).
	ReLate
	// ReVar is a region inference variable.
	ReVar
)

// Region is a lifetime. Regions are small values and are not interned.
type Region struct {
	Kind  RegionKind
	Index uint32
	Name  string
}

var (
	Erased = Region{Kind: ReErased}
	Static = Region{Kind: ReStatic}
)

// EarlyRegion builds the index-th early-bound region parameter.
func EarlyRegion(index uint32, name string) Region {
	return Region{Kind: ReEarly, Index: index, Name: name}
}

// LateRegion builds a region bound by a higher-ranked binder.
func LateRegion(index uint32, name string) Region {
	return Region{Kind: ReLate, Index: index, Name: name}
}

// RegionVar builds a region inference variable.
func RegionVar(index uint32) Region {
	return Region{Kind: ReVar, Index: index}
}

func (r Region) flags() Flags {
	switch r.Kind {
	case ReStatic:
		return HasStaticRegion
	case ReEarly:
		return HasEarlyRegions
	case ReLate:
		return HasLateBound
	case ReVar:
		return HasRegionVars
	}
	return 0
}

func (r Region) key() string {
	switch r.Kind {
	case ReStatic:
		return "'static"
	case ReEarly:
		return fmt.Sprintf("'e%d", r.Index)
	case ReLate:
		return fmt.Sprintf("'l%d", r.Index)
	case ReVar:
		return fmt.Sprintf("'v%d", r.Index)
	}
	return "'_"
}

func (r Region) String() string {
	switch r.Kind {
	case ReStatic:
		return "'static"
	case ReEarly, ReLate:
		if r.Name != "" {
			return "'" + r.Name
		}
		return r.key()
	case ReVar:
		return fmt.Sprintf("'?%d", r.Index)
	}
	return "'_"
}
