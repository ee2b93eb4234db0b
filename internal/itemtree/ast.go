package itemtree

// TypeExpr is a parsed, unresolved type.
type TypeExpr interface {
	offset() int
}

// PathType is `Name`, `krate::Name<'a, A, Item = B>` or a type parameter.
type PathType struct {
	Off      int
	Path     string
	Regions  []string
	Args     []TypeExpr
	Bindings []BindingExpr
}

// BindingExpr is an associated type binding `Item = T` inside generic args.
type BindingExpr struct {
	Off  int
	Item string
	Ty   TypeExpr
}

type RefType struct {
	Off    int
	Region string
	Mut    bool
	Elem   TypeExpr
}

type PtrType struct {
	Off  int
	Mut  bool
	Elem TypeExpr
}

type TupleType struct {
	Off   int
	Elems []TypeExpr
}

// FnType is `for<'a> fn(A) -> R`. A missing output is the unit type.
type FnType struct {
	Off    int
	Late   []string
	Inputs []TypeExpr
	Output TypeExpr
}

// ClosureType is `closure<Fn>(A) -> R`.
type ClosureType struct {
	Off    int
	Kind   string
	Inputs []TypeExpr
	Output TypeExpr
}

type DynType struct {
	Off   int
	Trait *PathType
}

// QPathType is the qualified projection `<T as Trait>::Item`.
type QPathType struct {
	Off   int
	Self  TypeExpr
	Trait *PathType
	Item  string
}

// AssocPathType is the shorthand projection `T::Item`, resolved through
// the bounds on T in scope.
type AssocPathType struct {
	Off  int
	Base string
	Item string
}

// InferType is `_` or a named variable `?x`.
type InferType struct {
	Off  int
	Name string
}

type NeverType struct {
	Off int
}

func (t *PathType) offset() int      { return t.Off }
func (t *RefType) offset() int       { return t.Off }
func (t *PtrType) offset() int       { return t.Off }
func (t *TupleType) offset() int     { return t.Off }
func (t *FnType) offset() int        { return t.Off }
func (t *ClosureType) offset() int   { return t.Off }
func (t *DynType) offset() int       { return t.Off }
func (t *QPathType) offset() int     { return t.Off }
func (t *AssocPathType) offset() int { return t.Off }
func (t *InferType) offset() int     { return t.Off }
func (t *NeverType) offset() int     { return t.Off }

type PredKind uint8

const (
	// PredBound is `T: Trait + 'a`.
	PredBound PredKind = iota
	// PredEq is `A == B`; with a projection on the left it is a projection predicate.
	PredEq
	// PredOutlives is `'a: 'b`.
	PredOutlives
	// PredWF is `WF(T)`.
	PredWF
)

// PredExpr is a parsed predicate.
type PredExpr struct {
	Off  int
	Kind PredKind

	Subject TypeExpr
	Traits  []*PathType
	Regions []string

	Rhs TypeExpr

	Region string
}
