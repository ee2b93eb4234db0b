package traits

import (
	"fmt"

	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// SelectionErrorKind classifies why selection failed.
type SelectionErrorKind uint8

const (
	Unimplemented SelectionErrorKind = iota
	OutputTypeParameterMismatch
	TraitNotObjectSafe
	ClosureKindMismatch
)

// SelectionError is a definite selection failure.
type SelectionError struct {
	Kind SelectionErrorKind
	// Expected and Found are the trait refs of an OutputTypeParameterMismatch.
	Expected ts.TraitRef
	Found    ts.TraitRef
	// Err is the underlying type error, if any.
	Err error
	// Trait is the trait that is not object safe.
	Trait ts.DefID
	// Closure and Requested describe a ClosureKindMismatch.
	Closure   *ts.Type
	Requested ts.ClosureKind
}

func (e *SelectionError) Error() string {
	switch e.Kind {
	case OutputTypeParameterMismatch:
		return fmt.Sprintf("type mismatch: expected `%s`, found `%s`: %v", e.Expected.Path(), e.Found.Path(), e.Err)
	case TraitNotObjectSafe:
		return fmt.Sprintf("trait %s is not object safe", e.Trait)
	case ClosureKindMismatch:
		return fmt.Sprintf("closure `%s` does not implement `%s`", e.Closure, e.Requested)
	}
	return "unimplemented"
}

func (e *SelectionError) Unwrap() error { return e.Err }

var errUnimplemented = &SelectionError{Kind: Unimplemented}

// FulfillmentErrorKind classifies errors left after fulfillment.
type FulfillmentErrorKind uint8

const (
	CodeSelectionError FulfillmentErrorKind = iota
	CodeProjectionError
	CodeEquateError
	CodeAmbiguity
)

// FulfillmentError pairs an obligation with the reason it failed.
type FulfillmentError struct {
	Obligation *Obligation
	Kind       FulfillmentErrorKind
	Err        error
}

func (e *FulfillmentError) Error() string {
	switch e.Kind {
	case CodeAmbiguity:
		return fmt.Sprintf("ambiguous obligation `%s`", e.Obligation.Predicate)
	case CodeProjectionError:
		return fmt.Sprintf("projection mismatch in `%s`: %v", e.Obligation.Predicate, e.Err)
	case CodeEquateError:
		return fmt.Sprintf("type mismatch in `%s`: %v", e.Obligation.Predicate, e.Err)
	}
	return fmt.Sprintf("`%s` is not satisfied: %v", e.Obligation.Predicate, e.Err)
}

func (e *FulfillmentError) Unwrap() error { return e.Err }
