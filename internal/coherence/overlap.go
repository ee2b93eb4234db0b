package coherence

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/traitsolver/internal/config"
	"github.com/funvibe/traitsolver/internal/diagnostics"
	"github.com/funvibe/traitsolver/internal/infer"
	"github.com/funvibe/traitsolver/internal/session"
	"github.com/funvibe/traitsolver/internal/symbols"
	"github.com/funvibe/traitsolver/internal/traits"
	ts "github.com/funvibe/traitsolver/internal/typesystem"
)

// checkOverlaps compares the impls of every trait pairwise. Traits are
// checked in parallel; the diagnostics of each are emitted in trait order
// once all workers are done.
func (c *checker) checkOverlaps(ctx context.Context) error {
	ids := c.tbl.TraitsWithImpls()
	results := make([][]*diagnostics.Diagnostic, len(ids))

	workers := c.tcx.Sess.Config.CoherenceWorkers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for i, trait := range ids {
		impls := c.info.extension[trait]
		if len(impls) < 2 {
			continue
		}
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			var diags []*diagnostics.Diagnostic
			err := session.Catch(func() {
				diags = c.overlapsOf(trait, impls)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			results[i] = diags
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, diags := range results {
		for _, d := range diags {
			c.emit(d)
		}
	}
	return nil
}

// overlapsOf reports each impl of trait that overlaps an earlier one, at
// most once per impl. impls are in definition order.
func (c *checker) overlapsOf(trait ts.DefID, impls []*symbols.ImplDef) []*diagnostics.Diagnostic {
	var out []*diagnostics.Diagnostic
	for j := 1; j < len(impls); j++ {
		if c.tcx.Sess.FatalError() != nil {
			// Another shard overflowed; the unit is already lost.
			return nil
		}
		for i := 0; i < j; i++ {
			a, b := impls[i], impls[j]
			if !mayOverlap(trait, a, b) {
				continue
			}
			self, ok := c.overlap(trait, a, b)
			if !ok {
				continue
			}
			header, _ := b.TraitRefFor(trait)
			out = append(out, diagnostics.New(diagnostics.ErrOverlap, b.Span,
				"conflicting implementations of trait `%s` for type `%s`", header.Path(), self).
				WithLabel(a.Span, "first implementation here").
				WithLabel(b.Span, "conflicting implementation for `%s`", self))
			break
		}
	}
	return out
}

// mayOverlap buckets impls by the outer constructor of their self types.
// Impls with a parameter for a self type are in every bucket.
func mayOverlap(trait ts.DefID, a, b *symbols.ImplDef) bool {
	ha, _ := a.TraitRefFor(trait)
	hb, _ := b.TraitRefFor(trait)
	if !ts.MayUnify(ha.Self, hb.Self) {
		return false
	}
	for k := range ha.Args {
		if k < len(hb.Args) && !ts.MayUnify(ha.Args[k], hb.Args[k]) {
			return false
		}
	}
	return true
}

// overlap decides whether some type satisfies the headers of both a and b.
// Each impl's generics become fresh variables; the headers must unify in
// one direction or the other and every kind bound of either impl must
// still possibly hold. It returns the common self type.
func (c *checker) overlap(trait ts.DefID, a, b *symbols.ImplDef) (*ts.Type, bool) {
	type verdict struct {
		self *ts.Type
		ok   bool
	}
	in := c.tcx.Types
	ic := infer.New(in)
	selcx := traits.NewSelectionContext(c.tcx, ic, traits.ModeTopmost)

	ha, _ := a.TraitRefFor(trait)
	hb, _ := b.TraitRefFor(trait)

	try := func(first, second *symbols.ImplDef, h1, h2 ts.TraitRef) verdict {
		return infer.Probe(ic, func() verdict {
			s1 := ic.FreshSubsts(first.Generics.Len(), len(first.Generics.Regions))
			s2 := ic.FreshSubsts(second.Generics.Len(), len(second.Generics.Regions))
			t1 := in.SubstTraitRef(h1, s1)
			t2 := in.SubstTraitRef(h2, s2)
			if err := ic.SubTraitRefs(t1, t2); err != nil {
				return verdict{}
			}
			if !c.kindBoundsMayHold(selcx, first, s1) || !c.kindBoundsMayHold(selcx, second, s2) {
				return verdict{}
			}
			return verdict{self: ic.Resolve(t1.Self), ok: true}
		})
	}

	if v := try(a, b, ha, hb); v.ok {
		return v.self, true
	}
	v := try(b, a, hb, ha)
	return v.self, v.ok
}

// kindBoundsMayHold checks the Copy and Sized where-clauses of impl under
// substs. Bounds that cannot be decided yet count as satisfiable.
func (c *checker) kindBoundsMayHold(selcx *traits.SelectionContext, impl *symbols.ImplDef, substs ts.Substs) bool {
	ic := selcx.Infcx()
	for _, p := range impl.Generics.Predicates {
		if p.Kind != ts.PredTrait || !c.isKindBound(p.Trait.Def) {
			continue
		}
		pred := ic.ResolvePredicate(c.tcx.Types.SubstPredicate(p, substs))
		o := traits.NewObligation(traits.NewCause(impl.Span, traits.CauseCoherence), c.tcx.EmptyParamEnv(), pred)
		if selcx.EvaluateObligation(o) == traits.EvaluatedToErr {
			return false
		}
	}
	return true
}

func (c *checker) isKindBound(def ts.DefID) bool {
	return c.tbl.IsLang(def, config.CopyTraitName) || c.tbl.IsLang(def, config.SizedTraitName)
}
