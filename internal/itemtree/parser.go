package itemtree

import (
	"fmt"
	"strings"
)

// ParseError locates a syntax error within one expression.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("col %d: %s", e.Offset, e.Msg)
}

// Parser reads a single type or predicate expression.
type Parser struct {
	l      *Lexer
	errors []*ParseError

	curToken  Token
	peekToken Token
}

func NewParser(input string) *Parser {
	p := &Parser{l: NewLexer(input)}
	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()
	return p
}

func (p *Parser) Errors() []*ParseError { return p.errors }

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) curIdentIs(word string) bool {
	return p.curToken.Type == IDENT && p.curToken.Literal == word
}

func (p *Parser) peekIdentIs(word string) bool {
	return p.peekToken.Type == IDENT && p.peekToken.Literal == word
}

func (p *Parser) expectPeek(t TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t TokenType) {
	p.errorf(p.peekToken.Offset, "expected %s, got %s", t, describe(p.peekToken))
}

func (p *Parser) errorf(off int, format string, args ...any) {
	p.errors = append(p.errors, &ParseError{Offset: off, Msg: fmt.Sprintf(format, args...)})
}

func describe(tok Token) string {
	switch tok.Type {
	case EOF:
		return "end of input"
	case IDENT:
		return "`" + tok.Literal + "`"
	case LIFETIME:
		return "`'" + tok.Literal + "`"
	case VAR:
		return "`?" + tok.Literal + "`"
	}
	return tok.Type.String()
}

// ParseTypeExpr parses input as a complete type.
func ParseTypeExpr(input string) (TypeExpr, error) {
	p := NewParser(input)
	t := p.parseType()
	p.expectEnd()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return t, nil
}

// ParsePredicateExpr parses input as a complete predicate.
func ParsePredicateExpr(input string) (*PredExpr, error) {
	p := NewParser(input)
	pred := p.parsePredicate()
	p.expectEnd()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return pred, nil
}

// ParseBoundsExpr parses `Trait<A> + Other + 'a`, the right-hand side of a bound.
func ParseBoundsExpr(input string) (*PredExpr, error) {
	p := NewParser(input)
	pred := &PredExpr{Off: p.curToken.Offset, Kind: PredBound}
	p.parseBounds(pred)
	p.expectEnd()
	if len(p.errors) > 0 {
		return nil, p.errors[0]
	}
	return pred, nil
}

func (p *Parser) expectEnd() {
	if len(p.errors) == 0 && !p.peekTokenIs(EOF) {
		p.errorf(p.peekToken.Offset, "unexpected %s after expression", describe(p.peekToken))
	}
}

func (p *Parser) parsePredicate() *PredExpr {
	pred := &PredExpr{Off: p.curToken.Offset}

	// 'a: 'b
	if p.curTokenIs(LIFETIME) {
		pred.Kind = PredOutlives
		pred.Region = p.curToken.Literal
		if !p.expectPeek(COLON) || !p.expectPeek(LIFETIME) {
			return nil
		}
		pred.Regions = []string{p.curToken.Literal}
		return pred
	}

	// WF(T)
	if p.curIdentIs("WF") && p.peekTokenIs(LPAREN) {
		pred.Kind = PredWF
		p.nextToken()
		p.nextToken()
		pred.Subject = p.parseType()
		if !p.expectPeek(RPAREN) {
			return nil
		}
		return pred
	}

	pred.Subject = p.parseType()
	if pred.Subject == nil {
		return nil
	}
	switch {
	case p.peekTokenIs(COLON):
		pred.Kind = PredBound
		p.nextToken()
		p.nextToken()
		p.parseBounds(pred)
	case p.peekTokenIs(EQ):
		pred.Kind = PredEq
		p.nextToken()
		p.nextToken()
		pred.Rhs = p.parseType()
	default:
		p.errorf(p.peekToken.Offset, "expected `:` or `==` after the type, got %s", describe(p.peekToken))
		return nil
	}
	return pred
}

// parseBounds reads `Trait + 'a + Other<T>` starting at the current token.
func (p *Parser) parseBounds(pred *PredExpr) {
	for {
		switch {
		case p.curTokenIs(LIFETIME):
			pred.Regions = append(pred.Regions, p.curToken.Literal)
		case p.curTokenIs(IDENT):
			if path := p.parsePath(); path != nil {
				pred.Traits = append(pred.Traits, path)
			}
		default:
			p.errorf(p.curToken.Offset, "expected a trait or lifetime bound, got %s", describe(p.curToken))
			return
		}
		if !p.peekTokenIs(PLUS) {
			return
		}
		p.nextToken()
		p.nextToken()
	}
}

func (p *Parser) parseType() TypeExpr {
	off := p.curToken.Offset
	switch p.curToken.Type {
	case AMP:
		return p.parseRefType()
	case STAR:
		return p.parsePtrType()
	case LPAREN:
		return p.parseTupleType()
	case LT:
		return p.parseQPath()
	case BANG:
		return &NeverType{Off: off}
	case VAR:
		return &InferType{Off: off, Name: p.curToken.Literal}
	case IDENT:
		switch p.curToken.Literal {
		case "_":
			return &InferType{Off: off}
		case "fn":
			return p.parseFnType(nil)
		case "for":
			return p.parseForFnType()
		case "dyn":
			p.nextToken()
			if !p.curTokenIs(IDENT) {
				p.errorf(p.curToken.Offset, "expected a trait after `dyn`, got %s", describe(p.curToken))
				return nil
			}
			path := p.parsePath()
			if path == nil {
				return nil
			}
			return &DynType{Off: off, Trait: path}
		case "closure":
			if p.peekTokenIs(LT) {
				return p.parseClosureType()
			}
		}
		return p.parsePathOrAssoc()
	}
	p.errorf(off, "expected a type, got %s", describe(p.curToken))
	return nil
}

func (p *Parser) parseRefType() TypeExpr {
	ref := &RefType{Off: p.curToken.Offset}
	if p.peekTokenIs(LIFETIME) {
		p.nextToken()
		ref.Region = p.curToken.Literal
	}
	if p.peekIdentIs("mut") {
		p.nextToken()
		ref.Mut = true
	}
	p.nextToken()
	ref.Elem = p.parseType()
	if ref.Elem == nil {
		return nil
	}
	return ref
}

func (p *Parser) parsePtrType() TypeExpr {
	ptr := &PtrType{Off: p.curToken.Offset}
	switch {
	case p.peekIdentIs("mut"):
		ptr.Mut = true
	case p.peekIdentIs("const"):
	default:
		p.errorf(p.peekToken.Offset, "expected `const` or `mut` after `*`, got %s", describe(p.peekToken))
		return nil
	}
	p.nextToken()
	p.nextToken()
	ptr.Elem = p.parseType()
	if ptr.Elem == nil {
		return nil
	}
	return ptr
}

// parseTupleType reads `()`, `(A)`, `(A,)` and `(A, B)`. A parenthesized
// single type without a trailing comma is the type itself.
func (p *Parser) parseTupleType() TypeExpr {
	tuple := &TupleType{Off: p.curToken.Offset}
	if p.peekTokenIs(RPAREN) {
		p.nextToken()
		return tuple
	}
	trailing := false
	for {
		p.nextToken()
		elem := p.parseType()
		if elem == nil {
			return nil
		}
		tuple.Elems = append(tuple.Elems, elem)
		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
		trailing = true
		if p.peekTokenIs(RPAREN) {
			break
		}
		trailing = false
	}
	if !p.expectPeek(RPAREN) {
		return nil
	}
	if len(tuple.Elems) == 1 && !trailing {
		return tuple.Elems[0]
	}
	return tuple
}

func (p *Parser) parseQPath() TypeExpr {
	q := &QPathType{Off: p.curToken.Offset}
	p.nextToken()
	q.Self = p.parseType()
	if q.Self == nil {
		return nil
	}
	if !p.peekIdentIs("as") {
		p.errorf(p.peekToken.Offset, "expected `as` in qualified path, got %s", describe(p.peekToken))
		return nil
	}
	p.nextToken()
	if !p.expectPeek(IDENT) {
		return nil
	}
	q.Trait = p.parsePath()
	if q.Trait == nil || !p.expectPeek(GT) || !p.expectPeek(PATHSEP) || !p.expectPeek(IDENT) {
		return nil
	}
	q.Item = p.curToken.Literal
	return q
}

func (p *Parser) parseForFnType() TypeExpr {
	off := p.curToken.Offset
	if !p.expectPeek(LT) {
		return nil
	}
	var late []string
	for {
		if !p.expectPeek(LIFETIME) {
			return nil
		}
		late = append(late, p.curToken.Literal)
		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(GT) {
		return nil
	}
	p.nextToken()
	if !p.curIdentIs("fn") {
		p.errorf(p.curToken.Offset, "expected `fn` after `for<...>`, got %s", describe(p.curToken))
		return nil
	}
	fn, ok := p.parseFnType(late).(*FnType)
	if !ok {
		return nil
	}
	fn.Off = off
	return fn
}

func (p *Parser) parseFnType(late []string) TypeExpr {
	fn := &FnType{Off: p.curToken.Offset, Late: late}
	if !p.expectPeek(LPAREN) {
		return nil
	}
	inputs, ok := p.parseTypeList(RPAREN)
	if !ok {
		return nil
	}
	fn.Inputs = inputs
	if p.peekTokenIs(ARROW) {
		p.nextToken()
		p.nextToken()
		if fn.Output = p.parseType(); fn.Output == nil {
			return nil
		}
	}
	return fn
}

func (p *Parser) parseClosureType() TypeExpr {
	c := &ClosureType{Off: p.curToken.Offset}
	p.nextToken() // '<'
	if !p.expectPeek(IDENT) {
		return nil
	}
	c.Kind = p.curToken.Literal
	if !p.expectPeek(GT) || !p.expectPeek(LPAREN) {
		return nil
	}
	inputs, ok := p.parseTypeList(RPAREN)
	if !ok {
		return nil
	}
	c.Inputs = inputs
	if p.peekTokenIs(ARROW) {
		p.nextToken()
		p.nextToken()
		if c.Output = p.parseType(); c.Output == nil {
			return nil
		}
	}
	return c
}

// parseTypeList reads comma separated types up to end. The current token
// is the opening delimiter; on return it is end.
func (p *Parser) parseTypeList(end TokenType) ([]TypeExpr, bool) {
	var list []TypeExpr
	if p.peekTokenIs(end) {
		p.nextToken()
		return list, true
	}
	for {
		p.nextToken()
		t := p.parseType()
		if t == nil {
			return nil, false
		}
		list = append(list, t)
		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(end) {
		return nil, false
	}
	return list, true
}

// parsePathOrAssoc reads a path type. `Self::Item` is always the
// associated type shorthand; other two-segment paths are resolved later.
func (p *Parser) parsePathOrAssoc() TypeExpr {
	path := p.parsePath()
	if path == nil {
		return nil
	}
	if base, item, ok := strings.Cut(path.Path, "::"); ok && base == "Self" && len(path.Args) == 0 && len(path.Regions) == 0 {
		return &AssocPathType{Off: path.Off, Base: base, Item: item}
	}
	return path
}

// parsePath reads `a::b::Name<'r, T, Item = U>`. The current token is the
// first segment.
func (p *Parser) parsePath() *PathType {
	path := &PathType{Off: p.curToken.Offset, Path: p.curToken.Literal}
	for p.peekTokenIs(PATHSEP) {
		p.nextToken()
		if !p.expectPeek(IDENT) {
			return nil
		}
		path.Path += "::" + p.curToken.Literal
	}
	if !p.peekTokenIs(LT) {
		return path
	}
	p.nextToken()
	if p.peekTokenIs(GT) {
		p.nextToken()
		return path
	}
	for {
		p.nextToken()
		switch {
		case p.curTokenIs(LIFETIME):
			path.Regions = append(path.Regions, p.curToken.Literal)
		case p.curTokenIs(IDENT) && p.peekTokenIs(ASSIGN):
			b := BindingExpr{Off: p.curToken.Offset, Item: p.curToken.Literal}
			p.nextToken()
			p.nextToken()
			if b.Ty = p.parseType(); b.Ty == nil {
				return nil
			}
			path.Bindings = append(path.Bindings, b)
		default:
			t := p.parseType()
			if t == nil {
				return nil
			}
			path.Args = append(path.Args, t)
		}
		if !p.peekTokenIs(COMMA) {
			break
		}
		p.nextToken()
	}
	if !p.expectPeek(GT) {
		return nil
	}
	return path
}
