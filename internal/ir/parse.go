package ir

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
)

// ParseType parses the canonical text form of a type and returns the
// interned type. Parsing the output of Type.String yields the identical
// pointer.
func ParseType(r *Registry, src string) (*Type, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	t, err := p.parseType(r)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustParseType is like ParseType but panics on error.
// Use only in tests or with constant input.
func MustParseType(r *Registry, src string) *Type {
	t, err := ParseType(r, src)
	if err != nil {
		panic(err)
	}
	return t
}

// ParseAttr parses the canonical text form of an attribute and returns the
// interned attribute.
func ParseAttr(s *AttrStore, src string) (Attr, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}
	a, err := p.parseAttr(s)
	if err != nil {
		return nil, err
	}
	if err := p.expectEOF(); err != nil {
		return nil, err
	}
	return a, nil
}

type parser struct {
	lex *lexer
	tok token
}

func newParser(src string) (*parser, error) {
	p := &parser{lex: newLexer(src)}
	if err := p.next(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) next() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(t token, format string, args ...any) *ParseError {
	return &ParseError{Line: t.line, Col: t.col, Message: fmt.Sprintf(format, args...)}
}

func describe(t token) string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return "string " + strconv.Quote(t.text)
	case tokAtom:
		return "atom " + quoteAtom(t.text)
	}
	return strconv.Quote(t.text)
}

func (p *parser) isPunct(c string) bool {
	return p.tok.kind == tokPunct && p.tok.text == c
}

func (p *parser) expectPunct(c string) error {
	if !p.isPunct(c) {
		return p.errorf(p.tok, "expected %s, found %s", strconv.Quote(c), describe(p.tok))
	}
	return p.next()
}

func (p *parser) expectIdent(name string) error {
	if p.tok.kind != tokIdent || p.tok.text != name {
		return p.errorf(p.tok, "expected %s, found %s", strconv.Quote(name), describe(p.tok))
	}
	return p.next()
}

func (p *parser) expectEOF() error {
	if p.tok.kind != tokEOF {
		return p.errorf(p.tok, "unexpected %s after end", describe(p.tok))
	}
	return nil
}

// typeError pins a constructor failure to the position of the offending
// token.
func typeError(at token, err error) error {
	return &ParseError{Line: at.line, Col: at.col, Message: err.Error()}
}

func (p *parser) parseType(r *Registry) (*Type, error) {
	if p.tok.kind != tokIdent {
		return nil, p.errorf(p.tok, "expected type, found %s", describe(p.tok))
	}
	at := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.parseTypeNamed(r, at, at.text)
}

// parseTypeNamed parses a type whose keyword has already been consumed.
// name may differ from at.text when the keyword was glued to a dimension
// ("2xatom").
func (p *parser) parseTypeNamed(r *Registry, at token, name string) (*Type, error) {
	switch name {
	case "tuple":
		return p.parseTuple(r, at)
	case "box", "ref", "ptr":
		if err := p.expectPunct("<"); err != nil {
			return nil, err
		}
		innerAt := p.tok
		inner, err := p.parseType(r)
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(">"); err != nil {
			return nil, err
		}
		var t *Type
		switch name {
		case "box":
			t, err = r.Box(inner)
		case "ref":
			t, err = r.Ref(inner)
		default:
			t, err = r.Ptr(inner)
		}
		if err != nil {
			return nil, typeError(innerAt, err)
		}
		return t, nil
	}
	if k, ok := keywordKind(name); ok {
		return r.singletons[k], nil
	}
	if len(name) > 1 && (name[0] == 'i' || name[0] == 'f') {
		if w, err := strconv.Atoi(name[1:]); err == nil && isDigit(name[1]) {
			var t *Type
			if name[0] == 'i' {
				t, err = r.Int(w)
			} else {
				t, err = r.MachineFloat(w)
			}
			if err != nil {
				return nil, typeError(at, err)
			}
			return t, nil
		}
	}
	return nil, p.errorf(at, "unknown type %s", strconv.Quote(name))
}

func keywordKind(name string) (Kind, bool) {
	for k := Kind(0); k < numKinds; k++ {
		if !k.Parametric() && keywords[k] == name {
			return k, true
		}
	}
	return 0, false
}

// parseTuple parses the part after "tuple": "<*>", "<N x T>" or
// "<T, T, ...>". A bare "tuple" is the dynamic tuple.
func (p *parser) parseTuple(r *Registry, at token) (*Type, error) {
	if !p.isPunct("<") {
		return r.DynamicTuple(), nil
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.isPunct("*") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(">"); err != nil {
			return nil, err
		}
		return r.DynamicTuple(), nil
	}
	if p.tok.kind == tokNumber {
		dimAt := p.tok
		n, err := strconv.Atoi(p.tok.text)
		if err != nil || n < 0 {
			return nil, p.errorf(dimAt, "invalid tuple arity %s", strconv.Quote(dimAt.text))
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent || p.tok.text[0] != 'x' {
			return nil, p.errorf(p.tok, "expected 'x' after tuple arity, found %s", describe(p.tok))
		}
		var elem *Type
		elemAt := p.tok
		if rest := p.tok.text[1:]; rest != "" {
			if err := p.next(); err != nil {
				return nil, err
			}
			elem, err = p.parseTypeNamed(r, elemAt, rest)
		} else {
			if err := p.next(); err != nil {
				return nil, err
			}
			elemAt = p.tok
			elem, err = p.parseType(r)
		}
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(">"); err != nil {
			return nil, err
		}
		t, err := r.UniformTuple(n, elem)
		if err != nil {
			return nil, typeError(elemAt, err)
		}
		return t, nil
	}

	var elems []*Type
	var starts []token
	for {
		starts = append(starts, p.tok)
		e, err := p.parseType(r)
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
		if p.isPunct(",") {
			if err := p.next(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}
	if err := p.expectPunct(">"); err != nil {
		return nil, err
	}
	t, err := r.Tuple(elems...)
	if err != nil {
		if te, ok := err.(*TypeError); ok && te.Index >= 0 && te.Index < len(starts) {
			return nil, typeError(starts[te.Index], err)
		}
		return nil, typeError(at, err)
	}
	return t, nil
}

func (p *parser) parseAttr(s *AttrStore) (Attr, error) {
	if p.tok.kind != tokIdent {
		return nil, p.errorf(p.tok, "expected attribute, found %s", describe(p.tok))
	}
	at := p.tok
	if err := p.next(); err != nil {
		return nil, err
	}
	switch at.text {
	case "nil":
		return s.Nil(), nil
	case "atom":
		return p.parseAtomAttr(s, at)
	case "int", "bigint":
		return p.parseIntAttr(s, at)
	case "float":
		return p.parseFloatAttr(s)
	case "binary":
		return p.parseBinaryAttr(s)
	case "seq":
		return p.parseSeqAttr(s)
	}
	return nil, p.errorf(at, "unknown attribute %s", strconv.Quote(at.text))
}

// field consumes "name =" and leaves the value as the current token.
func (p *parser) field(name string) error {
	if err := p.expectIdent(name); err != nil {
		return err
	}
	return p.expectPunct("=")
}

func (p *parser) openBody() error {
	if err := p.expectPunct("<"); err != nil {
		return err
	}
	return p.expectPunct("{")
}

func (p *parser) closeBody() error {
	if err := p.expectPunct("}"); err != nil {
		return err
	}
	return p.expectPunct(">")
}

func (p *parser) uint64Field(name string) (uint64, error) {
	if err := p.field(name); err != nil {
		return 0, err
	}
	if p.tok.kind != tokNumber {
		return 0, p.errorf(p.tok, "expected integer, found %s", describe(p.tok))
	}
	v, err := strconv.ParseUint(p.tok.text, 10, 64)
	if err != nil {
		return 0, p.errorf(p.tok, "invalid %s value %s", name, strconv.Quote(p.tok.text))
	}
	return v, p.next()
}

func (p *parser) parseAtomAttr(s *AttrStore, at token) (Attr, error) {
	if err := p.openBody(); err != nil {
		return nil, err
	}
	id, err := p.uint64Field("id")
	if err != nil {
		return nil, err
	}
	if p.isPunct("}") {
		if err := p.closeBody(); err != nil {
			return nil, err
		}
		return p.atom(s, at, "", id)
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	if err := p.field("value"); err != nil {
		return nil, err
	}
	if p.tok.kind != tokAtom {
		return nil, p.errorf(p.tok, "expected quoted atom name, found %s", describe(p.tok))
	}
	name := p.tok.text
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.closeBody(); err != nil {
		return nil, err
	}
	return p.atom(s, at, name, id)
}

func (p *parser) atom(s *AttrStore, at token, name string, id uint64) (Attr, error) {
	a, err := s.Atom(name, id)
	if err != nil {
		return nil, p.errorf(at, "%v", err)
	}
	return a, nil
}

func (p *parser) parseIntAttr(s *AttrStore, at token) (Attr, error) {
	if err := p.openBody(); err != nil {
		return nil, err
	}
	if err := p.field("value"); err != nil {
		return nil, err
	}
	valAt := p.tok
	if valAt.kind != tokNumber {
		return nil, p.errorf(valAt, "expected integer, found %s", describe(valAt))
	}
	v, ok := new(big.Int).SetString(valAt.text, 10)
	if !ok {
		return nil, p.errorf(valAt, "expected integer, found %s", describe(valAt))
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	width, err := p.uint64Field("width")
	if err != nil {
		return nil, err
	}
	if err := p.closeBody(); err != nil {
		return nil, err
	}
	var a *IntAttr
	if at.text == "bigint" {
		a, err = s.BigIntValue(v, int(width))
	} else {
		a, err = s.IntValue(v, int(width))
	}
	if err != nil {
		return nil, typeError(valAt, err)
	}
	return a, nil
}

func (p *parser) parseFloatAttr(s *AttrStore) (Attr, error) {
	if err := p.openBody(); err != nil {
		return nil, err
	}
	if err := p.field("value"); err != nil {
		return nil, err
	}
	// NaN lexes as an identifier
	isNaN := p.tok.kind == tokIdent && p.tok.text == "NaN"
	if p.tok.kind != tokNumber && !isNaN {
		return nil, p.errorf(p.tok, "expected float, found %s", describe(p.tok))
	}
	f, err := strconv.ParseFloat(p.tok.text, 64)
	if err != nil {
		return nil, p.errorf(p.tok, "invalid float %s", strconv.Quote(p.tok.text))
	}
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.closeBody(); err != nil {
		return nil, err
	}
	return s.Float(f), nil
}

func (p *parser) parseBinaryAttr(s *AttrStore) (Attr, error) {
	if err := p.openBody(); err != nil {
		return nil, err
	}
	if err := p.field("value"); err != nil {
		return nil, err
	}
	var data []byte
	switch {
	case p.tok.kind == tokString:
		data = []byte(p.tok.text)
		if err := p.next(); err != nil {
			return nil, err
		}
	case p.tok.kind == tokNumber && p.tok.text == "0":
		hexAt := p.tok
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.tok.kind != tokIdent || p.tok.text[0] != 'x' || p.tok.line != hexAt.line || p.tok.col != hexAt.col+1 {
			return nil, p.errorf(hexAt, "expected hex literal")
		}
		decoded, err := hex.DecodeString(p.tok.text[1:])
		if err != nil {
			return nil, p.errorf(hexAt, "invalid hex literal %s", strconv.Quote("0"+p.tok.text))
		}
		data = decoded
		if err := p.next(); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf(p.tok, "expected string or hex literal, found %s", describe(p.tok))
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	header, err := p.uint64Field("header")
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	flags, err := p.uint64Field("flags")
	if err != nil {
		return nil, err
	}
	if err := p.closeBody(); err != nil {
		return nil, err
	}
	return s.Binary(data, header, flags), nil
}

func (p *parser) parseSeqAttr(s *AttrStore) (Attr, error) {
	if err := p.expectPunct("<"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("["); err != nil {
		return nil, err
	}
	var elems []Attr
	for !p.isPunct("]") {
		a, err := p.parseAttr(s)
		if err != nil {
			return nil, err
		}
		elems = append(elems, a)
		if !p.isPunct(",") {
			break
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct("]"); err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	typAt := p.tok
	typ, err := p.parseType(s.Types())
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(">"); err != nil {
		return nil, err
	}
	seq, err := s.Seq(elems, typ)
	if err != nil {
		return nil, typeError(typAt, err)
	}
	return seq, nil
}
