/*
 * Copyright (c) 2023. Nydus Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package filter implements C7: compiling a boolean filter expression
// (e.g. "evt.type = open and fd.type = file") into a Predicate evaluated
// against every dispatched event. The filter *language* is intentionally
// small -- the spec treats its grammar as out of scope beyond the gate
// contract (compile once, evaluate many, report column-accurate compile
// errors) -- so the grammar here is exactly what section 4.7 describes:
// field = value comparisons joined by and/or/not, with parens.
package filter

import (
	"strings"

	"github.com/nydusdev/sysinspect/pkg/errdefs"
	"github.com/nydusdev/sysinspect/pkg/sysevent"
)

// Predicate evaluates a compiled filter expression against one event.
type Predicate interface {
	Eval(evt *sysevent.Event) bool
	// ThreadOnly reports whether this predicate only ever inspects thread
	// table fields -- such filters can be evaluated even on
	// Incomplete-flagged synthetic events (spec section 4.7: "filters that
	// only reference evt.type/thread fields are safe to run against
	// incomplete records").
	ThreadOnly() bool
}

// Field is a resolved column reference, e.g. "evt.type" or "fd.type".
type Field struct {
	Table string // "evt", "fd", "thread", "container"
	Name  string
}

func (f Field) threadOnly() bool {
	return f.Table == "evt" || f.Table == "thread"
}

type comparison struct {
	field Field
	value string
}

func (c *comparison) Eval(evt *sysevent.Event) bool {
	return resolveField(evt, c.field) == c.value
}

func (c *comparison) ThreadOnly() bool { return c.field.threadOnly() }

type andExpr struct{ lhs, rhs Predicate }

func (a *andExpr) Eval(evt *sysevent.Event) bool { return a.lhs.Eval(evt) && a.rhs.Eval(evt) }
func (a *andExpr) ThreadOnly() bool              { return a.lhs.ThreadOnly() && a.rhs.ThreadOnly() }

type orExpr struct{ lhs, rhs Predicate }

func (o *orExpr) Eval(evt *sysevent.Event) bool { return o.lhs.Eval(evt) || o.rhs.Eval(evt) }
func (o *orExpr) ThreadOnly() bool              { return o.lhs.ThreadOnly() && o.rhs.ThreadOnly() }

type notExpr struct{ inner Predicate }

func (n *notExpr) Eval(evt *sysevent.Event) bool { return !n.inner.Eval(evt) }
func (n *notExpr) ThreadOnly() bool              { return n.inner.ThreadOnly() }

// resolveField maps a Field to the string form of the matching attribute
// of evt. Only evt.type and evt.dir are resolved; any other field resolves
// to "", matching nothing. The compiler checks only the table.name form of
// a field, so such fields compile without error.
func resolveField(evt *sysevent.Event, f Field) string {
	switch f.Table + "." + f.Name {
	case "evt.type":
		return evt.Type.String()
	case "evt.dir":
		return evt.Direction.String()
	default:
		return ""
	}
}

// Compile parses expr and returns a Predicate, or a *errdefs.CompileError
// (satisfies errors.Is(err, errdefs.ErrFilterCompile)) describing the
// first syntax problem, with a 0-based column offset into expr.
func Compile(expr string) (Predicate, error) {
	p := &parser{lex: newLexer(expr)}
	p.advance()
	pred, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, errdefs.NewFilterCompileError(p.tok.pos, "unexpected trailing input: "+p.tok.text)
	}
	return pred, nil
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() {
	p.tok = p.lex.next()
}

func (p *parser) parseOr() (Predicate, error) {
	lhs, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokOr {
		p.advance()
		rhs, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		lhs = &orExpr{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseAnd() (Predicate, error) {
	lhs, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokAnd {
		p.advance()
		rhs, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		lhs = &andExpr{lhs: lhs, rhs: rhs}
	}
	return lhs, nil
}

func (p *parser) parseUnary() (Predicate, error) {
	if p.tok.kind == tokNot {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notExpr{inner: inner}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Predicate, error) {
	switch p.tok.kind {
	case tokLParen:
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, errdefs.NewFilterCompileError(p.tok.pos, "expected ')'")
		}
		p.advance()
		return inner, nil
	case tokIdent:
		return p.parseComparison()
	case tokEOF:
		return nil, errdefs.NewFilterCompileError(p.tok.pos, "unexpected end of expression")
	default:
		return nil, errdefs.NewFilterCompileError(p.tok.pos, "unexpected token: "+p.tok.text)
	}
}

func (p *parser) parseComparison() (Predicate, error) {
	fieldTok := p.tok
	field, err := parseFieldName(fieldTok.text)
	if err != nil {
		return nil, errdefs.NewFilterCompileError(fieldTok.pos, err.Error())
	}
	p.advance()

	if p.tok.kind != tokEquals {
		return nil, errdefs.NewFilterCompileError(p.tok.pos, "expected '=' after field name")
	}
	p.advance()

	if p.tok.kind != tokIdent && p.tok.kind != tokString {
		return nil, errdefs.NewFilterCompileError(p.tok.pos, "expected value after '='")
	}
	value := p.tok.text
	p.advance()

	return &comparison{field: field, value: value}, nil
}

func parseFieldName(s string) (Field, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Field{}, errFieldSyntax
	}
	return Field{Table: parts[0], Name: parts[1]}, nil
}

var errFieldSyntax = fieldSyntaxError{}

type fieldSyntaxError struct{}

func (fieldSyntaxError) Error() string { return "expected field name of the form table.name" }
