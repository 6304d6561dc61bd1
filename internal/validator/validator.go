// Package validator statically checks Python submissions against a problem's
// template before anything is executed.
package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var ErrBadTemplate = errors.New("submission template does not parse")

type Kind string

const (
	KindSyntax          Kind = "syntax_error"
	KindMissingFunction Kind = "missing_function"
	KindArityMismatch   Kind = "arity_mismatch"
)

// ValidationError is returned when a submission must not be executed.
type ValidationError struct {
	Kind     Kind
	Name     string
	Expected []string
	Detail   string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case KindMissingFunction:
		return fmt.Sprintf("Function '%s' is missing in the submission.", e.Name)
	case KindArityMismatch:
		return fmt.Sprintf("Function '%s' has incorrect parameters. Expected %s.", e.Name, pyList(e.Expected))
	default:
		return "Syntax Error: " + e.Detail
	}
}

// Signature is a top-level function and its positional-or-keyword parameters.
type Signature struct {
	Name   string
	Params []string
}

// Validate returns nil when submission parses and defines every template
// function with the same parameter names in the same order.
func Validate(template, submission string) error {
	if strings.TrimSpace(submission) == "" {
		return &ValidationError{Kind: KindSyntax, Detail: "empty code"}
	}

	subTree, err := parse(submission)
	if err != nil {
		return err
	}
	if loc, bad := firstError(subTree); bad {
		return &ValidationError{Kind: KindSyntax, Detail: loc}
	}
	if msg, bad := firstMisuse(subTree); bad {
		return &ValidationError{Kind: KindSyntax, Detail: msg}
	}

	tplTree, err := parse(template)
	if err != nil {
		return err
	}
	if _, bad := firstError(tplTree); bad {
		return ErrBadTemplate
	}
	if _, bad := firstMisuse(tplTree); bad {
		return ErrBadTemplate
	}

	want := signatures(tplTree, []byte(template))
	got := make(map[string][]string)
	for _, sig := range signatures(subTree, []byte(submission)) {
		got[sig.Name] = sig.Params
	}

	for _, sig := range want {
		params, ok := got[sig.Name]
		if !ok {
			return &ValidationError{Kind: KindMissingFunction, Name: sig.Name}
		}
		if !equalNames(params, sig.Params) {
			return &ValidationError{Kind: KindArityMismatch, Name: sig.Name, Expected: sig.Params}
		}
	}
	return nil
}

// Signatures lists the top-level functions of src in definition order. A
// later definition with the same name replaces the earlier parameter list.
func Signatures(src string) ([]Signature, error) {
	root, err := parse(src)
	if err != nil {
		return nil, err
	}
	if loc, bad := firstError(root); bad {
		return nil, &ValidationError{Kind: KindSyntax, Detail: loc}
	}
	if msg, bad := firstMisuse(root); bad {
		return nil, &ValidationError{Kind: KindSyntax, Detail: msg}
	}
	return signatures(root, []byte(src)), nil
}

func parse(src string) (*sitter.Node, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(context.Background(), nil, []byte(src))
	if err != nil {
		return nil, fmt.Errorf("failed to parse source: %w", err)
	}
	return tree.RootNode(), nil
}

// firstError finds the first ERROR or MISSING node in document order.
func firstError(root *sitter.Node) (string, bool) {
	if !root.HasError() {
		return "", false
	}
	var walk func(n *sitter.Node) (string, bool)
	walk = func(n *sitter.Node) (string, bool) {
		if n.IsMissing() {
			p := n.StartPoint()
			return fmt.Sprintf("expected '%s' (line %d, column %d)", n.Type(), p.Row+1, p.Column+1), true
		}
		if n.Type() == "ERROR" {
			p := n.StartPoint()
			return fmt.Sprintf("invalid syntax (line %d, column %d)", p.Row+1, p.Column+1), true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			c := n.Child(i)
			if c == nil || !c.HasError() && !c.IsMissing() {
				continue
			}
			if loc, ok := walk(c); ok {
				return loc, true
			}
		}
		return "", false
	}
	if loc, ok := walk(root); ok {
		return loc, true
	}
	p := root.StartPoint()
	return fmt.Sprintf("invalid syntax (line %d, column %d)", p.Row+1, p.Column+1), true
}

// scope tracks what the enclosing blocks allow.
type scope struct {
	function bool
	loop     bool
}

// firstMisuse finds constructs the grammar accepts but CPython rejects at
// compile time: Python 2 statements, a non-default parameter after a default
// one, and return, yield, break or continue in the wrong block.
func firstMisuse(root *sitter.Node) (string, bool) {
	var walk func(n *sitter.Node, sc scope) (string, bool)
	walk = func(n *sitter.Node, sc scope) (string, bool) {
		if !n.IsNamed() {
			return "", false
		}
		switch n.Type() {
		case "print_statement":
			return located(n, "Missing parentheses in call to 'print'"), true
		case "exec_statement":
			return located(n, "Missing parentheses in call to 'exec'"), true
		case "return_statement":
			if !sc.function {
				return located(n, "'return' outside function"), true
			}
		case "yield":
			if !sc.function {
				return located(n, "'yield' outside function"), true
			}
		case "break_statement":
			if !sc.loop {
				return located(n, "'break' outside loop"), true
			}
		case "continue_statement":
			if !sc.loop {
				return located(n, "'continue' not properly in loop"), true
			}
		case "parameters", "lambda_parameters":
			if bad := defaultOrder(n); bad != nil {
				return located(bad, "non-default argument follows default argument"), true
			}
		case "function_definition", "lambda":
			sc = scope{function: true}
		case "class_definition":
			sc = scope{}
		case "for_statement", "while_statement":
			// The else clause belongs to the enclosing scope.
			alt := n.ChildByFieldName("alternative")
			for i := 0; i < int(n.NamedChildCount()); i++ {
				c := n.NamedChild(i)
				inner := sc
				if alt == nil || !sameNode(c, alt) {
					inner.loop = true
				}
				if msg, ok := walk(c, inner); ok {
					return msg, true
				}
			}
			return "", false
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if msg, ok := walk(n.NamedChild(i), sc); ok {
				return msg, true
			}
		}
		return "", false
	}
	return walk(root, scope{})
}

// defaultOrder returns the first positional parameter without a default that
// follows one with a default.
func defaultOrder(list *sitter.Node) *sitter.Node {
	seenDefault := false
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		switch p.Type() {
		case "default_parameter", "typed_default_parameter":
			seenDefault = true
		case "identifier":
			if seenDefault {
				return p
			}
		case "typed_parameter":
			inner := p.NamedChild(0)
			if inner == nil || inner.Type() != "identifier" {
				return nil
			}
			if seenDefault {
				return p
			}
		case "list_splat_pattern", "dictionary_splat_pattern", "keyword_separator":
			return nil
		}
	}
	return nil
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func located(n *sitter.Node, msg string) string {
	p := n.StartPoint()
	return fmt.Sprintf("%s (line %d, column %d)", msg, p.Row+1, p.Column+1)
}

func signatures(root *sitter.Node, src []byte) []Signature {
	var out []Signature
	index := make(map[string]int)

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.Type() == "decorated_definition" {
			n = n.ChildByFieldName("definition")
			if n == nil {
				continue
			}
		}
		if n.Type() != "function_definition" || isAsync(n) {
			continue
		}
		name := n.ChildByFieldName("name")
		if name == nil {
			continue
		}
		sig := Signature{Name: name.Content(src), Params: params(n.ChildByFieldName("parameters"), src)}
		if at, seen := index[sig.Name]; seen {
			out[at].Params = sig.Params
			continue
		}
		index[sig.Name] = len(out)
		out = append(out, sig)
	}
	return out
}

func isAsync(fn *sitter.Node) bool {
	first := fn.Child(0)
	return first != nil && first.Type() == "async"
}

// params mirrors ast.arguments.args: positional-only parameters (before "/")
// and keyword-only ones (after "*" or *args) are not included.
func params(list *sitter.Node, src []byte) []string {
	if list == nil {
		return nil
	}
	var names []string
	keywordOnly := false

	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		var name string

		switch p.Type() {
		case "identifier":
			name = p.Content(src)
		case "default_parameter", "typed_default_parameter":
			if n := p.ChildByFieldName("name"); n != nil {
				name = n.Content(src)
			}
		case "typed_parameter":
			inner := p.NamedChild(0)
			if inner == nil {
				continue
			}
			switch inner.Type() {
			case "identifier":
				name = inner.Content(src)
			case "list_splat_pattern":
				keywordOnly = true
				continue
			default:
				continue
			}
		case "list_splat_pattern", "keyword_separator":
			keywordOnly = true
			continue
		case "positional_separator":
			names = names[:0]
			continue
		default:
			continue
		}

		if name != "" && !keywordOnly {
			names = append(names, name)
		}
	}
	return names
}

// CountTestCases counts the elements of the module-level test_cases list
// literal. ok is false when no such literal exists.
func CountTestCases(harness string) (int, bool) {
	root, err := parse(harness)
	if err != nil {
		return 0, false
	}
	src := []byte(harness)
	count, ok := 0, false

	for i := 0; i < int(root.NamedChildCount()); i++ {
		stmt := root.NamedChild(i)
		if stmt.Type() != "expression_statement" || stmt.NamedChildCount() == 0 {
			continue
		}
		assign := stmt.NamedChild(0)
		if assign.Type() != "assignment" {
			continue
		}
		left, right := assign.ChildByFieldName("left"), assign.ChildByFieldName("right")
		if left == nil || right == nil || left.Content(src) != "test_cases" || right.Type() != "list" {
			continue
		}
		count, ok = 0, true
		for j := 0; j < int(right.NamedChildCount()); j++ {
			if right.NamedChild(j).Type() != "comment" {
				count++
			}
		}
	}
	return count, ok
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pyList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
