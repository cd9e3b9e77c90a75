package cfamily

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/zheng/callmap/internal/decl"
	"github.com/zheng/callmap/internal/syntax"
)

// lowerer converts function bodies into syntax.Nodes
type lowerer struct {
	t      *table
	src    *source
	scopes []string
}

func (l *lowerer) lower(n *sitter.Node) *syntax.Node {
	switch n.Type() {
	case "call_expression":
		return l.call(n)
	case "lambda_expression":
		out := &syntax.Node{Kind: syntax.KindClosure, Closure: &lambdaDecl{span: span(l.src.path, n)}}
		if body := n.ChildByFieldName("body"); body != nil {
			out.Children = []*syntax.Node{l.lower(body)}
		}
		return out
	case "parenthesized_expression":
		return &syntax.Node{Kind: syntax.KindParen, Children: l.children(n)}
	}
	return &syntax.Node{Kind: syntax.KindOther, Children: l.children(n)}
}

// children lowers the named children of n. Leaves cannot contain calls and
// are dropped.
func (l *lowerer) children(n *sitter.Node) []*syntax.Node {
	var out []*syntax.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.NamedChildCount() == 0 {
			continue
		}
		out = append(out, l.lower(c))
	}
	return out
}

func (l *lowerer) call(n *sitter.Node) *syntax.Node {
	fn := n.ChildByFieldName("function")
	a := n.ChildByFieldName("arguments")
	var args []*syntax.Node
	if a != nil {
		args = l.children(a)
	}
	if fn == nil {
		return &syntax.Node{Kind: syntax.KindOther, Children: args}
	}

	fnNode := l.lower(fn)
	out := &syntax.Node{
		Kind:     syntax.KindCall,
		Fn:       fnNode,
		Children: append([]*syntax.Node{fnNode}, args...),
	}
	if d := l.callee(fn, argNodes(a)); d != nil {
		out.Callee = d
	}
	return out
}

// callee resolves the function a call expression names, nil when the call
// goes through a value or names nothing declared in the unit.
func (l *lowerer) callee(fn *sitter.Node, args []*sitter.Node) decl.Decl {
	for fn.Type() == "parenthesized_expression" && fn.NamedChildCount() == 1 {
		fn = fn.NamedChild(0)
	}

	src := l.src.src
	nargs := len(args)
	var d *funcDecl
	targs := ""
	switch fn.Type() {
	case "identifier":
		d = l.t.lookup(text(fn, src), l.scopes, nargs)
	case "qualified_identifier":
		qual, global, last := splitQualified(fn, src)
		if last == nil {
			return nil
		}
		base := text(last, src)
		switch last.Type() {
		case "template_function":
			if name := last.ChildByFieldName("name"); name != nil {
				base = text(name, src)
			}
			if a := last.ChildByFieldName("arguments"); a != nil {
				targs = compact(text(a, src))
			}
		case "operator_name":
			base = operatorName(base)
		}
		name := strings.Join(append(qual, base), "::")
		if global {
			name = "::" + name
		}
		d = l.t.lookup(name, l.scopes, nargs)
	case "template_function":
		name := fn.ChildByFieldName("name")
		if name == nil {
			return nil
		}
		if a := fn.ChildByFieldName("arguments"); a != nil {
			targs = compact(text(a, src))
		}
		d = l.t.lookup(stripTemplateArgs(text(name, src)), l.scopes, nargs)
	case "field_expression":
		field := fn.ChildByFieldName("field")
		if field == nil || field.Type() != "field_identifier" {
			return nil
		}
		d = l.t.method(text(field, src), nargs)
	}
	if d == nil {
		return nil
	}
	if d.dependent {
		if targs == "" {
			targs = deduce(d, args, src)
		}
		return l.t.instance(d, targs)
	}
	return d
}

// argNodes lists the arguments of an argument_list
func argNodes(args *sitter.Node) []*sitter.Node {
	if args == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(args.NamedChildCount()); i++ {
		if c := args.NamedChild(i); c.Type() != "comment" {
			out = append(out, c)
		}
	}
	return out
}

// deduce spells the template arguments of an implicit instantiation of
// tmpl, e.g. "<double>" for twice(2.0). Each template parameter is taken
// from the first argument passed to a parameter of exactly that type, and
// only literal arguments have a known type. It returns "" when some
// template parameter cannot be deduced that way.
func deduce(tmpl *funcDecl, args []*sitter.Node, src []byte) string {
	if len(tmpl.tparams) == 0 {
		return ""
	}
	types := make([]string, 0, len(tmpl.tparams))
	for _, p := range tmpl.tparams {
		if p == "" {
			return ""
		}
		typ := ""
		for i, pt := range tmpl.ptypes {
			if pt == p && i < len(args) {
				typ = literalType(args[i], src)
				break
			}
		}
		if typ == "" {
			return ""
		}
		types = append(types, typ)
	}
	return "<" + strings.Join(types, ",") + ">"
}

// literalType is the type of a literal expression, "" for anything else
func literalType(n *sitter.Node, src []byte) string {
	switch n.Type() {
	case "true", "false":
		return "bool"
	case "char_literal":
		return "char"
	case "string_literal", "raw_string_literal", "concatenated_string":
		return "const char*"
	case "nullptr":
		return "std::nullptr_t"
	case "number_literal":
		return numberType(strings.ToLower(strings.ReplaceAll(text(n, src), "'", "")))
	}
	return ""
}

// numberType is the type of a lower-cased number literal
func numberType(lit string) string {
	hex := strings.HasPrefix(lit, "0x")
	if !hex && strings.ContainsAny(lit, ".e") {
		switch {
		case strings.HasSuffix(lit, "f"):
			return "float"
		case strings.HasSuffix(lit, "l"):
			return "long double"
		}
		return "double"
	}
	suffix := lit[len(strings.TrimRight(lit, "ul")):]
	unsigned := strings.Contains(suffix, "u")
	var typ string
	switch strings.Count(suffix, "l") {
	case 0:
		typ = "int"
	case 1:
		typ = "long"
	default:
		typ = "long long"
	}
	if unsigned {
		return "unsigned " + typ
	}
	return typ
}

// compact normalizes the whitespace of a type or template argument list,
// keeping one space only between two words: "< unsigned  long >" becomes
// "<unsigned long>".
func compact(s string) string {
	var b strings.Builder
	for i, f := range strings.Fields(s) {
		if i > 0 && isWordByte(b.String()[b.Len()-1]) && isWordByte(f[0]) {
			b.WriteByte(' ')
		}
		b.WriteString(f)
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
