package export

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/zheng/callmap/internal/graph"
)

const anonymousLabel = "< >"

// WriteDOT serializes g as a Graphviz digraph. Node statements come first in
// node order, then each node's edges in insertion order.
func WriteDOT(w io.Writer, g *graph.Graph) error {
	_, err := w.Write(ToDOT(g))
	return err
}

// ToDOT returns the DOT source of g
func ToDOT(g *graph.Graph) []byte {
	var buf bytes.Buffer
	name := quote(filepath.Base(g.Path()))

	fmt.Fprintf(&buf, "digraph %s {\n", name)
	fmt.Fprintf(&buf, "\tlabel=%s;\n\n", name)

	for _, n := range g.Nodes() {
		attrs := []string{"shape=record", "label=\"{" + recordLabel(n.Name()) + "}\""}
		if n.IsPlaceholder() {
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&buf, "\tNode%d [%s];\n", n.ID(), strings.Join(attrs, ","))
	}
	for _, n := range g.Nodes() {
		for _, c := range n.Callees() {
			fmt.Fprintf(&buf, "\tNode%d -> Node%d;\n", n.ID(), c)
		}
	}
	buf.WriteString("}\n")
	return buf.Bytes()
}

// recordLabel escapes name for use inside a record label
func recordLabel(name string) string {
	if name == "" {
		name = anonymousLabel
	}
	var sb strings.Builder
	for _, r := range name {
		switch r {
		case '{', '}', '<', '>', '|', '"', '\\':
			sb.WriteByte('\\')
		case ' ':
			sb.WriteString("\\ ")
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func quote(s string) string {
	return "\"" + strings.NewReplacer("\\", "\\\\", "\"", "\\\"").Replace(s) + "\""
}
