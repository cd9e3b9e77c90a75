package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/zheng/callmap/internal/graph"
	"github.com/zheng/callmap/internal/storage"
)

// AnonymousLabel is printed for nodes without a display name
const AnonymousLabel = "< >"

// NodeLabel returns the printable name of a node
func NodeLabel(n *graph.Node) string {
	if n.Name() == "" {
		return AnonymousLabel
	}
	return n.Name()
}

// Dump writes the textual dump of g: one line per node listing its callees
// in edge order.
func Dump(w io.Writer, g *graph.Graph) error {
	var sb strings.Builder
	sb.WriteString(" --- Call graph Dump --- \n")
	for _, n := range g.Nodes() {
		sb.WriteString("  Function: ")
		sb.WriteString(NodeLabel(n))
		sb.WriteString(" calls: ")
		for _, c := range g.Callees(n) {
			sb.WriteString(NodeLabel(c))
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// ShortFuncName simplifies a qualified function name.
// e.g., "(*github.com/foo/bar/pkg.Type).Method" -> "(*pkg.Type).Method"
// e.g., "github.com/foo/bar/pkg.FuncName" -> "pkg.FuncName"
func ShortFuncName(fullName string) string {
	prefix := ""
	name := fullName
	if strings.HasPrefix(name, "(*") {
		prefix = "(*"
		name = name[2:]
	} else if strings.HasPrefix(name, "(") {
		prefix = "("
		name = name[1:]
	}

	if idx := strings.LastIndex(name, "/"); idx >= 0 {
		name = name[idx+1:]
	}
	if name == "" {
		return AnonymousLabel
	}

	return prefix + name
}

// CalcTreeMaxWidth calculates the maximum function name width and depth for alignment in the call tree.
func CalcTreeMaxWidth(tree []*storage.CallTreeNode, maxWidth *int, currentDepth int, maxDepth *int) {
	if currentDepth > *maxDepth {
		*maxDepth = currentDepth
	}
	for _, node := range tree {
		w := len(ShortFuncName(node.Func.Name))
		if w > *maxWidth {
			*maxWidth = w
		}
		if len(node.Children) > 0 {
			CalcTreeMaxWidth(node.Children, maxWidth, currentDepth+1, maxDepth)
		}
	}
}

// FormatCallTree renders a call tree as a string with ASCII art box-drawing characters.
func FormatCallTree(tree []*storage.CallTreeNode, indent string, maxWidth int, maxDepth int, currentDepth int) string {
	var sb strings.Builder
	for i, node := range tree {
		isLast := i == len(tree)-1
		prefix := "├──"
		if isLast {
			prefix = "└──"
		}

		funcName := ShortFuncName(node.Func.Name)
		if node.Func.Placeholder {
			funcName += " ?"
		}
		loc := fmt.Sprintf("%s:%d", node.Func.File, node.Func.Line)
		padding := maxWidth + 2 + (maxDepth-currentDepth)*4
		sb.WriteString(fmt.Sprintf("%s%s %-*s  %s\n", indent, prefix, padding, funcName, loc))

		if len(node.Children) > 0 {
			childIndent := indent + "│   "
			if isLast {
				childIndent = indent + "    "
			}
			sb.WriteString(FormatCallTree(node.Children, childIndent, maxWidth, maxDepth, currentDepth+1))
		}
	}
	return sb.String()
}
