package graph

// Edge is a caller → callee relationship
type Edge struct {
	From NodeID `json:"from"`
	To   NodeID `json:"to"`
}

// Edges returns every edge grouped by caller in node insertion order, each
// caller's callees in insertion order.
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.EdgeCount())
	for _, n := range g.nodes {
		for _, to := range n.callees {
			edges = append(edges, Edge{From: n.id, To: to})
		}
	}
	return edges
}
