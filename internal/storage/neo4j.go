package storage

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/zheng/callmap/internal/graph"
)

// Neo4jLoader loads call graphs into a Neo4j database using batch UNWIND
// queries. Nodes are keyed by translation unit and arena index.
type Neo4jLoader struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jLoader connects to Neo4j and returns a ready-to-use loader
func NewNeo4jLoader(ctx context.Context, uri, user, password string) (*Neo4jLoader, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", uri, err)
	}
	return &Neo4jLoader{driver: driver}, nil
}

// Close releases the underlying Neo4j driver resources
func (l *Neo4jLoader) Close(ctx context.Context) error {
	return l.driver.Close(ctx)
}

func (l *Neo4jLoader) runCypher(ctx context.Context, cypher string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, l.driver, cypher, params, neo4j.EagerResultTransformer)
	return err
}

// CreateIndexes ensures the required indexes exist
func (l *Neo4jLoader) CreateIndexes(ctx context.Context) error {
	return l.runCypher(ctx, "CREATE INDEX callmap_func_key IF NOT EXISTS FOR (n:CallmapFunc) ON (n.key)", nil)
}

// LoadGraph replaces the graph of the translation unit at path
func (l *Neo4jLoader) LoadGraph(ctx context.Context, path string, g *graph.Graph) error {
	if err := l.runCypher(ctx,
		`MATCH (n:CallmapFunc {unit: $unit}) DETACH DELETE n`,
		map[string]any{"unit": path},
	); err != nil {
		return fmt.Errorf("failed to clean %s: %w", path, err)
	}

	nodes, edges := neo4jBatches(path, g)
	if err := l.runCypher(ctx,
		`UNWIND $batch AS row
		 MERGE (n:CallmapFunc {key: row.key})
		 SET n.unit = row.unit, n.name = row.name, n.kind = row.kind,
		     n.file = row.file, n.line = row.line, n.placeholder = row.placeholder`,
		map[string]any{"batch": nodes},
	); err != nil {
		return fmt.Errorf("failed to load nodes of %s: %w", path, err)
	}

	if len(edges) == 0 {
		return nil
	}
	if err := l.runCypher(ctx,
		`UNWIND $batch AS row
		 MATCH (a:CallmapFunc {key: row.from}), (b:CallmapFunc {key: row.to})
		 MERGE (a)-[:CALLS]->(b)`,
		map[string]any{"batch": edges},
	); err != nil {
		return fmt.Errorf("failed to load calls of %s: %w", path, err)
	}
	return nil
}

func neo4jKey(path string, id graph.NodeID) string {
	return fmt.Sprintf("%s#%d", path, id)
}

// neo4jBatches converts g into UNWIND parameter rows
func neo4jBatches(path string, g *graph.Graph) (nodes, edges []map[string]any) {
	nodes = make([]map[string]any, 0, g.Len())
	for _, n := range g.Nodes() {
		span := n.Decl().Span()
		nodes = append(nodes, map[string]any{
			"key":         neo4jKey(path, n.ID()),
			"unit":        path,
			"name":        n.Name(),
			"kind":        n.Decl().Kind().String(),
			"file":        span.File,
			"line":        span.Line,
			"placeholder": n.IsPlaceholder(),
		})
	}
	edges = make([]map[string]any, 0, g.EdgeCount())
	for _, e := range g.Edges() {
		edges = append(edges, map[string]any{
			"from": neo4jKey(path, e.From),
			"to":   neo4jKey(path, e.To),
		})
	}
	return nodes, edges
}
