package storage

import (
	"context"
	"fmt"

	"github.com/zheng/callmap/internal/graph"
)

// Store saves g into the index, replacing its previous version
func (db *DB) Store(_ context.Context, language string, g *graph.Graph) error {
	return db.SaveGraph(g.Path(), language, g)
}

// Remove drops the graph of the file at path from the index
func (db *DB) Remove(_ context.Context, path string) error {
	return db.DeleteFile(path)
}

// Store loads g into Neo4j, replacing its previous version
func (l *Neo4jLoader) Store(ctx context.Context, _ string, g *graph.Graph) error {
	return l.LoadGraph(ctx, g.Path(), g)
}

// Remove deletes the graph of the file at path from Neo4j
func (l *Neo4jLoader) Remove(ctx context.Context, path string) error {
	if err := l.runCypher(ctx,
		`MATCH (n:CallmapFunc {unit: $unit}) DETACH DELETE n`,
		map[string]any{"unit": path},
	); err != nil {
		return fmt.Errorf("failed to clean %s: %w", path, err)
	}
	return nil
}
