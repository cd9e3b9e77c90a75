package storage

import (
	"database/sql"
	"fmt"

	"github.com/zheng/callmap/internal/graph"
)

// Func is a stored call graph node
type Func struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	File        string `json:"file"`
	Line        int    `json:"line"`
	Placeholder bool   `json:"placeholder"`
}

// CallTreeNode represents a node in the call tree with its children
type CallTreeNode struct {
	Func     *Func
	Children []*CallTreeNode
}

// Stats counts the stored rows
type Stats struct {
	Files int64 `json:"files"`
	Nodes int64 `json:"nodes"`
	Edges int64 `json:"edges"`
}

// SaveGraph replaces the stored graph of the translation unit at path
func (db *DB) SaveGraph(path, language string, g *graph.Graph) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM files WHERE path = ?`, path); err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}

	res, err := tx.Exec(`INSERT INTO files (path, language) VALUES (?, ?)`, path, language)
	if err != nil {
		return fmt.Errorf("failed to insert file %s: %w", path, err)
	}
	fileID, err := res.LastInsertId()
	if err != nil {
		return err
	}

	nodeStmt, err := tx.Prepare(
		`INSERT INTO nodes (file_id, local_id, kind, name, file, line, placeholder)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer nodeStmt.Close()

	rowIDs := make([]int64, g.Len())
	for _, n := range g.Nodes() {
		span := n.Decl().Span()
		res, err := nodeStmt.Exec(fileID, int(n.ID()), n.Decl().Kind().String(), n.Name(), span.File, span.Line, n.IsPlaceholder())
		if err != nil {
			return fmt.Errorf("failed to insert node %s: %w", n.Name(), err)
		}
		if rowIDs[n.ID()], err = res.LastInsertId(); err != nil {
			return err
		}
	}

	edgeStmt, err := tx.Prepare(`INSERT INTO edges (from_id, to_id) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer edgeStmt.Close()

	for _, e := range g.Edges() {
		if _, err := edgeStmt.Exec(rowIDs[e.From], rowIDs[e.To]); err != nil {
			return fmt.Errorf("failed to insert edge: %w", err)
		}
	}

	return tx.Commit()
}

// DeleteFile removes the stored graph of path
func (db *DB) DeleteFile(path string) error {
	_, err := db.conn.Exec(`DELETE FROM files WHERE path = ?`, path)
	return err
}

// ListFiles returns the paths of every mapped translation unit
func (db *DB) ListFiles() ([]string, error) {
	rows, err := db.conn.Query(`SELECT path FROM files ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// FindFuncsByPattern returns functions matching a name pattern (using LIKE),
// one row per name. Exact matches sort first.
func (db *DB) FindFuncsByPattern(pattern string) ([]*Func, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, kind, file, line, placeholder, MIN(id) FROM nodes
		 WHERE name LIKE ?
		 GROUP BY name
		 ORDER BY
			CASE
				WHEN name = ? THEN 0
				WHEN name LIKE '%' || ? THEN 1
				ELSE 2
			END,
			length(name) ASC`,
		"%"+pattern+"%", pattern, pattern,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFuncs(rows)
}

// GetDirectCallers returns the functions that call name in any mapped file
func (db *DB) GetDirectCallers(name string) ([]*Func, error) {
	rows, err := db.conn.Query(
		`SELECT c.id, c.name, c.kind, c.file, c.line, c.placeholder, MIN(c.id)
		 FROM edges e
		 JOIN nodes t ON e.to_id = t.id
		 JOIN nodes c ON e.from_id = c.id
		 WHERE t.name = ?
		 GROUP BY c.name
		 ORDER BY c.name`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFuncs(rows)
}

// GetDirectCallees returns the functions name calls in any mapped file
func (db *DB) GetDirectCallees(name string) ([]*Func, error) {
	rows, err := db.conn.Query(
		`SELECT t.id, t.name, t.kind, t.file, t.line, t.placeholder, MIN(t.id)
		 FROM edges e
		 JOIN nodes c ON e.from_id = c.id
		 JOIN nodes t ON e.to_id = t.id
		 WHERE c.name = ?
		 GROUP BY t.name
		 ORDER BY t.name`,
		name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanFuncs(rows)
}

// GetUpstreamCallTree builds a tree of upstream callers up to maxDepth levels
func (db *DB) GetUpstreamCallTree(name string, maxDepth int) ([]*CallTreeNode, error) {
	return db.callTree(name, maxDepth, db.GetDirectCallers, map[string]bool{name: true})
}

// GetDownstreamCallTree builds a tree of downstream callees up to maxDepth levels
func (db *DB) GetDownstreamCallTree(name string, maxDepth int) ([]*CallTreeNode, error) {
	return db.callTree(name, maxDepth, db.GetDirectCallees, map[string]bool{name: true})
}

// callTree expands next level by level; a function already on the current
// path is listed but not expanded again.
func (db *DB) callTree(name string, maxDepth int, next func(string) ([]*Func, error), onPath map[string]bool) ([]*CallTreeNode, error) {
	funcs, err := next(name)
	if err != nil {
		return nil, err
	}

	result := make([]*CallTreeNode, len(funcs))
	for i, f := range funcs {
		result[i] = &CallTreeNode{Func: f}
		if maxDepth <= 1 || onPath[f.Name] || f.Placeholder {
			continue
		}
		onPath[f.Name] = true
		children, err := db.callTree(f.Name, maxDepth-1, next, onPath)
		delete(onPath, f.Name)
		if err != nil {
			return nil, err
		}
		result[i].Children = children
	}
	return result, nil
}

// GetStats returns database statistics
func (db *DB) GetStats() (*Stats, error) {
	var s Stats
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM files`).Scan(&s.Files); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&s.Nodes); err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&s.Edges); err != nil {
		return nil, err
	}
	return &s, nil
}

func scanFuncs(rows *sql.Rows) ([]*Func, error) {
	var funcs []*Func
	for rows.Next() {
		var f Func
		var minID int64
		if err := rows.Scan(&f.ID, &f.Name, &f.Kind, &f.File, &f.Line, &f.Placeholder, &minID); err != nil {
			return nil, err
		}
		funcs = append(funcs, &f)
	}
	return funcs, rows.Err()
}
