package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rcliao/mod-catalog/internal/model"
)

// DependencyEdge is one dependency declared by a stored mod version. Range
// is the declared Maven range; Equivalent is its rendering as comparison
// operators, empty when the range did not parse.
type DependencyEdge struct {
	JarID      string               `json:"jar_id"`
	ModID      string               `json:"mod_id"`
	ModVersion string               `json:"mod_version"`
	DependsOn  string               `json:"depends_on"`
	Type       model.DependencyType `json:"type"`
	Range      string               `json:"range,omitempty"`
	Equivalent string               `json:"equivalent,omitempty"`
}

const edgeColumns = `j.id, mv.mod_id, mv.mod_version, d.dep_mod_id, d.dep_type, d.version_range, d.equivalent_range`

// Dependencies returns what the newest stored version of modID declares.
func (s *SQLiteStore) Dependencies(ctx context.Context, modID string) ([]DependencyEdge, error) {
	var mvID string
	err := s.db.QueryRowContext(ctx,
		`SELECT mv.id FROM mod_versions mv JOIN mod_jars j ON j.id = mv.jar_id
		 WHERE mv.mod_id = ? ORDER BY j.release_date DESC, j.id DESC LIMIT 1`, modID).Scan(&mvID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("mod %s: %w", modID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.queryEdges(ctx,
		`SELECT `+edgeColumns+` FROM mod_dependencies d
		 JOIN mod_versions mv ON mv.id = d.mod_version_id
		 JOIN mod_jars j ON j.id = mv.jar_id
		 WHERE d.mod_version_id = ? ORDER BY d.seq`, mvID)
}

// Dependents returns the dependencies on modID declared by the newest stored
// version of every other mod.
func (s *SQLiteStore) Dependents(ctx context.Context, modID string) ([]DependencyEdge, error) {
	return s.queryEdges(ctx, `
		WITH latest AS (
			SELECT mv.id, ROW_NUMBER() OVER (PARTITION BY mv.mod_id ORDER BY j.release_date DESC, j.id DESC) AS rn
			FROM mod_versions mv JOIN mod_jars j ON j.id = mv.jar_id
		)
		SELECT `+edgeColumns+` FROM mod_dependencies d
		JOIN latest ON latest.id = d.mod_version_id AND latest.rn = 1
		JOIN mod_versions mv ON mv.id = d.mod_version_id
		JOIN mod_jars j ON j.id = mv.jar_id
		WHERE d.dep_mod_id = ?
		ORDER BY mv.mod_id`, modID)
}

func (s *SQLiteStore) queryEdges(ctx context.Context, q string, args ...interface{}) ([]DependencyEdge, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []DependencyEdge
	for rows.Next() {
		var e DependencyEdge
		var depType string
		var equivalent sql.NullString
		if err := rows.Scan(&e.JarID, &e.ModID, &e.ModVersion, &e.DependsOn, &depType, &e.Range, &equivalent); err != nil {
			return nil, err
		}
		e.Type = model.DependencyType(depType)
		e.Equivalent = equivalent.String
		edges = append(edges, e)
	}
	return edges, rows.Err()
}
