package store

import (
	"context"

	"github.com/rcliao/mod-catalog/internal/model"
)

// ExportAll returns every project with its jars and failed files, in the
// shape Import accepts.
func (s *SQLiteStore) ExportAll(ctx context.Context) ([]model.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, source_id, name FROM projects ORDER BY source, source_id`)
	if err != nil {
		return nil, err
	}
	var projects []model.Project
	for rows.Next() {
		var p model.Project
		if err := rows.Scan(&p.ID, &p.Source, &p.SourceID, &p.Name); err != nil {
			rows.Close()
			return nil, err
		}
		projects = append(projects, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range projects {
		p := &projects[i]
		p.Jars, err = s.queryJars(ctx,
			`SELECT `+jarColumns+` FROM mod_jars j WHERE j.project_id = ? ORDER BY j.release_date, j.id`, p.ID)
		if err != nil {
			return nil, err
		}
		if p.FailedFiles, err = s.failedFiles(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return projects, nil
}
