package store

import (
	"context"
	"os"
)

// Stats holds catalog counts.
type Stats struct {
	DBPath            string        `json:"db_path"`
	DBSizeBytes       int64         `json:"db_size_bytes"`
	Projects          int           `json:"projects"`
	Jars              int           `json:"jars"`
	ModVersions       int           `json:"mod_versions"`
	DistinctMods      int           `json:"distinct_mods"`
	FailedFiles       int           `json:"failed_files"`
	MalformedVersions int           `json:"malformed_versions"`
	Loaders           []LoaderStats `json:"loaders"`
}

// LoaderStats holds per-loader counts.
type LoaderStats struct {
	Loader string `json:"loader"`
	Count  int    `json:"count"`
	Mods   int    `json:"mods"`
}

// Stats returns catalog statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects`).Scan(&st.Projects)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mod_jars`).Scan(&st.Jars)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT mod_id) FROM mod_versions`).Scan(&st.ModVersions, &st.DistinctMods)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_files`).Scan(&st.FailedFiles)
	s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM mod_game_versions WHERE major IS NULL`).Scan(&st.MalformedVersions)

	rows, err := s.db.QueryContext(ctx, `
		SELECT loader, COUNT(*) AS cnt, COUNT(DISTINCT mod_id) AS mods
		FROM mod_versions
		GROUP BY loader ORDER BY cnt DESC, loader`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ls LoaderStats
		rows.Scan(&ls.Loader, &ls.Count, &ls.Mods)
		st.Loaders = append(st.Loaders, ls)
	}

	return st, nil
}
