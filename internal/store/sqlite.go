package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/mavenrange"
	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/query"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05Z"

// maxInArgs caps the ids bound into one IN (...) list.
const maxInArgs = 500

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db       *sql.DB
	idMu     sync.Mutex
	entropy  io.Reader
	logger   *log.Logger
	parser   *gameversion.Parser
	compiler *query.Compiler
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used for ingestion warnings.
func WithLogger(l *log.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithParser sets the game version parser.
func WithParser(p *gameversion.Parser) Option {
	return func(s *SQLiteStore) {
		if p != nil {
			s.parser = p
		}
	}
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		logger:  log.New(io.Discard),
		parser:  gameversion.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.compiler, err = newCatalogCompiler(s.parser)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog compiler: %w", err)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// newID returns a ULID. Monotonic entropy keeps ids created within one
// millisecond in creation order.
func (s *SQLiteStore) newID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id         TEXT PRIMARY KEY,
		source     TEXT NOT NULL,
		source_id  TEXT NOT NULL,
		name       TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE (source, source_id)
	);

	CREATE TABLE IF NOT EXISTS failed_files (
		project_id     TEXT NOT NULL REFERENCES projects(id),
		source_file_id TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		failed_at      TEXT NOT NULL,
		PRIMARY KEY (project_id, source_file_id)
	);

	CREATE TABLE IF NOT EXISTS mod_jars (
		id             TEXT PRIMARY KEY,
		external_id    TEXT NOT NULL DEFAULT '',
		project_id     TEXT NOT NULL REFERENCES projects(id),
		source_file_id TEXT NOT NULL UNIQUE,
		download_url   TEXT NOT NULL DEFAULT '',
		file_name      TEXT NOT NULL DEFAULT '',
		release_type   TEXT NOT NULL,
		release_tier   INTEGER NOT NULL,
		release_date   TEXT NOT NULL,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_jars_project ON mod_jars(project_id, release_date DESC);
	CREATE INDEX IF NOT EXISTS idx_jars_external ON mod_jars(external_id);

	CREATE TABLE IF NOT EXISTS mod_versions (
		id            TEXT PRIMARY KEY,
		jar_id        TEXT NOT NULL REFERENCES mod_jars(id),
		seq           INTEGER NOT NULL,
		mod_id        TEXT NOT NULL,
		display_name  TEXT NOT NULL DEFAULT '',
		mod_version   TEXT NOT NULL DEFAULT '',
		loader        TEXT NOT NULL,
		loader_family TEXT NOT NULL,
		UNIQUE (jar_id, mod_id)
	);
	CREATE INDEX IF NOT EXISTS idx_mod_versions_mod ON mod_versions(mod_id, loader_family);

	CREATE TABLE IF NOT EXISTS mod_game_versions (
		mod_version_id TEXT NOT NULL REFERENCES mod_versions(id),
		seq            INTEGER NOT NULL,
		game_version   TEXT NOT NULL,
		major          INTEGER,
		minor          INTEGER,
		ordinal        INTEGER,
		PRIMARY KEY (mod_version_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_game_versions_mm ON mod_game_versions(major, minor);

	CREATE TABLE IF NOT EXISTS mod_dependencies (
		mod_version_id   TEXT NOT NULL REFERENCES mod_versions(id),
		seq              INTEGER NOT NULL,
		dep_mod_id       TEXT NOT NULL,
		version_range    TEXT NOT NULL DEFAULT '',
		equivalent_range TEXT,
		dep_type         TEXT NOT NULL,
		PRIMARY KEY (mod_version_id, seq)
	);
	CREATE INDEX IF NOT EXISTS idx_dependencies_dep ON mod_dependencies(dep_mod_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Import appends projects from the ingestion pipeline. Each project is
// written in its own transaction; an invalid jar aborts the import with the
// projects before it committed.
func (s *SQLiteStore) Import(ctx context.Context, projects []model.Project) (*ImportResult, error) {
	res := &ImportResult{}
	for i := range projects {
		if err := s.importProject(ctx, &projects[i], res); err != nil {
			return res, fmt.Errorf("project %s:%s: %w", projects[i].Source, projects[i].SourceID, err)
		}
		res.Projects++
	}
	return res, nil
}

func (s *SQLiteStore) importProject(ctx context.Context, p *model.Project, res *ImportResult) error {
	if p.Source == "" || p.SourceID == "" {
		return fmt.Errorf("source and source id are required")
	}
	for i := range p.Jars {
		if err := p.Jars[i].Validate(); err != nil {
			return err
		}
	}

	now := time.Now().UTC().Format(timeLayout)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var projectID string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM projects WHERE source = ? AND source_id = ?`, p.Source, p.SourceID).Scan(&projectID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		projectID = s.newID()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, source, source_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
			projectID, p.Source, p.SourceID, p.Name, now); err != nil {
			return fmt.Errorf("insert project: %w", err)
		}
	case err != nil:
		return err
	case p.Name != "":
		if _, err := tx.ExecContext(ctx, `UPDATE projects SET name = ? WHERE id = ?`, p.Name, projectID); err != nil {
			return fmt.Errorf("rename project: %w", err)
		}
	}
	p.ID = projectID

	var counts ImportResult
	for _, f := range p.FailedFiles {
		failedAt := f.FailedAt
		if failedAt.IsZero() {
			failedAt = time.Now()
		}
		// Files already stored as jars are not failing.
		r, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO failed_files (project_id, source_file_id, reason, failed_at)
			 SELECT ?, ?, ?, ? WHERE NOT EXISTS (SELECT 1 FROM mod_jars WHERE source_file_id = ?)`,
			projectID, f.SourceFileID, f.Reason, failedAt.UTC().Format(timeLayout), f.SourceFileID)
		if err != nil {
			return fmt.Errorf("record failed file: %w", err)
		}
		if n, _ := r.RowsAffected(); n > 0 {
			counts.FailedFiles++
		}
	}

	for i := range p.Jars {
		inserted, err := s.insertJar(ctx, tx, projectID, &p.Jars[i], now)
		if err != nil {
			return err
		}
		if inserted {
			counts.Jars++
		} else {
			counts.Skipped++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	res.Jars += counts.Jars
	res.Skipped += counts.Skipped
	res.FailedFiles += counts.FailedFiles
	return nil
}

// insertJar writes one jar with its mods. It reports false when the source
// file id is already stored; jars are never rewritten.
func (s *SQLiteStore) insertJar(ctx context.Context, tx *sql.Tx, projectID string, j *model.ModJar, now string) (bool, error) {
	var existing string
	err := tx.QueryRowContext(ctx, `SELECT id FROM mod_jars WHERE source_file_id = ?`, j.SourceFileID).Scan(&existing)
	if err == nil {
		j.ID = existing
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	j.ID = s.newID()
	j.ProjectID = projectID
	_, err = tx.ExecContext(ctx,
		`INSERT INTO mod_jars (id, external_id, project_id, source_file_id, download_url, file_name,
		                       release_type, release_tier, release_date, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, j.ExternalID, projectID, j.SourceFileID, j.DownloadURL, j.FileName,
		string(j.ReleaseType), j.ReleaseType.Tier(), j.ReleaseDate.UTC().Format(timeLayout), now)
	if err != nil {
		return false, fmt.Errorf("insert jar %s: %w", j.SourceFileID, err)
	}
	// A file that imports cleanly is no longer failing.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM failed_files WHERE project_id = ? AND source_file_id = ?`, projectID, j.SourceFileID); err != nil {
		return false, err
	}

	for seq := range j.Mods {
		m := &j.Mods[seq]
		m.ID = s.newID()
		m.JarID = j.ID
		_, err := tx.ExecContext(ctx,
			`INSERT INTO mod_versions (id, jar_id, seq, mod_id, display_name, mod_version, loader, loader_family)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, j.ID, seq, m.ModID, m.DisplayName, m.ModVersion,
			string(m.SupportedModLoader), m.SupportedModLoader.Family())
		if err != nil {
			return false, fmt.Errorf("insert mod %s: %w", m.ModID, err)
		}

		for vseq, raw := range m.SupportedMinecraftVersions {
			var major, minor, ordinal sql.NullInt64
			if v, ok := s.parser.Parse(raw); ok {
				major = sql.NullInt64{Int64: int64(v.Major), Valid: true}
				minor = sql.NullInt64{Int64: int64(v.Minor), Valid: true}
				ordinal = sql.NullInt64{Int64: versionOrdinal(v), Valid: true}
			} else {
				s.logger.Warn("malformed game version excluded from ranking", "jar", j.SourceFileID, "mod", m.ModID, "version", raw)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mod_game_versions (mod_version_id, seq, game_version, major, minor, ordinal)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				m.ID, vseq, raw, major, minor, ordinal); err != nil {
				return false, fmt.Errorf("insert game version: %w", err)
			}
		}

		for dseq, d := range m.Dependencies {
			var equivalent *string
			if d.VersionRange != "" {
				eq, err := mavenrange.ToEquivalent(d.VersionRange)
				if err != nil {
					s.logger.Warn("unparseable dependency range", "mod", m.ModID, "dependency", d.ModID, "err", err)
				} else {
					equivalent = &eq
				}
			}
			depType := d.Type
			if depType == "" {
				depType = model.DependencyRequired
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO mod_dependencies (mod_version_id, seq, dep_mod_id, version_range, equivalent_range, dep_type)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				m.ID, dseq, d.ModID, d.VersionRange, equivalent, string(depType)); err != nil {
				return false, fmt.Errorf("insert dependency: %w", err)
			}
		}
	}
	return true, nil
}

// versionOrdinal maps a game version onto an integer with the same order.
func versionOrdinal(v gameversion.GameVersion) int64 {
	return int64(v.Major)*1_000_000 + int64(v.Minor)
}

const jarColumns = `j.id, j.external_id, j.project_id, j.source_file_id, j.download_url, j.file_name,
	j.release_type, j.release_date`

// GetJar finds a jar by id, external id or source file id.
func (s *SQLiteStore) GetJar(ctx context.Context, ref string) (*model.ModJar, error) {
	jars, err := s.queryJars(ctx,
		`SELECT `+jarColumns+` FROM mod_jars j
		 WHERE j.id = ? OR j.external_id = ? OR j.source_file_id = ?
		 ORDER BY j.id LIMIT 1`, ref, ref, ref)
	if err != nil {
		return nil, err
	}
	if len(jars) == 0 {
		return nil, fmt.Errorf("jar %s: %w", ref, ErrNotFound)
	}
	return &jars[0], nil
}

// GetJars loads jars by id. Missing ids are absent from the map.
func (s *SQLiteStore) GetJars(ctx context.Context, ids []string) (map[string]*model.ModJar, error) {
	out := make(map[string]*model.ModJar, len(ids))
	err := forEachChunk(ids, func(chunk []string) error {
		jars, err := s.queryJars(ctx,
			`SELECT `+jarColumns+` FROM mod_jars j WHERE j.id IN (`+placeholders(len(chunk))+`)`,
			toArgs(chunk)...)
		if err != nil {
			return err
		}
		for i := range jars {
			out[jars[i].ID] = &jars[i]
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveProject maps a project reference, either an id or source:source_id,
// to the project id.
func (s *SQLiteStore) ResolveProject(ctx context.Context, ref string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM projects WHERE id = ?`, ref).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if source, sourceID, ok := strings.Cut(ref, ":"); ok {
		err = s.db.QueryRowContext(ctx,
			`SELECT id FROM projects WHERE source = ? AND source_id = ?`, source, sourceID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}
	return "", fmt.Errorf("project %s: %w", ref, ErrNotFound)
}

func (s *SQLiteStore) ListProjects(ctx context.Context, p ListParams) ([]model.Project, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, source_id, name FROM projects ORDER BY source, source_id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []model.Project
	for rows.Next() {
		var pr model.Project
		if err := rows.Scan(&pr.ID, &pr.Source, &pr.SourceID, &pr.Name); err != nil {
			return nil, err
		}
		projects = append(projects, pr)
	}
	return projects, rows.Err()
}

func (s *SQLiteStore) ListJars(ctx context.Context, p ListParams) ([]model.ModJar, error) {
	projectID, err := s.ResolveProject(ctx, p.Project)
	if err != nil {
		return nil, err
	}
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	return s.queryJars(ctx,
		`SELECT `+jarColumns+` FROM mod_jars j WHERE j.project_id = ?
		 ORDER BY j.release_date DESC, j.id LIMIT ?`, projectID, limit)
}

// Candidates lists every jar of projectID bundling modID, regardless of
// loader or game version. It lets a resolver.MemoryRanker run over the store.
func (s *SQLiteStore) Candidates(ctx context.Context, projectID, modID string) ([]model.ModJar, error) {
	return s.queryJars(ctx,
		`SELECT `+jarColumns+` FROM mod_jars j
		 WHERE j.project_id = ? AND EXISTS (SELECT 1 FROM mod_versions mv WHERE mv.jar_id = j.id AND mv.mod_id = ?)
		 ORDER BY j.id`, projectID, modID)
}

func (s *SQLiteStore) failedFiles(ctx context.Context, projectID string) ([]model.FailedFile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_file_id, reason, failed_at FROM failed_files WHERE project_id = ? ORDER BY source_file_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.FailedFile
	for rows.Next() {
		var f model.FailedFile
		var failedAt string
		if err := rows.Scan(&f.SourceFileID, &f.Reason, &failedAt); err != nil {
			return nil, err
		}
		f.FailedAt, _ = time.Parse(timeLayout, failedAt)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJar(row scanner) (model.ModJar, error) {
	var j model.ModJar
	var releaseType, releaseDate string
	err := row.Scan(&j.ID, &j.ExternalID, &j.ProjectID, &j.SourceFileID, &j.DownloadURL, &j.FileName,
		&releaseType, &releaseDate)
	if err != nil {
		return j, err
	}
	j.ReleaseType = model.ReleaseType(releaseType)
	j.ReleaseDate, _ = time.Parse(timeLayout, releaseDate)
	return j, nil
}

// queryJars runs a jar query selecting jarColumns and attaches the mods.
func (s *SQLiteStore) queryJars(ctx context.Context, q string, args ...interface{}) ([]model.ModJar, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	var jars []model.ModJar
	for rows.Next() {
		j, err := scanJar(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		jars = append(jars, j)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.attachMods(ctx, jars); err != nil {
		return nil, err
	}
	return jars, nil
}

const modColumns = `mv.id, mv.jar_id, mv.mod_id, mv.display_name, mv.mod_version, mv.loader`

func scanMod(row scanner) (model.ModVersion, error) {
	var m model.ModVersion
	var loader string
	err := row.Scan(&m.ID, &m.JarID, &m.ModID, &m.DisplayName, &m.ModVersion, &loader)
	m.SupportedModLoader = model.Loader(loader)
	return m, err
}

func (s *SQLiteStore) attachMods(ctx context.Context, jars []model.ModJar) error {
	if len(jars) == 0 {
		return nil
	}
	pos := make(map[string]int, len(jars))
	ids := make([]string, len(jars))
	for i, j := range jars {
		pos[j.ID] = i
		ids[i] = j.ID
	}

	var mods []model.ModVersion
	err := forEachChunk(ids, func(chunk []string) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+modColumns+` FROM mod_versions mv
			 WHERE mv.jar_id IN (`+placeholders(len(chunk))+`) ORDER BY mv.jar_id, mv.seq`, toArgs(chunk)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMod(rows)
			if err != nil {
				return err
			}
			mods = append(mods, m)
		}
		return rows.Err()
	})
	if err != nil {
		return err
	}
	if err := s.attachModDetails(ctx, mods); err != nil {
		return err
	}
	for _, m := range mods {
		j := &jars[pos[m.JarID]]
		j.Mods = append(j.Mods, m)
	}
	return nil
}

// attachModDetails fills supported game versions and dependencies.
func (s *SQLiteStore) attachModDetails(ctx context.Context, mods []model.ModVersion) error {
	if len(mods) == 0 {
		return nil
	}
	pos := make(map[string]int, len(mods))
	ids := make([]string, len(mods))
	for i, m := range mods {
		pos[m.ID] = i
		ids[i] = m.ID
	}

	return forEachChunk(ids, func(chunk []string) error {
		in := placeholders(len(chunk))
		rows, err := s.db.QueryContext(ctx,
			`SELECT mod_version_id, game_version FROM mod_game_versions
			 WHERE mod_version_id IN (`+in+`) ORDER BY mod_version_id, seq`, toArgs(chunk)...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id, v string
			if err := rows.Scan(&id, &v); err != nil {
				rows.Close()
				return err
			}
			m := &mods[pos[id]]
			m.SupportedMinecraftVersions = append(m.SupportedMinecraftVersions, v)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		rows, err = s.db.QueryContext(ctx,
			`SELECT mod_version_id, dep_mod_id, version_range, dep_type FROM mod_dependencies
			 WHERE mod_version_id IN (`+in+`) ORDER BY mod_version_id, seq`, toArgs(chunk)...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id, depType string
			var d model.Dependency
			if err := rows.Scan(&id, &d.ModID, &d.VersionRange, &depType); err != nil {
				return err
			}
			d.Type = model.DependencyType(depType)
			m := &mods[pos[id]]
			m.Dependencies = append(m.Dependencies, d)
		}
		return rows.Err()
	})
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func toArgs(ss []string) []interface{} {
	args := make([]interface{}, len(ss))
	for i, s := range ss {
		args[i] = s
	}
	return args
}

func forEachChunk(ids []string, fn func([]string) error) error {
	for start := 0; start < len(ids); start += maxInArgs {
		if err := fn(ids[start:min(start+maxInArgs, len(ids))]); err != nil {
			return err
		}
	}
	return nil
}
