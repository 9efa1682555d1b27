package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/query"
)

// Relations usable in query.KindAny nodes, keyed by name. Each template is
// correlated with the searched mod version row mv.
var relations = map[string]string{
	"game_versions": `EXISTS (SELECT 1 FROM mod_game_versions gv WHERE gv.mod_version_id = mv.id AND %s)`,
	"dependencies":  `EXISTS (SELECT 1 FROM mod_dependencies d WHERE d.mod_version_id = mv.id AND %s)`,
}

// columns is every physical column a predicate may reference.
var columns = map[string]bool{
	"mv.mod_id":       true,
	"mv.display_name": true,
	"mv.mod_version":  true,
	"mv.loader":       true,
	"j.file_name":     true,
	"j.project_id":    true,
	"j.external_id":   true,
	"j.release_type":  true,
	"j.release_date":  true,
	"p.name":          true,
	"p.source":        true,
	"gv.game_version": true,
	"gv.ordinal":      true,
	"d.dep_mod_id":    true,
	"d.dep_type":      true,
}

// newCatalogCompiler returns the compiler for catalog searches. Field-less
// terms search display names.
func newCatalogCompiler(parser *gameversion.Parser) (*query.Compiler, error) {
	gameVersion := func(t query.TermInfo) (query.Node, error) {
		if t.Kind == query.ValueRange {
			return query.Any("game_versions", query.RangeNode("gv.ordinal", t.Min, t.Max)), nil
		}
		return query.Any("game_versions", query.Term("gv.game_version", t.Pattern)), nil
	}
	ordinal := func(s string) (string, error) {
		v, err := parser.ParseStrict(s)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(versionOrdinal(v), 10), nil
	}
	dependsOn := func(t query.TermInfo) (query.Node, error) {
		return query.Any("dependencies", query.Term("d.dep_mod_id", t.Pattern)), nil
	}

	return query.NewCompiler(query.Config{
		Fields: map[string]query.FieldSpec{
			"modId":       {Column: "mv.mod_id"},
			"displayName": {Column: "mv.display_name"},
			"modVersion":  {Column: "mv.mod_version"},
			"loader":      {Column: "mv.loader"},
			"fileName":    {Column: "j.file_name"},
			"projectId":   {Column: "j.project_id"},
			"externalId":  {Column: "j.external_id"},
			"releaseType": {Column: "j.release_type"},
			"releaseDate": {Column: "j.release_date", Range: true, Normalize: normalizeDate},
			"project":     {Column: "p.name"},
			"source":      {Column: "p.source"},
			"gameVersion": {Range: true, Builder: gameVersion, Normalize: ordinal},
			"dependsOn":   {Builder: dependsOn},
		},
		ImplicitField: "displayName",
		Dialect:       query.SQLLike,
	})
}

// normalizeDate rewrites a date or RFC 3339 timestamp into the stored layout.
func normalizeDate(s string) (string, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().Format(timeLayout), nil
		}
	}
	return "", fmt.Errorf("invalid date %q (use YYYY-MM-DD or RFC 3339)", s)
}

// Fields returns the queryable field names.
func (s *SQLiteStore) Fields() []string {
	return s.compiler.Allowed()
}

// renderSQL turns a predicate tree into a WHERE fragment. Every user value is
// returned as a bound argument; only whitelisted columns and relation
// templates are written into the SQL text.
func renderSQL(n query.Node) (string, []interface{}, error) {
	var args []interface{}
	var render func(n query.Node) (string, error)
	render = func(n query.Node) (string, error) {
		switch n.Kind {
		case query.KindAnd, query.KindOr:
			parts := make([]string, len(n.Children))
			for i, c := range n.Children {
				sql, err := render(c)
				if err != nil {
					return "", err
				}
				parts[i] = sql
			}
			return "(" + strings.Join(parts, " "+n.Kind.String()+" ") + ")", nil
		case query.KindNot:
			sql, err := render(n.Children[0])
			if err != nil {
				return "", err
			}
			return "NOT " + sql, nil
		case query.KindTerm:
			if !columns[n.Field] {
				return "", fmt.Errorf("render: column %q is not searchable", n.Field)
			}
			args = append(args, n.Pattern)
			return "(" + n.Field + ` LIKE ? ESCAPE '\')`, nil
		case query.KindRange:
			if !columns[n.Field] {
				return "", fmt.Errorf("render: column %q is not searchable", n.Field)
			}
			var parts []string
			if n.Min != nil {
				op := ">"
				if n.MinInclusive {
					op = ">="
				}
				parts = append(parts, n.Field+" "+op+" ?")
				args = append(args, *n.Min)
			}
			if n.Max != nil {
				op := "<"
				if n.MaxInclusive {
					op = "<="
				}
				parts = append(parts, n.Field+" "+op+" ?")
				args = append(args, *n.Max)
			}
			if len(parts) == 0 {
				return "(" + n.Field + " IS NOT NULL)", nil
			}
			return "(" + strings.Join(parts, " AND ") + ")", nil
		case query.KindAny:
			tmpl, ok := relations[n.Field]
			if !ok {
				return "", fmt.Errorf("render: unknown relation %q", n.Field)
			}
			sql, err := render(n.Children[0])
			if err != nil {
				return "", err
			}
			return fmt.Sprintf(tmpl, sql), nil
		}
		return "", fmt.Errorf("render: unknown node kind %s", n.Kind)
	}
	sql, err := render(n)
	if err != nil {
		return "", nil, err
	}
	return sql, args, nil
}

// Search compiles p.Query and returns matching mods, newest jar first.
// Unknown fields fail with a *query.CompileError.
func (s *SQLiteStore) Search(ctx context.Context, p SearchParams) ([]SearchResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	pred, err := s.compiler.Compile(p.Query)
	if err != nil {
		return nil, err
	}
	where, args, err := renderSQL(pred)
	if err != nil {
		return nil, err
	}

	q := `SELECT ` + jarColumns + `, ` + modColumns + `
		FROM mod_versions mv
		JOIN mod_jars j ON j.id = mv.jar_id
		JOIN projects p ON p.id = j.project_id
		WHERE ` + where + `
		ORDER BY j.release_date DESC, j.id, mv.seq
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		var releaseType, releaseDate, loader string
		err := rows.Scan(
			&r.Jar.ID, &r.Jar.ExternalID, &r.Jar.ProjectID, &r.Jar.SourceFileID, &r.Jar.DownloadURL, &r.Jar.FileName,
			&releaseType, &releaseDate,
			&r.Mod.ID, &r.Mod.JarID, &r.Mod.ModID, &r.Mod.DisplayName, &r.Mod.ModVersion, &loader,
		)
		if err != nil {
			rows.Close()
			return nil, err
		}
		r.Jar.ReleaseType = model.ReleaseType(releaseType)
		r.Jar.ReleaseDate, _ = time.Parse(timeLayout, releaseDate)
		r.Mod.SupportedModLoader = model.Loader(loader)
		results = append(results, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mods := make([]model.ModVersion, len(results))
	for i := range results {
		mods[i] = results[i].Mod
	}
	if err := s.attachModDetails(ctx, mods); err != nil {
		return nil, err
	}
	for i := range results {
		results[i].Mod = mods[i]
	}
	return results, nil
}
