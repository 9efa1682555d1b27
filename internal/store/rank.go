package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/resolver"
)

var _ resolver.Ranker = (*SQLiteStore)(nil)

// orderTerms maps each ranking key onto its ORDER BY term over the
// candidates CTE.
var orderTerms = map[resolver.Key]string{
	resolver.KeyVersionOverlap: "overlap ASC",
	resolver.KeyExactLoader:    "CASE WHEN loader = want THEN 0 ELSE 1 END ASC",
	resolver.KeyReleaseTier:    "release_tier ASC",
	resolver.KeyReleaseDate:    "release_date DESC",
	resolver.KeyJarID:          "jar_id ASC",
}

// rankSQL renders the ranking query for n lookups and m fallback versions.
// Candidates outside the lookup's loader family or supporting none of the
// fallbacks never join; malformed stored versions have NULL major and minor
// and drop out the same way.
func rankSQL(policy resolver.Policy, n, m int) (string, error) {
	order := make([]string, len(policy))
	for i, k := range policy {
		term, ok := orderTerms[k]
		if !ok {
			return "", fmt.Errorf("rank: no SQL for key %s", k)
		}
		order[i] = term
	}
	lookupRows := strings.TrimSuffix(strings.Repeat("(?, ?, ?, ?, ?), ", n), ", ")
	fallbackRows := strings.TrimSuffix(strings.Repeat("(?, ?, ?), ", m), ", ")

	return `
	WITH lookups(idx, project_id, mod_id, want, family) AS (VALUES ` + lookupRows + `),
	fallbacks(pos, major, minor) AS (VALUES ` + fallbackRows + `),
	candidates AS (
		SELECT l.idx AS idx, j.id AS jar_id, mv.loader AS loader, l.want AS want,
		       j.release_tier AS release_tier, j.release_date AS release_date,
		       MIN(f.pos) AS overlap
		FROM lookups l
		JOIN mod_versions mv ON mv.mod_id = l.mod_id AND mv.loader_family = l.family
		JOIN mod_jars j ON j.id = mv.jar_id AND j.project_id = l.project_id
		JOIN mod_game_versions gv ON gv.mod_version_id = mv.id
		JOIN fallbacks f ON f.major = gv.major AND f.minor = gv.minor
		GROUP BY l.idx, mv.id
	),
	ranked AS (
		SELECT idx, jar_id, ROW_NUMBER() OVER (PARTITION BY idx ORDER BY ` + strings.Join(order, ", ") + `) AS rn
		FROM candidates
	)
	SELECT idx, jar_id FROM ranked WHERE rn = 1`, nil
}

// Rank evaluates req with a single window-function query and loads the
// winning jars. It implements resolver.Ranker.
func (s *SQLiteStore) Rank(ctx context.Context, req resolver.RankRequest) ([]*model.ModJar, error) {
	out := make([]*model.ModJar, len(req.Lookups))
	if len(req.Lookups) == 0 || len(req.Fallbacks) == 0 {
		return out, nil
	}
	policy, err := req.Policy.Normalize()
	if err != nil {
		return nil, err
	}
	q, err := rankSQL(policy, len(req.Lookups), len(req.Fallbacks))
	if err != nil {
		return nil, err
	}

	args := make([]interface{}, 0, 5*len(req.Lookups)+3*len(req.Fallbacks))
	for i, l := range req.Lookups {
		args = append(args, i, l.ProjectID, l.ModID, string(l.Loader), l.Loader.Family())
	}
	for i, v := range req.Fallbacks {
		args = append(args, i, v.Major, v.Minor)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rank query: %w", err)
	}
	winners := make(map[int]string, len(req.Lookups))
	var ids []string
	for rows.Next() {
		var idx int
		var jarID string
		if err := rows.Scan(&idx, &jarID); err != nil {
			rows.Close()
			return nil, err
		}
		winners[idx] = jarID
		ids = append(ids, jarID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	jars, err := s.GetJars(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load ranked jars: %w", err)
	}
	for idx, id := range winners {
		if idx >= 0 && idx < len(out) {
			out[idx] = jars[id]
		}
	}
	return out, nil
}
