package resolver

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/model"
)

const (
	DefaultMaxLookupsPerQuery   = 200
	DefaultMaxConcurrentQueries = 4
)

// Options configures a Resolver. Zero values select defaults.
type Options struct {
	Policy Policy
	// MaxLookupsPerQuery caps the lookups bound into one ranking query.
	MaxLookupsPerQuery int
	// MaxConcurrentQueries caps ranking queries in flight for one batch.
	MaxConcurrentQueries int
	Parser               *gameversion.Parser
	Logger               *log.Logger
}

// Resolver answers best-jar lookups through a Ranker.
type Resolver struct {
	ranker Ranker
	policy Policy
	opts   Options
}

// New returns a resolver over r.
func New(r Ranker, opts Options) (*Resolver, error) {
	policy, err := opts.Policy.Normalize()
	if err != nil {
		return nil, fmt.Errorf("ranking policy: %w", err)
	}
	if opts.MaxLookupsPerQuery <= 0 {
		opts.MaxLookupsPerQuery = DefaultMaxLookupsPerQuery
	}
	if opts.MaxConcurrentQueries <= 0 {
		opts.MaxConcurrentQueries = DefaultMaxConcurrentQueries
	}
	if opts.Parser == nil {
		opts.Parser = gameversion.Default()
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	return &Resolver{ranker: r, policy: policy, opts: opts}, nil
}

// Policy returns the normalized ranking policy.
func (r *Resolver) Policy() Policy { return append(Policy(nil), r.policy...) }

// ResolveBestJar returns the best jar for l, or nil when nothing is eligible.
func (r *Resolver) ResolveBestJar(ctx context.Context, l Lookup) (*model.ModJar, error) {
	jars, err := r.ResolveBestJars(ctx, []Lookup{l})
	if err != nil {
		return nil, err
	}
	return jars[0], nil
}

// group collects the distinct lookups sharing one fallback set.
type group struct {
	fallbacks []gameversion.GameVersion
	lookups   []Lookup
	// targets[i] lists the input positions answered by lookups[i].
	targets [][]int
}

// ResolveBestJars resolves many lookups. The result is aligned with lookups.
// Lookups are grouped by fallback set and identical lookups are resolved once,
// so each distinct fallback set costs one ranking query per
// MaxLookupsPerQuery lookups.
func (r *Resolver) ResolveBestJars(ctx context.Context, lookups []Lookup) ([]*model.ModJar, error) {
	groups, err := r.plan(lookups)
	if err != nil {
		return nil, err
	}

	out := make([]*model.ModJar, len(lookups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.MaxConcurrentQueries)
	for _, grp := range groups {
		for start := 0; start < len(grp.lookups); start += r.opts.MaxLookupsPerQuery {
			end := min(start+r.opts.MaxLookupsPerQuery, len(grp.lookups))
			g.Go(func() error {
				req := RankRequest{Fallbacks: grp.fallbacks, Policy: r.policy, Lookups: grp.lookups[start:end]}
				r.opts.Logger.Debug("ranking", "fallbacks", len(req.Fallbacks), "lookups", len(req.Lookups))
				jars, err := r.ranker.Rank(ctx, req)
				if err != nil {
					return fmt.Errorf("rank %s: %w", grp.fallbacks[0], err)
				}
				if len(jars) != len(req.Lookups) {
					return fmt.Errorf("rank %s: ranker returned %d results for %d lookups", grp.fallbacks[0], len(jars), len(req.Lookups))
				}
				for i, jar := range jars {
					if err := checkUnique(jar, req.Lookups[i].ModID); err != nil {
						return err
					}
					for _, t := range grp.targets[start+i] {
						out[t] = jar
					}
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// normalize checks the loader and game version of l and rewrites the game
// version in canonical form so "1.16" and "1.16.0" share a key.
func (r *Resolver) normalize(l Lookup) (Lookup, gameversion.GameVersion, error) {
	v, err := r.opts.Parser.ParseStrict(l.GameVersion)
	if err != nil {
		return l, v, err
	}
	if l.Loader.Family() == "" {
		return l, v, fmt.Errorf("unknown loader %q", l.Loader)
	}
	l.GameVersion = v.String()
	return l, v, nil
}

// plan validates lookups and groups them by fallback set, in first-seen order.
func (r *Resolver) plan(lookups []Lookup) ([]*group, error) {
	var groups []*group
	byVersion := map[gameversion.GameVersion]int{}
	// byKey locates an already planned lookup: group index, lookup index.
	byKey := map[string][2]int{}

	for i, l := range lookups {
		l, v, err := r.normalize(l)
		if err != nil {
			return nil, fmt.Errorf("lookup %d: %w", i, err)
		}

		if at, ok := byKey[l.key()]; ok {
			g := groups[at[0]]
			g.targets[at[1]] = append(g.targets[at[1]], i)
			continue
		}
		gi, ok := byVersion[v]
		if !ok {
			gi = len(groups)
			byVersion[v] = gi
			groups = append(groups, &group{fallbacks: gameversion.FallbackSet(v)})
		}
		g := groups[gi]
		byKey[l.key()] = [2]int{gi, len(g.lookups)}
		g.lookups = append(g.lookups, l)
		g.targets = append(g.targets, []int{i})
	}
	return groups, nil
}

func checkUnique(jar *model.ModJar, modID string) error {
	if jar == nil {
		return nil
	}
	n := 0
	for _, m := range jar.Mods {
		if m.ModID == modID {
			n++
		}
	}
	if n > 1 {
		return &model.AmbiguousModError{JarID: jar.ID, ModID: modID}
	}
	return nil
}
