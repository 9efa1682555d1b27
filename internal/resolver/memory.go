package resolver

import (
	"context"
	"io"
	"sort"

	"github.com/charmbracelet/log"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/model"
)

// CandidateSource lists every jar of a project that bundles modID.
type CandidateSource interface {
	Candidates(ctx context.Context, projectID, modID string) ([]model.ModJar, error)
}

// StaticSource serves candidates from a fixed slice of jars.
type StaticSource []model.ModJar

func (s StaticSource) Candidates(_ context.Context, projectID, modID string) ([]model.ModJar, error) {
	var out []model.ModJar
	for _, j := range s {
		if j.ProjectID == projectID && j.Mod(modID) != nil {
			out = append(out, j)
		}
	}
	return out, nil
}

// MemoryRanker evaluates a Policy by loading candidates and sorting them.
type MemoryRanker struct {
	src    CandidateSource
	parser *gameversion.Parser
	logger *log.Logger
}

// NewMemoryRanker returns a ranker over src. Nil parser and logger fall back
// to the default parser and a discarding logger.
func NewMemoryRanker(src CandidateSource, parser *gameversion.Parser, logger *log.Logger) *MemoryRanker {
	if parser == nil {
		parser = gameversion.Default()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &MemoryRanker{src: src, parser: parser, logger: logger}
}

type candidate struct {
	jar     *model.ModJar
	loader  model.Loader
	overlap int
}

func (r *MemoryRanker) Rank(ctx context.Context, req RankRequest) ([]*model.ModJar, error) {
	policy, err := req.Policy.Normalize()
	if err != nil {
		return nil, err
	}
	pos := make(map[gameversion.GameVersion]int, len(req.Fallbacks))
	for i, v := range req.Fallbacks {
		pos[v] = i
	}

	out := make([]*model.ModJar, len(req.Lookups))
	for i, l := range req.Lookups {
		jars, err := r.src.Candidates(ctx, l.ProjectID, l.ModID)
		if err != nil {
			return nil, err
		}
		var cands []candidate
		for k := range jars {
			jar := &jars[k]
			mod := jar.Mod(l.ModID)
			if mod == nil || mod.SupportedModLoader.Family() != l.Loader.Family() {
				continue
			}
			overlap := -1
			for _, s := range mod.SupportedMinecraftVersions {
				v, ok := r.parser.Parse(s)
				if !ok {
					r.logger.Warn("skipping malformed game version", "jar", jar.ID, "mod", mod.ModID, "version", s)
					continue
				}
				if p, ok := pos[v]; ok && (overlap < 0 || p < overlap) {
					overlap = p
				}
			}
			if overlap < 0 {
				continue
			}
			cands = append(cands, candidate{jar: jar, loader: mod.SupportedModLoader, overlap: overlap})
		}
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(a, b int) bool {
			return less(policy, l.Loader, cands[a], cands[b])
		})
		out[i] = cands[0].jar
	}
	return out, nil
}

// less walks the policy keys in order and decides on the first that differs.
func less(policy Policy, want model.Loader, a, b candidate) bool {
	for _, k := range policy {
		var c int
		switch k {
		case KeyVersionOverlap:
			c = a.overlap - b.overlap
		case KeyExactLoader:
			c = loaderRank(want, a.loader) - loaderRank(want, b.loader)
		case KeyReleaseTier:
			c = a.jar.ReleaseType.Tier() - b.jar.ReleaseType.Tier()
		case KeyReleaseDate:
			c = b.jar.ReleaseDate.Compare(a.jar.ReleaseDate)
		case KeyJarID:
			switch {
			case a.jar.ID < b.jar.ID:
				c = -1
			case a.jar.ID > b.jar.ID:
				c = 1
			}
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

func loaderRank(want, got model.Loader) int {
	if want == got {
		return 0
	}
	return 1
}
