// Package resolver picks the best release of a mod for a target game version
// and loader, and detects available updates.
//
// Ranking is lexicographic over an explicit Policy. A Ranker evaluates the
// policy, either in memory (MemoryRanker) or inside the catalog store.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/mod-catalog/internal/gameversion"
	"github.com/rcliao/mod-catalog/internal/model"
)

// Key is one ranking criterion.
type Key int

const (
	// KeyVersionOverlap prefers the strictest fallback version the candidate
	// supports. Candidates supporting none are not eligible.
	KeyVersionOverlap Key = iota
	// KeyExactLoader prefers the requested loader over others of its family.
	KeyExactLoader
	// KeyReleaseTier prefers STABLE over BETA over ALPHA.
	KeyReleaseTier
	// KeyReleaseDate prefers newer releases.
	KeyReleaseDate
	// KeyJarID orders by jar id to make the order total.
	KeyJarID
)

func (k Key) String() string {
	switch k {
	case KeyVersionOverlap:
		return "version_overlap"
	case KeyExactLoader:
		return "exact_loader"
	case KeyReleaseTier:
		return "release_tier"
	case KeyReleaseDate:
		return "release_date"
	case KeyJarID:
		return "jar_id"
	}
	return fmt.Sprintf("key(%d)", int(k))
}

// ParseKey maps a key name such as "release_tier" back to its Key.
func ParseKey(name string) (Key, error) {
	for k := KeyVersionOverlap; k <= KeyJarID; k++ {
		if k.String() == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown ranking key %q", name)
}

// ParsePolicy parses key names in order. An empty list yields DefaultPolicy.
func ParsePolicy(names []string) (Policy, error) {
	var p Policy
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		k, err := ParseKey(name)
		if err != nil {
			return nil, err
		}
		p = append(p, k)
	}
	return p.Normalize()
}

// Policy is an ordered list of keys; later keys only break ties of earlier ones.
type Policy []Key

// DefaultPolicy ranks by version overlap, exact loader, stability, recency.
var DefaultPolicy = Policy{KeyVersionOverlap, KeyExactLoader, KeyReleaseTier, KeyReleaseDate, KeyJarID}

// Normalize rejects unknown or repeated keys and appends KeyJarID when absent
// so every policy yields a total order.
func (p Policy) Normalize() (Policy, error) {
	if len(p) == 0 {
		return DefaultPolicy, nil
	}
	seen := map[Key]bool{}
	out := make(Policy, 0, len(p)+1)
	for _, k := range p {
		if k < KeyVersionOverlap || k > KeyJarID {
			return nil, fmt.Errorf("unknown ranking key %d", int(k))
		}
		if seen[k] {
			return nil, fmt.Errorf("ranking key %s repeated", k)
		}
		seen[k] = true
		out = append(out, k)
	}
	if !seen[KeyJarID] {
		out = append(out, KeyJarID)
	}
	return out, nil
}

func (p Policy) String() string {
	parts := make([]string, len(p))
	for i, k := range p {
		parts[i] = k.String()
	}
	return strings.Join(parts, ",")
}

// Lookup asks for the best jar of ModID within ProjectID.
type Lookup struct {
	ProjectID   string       `json:"project_id"`
	ModID       string       `json:"mod_id"`
	Loader      model.Loader `json:"loader"`
	GameVersion string       `json:"game_version"`
}

func (l Lookup) key() string {
	return l.ProjectID + "\x00" + l.ModID + "\x00" + string(l.Loader) + "\x00" + l.GameVersion
}

// RankRequest is one ranking query: many lookups sharing one fallback set.
type RankRequest struct {
	// Fallbacks is ordered strictest first.
	Fallbacks []gameversion.GameVersion
	Policy    Policy
	Lookups   []Lookup
}

// Ranker returns, for every lookup of req, the top-ranked jar or nil.
// The result has the same length and order as req.Lookups.
type Ranker interface {
	Rank(ctx context.Context, req RankRequest) ([]*model.ModJar, error)
}
