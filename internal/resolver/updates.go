package resolver

import (
	"context"
	"fmt"

	"github.com/scylladb/go-set/strset"

	"github.com/rcliao/mod-catalog/internal/model"
)

// Installed is a jar present in a target environment.
type Installed struct {
	Jar         *model.ModJar
	Loader      model.Loader
	GameVersion string
}

// Update is a jar that should replace an installed one. ModIDs lists the
// installed mods for which it is the top-ranked candidate.
type Update struct {
	Jar    *model.ModJar `json:"jar"`
	ModIDs []string      `json:"mod_ids"`
}

// Updates reports the replacements available for one installed jar. An empty
// result means the installed jar is already the best choice.
func (r *Resolver) Updates(ctx context.Context, in Installed) ([]Update, error) {
	all, err := r.UpdatesBatch(ctx, []Installed{in})
	if err != nil {
		return nil, err
	}
	return all[0], nil
}

// UpdatesBatch runs update detection for many installed jars with a single
// batched resolution. The result is aligned with installs.
func (r *Resolver) UpdatesBatch(ctx context.Context, installs []Installed) ([][]Update, error) {
	var lookups []Lookup
	// owner[i] is the install that lookups[i] was derived from.
	var owner []int
	for i, in := range installs {
		if in.Jar == nil {
			return nil, fmt.Errorf("install %d: no jar", i)
		}
		mods := strset.New()
		for _, m := range in.Jar.Mods {
			if mods.Has(m.ModID) {
				return nil, &model.AmbiguousModError{JarID: in.Jar.ID, ModID: m.ModID}
			}
			mods.Add(m.ModID)
			lookups = append(lookups, Lookup{
				ProjectID:   in.Jar.ProjectID,
				ModID:       m.ModID,
				Loader:      in.Loader,
				GameVersion: in.GameVersion,
			})
			owner = append(owner, i)
		}
	}

	best, err := r.ResolveBestJars(ctx, lookups)
	if err != nil {
		return nil, err
	}

	out := make([][]Update, len(installs))
	index := make([]map[string]int, len(installs))
	for i, jar := range best {
		in := installs[owner[i]]
		if jar == nil || jar.ID == in.Jar.ID {
			continue
		}
		o := owner[i]
		if index[o] == nil {
			index[o] = map[string]int{}
		}
		// A jar bundling several mods is reported once.
		if at, ok := index[o][jar.ID]; ok {
			out[o][at].ModIDs = append(out[o][at].ModIDs, lookups[i].ModID)
			continue
		}
		index[o][jar.ID] = len(out[o])
		out[o] = append(out[o], Update{Jar: jar, ModIDs: []string{lookups[i].ModID}})
	}
	return out, nil
}
