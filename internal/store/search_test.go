package store

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/query"
)

func searchIDs(t *testing.T, s *SQLiteStore, q string) []string {
	t.Helper()
	results, err := s.Search(context.Background(), SearchParams{Query: q, Limit: 100})
	require.NoError(t, err, q)
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.Mod.ModID)
	}
	sort.Strings(ids)
	return ids
}

func TestSearchEscaping(t *testing.T) {
	s := newTestStore(t)
	var jars []model.ModJar
	for i, id := range []string{"100%pure", "1000pure", "my_mod", "myxmod", `back\slash`, "backslash", "star*mod", "starxmod"} {
		jars = append(jars, testJar("f"+id, model.ReleaseStable, i, testMod(id, model.LoaderForge, "1.16.5")))
	}
	mustImport(t, s, testProject("1", jars...))

	tests := []struct {
		query string
		want  []string
	}{
		{`modId:100%*`, []string{"100%pure"}},
		{`modId:my_mod`, []string{"my_mod"}},
		{`modId:my?mod`, []string{"my_mod", "myxmod"}},
		{`modId:back\\slash`, []string{`back\slash`}},
		{`modId:star\**`, []string{"star*mod"}},
		{`modId:star*`, []string{"star*mod", "starxmod"}},
		{`modId:"star*mod"`, []string{"star*mod"}},
		{`pure`, []string{"100%pure", "1000pure"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, searchIDs(t, s, tt.query), tt.query)
	}
}

func searchFixture(t *testing.T) *SQLiteStore {
	t.Helper()
	s := newTestStore(t)

	jei := testMod("jei", model.LoaderForge, "1.16.5", "1.16.4")
	jei.DisplayName = "Just Enough Items"
	rei := testMod("rei", model.LoaderFabric, "1.19.2")
	rei.DisplayName = "Roughly Enough Items"
	rei.Dependencies = []model.Dependency{{ModID: "cloth-config", Type: model.DependencyRequired}}
	sodium := testMod("sodium", model.LoaderFabric, "1.20.1", "1.20")
	sodium.DisplayName = "Sodium"

	mustImport(t, s,
		testProject("1", testJar("jei-1", model.ReleaseStable, 0, jei)),
		testProject("2", testJar("rei-1", model.ReleaseBeta, 10, rei)),
		testProject("3", testJar("sodium-1", model.ReleaseAlpha, 20, sodium)),
	)
	return s
}

func TestSearchFields(t *testing.T) {
	s := searchFixture(t)

	tests := []struct {
		query string
		want  []string
	}{
		{`enough`, []string{"jei", "rei"}},
		{`"enough items"`, []string{"jei", "rei"}},
		{`loader:FABRIC`, []string{"rei", "sodium"}},
		{`loader:fabric AND NOT modId:rei`, []string{"sodium"}},
		{`NOT (loader:FABRIC OR releaseType:STABLE)`, []string{}},
		{`modId:jei OR modId:sodium`, []string{"jei", "sodium"}},
		{`releaseType:BETA OR releaseType:ALPHA`, []string{"rei", "sodium"}},
		{`releaseDate:[2023-01-05 TO *]`, []string{"rei", "sodium"}},
		{`releaseDate:{* TO 2023-01-11}`, []string{"jei"}},
		{`gameVersion:1.16.4`, []string{"jei"}},
		{`gameVersion:1.2*`, []string{"sodium"}},
		{`gameVersion:[1.19 TO 1.20]`, []string{"rei", "sodium"}},
		{`gameVersion:{1.16.5 TO *}`, []string{"rei", "sodium"}},
		{`NOT gameVersion:1.16.5`, []string{"rei", "sodium"}},
		{`gameVersion:(1.16.5 OR 1.20)`, []string{"jei", "sodium"}},
		{`dependsOn:cloth*`, []string{"rei"}},
		{`project:"project 3"`, []string{"sodium"}},
		{`modId:"x' OR 1=1 --"`, []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, searchIDs(t, s, tt.query), tt.query)
	}
}

func TestSearchHydratesResults(t *testing.T) {
	s := searchFixture(t)
	results, err := s.Search(context.Background(), SearchParams{Query: "modId:rei"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	r := results[0]
	assert.Equal(t, "rei-1", r.Jar.SourceFileID)
	assert.Equal(t, model.ReleaseBeta, r.Jar.ReleaseType)
	assert.Equal(t, []string{"1.19.2"}, r.Mod.SupportedMinecraftVersions)
	require.Len(t, r.Mod.Dependencies, 1)
	assert.Equal(t, "cloth-config", r.Mod.Dependencies[0].ModID)
}

func TestSearchLimitAndOrder(t *testing.T) {
	s := searchFixture(t)
	results, err := s.Search(context.Background(), SearchParams{Query: "modId:*", Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "sodium", results[0].Mod.ModID, "newest jar first")
	assert.Equal(t, "rei", results[1].Mod.ModID)
}

func TestSearchRejectsUnknownField(t *testing.T) {
	s := searchFixture(t)
	_, err := s.Search(context.Background(), SearchParams{Query: "modId:jei AND password:hunter2"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, query.ErrCompile))

	var ce *query.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "password", ce.Field)
	assert.Equal(t, s.Fields(), ce.Allowed)

	_, err = s.Search(context.Background(), SearchParams{Query: "modId:[a TO b]"})
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "modId", ce.Field)
	assert.Equal(t, []string{"gameVersion", "releaseDate"}, ce.Allowed)

	_, err = s.Search(context.Background(), SearchParams{Query: "gameVersion:[latest TO *]"})
	assert.ErrorAs(t, err, &ce)
}

func TestRenderSQLBindsValues(t *testing.T) {
	n := query.And(
		query.Term("mv.mod_id", "x' OR 1=1 --"),
		query.Not(query.Any("game_versions", query.Term("gv.game_version", "1.16%"))),
	)
	sql, args, err := renderSQL(n)
	require.NoError(t, err)
	assert.NotContains(t, sql, "1=1")
	assert.NotContains(t, sql, "1.16")
	assert.Equal(t, []interface{}{"x' OR 1=1 --", "1.16%"}, args)

	_, _, err = renderSQL(query.Term("users.password", "x"))
	assert.Error(t, err)
	_, _, err = renderSQL(query.Any("secrets", query.Term("mv.mod_id", "x")))
	assert.Error(t, err)
}
