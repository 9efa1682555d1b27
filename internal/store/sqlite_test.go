package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/mod-catalog/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var epoch = time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)

func testJar(fileID string, rt model.ReleaseType, day int, mods ...model.ModVersion) model.ModJar {
	return model.ModJar{
		ExternalID:   "ext-" + fileID,
		SourceFileID: fileID,
		DownloadURL:  "https://files.example.org/" + fileID + ".jar",
		FileName:     fileID + ".jar",
		ReleaseType:  rt,
		ReleaseDate:  epoch.AddDate(0, 0, day),
		Mods:         mods,
	}
}

func testMod(modID string, loader model.Loader, versions ...string) model.ModVersion {
	return model.ModVersion{
		ModID:                      modID,
		DisplayName:                modID,
		ModVersion:                 "1.0.0",
		SupportedModLoader:         loader,
		SupportedMinecraftVersions: versions,
	}
}

func testProject(sourceID string, jars ...model.ModJar) model.Project {
	return model.Project{Source: "curseforge", SourceID: sourceID, Name: "project " + sourceID, Jars: jars}
}

func mustImport(t *testing.T, s *SQLiteStore, projects ...model.Project) []model.Project {
	t.Helper()
	if _, err := s.Import(context.Background(), projects); err != nil {
		t.Fatalf("import: %v", err)
	}
	return projects
}

func TestImportAndGetJar(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	core := testMod("core", model.LoaderForge, "1.16.5", "1.16.4")
	core.Dependencies = []model.Dependency{{ModID: "lib", VersionRange: "[1.0,2.0)", Type: model.DependencyRequired}}
	projects := []model.Project{testProject("100",
		testJar("f1", model.ReleaseStable, 0, core, testMod("addon", model.LoaderForge, "1.16.5")),
		testJar("f2", model.ReleaseBeta, 3, testMod("core", model.LoaderForge, "1.17.1")),
	)}

	res, err := s.Import(ctx, projects)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Projects != 1 || res.Jars != 2 || res.Skipped != 0 {
		t.Errorf("unexpected import result %+v", res)
	}
	jar := projects[0].Jars[0]
	if jar.ID == "" || jar.ProjectID != projects[0].ID {
		t.Fatalf("expected ids to be assigned, got jar %q project %q", jar.ID, jar.ProjectID)
	}

	for _, ref := range []string{jar.ID, "ext-f1", "f1"} {
		got, err := s.GetJar(ctx, ref)
		if err != nil {
			t.Fatalf("get %s: %v", ref, err)
		}
		if got.ID != jar.ID {
			t.Errorf("get %s: expected %s, got %s", ref, jar.ID, got.ID)
		}
	}

	got, _ := s.GetJar(ctx, "f1")
	if len(got.Mods) != 2 || got.Mods[0].ModID != "core" || got.Mods[1].ModID != "addon" {
		t.Fatalf("expected mods core, addon in order, got %+v", got.Mods)
	}
	if v := got.Mods[0].SupportedMinecraftVersions; len(v) != 2 || v[0] != "1.16.5" || v[1] != "1.16.4" {
		t.Errorf("unexpected versions %v", v)
	}
	if d := got.Mods[0].Dependencies; len(d) != 1 || d[0].ModID != "lib" || d[0].VersionRange != "[1.0,2.0)" {
		t.Errorf("unexpected dependencies %+v", d)
	}
	if !got.ReleaseDate.Equal(epoch) || got.ReleaseType != model.ReleaseStable {
		t.Errorf("release fields not persisted: %v %s", got.ReleaseDate, got.ReleaseType)
	}

	if _, err := s.GetJar(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestImportIsAppendOnly(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := mustImport(t, s, testProject("7", testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderFabric, "1.19.2"))))

	again := testProject("7",
		testJar("f1", model.ReleaseAlpha, 9, testMod("a", model.LoaderFabric, "1.20")),
		testJar("f2", model.ReleaseStable, 1, testMod("a", model.LoaderFabric, "1.19.2")),
	)
	again.Name = "renamed"
	res, err := s.Import(ctx, []model.Project{again})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Jars != 1 || res.Skipped != 1 {
		t.Errorf("expected 1 new and 1 skipped, got %+v", res)
	}

	got, _ := s.GetJar(ctx, "f1")
	if got.ID != first[0].Jars[0].ID || got.ReleaseType != model.ReleaseStable {
		t.Errorf("existing jar was rewritten: %+v", got)
	}

	jars, err := s.ListJars(ctx, ListParams{Project: "curseforge:7"})
	if err != nil {
		t.Fatalf("list jars: %v", err)
	}
	if len(jars) != 2 || jars[0].SourceFileID != "f2" {
		t.Errorf("expected 2 jars newest first, got %d", len(jars))
	}

	projects, _ := s.ListProjects(ctx, ListParams{})
	if len(projects) != 1 || projects[0].Name != "renamed" {
		t.Errorf("expected one renamed project, got %+v", projects)
	}
}

func TestImportRejectsAmbiguousJar(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	bad := testProject("1", testJar("f1", model.ReleaseStable, 0,
		testMod("a", model.LoaderForge, "1.16.5"),
		testMod("a", model.LoaderForge, "1.16.4"),
	))
	_, err := s.Import(ctx, []model.Project{bad})
	if !errors.Is(err, model.ErrAmbiguousMultiModJar) {
		t.Fatalf("expected ErrAmbiguousMultiModJar, got %v", err)
	}
	var amb *model.AmbiguousModError
	if !errors.As(err, &amb) || amb.ModID != "a" {
		t.Errorf("expected AmbiguousModError for mod a, got %v", err)
	}

	projects, _ := s.ListProjects(ctx, ListParams{})
	if len(projects) != 0 {
		t.Errorf("expected nothing stored, got %d projects", len(projects))
	}
}

func TestImportValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tests := []struct {
		name    string
		project model.Project
	}{
		{"no source id", model.Project{Source: "curseforge"}},
		{"no versions", testProject("1", testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderForge)))},
		{"empty version", testProject("1", testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderForge, "1.16.5", "")))},
		{"bad release type", testProject("1", testJar("f1", "NIGHTLY", 0, testMod("a", model.LoaderForge, "1.16.5")))},
		{"unknown loader", testProject("1", testJar("f1", model.ReleaseStable, 0, testMod("a", "RIFT", "1.16.5")))},
	}
	for _, tt := range tests {
		if _, err := s.Import(ctx, []model.Project{tt.project}); err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
	}
}

func TestImportKeepsMalformedVersions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	mustImport(t, s, testProject("1", testJar("f1", model.ReleaseStable, 0,
		testMod("a", model.LoaderForge, "1.18-snapshot", "1.18.2"))))

	got, err := s.GetJar(ctx, "f1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v := got.Mods[0].SupportedMinecraftVersions; len(v) != 2 || v[0] != "1.18-snapshot" {
		t.Errorf("expected raw versions kept, got %v", v)
	}

	st, err := s.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.MalformedVersions != 1 {
		t.Errorf("expected 1 malformed version, got %d", st.MalformedVersions)
	}
}

func TestFailedFiles(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	p := testProject("1", testJar("f2", model.ReleaseStable, 0, testMod("a", model.LoaderForge, "1.16.5")))
	p.FailedFiles = []model.FailedFile{
		{SourceFileID: "f1", Reason: "corrupt archive", FailedAt: epoch},
		{SourceFileID: "f2", Reason: "timeout", FailedAt: epoch},
	}
	mustImport(t, s, p)

	// A later failure report for an imported file is ignored.
	late := testProject("1")
	late.FailedFiles = []model.FailedFile{{SourceFileID: "f2", Reason: "timeout"}}
	mustImport(t, s, late)

	all, err := s.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 project, got %d", len(all))
	}
	ff := all[0].FailedFiles
	if len(ff) != 1 || ff[0].SourceFileID != "f1" || ff[0].Reason != "corrupt archive" {
		t.Errorf("expected only f1 failing, got %+v", ff)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	mustImport(t, src,
		testProject("1",
			testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderForge, "1.16.5")),
			testJar("f2", model.ReleaseBeta, 1, testMod("a", model.LoaderForge, "1.16.5"), testMod("b", model.LoaderForge, "1.16.5")),
		),
		testProject("2", testJar("f3", model.ReleaseAlpha, 2, testMod("c", model.LoaderQuilt, "1.20.1"))),
	)

	exported, err := src.ExportAll(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	dst := newTestStore(t)
	res, err := dst.Import(ctx, exported)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.Projects != 2 || res.Jars != 3 {
		t.Errorf("unexpected import result %+v", res)
	}
	got, err := dst.GetJar(ctx, "f2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Mods) != 2 || got.ReleaseType != model.ReleaseBeta {
		t.Errorf("jar not carried over: %+v", got)
	}
}

func TestResolveProject(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	projects := mustImport(t, s, testProject("42", testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderForge, "1.16.5"))))

	for _, ref := range []string{projects[0].ID, "curseforge:42"} {
		id, err := s.ResolveProject(ctx, ref)
		if err != nil {
			t.Fatalf("resolve %s: %v", ref, err)
		}
		if id != projects[0].ID {
			t.Errorf("resolve %s: expected %s, got %s", ref, projects[0].ID, id)
		}
	}
	if _, err := s.ResolveProject(ctx, "modrinth:42"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDependencies(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	oldAddon := testMod("addon", model.LoaderForge, "1.16.5")
	oldAddon.Dependencies = []model.Dependency{{ModID: "oldlib", Type: model.DependencyRequired}}
	addon := testMod("addon", model.LoaderForge, "1.16.5")
	addon.Dependencies = []model.Dependency{
		{ModID: "core", VersionRange: "[1.0,2.0)", Type: model.DependencyRequired},
		{ModID: "jei", VersionRange: "garbage[", Type: model.DependencyOptional},
	}
	mustImport(t, s, testProject("1",
		testJar("f1", model.ReleaseStable, 0, oldAddon),
		testJar("f2", model.ReleaseStable, 5, addon),
		testJar("f3", model.ReleaseStable, 1, testMod("core", model.LoaderForge, "1.16.5")),
	))

	deps, err := s.Dependencies(ctx, "addon")
	if err != nil {
		t.Fatalf("dependencies: %v", err)
	}
	if len(deps) != 2 {
		t.Fatalf("expected 2 dependencies of the newest addon, got %+v", deps)
	}
	if deps[0].DependsOn != "core" || deps[0].Equivalent != ">=1.0 <2.0" {
		t.Errorf("unexpected first dependency %+v", deps[0])
	}
	if deps[1].DependsOn != "jei" || deps[1].Equivalent != "" || deps[1].Range != "garbage[" {
		t.Errorf("unparseable range should be kept raw: %+v", deps[1])
	}

	dependents, err := s.Dependents(ctx, "core")
	if err != nil {
		t.Fatalf("dependents: %v", err)
	}
	if len(dependents) != 1 || dependents[0].ModID != "addon" {
		t.Errorf("expected addon to depend on core, got %+v", dependents)
	}
	if old, _ := s.Dependents(ctx, "oldlib"); len(old) != 0 {
		t.Errorf("superseded versions should not count, got %+v", old)
	}

	if _, err := s.Dependencies(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "stats.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	defer s.Close()

	mustImport(t, s, testProject("1",
		testJar("f1", model.ReleaseStable, 0, testMod("a", model.LoaderForge, "1.16.5"), testMod("b", model.LoaderForge, "1.16.5")),
		testJar("f2", model.ReleaseStable, 1, testMod("a", model.LoaderFabric, "1.16.5")),
	))

	st, err := s.Stats(ctx, dbPath)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Projects != 1 || st.Jars != 2 || st.ModVersions != 3 || st.DistinctMods != 2 {
		t.Errorf("unexpected counts %+v", st)
	}
	if len(st.Loaders) != 2 || st.Loaders[0].Loader != "FORGE" || st.Loaders[0].Count != 2 {
		t.Errorf("unexpected loader stats %+v", st.Loaders)
	}
	if st.DBPath != dbPath {
		t.Errorf("expected db path %s, got %s", dbPath, st.DBPath)
	}
}

func TestDBPathCreation(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "test.db")
	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("expected db file to be created")
	}
}
