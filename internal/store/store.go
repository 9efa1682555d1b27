// Package store provides the catalog storage interface and SQLite implementation.
package store

import (
	"context"
	"errors"

	"github.com/rcliao/mod-catalog/internal/model"
	"github.com/rcliao/mod-catalog/internal/resolver"
)

// ErrNotFound is returned when a project or jar reference matches nothing.
var ErrNotFound = errors.New("not found")

// ListParams holds parameters for listing projects or jars.
type ListParams struct {
	// Project restricts jar listings to one project (id or source:source_id).
	Project string
	Limit   int
}

// SearchParams holds parameters for a compiled catalog search.
type SearchParams struct {
	Query string
	Limit int
}

// SearchResult is one matching mod together with the jar that ships it.
// Jar.Mods is left empty.
type SearchResult struct {
	Jar model.ModJar     `json:"jar"`
	Mod model.ModVersion `json:"mod"`
}

// ImportResult summarizes one Import call.
type ImportResult struct {
	Projects    int `json:"projects"`
	Jars        int `json:"jars"`
	Skipped     int `json:"skipped"`
	FailedFiles int `json:"failed_files"`
}

// Store defines the catalog storage interface.
type Store interface {
	resolver.Ranker
	resolver.CandidateSource

	// Import appends projects, jars and failure records. Jars whose source
	// file id is already stored are skipped.
	Import(ctx context.Context, projects []model.Project) (*ImportResult, error)

	// GetJar finds a jar by id, external id or source file id.
	GetJar(ctx context.Context, ref string) (*model.ModJar, error)

	// ListProjects lists projects without their jars.
	ListProjects(ctx context.Context, p ListParams) ([]model.Project, error)

	// ListJars lists the jars of one project, newest first.
	ListJars(ctx context.Context, p ListParams) ([]model.ModJar, error)

	// Search runs a boolean catalog query.
	Search(ctx context.Context, p SearchParams) ([]SearchResult, error)

	// Close closes the store.
	Close() error
}
