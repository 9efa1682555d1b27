// Package model defines the catalog data types shared by the store and resolver.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ReleaseType is the stability tier of a jar.
type ReleaseType string

const (
	ReleaseStable ReleaseType = "STABLE"
	ReleaseBeta   ReleaseType = "BETA"
	ReleaseAlpha  ReleaseType = "ALPHA"
)

// Tier ranks release types, lower is more stable. Unknown types sort last.
func (r ReleaseType) Tier() int {
	switch r {
	case ReleaseStable:
		return 0
	case ReleaseBeta:
		return 1
	case ReleaseAlpha:
		return 2
	}
	return 3
}

// Loader is the mod-loading runtime a mod targets.
type Loader string

const (
	LoaderForge    Loader = "FORGE"
	LoaderNeoForge Loader = "NEOFORGE"
	LoaderFabric   Loader = "FABRIC"
	LoaderQuilt    Loader = "QUILT"
)

// Family returns the loader family. Mods never cross families.
func (l Loader) Family() string {
	switch l {
	case LoaderForge, LoaderNeoForge:
		return "forge"
	case LoaderFabric, LoaderQuilt:
		return "fabric"
	}
	return ""
}

// ParseLoader normalizes a loader name.
func ParseLoader(s string) (Loader, error) {
	l := Loader(strings.ToUpper(strings.TrimSpace(s)))
	if l.Family() == "" {
		return "", fmt.Errorf("unknown loader %q (valid: FORGE, NEOFORGE, FABRIC, QUILT)", s)
	}
	return l, nil
}

// ValidReleaseTypes are the accepted release tiers.
var ValidReleaseTypes = map[ReleaseType]bool{
	ReleaseStable: true,
	ReleaseBeta:   true,
	ReleaseAlpha:  true,
}

// DependencyType classifies a declared dependency.
type DependencyType string

const (
	DependencyRequired     DependencyType = "REQUIRED"
	DependencyOptional     DependencyType = "OPTIONAL"
	DependencyIncompatible DependencyType = "INCOMPATIBLE"
	DependencyEmbedded     DependencyType = "EMBEDDED"
)

// Dependency is one dependency declared by a mod.
type Dependency struct {
	ModID        string         `json:"mod_id"`
	VersionRange string         `json:"version_range,omitempty"`
	Type         DependencyType `json:"type"`
}

// ModVersion is one mod as packaged inside a particular jar.
type ModVersion struct {
	ID                         string       `json:"id"`
	JarID                      string       `json:"jar_id"`
	ModID                      string       `json:"mod_id"`
	DisplayName                string       `json:"display_name"`
	ModVersion                 string       `json:"mod_version"`
	SupportedMinecraftVersions []string     `json:"supported_minecraft_versions"`
	SupportedModLoader         Loader       `json:"supported_mod_loader"`
	Dependencies               []Dependency `json:"dependencies,omitempty"`
}

// ModJar is one uploaded release artifact. It may bundle several mods.
type ModJar struct {
	ID           string       `json:"id"`
	ExternalID   string       `json:"external_id"`
	ProjectID    string       `json:"project_id"`
	SourceFileID string       `json:"source_file_id"`
	DownloadURL  string       `json:"download_url"`
	FileName     string       `json:"file_name"`
	ReleaseType  ReleaseType  `json:"release_type"`
	ReleaseDate  time.Time    `json:"release_date"`
	Mods         []ModVersion `json:"mods,omitempty"`
}

// FailedFile records a source file the ingestion pipeline could not process.
type FailedFile struct {
	SourceFileID string    `json:"source_file_id"`
	Reason       string    `json:"reason"`
	FailedAt     time.Time `json:"failed_at"`
}

// Project aggregates all jars published under one external source id.
type Project struct {
	ID          string       `json:"id"`
	Source      string       `json:"source"`
	SourceID    string       `json:"source_id"`
	Name        string       `json:"name"`
	Jars        []ModJar     `json:"jars,omitempty"`
	FailedFiles []FailedFile `json:"failed_files,omitempty"`
}

// ErrAmbiguousMultiModJar marks a jar that bundles the same mod id more than once.
var ErrAmbiguousMultiModJar = errors.New("ambiguous multi-mod jar")

// AmbiguousModError names the offending jar and mod id.
type AmbiguousModError struct {
	JarID string
	ModID string
}

func (e *AmbiguousModError) Error() string {
	return fmt.Sprintf("jar %s bundles mod %q more than once", e.JarID, e.ModID)
}

func (e *AmbiguousModError) Unwrap() error { return ErrAmbiguousMultiModJar }

// Validate checks the invariants ingestion must uphold for a jar.
func (j *ModJar) Validate() error {
	if j.SourceFileID == "" {
		return fmt.Errorf("jar %q: source file id is required", j.FileName)
	}
	if !ValidReleaseTypes[j.ReleaseType] {
		return fmt.Errorf("jar %s: invalid release type %q", j.SourceFileID, j.ReleaseType)
	}
	seen := map[string]bool{}
	for _, m := range j.Mods {
		if seen[m.ModID] {
			return &AmbiguousModError{JarID: j.SourceFileID, ModID: m.ModID}
		}
		seen[m.ModID] = true
		if len(m.SupportedMinecraftVersions) == 0 {
			return fmt.Errorf("jar %s: mod %q supports no game versions", j.SourceFileID, m.ModID)
		}
		for _, v := range m.SupportedMinecraftVersions {
			if v == "" {
				return fmt.Errorf("jar %s: mod %q has an empty game version", j.SourceFileID, m.ModID)
			}
		}
		if m.SupportedModLoader.Family() == "" {
			return fmt.Errorf("jar %s: mod %q has unknown loader %q", j.SourceFileID, m.ModID, m.SupportedModLoader)
		}
	}
	return nil
}

// Mod returns the bundled mod with the given id, or nil.
func (j *ModJar) Mod(modID string) *ModVersion {
	for i := range j.Mods {
		if j.Mods[i].ModID == modID {
			return &j.Mods[i]
		}
	}
	return nil
}
