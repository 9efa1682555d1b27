// Package gameversion parses, serializes and compares Minecraft game versions.
//
// A game version has the form "1.<major>(.<minor>)?". The leading "1." is the
// historical product line and is not part of the comparison; "1.16" and
// "1.16.0" denote the same version.
package gameversion

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// GameVersion is a parsed game version. The zero value is "1.0".
type GameVersion struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
}

// Direction selects ascending or descending order for Compare.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// ErrInvalidVersion is wrapped by every malformed game version error.
var ErrInvalidVersion = errors.New("invalid game version")

// InvalidVersionError reports the rejected literal.
type InvalidVersionError struct {
	Version string
}

func (e *InvalidVersionError) Error() string {
	return fmt.Sprintf("invalid game version %q (expected 1.<major>[.<minor>])", e.Version)
}

func (e *InvalidVersionError) Unwrap() error { return ErrInvalidVersion }

var versionPattern = regexp.MustCompile(`^1\.(\d{1,6})(?:\.(\d{1,6}))?$`)

func parse(s string) (GameVersion, bool) {
	m := versionPattern.FindStringSubmatch(s)
	if m == nil {
		return GameVersion{}, false
	}
	major, _ := strconv.Atoi(m[1])
	minor := 0
	if m[2] != "" {
		minor, _ = strconv.Atoi(m[2])
	}
	return GameVersion{Major: major, Minor: minor}, true
}

// String serializes v. A zero minor is omitted.
func (v GameVersion) String() string {
	if v.Minor == 0 {
		return "1." + strconv.Itoa(v.Major)
	}
	return "1." + strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// Compare orders a and b by major then minor. It returns -1, 0 or 1, with the
// sign flipped for Descending.
func Compare(a, b GameVersion, dir Direction) int {
	c := 0
	switch {
	case a.Major != b.Major:
		c = sign(a.Major - b.Major)
	case a.Minor != b.Minor:
		c = sign(a.Minor - b.Minor)
	}
	if dir == Descending {
		return -c
	}
	return c
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// IsLikelyCompatible reports whether a mod built for candidate should run on
// requested: same major, and candidate must not need a newer minor.
func IsLikelyCompatible(requested, candidate GameVersion) bool {
	return requested.Major == candidate.Major && requested.Minor >= candidate.Minor
}

// FallbackSet returns the versions acceptable for requested, strictest first:
// the requested version, then each lower minor of the same major down to 0.
func FallbackSet(requested GameVersion) []GameVersion {
	out := make([]GameVersion, 0, requested.Minor+1)
	for minor := requested.Minor; minor >= 0; minor-- {
		out = append(out, GameVersion{Major: requested.Major, Minor: minor})
	}
	return out
}

// MostCompatible picks the entry of available best suited to requested.
// Keys, each consulted only on a tie of the previous one:
//  1. same major, then lower major, then higher major
//  2. exact minor, then lower minor, then higher minor
//  3. higher major, then higher minor
//
// It returns false when available is empty.
func MostCompatible(requested GameVersion, available []GameVersion) (GameVersion, bool) {
	if len(available) == 0 {
		return GameVersion{}, false
	}
	best := available[0]
	for _, c := range available[1:] {
		if preferred(requested, c, best) {
			best = c
		}
	}
	return best, true
}

// preferred reports whether a ranks strictly before b for requested.
func preferred(requested, a, b GameVersion) bool {
	if ra, rb := closeness(requested.Major, a.Major), closeness(requested.Major, b.Major); ra != rb {
		return ra < rb
	}
	if ra, rb := closeness(requested.Minor, a.Minor), closeness(requested.Minor, b.Minor); ra != rb {
		return ra < rb
	}
	return Compare(a, b, Descending) < 0
}

// closeness buckets got relative to want: 0 equal, 1 lower, 2 higher.
func closeness(want, got int) int {
	switch {
	case got == want:
		return 0
	case got < want:
		return 1
	}
	return 2
}
