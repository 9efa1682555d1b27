package gameversion

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the default parser's memo cache.
const DefaultCacheSize = 4096

// Result is a memoized parse outcome. Failed parses are cached too.
type Result struct {
	Version GameVersion
	OK      bool
}

// Cache memoizes parse results by input string. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(key string) (Result, bool)
	Add(key string, r Result) bool
}

// Parser parses game versions through a memo cache.
type Parser struct {
	cache Cache
}

// NewParser returns a parser backed by an LRU cache of the given size.
// A non-positive size falls back to DefaultCacheSize.
func NewParser(size int) *Parser {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, Result](size)
	if err != nil {
		// lru.New only fails for non-positive sizes.
		panic(err)
	}
	return &Parser{cache: c}
}

// NewParserWithCache returns a parser using c. A nil cache disables memoization.
func NewParserWithCache(c Cache) *Parser {
	return &Parser{cache: c}
}

// Parse returns the version for s and whether s was well-formed.
func (p *Parser) Parse(s string) (GameVersion, bool) {
	if p == nil || p.cache == nil {
		return parse(s)
	}
	if r, ok := p.cache.Get(s); ok {
		return r.Version, r.OK
	}
	v, ok := parse(s)
	p.cache.Add(s, Result{Version: v, OK: ok})
	return v, ok
}

// ParseStrict is Parse with an *InvalidVersionError for malformed input.
func (p *Parser) ParseStrict(s string) (GameVersion, error) {
	v, ok := p.Parse(s)
	if !ok {
		return GameVersion{}, &InvalidVersionError{Version: s}
	}
	return v, nil
}

// MustParse is for call sites where a malformed version is a data-integrity bug.
func (p *Parser) MustParse(s string) GameVersion {
	v, err := p.ParseStrict(s)
	if err != nil {
		panic(err)
	}
	return v
}

var defaultParser = NewParser(DefaultCacheSize)

// Default returns the shared parser used by the package-level helpers.
func Default() *Parser { return defaultParser }

// Parse parses s with the default parser.
func Parse(s string) (GameVersion, bool) { return defaultParser.Parse(s) }

// ParseStrict parses s with the default parser, returning an error on failure.
func ParseStrict(s string) (GameVersion, error) { return defaultParser.ParseStrict(s) }

// MustParse parses s with the default parser and panics on failure.
func MustParse(s string) GameVersion { return defaultParser.MustParse(s) }
