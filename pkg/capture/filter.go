package capture

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides which intercepted requests become exchanges. Patterns use
// doublestar syntax: "*" stays within a path segment, "**" crosses segments,
// and "{a,b}" alternates. Host patterns match case-insensitively.
type Filter struct {
	IncludePaths []string `json:"includePaths,omitempty"`
	ExcludePaths []string `json:"excludePaths,omitempty"`
	IncludeHosts []string `json:"includeHosts,omitempty"`
	ExcludeHosts []string `json:"excludeHosts,omitempty"`
}

// NewFilter creates an empty filter that captures everything.
func NewFilter() *Filter {
	return &Filter{}
}

// Validate reports the first malformed pattern.
func (f *Filter) Validate() error {
	groups := []struct {
		name     string
		patterns []string
	}{
		{"include path", f.IncludePaths},
		{"exclude path", f.ExcludePaths},
		{"include host", f.IncludeHosts},
		{"exclude host", f.ExcludeHosts},
	}
	for _, g := range groups {
		for _, p := range g.patterns {
			if !doublestar.ValidatePattern(p) {
				return fmt.Errorf("invalid %s pattern %q", g.name, p)
			}
		}
	}
	return nil
}

// ShouldCapture reports whether a request to host and path is captured.
// Precedence:
// 1. If matches ANY exclude pattern → NOT captured
// 2. If include patterns exist AND matches NONE → NOT captured
// 3. Otherwise → captured
func (f *Filter) ShouldCapture(host, path string) bool {
	host = strings.ToLower(stripPort(host))

	if matchAny(f.ExcludeHosts, host, true) || matchAny(f.ExcludePaths, path, false) {
		return false
	}
	if len(f.IncludeHosts) > 0 && !matchAny(f.IncludeHosts, host, true) {
		return false
	}
	if len(f.IncludePaths) > 0 && !matchAny(f.IncludePaths, path, false) {
		return false
	}
	return true
}

func matchAny(patterns []string, s string, fold bool) bool {
	for _, p := range patterns {
		if fold {
			p = strings.ToLower(p)
		}
		if ok, err := doublestar.Match(p, s); err == nil && ok {
			return true
		}
	}
	return false
}

func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if i := strings.Index(host, "]"); i > 0 {
			return host[1:i]
		}
		return host
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && strings.Count(host, ":") == 1 {
		return host[:i]
	}
	return host
}
