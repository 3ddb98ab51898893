package ignore

import (
	"path/filepath"
	"strings"
)

// Matcher matches file paths against junk patterns. The skip policy is
// fail-closed: anything matching is excluded from ingestion.
type Matcher struct {
	patterns []string
}

// NewMatcher creates a matcher over the built-in junk patterns plus any
// extra configured ones.
func NewMatcher(extra []string) *Matcher {
	patterns := append([]string{}, DefaultPatterns()...)
	patterns = append(patterns, extra...)
	return &Matcher{patterns: patterns}
}

// ShouldIgnore returns true if the path matches any junk pattern.
func (m *Matcher) ShouldIgnore(path string) bool {
	path = filepath.ToSlash(path)

	for _, pattern := range m.patterns {
		if m.matchPattern(path, pattern) {
			return true
		}
	}

	return false
}

// matchPattern checks if a path matches a pattern.
func (m *Matcher) matchPattern(path, pattern string) bool {
	pattern = filepath.ToSlash(pattern)

	// Handle ** for recursive matching.
	if strings.Contains(pattern, "**") {
		parts := strings.Split(pattern, "**")

		// "node_modules/**" matches anything under node_modules/.
		if len(parts) > 0 && parts[0] != "" && !strings.Contains(parts[0], "*") {
			prefix := strings.TrimSuffix(parts[0], "/")
			if strings.HasPrefix(path, prefix+"/") || path == prefix {
				return true
			}
		}

		// "**/target/**" matches any path segment equal to target.
		for _, part := range parts {
			if part == "" || part == "/" || strings.Contains(part, "*") {
				continue
			}
			part = strings.Trim(part, "/")
			if strings.Contains(path, "/"+part+"/") || strings.HasPrefix(path, part+"/") || strings.HasSuffix(path, "/"+part) {
				return true
			}
		}

		// "**/*.min.js" matches by suffix on the base name.
		if last := parts[len(parts)-1]; strings.HasPrefix(last, "/") {
			if matched, err := filepath.Match(strings.TrimPrefix(last, "/"), filepath.Base(path)); err == nil && matched {
				return true
			}
		}
	}

	if matched, err := filepath.Match(pattern, path); err == nil && matched {
		return true
	}

	if matched, err := filepath.Match(pattern, filepath.Base(path)); err == nil && matched {
		return true
	}

	// A bare directory pattern matches any ancestor directory.
	bare := strings.TrimSuffix(pattern, "/**")
	if !strings.ContainsAny(bare, "*?[") {
		dir := filepath.Dir(path)
		for dir != "." && dir != "/" {
			if filepath.Base(dir) == bare {
				return true
			}
			dir = filepath.Dir(dir)
		}
	}

	return false
}

// DefaultPatterns returns the built-in junk patterns: build outputs,
// dependency stores, minified assets, lockfiles, generated code and maps.
func DefaultPatterns() []string {
	return []string{
		// Build outputs
		"target/**",
		"build/**",
		"dist/**",
		"out/**",
		"bin/**",
		"obj/**",

		// Dependency stores
		"node_modules/**",
		"vendor/**",
		".pnp/**",
		"venv/**",
		".venv/**",
		"site-packages/**",
		"__pycache__/**",

		// Minified assets and maps
		"**/*.min.js",
		"**/*.min.css",
		"**/*.bundle.js",
		"**/*.map",

		// Lockfiles
		"package-lock.json",
		"yarn.lock",
		"pnpm-lock.yaml",
		"Cargo.lock",
		"poetry.lock",
		"Pipfile.lock",
		"go.sum",
		"composer.lock",
		"Gemfile.lock",

		// Generated code
		"**/*_generated.go",
		"**/*.pb.go",
		"**/*.generated.*",
		"**/*_pb2.py",

		// Version control and IDE state
		".git/**",
		".hg/**",
		".svn/**",
		".idea/**",
		".vscode/**",
		"*.iml",
	}
}
