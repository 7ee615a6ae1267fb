package diff

import (
	"path/filepath"
	"strings"
)

// ShouldExclude reports whether a slash-separated relative path matches
// any of the given patterns. Three pattern shapes are understood:
//
//   - basename globs ("*.tmp") match against the file's base name
//   - directory patterns ("node_modules/") match the directory and
//     everything under it, at any depth
//   - path patterns ("build/*", "**/fixtures") match against the whole
//     relative path
func ShouldExclude(relativePath string, patterns []string) bool {
	if len(patterns) == 0 {
		return false
	}

	path := filepath.ToSlash(relativePath)
	base := filepath.Base(relativePath)

	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		if matchPattern(path, base, filepath.ToSlash(pattern)) {
			return true
		}
	}
	return false
}

// matchPattern applies one normalized pattern against a path and its
// base name
func matchPattern(path, base, pattern string) bool {
	// trailing slash marks a directory exclusion; the name may appear
	// anywhere along the path
	if dir, ok := strings.CutSuffix(pattern, "/"); ok {
		return path == dir ||
			strings.HasPrefix(path, dir+"/") ||
			strings.Contains(path, "/"+dir+"/")
	}

	// "**/" anchors the rest of the pattern at any depth
	if rest, ok := strings.CutPrefix(pattern, "**/"); ok && !strings.Contains(rest, "**") {
		if matchComponent(base, rest) {
			return true
		}
		if path == rest || strings.HasSuffix(path, "/"+rest) {
			return true
		}
		for _, part := range strings.Split(path, "/") {
			if matchComponent(part, rest) {
				return true
			}
		}
		return false
	}
	if strings.Contains(pattern, "**") {
		return false
	}

	if strings.Contains(pattern, "/") {
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		return strings.HasSuffix(path, pattern)
	}
	return matchComponent(base, pattern)
}

// matchComponent glob-matches a single path component
func matchComponent(name, pattern string) bool {
	matched, _ := filepath.Match(pattern, name)
	return matched
}
