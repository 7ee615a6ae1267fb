// Package version implements dotted numeric version comparison.
// Versions are compared segment by segment as integers, so "1.10.0" is
// newer than "1.2.0". Missing trailing segments count as zero.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Normalize strips a leading "v" or "V" prefix commonly found on release
// tags, leaving the dotted numeric form
func Normalize(v string) string {
	v = strings.TrimSpace(v)
	if len(v) > 1 && (v[0] == 'v' || v[0] == 'V') {
		return v[1:]
	}
	return v
}

// Compare returns -1 if a is older than b, +1 if newer, 0 if equal.
// Non-numeric segments make the version invalid.
func Compare(a, b string) (int, error) {
	segsA, err := parse(a)
	if err != nil {
		return 0, err
	}
	segsB, err := parse(b)
	if err != nil {
		return 0, err
	}

	length := len(segsA)
	if len(segsB) > length {
		length = len(segsB)
	}

	for i := 0; i < length; i++ {
		var va, vb int
		if i < len(segsA) {
			va = segsA[i]
		}
		if i < len(segsB) {
			vb = segsB[i]
		}
		if va < vb {
			return -1, nil
		}
		if va > vb {
			return 1, nil
		}
	}

	return 0, nil
}

// IsNewer reports whether candidate is strictly newer than current
func IsNewer(candidate, current string) (bool, error) {
	cmp, err := Compare(candidate, current)
	if err != nil {
		return false, err
	}
	return cmp > 0, nil
}

// parse splits a dotted version into integer segments
func parse(v string) ([]int, error) {
	v = Normalize(v)
	if v == "" {
		return nil, fmt.Errorf("empty version string")
	}

	parts := strings.Split(v, ".")
	segments := make([]int, 0, len(parts))
	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid version segment %q in %q", part, v)
		}
		if n < 0 {
			return nil, fmt.Errorf("negative version segment %q in %q", part, v)
		}
		segments = append(segments, n)
	}

	return segments, nil
}
