// Package glob implements the case-insensitive `*`/`?` pattern
// matching used by directory search (spec.md §4.F). The standard
// library's path.Match rejects unescaped backslashes and has no
// case-insensitive mode, and treats "*.*" as requiring a literal dot
// rather than matching everything the way legacy filesystem search
// patterns do — neither behaviour fits here, so the matcher is
// hand-rolled.
package glob

import "strings"

// Match reports whether name matches pattern, where `*` matches any
// run of characters (including none) and `?` matches exactly one
// character, both case-insensitively. The patterns "*" and "*.*"
// always match, mirroring legacy "show everything" search semantics.
func Match(pattern, name string) bool {
	if pattern == "*" || pattern == "*.*" {
		return true
	}
	p := []rune(strings.ToLower(pattern))
	n := []rune(strings.ToLower(name))
	return match(p, n)
}

// match is the classic greedy two-pointer wildcard matcher, with
// backtracking to the most recent '*' on mismatch.
func match(p, n []rune) bool {
	pi, ni := 0, 0
	starIdx, matchIdx := -1, 0

	for ni < len(n) {
		switch {
		case pi < len(p) && (p[pi] == '?' || p[pi] == n[ni]):
			pi++
			ni++
		case pi < len(p) && p[pi] == '*':
			starIdx = pi
			matchIdx = ni
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			matchIdx++
			ni = matchIdx
		default:
			return false
		}
	}
	for pi < len(p) && p[pi] == '*' {
		pi++
	}
	return pi == len(p)
}
