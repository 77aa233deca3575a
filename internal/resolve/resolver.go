// Package resolve maps arbitrary reference strings onto virtual file paths.
//
// References in generated projects come in every shape: bare filenames,
// ./-relative paths, rooted paths, quoted attribute values, or already-usable
// absolute URLs. Resolution applies cascading match strategies in strict
// order against a snapshot of store paths; the first hit wins. Resolution is
// pure: no side effects, and an unmatched reference is simply reported as a
// miss so callers can leave the original reference untouched.
package resolve

import "strings"

// Passthrough reports whether ref is already dereferenceable and must not be
// resolved against the store: absolute URLs, data URIs and blob-style handles.
func Passthrough(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:") ||
		strings.HasPrefix(lower, "blob:") ||
		strings.HasPrefix(lower, "preview://")
}

// Normalize strips a single leading "./", a leading "/", and surrounding
// quotes from a reference.
func Normalize(ref string) string {
	ref = strings.TrimSpace(ref)
	ref = strings.Trim(ref, `"'`)
	ref = strings.TrimPrefix(ref, "./")
	ref = strings.TrimPrefix(ref, "/")
	return ref
}

// Basename returns the last path segment of ref.
func Basename(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		return ref[i+1:]
	}
	return ref
}

// Resolve matches ref against paths, which must be in deterministic
// (sorted) order. Strategies, first hit wins:
//
//  1. exact key match on the unmodified reference
//  2. exact match after normalization
//  3. basename match
//  4. suffix/prefix containment: a path k matches when k ends with
//     "/"+normalized or normalized ends with "/"+k
//
// Pass-through references never resolve. The boolean is false on a miss.
func Resolve(ref string, paths []string) (string, bool) {
	if ref == "" || Passthrough(ref) {
		return "", false
	}

	for _, p := range paths {
		if p == ref {
			return p, true
		}
	}

	norm := Normalize(ref)
	if norm == "" {
		return "", false
	}
	for _, p := range paths {
		if p == norm {
			return p, true
		}
	}

	base := Basename(norm)
	for _, p := range paths {
		if Basename(p) == base {
			return p, true
		}
	}

	for _, p := range paths {
		if strings.HasSuffix(p, "/"+norm) || strings.HasSuffix(norm, "/"+p) {
			return p, true
		}
	}

	return "", false
}
