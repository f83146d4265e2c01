package requirements

import (
	"sort"
	"strconv"
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Satisfies reports whether version v meets the constraint sp.  Versions that
// cannot be parsed (local version labels, direct URL hashes, and the like)
// are reported as satisfying so that the conflict detection below stays
// conservative.
func (sp Specifier) Satisfies(v string) bool {
	if sp.Op == "===" {
		return v == sp.Version
	}
	ver, err := goversion.NewVersion(v)
	if err != nil {
		return true
	}
	return satisfies(ver, sp)
}

func satisfies(v *goversion.Version, sp Specifier) bool {
	switch sp.Op {
	case "~=":
		for _, b := range expandCompatible(sp) {
			if !satisfies(v, b) {
				return false
			}
		}
		return true
	}
	sv, err := goversion.NewVersion(sp.Version)
	if err != nil {
		return true
	}
	cmp := v.Compare(sv)
	switch sp.Op {
	case "==":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	case ">=":
		return cmp >= 0
	default:
		return true
	}
}

// ConflictsWith reports whether no single version could satisfy both
// specifier sets.  This is the consistency check between two declarations of
// the same package: "trimesh==3.9.5" conflicts with "trimesh==3.8.0" and with
// "trimesh>=4.0", but not with a bare "trimesh".
//
// The check is deliberately conservative: pairs that cannot be compared
// (unparsable versions) only conflict when both are exact pins to different
// strings.
func (ss SpecifierSet) ConflictsWith(other SpecifierSet) bool {
	combined := make(SpecifierSet, 0, len(ss)+len(other))
	combined = append(combined, ss.expand()...)
	combined = append(combined, other.expand()...)
	for i := 0; i < len(combined); i++ {
		for j := i + 1; j < len(combined); j++ {
			if incompatible(combined[i], combined[j]) {
				return true
			}
		}
	}
	return false
}

// expand rewrites compatible-release specifiers (~=) into their equivalent
// lower and upper bounds so the pairwise check only deals with simple ops.
func (ss SpecifierSet) expand() SpecifierSet {
	out := make(SpecifierSet, 0, len(ss))
	for _, sp := range ss {
		if sp.Op == "~=" {
			out = append(out, expandCompatible(sp)...)
			continue
		}
		out = append(out, sp)
	}
	return out
}

// expandCompatible translates "~=X.Y.Z" into ">=X.Y.Z,<X.(Y+1)".  If the
// version does not have enough segments to bump, the specifier degrades to
// its lower bound only.
func expandCompatible(sp Specifier) SpecifierSet {
	out := SpecifierSet{{Op: ">=", Version: sp.Version}}
	parts := strings.Split(sp.Version, ".")
	if len(parts) < 2 {
		return out
	}
	parts = parts[:len(parts)-1]
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return out
	}
	parts[len(parts)-1] = strconv.Itoa(n + 1)
	return append(out, Specifier{Op: "<", Version: strings.Join(parts, ".")})
}

func incompatible(a, b Specifier) bool {
	av, aerr := goversion.NewVersion(a.Version)
	bv, berr := goversion.NewVersion(b.Version)
	if aerr != nil || berr != nil {
		return isPin(a.Op) && isPin(b.Op) && a.Version != b.Version
	}

	switch {
	case isPin(a.Op) && isPin(b.Op):
		if !av.Equal(bv) {
			return true
		}
		// local version labels ("+cu101") are ignored by ordered comparison
		// but distinguish exact pins
		return av.Metadata() != bv.Metadata()
	case isPin(a.Op):
		return !satisfies(av, b)
	case isPin(b.Op):
		return !satisfies(bv, a)
	}

	// range vs range: a lower bound above an upper bound is unsatisfiable
	aLower, aUpper := isLower(a.Op), isUpper(a.Op)
	bLower, bUpper := isLower(b.Op), isUpper(b.Op)
	switch {
	case aLower && bUpper:
		return boundsConflict(av, a.Op, bv, b.Op)
	case bLower && aUpper:
		return boundsConflict(bv, b.Op, av, a.Op)
	}
	return false
}

// boundsConflict reports whether a lower bound (lo, loOp) excludes every
// version allowed by an upper bound (hi, hiOp).
func boundsConflict(lo *goversion.Version, loOp string, hi *goversion.Version, hiOp string) bool {
	cmp := lo.Compare(hi)
	if cmp > 0 {
		return true
	}
	if cmp == 0 {
		return loOp == ">" || hiOp == "<"
	}
	return false
}

func isPin(op string) bool   { return op == "==" || op == "===" }
func isLower(op string) bool { return op == ">" || op == ">=" }
func isUpper(op string) bool { return op == "<" || op == "<=" }

// CompareVersions orders two version strings, falling back to a plain string
// comparison when either cannot be parsed.
func CompareVersions(a, b string) int {
	av, aerr := goversion.NewVersion(a)
	bv, berr := goversion.NewVersion(b)
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	return av.Compare(bv)
}

// SortVersionsDesc sorts version strings from highest to lowest.
func SortVersionsDesc(versions []string) {
	sort.SliceStable(versions, func(i, j int) bool {
		return CompareVersions(versions[i], versions[j]) > 0
	})
}
