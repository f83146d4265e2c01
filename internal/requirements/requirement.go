package requirements

import (
	"regexp"
	"strings"
)

// VCSType identifies the source-control system used by a VCS requirement.
type VCSType string

const (
	VCSGit VCSType = "git"
	VCSHg  VCSType = "hg"
	VCSSvn VCSType = "svn"
	VCSBzr VCSType = "bzr"
)

// A Specifier is a single version constraint, an operator plus a version string,
// ex: ">=1.2" or "==4.5.1.48".
type Specifier struct {
	Op      string `json:"op"`
	Version string `json:"version"`
}

// String returns the specifier in source form, ex: "==3.9.5"
func (s Specifier) String() string {
	return s.Op + s.Version
}

// A SpecifierSet is the full, comma-delimited constraint attached to a requirement.
// An empty set means the requirement is unconstrained.
type SpecifierSet []Specifier

// String returns the set in source form, ex: ">=1.2,<2.0"
func (ss SpecifierSet) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.String()
	}
	return strings.Join(parts, ",")
}

// Pin returns the exact version the set pins to, if the set contains an
// exact-match ("==" or "===") specifier.
func (ss SpecifierSet) Pin() (string, bool) {
	for _, s := range ss {
		if s.Op == "==" || s.Op == "===" {
			return s.Version, true
		}
	}
	return "", false
}

// A VCSRef is a requirement sourced from a source-control repository rather
// than a package index, ex: "git+https://github.com/example/foo@v1.0#egg=foo".
type VCSRef struct {
	Type VCSType `json:"type"`
	// URL is the repository URL without the VCS prefix, revision, or fragment.
	URL string `json:"url"`
	// Ref is the revision after '@', if any: a branch, tag, or commit.
	Ref string `json:"ref,omitempty"`
	// Subdirectory is the optional "subdirectory=" fragment value.
	Subdirectory string `json:"subdirectory,omitempty"`
}

// A Requirement is a single parsed manifest entry.
type Requirement struct {
	// Name is the package name exactly as written in the manifest.  For VCS
	// references this is the "#egg=" value and may be empty.
	Name string `json:"name"`
	// Extras holds the optional named sub-features requested, ex: smplx[all].
	Extras []string `json:"extras,omitempty"`
	// Specifiers is the version constraint set.  Empty for bare names and
	// VCS references.
	Specifiers SpecifierSet `json:"specifiers,omitempty"`
	// Marker is the raw environment marker following ';', if any.
	Marker string `json:"marker,omitempty"`
	// VCS is non-nil for source-control references.
	VCS *VCSRef `json:"vcs,omitempty"`
	// URL is set for PEP 508 direct references ("name @ https://...").
	URL string `json:"url,omitempty"`
	// Editable records a "-e/--editable" entry.
	Editable bool `json:"editable,omitempty"`

	// Line is the 1-based line number of the entry in its manifest.  For
	// entries spanning continuation lines this is the first line.
	Line int `json:"line"`
	// Raw is the entry text with continuations joined and comments stripped.
	Raw string `json:"raw"`
}

// Canonical returns the PEP 503 normalized form of the requirement name:
// lowercased, with runs of '-', '_', and '.' collapsed to a single '-'.
func (r Requirement) Canonical() string {
	return CanonicalName(r.Name)
}

// Pinned reports whether the requirement is constrained to an exact version
// and, if so, which one.
func (r Requirement) Pinned() (string, bool) {
	return r.Specifiers.Pin()
}

// IsVCS reports whether the requirement is a source-control reference.
func (r Requirement) IsVCS() bool {
	return r.VCS != nil
}

// String reconstructs the requirement in manifest form.
func (r Requirement) String() string {
	if r.VCS != nil {
		s := string(r.VCS.Type) + "+" + r.VCS.URL
		if r.VCS.Ref != "" {
			s += "@" + r.VCS.Ref
		}
		if r.Name != "" {
			s += "#egg=" + r.Name
		}
		return s
	}
	var sb strings.Builder
	sb.WriteString(r.Name)
	if len(r.Extras) > 0 {
		sb.WriteString("[" + strings.Join(r.Extras, ",") + "]")
	}
	if r.URL != "" {
		sb.WriteString(" @ " + r.URL)
		return sb.String()
	}
	sb.WriteString(r.Specifiers.String())
	if r.Marker != "" {
		sb.WriteString(" ; " + r.Marker)
	}
	return sb.String()
}

var reNameNormalize = regexp.MustCompile(`[-_.]+`)

// CanonicalName normalizes a package name per PEP 503 so that "Torch-Geometric",
// "torch_geometric", and "torch.geometric" all compare equal.
func CanonicalName(name string) string {
	return strings.ToLower(reNameNormalize.ReplaceAllString(name, "-"))
}
