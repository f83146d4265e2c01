package lint

import (
	"fmt"

	"github.com/argus-deps/argus/internal/requirements"
)

func init() {
	Register(invalidLineRule{})
	Register(duplicateDeclarationRule{})
	Register(conflictingConstraintsRule{})
	Register(unpinnedRequirementRule{})
	Register(unnamedVCSReferenceRule{})
	Register(nonCanonicalNameRule{})
}

// invalidLineRule surfaces manifest lines that did not parse as requirement
// entries or recognized options.
type invalidLineRule struct{}

func (invalidLineRule) ID() string    { return "invalid-line" }
func (invalidLineRule) Title() string { return "Lines parse as requirements" }
func (invalidLineRule) Description() string {
	return "Every non-comment, non-blank manifest line must be a valid requirement entry or option."
}
func (invalidLineRule) Severity() Severity { return SeverityError }

func (r invalidLineRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for _, pe := range f.Errors {
		findings = append(findings, Finding{
			RuleID:   r.ID(),
			Severity: r.Severity(),
			File:     f.Name,
			Line:     pe.Line,
			Message:  pe.Err.Error(),
			Evidence: map[string]string{"line": pe.Text},
		})
	}
	return findings
}

// duplicateDeclarationRule flags a package that is declared more than once,
// regardless of whether the constraints agree.  The canonical vposer manifest
// bug, "trimesh" followed later by "trimesh==3.9.5", lands here.
type duplicateDeclarationRule struct{}

func (duplicateDeclarationRule) ID() string    { return "duplicate-declaration" }
func (duplicateDeclarationRule) Title() string { return "Packages are declared once" }
func (duplicateDeclarationRule) Description() string {
	return "A package must not appear on more than one line of the same manifest."
}
func (duplicateDeclarationRule) Severity() Severity { return SeverityError }

func (r duplicateDeclarationRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for canon, decls := range declarationsByPackage(f) {
		if len(decls) < 2 {
			continue
		}
		first := decls[0]
		for _, dup := range decls[1:] {
			findings = append(findings, Finding{
				RuleID:   r.ID(),
				Severity: r.Severity(),
				File:     f.Name,
				Line:     dup.Line,
				Package:  canon,
				Message:  fmt.Sprintf("%s is already declared on line %d as %q", dup.Name, first.Line, first.Raw),
				Evidence: map[string]string{
					"first":     first.Raw,
					"duplicate": dup.Raw,
				},
			})
		}
	}
	return findings
}

// conflictingConstraintsRule flags duplicate declarations whose constraint
// sets cannot both be satisfied by any single version.
type conflictingConstraintsRule struct{}

func (conflictingConstraintsRule) ID() string    { return "conflicting-constraints" }
func (conflictingConstraintsRule) Title() string { return "Constraints are satisfiable" }
func (conflictingConstraintsRule) Description() string {
	return "Two declarations of the same package must not impose mutually unsatisfiable version constraints."
}
func (conflictingConstraintsRule) Severity() Severity { return SeverityError }

func (r conflictingConstraintsRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for canon, decls := range declarationsByPackage(f) {
		for i := 0; i < len(decls); i++ {
			for j := i + 1; j < len(decls); j++ {
				if !decls[i].Specifiers.ConflictsWith(decls[j].Specifiers) {
					continue
				}
				findings = append(findings, Finding{
					RuleID:   r.ID(),
					Severity: r.Severity(),
					File:     f.Name,
					Line:     decls[j].Line,
					Package:  canon,
					Message: fmt.Sprintf("no version of %s satisfies both %q (line %d) and %q",
						decls[i].Name, decls[i].Raw, decls[i].Line, decls[j].Raw),
					Evidence: map[string]string{
						"lhs": decls[i].Raw,
						"rhs": decls[j].Raw,
					},
				})
			}
		}
	}
	return findings
}

// unpinnedRequirementRule flags index-sourced entries without an exact pin.
type unpinnedRequirementRule struct{}

func (unpinnedRequirementRule) ID() string    { return "unpinned-requirement" }
func (unpinnedRequirementRule) Title() string { return "Requirements are pinned" }
func (unpinnedRequirementRule) Description() string {
	return "Index-sourced requirements should pin an exact version so installs are reproducible."
}
func (unpinnedRequirementRule) Severity() Severity { return SeverityWarning }

func (r unpinnedRequirementRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for _, req := range f.Requirements {
		if req.IsVCS() || req.URL != "" {
			continue
		}
		if _, pinned := req.Pinned(); pinned {
			continue
		}
		msg := fmt.Sprintf("%s is not pinned to an exact version", req.Name)
		if len(req.Specifiers) > 0 {
			msg = fmt.Sprintf("%s is constrained (%s) but not pinned to an exact version", req.Name, req.Specifiers)
		}
		findings = append(findings, Finding{
			RuleID:   r.ID(),
			Severity: r.Severity(),
			File:     f.Name,
			Line:     req.Line,
			Package:  req.Canonical(),
			Message:  msg,
		})
	}
	return findings
}

// unnamedVCSReferenceRule flags VCS references without an "#egg=" name,
// which keeps the package anonymous to duplicate detection.
type unnamedVCSReferenceRule struct{}

func (unnamedVCSReferenceRule) ID() string    { return "unnamed-vcs-reference" }
func (unnamedVCSReferenceRule) Title() string { return "VCS references are named" }
func (unnamedVCSReferenceRule) Description() string {
	return "Source-control references should carry an #egg= name so they can be matched against other declarations."
}
func (unnamedVCSReferenceRule) Severity() Severity { return SeverityWarning }

func (r unnamedVCSReferenceRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for _, req := range f.Requirements {
		if !req.IsVCS() || req.Name != "" {
			continue
		}
		findings = append(findings, Finding{
			RuleID:   r.ID(),
			Severity: r.Severity(),
			File:     f.Name,
			Line:     req.Line,
			Message:  fmt.Sprintf("VCS reference %s has no #egg= name", req.VCS.URL),
		})
	}
	return findings
}

// nonCanonicalNameRule reports names whose written form differs from the
// normalized form used for package identity.
type nonCanonicalNameRule struct{}

func (nonCanonicalNameRule) ID() string    { return "non-canonical-name" }
func (nonCanonicalNameRule) Title() string { return "Names are written canonically" }
func (nonCanonicalNameRule) Description() string {
	return "Package names should be written in their normalized form (lowercase, hyphen-separated)."
}
func (nonCanonicalNameRule) Severity() Severity { return SeverityInfo }

func (r nonCanonicalNameRule) Evaluate(f *requirements.File) []Finding {
	var findings []Finding
	for _, req := range f.Requirements {
		if req.Name == "" || req.Name == req.Canonical() {
			continue
		}
		findings = append(findings, Finding{
			RuleID:   r.ID(),
			Severity: r.Severity(),
			File:     f.Name,
			Line:     req.Line,
			Package:  req.Canonical(),
			Message:  fmt.Sprintf("%s is normalized to %s", req.Name, req.Canonical()),
		})
	}
	return findings
}

// declarationsByPackage groups a manifest's named requirements by canonical
// package name, preserving source order within each group.
func declarationsByPackage(f *requirements.File) map[string][]requirements.Requirement {
	decls := make(map[string][]requirements.Requirement)
	for _, req := range f.Requirements {
		if req.Name == "" {
			// unnamed VCS refs have no identity to group by
			continue
		}
		canon := req.Canonical()
		decls[canon] = append(decls[canon], req)
	}
	return decls
}
