package store

import "database/sql"

// A Declaration represents one requirement line within an ingested manifest:
// a link between a manifest and a package, together with the constraint as
// written.
type Declaration struct {
	ID         int32  `json:"id" db:"id"`
	ManifestID int32  `json:"manifest_id" db:"manifest_id"`
	// Package is the canonical package name; empty for unnamed VCS refs.
	Package string `json:"package" db:"package"`
	// WrittenName preserves the name exactly as it appeared in the manifest.
	WrittenName string `json:"written_name" db:"written_name"`
	// Raw is the full requirement text with comments stripped.
	Raw string `json:"raw" db:"raw"`
	// Constraint is the specifier set in source form, ex: ">=1.2,<2.0".
	Constraint sql.NullString `json:"constraint,omitempty" db:"constraint_text"`
	// PinnedVersion is set when the constraint pins an exact version.
	PinnedVersion sql.NullString `json:"pinned_version,omitempty" db:"pinned_version"`
	Extras        sql.NullString `json:"extras,omitempty" db:"extras"`
	VCSURL        sql.NullString `json:"vcs_url,omitempty" db:"vcs_url"`
	VCSRef        sql.NullString `json:"vcs_ref,omitempty" db:"vcs_ref"`
	Line          int32          `json:"line" db:"line"`
}

// A DeclarationDetail is a declaration joined with its owning manifest and
// project, as returned by package-centric queries.
type DeclarationDetail struct {
	Project       string         `json:"project" db:"project"`
	ManifestPath  string         `json:"manifest_path" db:"manifest_path"`
	Revision      sql.NullString `json:"revision,omitempty" db:"revision"`
	Package       string         `json:"package" db:"package"`
	Raw           string         `json:"raw" db:"raw"`
	PinnedVersion sql.NullString `json:"pinned_version,omitempty" db:"pinned_version"`
	Line          int32          `json:"line" db:"line"`
}

// A Conflict groups the declarations of a package that appears more than once
// within a single manifest of a project.
type Conflict struct {
	Package      string              `json:"package"`
	ManifestPath string              `json:"manifest_path"`
	Declarations []DeclarationDetail `json:"declarations"`
}
