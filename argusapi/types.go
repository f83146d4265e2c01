// Package argusapi defines the JSON request and response types exchanged
// between the argus CLI and the argus server.
package argusapi

import "time"

// Project is the API representation of a tracked project.
type Project struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateProjectRequest is the payload for POST /api/v1/projects.
type CreateProjectRequest struct {
	Project Project `json:"project"`
}

// CreateProjectResponse echoes the created or updated project.
type CreateProjectResponse struct {
	Project Project `json:"project"`
}

// ListProjectsResponse is the payload for GET /api/v1/projects.
type ListProjectsResponse struct {
	Projects      []Project `json:"projects"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// Declaration is one requirement entry within a manifest being ingested.
type Declaration struct {
	// Package is the canonical (PEP 503) package name; empty for unnamed
	// VCS references.
	Package       string `json:"package,omitempty"`
	WrittenName   string `json:"written_name,omitempty"`
	Raw           string `json:"raw"`
	Constraint    string `json:"constraint,omitempty"`
	PinnedVersion string `json:"pinned_version,omitempty"`
	Extras        string `json:"extras,omitempty"`
	VCSURL        string `json:"vcs_url,omitempty"`
	VCSRef        string `json:"vcs_ref,omitempty"`
	Line          int    `json:"line"`
}

// PutManifestRequest is the payload for PUT /api/v1/projects/{project}/manifests.
// Ingesting a manifest replaces any prior declarations recorded for the same
// project/path pair.
type PutManifestRequest struct {
	// Path identifies the manifest within the project, ex: "requirements.txt".
	Path string `json:"path"`
	// Revision is the project revision the manifest was read at: a version
	// tag or an abbreviated commit hash.
	Revision     string        `json:"revision,omitempty"`
	Declarations []Declaration `json:"declarations"`
}

// PutManifestResponse reports the outcome of a manifest ingest.
type PutManifestResponse struct {
	Project          string `json:"project"`
	Path             string `json:"path"`
	DeclarationCount int    `json:"declaration_count"`
}

// Manifest is the API representation of an ingested manifest.
type Manifest struct {
	Path       string    `json:"path"`
	Revision   string    `json:"revision,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}

// ListManifestsResponse is the payload for
// GET /api/v1/projects/{project}/manifests.
type ListManifestsResponse struct {
	Manifests []Manifest `json:"manifests"`
}

// Package is the API representation of a tracked package.
type Package struct {
	Name string `json:"name"`
}

// ListPackagesResponse is the payload for GET /api/v1/packages.
type ListPackagesResponse struct {
	Packages      []Package `json:"packages"`
	NextPageToken string    `json:"next_page_token,omitempty"`
}

// DeclarationDetail is a declaration joined with its owning manifest and
// project.
type DeclarationDetail struct {
	Project       string `json:"project"`
	ManifestPath  string `json:"manifest_path"`
	Revision      string `json:"revision,omitempty"`
	Package       string `json:"package"`
	Raw           string `json:"raw"`
	PinnedVersion string `json:"pinned_version,omitempty"`
	Line          int    `json:"line"`
}

// ListDeclarationsResponse is the payload for
// GET /api/v1/packages/{package}/declarations.
type ListDeclarationsResponse struct {
	Declarations  []DeclarationDetail `json:"declarations"`
	NextPageToken string              `json:"next_page_token,omitempty"`
}

// Conflict reports a package declared more than once within a single manifest.
type Conflict struct {
	Package      string              `json:"package"`
	ManifestPath string              `json:"manifest_path"`
	Declarations []DeclarationDetail `json:"declarations"`
}

// ListConflictsResponse is the payload for
// GET /api/v1/projects/{project}/conflicts.
type ListConflictsResponse struct {
	Conflicts []Conflict `json:"conflicts"`
}

// ErrorResponse is returned with any non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}
