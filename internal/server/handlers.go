package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/argus-deps/argus/argusapi"
	"github.com/argus-deps/argus/internal/requirements"
	"github.com/argus-deps/argus/internal/store"
)

// apiServer implements the argus REST API on top of a store.
type apiServer struct {
	store store.Store
}

func newAPIServer(db store.Store) *apiServer {
	return &apiServer{store: db}
}

// registerRoutes attaches the API handlers to mux, wrapped with the request
// metrics middleware.
func (s *apiServer) registerRoutes(mux *http.ServeMux) {
	routes := map[string]http.HandlerFunc{
		"POST /api/v1/projects":                       s.createProject,
		"GET /api/v1/projects":                        s.listProjects,
		"PUT /api/v1/projects/{project}/manifests":    s.putManifest,
		"GET /api/v1/projects/{project}/manifests":    s.listManifests,
		"GET /api/v1/projects/{project}/conflicts":    s.listConflicts,
		"GET /api/v1/packages":                        s.listPackages,
		"GET /api/v1/packages/{package}/declarations": s.listDeclarations,
	}
	for pattern, h := range routes {
		mux.Handle(pattern, instrumentHandler(pattern, h))
	}
}

func (s *apiServer) createProject(w http.ResponseWriter, r *http.Request) {
	var req argusapi.CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
		return
	}
	log.Debug("createProject() called", "project", req.Project.Name)

	if req.Project.Name == "" {
		writeError(w, http.StatusBadRequest, errors.New("project name is required"))
		return
	}
	if _, err := s.store.SaveProject(r.Context(), req.Project.Name, req.Project.Description); err != nil {
		log.Error(err, "error saving project", "project", req.Project.Name)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to save project %q: a database operation failed", req.Project.Name))
		return
	}
	writeJSON(w, http.StatusOK, argusapi.CreateProjectResponse{Project: req.Project})
}

func (s *apiServer) listProjects(w http.ResponseWriter, r *http.Request) {
	filter, pageToken, pageSize := listParams(r)
	log.Debug("listProjects() called", "filter", filter, "pageToken", pageToken, "pageSize", pageSize)

	projects, nextToken, err := s.store.QueryProjects(r.Context(), filter, pageToken, pageSize)
	if err != nil {
		log.Error(err, "error querying the database", "filter", filter, "pageToken", pageToken, "pageSize", pageSize)
		writeError(w, http.StatusInternalServerError, errors.New("unable to query the database"))
		return
	}
	resp := argusapi.ListProjectsResponse{
		NextPageToken: nextToken,
	}
	for _, p := range projects {
		resp.Projects = append(resp.Projects, argusapi.Project{
			Name:        p.Name,
			Description: p.Description.String,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) putManifest(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	var req argusapi.PutManifestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request payload: %w", err))
		return
	}
	log.Debug("putManifest() called", "project", project, "path", req.Path, "declarations", len(req.Declarations))

	if req.Path == "" {
		writeError(w, http.StatusBadRequest, errors.New("the manifest path is required"))
		return
	}
	for i, d := range req.Declarations {
		if d.Raw == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("declarations[%d] has no requirement text", i))
			return
		}
	}

	ctx := r.Context()
	projectID, err := s.store.SaveProject(ctx, project, "")
	if err != nil {
		log.Error(err, "error saving project", "project", project)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to save project %q: a database operation failed", project))
		return
	}

	decls := make([]store.Declaration, len(req.Declarations))
	for i, d := range req.Declarations {
		decls[i] = store.Declaration{
			// the canonical name is the package identity, however it was written
			Package:       requirements.CanonicalName(d.Package),
			WrittenName:   d.WrittenName,
			Raw:           d.Raw,
			Constraint:    nullString(d.Constraint),
			PinnedVersion: nullString(d.PinnedVersion),
			Extras:        nullString(d.Extras),
			VCSURL:        nullString(d.VCSURL),
			VCSRef:        nullString(d.VCSRef),
			Line:          int32(d.Line),
		}
	}
	if _, err := s.store.SaveManifest(ctx, projectID, req.Path, req.Revision, decls); err != nil {
		log.Error(err, "error saving manifest", "project", project, "path", req.Path)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to save manifest %q: a database operation failed", req.Path))
		return
	}

	writeJSON(w, http.StatusOK, argusapi.PutManifestResponse{
		Project:          project,
		Path:             req.Path,
		DeclarationCount: len(decls),
	})
}

func (s *apiServer) listManifests(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	log.Debug("listManifests() called", "project", project)

	manifests, err := s.store.GetManifests(r.Context(), project)
	if err != nil {
		log.Error(err, "error querying manifests", "project", project)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to retrieve manifests for project %s: a database operation failed", project))
		return
	}
	var resp argusapi.ListManifestsResponse
	for _, m := range manifests {
		resp.Manifests = append(resp.Manifests, argusapi.Manifest{
			Path:       m.Path,
			Revision:   m.Revision,
			IngestedAt: m.Ingested,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) listPackages(w http.ResponseWriter, r *http.Request) {
	filter, pageToken, pageSize := listParams(r)
	log.Debug("listPackages() called", "filter", filter, "pageToken", pageToken, "pageSize", pageSize)

	packages, nextToken, err := s.store.QueryPackages(r.Context(), filter, pageToken, pageSize)
	if err != nil {
		log.Error(err, "error querying the database", "filter", filter, "pageToken", pageToken, "pageSize", pageSize)
		writeError(w, http.StatusInternalServerError, errors.New("unable to query the database"))
		return
	}
	resp := argusapi.ListPackagesResponse{
		NextPageToken: nextToken,
	}
	for _, p := range packages {
		resp.Packages = append(resp.Packages, argusapi.Package{Name: p.Name})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) listDeclarations(w http.ResponseWriter, r *http.Request) {
	pkg := requirements.CanonicalName(r.PathValue("package"))
	_, pageToken, pageSize := listParams(r)
	log.Debug("listDeclarations() called", "package", pkg, "pageToken", pageToken, "pageSize", pageSize)

	decls, nextToken, err := s.store.GetDeclarations(r.Context(), pkg, pageToken, pageSize)
	if err != nil {
		log.Error(err, "error querying declarations", "package", pkg)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to retrieve declarations for package %s: a database operation failed", pkg))
		return
	}
	resp := argusapi.ListDeclarationsResponse{
		NextPageToken: nextToken,
	}
	for _, d := range decls {
		resp.Declarations = append(resp.Declarations, toAPIDeclaration(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) listConflicts(w http.ResponseWriter, r *http.Request) {
	project := r.PathValue("project")
	log.Debug("listConflicts() called", "project", project)

	conflicts, err := s.store.GetConflicts(r.Context(), project)
	if err != nil {
		log.Error(err, "error querying conflicts", "project", project)
		writeError(w, http.StatusInternalServerError, fmt.Errorf("unable to retrieve conflicts for project %s: a database operation failed", project))
		return
	}
	var resp argusapi.ListConflictsResponse
	for _, c := range conflicts {
		conflict := argusapi.Conflict{
			Package:      c.Package,
			ManifestPath: c.ManifestPath,
		}
		for _, d := range c.Declarations {
			conflict.Declarations = append(conflict.Declarations, toAPIDeclaration(d))
		}
		resp.Conflicts = append(resp.Conflicts, conflict)
	}
	writeJSON(w, http.StatusOK, resp)
}

// defaultPageSize is used when a list request doesn't specify page_size.  A
// count of 0 would make the store return the full result set with a paging
// cursor that never drains.
const defaultPageSize = 100

// listParams extracts the shared query parameters used by the list endpoints.
func listParams(r *http.Request) (filter, pageToken string, pageSize int) {
	q := r.URL.Query()
	filter = q.Get("filter")
	pageToken = q.Get("page_token")
	pageSize = defaultPageSize
	if n, err := strconv.Atoi(q.Get("page_size")); err == nil && n > 0 {
		pageSize = n
	}
	return filter, pageToken, pageSize
}

func toAPIDeclaration(d store.DeclarationDetail) argusapi.DeclarationDetail {
	return argusapi.DeclarationDetail{
		Project:       d.Project,
		ManifestPath:  d.ManifestPath,
		Revision:      d.Revision.String,
		Package:       d.Package,
		Raw:           d.Raw,
		PinnedVersion: d.PinnedVersion.String,
		Line:          int(d.Line),
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error(err, "error writing API response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, argusapi.ErrorResponse{Error: err.Error()})
}
