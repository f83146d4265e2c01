package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-deps/argus/argusapi"
	"github.com/argus-deps/argus/internal/store"
)

// fakeStore implements store.Store with per-call function fields so each test
// can supply just the behavior it needs.
type fakeStore struct {
	saveProject     func(ctx context.Context, name, description string) (int32, error)
	queryProjects   func(ctx context.Context, nameFilter, pageToken string, count int) ([]store.Project, string, error)
	saveManifest    func(ctx context.Context, projectID int32, path, revision string, decls []store.Declaration) (int32, error)
	getManifests    func(ctx context.Context, project string) ([]store.Manifest, error)
	queryPackages   func(ctx context.Context, nameFilter, pageToken string, count int) ([]store.Package, string, error)
	getDeclarations func(ctx context.Context, pkg, pageToken string, count int) ([]store.DeclarationDetail, string, error)
	getConflicts    func(ctx context.Context, project string) ([]store.Conflict, error)
}

func (f *fakeStore) SaveProject(ctx context.Context, name, description string) (int32, error) {
	return f.saveProject(ctx, name, description)
}

func (f *fakeStore) GetProjects(context.Context, ...string) ([]store.Project, error) {
	return nil, nil
}

func (f *fakeStore) QueryProjects(ctx context.Context, nameFilter, pageToken string, count int) ([]store.Project, string, error) {
	return f.queryProjects(ctx, nameFilter, pageToken, count)
}

func (f *fakeStore) SaveManifest(ctx context.Context, projectID int32, path, revision string, decls []store.Declaration) (int32, error) {
	return f.saveManifest(ctx, projectID, path, revision, decls)
}

func (f *fakeStore) GetManifests(ctx context.Context, project string) ([]store.Manifest, error) {
	return f.getManifests(ctx, project)
}

func (f *fakeStore) QueryPackages(ctx context.Context, nameFilter, pageToken string, count int) ([]store.Package, string, error) {
	return f.queryPackages(ctx, nameFilter, pageToken, count)
}

func (f *fakeStore) GetDeclarations(ctx context.Context, pkg, pageToken string, count int) ([]store.DeclarationDetail, string, error) {
	return f.getDeclarations(ctx, pkg, pageToken, count)
}

func (f *fakeStore) GetConflicts(ctx context.Context, project string) ([]store.Conflict, error) {
	return f.getConflicts(ctx, project)
}

func newTestServer(db store.Store) *httptest.Server {
	mux := http.NewServeMux()
	newAPIServer(db).registerRoutes(mux)
	return httptest.NewServer(mux)
}

func TestCreateProject(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name       string
		body       string
		saveErr    error
		wantStatus int
	}{
		{
			name:       "valid project",
			body:       `{"project":{"name":"vposer"}}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing name",
			body:       `{"project":{}}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed payload",
			body:       `{"project":`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "database failure",
			body:       `{"project":{"name":"vposer"}}`,
			saveErr:    assert.AnError,
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			db := &fakeStore{
				saveProject: func(_ context.Context, name, _ string) (int32, error) {
					assert.Equal(t, "vposer", name)
					return 1, tc.saveErr
				},
			}
			srv := newTestServer(db)
			defer srv.Close()

			resp, err := http.Post(srv.URL+"/api/v1/projects", "application/json", strings.NewReader(tc.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestPutManifest(t *testing.T) {
	t.Parallel()

	t.Run("canonicalizes package names", func(t *testing.T) {
		t.Parallel()

		var saved []store.Declaration
		db := &fakeStore{
			saveProject: func(_ context.Context, name, _ string) (int32, error) {
				assert.Equal(t, "vposer", name)
				return 42, nil
			},
			saveManifest: func(_ context.Context, projectID int32, path, revision string, decls []store.Declaration) (int32, error) {
				assert.EqualValues(t, 42, projectID)
				assert.Equal(t, "requirements.txt", path)
				assert.Equal(t, "v2.0.2", revision)
				saved = decls
				return 7, nil
			},
		}
		srv := newTestServer(db)
		defer srv.Close()

		payload := argusapi.PutManifestRequest{
			Path:     "requirements.txt",
			Revision: "v2.0.2",
			Declarations: []argusapi.Declaration{
				{Package: "Human_Body_Prior", WrittenName: "Human_Body_Prior", Raw: "Human_Body_Prior", Line: 3},
				{Package: "trimesh", WrittenName: "trimesh", Raw: "trimesh==3.9.5", Constraint: "==3.9.5", PinnedVersion: "3.9.5", Line: 5},
			},
		}
		body, err := json.Marshal(payload)
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/projects/vposer/manifests", strings.NewReader(string(body)))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		require.Len(t, saved, 2)
		assert.Equal(t, "human-body-prior", saved[0].Package)
		assert.Equal(t, "Human_Body_Prior", saved[0].WrittenName)
		assert.False(t, saved[0].PinnedVersion.Valid)
		assert.Equal(t, "trimesh", saved[1].Package)
		assert.Equal(t, "3.9.5", saved[1].PinnedVersion.String)

		var got argusapi.PutManifestResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
		assert.Equal(t, "vposer", got.Project)
		assert.Equal(t, 2, got.DeclarationCount)
	})

	t.Run("rejects manifest without a path", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(&fakeStore{})
		defer srv.Close()

		req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/projects/vposer/manifests",
			strings.NewReader(`{"declarations":[]}`))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("rejects declaration without requirement text", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(&fakeStore{})
		defer srv.Close()

		req, err := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/projects/vposer/manifests",
			strings.NewReader(`{"path":"requirements.txt","declarations":[{"package":"numpy"}]}`))
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestListProjects(t *testing.T) {
	t.Parallel()

	db := &fakeStore{
		queryProjects: func(_ context.Context, nameFilter, pageToken string, count int) ([]store.Project, string, error) {
			assert.Equal(t, "vp*", nameFilter)
			assert.Equal(t, 10, count)
			return []store.Project{
				{ID: 1, Name: "vposer", Description: sql.NullString{String: "pose prior", Valid: true}},
			}, "next-token", nil
		},
	}
	srv := newTestServer(db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/projects?filter=vp*&page_size=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got argusapi.ListProjectsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Projects, 1)
	assert.Equal(t, "vposer", got.Projects[0].Name)
	assert.Equal(t, "pose prior", got.Projects[0].Description)
	assert.Equal(t, "next-token", got.NextPageToken)
}

func TestListProjectsDefaultPageSize(t *testing.T) {
	t.Parallel()

	db := &fakeStore{
		queryProjects: func(_ context.Context, _, _ string, count int) ([]store.Project, string, error) {
			// requests without page_size must still page, or the store hands
			// back a cursor that never drains
			assert.Equal(t, defaultPageSize, count)
			return nil, "", nil
		},
	}
	srv := newTestServer(db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/projects")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListDeclarations(t *testing.T) {
	t.Parallel()

	db := &fakeStore{
		getDeclarations: func(_ context.Context, pkg, _ string, _ int) ([]store.DeclarationDetail, string, error) {
			// the path parameter should be canonicalized before it hits the store
			assert.Equal(t, "opencv-python", pkg)
			return []store.DeclarationDetail{
				{
					Project:       "vposer",
					ManifestPath:  "requirements.txt",
					Package:       "opencv-python",
					Raw:           "opencv-python==4.5.1.48",
					PinnedVersion: sql.NullString{String: "4.5.1.48", Valid: true},
					Line:          9,
				},
			}, "", nil
		},
	}
	srv := newTestServer(db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/packages/OpenCV_Python/declarations")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got argusapi.ListDeclarationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Declarations, 1)
	assert.Equal(t, "opencv-python", got.Declarations[0].Package)
	assert.Equal(t, "4.5.1.48", got.Declarations[0].PinnedVersion)
	assert.Equal(t, 9, got.Declarations[0].Line)
}

func TestListManifests(t *testing.T) {
	t.Parallel()

	ingested := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	db := &fakeStore{
		getManifests: func(_ context.Context, project string) ([]store.Manifest, error) {
			assert.Equal(t, "vposer", project)
			return []store.Manifest{
				{ID: 1, ProjectID: 42, Path: "requirements.txt", Revision: "v2.0.2", Ingested: ingested},
			}, nil
		},
	}
	srv := newTestServer(db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/projects/vposer/manifests")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got argusapi.ListManifestsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Manifests, 1)
	assert.Equal(t, "requirements.txt", got.Manifests[0].Path)
	assert.Equal(t, "v2.0.2", got.Manifests[0].Revision)
	assert.True(t, got.Manifests[0].IngestedAt.Equal(ingested))
}

func TestListConflicts(t *testing.T) {
	t.Parallel()

	db := &fakeStore{
		getConflicts: func(_ context.Context, project string) ([]store.Conflict, error) {
			assert.Equal(t, "vposer", project)
			return []store.Conflict{
				{
					Package:      "trimesh",
					ManifestPath: "requirements.txt",
					Declarations: []store.DeclarationDetail{
						{Project: "vposer", ManifestPath: "requirements.txt", Package: "trimesh", Raw: "trimesh", Line: 2},
						{Project: "vposer", ManifestPath: "requirements.txt", Package: "trimesh", Raw: "trimesh==3.9.5", Line: 7,
							PinnedVersion: sql.NullString{String: "3.9.5", Valid: true}},
					},
				},
			}, nil
		},
	}
	srv := newTestServer(db)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/v1/projects/vposer/conflicts")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got argusapi.ListConflictsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, "trimesh", got.Conflicts[0].Package)
	require.Len(t, got.Conflicts[0].Declarations, 2)
	assert.Equal(t, "trimesh==3.9.5", got.Conflicts[0].Declarations[1].Raw)
}
