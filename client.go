package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bufbuild/httplb"

	"github.com/argus-deps/argus/argusapi"
)

// apiClient is a thin JSON-over-HTTP wrapper around the argus server API.  It
// uses a load-balancing HTTP client so that CLI invocations inside K8S spread
// requests across server pods rather than hammering a single one.
type apiClient struct {
	base string
	http *httplb.Client
}

// newAPIClient constructs a client for the argus server at addr
func newAPIClient(addr string, plaintext bool) *apiClient {
	scheme := "https"
	if plaintext {
		scheme = "http"
	}
	return &apiClient{
		base: scheme + "://" + addr,
		http: httplb.NewClient(),
	}
}

// Close releases the underlying HTTP connections
func (c *apiClient) Close() error {
	return c.http.Close()
}

// serverError represents a non-2xx response from the argus server
type serverError struct {
	status  int
	message string
}

func (e *serverError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("server returned HTTP %d: %s", e.status, e.message)
	}
	return fmt.Sprintf("server returned HTTP %d", e.status)
}

// CreateProject registers a project with the server, returning the stored representation
func (c *apiClient) CreateProject(ctx context.Context, p argusapi.Project) (argusapi.Project, error) {
	req := argusapi.CreateProjectRequest{Project: p}
	var resp argusapi.CreateProjectResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/projects", req, &resp); err != nil {
		return argusapi.Project{}, err
	}
	return resp.Project, nil
}

// ListProjects retrieves one page of tracked projects matching filter
func (c *apiClient) ListProjects(ctx context.Context, filter, pageToken string) (argusapi.ListProjectsResponse, error) {
	var resp argusapi.ListProjectsResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/projects"+listQuery(filter, pageToken), nil, &resp)
	return resp, err
}

// PutManifest ingests a manifest for the named project, replacing any prior
// declarations recorded for the same project/path pair
func (c *apiClient) PutManifest(ctx context.Context, project string, req argusapi.PutManifestRequest) (argusapi.PutManifestResponse, error) {
	var resp argusapi.PutManifestResponse
	p := "/api/v1/projects/" + url.PathEscape(project) + "/manifests"
	err := c.doJSON(ctx, http.MethodPut, p, req, &resp)
	return resp, err
}

// ListManifests retrieves the manifests ingested for the named project
func (c *apiClient) ListManifests(ctx context.Context, project string) (argusapi.ListManifestsResponse, error) {
	var resp argusapi.ListManifestsResponse
	p := "/api/v1/projects/" + url.PathEscape(project) + "/manifests"
	err := c.doJSON(ctx, http.MethodGet, p, nil, &resp)
	return resp, err
}

// ListPackages retrieves one page of tracked packages matching filter
func (c *apiClient) ListPackages(ctx context.Context, filter, pageToken string) (argusapi.ListPackagesResponse, error) {
	var resp argusapi.ListPackagesResponse
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/packages"+listQuery(filter, pageToken), nil, &resp)
	return resp, err
}

// ListDeclarations retrieves one page of manifest declarations of the named package
func (c *apiClient) ListDeclarations(ctx context.Context, pkg, pageToken string) (argusapi.ListDeclarationsResponse, error) {
	var resp argusapi.ListDeclarationsResponse
	p := "/api/v1/packages/" + url.PathEscape(pkg) + "/declarations" + listQuery("", pageToken)
	err := c.doJSON(ctx, http.MethodGet, p, nil, &resp)
	return resp, err
}

// ListConflicts retrieves the duplicate-declaration conflicts recorded for the named project
func (c *apiClient) ListConflicts(ctx context.Context, project string) (argusapi.ListConflictsResponse, error) {
	var resp argusapi.ListConflictsResponse
	p := "/api/v1/projects/" + url.PathEscape(project) + "/conflicts"
	err := c.doJSON(ctx, http.MethodGet, p, nil, &resp)
	return resp, err
}

// defaultPageSize is the page size requested by the list calls.  A size is
// always sent: an unpaged request would return the full result set with no
// paging cursor to drain.
const defaultPageSize = 100

// listQuery encodes the shared filter/pagination query parameters for list calls
func listQuery(filter, pageToken string) string {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if pageToken != "" {
		q.Set("page_token", pageToken)
	}
	q.Set("page_size", strconv.Itoa(defaultPageSize))
	return "?" + q.Encode()
}

// doJSON executes a single API call, marshaling in (if non-nil) as the request
// body and unmarshaling the response into out (if non-nil).  Calls that fail
// with a gateway error are retried via retryOp.
func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("unable to marshal request payload: %w", err)
		}
	}

	resp, err := retryOp(func() (*http.Response, error) {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			se := &serverError{status: resp.StatusCode}
			var apiErr argusapi.ErrorResponse
			if json.NewDecoder(resp.Body).Decode(&apiErr) == nil {
				se.message = apiErr.Error
			}
			_ = resp.Body.Close()
			return nil, se
		}
		return resp, nil
	})
	if err != nil {
		return err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("unable to decode server response: %w", err)
	}
	return nil
}
