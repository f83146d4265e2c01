package pypi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/argus-deps/argus/internal/requirements"
)

// DefaultIndexURL is the public PyPI JSON API root used when no index is
// configured.
const DefaultIndexURL = "https://pypi.org/pypi"

// Getter defines a type, such as http.Client, that can perform an HTTP GET
// request and return the result.
//
// This interface is defined so that consumers and tests can provide potentially
// customized implementations, but http.DefaultClient (or some other constructed
// http.Client instance) will likely be the most common implementation used.
type Getter interface {
	Get(url string) (*http.Response, error)
}

// Client wraps a Getter and a list of package index URLs to provide the
// required index operations.  Indexes are tried in order; a 404 from one
// falls through to the next.
type Client struct {
	g       Getter
	indexes []string
}

// New returns a Client that will use g to execute HTTP requests against the
// package indexes in urls.
func New(g Getter, urls ...string) Client {
	if len(urls) == 0 {
		urls = getIndexURLs()
	}
	return Client{
		g:       g,
		indexes: urls,
	}
}

// NewFromEnv returns a Client configured from the process environment
// ($ARGUS_INDEX_URL, a comma-delimited list), falling back to the public
// PyPI index.
func NewFromEnv(g Getter) Client {
	return New(g)
}

// ProjectInfo is the package metadata returned by the index JSON API.
type ProjectInfo struct {
	Name         string
	Version      string
	Summary      string
	RequiresDist []string
}

// jsonResponse mirrors the subset of the index JSON API payload we consume.
type jsonResponse struct {
	Info struct {
		Name         string   `json:"name"`
		Version      string   `json:"version"`
		Summary      string   `json:"summary"`
		RequiresDist []string `json:"requires_dist"`
	} `json:"info"`
	Releases map[string][]struct {
		Yanked bool `json:"yanked"`
	} `json:"releases"`
}

// GetProjectVersions retrieves all published versions of the specified
// project, ordered highest to lowest.
func (c Client) GetProjectVersions(project string) ([]string, error) {
	resp, err := c.fetch(project, "")
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(resp.Releases))
	for v := range resp.Releases {
		versions = append(versions, v)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("no versions found for %s", project)
	}
	requirements.SortVersionsDesc(versions)
	return versions, nil
}

// GetLatestVersion returns the highest published version of the specified
// project, skipping pre-releases unless includePrerelease is set.
func (c Client) GetLatestVersion(project string, includePrerelease bool) (string, error) {
	versions, err := c.GetProjectVersions(project)
	if err != nil {
		return "", err
	}
	for _, v := range versions {
		if includePrerelease || !isPrerelease(v) {
			return v, nil
		}
	}
	// every release is a pre-release; return the highest one
	return versions[0], nil
}

// HasVersion reports whether the specified project version is published on
// any configured index.
func (c Client) HasVersion(project, version string) (bool, error) {
	versions, err := c.GetProjectVersions(project)
	if err != nil {
		return false, err
	}
	for _, v := range versions {
		if requirements.CompareVersions(v, version) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// GetProjectInfo retrieves the metadata for a specific project version.  If
// version is "" the latest release's metadata is returned.
func (c Client) GetProjectInfo(project, version string) (ProjectInfo, error) {
	resp, err := c.fetch(project, version)
	if err != nil {
		return ProjectInfo{}, err
	}
	return ProjectInfo{
		Name:         resp.Info.Name,
		Version:      resp.Info.Version,
		Summary:      resp.Info.Summary,
		RequiresDist: resp.Info.RequiresDist,
	}, nil
}

// fetch executes the JSON API request against each configured index in turn.
func (c Client) fetch(project, version string) (*jsonResponse, error) {
	name := requirements.CanonicalName(project)
	if name == "" {
		return nil, fmt.Errorf("project name must be provided")
	}
	for _, index := range c.indexes {
		u := strings.TrimSuffix(index, "/") + "/" + name
		if version != "" {
			u += "/" + version
		}
		u += "/json"
		resp, err := c.g.Get(u)
		if err != nil {
			return nil, fmt.Errorf("error fetching package metadata from %s: %w", index, err)
		}
		defer func() {
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
		}()
		switch resp.StatusCode {
		case http.StatusOK:
			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, fmt.Errorf("error reading the index response from %s: %w", u, err)
			}
			var payload jsonResponse
			if err := json.Unmarshal(data, &payload); err != nil {
				return nil, fmt.Errorf("error parsing the index response from %s: %w", u, err)
			}
			return &payload, nil
		case http.StatusNotFound, http.StatusGone:
			// try the next index
			continue
		default:
			return nil, fmt.Errorf("unexpected response code (%s) from %s", resp.Status, index)
		}
	}
	return nil, fmt.Errorf("project %s not found on any configured index", project)
}

func isPrerelease(v string) bool {
	ver, err := goversion.NewVersion(v)
	if err != nil {
		return false
	}
	return ver.Prerelease() != ""
}

// getIndexURLs returns the list of package indexes from $ARGUS_INDEX_URL,
// falling back to the public PyPI index when unset.
func getIndexURLs() []string {
	ev := os.Getenv("ARGUS_INDEX_URL")
	if ev == "" {
		return []string{DefaultIndexURL}
	}
	var results []string
	for _, s := range strings.Split(ev, ",") {
		if s = strings.TrimSpace(s); s != "" {
			results = append(results, s)
		}
	}
	return results
}
