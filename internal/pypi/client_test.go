package pypi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

type getterFunc func(string) (*http.Response, error)

func (f getterFunc) Get(url string) (*http.Response, error) {
	return f(url)
}

func jsonBody(s string) io.ReadCloser {
	return io.NopCloser(bytes.NewBufferString(s))
}

const trimeshPayload = `{
	"info": {"name": "trimesh", "version": "3.9.5", "summary": "Import, export, process, analyze and view triangular meshes."},
	"releases": {"3.8.0": [{}], "3.9.5": [{}], "3.10.0rc1": [{}]}
}`

func TestGetProjectVersions(t *testing.T) {
	// hard code 2 indexes so that the "first index returns 404" test will
	// actually have a 2nd index to hit
	testIndexes := []string{"https://one", "https://two"}
	type testCase struct {
		name     string
		c        Client
		expected []string
		checkErr func(*testing.T, error)
	}
	testErr := fmt.Errorf("oh no")
	cases := []testCase{
		{
			name: "server returned an error",
			c: New(getterFunc(func(string) (*http.Response, error) {
				return nil, testErr
			}), testIndexes...),
			checkErr: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, testErr)
			},
		},
		{
			name: "valid response/valid results",
			c: New(getterFunc(func(string) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       jsonBody(trimeshPayload),
				}, nil
			}), testIndexes...),
			expected: []string{"3.10.0rc1", "3.9.5", "3.8.0"},
			checkErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "first index returns 404",
			c: New(func() getterFunc {
				n := 0
				return getterFunc(func(string) (*http.Response, error) {
					if n == 0 {
						n++
						return &http.Response{
							StatusCode: http.StatusNotFound,
						}, nil
					}
					return &http.Response{
						StatusCode: http.StatusOK,
						Body:       jsonBody(trimeshPayload),
					}, nil
				})
			}(), testIndexes...),
			expected: []string{"3.10.0rc1", "3.9.5", "3.8.0"},
			checkErr: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name: "not found anywhere",
			c: New(getterFunc(func(string) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusNotFound}, nil
			}), testIndexes...),
			checkErr: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}
	t.Parallel()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := tc.c.GetProjectVersions("trimesh")
			tc.checkErr(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestGetLatestVersion(t *testing.T) {
	c := New(getterFunc(func(string) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       jsonBody(trimeshPayload),
		}, nil
	}), "https://pypi.org/pypi")

	got, err := c.GetLatestVersion("trimesh", false)
	assert.NoError(t, err)
	assert.Equal(t, "3.9.5", got)

	got, err = c.GetLatestVersion("trimesh", true)
	assert.NoError(t, err)
	assert.Equal(t, "3.10.0rc1", got)
}

func TestHasVersion(t *testing.T) {
	c := New(getterFunc(func(string) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       jsonBody(trimeshPayload),
		}, nil
	}), "https://pypi.org/pypi")

	ok, err := c.HasVersion("trimesh", "3.9.5")
	assert.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.HasVersion("trimesh", "3.9.6")
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestFetchNormalizesProjectName(t *testing.T) {
	var requested string
	c := New(getterFunc(func(url string) (*http.Response, error) {
		requested = url
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       jsonBody(trimeshPayload),
		}, nil
	}), "https://pypi.org/pypi")

	_, err := c.GetProjectInfo("Human_Body_Prior", "")
	assert.NoError(t, err)
	assert.Equal(t, "https://pypi.org/pypi/human-body-prior/json", requested)
}
