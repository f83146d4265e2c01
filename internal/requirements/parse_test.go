package requirements

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequirement(t *testing.T) {
	type testCase struct {
		name     string
		input    string
		expected Requirement
		wantErr  bool
	}
	cases := []testCase{
		{
			name:     "bare name",
			input:    "trimesh",
			expected: Requirement{Name: "trimesh"},
		},
		{
			name:  "exact pin",
			input: "trimesh==3.9.5",
			expected: Requirement{
				Name:       "trimesh",
				Specifiers: SpecifierSet{{Op: "==", Version: "3.9.5"}},
			},
		},
		{
			name:  "four segment pin",
			input: "opencv-python==4.5.1.48",
			expected: Requirement{
				Name:       "opencv-python",
				Specifiers: SpecifierSet{{Op: "==", Version: "4.5.1.48"}},
			},
		},
		{
			name:  "minimum version",
			input: "torch>=1.7.1",
			expected: Requirement{
				Name:       "torch",
				Specifiers: SpecifierSet{{Op: ">=", Version: "1.7.1"}},
			},
		},
		{
			name:  "extras",
			input: "smplx[all]",
			expected: Requirement{
				Name:   "smplx",
				Extras: []string{"all"},
			},
		},
		{
			name:  "extras with constraint and spaces",
			input: "uvicorn[standard] >= 0.18, <0.20",
			expected: Requirement{
				Name:   "uvicorn",
				Extras: []string{"standard"},
				Specifiers: SpecifierSet{
					{Op: ">=", Version: "0.18"},
					{Op: "<", Version: "0.20"},
				},
			},
		},
		{
			name:  "compatible release with marker",
			input: `pywin32~=305 ; sys_platform == "win32"`,
			expected: Requirement{
				Name:       "pywin32",
				Specifiers: SpecifierSet{{Op: "~=", Version: "305"}},
				Marker:     `sys_platform == "win32"`,
			},
		},
		{
			name:  "vcs reference with egg",
			input: "git+https://github.com/nghorbani/configer@v1.0#egg=configer",
			expected: Requirement{
				Name: "configer",
				VCS: &VCSRef{
					Type: VCSGit,
					URL:  "https://github.com/nghorbani/configer",
					Ref:  "v1.0",
				},
			},
		},
		{
			name:  "vcs reference without revision",
			input: "git+https://github.com/MPI-IS/mesh#egg=psbody-mesh",
			expected: Requirement{
				Name: "psbody-mesh",
				VCS: &VCSRef{
					Type: VCSGit,
					URL:  "https://github.com/MPI-IS/mesh",
				},
			},
		},
		{
			name:  "vcs ssh reference keeps user",
			input: "git+ssh://git@github.com/example/private@main#egg=private",
			expected: Requirement{
				Name: "private",
				VCS: &VCSRef{
					Type: VCSGit,
					URL:  "ssh://git@github.com/example/private",
					Ref:  "main",
				},
			},
		},
		{
			name:  "vcs reference with subdirectory",
			input: "git+https://github.com/example/mono@v2#egg=pkg&subdirectory=python",
			expected: Requirement{
				Name: "pkg",
				VCS: &VCSRef{
					Type:         VCSGit,
					URL:          "https://github.com/example/mono",
					Ref:          "v2",
					Subdirectory: "python",
				},
			},
		},
		{
			name:  "direct url reference",
			input: "foo @ https://example.com/foo-1.0.tar.gz",
			expected: Requirement{
				Name: "foo",
				URL:  "https://example.com/foo-1.0.tar.gz",
			},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "operator only", input: "==1.0", wantErr: true},
		{name: "bad specifier", input: "trimesh=3.9.5", wantErr: true},
		{name: "unterminated extras", input: "smplx[all", wantErr: true},
		{name: "empty extras", input: "smplx[]", wantErr: true},
		{name: "empty marker", input: "foo ;", wantErr: true},
		{name: "empty vcs revision", input: "git+https://github.com/a/b@#egg=b", wantErr: true},
		{name: "leading punctuation", input: "-not-an-option-target", wantErr: true},
	}
	t.Parallel()
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseRequirement(tc.input)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseManifest(t *testing.T) {
	manifest := strings.Join([]string{
		"# body visualization stack",
		"",
		"body-pose-visualizer>=1.1",
		"trimesh",
		"pyrender  # rendering backend",
		"smplx[all]",
		"torch==1.7.1",
		"git+https://github.com/nghorbani/configer#egg=configer",
		"",
		"# merged from the sub-package requirements",
		"trimesh==3.9.5",
		"opencv-python",
		"opencv-python==4.5.1.48",
	}, "\n")

	f, err := Parse(strings.NewReader(manifest), "requirements.txt")
	require.NoError(t, err)
	assert.Empty(t, f.Errors)

	// comment and blank lines are excluded, everything else parses
	require.Len(t, f.Requirements, 9)

	names := make([]string, len(f.Requirements))
	for i, r := range f.Requirements {
		names[i] = r.Name
	}
	assert.Equal(t, []string{
		"body-pose-visualizer", "trimesh", "pyrender", "smplx", "torch",
		"configer", "trimesh", "opencv-python", "opencv-python",
	}, names)

	// entries keep their source ordering and line numbers
	assert.Equal(t, 3, f.Requirements[0].Line)
	assert.Equal(t, "trimesh", f.Requirements[1].Name)
	assert.Equal(t, 4, f.Requirements[1].Line)
	last := f.Requirements[len(f.Requirements)-1]
	assert.Equal(t, "opencv-python", last.Name)
	assert.Equal(t, 13, last.Line)
	pin, ok := last.Pinned()
	assert.True(t, ok)
	assert.Equal(t, "4.5.1.48", pin)

	// the inline comment is stripped from the raw text
	assert.Equal(t, "pyrender", f.Requirements[2].Raw)
}

func TestParseManifestCollectsErrors(t *testing.T) {
	manifest := strings.Join([]string{
		"numpy==1.20.1",
		"???not a requirement",
		"scipy>=1.6",
		"--no-such-option value",
	}, "\n")

	f, err := Parse(strings.NewReader(manifest), "requirements.txt")
	require.NoError(t, err)
	require.Len(t, f.Requirements, 2)
	require.Len(t, f.Errors, 2)
	assert.Equal(t, 2, f.Errors[0].Line)
	assert.Equal(t, 4, f.Errors[1].Line)
	assert.Contains(t, f.Errors[1].Error(), "requirements.txt:4")
}

func TestParseManifestOptions(t *testing.T) {
	manifest := strings.Join([]string{
		`--index-url https://pypi.example.com/simple`,
		`-f https://download.pytorch.org/whl/torch_stable.html`,
		`-r base.txt`,
		`-e git+https://github.com/nghorbani/human_body_prior@master#egg=human-body-prior`,
		`numpy \`,
		`    ==1.20.1`,
	}, "\n")

	f, err := Parse(strings.NewReader(manifest), "requirements.txt")
	require.NoError(t, err)
	assert.Empty(t, f.Errors)
	assert.Equal(t, []string{"https://pypi.example.com/simple"}, f.IndexURLs)
	assert.Equal(t, []string{"https://download.pytorch.org/whl/torch_stable.html"}, f.FindLinks)
	assert.Equal(t, []string{"base.txt"}, f.Includes)

	require.Len(t, f.Requirements, 2)
	editable := f.Requirements[0]
	assert.True(t, editable.Editable)
	assert.Equal(t, "human-body-prior", editable.Name)
	require.NotNil(t, editable.VCS)
	assert.Equal(t, "master", editable.VCS.Ref)

	// the backslash continuation folds into a single logical entry
	joined := f.Requirements[1]
	assert.Equal(t, "numpy", joined.Name)
	assert.Equal(t, 5, joined.Line)
	pin, ok := joined.Pinned()
	assert.True(t, ok)
	assert.Equal(t, "1.20.1", pin)
}

func TestCanonicalName(t *testing.T) {
	cases := map[string]string{
		"Torch-Geometric":  "torch-geometric",
		"torch_geometric":  "torch-geometric",
		"torch.geometric":  "torch-geometric",
		"opencv-python":    "opencv-python",
		"PyYAML":           "pyyaml",
		"zope.interface":   "zope-interface",
		"weird__.-_name":   "weird-name",
		"human_body_prior": "human-body-prior",
	}
	for in, want := range cases {
		assert.Equal(t, want, CanonicalName(in), "input %q", in)
	}
}
