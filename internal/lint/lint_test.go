package lint

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/argus-deps/argus/internal/requirements"
)

func parseManifest(t *testing.T, lines ...string) *requirements.File {
	t.Helper()
	f, err := requirements.Parse(strings.NewReader(strings.Join(lines, "\n")), "requirements.txt")
	require.NoError(t, err)
	return f
}

func findingsFor(rep Report, ruleID string) []Finding {
	var out []Finding
	for _, f := range rep.Findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

func TestDuplicateDeclarations(t *testing.T) {
	// trimesh and opencv-python each declared unpinned and then pinned by a
	// merged sub-package manifest
	f := parseManifest(t,
		"trimesh",
		"pyrender==0.1.45",
		"opencv-python",
		"# merged",
		"trimesh==3.9.5",
		"opencv-python==4.5.1.48",
	)
	rep := Run(f, List(), nil)

	dups := findingsFor(rep, "duplicate-declaration")
	require.Len(t, dups, 2)
	assert.Equal(t, "trimesh", dups[0].Package)
	assert.Equal(t, 5, dups[0].Line)
	assert.Equal(t, "opencv-python", dups[1].Package)
	assert.Equal(t, 6, dups[1].Line)

	// an unconstrained line and a pin are jointly satisfiable, so the
	// conflict rule stays quiet here
	assert.Empty(t, findingsFor(rep, "conflicting-constraints"))
	assert.True(t, rep.HasErrors())
}

func TestDuplicateMatchingAcrossSpellings(t *testing.T) {
	f := parseManifest(t,
		"human_body_prior",
		"Human-Body-Prior==2.0",
	)
	rep := Run(f, List(), nil)
	dups := findingsFor(rep, "duplicate-declaration")
	require.Len(t, dups, 1)
	assert.Equal(t, "human-body-prior", dups[0].Package)
}

func TestConflictingConstraints(t *testing.T) {
	f := parseManifest(t,
		"torch==1.7.1",
		"torchvision>=0.8",
		"torch==1.10.0",
	)
	rep := Run(f, List(), nil)
	conflicts := findingsFor(rep, "conflicting-constraints")
	require.Len(t, conflicts, 1)
	assert.Equal(t, "torch", conflicts[0].Package)
	assert.Equal(t, 3, conflicts[0].Line)
	assert.Contains(t, conflicts[0].Message, "torch==1.7.1")
}

func TestInvalidLine(t *testing.T) {
	f := parseManifest(t,
		"numpy==1.20.1",
		"!!bogus!!",
	)
	rep := Run(f, List(), nil)
	inv := findingsFor(rep, "invalid-line")
	require.Len(t, inv, 1)
	assert.Equal(t, 2, inv[0].Line)
	assert.Equal(t, SeverityError, inv[0].Severity)
}

func TestUnpinnedAndVCSRules(t *testing.T) {
	f := parseManifest(t,
		"trimesh",
		"scipy>=1.6",
		"torch==1.7.1",
		"git+https://github.com/MPI-IS/mesh",
		"git+https://github.com/nghorbani/configer@v1.0#egg=configer",
	)
	rep := Run(f, List(), nil)

	unpinned := findingsFor(rep, "unpinned-requirement")
	require.Len(t, unpinned, 2)
	assert.Equal(t, "trimesh", unpinned[0].Package)
	assert.Equal(t, "scipy", unpinned[1].Package)

	unnamed := findingsFor(rep, "unnamed-vcs-reference")
	require.Len(t, unnamed, 1)
	assert.Equal(t, 4, unnamed[0].Line)

	// warnings alone do not fail the run
	assert.False(t, rep.HasErrors())
	assert.Equal(t, 3, rep.Count(SeverityWarning))
}

func TestNonCanonicalName(t *testing.T) {
	f := parseManifest(t, "PyYAML==5.4", "pyyaml-include==1.2")
	rep := Run(f, List(), nil)
	infos := findingsFor(rep, "non-canonical-name")
	require.Len(t, infos, 1)
	assert.Equal(t, "pyyaml", infos[0].Package)
}

func TestConfigDisableAndOverride(t *testing.T) {
	f := parseManifest(t, "trimesh", "trimesh==3.9.5")

	off := false
	conf := &Config{
		Rules: map[string]RuleConfig{
			"unpinned-requirement": {Enabled: &off},
			"duplicate-declaration": {
				Severity: SeverityWarning,
			},
		},
	}
	rep := Run(f, List(), conf)
	assert.Empty(t, findingsFor(rep, "unpinned-requirement"))

	dups := findingsFor(rep, "duplicate-declaration")
	require.Len(t, dups, 1)
	assert.Equal(t, SeverityWarning, dups[0].Severity)
	assert.False(t, rep.HasErrors())
}

func TestConfigAllowlist(t *testing.T) {
	f := parseManifest(t, "trimesh", "opencv-python")
	conf := &Config{
		Allow: []string{"Trimesh"},
		Rules: map[string]RuleConfig{
			"unpinned-requirement": {Allow: []string{"opencv_python"}},
		},
	}
	rep := Run(f, List(), conf)
	assert.Empty(t, findingsFor(rep, "unpinned-requirement"))
}

func TestResolveSelector(t *testing.T) {
	rules, err := Resolve("duplicate-declaration, invalid-line")
	require.NoError(t, err)
	require.Len(t, rules, 2)

	_, err = Resolve("no-such-rule")
	assert.Error(t, err)

	all, err := Resolve("")
	require.NoError(t, err)
	assert.Len(t, all, len(List()))
}
