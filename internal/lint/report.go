package lint

import (
	"sort"

	"github.com/argus-deps/argus/internal/requirements"
)

// A Report is the outcome of linting one manifest.
type Report struct {
	File     string    `json:"file"`
	Findings []Finding `json:"findings"`
}

// Run evaluates the given rules against a parsed manifest, applying the
// configuration's enable/disable, severity, and allowlist settings.  Findings
// are ordered by line, then rule ID.
func Run(f *requirements.File, rules []Rule, conf *Config) Report {
	rep := Report{File: f.Name}
	for _, rule := range rules {
		if !conf.enabled(rule.ID()) {
			continue
		}
		for _, finding := range rule.Evaluate(f) {
			if conf.allowed(rule.ID(), finding.Package) {
				continue
			}
			finding.Severity = conf.severity(rule.ID(), finding.Severity)
			rep.Findings = append(rep.Findings, finding)
		}
	}
	sort.SliceStable(rep.Findings, func(i, j int) bool {
		lhs, rhs := rep.Findings[i], rep.Findings[j]
		if lhs.Line != rhs.Line {
			return lhs.Line < rhs.Line
		}
		return lhs.RuleID < rhs.RuleID
	})
	return rep
}

// HasErrors reports whether any finding is classified as an error.  This
// drives the CLI exit code.
func (r Report) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Count returns the number of findings at the given severity.
func (r Report) Count(sev Severity) int {
	n := 0
	for _, f := range r.Findings {
		if f.Severity == sev {
			n++
		}
	}
	return n
}
