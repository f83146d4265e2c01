package lint

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/argus-deps/argus/internal/requirements"
)

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// A Finding is a single diagnostic produced by a rule against a manifest.
type Finding struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line"`
	// Package is the canonical name of the package the finding is about,
	// empty for findings not tied to a package (ex: invalid lines).
	Package string `json:"package,omitempty"`
	Message string `json:"message"`
	// Evidence contains simple key-value string pairs supporting the finding.
	Evidence map[string]string `json:"evidence,omitempty"`
}

// Rule checks one consistency property of a parsed manifest.  Rules only
// inspect the parsed file; they never touch the network or the filesystem.
type Rule interface {
	ID() string
	Title() string
	Description() string
	Severity() Severity
	Evaluate(f *requirements.File) []Finding
}

var (
	registry = make(map[string]Rule)
	mu       sync.RWMutex
)

// Register adds a rule to the package registry.  Registering two rules with
// the same ID is a programming error.
func Register(r Rule) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[r.ID()]; exists {
		panic(fmt.Sprintf("lint rule %s already registered", r.ID()))
	}
	registry[r.ID()] = r
}

// List returns all registered rules ordered by ID.
func List() []Rule {
	mu.RLock()
	defer mu.RUnlock()
	rules := make([]Rule, 0, len(registry))
	for _, r := range registry {
		rules = append(rules, r)
	}
	sort.Slice(rules, func(i, j int) bool {
		return rules[i].ID() < rules[j].ID()
	})
	return rules
}

// Resolve maps a comma-separated list of rule IDs to rules.  An empty
// selector selects every registered rule.
func Resolve(selector string) ([]Rule, error) {
	if selector == "" {
		return List(), nil
	}
	mu.RLock()
	defer mu.RUnlock()
	var selected []Rule
	for _, id := range strings.Split(selector, ",") {
		id = strings.TrimSpace(id)
		r, ok := registry[id]
		if !ok {
			return nil, fmt.Errorf("rule not found: %s", id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}
