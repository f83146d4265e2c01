package lint

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/argus-deps/argus/internal/requirements"
)

// Config adjusts which rules run and how their findings are classified.
// The zero value runs every registered rule at its default severity.
type Config struct {
	Rules map[string]RuleConfig `yaml:"rules"`
	// Allow lists packages (in any spelling) whose findings are suppressed.
	Allow []string `yaml:"allow"`
}

// RuleConfig holds the per-rule settings from the config file.
type RuleConfig struct {
	// Enabled defaults to true when omitted.
	Enabled *bool `yaml:"enabled"`
	// Severity overrides the rule's built-in severity when set.
	Severity Severity `yaml:"severity"`
	// Allow lists packages exempt from this rule only.
	Allow []string `yaml:"allow"`
}

// LoadConfig reads a YAML lint configuration from path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read lint config: %w", err)
	}
	var conf Config
	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("unable to parse lint config %s: %w", path, err)
	}
	for _, rc := range conf.Rules {
		if err := rc.validate(); err != nil {
			return nil, fmt.Errorf("invalid lint config %s: %w", path, err)
		}
	}
	return &conf, nil
}

func (rc RuleConfig) validate() error {
	switch rc.Severity {
	case "", SeverityError, SeverityWarning, SeverityInfo:
		return nil
	default:
		return fmt.Errorf("unknown severity %q", rc.Severity)
	}
}

// enabled reports whether the rule with the given ID should run.
func (c *Config) enabled(id string) bool {
	if c == nil {
		return true
	}
	rc, ok := c.Rules[id]
	if !ok || rc.Enabled == nil {
		return true
	}
	return *rc.Enabled
}

// severity returns the effective severity for a rule.
func (c *Config) severity(id string, def Severity) Severity {
	if c == nil {
		return def
	}
	if rc, ok := c.Rules[id]; ok && rc.Severity != "" {
		return rc.Severity
	}
	return def
}

// allowed reports whether findings about pkg are suppressed, globally or for
// the specific rule.
func (c *Config) allowed(id, pkg string) bool {
	if c == nil || pkg == "" {
		return false
	}
	canon := requirements.CanonicalName(pkg)
	for _, a := range c.Allow {
		if requirements.CanonicalName(a) == canon {
			return true
		}
	}
	if rc, ok := c.Rules[id]; ok {
		for _, a := range rc.Allow {
			if requirements.CanonicalName(a) == canon {
				return true
			}
		}
	}
	return false
}
