package secrets

import (
	"fmt"
	"os"
	"regexp"

	"github.com/BurntSushi/toml"
)

// Config configures the scanner.
type Config struct {
	// Enabled controls whether scanning is active (default: true).
	Enabled bool `koanf:"enabled"`

	// Rules defines the detection rules. Empty means DefaultRules.
	Rules []Rule `koanf:"rules"`

	// Allowlist suppresses known-safe matches.
	Allowlist Allowlist `koanf:"allowlist"`

	compiledRules     []*compiledRule
	compiledAllowlist []*regexp.Regexp
}

// Allowlist suppresses findings either by rule ID or by a regex the
// matched span must satisfy.
type Allowlist struct {
	// RuleIDs disables the named rules entirely.
	RuleIDs []string `toml:"rule_ids" koanf:"rule_ids"`

	// Regexes suppress any finding whose matched span also matches one
	// of these patterns (e.g. documented example credentials).
	Regexes []string `toml:"regexes" koanf:"regexes"`
}

type compiledRule struct {
	Rule
	pattern  *regexp.Regexp
	keywords []*regexp.Regexp
}

// DefaultConfig returns a configuration with the standard rule set.
func DefaultConfig() *Config {
	return &Config{
		Enabled: true,
		Rules:   DefaultRules(),
	}
}

// LoadAllowlist reads a TOML allowlist file into cfg. Patterns are
// validated here so a bad file fails loudly at startup, not mid-scan.
func (c *Config) LoadAllowlist(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading allowlist: %w", err)
	}
	var al Allowlist
	if err := toml.Unmarshal(data, &al); err != nil {
		return fmt.Errorf("parsing allowlist: %w", err)
	}
	for _, pattern := range al.Regexes {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("allowlist pattern %q: %w", pattern, err)
		}
	}
	c.Allowlist = al
	return nil
}

// Validate compiles rules and allowlist patterns.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Rules) == 0 {
		c.Rules = DefaultRules()
	}

	disabled := make(map[string]bool, len(c.Allowlist.RuleIDs))
	for _, id := range c.Allowlist.RuleIDs {
		disabled[id] = true
	}

	c.compiledRules = make([]*compiledRule, 0, len(c.Rules))
	for i, rule := range c.Rules {
		if rule.ID == "" {
			return fmt.Errorf("rule %d: ID is required", i)
		}
		if rule.Pattern == "" {
			return fmt.Errorf("rule %s: pattern is required", rule.ID)
		}
		if disabled[rule.ID] {
			continue
		}

		pattern, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return fmt.Errorf("rule %s: invalid pattern: %w", rule.ID, err)
		}

		compiled := &compiledRule{
			Rule:     rule,
			pattern:  pattern,
			keywords: make([]*regexp.Regexp, 0, len(rule.Keywords)),
		}
		for _, kw := range rule.Keywords {
			kwPattern, err := regexp.Compile("(?i)" + regexp.QuoteMeta(kw))
			if err != nil {
				return fmt.Errorf("rule %s: invalid keyword %q: %w", rule.ID, kw, err)
			}
			compiled.keywords = append(compiled.keywords, kwPattern)
		}
		c.compiledRules = append(c.compiledRules, compiled)
	}

	c.compiledAllowlist = make([]*regexp.Regexp, 0, len(c.Allowlist.Regexes))
	for i, pattern := range c.Allowlist.Regexes {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("allowlist %d: invalid pattern: %w", i, err)
		}
		c.compiledAllowlist = append(c.compiledAllowlist, compiled)
	}

	return nil
}
