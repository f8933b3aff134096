package secrets

import (
	"fmt"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// Scanner checks entries for credential material before persistence.
type Scanner struct {
	config *Config
}

// Finding identifies a detected secret without its value.
type Finding struct {
	// Field names where the secret was found: "content", "summary",
	// or "evidence[i].uri".
	Field string `json:"field"`

	// RuleID identifies which rule matched.
	RuleID string `json:"rule_id"`

	// Description explains what was found.
	Description string `json:"description"`

	// Severity indicates the importance.
	Severity string `json:"severity"`

	// The matched text is deliberately not recorded.
}

// ScanResult is the outcome of scanning one entry.
type ScanResult struct {
	// HasSecrets reports whether any detector matched.
	HasSecrets bool `json:"has_secrets"`

	// Errors holds one message per match, naming the field and rule
	// but never the matched text.
	Errors []string `json:"errors,omitempty"`

	// Findings carries the structured detections.
	Findings []Finding `json:"findings,omitempty"`
}

// New creates a Scanner. A nil config selects DefaultConfig.
func New(cfg *Config) (*Scanner, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Scanner{config: cfg}, nil
}

// MustNew creates a Scanner, panicking on a bad config.
func MustNew(cfg *Config) *Scanner {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Enabled reports whether scanning is active.
func (s *Scanner) Enabled() bool {
	return s.config.Enabled
}

// ScanEntry runs every rule against the entry's content, summary, and
// evidence URIs.
func (s *Scanner) ScanEntry(e *knowledge.Entry) ScanResult {
	var result ScanResult
	if !s.config.Enabled {
		return result
	}

	s.scanField(&result, "content", e.Content)
	s.scanField(&result, "summary", e.Summary)
	for i, ev := range e.Evidence {
		s.scanField(&result, fmt.Sprintf("evidence[%d].uri", i), ev.URI)
	}

	result.HasSecrets = len(result.Findings) > 0
	return result
}

// ScanText runs every rule against a single piece of text, reporting
// matches under the given field name.
func (s *Scanner) ScanText(field, text string) ScanResult {
	var result ScanResult
	if !s.config.Enabled {
		return result
	}
	s.scanField(&result, field, text)
	result.HasSecrets = len(result.Findings) > 0
	return result
}

func (s *Scanner) scanField(result *ScanResult, field, text string) {
	if text == "" {
		return
	}
	for _, rule := range s.config.compiledRules {
		if len(rule.keywords) > 0 && !s.anyKeyword(rule, text) {
			continue
		}
		matches := rule.pattern.FindAllString(text, -1)
		matched := false
		for _, m := range matches {
			if s.allowed(m) {
				continue
			}
			matched = true
			break
		}
		if !matched {
			continue
		}
		result.Findings = append(result.Findings, Finding{
			Field:       field,
			RuleID:      rule.ID,
			Description: rule.Description,
			Severity:    rule.Severity,
		})
		result.Errors = append(result.Errors,
			fmt.Sprintf("%s: detected %s (rule %s)", field, rule.Description, rule.ID))
	}
}

func (s *Scanner) anyKeyword(rule *compiledRule, text string) bool {
	for _, kw := range rule.keywords {
		if kw.MatchString(text) {
			return true
		}
	}
	return false
}

func (s *Scanner) allowed(match string) bool {
	for _, re := range s.config.compiledAllowlist {
		if re.MatchString(match) {
			return true
		}
	}
	return false
}
