package secrets

// Rule defines one secret detection pattern.
type Rule struct {
	// ID is the unique identifier for this rule.
	ID string `toml:"id"`

	// Description explains what this rule detects.
	Description string `toml:"description"`

	// Pattern is the regex matched against entry fields.
	Pattern string `toml:"pattern"`

	// Keywords, when present, must appear in the text before the
	// pattern is evaluated. Cheap pre-filter for expensive patterns.
	Keywords []string `toml:"keywords"`

	// Severity is high, medium, or low.
	Severity string `toml:"severity"`
}

// DefaultRules returns the fixed detection set. Patterns with
// self-identifying prefixes (ghp_, xoxb-, sk_live_, ...) carry no
// keywords; generic shapes keep a keyword pre-filter to limit false
// positives.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "aws-access-key-id",
			Description: "AWS Access Key ID",
			Pattern:     `(?i)(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|AIPA|ANPA|ANVA|ASIA)[A-Z0-9]{16}`,
			Severity:    "high",
		},
		{
			ID:          "aws-secret-access-key",
			Description: "AWS Secret Access Key",
			Pattern:     `(?i)(?:aws_secret_access_key|aws_secret_key|secret_access_key)\s*[:=]\s*['"]?([A-Za-z0-9/+=]{40})['"]?`,
			Keywords:    []string{"aws", "secret"},
			Severity:    "high",
		},
		{
			ID:          "generic-api-key",
			Description: "Generic API Key",
			Pattern:     `(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"]?([A-Za-z0-9_\-]{16,64})['"]?`,
			Keywords:    []string{"api", "key"},
			Severity:    "high",
		},
		{
			ID:          "generic-secret",
			Description: "Generic Secret Assignment",
			Pattern:     `(?i)(?:secret|password|passwd|pwd)\s*[:=]\s*['"]?([^\s'"]{8,})['"]?`,
			Keywords:    []string{"secret", "password", "passwd", "pwd"},
			Severity:    "high",
		},
		{
			ID:          "private-key",
			Description: "PEM Private Key",
			Pattern:     `-----BEGIN (?:RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY(?:[- ]BLOCK)?-----`,
			Severity:    "high",
		},
		{
			ID:          "github-token",
			Description: "GitHub Token",
			Pattern:     `(?:ghp|gho|ghu|ghs)_[A-Za-z0-9]{36}`,
			Severity:    "high",
		},
		{
			ID:          "github-fine-grained",
			Description: "GitHub Fine-grained Personal Access Token",
			Pattern:     `github_pat_[A-Za-z0-9_]{22,}`,
			Severity:    "high",
		},
		{
			ID:          "gitlab-token",
			Description: "GitLab Personal Access Token",
			Pattern:     `glpat-[A-Za-z0-9\-]{20,}`,
			Severity:    "high",
		},
		{
			ID:          "slack-token",
			Description: "Slack Token",
			Pattern:     `xox[baprs]-[A-Za-z0-9\-]{10,}`,
			Severity:    "high",
		},
		{
			ID:          "stripe-key",
			Description: "Stripe API Key",
			Pattern:     `(?:sk|pk)_(?:live|test)_[A-Za-z0-9]{24,}`,
			Severity:    "high",
		},
		{
			ID:          "database-url",
			Description: "Connection URL with credentials",
			Pattern:     `(?i)(?:postgres|postgresql|mysql|mongodb|redis|amqp)://[^:\s]+:[^@\s]+@[^\s]+`,
			Severity:    "high",
		},
		{
			ID:          "jwt",
			Description: "JSON Web Token",
			Pattern:     `eyJ[A-Za-z0-9_-]{8,}\.eyJ[A-Za-z0-9_-]{8,}\.[A-Za-z0-9_-]*`,
			Severity:    "medium",
		},
		{
			ID:          "bearer-token",
			Description: "Bearer Token",
			Pattern:     `(?i)(?:authorization|bearer)\s*[:=]?\s*['"]?bearer\s+([A-Za-z0-9_\-\.]{20,})['"]?`,
			Keywords:    []string{"authorization", "bearer"},
			Severity:    "medium",
		},
		{
			ID:          "google-api-key",
			Description: "Google API Key",
			Pattern:     `AIza[A-Za-z0-9_\-]{35}`,
			Severity:    "high",
		},
		{
			ID:          "oauth-client-secret",
			Description: "OAuth Client Secret",
			Pattern:     `(?i)client[_-]?secret['":\s]*[:=]\s*['"]?[A-Za-z0-9_\-]{24,}['"]?`,
			Keywords:    []string{"client_secret", "client-secret"},
			Severity:    "high",
		},
		{
			ID:          "openai-api-key",
			Description: "OpenAI API Key",
			Pattern:     `sk-[A-Za-z0-9]{48,}`,
			Keywords:    []string{"openai", "sk-"},
			Severity:    "high",
		},
		{
			ID:          "anthropic-api-key",
			Description: "Anthropic API Key",
			Pattern:     `sk-ant-[A-Za-z0-9_\-]{90,}`,
			Severity:    "high",
		},
	}
}
