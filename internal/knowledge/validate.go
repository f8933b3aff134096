package knowledge

import (
	"fmt"
)

// LowConfidenceThreshold is the confidence below which Validate emits a
// warning. Low-confidence entries are stored but excluded from default
// queries.
const LowConfidenceThreshold = 0.5

// ValidationResult accumulates everything wrong (or questionable) about
// an entry. Errors block persistence; warnings do not.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *ValidationResult) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks an entry against the schema and business rules.
//
// Checks run in a fixed order: required fields, enum membership, scope
// grammar, length caps, confidence range, evidence shape, provenance
// rules. Every failure is accumulated; the caller receives the complete
// list, not just the first. Validate is pure and touches no storage.
func Validate(e *Entry) ValidationResult {
	var r ValidationResult

	// Required fields.
	if e.Section == "" {
		r.addError("section is required")
	}
	if e.Kind == "" {
		r.addError("kind is required")
	}
	if e.Subject == "" {
		r.addError("subject is required")
	}
	if e.Scope == "" {
		r.addError("scope is required")
	}
	if e.Summary == "" {
		r.addError("summary is required")
	}
	if e.Provenance.SourceType == "" {
		r.addError("provenance.source_type is required")
	}

	// Enum membership.
	if e.Section != "" && !e.Section.Valid() {
		r.addError("section %q is not one of %v", e.Section, Sections)
	}
	if e.Kind != "" && !e.Kind.Valid() {
		r.addError("kind %q is not one of %v", e.Kind, Kinds)
	}
	if e.Status != "" && !e.Status.Valid() {
		r.addError("status %q is not one of %v", e.Status, Statuses)
	}

	// Scope grammar.
	if e.Scope != "" {
		if _, err := ParseScope(string(e.Scope)); err != nil {
			r.addError("scope: %v", err)
		}
	}

	// Length caps.
	if len(e.Summary) > MaxSummaryLength {
		r.addError("summary exceeds %d characters (%d)", MaxSummaryLength, len(e.Summary))
	}
	if len(e.Content) > MaxContentLength {
		r.addError("content exceeds %d characters (%d)", MaxContentLength, len(e.Content))
	}

	// Confidence range.
	if e.Confidence < 0.0 || e.Confidence > 1.0 {
		r.addError("confidence %g is outside [0.0, 1.0]", e.Confidence)
	}

	// Evidence: non-empty, every element complete and enum-valid.
	if len(e.Evidence) == 0 {
		r.addError("evidence must not be empty")
	}
	for i, ev := range e.Evidence {
		if ev.Type == "" {
			r.addError("evidence[%d].type is required", i)
		} else if !ev.Type.Valid() {
			r.addError("evidence[%d].type %q is not one of %v", i, ev.Type, EvidenceTypes)
		}
		if ev.URI == "" {
			r.addError("evidence[%d].uri is required", i)
		}
		if ev.Note == "" {
			r.addError("evidence[%d].note is required", i)
		}
	}

	// Provenance.
	if e.Provenance.SourceType != "" && !e.Provenance.SourceType.Valid() {
		r.addError("provenance.source_type %q is not one of %v", e.Provenance.SourceType, SourceTypes)
	}
	if e.Provenance.SourceType == SourceFieldNote && e.Provenance.SourceRef == "" {
		r.addError("provenance.source_ref is required when source_type is field_note")
	}

	// Low confidence is stored but flagged.
	if e.Confidence >= 0.0 && e.Confidence < LowConfidenceThreshold {
		r.addWarning("confidence %g is below %g; entry will be excluded from default queries", e.Confidence, LowConfidenceThreshold)
	}

	r.Valid = len(r.Errors) == 0
	return r
}
