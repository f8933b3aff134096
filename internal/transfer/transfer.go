// Package transfer moves entries across store boundaries: export
// writes a filtered dump as line-delimited JSON, import loads one back
// with per-line isolation and explicit conflict resolution.
package transfer

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/store"
)

// Strategy decides what happens when an imported entry's id already
// exists in the store.
type Strategy string

const (
	// StrategySkip keeps the existing entry and records a conflict.
	StrategySkip Strategy = "skip"

	// StrategyOverwrite replaces the existing entry wholesale.
	StrategyOverwrite Strategy = "overwrite"

	// StrategyMerge combines both sides: the higher-confidence side
	// wins summary, content, status, and provenance; tags and related
	// entries union; evidence merges by URI with the incoming side
	// winning collisions.
	StrategyMerge Strategy = "merge"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategySkip || s == StrategyOverwrite || s == StrategyMerge
}

// ExportOptions is the filter subset applied on export.
type ExportOptions struct {
	Sections      []knowledge.Section
	MinConfidence float64
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}

// Conflict records one id collision and how it was resolved.
type Conflict struct {
	Line       int    `json:"line"`
	ID         string `json:"id"`
	Resolution string `json:"resolution"`
}

// ItemError records one line that failed to parse or validate.
type ItemError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Report summarizes an import run.
type Report struct {
	Total        int         `json:"total"`
	SuccessCount int         `json:"success_count"`
	SkipCount    int         `json:"skip_count"`
	ErrorCount   int         `json:"error_count"`
	Conflicts    []Conflict  `json:"conflicts,omitempty"`
	Errors       []ItemError `json:"errors,omitempty"`
}

// Matches reports whether an entry survives the export filters.
func Matches(e *knowledge.Entry, opts ExportOptions) bool {
	if len(opts.Sections) > 0 && !sectionIn(opts.Sections, e.Section) {
		return false
	}
	if e.Confidence < opts.MinConfidence {
		return false
	}
	if opts.CreatedAfter != nil && e.CreatedAt.Before(*opts.CreatedAfter) {
		return false
	}
	if opts.CreatedBefore != nil && e.CreatedAt.After(*opts.CreatedBefore) {
		return false
	}
	return true
}

// Export writes every surviving entry as one JSON line.
func Export(w io.Writer, entries []knowledge.Entry, opts ExportOptions) error {
	for _, e := range entries {
		if !Matches(&e, opts) {
			continue
		}

		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.ID, err)
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
	}
	return nil
}

// Import loads line-delimited entries into the store. Each line is
// processed independently: a parse or validation failure is recorded
// and processing continues. Id collisions resolve per the strategy.
// The returned report is complete even when every line failed; the
// error return is reserved for reader faults.
func Import(ctx context.Context, s *store.Store, r io.Reader, strategy Strategy, logger *zap.Logger) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !strategy.Valid() {
		return nil, knowledge.NewError(knowledge.KindValidation, "transfer.import",
			fmt.Sprintf("unknown strategy %q", strategy))
	}

	report := &Report{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		report.Total++

		var incoming knowledge.Entry
		if err := json.Unmarshal(line, &incoming); err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, ItemError{Line: lineNo, Message: "parse: " + err.Error()})
			continue
		}

		if result := knowledge.Validate(&incoming); !result.Valid {
			report.ErrorCount++
			report.Errors = append(report.Errors, ItemError{
				Line:    lineNo,
				Message: fmt.Sprintf("validation: %v", result.Errors),
			})
			continue
		}

		existing, err := lookup(ctx, s, &incoming)
		if err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, ItemError{Line: lineNo, Message: err.Error()})
			continue
		}

		if existing == nil {
			if _, err := s.Restore(ctx, &incoming); err != nil {
				report.ErrorCount++
				report.Errors = append(report.Errors, ItemError{Line: lineNo, Message: err.Error()})
				continue
			}
			report.SuccessCount++
			continue
		}

		switch strategy {
		case StrategySkip:
			report.SkipCount++
			report.Conflicts = append(report.Conflicts, Conflict{
				Line: lineNo, ID: existing.ID, Resolution: "kept existing",
			})
		case StrategyOverwrite:
			incoming.ID = existing.ID
			if err := s.UpdateInPlace(ctx, &incoming); err != nil {
				report.ErrorCount++
				report.Errors = append(report.Errors, ItemError{Line: lineNo, Message: err.Error()})
				continue
			}
			report.SuccessCount++
			report.Conflicts = append(report.Conflicts, Conflict{
				Line: lineNo, ID: existing.ID, Resolution: "overwritten",
			})
		case StrategyMerge:
			merged := Merge(existing, &incoming)
			if err := s.UpdateInPlace(ctx, merged); err != nil {
				report.ErrorCount++
				report.Errors = append(report.Errors, ItemError{Line: lineNo, Message: err.Error()})
				continue
			}
			report.SuccessCount++
			report.Conflicts = append(report.Conflicts, Conflict{
				Line: lineNo, ID: existing.ID, Resolution: "merged",
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return report, knowledge.WrapError(knowledge.KindStorage, "transfer.import", err)
	}

	logger.Info("import finished",
		zap.String("strategy", string(strategy)),
		zap.Int("total", report.Total),
		zap.Int("success", report.SuccessCount),
		zap.Int("skipped", report.SkipCount),
		zap.Int("errors", report.ErrorCount))
	return report, nil
}

// lookup finds the collision target for an incoming entry: its id
// first, falling back to the (subject, scope, summary) dedup triple so
// re-imports into a store that reassigned ids stay idempotent.
func lookup(ctx context.Context, s *store.Store, incoming *knowledge.Entry) (*knowledge.Entry, error) {
	if incoming.ID != "" {
		existing, err := s.Get(ctx, incoming.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].Subject == incoming.Subject &&
			all[i].Scope == incoming.Scope &&
			all[i].Summary == incoming.Summary {
			return &all[i], nil
		}
	}
	return nil, nil
}

// Merge combines an existing and an incoming entry. The id and
// creation metadata of the existing side always survive.
func Merge(existing, incoming *knowledge.Entry) *knowledge.Entry {
	winner := existing
	if incoming.Confidence > existing.Confidence {
		winner = incoming
	}

	merged := *existing
	merged.Summary = winner.Summary
	merged.Content = winner.Content
	merged.Status = winner.Status
	merged.Provenance = winner.Provenance
	merged.SupersededBy = winner.SupersededBy
	if incoming.Confidence > merged.Confidence {
		merged.Confidence = incoming.Confidence
	}

	merged.Tags = unionStrings(existing.Tags, incoming.Tags)
	merged.RelatedEntries = unionStrings(existing.RelatedEntries, incoming.RelatedEntries)
	merged.Evidence = mergeEvidence(existing.Evidence, incoming.Evidence)
	return &merged
}

// mergeEvidence keys by URI; the incoming side wins collisions, and
// everything else from both sides is kept in order (existing first).
func mergeEvidence(existing, incoming []knowledge.Evidence) []knowledge.Evidence {
	fromIncoming := make(map[string]knowledge.Evidence, len(incoming))
	for _, ev := range incoming {
		fromIncoming[ev.URI] = ev
	}

	merged := make([]knowledge.Evidence, 0, len(existing)+len(incoming))
	for _, ev := range existing {
		if replacement, ok := fromIncoming[ev.URI]; ok {
			merged = append(merged, replacement)
			delete(fromIncoming, ev.URI)
			continue
		}
		merged = append(merged, ev)
	}
	for _, ev := range incoming {
		if _, ok := fromIncoming[ev.URI]; ok {
			merged = append(merged, ev)
			delete(fromIncoming, ev.URI)
		}
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func sectionIn(list []knowledge.Section, v knowledge.Section) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
