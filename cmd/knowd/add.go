package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

var addFlags struct {
	section    string
	kind       string
	subject    string
	scope      string
	summary    string
	content    string
	tags       []string
	confidence float64
	evidence   []string
	related    []string
	from       string
}

func init() {
	addCmd.Flags().StringVar(&addFlags.section, "section", "observations", "entry section (decisions|state|observations|learnings)")
	addCmd.Flags().StringVar(&addFlags.kind, "kind", "other", "entry kind")
	addCmd.Flags().StringVar(&addFlags.subject, "subject", "", "subject the entry is about")
	addCmd.Flags().StringVar(&addFlags.scope, "scope", "repo", "blast-radius scope (repo|org|customer|service:<name>|environment:prod|staging)")
	addCmd.Flags().StringVar(&addFlags.summary, "summary", "", "one-line summary")
	addCmd.Flags().StringVar(&addFlags.content, "content", "", "full entry content")
	addCmd.Flags().StringSliceVar(&addFlags.tags, "tag", nil, "tag (repeatable)")
	addCmd.Flags().Float64Var(&addFlags.confidence, "confidence", 0.5, "confidence in [0,1]")
	addCmd.Flags().StringArrayVar(&addFlags.evidence, "evidence", nil, "evidence as type:uri[:note] (repeatable)")
	addCmd.Flags().StringSliceVar(&addFlags.related, "related", nil, "related entry id (repeatable)")
	addCmd.Flags().StringVar(&addFlags.from, "from", "", "read the full entry as JSON from a file, or - for stdin")
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a knowledge entry",
	Long: `Add a validated, evidence-backed knowledge entry to the store.

The entry can be built from flags or read whole from JSON with --from.
Every entry needs at least one piece of evidence; writes carrying
secret-looking values are rejected outright.

Examples:
  knowd add --subject "retry budget" --summary "tracker calls retry 3x" \
    --evidence code:internal/retry/retry.go --confidence 0.9

  knowd add --from entry.json
  cat entry.json | knowd add --from -`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	entry, err := buildEntry()
	if err != nil {
		return err
	}

	svc, logger, err := newService(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	id, err := svc.Create(cmd.Context(), entry)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func buildEntry() (*knowledge.Entry, error) {
	if addFlags.from != "" {
		return readEntryJSON(addFlags.from)
	}

	entry := &knowledge.Entry{
		Section:        knowledge.Section(addFlags.section),
		Kind:           knowledge.Kind(addFlags.kind),
		Subject:        addFlags.subject,
		Scope:          knowledge.Scope(addFlags.scope),
		Summary:        addFlags.summary,
		Content:        addFlags.content,
		Tags:           addFlags.tags,
		Confidence:     addFlags.confidence,
		RelatedEntries: addFlags.related,
		Provenance:     knowledge.Provenance{SourceType: knowledge.SourceManual},
	}
	for _, raw := range addFlags.evidence {
		ev, err := parseEvidence(raw)
		if err != nil {
			return nil, err
		}
		entry.Evidence = append(entry.Evidence, ev)
	}
	return entry, nil
}

// defaultEvidenceNote fills the required note field when the flag
// omits it.
const defaultEvidenceNote = "added via knowd add"

// parseEvidence splits a type:uri[:note] flag value. The URI may
// itself contain colons (URLs), so only the first separator and an
// optional note after the last one are structural. An omitted note
// defaults to a fixed marker; entries always carry one.
func parseEvidence(raw string) (knowledge.Evidence, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return knowledge.Evidence{}, fmt.Errorf("evidence %q: want type:uri[:note]", raw)
	}
	ev := knowledge.Evidence{Type: knowledge.EvidenceType(parts[0]), URI: parts[1]}
	if !ev.Type.Valid() {
		return knowledge.Evidence{}, fmt.Errorf("evidence %q: unknown type %q", raw, parts[0])
	}
	// A note is only split off when the URI is not a URL, where colons
	// are ambiguous.
	if !strings.Contains(ev.URI, "://") {
		if i := strings.IndexByte(ev.URI, ':'); i >= 0 {
			ev.Note = ev.URI[i+1:]
			ev.URI = ev.URI[:i]
		}
	}
	if ev.Note == "" {
		ev.Note = defaultEvidenceNote
	}
	return ev, nil
}

func readEntryJSON(path string) (*knowledge.Entry, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening entry file: %w", err)
		}
		defer f.Close()
		r = f
	}
	var entry knowledge.Entry
	if err := json.NewDecoder(r).Decode(&entry); err != nil {
		return nil, fmt.Errorf("decoding entry JSON: %w", err)
	}
	return &entry, nil
}
