package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// MetadataMarker separates the entry content from the JSON metadata
// block inside a record body. The dashboard tooling splits on the same
// literal, so it must never change.
const MetadataMarker = "---METADATA---"

// Record is the on-disk shape of one entry: one JSON object per line in
// the record file, and the payload exchanged with the bd backend.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Labels    []string  `json:"labels"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// metadata is the JSON block appended to the record body. Every field
// is optional on decode; missing or corrupt values fall back to the
// defaults in defaultMetadata.
type metadata struct {
	Subject        string               `json:"subject"`
	Confidence     *float64             `json:"confidence"`
	Evidence       []knowledge.Evidence `json:"evidence"`
	Provenance     knowledge.Provenance `json:"provenance"`
	SupersededBy   string               `json:"superseded_by,omitempty"`
	RelatedEntries []string             `json:"related_entries,omitempty"`
	CreatedBy      string               `json:"created_by,omitempty"`
}

// Label prefixes for the discrete entry facets.
const (
	labelSection = "section:"
	labelKind    = "kind:"
	labelScope   = "scope:"
	labelStatus  = "status:"
	labelTag     = "tag:"
)

// EncodeEntry converts an entry to its record form. The summary becomes
// the title; section, kind, scope, status, and tags become prefixed
// labels; everything else rides in the metadata block after the marker.
func EncodeEntry(e *knowledge.Entry) (Record, error) {
	confidence := e.Confidence
	meta := metadata{
		Subject:        e.Subject,
		Confidence:     &confidence,
		Evidence:       e.Evidence,
		Provenance:     e.Provenance,
		SupersededBy:   e.SupersededBy,
		RelatedEntries: e.RelatedEntries,
		CreatedBy:      e.CreatedBy,
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return Record{}, knowledge.WrapError(knowledge.KindStorage, "store.encode", err)
	}

	labels := []string{
		labelSection + string(e.Section),
		labelKind + string(e.Kind),
		labelScope + string(e.Scope),
		labelStatus + string(e.Status),
	}
	for _, tag := range e.Tags {
		labels = append(labels, labelTag+tag)
	}

	return Record{
		ID:        e.ID,
		Title:     e.Summary,
		Body:      e.Content + "\n\n" + MetadataMarker + "\n" + string(raw),
		Labels:    labels,
		CreatedBy: e.CreatedBy,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}, nil
}

// DecodeRecord converts a record back to an entry. Decoding is
// defensive: a malformed or missing metadata block yields defaults
// (confidence 0.5, empty evidence, scope repo, section observations)
// so one corrupt record never sinks a whole query.
func DecodeRecord(r Record) knowledge.Entry {
	content, meta := splitBody(r.Body)

	e := knowledge.Entry{
		ID:        r.ID,
		Section:   knowledge.SectionObservations,
		Kind:      knowledge.KindOther,
		Scope:     knowledge.ScopeRepo,
		Status:    knowledge.StatusActive,
		Summary:   r.Title,
		Content:   content,
		CreatedBy: r.CreatedBy,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}

	for _, label := range r.Labels {
		switch {
		case strings.HasPrefix(label, labelSection):
			if s := knowledge.Section(strings.TrimPrefix(label, labelSection)); s.Valid() {
				e.Section = s
			}
		case strings.HasPrefix(label, labelKind):
			if k := knowledge.Kind(strings.TrimPrefix(label, labelKind)); k.Valid() {
				e.Kind = k
			}
		case strings.HasPrefix(label, labelScope):
			if sc, err := knowledge.ParseScope(strings.TrimPrefix(label, labelScope)); err == nil {
				e.Scope = sc
			}
		case strings.HasPrefix(label, labelStatus):
			if st := knowledge.Status(strings.TrimPrefix(label, labelStatus)); st.Valid() {
				e.Status = st
			}
		case strings.HasPrefix(label, labelTag):
			e.Tags = append(e.Tags, strings.TrimPrefix(label, labelTag))
		}
	}

	e.Subject = meta.Subject
	if meta.Confidence != nil && *meta.Confidence >= 0.0 && *meta.Confidence <= 1.0 {
		e.Confidence = *meta.Confidence
	} else {
		e.Confidence = 0.5
	}
	if meta.Evidence != nil {
		e.Evidence = meta.Evidence
	} else {
		e.Evidence = []knowledge.Evidence{}
	}
	e.Provenance = meta.Provenance
	e.SupersededBy = meta.SupersededBy
	e.RelatedEntries = meta.RelatedEntries
	if meta.CreatedBy != "" {
		e.CreatedBy = meta.CreatedBy
	}

	return e
}

// splitBody separates content from the metadata block. The parse never
// fails: anything unreadable degrades to an empty metadata value.
func splitBody(body string) (string, metadata) {
	var meta metadata

	idx := strings.Index(body, MetadataMarker)
	if idx < 0 {
		return body, meta
	}

	content := strings.TrimSuffix(body[:idx], "\n\n")
	raw := strings.TrimSpace(body[idx+len(MetadataMarker):])
	if raw != "" {
		// Corrupt JSON leaves meta at its zero value.
		_ = json.Unmarshal([]byte(raw), &meta)
	}
	return content, meta
}
