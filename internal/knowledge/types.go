package knowledge

import (
	"time"
)

// Field length caps enforced by Validate.
const (
	// MaxSummaryLength is the maximum length of an entry summary.
	MaxSummaryLength = 300

	// MaxContentLength is the maximum length of an entry content body.
	MaxContentLength = 2000
)

// Section identifies which part of the knowledge base an entry belongs to.
type Section string

const (
	SectionDecisions    Section = "decisions"
	SectionState        Section = "state"
	SectionObservations Section = "observations"
	SectionLearnings    Section = "learnings"
)

// Sections lists all valid sections.
var Sections = []Section{SectionDecisions, SectionState, SectionObservations, SectionLearnings}

// Valid reports whether s is a known section.
func (s Section) Valid() bool {
	for _, v := range Sections {
		if s == v {
			return true
		}
	}
	return false
}

// Kind classifies what an entry records.
type Kind string

const (
	KindDecision    Kind = "decision"
	KindRequirement Kind = "requirement"
	KindInvariant   Kind = "invariant"
	KindIncident    Kind = "incident"
	KindMetric      Kind = "metric"
	KindHypothesis  Kind = "hypothesis"
	KindRunbookStep Kind = "runbook_step"
	KindOther       Kind = "other"
)

// Kinds lists all valid kinds.
var Kinds = []Kind{
	KindDecision, KindRequirement, KindInvariant, KindIncident,
	KindMetric, KindHypothesis, KindRunbookStep, KindOther,
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, v := range Kinds {
		if k == v {
			return true
		}
	}
	return false
}

// Status is the lifecycle state of an entry.
type Status string

const (
	// StatusActive entries are returned by default queries.
	StatusActive Status = "active"

	// StatusSuperseded entries have been replaced by a newer entry.
	// SupersededBy links to the replacement.
	StatusSuperseded Status = "superseded"

	// StatusDeprecated entries are retired without a replacement.
	StatusDeprecated Status = "deprecated"

	// StatusDraft entries are not yet validated knowledge.
	StatusDraft Status = "draft"
)

// Statuses lists all valid statuses.
var Statuses = []Status{StatusActive, StatusSuperseded, StatusDeprecated, StatusDraft}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// EvidenceType classifies a piece of evidence and determines its quality
// weight during ranking.
type EvidenceType string

const (
	EvidenceCode       EvidenceType = "code"
	EvidenceArtifact   EvidenceType = "artifact"
	EvidenceLog        EvidenceType = "log"
	EvidenceScreenshot EvidenceType = "screenshot"
	EvidenceAssumption EvidenceType = "assumption"
	EvidenceTicket     EvidenceType = "ticket"
	EvidenceDoc        EvidenceType = "doc"
)

// EvidenceTypes lists all valid evidence types.
var EvidenceTypes = []EvidenceType{
	EvidenceCode, EvidenceArtifact, EvidenceLog, EvidenceScreenshot,
	EvidenceAssumption, EvidenceTicket, EvidenceDoc,
}

// Valid reports whether t is a known evidence type.
func (t EvidenceType) Valid() bool {
	for _, v := range EvidenceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// QualityWeight returns the ranking weight for this evidence type.
// Code and artifacts are strongest; assumptions weakest.
func (t EvidenceType) QualityWeight() float64 {
	switch t {
	case EvidenceCode, EvidenceArtifact:
		return 1.0
	case EvidenceTicket, EvidenceDoc:
		return 0.8
	case EvidenceLog, EvidenceScreenshot:
		return 0.6
	case EvidenceAssumption:
		return 0.4
	default:
		return 0.4
	}
}

// Evidence is a typed pointer substantiating an entry.
type Evidence struct {
	// Type classifies the evidence (code, artifact, log, ...).
	Type EvidenceType `json:"type"`

	// URI locates the evidence: a repo-relative path, a URL, or a ticket ref.
	URI string `json:"uri"`

	// Note explains what the evidence shows.
	Note string `json:"note"`
}

// SourceType describes how an entry came to be written.
type SourceType string

const (
	SourceFieldNote   SourceType = "field_note"
	SourceAgentResult SourceType = "agent_result"
	SourceManual      SourceType = "manual"
	SourceImport      SourceType = "import"
	SourceValidation  SourceType = "validation"
	SourceCompaction  SourceType = "compaction"
	SourceSystem      SourceType = "system"
	SourceOther       SourceType = "other"
)

// SourceTypes lists all valid provenance source types.
var SourceTypes = []SourceType{
	SourceFieldNote, SourceAgentResult, SourceManual, SourceImport,
	SourceValidation, SourceCompaction, SourceSystem, SourceOther,
}

// Valid reports whether t is a known source type.
func (t SourceType) Valid() bool {
	for _, v := range SourceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Provenance records where an entry came from.
type Provenance struct {
	// SourceType classifies the origin of the entry.
	SourceType SourceType `json:"source_type"`

	// SourceRef points at the originating artifact (session id, file, PR).
	// Required when SourceType is field_note.
	SourceRef string `json:"source_ref,omitempty"`

	// Note carries free-form context about the origin.
	Note string `json:"note,omitempty"`
}

// Entry is one unit of stored knowledge.
//
// The ID is assigned at creation and never mutates. Entries are retired
// via Supersede (status flips, SupersededBy set, replacement created) or
// Deprecate (status flips, SupersededBy cleared); they are never deleted.
type Entry struct {
	ID      string  `json:"id"`
	Section Section `json:"section"`
	Kind    Kind    `json:"kind"`

	// Subject is free text used for deduplication and grouping.
	Subject string `json:"subject"`

	// Scope is the blast-radius label used for hierarchical query admission.
	Scope Scope `json:"scope"`

	Summary string   `json:"summary"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`

	// Confidence is a reliability score in [0.0, 1.0].
	Confidence float64 `json:"confidence"`

	// Evidence is never empty for a valid entry.
	Evidence []Evidence `json:"evidence"`

	Provenance Provenance `json:"provenance"`

	Status Status `json:"status"`

	// SupersededBy is set iff Status is superseded.
	SupersededBy string `json:"superseded_by,omitempty"`

	// RelatedEntries holds soft references; missing targets are tolerated.
	RelatedEntries []string `json:"related_entries,omitempty"`

	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EvidenceQuality returns the best quality weight across the entry's
// evidence, or the assumption weight when there is none.
func (e *Entry) EvidenceQuality() float64 {
	best := 0.4
	for _, ev := range e.Evidence {
		if w := ev.Type.QualityWeight(); w > best {
			best = w
		}
	}
	return best
}

// HasEvidenceType reports whether any evidence carries one of the given types.
func (e *Entry) HasEvidenceType(types ...EvidenceType) bool {
	for _, ev := range e.Evidence {
		for _, t := range types {
			if ev.Type == t {
				return true
			}
		}
	}
	return false
}
