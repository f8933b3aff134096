package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// contextDirName is the sub-directory of the storage dir holding
// synced context files.
const contextDirName = "context"

// SyncReport summarizes a context sync.
type SyncReport struct {
	Files   []string `json:"files"`
	Entries int      `json:"entries"`
}

// SyncContext renders the store's strongest entries into per-section
// Markdown files under <storage dir>/context/ for downstream agent
// consumption. Only active entries at or above the configured
// confidence floor with code or artifact evidence are included,
// grouped by subject. Sections with no qualifying entries get no file;
// a stale file from a previous sync is removed.
func (s *Service) SyncContext(ctx context.Context) (*SyncReport, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	bySection := make(map[knowledge.Section][]knowledge.Entry)
	total := 0
	for _, e := range entries {
		if e.Status != knowledge.StatusActive {
			continue
		}
		if e.Confidence < s.cfg.Sync.MinConfidence {
			continue
		}
		if !e.HasEvidenceType(knowledge.EvidenceCode, knowledge.EvidenceArtifact) {
			continue
		}
		bySection[e.Section] = append(bySection[e.Section], e)
		total++
	}

	dir, err := s.guard.Resolve(filepath.Join(s.storageDir, contextDirName))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, knowledge.WrapError(knowledge.KindStorage, "service.sync", err)
	}

	head := s.headStamp()
	report := &SyncReport{Entries: total}
	for _, section := range knowledge.Sections {
		path := filepath.Join(dir, string(section)+".md")
		group := bySection[section]
		if len(group) == 0 {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return nil, knowledge.WrapError(knowledge.KindStorage, "service.sync", err)
			}
			continue
		}
		if err := os.WriteFile(path, renderSection(section, group, head, s), 0o644); err != nil {
			return nil, knowledge.WrapError(knowledge.KindStorage, "service.sync", err)
		}
		report.Files = append(report.Files, path)
	}

	s.logger.Info("context synced",
		zap.Int("entries", total),
		zap.Int("files", len(report.Files)))
	return report, nil
}

// headStamp returns the abbreviated HEAD commit, or empty when the
// project is not a git repository or has no commits yet.
func (s *Service) headStamp() string {
	if !s.hasGit {
		return ""
	}
	commit, err := s.git.HeadCommit()
	if err != nil {
		s.logger.Warn("reading HEAD for context stamp failed", zap.Error(err))
		return ""
	}
	return commit
}

func renderSection(section knowledge.Section, group []knowledge.Entry, head string, s *Service) []byte {
	// Group by subject, subjects in alphabetical order, entries within
	// a subject by confidence descending.
	bySubject := make(map[string][]knowledge.Entry)
	for _, e := range group {
		bySubject[e.Subject] = append(bySubject[e.Subject], e)
	}
	subjects := make([]string, 0, len(bySubject))
	for subject := range bySubject {
		subjects = append(subjects, subject)
	}
	sort.Strings(subjects)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", sectionTitle(section))
	fmt.Fprintf(&b, "Generated %s", s.now().UTC().Format("2006-01-02 15:04:05 UTC"))
	if head != "" {
		fmt.Fprintf(&b, " at commit %s", head)
	}
	b.WriteString(". Do not edit; regenerated on every sync.\n")

	for _, subject := range subjects {
		entries := bySubject[subject]
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Confidence > entries[j].Confidence
		})
		fmt.Fprintf(&b, "\n## %s\n\n", subject)
		for _, e := range entries {
			fmt.Fprintf(&b, "- %s (confidence %.2f", e.Summary, e.Confidence)
			if len(e.Tags) > 0 {
				fmt.Fprintf(&b, ", tags: %s", strings.Join(e.Tags, ", "))
			}
			b.WriteString(")\n")
		}
	}
	return []byte(b.String())
}

func sectionTitle(section knowledge.Section) string {
	title := strings.ReplaceAll(string(section), "_", " ")
	if title == "" {
		return "Uncategorized"
	}
	return strings.ToUpper(title[:1]) + title[1:]
}
