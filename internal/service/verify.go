package service

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/retry"
)

// evidenceHTTPTimeout bounds each HEAD request; the retry layer adds
// its own attempts on top.
const evidenceHTTPTimeout = 10 * time.Second

// EvidenceCheck is the verification result for one piece of evidence.
type EvidenceCheck struct {
	URI     string `json:"uri"`
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Tracked bool   `json:"tracked,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// VerifyEvidence checks that an entry's evidence still resolves.
// Relative URIs of code and doc evidence must exist under the
// workspace root; http(s) URIs must answer a HEAD request. Ticket
// references and everything else are reported as unchecked. A failing
// check never errors the call; failures land in the per-check Detail.
func (s *Service) VerifyEvidence(ctx context.Context, id string) ([]EvidenceCheck, error) {
	entry, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, knowledge.NewError(knowledge.KindStorage, "service.verify",
			fmt.Sprintf("entry %s not found", id))
	}

	checks := make([]EvidenceCheck, 0, len(entry.Evidence))
	for _, ev := range entry.Evidence {
		check := EvidenceCheck{URI: ev.URI, Type: string(ev.Type)}
		switch {
		case strings.HasPrefix(ev.URI, "http://"), strings.HasPrefix(ev.URI, "https://"):
			s.checkURL(ctx, &check)
		case ev.Type == knowledge.EvidenceCode || ev.Type == knowledge.EvidenceDoc:
			s.checkPath(&check)
		default:
			check.OK = true
			check.Detail = "not checked"
		}
		checks = append(checks, check)
	}

	s.logger.Debug("evidence verified", zap.String("id", id), zap.Int("checks", len(checks)))
	return checks, nil
}

// checkPath verifies a repo-relative evidence path. The guard rejects
// escapes before any stat happens; when the project is a git
// repository the check also reports whether HEAD tracks the file.
func (s *Service) checkPath(check *EvidenceCheck) {
	resolved, err := s.guard.Resolve(check.URI)
	if err != nil {
		check.Detail = "path escapes workspace root"
		return
	}
	if _, err := os.Stat(resolved); err != nil {
		if os.IsNotExist(err) {
			check.Detail = "file does not exist"
		} else {
			check.Detail = fmt.Sprintf("stat failed: %v", err)
		}
		return
	}
	check.OK = true

	if s.hasGit {
		tracked, err := s.git.Tracked(check.URI)
		if err != nil {
			s.logger.Debug("tracked lookup failed", zap.String("uri", check.URI), zap.Error(err))
			return
		}
		check.Tracked = tracked
	}
}

func (s *Service) checkURL(ctx context.Context, check *EvidenceCheck) {
	client := &http.Client{Timeout: evidenceHTTPTimeout}
	err := retry.Do(ctx, "evidence.head", retry.EvidenceConfig(), func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, check.URI, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			check.Detail = fmt.Sprintf("status %d", resp.StatusCode)
			return nil
		}
		check.OK = true
		return nil
	})
	if err != nil {
		check.Detail = fmt.Sprintf("request failed: %v", err)
	}
}
