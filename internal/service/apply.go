package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

// ApplyItem is one agent finding to fold into the store. When
// Supersedes names an existing entry the new entry replaces it;
// otherwise it is created as new.
type ApplyItem struct {
	Entry      knowledge.Entry `json:"entry"`
	Supersedes string          `json:"supersedes,omitempty"`
}

// ApplyError records one item that could not be applied.
type ApplyError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// ApplyReport summarizes a batch application.
type ApplyReport struct {
	Total        int          `json:"total"`
	SuccessCount int          `json:"success_count"`
	ErrorCount   int          `json:"error_count"`
	IDs          []string     `json:"ids,omitempty"`
	Errors       []ApplyError `json:"errors,omitempty"`
}

// ApplyResults folds a batch of agent findings into the store. Items
// are applied independently: a validation, secret, or conflict failure
// on one is recorded in the report and the rest of the batch still
// lands. The error return is reserved for faults that make the whole
// batch unprocessable.
func (s *Service) ApplyResults(ctx context.Context, items []ApplyItem) (*ApplyReport, error) {
	report := &ApplyReport{Total: len(items)}
	for i := range items {
		item := &items[i]
		entry := item.Entry
		if entry.CreatedBy == "" {
			entry.CreatedBy = s.cfg.CreatedBy
		}

		var (
			id  string
			err error
		)
		if item.Supersedes != "" {
			id, err = s.store.Supersede(ctx, item.Supersedes, &entry)
		} else {
			id, err = s.store.Create(ctx, &entry)
		}
		if err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, ApplyError{
				Index:   i,
				Message: fmt.Sprintf("%s: %v", entry.Subject, err),
			})
			s.logger.Warn("apply item failed",
				zap.Int("index", i),
				zap.String("subject", entry.Subject),
				zap.Error(err))
			continue
		}
		report.SuccessCount++
		report.IDs = append(report.IDs, id)
	}

	s.logger.Info("batch applied",
		zap.Int("total", report.Total),
		zap.Int("success", report.SuccessCount),
		zap.Int("errors", report.ErrorCount))
	return report, nil
}
