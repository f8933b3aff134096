package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
	"github.com/fyrsmithlabs/knowd/internal/transfer"
)

var exportFlags struct {
	sections      []string
	minConfidence float64
	createdAfter  string
	createdBefore string
}

var importStrategy string

func init() {
	exportCmd.Flags().StringSliceVar(&exportFlags.sections, "section", nil, "export only these sections (repeatable)")
	exportCmd.Flags().Float64Var(&exportFlags.minConfidence, "min-confidence", 0, "export only entries at or above this confidence")
	exportCmd.Flags().StringVar(&exportFlags.createdAfter, "created-after", "", "export only entries created after this RFC 3339 time")
	exportCmd.Flags().StringVar(&exportFlags.createdBefore, "created-before", "", "export only entries created before this RFC 3339 time")

	importCmd.Flags().StringVar(&importStrategy, "strategy", "skip", "id-collision strategy (skip|overwrite|merge)")
}

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Export entries as line-delimited JSON",
	Long: `Export matching entries to a file inside the project, one JSON line
per entry.

Examples:
  knowd export backup.jsonl
  knowd export learnings.jsonl --section learnings --min-confidence 0.7`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	opts := transfer.ExportOptions{MinConfidence: exportFlags.minConfidence}
	for _, v := range exportFlags.sections {
		opts.Sections = append(opts.Sections, knowledge.Section(v))
	}
	if exportFlags.createdAfter != "" {
		ts, err := time.Parse(time.RFC3339, exportFlags.createdAfter)
		if err != nil {
			return fmt.Errorf("parsing --created-after: %w", err)
		}
		opts.CreatedAfter = &ts
	}
	if exportFlags.createdBefore != "" {
		ts, err := time.Parse(time.RFC3339, exportFlags.createdBefore)
		if err != nil {
			return fmt.Errorf("parsing --created-before: %w", err)
		}
		opts.CreatedBefore = &ts
	}

	svc, logger, err := newService(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	count, err := svc.Export(cmd.Context(), args[0], opts)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d entries to %s\n", count, args[0])
	return nil
}

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import entries from line-delimited JSON",
	Long: `Import entries from a line-delimited JSON file. Each line is applied
independently; bad lines are reported and never abort the run. Id
collisions resolve per --strategy: skip keeps the existing entry,
overwrite replaces it wholesale, merge keeps the higher-confidence
side and unions tags, related entries, and evidence.

Examples:
  knowd import backup.jsonl
  knowd import team-awareness.jsonl --strategy merge`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategy := transfer.Strategy(importStrategy)
		if !strategy.Valid() {
			return fmt.Errorf("unknown strategy %q (want skip, overwrite, or merge)", importStrategy)
		}

		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		report, err := svc.Import(cmd.Context(), args[0], strategy)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}
