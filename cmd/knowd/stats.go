package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/knowd/internal/service"
	"github.com/fyrsmithlabs/knowd/internal/stats"
)

var statsFlags struct {
	from    string
	to      string
	noCache bool
}

func init() {
	statsCmd.Flags().StringVar(&statsFlags.from, "from", "", "range start as RFC 3339 time")
	statsCmd.Flags().StringVar(&statsFlags.to, "to", "", "range end as RFC 3339 time")
	statsCmd.Flags().BoolVar(&statsFlags.noCache, "no-cache", false, "recompute even when a fresh snapshot is cached")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print store statistics",
	Long: `Print summary statistics: totals by section, kind, scope, and status,
evidence-type distribution, and confidence aggregates. Snapshots are
cached for five minutes and dropped on every write.

Examples:
  knowd stats
  knowd stats --from 2026-08-01T00:00:00Z --no-cache`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r stats.DateRange
		if statsFlags.from != "" {
			ts, err := time.Parse(time.RFC3339, statsFlags.from)
			if err != nil {
				return fmt.Errorf("parsing --from: %w", err)
			}
			r.From = ts
		}
		if statsFlags.to != "" {
			ts, err := time.Parse(time.RFC3339, statsFlags.to)
			if err != nil {
				return fmt.Errorf("parsing --to: %w", err)
			}
			r.To = ts
		}

		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		snap, err := svc.GetStatistics(cmd.Context(), r, statsFlags.noCache)
		if err != nil {
			return err
		}
		return printJSON(snap)
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Render high-confidence entries into context files",
	Long: `Render active, high-confidence, code- or artifact-evidenced entries
into per-section Markdown files under the storage directory's context/
folder, grouped by subject, for downstream agent consumption.

Examples:
  knowd sync`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		report, err := svc.SyncContext(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Verify an entry's evidence still resolves",
	Long: `Check every piece of evidence on an entry: relative code and doc
paths must exist inside the project root, http(s) URIs must answer a
HEAD request. Failures are reported per check, never as a command
error.

Examples:
  knowd verify kn-1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		checks, err := svc.VerifyEvidence(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(checks)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <file>",
	Short: "Apply a batch of agent findings",
	Long: `Apply a batch of agent findings read as a JSON array of items, each
an entry plus an optional "supersedes" id. Items apply independently;
failures are reported per item and the rest of the batch still lands.
Pass - to read from stdin.

Examples:
  knowd apply findings.json
  agent-run | knowd apply -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening batch file: %w", err)
			}
			defer f.Close()
			r = f
		}
		var items []service.ApplyItem
		if err := json.NewDecoder(r).Decode(&items); err != nil {
			return fmt.Errorf("decoding batch JSON: %w", err)
		}

		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		report, err := svc.ApplyResults(cmd.Context(), items)
		if err != nil {
			return err
		}
		return printJSON(report)
	},
}
