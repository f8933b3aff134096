package main

import (
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/knowd/internal/knowledge"
)

var queryFlags struct {
	sections       []string
	kinds          []string
	scopes         []string
	subjects       []string
	tags           []string
	statuses       []string
	minConfidence  float64
	maxConfidence  float64
	limit          int
	summaryOnly    bool
	includeRelated bool
}

func init() {
	queryCmd.Flags().StringSliceVar(&queryFlags.sections, "section", nil, "filter by section (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFlags.kinds, "kind", nil, "filter by kind (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFlags.scopes, "scope", nil, "filter by scope (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFlags.subjects, "subject", nil, "filter by subject (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFlags.tags, "tag", nil, "filter by tag (repeatable)")
	queryCmd.Flags().StringSliceVar(&queryFlags.statuses, "status", nil, "filter by status (default: active)")
	queryCmd.Flags().Float64Var(&queryFlags.minConfidence, "min-confidence", -1, "confidence floor (default 0.6)")
	queryCmd.Flags().Float64Var(&queryFlags.maxConfidence, "max-confidence", -1, "confidence ceiling")
	queryCmd.Flags().IntVar(&queryFlags.limit, "limit", 0, "result cap (hard ceiling 50)")
	queryCmd.Flags().BoolVar(&queryFlags.summaryOnly, "summary-only", false, "strip content, evidence, tags, and timestamps")
	queryCmd.Flags().BoolVar(&queryFlags.includeRelated, "include-related", false, "append related entries after the ranked results")

	getCmd.Flags().Bool("related", false, "print the entries this entry references instead")
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the store with ranked, scope-aware results",
	Long: `Query the store. Unfiltered dimensions get defaults (active status,
confidence >= 0.6, limit 50), narrow scope filters also admit broader
repo/org entries, and results are ranked by a composite of confidence,
evidence quality, recency, and scope fit.

Examples:
  knowd query --section learnings --tag flaky
  knowd query --scope service:billing --min-confidence 0.8
  knowd query --status superseded --summary-only`,
	Args: cobra.NoArgs,
	RunE: runQuery,
}

func runQuery(cmd *cobra.Command, args []string) error {
	filters := knowledge.QueryFilters{
		Subjects:       queryFlags.subjects,
		Tags:           queryFlags.tags,
		Limit:          queryFlags.limit,
		SummaryOnly:    queryFlags.summaryOnly,
		IncludeRelated: queryFlags.includeRelated,
	}
	for _, v := range queryFlags.sections {
		filters.Sections = append(filters.Sections, knowledge.Section(v))
	}
	for _, v := range queryFlags.kinds {
		filters.Kinds = append(filters.Kinds, knowledge.Kind(v))
	}
	for _, v := range queryFlags.scopes {
		scope, err := knowledge.ParseScope(v)
		if err != nil {
			return err
		}
		filters.Scopes = append(filters.Scopes, scope)
	}
	for _, v := range queryFlags.statuses {
		filters.Statuses = append(filters.Statuses, knowledge.Status(v))
	}
	if queryFlags.minConfidence >= 0 {
		filters.MinConfidence = &queryFlags.minConfidence
	}
	if queryFlags.maxConfidence >= 0 {
		filters.MaxConfidence = &queryFlags.maxConfidence
	}

	svc, logger, err := newService(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	results, err := svc.Query(cmd.Context(), filters)
	if err != nil {
		return err
	}
	return printJSON(results)
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one entry by id",
	Long: `Fetch one entry by id and print it as JSON.

Examples:
  knowd get kn-1a2b3c4d
  knowd get kn-1a2b3c4d --related`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if related, _ := cmd.Flags().GetBool("related"); related {
			entries, err := svc.GetRelated(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(entries)
		}
		entry, err := svc.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(entry)
	},
}
