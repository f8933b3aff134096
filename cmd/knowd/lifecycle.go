package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var supersedeFrom string

func init() {
	supersedeCmd.Flags().StringVar(&supersedeFrom, "from", "", "replacement entry as JSON from a file, or - for stdin (required)")
	supersedeCmd.MarkFlagRequired("from") //nolint:errcheck
}

var supersedeCmd = &cobra.Command{
	Use:   "supersede <id>",
	Short: "Replace an entry with a corrected one",
	Long: `Create the replacement entry, then mark the old entry superseded and
link it to its successor. The old entry is never deleted; history stays
queryable with --status superseded.

Examples:
  knowd supersede kn-1a2b3c4d --from corrected.json
  cat corrected.json | knowd supersede kn-1a2b3c4d --from -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		replacement, err := readEntryJSON(supersedeFrom)
		if err != nil {
			return err
		}
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		id, err := svc.Supersede(cmd.Context(), args[0], replacement)
		if err != nil {
			return err
		}
		fmt.Println(id)
		return nil
	},
}

var deprecateCmd = &cobra.Command{
	Use:   "deprecate <id>",
	Short: "Mark an entry deprecated",
	Long: `Mark an entry deprecated without a replacement. The entry stays in
the store and remains queryable with --status deprecated.

Examples:
  knowd deprecate kn-1a2b3c4d`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck

		if err := svc.Deprecate(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("deprecated %s\n", args[0])
		return nil
	},
}
