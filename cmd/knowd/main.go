// Package main implements the knowd CLI, the operator surface of the
// agent knowledge store. Every command resolves the project root,
// loads configuration, and drives the service layer; no command talks
// to storage directly.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/knowd/internal/config"
	"github.com/fyrsmithlabs/knowd/internal/logging"
	"github.com/fyrsmithlabs/knowd/internal/service"
)

var (
	// rootDir is the project root all paths resolve against.
	rootDir string
	// configPath points at an optional YAML config file.
	configPath string
	// forceFile skips the tracker probe and uses the file backend.
	forceFile bool
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "knowd",
	Short: "Durable knowledge store for coding agents",
	Long: `knowd records validated, evidence-backed knowledge entries in a
project-local store and serves them back as ranked, scope-aware query
results. Entries live in the project's issue tracker when one is
available, or in a self-managed record file otherwise.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&forceFile, "file-backend", false, "skip the tracker probe and use the record file backend")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(supersedeCmd)
	rootCmd.AddCommand(deprecateCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(applyCmd)
}

// newService loads configuration and builds the service for one
// command invocation.
func newService(cmd *cobra.Command) (*service.Service, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("initializing logger: %w", err)
	}
	svc, err := service.New(cmd.Context(), rootDir, cfg, service.Options{
		Logger:           logger,
		ForceFileBackend: forceFile,
	})
	if err != nil {
		return nil, nil, err
	}
	return svc, logger, nil
}

// printJSON writes v as indented JSON to stdout.
func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the knowledge store in the current project",
	Long: `Initialize the knowledge store: create the storage directory and
prepare the backing storage (the tracker database when available, the
record file otherwise).

Examples:
  knowd init
  knowd init --root /path/to/project`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, logger, err := newService(cmd)
		if err != nil {
			return err
		}
		defer logger.Sync() //nolint:errcheck
		if err := svc.Init(cmd.Context()); err != nil {
			return err
		}
		fmt.Printf("initialized knowledge store in %s\n", svc.StorageDir())
		return nil
	},
}
