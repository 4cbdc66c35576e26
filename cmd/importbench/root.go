package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alvmarrod/import-bench/internal/version"
)

// options holds the command-line flags
type options struct {
	configPath    string
	envFile       string
	dataRoot      string
	baseURL       string
	noColor       bool
	verbose       bool
	skipPreflight bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "importbench",
		Short: "Benchmark CSV graph imports in a headless browser",
		Long: `importbench drives the graph application's CSV import dialog in headless
Chromium once per dataset, measuring how long the import takes and the
framerate the page sustains while it runs.

Datasets are subdirectories of the data root holding one *nodes*.csv and one
*edges*.csv. When none are found a small synthetic graph is imported instead.
One JSON report per dataset is written to the results directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Version = fmt.Sprintf("%s (commit: %s)", version.Version, version.Commit)

	flags := cmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Config file (.json, .yaml or .yml)")
	flags.StringVar(&opts.envFile, "env-file", "", "Load environment variables from a .env file")
	flags.StringVar(&opts.dataRoot, "data-root", "", "Directory holding dataset subdirectories (overrides CSV_DATA_ROOT)")
	flags.StringVar(&opts.baseURL, "base-url", "", "Application URL to benchmark")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&opts.skipPreflight, "skip-preflight", false, "Do not probe the target before launching the browser")

	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "importbench %s (commit: %s)\n", version.Version, version.Commit)
		},
	}
}
