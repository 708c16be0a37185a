// SPDX-License-Identifier: MIT
//
// Command plansynth synthesizes daily activity plans from reference tables.
//
//	plansynth run --config plansynth.yaml --tables tables.yaml
//	plansynth inspect --tables tables.yaml
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "plansynth:", err)
		os.Exit(1)
	}
}

// flags holds the command line overrides shared by the subcommands.
type flags struct {
	config      string
	tables      string
	workers     int
	logLevel    string
	logFormat   string
	metricsAddr string
	print       bool
}

func newRootCmd() *cobra.Command {
	var f flags

	root := &cobra.Command{
		Use:           "plansynth",
		Short:         "Synthesize daily activity plans under trip capacity constraints",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&f.config, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().StringVarP(&f.tables, "tables", "t", "", "reference tables YAML file (overrides config)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	root.PersistentFlags().StringVar(&f.logFormat, "log-format", "", "text or json (overrides config)")

	run := &cobra.Command{
		Use:   "run",
		Short: "Run every configured stage and report the accepted plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSynthesis(cmd, f)
		},
	}
	run.Flags().IntVarP(&f.workers, "workers", "w", 0, "parallel roots per chunk (overrides config)")
	run.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (overrides config)")
	run.Flags().BoolVar(&f.print, "print", false, "write every plan to stdout")

	inspect := &cobra.Command{
		Use:   "inspect",
		Short: "Load the reference tables and print graph and pool sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInspect(cmd, f)
		},
	}

	root.AddCommand(run, inspect)

	return root
}
