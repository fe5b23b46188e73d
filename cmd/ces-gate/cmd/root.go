// Package cmd provides the CLI commands for CES Gate.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odisys/ces-gate/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "ces-gate",
	Short: "CES Gate - constitutional enforcement pipeline",
	Long: `CES Gate routes free-form user text through a three-stage decision
pipeline before any side-effecting action is allowed to execute:

  1. Intent classification: deterministic reflex tiers (safety, cancellation,
     confirmation) with a semantic fallback to an external classifier.
  2. Action drafting: a naive, untrusted draft of the proposed action.
  3. Constitutional evaluation: an ordered, externally configured rule set
     that can veto or rewrite the draft and produces an auditable verdict.

Quick start:
  1. Create a config file: ces-gate.yaml
  2. Write a constitution: constitution.yaml
  3. Run: ces-gate serve

Configuration:
  Config is loaded from ces-gate.yaml in the current directory,
  $HOME/.ces-gate/, or /etc/ces-gate/.

  Environment variables can override config values with the CES_GATE_ prefix.
  Example: CES_GATE_SERVER_HTTP_ADDR=:9090

Commands:
  serve       Start the HTTP server
  eval        Run one input through the pipeline and print the result
  version     Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./ces-gate.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
