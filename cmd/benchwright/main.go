package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "benchwright",
		Short: "Benchwright - benchmark-gated workspace orchestrator",
		Long: `Benchwright manages short-lived git workspaces for performance work.
It tracks each workspace through its lifecycle, runs baseline/candidate
benchmark sessions against it, and validates the resulting change
message against the team's messaging policy.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
