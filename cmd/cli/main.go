package main

import (
	"fmt"
	"os"

	"github.com/araina/gumshoe/cmd/cli/cases"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func init() {
	// The .env file is optional. Real deployments configure the process
	// environment directly.
	_ = godotenv.Load()
	rootCmd.AddGroup(cases.Group)
	rootCmd.AddCommand(cases.List, cases.Create, cases.Activate, cases.Ask)
}

var rootCmd = &cobra.Command{
	Use:  "gumshoe-cli",
	Long: `Command line utilities for Gumshoe https://github.com/araina/gumshoe`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
