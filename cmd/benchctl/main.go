// Command benchctl provides CLI control over virtbench instruments.
// It talks the line protocol over TCP to any instrument endpoint,
// addressed directly or through the named benches of the client config.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pfjsystems/virtbench/cmd/benchctl/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "benchctl",
	Short: "Control interface for virtbench instruments",
	Long:  `benchctl sends commands over the instrument line protocol to virtual instruments hosted by virtbenchd.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(cmd.SendCmd)
	rootCmd.AddCommand(cmd.IdnCmd)
	rootCmd.AddCommand(cmd.TestCmd)
	rootCmd.AddCommand(cmd.ReplCmd)
	rootCmd.AddCommand(cmd.ScriptCmd)
	rootCmd.AddCommand(cmd.BenchCmd)
}
