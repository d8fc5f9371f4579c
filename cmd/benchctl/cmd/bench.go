package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pfjsystems/virtbench/internal/configcli"
)

// BenchCmd is the root command for bench-related subcommands.
var BenchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Inspect the benches of the client config",
}

// benchListCmd lists the configured benches and their instruments.
var benchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured benches and their instruments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configcli.LoadCTLConfig()
		if err != nil {
			return err
		}

		benches := cfg.ListBenches()
		if len(benches) == 0 {
			fmt.Println("No benches configured.")
			return nil
		}

		def := cfg.GuessDefaultBench()
		for _, name := range benches {
			marker := ""
			if name == def {
				marker = " (default)"
			}
			fmt.Printf("%s%s\n", name, marker)

			aliases := make([]string, 0, len(cfg.Benches[name].Instruments))
			for alias := range cfg.Benches[name].Instruments {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)
			for _, alias := range aliases {
				fmt.Printf("  %-16s %s\n", alias, cfg.Benches[name].Instruments[alias])
			}
		}
		return nil
	},
}

func init() {
	BenchCmd.AddCommand(benchListCmd)
}
