package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/pfjsystems/virtbench/internal/benchcli"
)

const replHistorySize = 500

// ReplCmd opens an interactive prompt on one instrument. Every entered
// line goes to the instrument verbatim; the response is printed below
// it. Ctrl-D or Ctrl-C leaves the prompt without touching the
// instrument; close still reaches the instrument like any command.
var ReplCmd = &cobra.Command{
	Use:   "repl",
	Short: "Open an interactive prompt on an instrument",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddr()
		if err != nil {
			return err
		}
		client, err := benchcli.Dial(addr)
		if err != nil {
			return err
		}
		defer client.Close()

		rl, err := readline.NewFromConfig(&readline.Config{
			Prompt:                 addr + "> ",
			HistoryFile:            historyPath(),
			HistoryLimit:           replHistorySize,
			DisableAutoSaveHistory: true,
		})
		if err != nil {
			return fmt.Errorf("readline init failed: %w", err)
		}
		defer rl.Close()

		for {
			line, err := rl.Readline()
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			rl.SaveToHistory(line)

			resp, err := client.Query(line)
			if err != nil {
				return err
			}
			fmt.Println(resp)
		}
	},
}

// historyPath is where the REPL keeps its command history. An empty
// path disables persistence.
func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".virtbench", "benchctl_history")
}

func init() {
	addTargetFlags(ReplCmd)
}
