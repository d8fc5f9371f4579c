package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// ScriptCmd plays a file of protocol command lines against one
// instrument, printing each command with its response. Blank lines and
// lines starting with '#' are skipped.
var ScriptCmd = &cobra.Command{
	Use:   "script <file>",
	Short: "Play a file of protocol commands against an instrument",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}

		var lines []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) == 0 {
			return fmt.Errorf("script '%s' holds no commands", args[0])
		}

		client, err := dialTarget()
		if err != nil {
			return err
		}
		defer client.Close()

		resps, err := client.Batch(lines)
		for i, resp := range resps {
			fmt.Printf("%s => %s\n", lines[i], resp)
		}
		return err
	},
}

func init() {
	addTargetFlags(ScriptCmd)
}
