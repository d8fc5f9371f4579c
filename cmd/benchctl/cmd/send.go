package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SendCmd sends one or more protocol command lines and prints each
// response.
var SendCmd = &cobra.Command{
	Use:   "send <command> [command...]",
	Short: "Send protocol commands to an instrument",
	Long: `Sends each argument as one protocol command line and prints the responses in order.

Examples:
  benchctl send --addr localhost:5025 "volt 2.5" "volt?"
  benchctl send -t lab1.psu "volt?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := dialTarget()
		if err != nil {
			return err
		}
		defer client.Close()

		resps, err := client.Batch(args)
		for _, resp := range resps {
			fmt.Println(resp)
		}
		return err
	},
}

// IdnCmd asks an instrument to identify itself.
var IdnCmd = &cobra.Command{
	Use:   "idn",
	Short: "Query an instrument's identification string",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryAndPrint("*idn?")
	},
}

// TestCmd runs the instrument communication self-check.
var TestCmd = &cobra.Command{
	Use:   "test",
	Short: "Run the instrument communication self-check",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return queryAndPrint("test?")
	},
}

func queryAndPrint(line string) error {
	client, err := dialTarget()
	if err != nil {
		return err
	}
	defer client.Close()

	resp, err := client.Query(line)
	if err != nil {
		return err
	}
	fmt.Println(resp)
	return nil
}

func init() {
	addTargetFlags(SendCmd)
	addTargetFlags(IdnCmd)
	addTargetFlags(TestCmd)
}
