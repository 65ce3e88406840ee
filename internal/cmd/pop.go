package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var popCmd = &cobra.Command{
	Use:   "pop",
	Short: "Pop the oldest value from the queue",
	Long: `Remove and print the oldest value in the queue.

An empty queue is not an error: pop prints "(empty)" and exits 0.

Examples:
  ringq pop
  ringq --queue jobs pop`,
	Args: cobra.NoArgs,
	RunE: runPop,
}

func init() {
	rootCmd.AddCommand(popCmd)
}

func runPop(cmd *cobra.Command, args []string) error {
	svc, _, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	v, ok, err := svc.PopFromQueue(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, dimStyle.Render("(empty)"))
		return nil
	}
	fmt.Fprintf(out, "%d %t\n", v.Integer, v.Boolean)
	return nil
}
