package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/runger/ringq/internal/queue"
)

var (
	pushBool     bool
	pushManyBool bool
)

var pushCmd = &cobra.Command{
	Use:   "push <integer>",
	Short: "Push one value onto the queue",
	Long: `Push one (integer, boolean) value onto the end of the queue.

When the queue is full the oldest value is overwritten.

Examples:
  ringq push 42
  ringq push --bool -- -7
  ringq --queue jobs push 1`,
	Args: cobra.ExactArgs(1),
	RunE: runPush,
}

var pushManyCmd = &cobra.Command{
	Use:   "push-many <integer>...",
	Short: "Push several values in one batch",
	Long: `Push one value per integer, in order, all sharing the same boolean.
The whole batch is committed once.

Examples:
  ringq push-many 1 2 3
  ringq push-many 4 5 --bool`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPushMany,
}

func init() {
	pushCmd.Flags().BoolVar(&pushBool, "bool", false, "boolean half of the value")
	pushManyCmd.Flags().BoolVar(&pushManyBool, "bool", false, "boolean half of every value")
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pushManyCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	integers, err := parseIntegers(args)
	if err != nil {
		return err
	}

	svc, _, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := svc.AddToQueue(cmd.Context(), integers[0], pushBool); err != nil {
		return err
	}
	return printRange(cmd, svc)
}

func runPushMany(cmd *cobra.Command, args []string) error {
	integers, err := parseIntegers(args)
	if err != nil {
		return err
	}

	svc, _, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	if err := svc.AddMultiple(cmd.Context(), integers, pushManyBool); err != nil {
		return err
	}
	return printRange(cmd, svc)
}

func parseIntegers(args []string) ([]int32, error) {
	integers := make([]int32, len(args))
	for i, arg := range args {
		v, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q: must fit in 32 bits", arg)
		}
		integers[i] = int32(v)
	}
	return integers, nil
}

func printRange(cmd *cobra.Command, svc *queue.Service) error {
	r, err := svc.Range(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", svc.Name(), r)
	return nil
}
