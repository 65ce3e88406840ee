package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/shlex"
	"github.com/spf13/cobra"

	"github.com/runger/ringq/internal/queue"
)

var batchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Run a script of queue operations as one commit",
	Long: `Read queue operations from a file (or stdin) and run them as a single
batch: the queue is locked once and its range is committed once, at the end.

One operation per line; blank lines and # comments are ignored:
  push <integer> [true|false]
  pop
  peek

pop and peek print the value they read, or "(empty)".

Examples:
  printf 'push 1\npush 2 true\npop\n' | ringq batch
  ringq batch ops.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
}

// batchOp is one parsed script line.
type batchOp struct {
	line  int
	name  string
	value queue.Value
}

func runBatch(cmd *cobra.Command, args []string) error {
	in := cmd.InOrStdin()
	if len(args) == 1 {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open script: %w", err)
		}
		defer f.Close()
		in = f
	}

	ops, err := parseBatch(in)
	if err != nil {
		return err
	}

	svc, _, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	err = svc.Batch(ctx, func(b *queue.Batch) error {
		for _, op := range ops {
			var (
				v   queue.Value
				ok  bool
				err error
			)
			switch op.name {
			case "push":
				err = b.Push(ctx, op.value)
			case "pop":
				v, ok, err = b.Pop(ctx)
			case "peek":
				v, ok, err = b.Peek(ctx)
			}
			if err != nil {
				return fmt.Errorf("line %d: %w", op.line, err)
			}
			if op.name == "push" {
				continue
			}
			if ok {
				fmt.Fprintf(out, "%d %t\n", v.Integer, v.Boolean)
			} else {
				fmt.Fprintln(out, dimStyle.Render("(empty)"))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	return printRange(cmd, svc)
}

// parseBatch reads a whole script before anything touches the queue, so a
// syntax error never leaves a half-applied batch.
func parseBatch(r io.Reader) ([]batchOp, error) {
	var ops []batchOp
	scanner := bufio.NewScanner(r)
	for n := 1; scanner.Scan(); n++ {
		fields, err := shlex.Split(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", n, err)
		}
		if len(fields) == 0 {
			continue
		}

		op := batchOp{line: n, name: fields[0]}
		switch op.name {
		case "push":
			if len(fields) < 2 || len(fields) > 3 {
				return nil, fmt.Errorf("line %d: usage: push <integer> [true|false]", n)
			}
			integers, err := parseIntegers(fields[1:2])
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", n, err)
			}
			op.value.Integer = integers[0]
			if len(fields) == 3 {
				op.value.Boolean, err = strconv.ParseBool(fields[2])
				if err != nil {
					return nil, fmt.Errorf("line %d: invalid boolean %q", n, fields[2])
				}
			}
		case "pop", "peek":
			if len(fields) != 1 {
				return nil, fmt.Errorf("line %d: %s takes no arguments", n, op.name)
			}
		default:
			return nil, fmt.Errorf("line %d: unknown operation %q", n, op.name)
		}
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	return ops, nil
}
