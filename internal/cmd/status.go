package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/runger/ringq/internal/config"
	"github.com/runger/ringq/internal/queue"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue status",
	Long: `Show the committed state of the queue, including:
- Range (start, end) of reachable slots
- Number of queued values and the maximum the queue can hold
- The oldest value, which the next pop returns
- Storage backend and location

Status never modifies the queue.

Examples:
  ringq status
  ringq status --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

// statusOutput is the --json form of queue.Status.
type statusOutput struct {
	Queue       string       `json:"queue"`
	Start       uint8        `json:"start"`
	End         uint8        `json:"end"`
	Len         uint64       `json:"len"`
	MaxLen      uint64       `json:"max_len"`
	Empty       bool         `json:"empty"`
	StoredSlots int64        `json:"stored_slots"`
	Head        *queue.Value `json:"head,omitempty"`
	Backend     string       `json:"backend"`
	Path        string       `json:"path,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	svc, cfg, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	out, err := collectStatus(cmd.Context(), cfg, svc)
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	fmt.Fprintln(cmd.OutOrStdout(), renderStatus(out))
	return nil
}

func collectStatus(ctx context.Context, cfg *config.Config, svc *queue.Service) (statusOutput, error) {
	st, err := svc.Status(ctx)
	if err != nil {
		return statusOutput{}, err
	}

	out := statusOutput{
		Queue:       st.Name,
		Start:       st.Range.Start,
		End:         st.Range.End,
		Len:         st.Len,
		MaxLen:      st.Capacity - 1,
		Empty:       st.Empty(),
		StoredSlots: st.StoredSlots,
		Head:        st.Head,
		Backend:     cfg.Storage.Backend,
	}
	if cfg.Storage.Backend == "sqlite" {
		out.Path = cfg.Storage.Path
	}
	return out, nil
}

func renderStatus(s statusOutput) string {
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), valueStyle.Render(value))
	}

	fill := okStyle
	if s.Len == s.MaxLen {
		fill = warnStyle
	}

	head := dimStyle.Render("(empty)")
	if s.Head != nil {
		head = valueStyle.Render(fmt.Sprintf("%d %t", s.Head.Integer, s.Head.Boolean))
	}

	width := boxWidth() - 2
	storage := s.Backend
	if s.Path != "" {
		storage += " " + s.Path
	}
	// Long database paths are truncated to fit the box.
	storage = runewidth.Truncate(storage, width-2-labelStyle.GetWidth(), "…")

	lines := []string{
		titleStyle.Render("queue " + s.Queue),
		"",
		row("range", fmt.Sprintf("(%d,%d)", s.Start, s.End)),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("length"), fill.Render(fmt.Sprintf("%d/%d", s.Len, s.MaxLen))),
		lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render("head"), head),
		row("slots", fmt.Sprintf("%d stored", s.StoredSlots)),
		row("storage", storage),
	}

	return boxStyle.Width(width).Render(strings.Join(lines, "\n"))
}
