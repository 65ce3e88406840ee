package cmd

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var watchInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show queue status, refreshed live",
	Long: `Show the status box of "ringq status" and refresh it until you press
q, Esc or Ctrl+C.

Examples:
  ringq watch
  ringq watch --interval 250ms`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "refresh interval")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("invalid interval %s: must be positive", watchInterval)
	}

	svc, cfg, closer, err := openService()
	if err != nil {
		return err
	}
	defer closer()

	ctx := cmd.Context()
	fetch := func() (statusOutput, error) {
		return collectStatus(ctx, cfg, svc)
	}

	p := tea.NewProgram(newWatchModel(fetch, watchInterval),
		tea.WithContext(ctx),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	_, err = p.Run()
	return err
}

// statusMsg carries the result of one status read.
type statusMsg struct {
	status statusOutput
	err    error
}

// refreshMsg fires when it is time to read the status again.
type refreshMsg struct{}

// watchModel is the Bubble Tea model behind "ringq watch".
type watchModel struct {
	fetch    func() (statusOutput, error)
	interval time.Duration

	status  statusOutput
	err     error
	loaded  bool
	updated time.Time
}

func newWatchModel(fetch func() (statusOutput, error), interval time.Duration) watchModel {
	return watchModel{fetch: fetch, interval: interval}
}

func (m watchModel) Init() tea.Cmd {
	return m.read
}

// read is a tea.Cmd; it runs off the update loop.
func (m watchModel) read() tea.Msg {
	st, err := m.fetch()
	return statusMsg{status: st, err: err}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyEsc, tea.KeyCtrlC:
			return m, tea.Quit
		case tea.KeyRunes:
			if msg.String() == "q" {
				return m, tea.Quit
			}
		}
		return m, nil

	case statusMsg:
		m.status, m.err = msg.status, msg.err
		m.loaded = true
		m.updated = time.Now()
		return m, tea.Tick(m.interval, func(time.Time) tea.Msg {
			return refreshMsg{}
		})

	case refreshMsg:
		return m, m.read
	}

	return m, nil
}

func (m watchModel) View() string {
	if !m.loaded {
		return dimStyle.Render("loading...") + "\n"
	}

	var body string
	if m.err != nil {
		body = warnStyle.Render("error: "+m.err.Error()) + "\n"
	} else {
		body = renderStatus(m.status) + "\n"
	}
	return body + dimStyle.Render(fmt.Sprintf("updated %s, q to quit", m.updated.Format(time.TimeOnly))) + "\n"
}

var _ tea.Model = watchModel{}
