package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/docrag/engine/internal/config"
	"github.com/docrag/engine/internal/rpc"
	"github.com/docrag/engine/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var folder string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the policy folder and show a live indexing dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, folder)
		},
	}

	cmd.Flags().StringVar(&folder, "folder", "", "folder to watch (default: <workspace-root>/<policy folder name>)")
	return cmd
}

func runWatch(cmd *cobra.Command, folder string) error {
	ctx := cmd.Context()
	engine, err := openEngine(ctx)
	if err != nil {
		return fmt.Errorf("open engine: %w", err)
	}
	defer engine.Close()

	cfg, err := config.Load(workspaceRoot)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if folder == "" {
		folder = filepath.Join(workspaceRoot, cfg.Watch.PolicyFolderName)
	}

	if err := engine.Watcher().SetFolder(ctx, folder); err != nil {
		return fmt.Errorf("watch %s: %w", folder, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", folder)

	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); !ok || !isatty.IsTerminal(f.Fd()) {
		return runWatchPlain(ctx, cmd, engine)
	}

	p := tea.NewProgram(newWatchModel(ctx, engine, folder))
	_, err = p.Run()
	return err
}

// runWatchPlain prints periodic status lines instead of the interactive
// dashboard, for piped or non-TTY output.
func runWatchPlain(ctx context.Context, cmd *cobra.Command, engine *rpc.Engine) error {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats, err := engine.GetStats(ctx)
			if err != nil {
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] state=%s documents=%d chunks=%d\n",
				time.Now().Format(time.Kitchen), engine.Watcher().State(), stats.TotalDocuments, stats.Chunks.TotalChunks)
		}
	}
}

var (
	watchHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	watchLabelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	watchValueStyle  = lipgloss.NewStyle().Bold(true)
)

type watchTickMsg time.Time

type watchModel struct {
	ctx    context.Context
	engine *rpc.Engine
	folder string

	state          watcher.State
	totalDocuments int
	totalChunks    int
	lastErr        error
	spinner        spinner.Model
}

func newWatchModel(ctx context.Context, engine *rpc.Engine, folder string) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))
	return watchModel{ctx: ctx, engine: engine, folder: folder, spinner: sp}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(tickWatch(), refreshWatch(m.ctx, m.engine), m.spinner.Tick)
}

func tickWatch() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return watchTickMsg(t) })
}

type watchStatsMsg struct {
	state          watcher.State
	totalDocuments int
	totalChunks    int
	err            error
}

func refreshWatch(ctx context.Context, engine *rpc.Engine) tea.Cmd {
	return func() tea.Msg {
		stats, err := engine.GetStats(ctx)
		if err != nil {
			return watchStatsMsg{err: err}
		}
		return watchStatsMsg{
			state:          engine.Watcher().State(),
			totalDocuments: stats.TotalDocuments,
			totalChunks:    stats.Chunks.TotalChunks,
		}
	}
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case watchTickMsg:
		return m, tea.Batch(tickWatch(), refreshWatch(m.ctx, m.engine))
	case watchStatsMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.state = msg.state
		m.totalDocuments = msg.totalDocuments
		m.totalChunks = msg.totalChunks
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m watchModel) View() string {
	row := func(label string, value any) string {
		return watchLabelStyle.Render(label+":") + " " + watchValueStyle.Render(fmt.Sprint(value)) + "\n"
	}

	indicator := " "
	if m.state == watcher.StateWatching {
		indicator = m.spinner.View()
	}

	s := indicator + " " + watchHeaderStyle.Render("docrag watch") + "\n\n"
	s += row("folder", m.folder)
	s += row("state", m.state)
	s += row("documents", m.totalDocuments)
	s += row("chunks", m.totalChunks)
	if m.lastErr != nil {
		s += "\n" + lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("error: "+m.lastErr.Error()) + "\n"
	}
	s += "\n(press q to quit)\n"
	return s
}
