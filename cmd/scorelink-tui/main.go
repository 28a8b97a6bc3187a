package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rmax-ai/scorelink/pkg/client"
	"github.com/rmax-ai/scorelink/pkg/protocol"
)

const (
	defaultPollRate = 2 * time.Second
	maxScores       = 15
	viewportHeight  = 15
)

// Styles
var (
	subtleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			Width(100)

	paneStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(100)

	nodeStyle     = lipgloss.NewStyle().Width(30)
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	weightStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("99"))
)

// source is the slice of the client the dashboard reads.
type source interface {
	Ping(ctx context.Context) (string, error)
	Scores(ctx context.Context, src string, opts client.ScoresOptions) ([]client.ScoreRecord, error)
	EdgeList(ctx context.Context, target protocol.ReadTarget) ([]client.EdgeRecord, error)
}

type tickMsg time.Time

type dataMsg struct {
	version string
	scores  []client.ScoreRecord
	edges   []client.EdgeRecord
	err     error
}

type model struct {
	src      source
	ego      string
	target   protocol.ReadTarget
	pollRate time.Duration

	spinner  spinner.Model
	viewport viewport.Model
	version  string
	scores   []client.ScoreRecord
	edges    []client.EdgeRecord
	err      error
	ready    bool
}

func newViewport(width int) viewport.Model {
	vp := viewport.New(width, viewportHeight)
	vp.Style = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		PaddingRight(2)
	return vp
}

func initialModel(src source, ego string, target protocol.ReadTarget, pollRate time.Duration) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		src:      src,
		ego:      ego,
		target:   target,
		pollRate: pollRate,
		spinner:  s,
		viewport: newViewport(100),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.fetchData(),
		m.tick(),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case tickMsg:
		cmds = append(cmds, m.fetchData(), m.tick())

	case dataMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.err = nil
			m.version = msg.version
			m.scores = msg.scores
			m.edges = msg.edges
			m.updateViewportContent()
		}
		m.ready = true

	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = viewportHeight
		m.ready = true
	}

	return m, tea.Batch(cmds...)
}

func (m *model) updateViewportContent() {
	var sb strings.Builder
	for _, e := range m.edges {
		sb.WriteString(fmt.Sprintf("%s → %s %s\n",
			nodeStyle.Render(e.Src),
			nodeStyle.Render(e.Dst),
			weightStyle.Render(fmt.Sprintf("%.4g", e.Weight)),
		))
	}
	m.viewport.SetContent(sb.String())
}

func renderScore(r client.ScoreRecord) string {
	style := positiveStyle
	if r.Score < 0 {
		style = negativeStyle
	}
	return fmt.Sprintf("• %s %s\n", nodeStyle.Render(r.Dst), style.Render(fmt.Sprintf("%+.4f", r.Score)))
}

func (m model) View() string {
	if !m.ready {
		return fmt.Sprintf("\n%s Connecting...", m.spinner.View())
	}

	var top strings.Builder
	top.WriteString(lipgloss.NewStyle().Bold(true).Underline(true).Render(
		fmt.Sprintf("Top scores for %s (%s)", m.ego, m.target)) + "\n\n")
	if len(m.scores) == 0 {
		top.WriteString(subtleStyle.Render("No scores."))
	} else {
		for _, r := range m.scores {
			top.WriteString(renderScore(r))
		}
	}
	topPane := paneStyle.Render(top.String())

	header := headerStyle.Render(fmt.Sprintf("%s Edges", m.spinner.View()))
	bottomPane := m.viewport.View()

	var status string
	if m.err != nil {
		status = errorStyle.Render(fmt.Sprintf("Offline: %v", m.err))
	} else {
		status = okStyle.Render(fmt.Sprintf("Online • %s • %d Edges", m.version, len(m.edges)))
	}
	footer := subtleStyle.Render(fmt.Sprintf("\n%s\nPress q to quit", status))

	return lipgloss.JoinVertical(lipgloss.Left, topPane, header, bottomPane, footer)
}

// Commands

func (m model) fetchData() tea.Cmd {
	src, ego, target, timeout := m.src, m.ego, m.target, m.pollRate
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		version, err := src.Ping(ctx)
		if err != nil {
			return dataMsg{err: err}
		}
		scores, err := src.Scores(ctx, ego, client.ScoresOptions{
			Context: target,
			Count:   protocol.Uint(maxScores),
		})
		if err != nil {
			return dataMsg{err: err}
		}
		edges, err := src.EdgeList(ctx, target)
		if err != nil {
			return dataMsg{err: err}
		}
		return dataMsg{version: version, scores: scores, edges: edges}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.pollRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func main() {
	ego := flag.String("ego", "", "node whose scores are shown")
	ctxName := flag.String("context", "", "named context (default: aggregate)")
	pollRate := flag.Duration("poll", defaultPollRate, "refresh interval")
	flag.Parse()

	if *ego == "" {
		fmt.Println("Usage: scorelink-tui -ego <node> [-context name] [-poll 2s]")
		os.Exit(1)
	}

	cfg, err := client.LoadConfig(os.Getenv)
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	c, err := client.NewClient(cfg)
	if err != nil {
		fmt.Printf("Client error: %v\n", err)
		os.Exit(1)
	}

	target := protocol.Aggregate()
	if *ctxName != "" {
		target = protocol.ReadFrom(*ctxName)
	}

	p := tea.NewProgram(initialModel(c, *ego, target, *pollRate), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Alas, there's been an error: %v", err)
		os.Exit(1)
	}
}
