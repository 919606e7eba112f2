package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/restoretrace/pkg/replay"
)

var (
	barFullStyle  = lipgloss.NewStyle().Foreground(colorCyan)
	barEmptyStyle = lipgloss.NewStyle().Foreground(colorDim)
)

const (
	barWidth     = 40
	tickInterval = 100 * time.Millisecond
	maxURLWidth  = 72
)

type (
	resultMsg replay.Result
	tickMsg   time.Time
	finishMsg struct{}
)

// ReplayProgressModel is the bubbletea model of the live replay view.
type ReplayProgressModel struct {
	Total     int
	Completed int
	Failed    int
	Errors    int
	Last      string
	Started   time.Time
	Now       time.Time
	Done      bool
	Aborted   bool

	cancel context.CancelFunc
}

// NewReplayProgressModel creates a model for a plan of total requests.
// cancel is invoked when the user presses ctrl+c or q.
func NewReplayProgressModel(total int, cancel context.CancelFunc) ReplayProgressModel {
	now := time.Now()
	return ReplayProgressModel{Total: total, Started: now, Now: now, cancel: cancel}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m ReplayProgressModel) Init() tea.Cmd {
	return tick()
}

func (m ReplayProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.Aborted = true
			if m.cancel != nil {
				m.cancel()
			}
		}
	case resultMsg:
		m.Completed++
		r := replay.Result(msg)
		switch {
		case r.Err != nil:
			m.Errors++
		case !r.Succeeded():
			m.Failed++
		}
		m.Last = fmt.Sprintf("%s %s", statusText(r), r.URL)
	case tickMsg:
		m.Now = time.Time(msg)
		if !m.Done {
			return m, tick()
		}
	case finishMsg:
		m.Done = true
		m.Now = time.Now()
		return m, tea.Quit
	}
	return m, nil
}

func (m ReplayProgressModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Replaying"))
	if m.Aborted && !m.Done {
		b.WriteString(" " + StyleWarning.Render("stopping, waiting for in-flight requests"))
	}
	b.WriteString("\n")

	b.WriteString(progressBar(m.Completed, m.Total, barWidth))
	fmt.Fprintf(&b, " %s/%d  %s\n",
		StyleNumber.Render(fmt.Sprint(m.Completed)), m.Total,
		StyleDim.Render(m.Now.Sub(m.Started).Round(time.Second/10).String()))

	fmt.Fprintf(&b, "%s  %s  %s\n",
		StyleSuccess.Render(fmt.Sprintf("%d ok", m.Completed-m.Failed-m.Errors)),
		StyleWarning.Render(fmt.Sprintf("%d failed", m.Failed)),
		styleIconError.Render(fmt.Sprintf("%d errors", m.Errors)))

	if m.Last != "" {
		b.WriteString(StyleDim.Render(truncate(m.Last, maxURLWidth)))
		b.WriteString("\n")
	}
	if !m.Done {
		b.WriteString(StyleDim.Render("q stop"))
		b.WriteString("\n")
	}
	return b.String()
}

func progressBar(done, total, width int) string {
	filled := 0
	if total > 0 {
		filled = min(width, done*width/total)
	}
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", width-filled))
}

func statusText(r replay.Result) string {
	if r.Err != nil {
		return "ERR"
	}
	return fmt.Sprint(r.StatusCode)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

// runWithProgress runs fn while a progress view on stderr follows its
// results. The view stops once fn returns.
func runWithProgress(ctx context.Context, total int, fn func(context.Context, replay.Recorder) (*replay.Summary, error)) (*replay.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewReplayProgressModel(total, cancel), tea.WithOutput(os.Stderr))

	type outcome struct {
		sum *replay.Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := fn(ctx, replay.RecorderFunc(func(r replay.Result) { p.Send(resultMsg(r)) }))
		p.Send(finishMsg{})
		done <- outcome{sum, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-done
		return nil, fmt.Errorf("progress view: %w", err)
	}
	o := <-done
	return o.sum, o.err
}
