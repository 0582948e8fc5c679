// Package viz renders partitioning runs in the terminal: a live
// convergence view while the outer loop runs, and static ascii plots of
// stored run histories.
package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/avanberg/stockpart/internal/part"
)

const historyCapacity = 600

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	chargeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	doneStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

type runDoneMsg struct {
	result *part.Result
	err    error
}

// LiveModel is the bubbletea model for the live convergence view. The
// partitioning runs in its own goroutine; iteration records arrive over a
// channel and are drained on every tick.
type LiveModel struct {
	system string
	solver string

	records <-chan part.IterationRecord
	done    <-chan runDoneMsg

	history []part.IterationRecord
	result  *part.Result
	err     error
	quit    bool
}

// NewLive wires a live view to a running partitioner. The caller starts
// the run and feeds records through the returned observer channel.
func NewLive(system, solver string, records <-chan part.IterationRecord, done <-chan runDoneMsg) LiveModel {
	return LiveModel{
		system:  system,
		solver:  solver,
		records: records,
		done:    done,
		history: make([]part.IterationRecord, 0, historyCapacity),
	}
}

// ChannelObserver adapts a channel to the part.Observer interface.
type ChannelObserver chan part.IterationRecord

func (c ChannelObserver) OnIteration(rec part.IterationRecord) { c <- rec }

// RunLive executes the partitioner under a live terminal view and returns
// its result once the view is dismissed.
func RunLive(system, solverName string, run func(part.Observer) (*part.Result, error)) (*part.Result, error) {
	records := make(ChannelObserver, 64)
	done := make(chan runDoneMsg, 1)

	go func() {
		result, err := run(records)
		close(records)
		done <- runDoneMsg{result: result, err: err}
	}()

	m := NewLive(system, solverName, records, done)
	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return nil, err
	}
	fm := final.(LiveModel)
	if fm.err != nil {
		return fm.result, fm.err
	}
	return fm.result, nil
}

func (m LiveModel) Init() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	case TickMsg:
	drain:
		for m.records != nil {
			select {
			case rec, ok := <-m.records:
				if !ok {
					m.records = nil
					break drain
				}
				m.history = append(m.history, rec)
				if len(m.history) > historyCapacity {
					m.history = m.history[1:]
				}
			default:
				break drain
			}
		}
		select {
		case d := <-m.done:
			m.result = d.result
			m.err = d.err
			return m, tea.Quit
		default:
		}
		return m, tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
	}
	return m, nil
}

func (m LiveModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("stockpart  %s  solver=%s", m.system, m.solver)))
	b.WriteString("\n")

	if len(m.history) == 0 {
		b.WriteString(valueStyle.Render("waiting for first iteration..."))
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("q: quit"))
		return b.String()
	}

	last := m.history[len(m.history)-1]
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	row("iteration", fmt.Sprintf("%d", last.Iteration))
	row("max change", fmt.Sprintf("%.3e", last.MaxChange))
	row("entropy", fmt.Sprintf("%.6f", last.Entropy))

	charges := make([]string, len(last.Charges))
	for a, q := range last.Charges {
		charges[a] = fmt.Sprintf("%+.4f", q)
	}
	b.WriteString(labelStyle.Render("charges"))
	b.WriteString(chargeStyle.Render(strings.Join(charges, "  ")))
	b.WriteString("\n")

	b.WriteString(graphStyle.Render(convergenceGraph(m.history, 60, 10)))
	b.WriteString("\n")

	if m.result != nil {
		switch m.result.Status {
		case part.StatusConverged:
			b.WriteString(doneStyle.Render("converged"))
		default:
			b.WriteString(failStyle.Render(string(m.result.Status)))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("q: quit"))
	return b.String()
}

// convergenceGraph plots log10 of the max charge change per iteration.
func convergenceGraph(history []part.IterationRecord, width, height int) string {
	data := make([]float64, 0, len(history))
	for _, rec := range history {
		v := rec.MaxChange
		if v <= 0 || math.IsInf(v, 0) {
			continue
		}
		data = append(data, math.Log10(v))
	}
	if len(data) < 2 {
		return "collecting data..."
	}
	return asciigraph.Plot(data,
		asciigraph.Width(width),
		asciigraph.Height(height),
		asciigraph.Caption("log10 max charge change"),
	)
}
