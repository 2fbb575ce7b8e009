package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/windowstate"
)

// stateKeys maps the window tab's keys to client-initiated state changes.
var stateKeys = map[string]windowstate.Kind{
	"n": windowstate.Normal,
	"z": windowstate.Minimized,
	"m": windowstate.Maximized,
	"f": windowstate.Fullscreen,
	"t": windowstate.Tiled,
}

// WindowTab shows the applied and latched state side by side along with
// configure backpressure.
type WindowTab struct {
	client daemonClient
	status *ipc.StatusData

	width  int
	height int
}

// NewWindowTab creates a WindowTab issuing actions through client.
func NewWindowTab(client daemonClient) WindowTab {
	return WindowTab{client: client}
}

// SetStatus replaces the displayed daemon status; nil means disconnected.
func (w *WindowTab) SetStatus(st *ipc.StatusData) {
	w.status = st
}

// Update implements tea.Model.
func (w WindowTab) Update(msg tea.Msg) (WindowTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if w.status == nil || w.client == nil {
			return w, nil
		}
		if kind, ok := stateKeys[msg.String()]; ok {
			return w, setStateCmd(w.client, kind)
		}
		if msg.String() == "x" {
			return w, loseProducerCmd(w.client)
		}
	case tea.WindowSizeMsg:
		w.width = msg.Width
		w.height = msg.Height
	}
	return w, nil
}

func setStateCmd(client daemonClient, kind windowstate.Kind) tea.Cmd {
	return func() tea.Msg {
		if err := client.SetWindowState(kind); err != nil {
			return statusMsg{text: err.Error(), isError: true}
		}
		return statusMsg{text: "requested " + kind.String()}
	}
}

func loseProducerCmd(client daemonClient) tea.Cmd {
	return func() tea.Msg {
		if err := client.LoseProducer(); err != nil {
			return statusMsg{text: err.Error(), isError: true}
		}
		return statusMsg{text: "frame producer dropped"}
	}
}

// View implements tea.Model.
func (w WindowTab) View() string {
	if w.status == nil {
		return renderPlaceholder("Daemon not running. Start it with: winsync daemon", w.width, w.height)
	}
	st := w.status

	headStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Bold(true)
	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(14).
		Align(lipgloss.Right).
		PaddingRight(2)
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Width(28)
	changedStyle := valueStyle.Foreground(lipgloss.Color("214"))

	row := func(label, applied, latched string) string {
		vs := valueStyle
		if applied != latched {
			vs = changedStyle
		}
		return labelStyle.Render(label) + vs.Render(applied) + valueStyle.Render(latched)
	}

	a, l := st.Applied, st.Latched
	lines := []string{
		labelStyle.Render("") + headStyle.Width(28).Render("Applied") + headStyle.Render("Latched"),
		row("Kind", a.Kind.String(), l.Kind.String()),
		row("Bounds", a.BoundsDIP.String(), l.BoundsDIP.String()),
		row("Pixels", a.SizePx.String(), l.SizePx.String()),
		row("Scale", formatScale(a.WindowScale), formatScale(l.WindowScale)),
		row("Occlusion", a.Occlusion.String(), l.Occlusion.String()),
		row("Tiled", edgeList(a.Tiled), edgeList(l.Tiled)),
		row("Suspended", fmt.Sprint(a.Suspended), fmt.Sprint(l.Suspended)),
		"",
		labelStyle.Render("Backpressure") + gauge(st.Outstanding, st.MaxOutstanding, 20),
		labelStyle.Render("Last acked") + valueStyle.Render(fmt.Sprintf("serial %d", st.LastAckedSerial)),
		labelStyle.Render("Frames") + valueStyle.Render(fmt.Sprintf("%d presented, seq %d", st.FramesPresented, st.ProducedSeq)),
		labelStyle.Render("Overlays") + valueStyle.Render(fmt.Sprint(st.OverlaySurfaces)),
		labelStyle.Render("Activated") + valueStyle.Render(fmt.Sprint(st.Activated)),
		"",
		dimStyle.Render("  n: normal  z: minimize  m: maximize  f: fullscreen  t: tiled  x: drop frame producer"),
	}

	return lipgloss.NewStyle().
		Width(w.width).
		Height(w.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

// gauge renders outstanding/max as a bar of the given cell width.
func gauge(n, max, width int) string {
	if max <= 0 {
		max = 1
	}
	filled := n * width / max
	if filled > width {
		filled = width
	}
	color := lipgloss.Color("42")
	if n >= max {
		color = lipgloss.Color("196")
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		dimStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %d/%d", bar, n, max)
}

func formatScale(v float32) string {
	return fmt.Sprintf("%.2fx", v)
}

func edgeList(e windowstate.TiledEdges) string {
	if !e.Any() {
		return "-"
	}
	return strings.Join(e.Names(), ",")
}
