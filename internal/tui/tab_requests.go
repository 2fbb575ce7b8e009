package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winsync/internal/configure"
	"github.com/1broseidon/winsync/internal/ipc"
)

// RequestsTab lists the configure requests that have not latched yet.
type RequestsTab struct {
	table     table.Model
	connected bool

	width  int
	height int
}

// NewRequestsTab creates an empty RequestsTab.
func NewRequestsTab() RequestsTab {
	t := table.New(
		table.WithColumns(requestColumns()),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("15")).
		Background(lipgloss.Color("62"))
	t.SetStyles(styles)
	return RequestsTab{table: t}
}

func requestColumns() []table.Column {
	return []table.Column{
		{Title: "Serial", Width: 8},
		{Title: "VizSeq", Width: 8},
		{Title: "Applied", Width: 8},
		{Title: "Kind", Width: 11},
		{Title: "Bounds", Width: 22},
		{Title: "Pixels", Width: 11},
		{Title: "Scale", Width: 6},
	}
}

// SetStatus refreshes the rows from the daemon status.
func (r *RequestsTab) SetStatus(st *ipc.StatusData) {
	r.connected = st != nil
	if st == nil {
		r.table.SetRows(nil)
		return
	}
	r.table.SetRows(requestRows(st.Requests))
}

func requestRows(reqs []configure.Request) []table.Row {
	rows := make([]table.Row, 0, len(reqs))
	for _, req := range reqs {
		serial := "-"
		if req.Serial != configure.NoSerial {
			serial = fmt.Sprint(req.Serial)
		}
		applied := "no"
		if req.Applied {
			applied = "yes"
		}
		rows = append(rows, table.Row{
			serial,
			fmt.Sprint(req.VizSeq),
			applied,
			req.State.Kind.String(),
			req.State.BoundsDIP.String(),
			req.State.SizePx.String(),
			formatScale(req.State.WindowScale),
		})
	}
	return rows
}

// Update implements tea.Model.
func (r RequestsTab) Update(msg tea.Msg) (RequestsTab, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		r.width = ws.Width
		r.height = ws.Height
		h := ws.Height - 4
		if h < 3 {
			h = 3
		}
		r.table.SetHeight(h)
		return r, nil
	}
	var cmd tea.Cmd
	r.table, cmd = r.table.Update(msg)
	return r, cmd
}

// View implements tea.Model.
func (r RequestsTab) View() string {
	if !r.connected {
		return renderPlaceholder("Daemon not running", r.width, r.height)
	}
	if len(r.table.Rows()) == 0 {
		return renderPlaceholder("No configure requests in flight", r.width, r.height)
	}
	hint := dimStyle.Render("  rows leave the table once a frame for their state is presented")
	return lipgloss.NewStyle().
		Width(r.width).
		Height(r.height).
		Padding(0, 2).
		Render(r.table.View() + "\n\n" + hint)
}
