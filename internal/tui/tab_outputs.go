package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/winsync/internal/output"
)

// outputItem adapts an output to list.DefaultItem.
type outputItem struct {
	out     output.Output
	entered bool
}

func (i outputItem) Title() string {
	if i.entered {
		return i.out.Name + " ●"
	}
	return i.out.Name
}

func (i outputItem) Description() string {
	return fmt.Sprintf("id %d  %s  scale %s", i.out.ID, i.out.Bounds, formatScale(i.out.Scale))
}

func (i outputItem) FilterValue() string { return i.out.Name }

// OutputsTab lists the outputs known to the backend and marks the ones the
// window currently overlaps.
type OutputsTab struct {
	list      list.Model
	connected bool
}

// NewOutputsTab creates an empty OutputsTab.
func NewOutputsTab() OutputsTab {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Outputs"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	return OutputsTab{list: l}
}

// SetOutputs replaces the listed outputs. entered holds the IDs of the
// outputs the window is on.
func (o *OutputsTab) SetOutputs(outs []output.Output, entered []uint32, connected bool) tea.Cmd {
	o.connected = connected
	on := make(map[uint32]bool, len(entered))
	for _, id := range entered {
		on[id] = true
	}
	items := make([]list.Item, 0, len(outs))
	for _, out := range outs {
		items = append(items, outputItem{out: out, entered: on[out.ID]})
	}
	return o.list.SetItems(items)
}

// Update implements tea.Model.
func (o OutputsTab) Update(msg tea.Msg) (OutputsTab, tea.Cmd) {
	if ws, ok := msg.(tea.WindowSizeMsg); ok {
		o.list.SetSize(ws.Width, ws.Height)
		return o, nil
	}
	var cmd tea.Cmd
	o.list, cmd = o.list.Update(msg)
	return o, cmd
}

// View implements tea.Model.
func (o OutputsTab) View() string {
	if !o.connected {
		return renderPlaceholder("Daemon not running", o.list.Width(), o.list.Height())
	}
	return o.list.View()
}
