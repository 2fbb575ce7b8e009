package tui

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winsync/internal/config"
)

type savePhase int

const (
	saveHidden  savePhase = iota
	savePreview           // showing changes, awaiting confirm
	saveResult            // showing outcome message
)

var errNoChanges = errors.New("no changes to save")

// changeGroup holds the changes under one top-level config key.
type changeGroup struct {
	section string
	changes []config.Change
}

// SaveOverlay previews pending config changes, grouped by section and marked
// live or restart, then writes the file and asks the daemon to reload.
type SaveOverlay struct {
	phase        savePhase
	groups       []changeGroup
	err          error
	reloaded     bool
	scrollOffset int
}

// Active reports whether the overlay is visible.
func (s SaveOverlay) Active() bool {
	return s.phase != saveHidden
}

// Show computes the pending changes and opens the preview.
func (s *SaveOverlay) Show(original, current *config.Config) {
	s.err = nil
	s.reloaded = false
	s.scrollOffset = 0
	s.groups = nil

	changes, err := config.Diff(original, current)
	switch {
	case err != nil:
		s.err = err
	case len(changes) == 0:
		s.err = errNoChanges
	}
	if s.err != nil {
		s.phase = saveResult
		return
	}
	s.groups = groupChanges(changes)
	s.phase = savePreview
}

// SaveSucceeded reports whether the last save completed without error.
func (s SaveOverlay) SaveSucceeded() bool {
	return s.phase == saveResult && s.err == nil
}

// restartNeeded counts changes a reload does not apply.
func (s SaveOverlay) restartNeeded() int {
	n := 0
	for _, g := range s.groups {
		for _, c := range g.changes {
			if !c.Live {
				n++
			}
		}
	}
	return n
}

// Update handles input while the overlay is active. On confirm cfg is
// written to path and a connected daemon is asked to reload.
func (s SaveOverlay) Update(msg tea.Msg, cfg *config.Config, path string, client daemonClient, connected bool) SaveOverlay {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return s
	}
	switch s.phase {
	case savePreview:
		switch km.String() {
		case "esc":
			s.phase = saveHidden
		case "enter", "y":
			s.err = cfg.Save(path)
			if s.err == nil && connected && client != nil {
				s.reloaded = client.Reload() == nil
			}
			s.phase = saveResult
		case "up", "k":
			if s.scrollOffset > 0 {
				s.scrollOffset--
			}
		case "down", "j":
			s.scrollOffset++
		}
	case saveResult:
		s.phase = saveHidden
	}
	return s
}

// View renders the overlay for the given content area dimensions.
func (s SaveOverlay) View(width, height int) string {
	switch s.phase {
	case savePreview:
		return s.viewPreview(width, height)
	case saveResult:
		return s.viewResult(width, height)
	}
	return ""
}

var (
	saveTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	saveSectionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75"))
	saveAddStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	saveRemoveStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	saveLiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	saveRestartStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	saveFootStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	saveBoxStyle     = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(1, 2)
)

// previewLines renders every group: a section header, then one line per
// change with the old and new value and its reload behaviour.
func (s SaveOverlay) previewLines(innerW int) []string {
	var lines []string
	for _, g := range s.groups {
		lines = append(lines, saveSectionStyle.Render(g.section))
		for _, c := range g.changes {
			tag := saveRestartStyle.Render("[restart]")
			if c.Live {
				tag = saveLiveStyle.Render("[live]")
			}
			key := strings.TrimPrefix(c.Path, g.section+".")
			lines = append(lines, "  "+truncate(key, innerW-12)+" "+tag)
			if c.Old != "" {
				lines = append(lines, saveRemoveStyle.Render("    - "+truncate(c.Old, innerW-8)))
			}
			if c.New != "" {
				lines = append(lines, saveAddStyle.Render("    + "+truncate(c.New, innerW-8)))
			}
		}
	}
	return lines
}

func (s SaveOverlay) viewPreview(areaW, areaH int) string {
	boxW := min(max(areaW-8, 30), 80)
	innerW := max(boxW-6, 10)
	bodyH := max(areaH-12, 3)

	lines := s.previewLines(innerW)
	off := min(s.scrollOffset, max(len(lines)-bodyH, 0))
	end := min(off+bodyH, len(lines))

	summary := fmt.Sprintf("%d live, %d after restart", s.changeCount()-s.restartNeeded(), s.restartNeeded())
	footer := saveFootStyle.Render("enter: save  esc: cancel  j/k: scroll")
	content := saveTitleStyle.Render("Save Config: Pending Changes") + "\n" +
		saveFootStyle.Render(summary) + "\n\n" +
		strings.Join(lines[off:end], "\n") + "\n\n" + footer

	box := saveBoxStyle.Width(boxW).Render(content)
	return lipgloss.Place(areaW, areaH, lipgloss.Center, lipgloss.Center, box)
}

func (s SaveOverlay) viewResult(areaW, areaH int) string {
	boxW := min(max(areaW-8, 30), 60)

	var msg string
	if s.err != nil {
		msg = saveRemoveStyle.Bold(true).Render("Error: " + s.err.Error())
	} else {
		msg = saveAddStyle.Bold(true).Render("Config saved successfully")
		if s.reloaded {
			msg += "\n" + saveAddStyle.Render("Daemon reloaded")
			if n := s.restartNeeded(); n > 0 {
				msg += "\n" + saveRestartStyle.Render(fmt.Sprintf("%d change(s) need a daemon restart", n))
			}
		}
	}

	content := msg + "\n\n" + saveFootStyle.Render("press any key to dismiss")
	box := saveBoxStyle.Width(boxW).Render(content)
	return lipgloss.Place(areaW, areaH, lipgloss.Center, lipgloss.Center, box)
}

func (s SaveOverlay) changeCount() int {
	n := 0
	for _, g := range s.groups {
		n += len(g.changes)
	}
	return n
}

// groupChanges buckets changes by section, keeping first-seen section order.
func groupChanges(changes []config.Change) []changeGroup {
	var groups []changeGroup
	index := make(map[string]int)
	for _, c := range changes {
		section := c.Section()
		i, ok := index[section]
		if !ok {
			i = len(groups)
			index[section] = i
			groups = append(groups, changeGroup{section: section})
		}
		groups[i].changes = append(groups[i].changes, c)
	}
	return groups
}

func truncate(s string, n int) string {
	if n < 4 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
