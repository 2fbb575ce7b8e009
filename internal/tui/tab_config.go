package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/winsync/internal/config"
)

// ConfigTab shows the effective configuration and edits the keys that are
// worth changing interactively.
type ConfigTab struct {
	cfg     *config.Config
	explain []string

	width  int
	height int

	editing bool
	form    *huh.Form

	// Form-bound values (strings for huh, converted on submit)
	fTitle             string
	fBackend           string
	fLogLevel          string
	fFrameInterval     string
	fMaxOutstanding    string
	fPrimarySubsurface bool
	fInsetTop          string
	fInsetBottom       string
	fInsetLeft         string
	fInsetRight        string
}

// NewConfigTab creates a ConfigTab editing cfg in place. explain lists the
// keys that differ from the defaults together with their source.
func NewConfigTab(cfg *config.Config, explain []string) ConfigTab {
	return ConfigTab{cfg: cfg, explain: explain}
}

// Update implements tea.Model.
func (c ConfigTab) Update(msg tea.Msg) (ConfigTab, tea.Cmd) {
	if c.editing {
		return c.updateEditing(msg)
	}
	return c.updateDisplay(msg)
}

func (c ConfigTab) updateDisplay(msg tea.Msg) (ConfigTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "e" && c.cfg != nil {
			c.startEditing()
			return c, c.form.Init()
		}
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
	}
	return c, nil
}

func (c ConfigTab) updateEditing(msg tea.Msg) (ConfigTab, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "esc" {
			c.editing = false
			c.form = nil
			return c, nil
		}
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
	}

	form, cmd := c.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		c.form = f
	}

	if c.form.State == huh.StateCompleted {
		c.applyForm()
		c.editing = false
		c.form = nil
		return c, nil
	}

	return c, cmd
}

func (c *ConfigTab) startEditing() {
	cfg := c.cfg

	c.fTitle = cfg.Window.Title
	c.fBackend = cfg.Backend
	c.fLogLevel = cfg.LogLevel
	c.fFrameInterval = strconv.Itoa(cfg.Renderer.FrameIntervalMS)
	c.fMaxOutstanding = strconv.Itoa(cfg.Engine.MaxOutstandingRequests)
	c.fPrimarySubsurface = cfg.Engine.PrimarySubsurface
	c.fInsetTop = strconv.Itoa(cfg.Window.FrameInsets.Top)
	c.fInsetBottom = strconv.Itoa(cfg.Window.FrameInsets.Bottom)
	c.fInsetLeft = strconv.Itoa(cfg.Window.FrameInsets.Left)
	c.fInsetRight = strconv.Itoa(cfg.Window.FrameInsets.Right)

	w := c.width - 4
	if w < 40 {
		w = 40
	}

	c.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Key("title").
				Title("Window Title").
				Value(&c.fTitle),

			huh.NewSelect[string]().
				Key("backend").
				Title("Backend").
				Description("Takes effect when the daemon restarts").
				Options(huh.NewOptions(config.BackendAuto, config.BackendWayland, config.BackendX11, config.BackendHeadless)...).
				Value(&c.fBackend),

			huh.NewSelect[string]().
				Key("log_level").
				Title("Log Level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&c.fLogLevel),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("frame_interval_ms").
				Title("Frame Interval (ms)").
				Description("Delay between produced frames").
				Validate(positiveInt).
				Value(&c.fFrameInterval),

			huh.NewInput().
				Key("max_outstanding_requests").
				Title("Max Outstanding Requests").
				Description("Configures in flight before new ones are deferred").
				Validate(positiveInt).
				Value(&c.fMaxOutstanding),

			huh.NewConfirm().
				Key("primary_subsurface").
				Title("Primary Subsurface").
				Description("Present frames on a subsurface instead of the root surface").
				Value(&c.fPrimarySubsurface),
		),
		huh.NewGroup(
			huh.NewInput().
				Key("inset_top").
				Title("Frame Insets: Top").
				Validate(nonNegativeInt).
				Value(&c.fInsetTop),
			huh.NewInput().
				Key("inset_bottom").
				Title("Frame Insets: Bottom").
				Validate(nonNegativeInt).
				Value(&c.fInsetBottom),
			huh.NewInput().
				Key("inset_left").
				Title("Frame Insets: Left").
				Validate(nonNegativeInt).
				Value(&c.fInsetLeft),
			huh.NewInput().
				Key("inset_right").
				Title("Frame Insets: Right").
				Validate(nonNegativeInt).
				Value(&c.fInsetRight),
		),
	).WithWidth(w).WithShowHelp(true).WithShowErrors(true)

	c.editing = true
}

func positiveInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 1 {
		return fmt.Errorf("must be a whole number >= 1")
	}
	return nil
}

func nonNegativeInt(s string) error {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || v < 0 {
		return fmt.Errorf("must be a whole number >= 0")
	}
	return nil
}

func (c *ConfigTab) applyForm() {
	if c.cfg == nil {
		return
	}

	if t := strings.TrimSpace(c.fTitle); t != "" {
		c.cfg.Window.Title = t
	}
	if c.fBackend != "" {
		c.cfg.Backend = c.fBackend
	}
	if c.fLogLevel != "" {
		c.cfg.LogLevel = c.fLogLevel
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.fFrameInterval)); err == nil && v >= 1 {
		c.cfg.Renderer.FrameIntervalMS = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.fMaxOutstanding)); err == nil && v >= 1 {
		c.cfg.Engine.MaxOutstandingRequests = v
	}
	c.cfg.Engine.PrimarySubsurface = c.fPrimarySubsurface
	if v, err := strconv.Atoi(strings.TrimSpace(c.fInsetTop)); err == nil && v >= 0 {
		c.cfg.Window.FrameInsets.Top = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.fInsetBottom)); err == nil && v >= 0 {
		c.cfg.Window.FrameInsets.Bottom = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.fInsetLeft)); err == nil && v >= 0 {
		c.cfg.Window.FrameInsets.Left = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(c.fInsetRight)); err == nil && v >= 0 {
		c.cfg.Window.FrameInsets.Right = v
	}
}

// View implements tea.Model.
func (c ConfigTab) View() string {
	if c.editing && c.form != nil {
		return c.viewEditing()
	}
	return c.viewDisplay()
}

func (c ConfigTab) viewDisplay() string {
	cfg := c.cfg
	if cfg == nil {
		return renderPlaceholder("No config loaded", c.width, c.height)
	}

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250")).
		Width(22).
		Align(lipgloss.Right).
		PaddingRight(2)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("15")).
		Bold(true)

	row := func(label, value string) string {
		return labelStyle.Render(label) + valueStyle.Render(value)
	}

	in := cfg.Window.FrameInsets
	insets := fmt.Sprintf("top:%d bottom:%d left:%d right:%d", in.Top, in.Bottom, in.Left, in.Right)

	lines := []string{
		"",
		row("Window Title", cfg.Window.Title),
		row("Initial Bounds", cfg.Window.Bounds.String()),
		row("Frame Insets", insets),
		"",
		row("Backend", cfg.Backend),
		row("Log Level", cfg.LogLevel),
		row("Frame Interval", fmt.Sprintf("%dms", cfg.Renderer.FrameIntervalMS)),
		row("Overlays", strconv.Itoa(len(cfg.Renderer.Overlays))),
		"",
		row("Max Outstanding", strconv.Itoa(cfg.Engine.MaxOutstandingRequests)),
		row("Empty Bounds Fallback", cfg.Engine.EmptyBoundsFallback.String()),
		row("Primary Subsurface", strconv.FormatBool(cfg.Engine.PrimarySubsurface)),
		row("Trace", traceSummary(cfg.Trace)),
	}

	if len(c.explain) > 0 {
		lines = append(lines, "", dimStyle.Render("  Overrides:"))
		for _, e := range c.explain {
			lines = append(lines, dimStyle.Render("    "+strings.ReplaceAll(e, "\t", "  ")))
		}
	}
	lines = append(lines, "", dimStyle.Render("  Press 'e' to edit settings"))

	return lipgloss.NewStyle().
		Width(c.width).
		Height(c.height).
		Padding(1, 2).
		Render(strings.Join(lines, "\n"))
}

func (c ConfigTab) viewEditing() string {
	header := lipgloss.NewStyle().
		Foreground(lipgloss.Color("62")).
		Bold(true).
		Render("Editing Settings") +
		dimStyle.Render("  (esc to cancel)")

	return lipgloss.NewStyle().
		Width(c.width).
		Height(c.height).
		Padding(1, 2).
		Render(header + "\n\n" + c.form.View())
}

func traceSummary(t config.TraceConfig) string {
	if !t.Enabled {
		return "off"
	}
	if t.Path == "" {
		return "on (default path)"
	}
	return "on (" + t.Path + ")"
}
