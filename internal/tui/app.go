// Package tui implements the interactive terminal dashboard for a running
// winsync daemon.
package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/1broseidon/winsync/internal/config"
	"github.com/1broseidon/winsync/internal/ipc"
	"github.com/1broseidon/winsync/internal/output"
	"github.com/1broseidon/winsync/internal/windowstate"
)

const (
	pollInterval  = 500 * time.Millisecond
	noticeTimeout = 3 * time.Second
)

// daemonClient is the part of ipc.Client the dashboard uses.
type daemonClient interface {
	GetStatus() (*ipc.StatusData, error)
	GetOutputs() ([]output.Output, error)
	SetWindowState(kind windowstate.Kind) error
	LoseProducer() error
	Reload() error
}

type pollMsg time.Time

type daemonStatusMsg struct {
	status  *ipc.StatusData
	outputs []output.Output
	err     error
}

type statusMsg struct {
	text    string
	isError bool
}

type clearStatusMsg struct{}

// model is the root bubbletea model for the TUI.
type model struct {
	configPath string
	result     *config.LoadResult
	loadErr    error
	client     daemonClient

	activeTab Tab

	windowTab   WindowTab
	requestsTab RequestsTab
	outputsTab  OutputsTab
	configTab   ConfigTab

	originalConfig *config.Config
	saveOverlay    SaveOverlay

	status *ipc.StatusData
	notice string

	width  int
	height int
}

func newModel(configPath string, client daemonClient) model {
	m := model{
		configPath: configPath,
		client:     client,
		activeTab:  TabWindow,
	}

	m.result, m.loadErr = config.LoadFromPath(configPath)

	var (
		cfg     *config.Config
		explain []string
	)
	if m.result != nil {
		cfg = m.result.Config
		explain = m.result.Explain()
		m.originalConfig = cfg.Clone()
	}

	m.windowTab = NewWindowTab(client)
	m.requestsTab = NewRequestsTab()
	m.outputsTab = NewOutputsTab()
	m.configTab = NewConfigTab(cfg, explain)
	return m
}

func fetchCmd(client daemonClient) tea.Cmd {
	return func() tea.Msg {
		st, err := client.GetStatus()
		if err != nil {
			return daemonStatusMsg{err: err}
		}
		outs, err := client.GetOutputs()
		if err != nil {
			return daemonStatusMsg{err: err}
		}
		return daemonStatusMsg{status: st, outputs: outs}
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg { return pollMsg(t) })
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg { return clearStatusMsg{} })
}

// contentHeight returns the height available for tab content.
func (m model) contentHeight() int {
	// status bar (1) + tab bar (2 with margin) + help bar (1)
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	return h
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	if m.client == nil {
		return nil
	}
	return fetchCmd(m.client)
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Background messages are handled regardless of which view owns input.
	switch msg := msg.(type) {
	case pollMsg:
		if m.client == nil {
			return m, nil
		}
		return m, fetchCmd(m.client)

	case daemonStatusMsg:
		if msg.err != nil {
			m.status = nil
		} else {
			m.status = msg.status
		}
		m.windowTab.SetStatus(m.status)
		m.requestsTab.SetStatus(m.status)
		var entered []uint32
		if m.status != nil {
			entered = m.status.EnteredOutputs
		}
		listCmd := m.outputsTab.SetOutputs(msg.outputs, entered, m.status != nil)
		return m, tea.Batch(listCmd, tickCmd())

	case statusMsg:
		m.notice = msg.text
		if msg.isError {
			m.notice = "error: " + msg.text
		}
		return m, clearNoticeCmd()

	case clearStatusMsg:
		m.notice = ""
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		subMsg := tea.WindowSizeMsg{Width: m.width, Height: m.contentHeight()}
		m.windowTab, _ = m.windowTab.Update(subMsg)
		m.requestsTab, _ = m.requestsTab.Update(subMsg)
		m.outputsTab, _ = m.outputsTab.Update(subMsg)
		m.configTab, _ = m.configTab.Update(subMsg)
		return m, nil
	}

	// Save overlay captures all input when active
	if m.saveOverlay.Active() {
		if km, ok := msg.(tea.KeyMsg); ok {
			if km.String() == "ctrl+c" {
				return m, tea.Quit
			}
			prevPhase := m.saveOverlay.phase
			m.saveOverlay = m.saveOverlay.Update(km, m.result.Config, m.configPath, m.client, m.status != nil)
			if prevPhase == savePreview && m.saveOverlay.SaveSucceeded() {
				m.originalConfig = m.result.Config.Clone()
			}
		}
		return m, nil
	}

	// ctrl+s triggers save overlay from any context (including form editing)
	if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+s" {
		if m.result != nil && m.result.Config != nil && !m.configTab.editing {
			m.saveOverlay.Show(m.originalConfig, m.result.Config)
		}
		return m, nil
	}

	// The config form consumes keys; only ctrl+c escapes to quit.
	if m.activeTab == TabConfig && m.configTab.editing {
		if km, ok := msg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.configTab, cmd = m.configTab.Update(msg)
		return m, cmd
	}

	if km, ok := msg.(tea.KeyMsg); ok {
		switch km.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			m.activeTab = (m.activeTab + 1) % tabCount
			return m, nil
		case "shift+tab":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
			return m, nil
		case "1", "2", "3", "4":
			m.activeTab = Tab(km.String()[0] - '1')
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case TabWindow:
		m.windowTab, cmd = m.windowTab.Update(msg)
	case TabRequests:
		m.requestsTab, cmd = m.requestsTab.Update(msg)
	case TabOutputs:
		m.outputsTab, cmd = m.outputsTab.Update(msg)
	case TabConfig:
		m.configTab, cmd = m.configTab.Update(msg)
	}
	return m, cmd
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	notice := m.notice
	if notice == "" && m.loadErr != nil {
		notice = "config: " + m.loadErr.Error()
	}
	statusBar := renderStatusBar(m.status, notice, m.width)
	tabBar := renderTabBar(m.activeTab, m.width)
	helpBar := renderHelpBar(m.width)

	usedHeight := lipgloss.Height(statusBar) + lipgloss.Height(tabBar) + lipgloss.Height(helpBar)
	contentHeight := m.height - usedHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	if m.saveOverlay.Active() {
		content = m.saveOverlay.View(m.width, contentHeight)
	} else {
		switch m.activeTab {
		case TabWindow:
			content = m.windowTab.View()
		case TabRequests:
			content = m.requestsTab.View()
		case TabOutputs:
			content = m.outputsTab.View()
		case TabConfig:
			content = m.configTab.View()
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		statusBar,
		tabBar,
		content,
		helpBar,
	)
}

// Run starts the dashboard against the daemon behind client. An empty
// configPath selects the default config location.
func Run(configPath string, client *ipc.Client) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("tui requires an interactive terminal")
	}
	if configPath == "" {
		p, err := config.DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}
	_, err := tea.NewProgram(newModel(configPath, client), tea.WithAltScreen()).Run()
	return err
}
