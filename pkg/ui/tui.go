// Package ui provides the Bubble Tea TUI for the chain sync monitor.
package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Phase represents the current UI phase.
type Phase string

const (
	PhaseWelcome   Phase = "welcome"   // Initial welcome screen
	PhaseDashboard Phase = "dashboard" // Main dashboard
)

// WelcomeDuration is how long the welcome screen shows before auto-advancing.
const WelcomeDuration = 2 * time.Second

// ErrorEntry represents an error with timestamp.
type ErrorEntry struct {
	Message   string
	Timestamp time.Time
}

// Model is the main Bubble Tea model for the TUI.
type Model struct {
	keys     KeyMap
	syncBar  progress.Model

	// Phase state
	phase        Phase
	welcomeStart time.Time

	// State
	ready    bool
	quitting bool
	width    int
	height   int

	uri       string
	connected bool
	deployer  bool
	peerCount int

	syncPhase   string
	syncCurrent uint64
	syncHighest uint64
	syncOutcome string

	registryContracts int

	lastUpdate time.Time
	errors     []ErrorEntry // Persistent error panel (last 3)
	logs       []string     // Recent log messages
}

// New creates a new TUI model.
func New() Model {
	return Model{
		keys:         DefaultKeyMap(),
		syncBar:      progress.New(progress.WithDefaultGradient()),
		phase:        PhaseWelcome,
		welcomeStart: time.Now(),
		logs:         make([]string, 0, 5),
		errors:       make([]ErrorEntry, 0, 3),
	}
}

// Init initializes the TUI model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// tickCmd returns a command that sends a tick every 100ms for smooth animations.
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{}
	})
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Always allow quit
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		// During welcome phase, any other key skips to the dashboard
		if m.phase == PhaseWelcome {
			m.phase = PhaseDashboard
			// Trigger callback directly (don't use Send() from within Update)
			if OnStartModules != nil {
				go OnStartModules()
			}
			return m, tickCmd()
		}
		switch msg.String() {
		case "e":
			m.errors = make([]ErrorEntry, 0, 3)
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.syncBar.Width = min(msg.Width-12, 60)
		m.ready = true

	case TickMsg:
		if m.phase == PhaseWelcome && time.Since(m.welcomeStart) >= WelcomeDuration {
			m.phase = PhaseDashboard
			// Trigger callback directly (don't use Send() from within Update)
			if OnStartModules != nil {
				go OnStartModules()
			}
		}
		return m, tickCmd()

	case ConnectionStatusMsg:
		m.uri = msg.URI
		m.connected = msg.Connected
		m.deployer = msg.Deployer
		m.lastUpdate = time.Now()

	case PeerCountMsg:
		m.peerCount = msg.Count
		m.lastUpdate = time.Now()

	case SyncPhaseMsg:
		m.syncPhase = msg.Phase
		m.lastUpdate = time.Now()

	case SyncProgressMsg:
		m.syncPhase = "syncing"
		m.syncCurrent = msg.Current
		m.syncHighest = msg.Highest
		m.lastUpdate = time.Now()

	case SyncDoneMsg:
		m.syncPhase = "done"
		m.syncOutcome = msg.Outcome
		m.lastUpdate = time.Now()

	case RegistryMsg:
		m.registryContracts = msg.Contracts
		m.lastUpdate = time.Now()

	case ErrorMsg:
		m.logs = addLog(m.logs, "error", msg.Error.Error())
		m.errors = append(m.errors, ErrorEntry{
			Message:   msg.Error.Error(),
			Timestamp: time.Now(),
		})
		if len(m.errors) > 3 {
			m.errors = m.errors[len(m.errors)-3:]
		}

	case LogMsg:
		m.logs = addLog(m.logs, msg.Level, msg.Message)
	}

	return m, nil
}

// addLog adds a log message and returns the updated slice (keeps last 5).
func addLog(logs []string, level, message string) []string {
	timestamp := time.Now().Format("15:04:05")
	logLine := fmt.Sprintf("[%s] %s: %s", timestamp, level, message)
	logs = append(logs, logLine)
	if len(logs) > 5 {
		logs = logs[len(logs)-5:]
	}
	return logs
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "\n  Goodbye!\n\n"
	}

	if m.phase == PhaseWelcome {
		return m.renderWelcomeScreen()
	}

	var b strings.Builder

	title := TitleStyle.Render(" ⛓ Chain Sync Monitor ")
	b.WriteString(title)
	b.WriteString("\n\n")

	b.WriteString(m.renderStatusBar())
	b.WriteString("\n\n")

	content := m.renderSyncPanel()
	if m.width > 0 {
		b.WriteString(BoxStyle.Width(min(m.width-4, 80)).Render(content))
	} else {
		b.WriteString(BoxStyle.Render(content))
	}
	b.WriteString("\n\n")

	if len(m.logs) > 0 {
		b.WriteString(HeaderStyle.Render("LOGS"))
		b.WriteString("\n")
		for _, line := range m.logs {
			b.WriteString(MutedValue.Render("  " + line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	// Persistent error panel (last 3 errors)
	if len(m.errors) > 0 {
		errorStyle := lipgloss.NewStyle().Foreground(ColorDanger)
		errorHeader := lipgloss.NewStyle().Bold(true).Foreground(ColorDanger)
		mutedError := lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))

		b.WriteString(errorHeader.Render("ERRORS"))
		b.WriteString(mutedError.Render(" (e: clear)"))
		b.WriteString("\n")
		for _, err := range m.errors {
			ago := time.Since(err.Timestamp).Round(time.Second)
			b.WriteString(errorStyle.Render(fmt.Sprintf("  • %s ", err.Message)))
			b.WriteString(mutedError.Render(fmt.Sprintf("(%s ago)", ago)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("q: quit • e: clear errors"))
	return b.String()
}

// renderSyncPanel renders the sync phase and progress display.
func (m Model) renderSyncPanel() string {
	var sb strings.Builder

	sb.WriteString(HeaderStyle.Render("SYNC"))
	sb.WriteString("\n\n")

	switch m.syncPhase {
	case "":
		sb.WriteString(MutedValue.Render("  Not started"))
	case "waiting-peers":
		sb.WriteString(StatusSyncing.Render(fmt.Sprintf("  %s Waiting for peers...", m.spinnerFrame())))
	case "waiting-start":
		sb.WriteString(StatusSyncing.Render(fmt.Sprintf("  %s Waiting for sync to begin (%d peers)", m.spinnerFrame(), m.peerCount)))
	case "syncing":
		pct := 0.0
		if m.syncHighest > 0 && m.syncCurrent <= m.syncHighest {
			pct = float64(m.syncCurrent) / float64(m.syncHighest)
		}
		sb.WriteString(fmt.Sprintf("  Block %d / %d\n\n", m.syncCurrent, m.syncHighest))
		sb.WriteString("  ")
		sb.WriteString(m.syncBar.ViewAs(pct))
	case "done":
		sb.WriteString(StatusConnected.Render(fmt.Sprintf("  ✓ %s", m.syncOutcome)))
	}

	sb.WriteString("\n")
	return sb.String()
}

// spinnerFrame returns an animated spinner frame based on wall time.
func (m Model) spinnerFrame() string {
	spinners := []string{"◐", "◓", "◑", "◒"}
	idx := int(time.Now().UnixMilli()/200) % len(spinners)
	return spinners[idx]
}

// renderWelcomeScreen renders the animated welcome screen.
func (m Model) renderWelcomeScreen() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary)

	mutedStyle := lipgloss.NewStyle().
		Foreground(ColorMuted)

	greenStyle := lipgloss.NewStyle().
		Foreground(ColorSecondary)

	elapsed := time.Since(m.welcomeStart)
	dotCount := int(elapsed.Milliseconds()/300) % 4
	dots := strings.Repeat(".", dotCount)

	var sb strings.Builder
	sb.WriteString("\n\n\n\n")

	logo := `
    ██████╗██╗  ██╗ █████╗ ██╗███╗   ██╗███████╗██╗   ██╗███╗   ██╗ ██████╗
   ██╔════╝██║  ██║██╔══██╗██║████╗  ██║██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
   ██║     ███████║███████║██║██╔██╗ ██║███████╗ ╚████╔╝ ██╔██╗ ██║██║
   ██║     ██╔══██║██╔══██║██║██║╚██╗██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
   ╚██████╗██║  ██║██║  ██║██║██║ ╚████║███████║   ██║   ██║ ╚████║╚██████╗
    ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝╚═╝╚═╝  ╚═══╝╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`
	sb.WriteString(titleStyle.Render(logo))
	sb.WriteString("\n")

	subtitle := "            N O D E   C O N N E C T I O N   M O N I T O R"
	sb.WriteString(mutedStyle.Render(subtitle))
	sb.WriteString("\n\n\n")

	loading := fmt.Sprintf("                  Initializing%s", dots)
	sb.WriteString(greenStyle.Render(loading))
	sb.WriteString("\n\n")

	hint := "            Press any key to skip, or wait..."
	sb.WriteString(mutedStyle.Render(hint))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderStatusBar() string {
	var parts []string

	var connStyle lipgloss.Style
	var icon, status string
	if m.connected {
		connStyle = StatusConnected
		icon = "●"
		status = m.uri
		if m.deployer {
			status += " (deployer)"
		}
	} else {
		connStyle = StatusDisconnected
		icon = "○"
		status = "not connected"
	}
	parts = append(parts, connStyle.Render(icon+" "+status))

	parts = append(parts, fmt.Sprintf("Peers: %d", m.peerCount))

	if m.registryContracts > 0 {
		parts = append(parts, fmt.Sprintf("Contracts: %d", m.registryContracts))
	}

	if !m.lastUpdate.IsZero() {
		ago := time.Since(m.lastUpdate).Round(time.Second)
		parts = append(parts, MutedValue.Render(fmt.Sprintf("Updated: %s ago", ago)))
	}

	return strings.Join(parts, "  │  ")
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// Program holds the Bubble Tea program instance for external access.
var Program *tea.Program

// OnStartModules is called when the welcome screen completes and modules should start.
// This is set by main.go to signal when to begin loading modules.
var OnStartModules func()

// Run starts the Bubble Tea program.
func Run() error {
	Program = tea.NewProgram(New(), tea.WithAltScreen())
	_, err := Program.Run()
	return err
}

// Send sends a message to the running program.
func Send(msg tea.Msg) {
	if Program != nil {
		Program.Send(msg)
	}
	// Call OnStartModules callback when StartModulesMsg is sent
	if _, ok := msg.(StartModulesMsg); ok && OnStartModules != nil {
		OnStartModules()
	}
}
