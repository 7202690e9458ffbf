package ui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"audiencedeck/internal/api"
	"audiencedeck/internal/connect"
	"audiencedeck/internal/logging"
)

// App is the capability surface the dashboard drives. cmd/deck wires the
// real client, loader and orchestrator behind it.
type App interface {
	// User returns the signed-in profile, if any.
	User() (api.User, bool)

	// LoadAccounts fetches the connected-account snapshot.
	LoadAccounts(ctx context.Context) ([]api.ConnectedAccount, error)

	// LoadInsights fetches audience records for every account.
	LoadInsights(ctx context.Context) ([]api.AudienceRecord, error)

	// Connect starts a connect run. Returns connect.ErrBusy when one is
	// already in flight.
	Connect(ctx context.Context) error

	// Busy reports whether a connect run is in flight.
	Busy() bool
}

type tab int

const (
	tabAccounts tab = iota
	tabInsights
)

// Dashboard is the root bubbletea model.
type Dashboard struct {
	app    App
	styles Styles

	accounts AccountsPageModel
	insights InsightsPageModel
	spinner  spinner.Model

	activeTab tab
	loading   bool
	signedOut bool
	notice    string
	errText   string
	width     int
	height    int

	resize *ResizeDebouncer
	send   func(tea.Msg) // set after the program is constructed
}

// NewDashboard creates the root model.
func NewDashboard(app App, styles Styles) Dashboard {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	return Dashboard{
		app:      app,
		styles:   styles,
		accounts: NewAccountsPageModel(styles),
		insights: NewInsightsPageModel(styles),
		spinner:  sp,
		resize:   NewResizeDebouncer(DefaultResizeDuration),
	}
}

// SetSender wires the program's Send for messages that originate outside the
// update loop (debounced layout, widget events pushed by cmd/deck).
func (m *Dashboard) SetSender(send func(tea.Msg)) {
	m.send = send
}

// Init kicks off the first load.
func (m Dashboard) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadAccountsCmd(), m.loadInsightsCmd())
}

func (m Dashboard) loadAccountsCmd() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		accounts, err := app.LoadAccounts(context.Background())
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return SessionExpiredMsg{}
			}
			return ErrorMsg{Text: "Could not load accounts: " + err.Error()}
		}
		return AccountsLoadedMsg{Accounts: accounts}
	}
}

func (m Dashboard) loadInsightsCmd() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		records, err := app.LoadInsights(context.Background())
		if err != nil {
			if errors.Is(err, api.ErrUnauthorized) {
				return SessionExpiredMsg{}
			}
			return ErrorMsg{Text: "Could not load insights: " + err.Error()}
		}
		return InsightsLoadedMsg{Records: records}
	}
}

func (m Dashboard) connectCmd() tea.Cmd {
	app := m.app
	return func() tea.Msg {
		if err := app.Connect(context.Background()); err != nil {
			if errors.Is(err, connect.ErrBusy) {
				return NoticeMsg{Text: "A connect run is already in progress."}
			}
			// The orchestrator already surfaced the error through its sink.
			logging.UI("connect run failed: %v", err)
			return nil
		}
		return ConnectOpenedMsg{}
	}
}

// Update handles messages.
func (m Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		// Coalesce resize storms; the real layout lands via LayoutMsg.
		if m.send != nil {
			send := m.send
			m.resize.Resize(msg.Width, msg.Height, func(w, h int) {
				send(LayoutMsg{Width: w, Height: h})
			})
			return m, nil
		}
		return m.applyLayout(msg.Width, msg.Height), nil

	case LayoutMsg:
		return m.applyLayout(msg.Width, msg.Height), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case AccountsLoadedMsg:
		m.loading = false
		m.accounts.SetAccounts(msg.Accounts)
		m.insights.SetAccounts(msg.Accounts)
		return m, nil

	case InsightsLoadedMsg:
		m.loading = false
		m.insights.SetRecords(msg.Records)
		return m, nil

	case RefreshAccountsMsg:
		m.loading = true
		return m, tea.Batch(m.loadAccountsCmd(), m.loadInsightsCmd())

	case ConnectOpenedMsg:
		m.notice = "Connect window open. Finish linking your account there."
		m.errText = ""
		return m, nil

	case NoticeMsg:
		m.notice = msg.Text
		m.errText = ""
		return m, nil

	case ErrorMsg:
		m.loading = false
		m.errText = msg.Text
		m.notice = ""
		return m, nil

	case SessionExpiredMsg:
		m.signedOut = true
		m.loading = false
		return m, nil
	}

	return m, nil
}

func (m Dashboard) applyLayout(w, h int) Dashboard {
	m.width = w
	m.height = h
	contentHeight := h - 4 // header, tabs, status, footer
	if contentHeight < 4 {
		contentHeight = 4
	}
	m.accounts.SetSize(w, contentHeight)
	m.insights.SetSize(w, contentHeight)
	return m
}

func (m Dashboard) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.resize.Cancel()
		return m, tea.Quit

	case "1":
		m.activeTab = tabAccounts
		return m, nil

	case "2":
		m.activeTab = tabInsights
		return m, nil

	case "tab":
		if m.activeTab == tabAccounts {
			m.activeTab = tabInsights
		} else {
			m.activeTab = tabAccounts
		}
		return m, nil

	case "r":
		if m.signedOut {
			return m, nil
		}
		m.loading = true
		m.notice = ""
		m.errText = ""
		return m, tea.Batch(m.loadAccountsCmd(), m.loadInsightsCmd())

	case "c":
		if m.signedOut {
			return m, nil
		}
		if m.app.Busy() {
			m.notice = "A connect run is already in progress."
			return m, nil
		}
		m.notice = "Starting connect..."
		m.errText = ""
		return m, m.connectCmd()

	case "left", "h":
		if m.activeTab == tabInsights {
			m.insights.Prev()
		}
		return m, nil

	case "right", "l":
		if m.activeTab == tabInsights {
			m.insights.Next()
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.activeTab {
	case tabAccounts:
		m.accounts, cmd = m.accounts.Update(msg)
	case tabInsights:
		m.insights, cmd = m.insights.Update(msg)
	}
	return m, cmd
}

// View renders the dashboard.
func (m Dashboard) View() string {
	if m.signedOut {
		return m.styles.Content.Render(
			m.styles.Warning.Render("Session expired.") + "\n\n" +
				m.styles.Body.Render("Sign in again with: deck login <email>"))
	}

	var header string
	if user, ok := m.app.User(); ok {
		header = m.styles.Header.Render("audiencedeck") + " " + m.styles.Muted.Render(user.Email)
	} else {
		header = m.styles.Header.Render("audiencedeck")
	}

	tabs := lipgloss.JoinHorizontal(lipgloss.Top,
		m.tabLabel("1 Accounts", tabAccounts),
		m.tabLabel("2 Insights", tabInsights),
	)

	var content string
	switch m.activeTab {
	case tabAccounts:
		content = m.accounts.View()
	case tabInsights:
		content = m.insights.View()
	}

	status := " "
	switch {
	case m.errText != "":
		status = m.styles.Error.Render(m.errText)
	case m.notice != "":
		status = m.styles.Info.Render(m.notice)
	case m.loading || m.app.Busy():
		status = m.spinner.View() + m.styles.Muted.Render(" working...")
	}

	footer := m.styles.Footer.Render("c connect · r refresh · tab switch · ←/→ account · q quit")

	return lipgloss.JoinVertical(lipgloss.Left, header, tabs, content, status, footer)
}

func (m Dashboard) tabLabel(label string, t tab) string {
	if m.activeTab == t {
		return m.styles.TabOn.Render(label)
	}
	return m.styles.TabOff.Render(label)
}
