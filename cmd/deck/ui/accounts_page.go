package ui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"audiencedeck/internal/api"
)

// AccountsPageModel renders the connected-account snapshot.
type AccountsPageModel struct {
	viewport viewport.Model
	styles   Styles
	accounts []api.ConnectedAccount
	width    int
	height   int
}

// NewAccountsPageModel creates the accounts page.
func NewAccountsPageModel(styles Styles) AccountsPageModel {
	vp := viewport.New(80, 20)
	return AccountsPageModel{
		viewport: vp,
		styles:   styles,
	}
}

// SetSize updates the size of the viewport.
func (m *AccountsPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.UpdateContent()
}

// SetAccounts replaces the snapshot and re-renders.
func (m *AccountsPageModel) SetAccounts(accounts []api.ConnectedAccount) {
	m.accounts = accounts
	m.UpdateContent()
}

// Accounts returns the current snapshot.
func (m *AccountsPageModel) Accounts() []api.ConnectedAccount {
	return m.accounts
}

// UpdateContent refreshes the viewport content.
func (m *AccountsPageModel) UpdateContent() {
	if len(m.accounts) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render(
			"No accounts connected yet. Press c to connect one."))
		return
	}

	table := NewSimpleTable("Connected Accounts", []string{"Platform", "Username", "Connected", "ID"})
	for _, a := range m.accounts {
		table.AddRow(a.Platform, a.Username, a.CreatedAt.Format("2006-01-02"), a.ID)
	}
	m.viewport.SetContent(table.View(m.styles))
}

// Update handles messages.
func (m AccountsPageModel) Update(msg tea.Msg) (AccountsPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m AccountsPageModel) View() string {
	return m.viewport.View()
}
