package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"audiencedeck/internal/api"
)

// InsightsPageModel renders the audience demographic charts, one account at
// a time. Left/right cycles through accounts that have a record.
type InsightsPageModel struct {
	viewport viewport.Model
	styles   Styles
	records  []api.AudienceRecord
	accounts map[string]api.ConnectedAccount
	selected int
	width    int
	height   int
}

// NewInsightsPageModel creates the insights page.
func NewInsightsPageModel(styles Styles) InsightsPageModel {
	vp := viewport.New(80, 20)
	return InsightsPageModel{
		viewport: vp,
		styles:   styles,
		accounts: make(map[string]api.ConnectedAccount),
	}
}

// SetSize updates the size of the viewport.
func (m *InsightsPageModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.viewport.Height = h
	m.UpdateContent()
}

// SetAccounts updates the account metadata shown in chart headers.
func (m *InsightsPageModel) SetAccounts(accounts []api.ConnectedAccount) {
	m.accounts = make(map[string]api.ConnectedAccount, len(accounts))
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	m.UpdateContent()
}

// SetRecords replaces the audience records and clamps the selection.
func (m *InsightsPageModel) SetRecords(records []api.AudienceRecord) {
	m.records = records
	if m.selected >= len(records) {
		m.selected = 0
	}
	m.UpdateContent()
}

// Next selects the next account's charts.
func (m *InsightsPageModel) Next() {
	if len(m.records) == 0 {
		return
	}
	m.selected = (m.selected + 1) % len(m.records)
	m.UpdateContent()
}

// Prev selects the previous account's charts.
func (m *InsightsPageModel) Prev() {
	if len(m.records) == 0 {
		return
	}
	m.selected = (m.selected - 1 + len(m.records)) % len(m.records)
	m.UpdateContent()
}

// UpdateContent refreshes the viewport content.
func (m *InsightsPageModel) UpdateContent() {
	if len(m.records) == 0 {
		m.viewport.SetContent(m.styles.Muted.Render(
			"No audience data yet. Demographics appear once a connected account finishes processing."))
		return
	}

	rec := m.records[m.selected]

	var sb strings.Builder

	header := rec.AccountID
	if acct, ok := m.accounts[rec.AccountID]; ok {
		header = fmt.Sprintf("%s · @%s", acct.Platform, acct.Username)
	}
	sb.WriteString(m.styles.Title.Render(header))
	sb.WriteString("  ")
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("(%d/%d, fetched %s)",
		m.selected+1, len(m.records), rec.FetchedAt.Format("15:04:05"))))
	sb.WriteString("\n\n")

	if rec.Demographics.Empty() {
		sb.WriteString(m.styles.Muted.Render("No demographic data for this account yet."))
		m.viewport.SetContent(sb.String())
		return
	}

	chartWidth := m.width - 4
	if chartWidth < 30 {
		chartWidth = 30
	}

	charts := []BarChart{
		{Title: "Gender", Data: rec.Demographics.Gender},
		{Title: "Age", Data: rec.Demographics.Age},
		{Title: "Top Countries", Data: rec.Demographics.Countries, MaxRows: 8},
		{Title: "Top Cities", Data: rec.Demographics.Cities, MaxRows: 8},
	}
	for _, c := range charts {
		if len(c.Data) == 0 {
			continue
		}
		sb.WriteString(c.View(m.styles, chartWidth))
		sb.WriteString("\n")
	}

	m.viewport.SetContent(sb.String())
}

// Update handles messages.
func (m InsightsPageModel) Update(msg tea.Msg) (InsightsPageModel, tea.Cmd) {
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the page.
func (m InsightsPageModel) View() string {
	return m.viewport.View()
}
