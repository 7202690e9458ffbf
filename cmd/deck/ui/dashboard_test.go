package ui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencedeck/internal/api"
)

// fakeApp scripts the dashboard's backend.
type fakeApp struct {
	mu       sync.Mutex
	accounts []api.ConnectedAccount
	records  []api.AudienceRecord
	busy     bool
	connects int
}

func (f *fakeApp) User() (api.User, bool) {
	return api.User{ID: "u1", Email: "me@example.com"}, true
}

func (f *fakeApp) LoadAccounts(ctx context.Context) ([]api.ConnectedAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts, nil
}

func (f *fakeApp) LoadInsights(ctx context.Context) ([]api.AudienceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records, nil
}

func (f *fakeApp) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	f.busy = true
	return nil
}

func (f *fakeApp) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy
}

func newTestDashboard(app App) Dashboard {
	d := NewDashboard(app, NewStyles(LightTheme()))
	model, _ := d.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return model.(Dashboard)
}

func TestDashboardRendersAccounts(t *testing.T) {
	app := &fakeApp{
		accounts: []api.ConnectedAccount{
			{ID: "acc-1", Platform: "instagram", Username: "alice", CreatedAt: time.Now()},
		},
	}
	d := newTestDashboard(app)

	model, _ := d.Update(AccountsLoadedMsg{Accounts: app.accounts})
	d = model.(Dashboard)

	view := d.View()
	assert.Contains(t, view, "instagram")
	assert.Contains(t, view, "alice")
	assert.Contains(t, view, "me@example.com")
}

func TestDashboardEmptyState(t *testing.T) {
	d := newTestDashboard(&fakeApp{})

	model, _ := d.Update(AccountsLoadedMsg{})
	d = model.(Dashboard)

	assert.Contains(t, d.View(), "No accounts connected yet")
}

func TestDashboardRefreshMessageTriggersReload(t *testing.T) {
	d := newTestDashboard(&fakeApp{})

	_, cmd := d.Update(RefreshAccountsMsg{})
	require.NotNil(t, cmd, "a refresh request must schedule load commands")
}

func TestDashboardInsightsTab(t *testing.T) {
	app := &fakeApp{
		accounts: []api.ConnectedAccount{
			{ID: "acc-1", Platform: "instagram", Username: "alice"},
		},
		records: []api.AudienceRecord{
			{
				AccountID: "acc-1",
				Demographics: api.AudienceDemographics{
					Gender: map[string]float64{"male": 58.2, "female": 41.8},
				},
				FetchedAt: time.Now(),
			},
		},
	}
	d := newTestDashboard(app)

	model, _ := d.Update(AccountsLoadedMsg{Accounts: app.accounts})
	model, _ = model.Update(InsightsLoadedMsg{Records: app.records})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	d = model.(Dashboard)

	view := d.View()
	assert.Contains(t, view, "Gender")
	assert.Contains(t, view, "58.2%")
}

func TestDashboardConnectKeyStartsRun(t *testing.T) {
	app := &fakeApp{}
	d := newTestDashboard(app)

	model, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	require.NotNil(t, cmd)

	msg := cmd()
	_, ok := msg.(ConnectOpenedMsg)
	assert.True(t, ok, "successful connect yields ConnectOpenedMsg, got %T", msg)
	assert.Equal(t, 1, app.connects)

	// While the run is busy, the key shows a notice instead of starting again.
	model, cmd = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	assert.Nil(t, cmd)
	d = model.(Dashboard)
	assert.Contains(t, d.View(), "already in progress")
	assert.Equal(t, 1, app.connects)
}

func TestDashboardSessionExpired(t *testing.T) {
	d := newTestDashboard(&fakeApp{})

	model, _ := d.Update(SessionExpiredMsg{})
	d = model.(Dashboard)

	view := d.View()
	assert.Contains(t, view, "Session expired")
	assert.Contains(t, view, "deck login")
}

func TestDashboardErrorBanner(t *testing.T) {
	d := newTestDashboard(&fakeApp{})

	model, _ := d.Update(ErrorMsg{Text: "Could not load accounts: boom"})
	d = model.(Dashboard)

	assert.Contains(t, stripANSI(d.View()), "Could not load accounts")
}

func TestDashboardQuitKey(t *testing.T) {
	d := newTestDashboard(&fakeApp{})

	_, cmd := d.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

// stripANSI removes styling escape codes for substring assertions.
func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
