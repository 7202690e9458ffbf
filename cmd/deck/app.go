package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"audiencedeck/cmd/deck/ui"
	"audiencedeck/internal/api"
	"audiencedeck/internal/config"
	"audiencedeck/internal/connect"
	"audiencedeck/internal/insights"
	"audiencedeck/internal/logging"
	"audiencedeck/internal/phyllo"
	"audiencedeck/internal/session"
	"audiencedeck/internal/store"
)

// app wires the client, loader, widget host and orchestrator together. It is
// both the ui.App the dashboard drives and the connect.Sink the orchestrator
// reports into. Outside the dashboard, sink output goes to stdout.
type app struct {
	cfg      *config.Config
	sessions *session.Store
	client   *api.Client
	snapshot *store.Snapshot
	loader   *insights.Loader
	host     *phyllo.Host
	orch     *connect.Orchestrator
	watcher  *session.Watcher

	mu   sync.Mutex
	send func(tea.Msg)
}

// newApp builds the full application from the state directory.
func newApp(stateDir string) (*app, error) {
	cfg, err := config.LoadFromStateDir(stateDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg}

	a.sessions, err = session.NewStore(cfg.Storage.CredentialsDir)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	a.client = api.NewClient(cfg.API.BaseURL, a.sessions,
		api.WithTimeout(cfg.APITimeout()),
		api.WithUnauthorizedHandler(a.onUnauthorized),
	)

	a.snapshot, err = store.NewSnapshot(cfg.Storage.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}

	a.loader = insights.NewLoader(a.client, a.snapshot)

	a.host = phyllo.NewHost(cfg.Browser, cfg.Phyllo.SDKURL,
		filepath.Join(stateDir, "widget-storage.json"))

	a.orch = connect.New(connect.Config{
		AppName:     cfg.Phyllo.AppName,
		Environment: cfg.Phyllo.Environment,
	}, a.client, a.host, a.loader, a)

	return a, nil
}

// startWatcher begins watching the credential directory so external changes
// (another deck process logging out) are picked up live.
func (a *app) startWatcher(ctx context.Context) error {
	w, err := session.NewWatcher(a.sessions, func() {
		if user, ok := a.sessions.User(); ok {
			logging.Session("credentials changed on disk, now %s", user.Email)
		} else {
			logging.Session("credentials removed on disk")
			a.deliver(ui.SessionExpiredMsg{})
		}
	})
	if err != nil {
		return err
	}
	a.watcher = w
	return w.Start(ctx)
}

// close releases everything in reverse wiring order.
func (a *app) close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.host != nil {
		if err := a.host.Stop(); err != nil {
			logging.BrowserWarn("widget host shutdown: %v", err)
		}
	}
	if a.snapshot != nil {
		_ = a.snapshot.Close()
	}
	logging.CloseAll()
}

// setSender routes sink output into the running dashboard.
func (a *app) setSender(send func(tea.Msg)) {
	a.mu.Lock()
	a.send = send
	a.mu.Unlock()
}

func (a *app) deliver(msg tea.Msg) {
	a.mu.Lock()
	send := a.send
	a.mu.Unlock()
	if send != nil {
		send(msg)
		return
	}
	// Non-interactive fallback.
	switch m := msg.(type) {
	case ui.NoticeMsg:
		fmt.Println(m.Text)
	case ui.ErrorMsg:
		fmt.Println("error:", m.Text)
	case ui.SessionExpiredMsg:
		fmt.Println("Session expired. Sign in again with: deck login <email>")
	}
}

func (a *app) onUnauthorized() {
	a.deliver(ui.SessionExpiredMsg{})
}

// ui.App

func (a *app) User() (api.User, bool) {
	return a.sessions.User()
}

func (a *app) LoadAccounts(ctx context.Context) ([]api.ConnectedAccount, error) {
	return a.loader.LoadAccounts(ctx)
}

func (a *app) LoadInsights(ctx context.Context) ([]api.AudienceRecord, error) {
	return a.loader.LoadInsights(ctx)
}

func (a *app) Connect(ctx context.Context) error {
	return a.orch.Run(ctx)
}

func (a *app) Busy() bool {
	return a.orch.Busy()
}

// connect.Sink

func (a *app) RefreshAccounts() {
	a.deliver(ui.RefreshAccountsMsg{})
}

func (a *app) ShowNotice(msg string) {
	a.deliver(ui.NoticeMsg{Text: msg})
}

func (a *app) ShowError(msg string) {
	a.deliver(ui.ErrorMsg{Text: msg})
}
