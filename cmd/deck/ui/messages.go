package ui

import "audiencedeck/internal/api"

// Messages delivered to the dashboard model. Some originate from bubbletea
// commands, others are pushed from outside the program (widget events, the
// credential watcher) via Program.Send.

// AccountsLoadedMsg carries a fresh connected-account snapshot.
type AccountsLoadedMsg struct {
	Accounts []api.ConnectedAccount
}

// InsightsLoadedMsg carries the audience records behind the charts.
type InsightsLoadedMsg struct {
	Records []api.AudienceRecord
}

// RefreshAccountsMsg requests a reload of accounts and insights. The connect
// orchestrator pushes it after accountConnected and accountDisconnected.
type RefreshAccountsMsg struct{}

// ConnectOpenedMsg reports that the connect widget is open and waiting.
type ConnectOpenedMsg struct{}

// NoticeMsg is a transient, non-fatal status line message.
type NoticeMsg struct {
	Text string
}

// ErrorMsg is a user-facing error banner.
type ErrorMsg struct {
	Text string
}

// SessionExpiredMsg reports that the backend rejected our token. Credentials
// are already wiped by the time this arrives; the dashboard drops to the
// signed-out view.
type SessionExpiredMsg struct{}

// LayoutMsg applies a debounced terminal size.
type LayoutMsg struct {
	Width  int
	Height int
}
