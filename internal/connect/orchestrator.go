// Package connect implements the account-linking flow: provision the remote
// counterpart user, issue a short-lived SDK token, wait for the vendor SDK
// to load, then open the Connect widget and react to its events.
package connect

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"audiencedeck/internal/api"
	"audiencedeck/internal/logging"
)

// State is the orchestrator's position in the connect flow.
type State string

const (
	StateIdle             State = "idle"
	StateProvisioningUser State = "provisioning_user"
	StateIssuingToken     State = "issuing_token"
	StateAwaitingSDK      State = "awaiting_sdk"
	StateInitialized      State = "initialized"
	StateOpen             State = "open"
	StateConnected        State = "connected"
	StateDisconnected     State = "disconnected"
	StateExpired          State = "expired"
	StateFailed           State = "failed"
	StateExited           State = "exited"
)

// ErrBusy is returned when a connect run is started while another is still
// in flight. The busy flag is an advisory reentrancy guard, not a data-layer
// mutex; see DESIGN.md.
var ErrBusy = errors.New("a connect run is already in progress")

// Backend is the slice of the REST client the orchestrator needs.
type Backend interface {
	EnsurePhylloUser(ctx context.Context, name string) (api.PhylloUser, error)
	SDKToken(ctx context.Context) (api.SDKToken, error)
}

// AudiencePrefetcher warms the audience data for a freshly connected
// account. Failures are expected ("no demographics yet") and swallowed.
type AudiencePrefetcher interface {
	Prefetch(ctx context.Context, accountID string) error
}

// Sink receives orchestration outcomes destined for the UI.
type Sink interface {
	// RefreshAccounts requests a reload of the connected-account snapshot.
	RefreshAccounts()

	// ShowNotice surfaces a non-fatal, user-facing message.
	ShowNotice(msg string)

	// ShowError surfaces a user-facing error banner.
	ShowError(msg string)
}

// Config carries the static widget parameters.
type Config struct {
	AppName     string
	Environment string
}

// Orchestrator drives one connect run at a time and reacts to the five
// widget events afterwards.
type Orchestrator struct {
	cfg      Config
	backend  Backend
	widget   Widget
	audience AudiencePrefetcher
	sink     Sink

	mu    sync.Mutex
	state State
	busy  bool
}

// New creates an orchestrator in the Idle state.
func New(cfg Config, backend Backend, widget Widget, audience AudiencePrefetcher, sink Sink) *Orchestrator {
	return &Orchestrator{
		cfg:      cfg,
		backend:  backend,
		widget:   widget,
		audience: audience,
		sink:     sink,
		state:    StateIdle,
	}
}

// State returns the current flow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether a run is in flight. The UI uses this to disable the
// connect action; it is advisory only.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	logging.ConnectDebug("state -> %s", s)
}

func (o *Orchestrator) clearBusy() {
	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
}

// fail records a failed run: the error message is surfaced, the state passes
// through Failed and settles back at Idle, and the busy flag clears so the
// user can retry. Nothing is retried automatically.
func (o *Orchestrator) fail(msg string) {
	o.setState(StateFailed)
	o.sink.ShowError(msg)
	o.clearBusy()
	o.setState(StateIdle)
}

// Run executes one connect flow: provisioning, token issuance, SDK wait,
// widget initialization, open. The four phases are strictly sequential.
// On success the run stays busy until a terminal widget event clears it.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.mu.Lock()
	if o.busy {
		o.mu.Unlock()
		return ErrBusy
	}
	o.busy = true
	o.mu.Unlock()

	logging.Connect("connect run starting (env=%s)", o.cfg.Environment)

	o.setState(StateProvisioningUser)
	user, err := o.backend.EnsurePhylloUser(ctx, o.cfg.AppName)
	if err != nil {
		logging.ConnectError("user provisioning failed: %v", err)
		o.fail(fmt.Sprintf("Could not prepare your connect profile: %v", err))
		return err
	}

	o.setState(StateIssuingToken)
	token, err := o.backend.SDKToken(ctx)
	if err != nil {
		logging.ConnectError("SDK token issuance failed: %v", err)
		o.fail(fmt.Sprintf("Could not get a connect token: %v", err))
		return err
	}
	logging.ConnectDebug("SDK token issued, expires %s", token.ExpiresAt)

	o.setState(StateAwaitingSDK)
	if err := WaitForSDK(ctx, func() bool { return o.widget.Ready(ctx) }); err != nil {
		o.fail("The connect widget took too long to load. Please try again.")
		return err
	}

	o.setState(StateInitialized)
	params := WidgetParams{
		AppName:     o.cfg.AppName,
		Environment: o.cfg.Environment,
		UserID:      user.ID,
		Token:       token.Token,
	}
	if err := o.widget.Open(ctx, params, o.handlers(ctx)); err != nil {
		logging.ConnectError("widget open failed: %v", err)
		o.fail(fmt.Sprintf("Could not open the connect widget: %v", err))
		return err
	}

	o.setState(StateOpen)
	logging.Connect("widget open, waiting for events")
	return nil
}

// handlers builds the five event callbacks registered before the widget
// opens. They may fire on any goroutine.
func (o *Orchestrator) handlers(ctx context.Context) Handlers {
	return Handlers{
		AccountConnected: func(accountID, platformID, userID string) {
			logging.Connect("account connected: %s (platform %s)", accountID, platformID)
			o.setState(StateConnected)

			// Best-effort warm-up. A fresh account frequently has no
			// demographics yet; that is an expected outcome, not an error.
			if o.audience != nil {
				if err := o.audience.Prefetch(ctx, accountID); err != nil {
					logging.ConnectDebug("audience prefetch for %s skipped: %v", accountID, err)
				}
			}

			o.sink.RefreshAccounts()
			o.clearBusy()
		},

		AccountDisconnected: func(accountID, platformID, userID string) {
			logging.Connect("account disconnected: %s", accountID)
			o.setState(StateDisconnected)
			o.sink.RefreshAccounts()
		},

		TokenExpired: func(userID string) {
			logging.Connect("SDK token expired for %s", userID)
			o.setState(StateExpired)
			o.sink.ShowNotice("Your connect session expired. Please try again.")
			o.clearBusy()
		},

		Exit: func(reason, userID string) {
			logging.Connect("widget exited: %s", reason)
			o.setState(StateExited)
			o.clearBusy()
		},

		ConnectionFailure: func(reason, platformID, userID string) {
			logging.ConnectError("connection failure on %s: %s", platformID, reason)
			o.setState(StateFailed)
			o.sink.ShowError(fmt.Sprintf("Could not connect %s: %s", platformID, reason))
			o.clearBusy()
		},
	}
}
