package connect

import "context"

// WidgetParams carries everything the vendor widget needs at initialization:
// the display name shown in the widget, the environment tag, the remote end
// user id, and the short-lived SDK token.
type WidgetParams struct {
	AppName     string
	Environment string
	UserID      string
	Token       string
}

// Handlers are the five callbacks the vendor widget fires asynchronously.
// All of them must be registered before the widget opens. Order is not
// guaranteed across accounts; at most one connect run is expected in flight
// per user action.
type Handlers struct {
	AccountConnected    func(accountID, platformID, userID string)
	AccountDisconnected func(accountID, platformID, userID string)
	TokenExpired        func(userID string)
	Exit                func(reason, userID string)
	ConnectionFailure   func(reason, platformID, userID string)
}

// Widget is the injected capability wrapping the vendor Connect experience.
// The production implementation hosts the real SDK in a browser page
// (internal/phyllo); tests use a scripted fake.
type Widget interface {
	// Ready probes whether the SDK global binding is present yet.
	Ready(ctx context.Context) bool

	// Open initializes the widget with params, registers all handlers, and
	// makes it visually active. After Open returns the orchestrator is
	// reactive only.
	Open(ctx context.Context, params WidgetParams, handlers Handlers) error
}
