package connect

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"audiencedeck/internal/api"
)

type fakeBackend struct {
	userErr  error
	tokenErr error
}

func (f *fakeBackend) EnsurePhylloUser(ctx context.Context, name string) (api.PhylloUser, error) {
	if f.userErr != nil {
		return api.PhylloUser{}, f.userErr
	}
	return api.PhylloUser{ID: "phy-1"}, nil
}

func (f *fakeBackend) SDKToken(ctx context.Context) (api.SDKToken, error) {
	if f.tokenErr != nil {
		return api.SDKToken{}, f.tokenErr
	}
	return api.SDKToken{Token: "sdk-tok"}, nil
}

// fakeWidget is always ready and records the registered handlers so tests
// can fire widget events.
type fakeWidget struct {
	openErr  error
	params   WidgetParams
	handlers Handlers
	opened   bool
}

func (f *fakeWidget) Ready(ctx context.Context) bool { return true }

func (f *fakeWidget) Open(ctx context.Context, params WidgetParams, handlers Handlers) error {
	if f.openErr != nil {
		return f.openErr
	}
	f.params = params
	f.handlers = handlers
	f.opened = true
	return nil
}

type fakePrefetcher struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakePrefetcher) Prefetch(ctx context.Context, accountID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, accountID)
	return f.err
}

type fakeSink struct {
	mu        sync.Mutex
	refreshes int
	notices   []string
	errors    []string
}

func (f *fakeSink) RefreshAccounts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
}

func (f *fakeSink) ShowNotice(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, msg)
}

func (f *fakeSink) ShowError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
}

func (f *fakeSink) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestOrchestrator(backend *fakeBackend, widget *fakeWidget, prefetch *fakePrefetcher, sink *fakeSink) *Orchestrator {
	return New(Config{AppName: "audiencedeck", Environment: "sandbox"},
		backend, widget, prefetch, sink)
}

func TestRunHappyPath(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, sink)

	require.NoError(t, o.Run(context.Background()))

	assert.Equal(t, StateOpen, o.State())
	assert.True(t, o.Busy(), "stays busy until a terminal widget event")
	assert.True(t, widget.opened)
	assert.Equal(t, "phy-1", widget.params.UserID)
	assert.Equal(t, "sdk-tok", widget.params.Token)
	assert.Equal(t, "sandbox", widget.params.Environment)
}

func TestRunWhileBusyReturnsErrBusy(t *testing.T) {
	o := newTestOrchestrator(&fakeBackend{}, &fakeWidget{}, &fakePrefetcher{}, &fakeSink{})

	require.NoError(t, o.Run(context.Background()))
	err := o.Run(context.Background())
	require.ErrorIs(t, err, ErrBusy)
}

func TestRunProvisioningFailure(t *testing.T) {
	sink := &fakeSink{}
	boom := errors.New("backend down")
	o := newTestOrchestrator(&fakeBackend{userErr: boom}, &fakeWidget{}, &fakePrefetcher{}, sink)

	err := o.Run(context.Background())
	require.ErrorIs(t, err, boom)

	assert.Equal(t, StateIdle, o.State(), "failed runs settle back at idle")
	assert.False(t, o.Busy(), "busy clears so the user can retry")
	require.Len(t, sink.errors, 1)
	assert.Contains(t, sink.errors[0], "connect profile")
}

func TestRunTokenFailure(t *testing.T) {
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeBackend{tokenErr: errors.New("nope")}, &fakeWidget{}, &fakePrefetcher{}, sink)

	require.Error(t, o.Run(context.Background()))
	assert.False(t, o.Busy())
	require.Len(t, sink.errors, 1)
	assert.Contains(t, sink.errors[0], "connect token")
}

func TestRunWidgetOpenFailure(t *testing.T) {
	sink := &fakeSink{}
	widget := &fakeWidget{openErr: errors.New("chrome crashed")}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, sink)

	require.Error(t, o.Run(context.Background()))
	assert.Equal(t, StateIdle, o.State())
	assert.False(t, o.Busy())
}

func TestAccountConnectedPrefetchesAndRefreshes(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	prefetch := &fakePrefetcher{}
	o := newTestOrchestrator(&fakeBackend{}, widget, prefetch, sink)

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.AccountConnected("acc-1", "instagram", "phy-1")

	assert.Equal(t, []string{"acc-1"}, prefetch.ids)
	assert.Equal(t, 1, sink.refreshCount())
	assert.False(t, o.Busy(), "terminal event clears busy")
	assert.Equal(t, StateConnected, o.State())
}

func TestAccountConnectedSwallowsPrefetchFailure(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	prefetch := &fakePrefetcher{err: errors.New("no demographics yet")}
	o := newTestOrchestrator(&fakeBackend{}, widget, prefetch, sink)

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.AccountConnected("acc-1", "instagram", "phy-1")

	// The failed warm-up neither surfaces nor blocks the refresh.
	assert.Empty(t, sink.errors)
	assert.Equal(t, 1, sink.refreshCount())
	assert.False(t, o.Busy())
}

func TestAccountDisconnectedRefreshesWithoutClearingBusy(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, sink)

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.AccountDisconnected("acc-1", "instagram", "phy-1")

	assert.Equal(t, 1, sink.refreshCount())
	assert.True(t, o.Busy(), "a disconnect is not a terminal event for the run")
	assert.Equal(t, StateDisconnected, o.State())
}

func TestTokenExpiredShowsNoticeAndClearsBusy(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, sink)

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.TokenExpired("phy-1")

	require.Len(t, sink.notices, 1)
	assert.Contains(t, sink.notices[0], "expired")
	assert.False(t, o.Busy())
	assert.Equal(t, StateExpired, o.State())
}

func TestExitClearsBusy(t *testing.T) {
	widget := &fakeWidget{}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, &fakeSink{})

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.Exit("user closed the window", "phy-1")

	assert.False(t, o.Busy())
	assert.Equal(t, StateExited, o.State())

	// The next run is allowed again.
	require.NoError(t, o.Run(context.Background()))
}

func TestConnectionFailureShowsErrorAndClearsBusy(t *testing.T) {
	widget := &fakeWidget{}
	sink := &fakeSink{}
	o := newTestOrchestrator(&fakeBackend{}, widget, &fakePrefetcher{}, sink)

	require.NoError(t, o.Run(context.Background()))
	widget.handlers.ConnectionFailure("rate limited", "tiktok", "phy-1")

	require.Len(t, sink.errors, 1)
	assert.Contains(t, sink.errors[0], "tiktok")
	assert.Contains(t, sink.errors[0], "rate limited")
	assert.False(t, o.Busy())
}
