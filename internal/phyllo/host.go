// Package phyllo hosts the vendor Connect SDK in a real Chrome page and
// bridges its widget events back into Go. It is the production
// implementation of the connect.Widget capability.
package phyllo

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"audiencedeck/internal/config"
	"audiencedeck/internal/connect"
	"audiencedeck/internal/logging"
)

// hostPage is the minimal document the SDK script is loaded into. The widget
// renders its own modal inside it.
const hostPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>audiencedeck connect</title></head>
<body>
<script src="%s"></script>
</body>
</html>`

// Host owns one Chrome instance and one page with the SDK script loaded.
// A Host is reusable across connect runs; the page survives between them so
// the SDK does not have to be re-fetched.
type Host struct {
	cfg         config.BrowserConfig
	sdkURL      string
	storagePath string // widget localStorage snapshot, "" disables persistence

	mu      sync.Mutex
	browser *rod.Browser
	page    *rod.Page
	stops   []func() error
}

// NewHost creates a host from the browser section of the config. storagePath
// may be empty.
func NewHost(cfg config.BrowserConfig, sdkURL, storagePath string) *Host {
	return &Host{cfg: cfg, sdkURL: sdkURL, storagePath: storagePath}
}

// Start launches Chrome and loads the host page. Calling Start on a running
// host is a no-op.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.startLocked(ctx)
}

func (h *Host) startLocked(ctx context.Context) error {
	if h.browser != nil {
		if _, err := h.browser.Version(); err == nil {
			return nil
		}
		logging.BrowserWarn("stale browser connection, relaunching")
		_ = h.browser.Close()
		h.browser = nil
		h.page = nil
	}

	launch := launcher.New().Headless(h.cfg.Headless)
	if h.cfg.Bin != "" {
		launch = launch.Bin(h.cfg.Bin)
	}
	controlURL, err := launch.Launch()
	if err != nil {
		return fmt.Errorf("launch chrome: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = browser.Close()
		return fmt.Errorf("create host page: %w", err)
	}
	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             h.cfg.ViewportWidth,
		Height:            h.cfg.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		logging.BrowserWarn("failed to set viewport: %v", err)
	}

	h.restoreStorage(page)

	if err := page.SetDocumentContent(fmt.Sprintf(hostPage, h.sdkURL)); err != nil {
		_ = browser.Close()
		return fmt.Errorf("load host page: %w", err)
	}

	h.browser = browser
	h.page = page
	logging.Browser("widget host up (headless=%v, sdk=%s)", h.cfg.Headless, h.sdkURL)
	return nil
}

// Ready probes the page for the SDK global. The script tag loads
// asynchronously, so the binding appears some time after the page does.
func (h *Host) Ready(ctx context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.startLocked(ctx); err != nil {
		logging.BrowserWarn("host start failed during readiness probe: %v", err)
		return false
	}

	res, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => typeof window.PhylloConnect !== "undefined" &&
		          typeof window.PhylloConnect.initialize === "function"`,
		ByValue: true,
	})
	if err != nil || res == nil {
		return false
	}
	return res.Value.Bool()
}

// Open initializes the widget with params, registers the five event bridges,
// and opens the modal. The handlers fire on rod's event goroutines.
func (h *Host) Open(ctx context.Context, params connect.WidgetParams, handlers connect.Handlers) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.page == nil {
		return errors.New("widget host not started")
	}

	h.stopBindingsLocked()

	bindings := []struct {
		name string
		fn   func(gson.JSON)
	}{
		{"__deckAccountConnected", func(g gson.JSON) {
			if handlers.AccountConnected != nil {
				handlers.AccountConnected(g.Get("accountId").Str(), g.Get("platformId").Str(), g.Get("userId").Str())
			}
		}},
		{"__deckAccountDisconnected", func(g gson.JSON) {
			if handlers.AccountDisconnected != nil {
				handlers.AccountDisconnected(g.Get("accountId").Str(), g.Get("platformId").Str(), g.Get("userId").Str())
			}
		}},
		{"__deckTokenExpired", func(g gson.JSON) {
			if handlers.TokenExpired != nil {
				handlers.TokenExpired(g.Get("userId").Str())
			}
		}},
		{"__deckExit", func(g gson.JSON) {
			if handlers.Exit != nil {
				handlers.Exit(g.Get("reason").Str(), g.Get("userId").Str())
			}
		}},
		{"__deckConnectionFailure", func(g gson.JSON) {
			if handlers.ConnectionFailure != nil {
				handlers.ConnectionFailure(g.Get("reason").Str(), g.Get("platformId").Str(), g.Get("userId").Str())
			}
		}},
	}
	for _, b := range bindings {
		fn := b.fn
		stop, err := h.page.Expose(b.name, func(g gson.JSON) (interface{}, error) {
			fn(g)
			return nil, nil
		})
		if err != nil {
			h.stopBindingsLocked()
			return fmt.Errorf("expose %s: %w", b.name, err)
		}
		h.stops = append(h.stops, stop)
	}

	_, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `(p) => {
			const connect = window.PhylloConnect.initialize({
				clientDisplayName: p.appName,
				environment: p.environment,
				userId: p.userId,
				token: p.token,
			});
			connect.on("accountConnected", (accountId, platformId, userId) =>
				window.__deckAccountConnected({ accountId, platformId, userId }));
			connect.on("accountDisconnected", (accountId, platformId, userId) =>
				window.__deckAccountDisconnected({ accountId, platformId, userId }));
			connect.on("tokenExpired", (userId) =>
				window.__deckTokenExpired({ userId }));
			connect.on("exit", (reason, userId) =>
				window.__deckExit({ reason, userId }));
			connect.on("connectionFailure", (reason, platformId, userId) =>
				window.__deckConnectionFailure({ reason, platformId, userId }));
			connect.open();
			return true;
		}`,
		JSArgs: []interface{}{map[string]string{
			"appName":     params.AppName,
			"environment": params.Environment,
			"userId":      params.UserID,
			"token":       params.Token,
		}},
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	})
	if err != nil {
		h.stopBindingsLocked()
		return fmt.Errorf("open widget: %w", err)
	}

	logging.Browser("widget opened for user %s", params.UserID)
	return nil
}

// Stop snapshots widget storage and tears the browser down.
func (h *Host) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopBindingsLocked()

	var err error
	if h.page != nil {
		h.snapshotStorage(h.page)
		_ = h.page.Close()
		h.page = nil
	}
	if h.browser != nil {
		err = h.browser.Close()
		h.browser = nil
	}
	return err
}

func (h *Host) stopBindingsLocked() {
	for _, stop := range h.stops {
		_ = stop()
	}
	h.stops = nil
}

// snapshotStorage persists the page's localStorage so the widget keeps its
// own state (consent flags, last platform) across host restarts.
func (h *Host) snapshotStorage(page *rod.Page) {
	if h.storagePath == "" {
		return
	}
	res, err := page.Evaluate(&rod.EvalOptions{
		JS: `() => {
			try {
				const out = {};
				for (const key of Object.keys(localStorage)) {
					out[key] = localStorage.getItem(key);
				}
				return JSON.stringify(out);
			} catch (e) {
				return "{}";
			}
		}`,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil || res.Value.Nil() {
		return
	}
	if writeErr := os.WriteFile(h.storagePath, []byte(res.Value.Str()), 0600); writeErr != nil {
		logging.BrowserWarn("failed to persist widget storage: %v", writeErr)
	}
}

func (h *Host) restoreStorage(page *rod.Page) {
	if h.storagePath == "" {
		return
	}
	data, err := os.ReadFile(h.storagePath)
	if err != nil {
		return
	}
	_, _ = page.Evaluate(&rod.EvalOptions{
		JS: `(saved) => {
			try {
				const s = JSON.parse(saved || "{}");
				Object.entries(s).forEach(([k, v]) => localStorage.setItem(k, v));
			} catch (e) {}
		}`,
		JSArgs:       []interface{}{string(data)},
		ByValue:      true,
		AwaitPromise: true,
		UserGesture:  true,
	})
}
