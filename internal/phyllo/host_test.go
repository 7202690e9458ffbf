package phyllo

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"audiencedeck/internal/config"
	"audiencedeck/internal/connect"
)

func TestHostPageEmbedsSDKURL(t *testing.T) {
	html := fmt.Sprintf(hostPage, "https://cdn.example.com/connect/v2/connect.js")
	if !strings.Contains(html, `<script src="https://cdn.example.com/connect/v2/connect.js"></script>`) {
		t.Fatalf("host page missing SDK script tag:\n%s", html)
	}
}

func TestOpenRequiresStartedHost(t *testing.T) {
	h := NewHost(config.BrowserConfig{Headless: true}, "https://cdn.example.com/connect.js", "")

	err := h.Open(context.Background(), connect.WidgetParams{}, connect.Handlers{})
	if err == nil {
		t.Fatal("Open on an unstarted host must fail")
	}
	if !strings.Contains(err.Error(), "not started") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStopWithoutStartIsANoOp(t *testing.T) {
	h := NewHost(config.BrowserConfig{}, "https://cdn.example.com/connect.js", "")
	if err := h.Stop(); err != nil {
		t.Fatalf("Stop on an unstarted host: %v", err)
	}
}
