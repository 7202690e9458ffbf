package connect

import (
	"context"
	"errors"
	"time"

	"audiencedeck/internal/logging"
)

// The widget host exposes the vendor SDK through a global binding that
// appears some time after the page loads. The poller probes that binding at
// a fixed cadence until it shows up or the deadline passes.
const (
	sdkPollAttempts = 50
	sdkPollInterval = 100 * time.Millisecond
)

// ErrSDKLoadTimeout is returned when the vendor SDK never became available
// within the polling deadline (attempts x interval, i.e. 5 seconds).
var ErrSDKLoadTimeout = errors.New("connect SDK did not load within 5s")

// WaitForSDK blocks until probe reports the SDK global as present. It
// resolves immediately when the SDK is already loaded; otherwise it performs
// at most sdkPollAttempts probes at sdkPollInterval spacing. Safe to call
// again after a timeout. There is no cancellation path beyond ctx.
func WaitForSDK(ctx context.Context, probe func() bool) error {
	start := time.Now()
	ticker := time.NewTicker(sdkPollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		if probe() {
			logging.ConnectDebug("SDK ready after %d probe(s) in %v", attempt, time.Since(start))
			return nil
		}
		if attempt >= sdkPollAttempts {
			logging.ConnectError("SDK never appeared after %d probes (%v)", attempt, time.Since(start))
			return ErrSDKLoadTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
