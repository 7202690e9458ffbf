// Package insights loads the connected-account snapshot and the per-account
// audience demographics behind the dashboard charts.
package insights

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"audiencedeck/internal/api"
	"audiencedeck/internal/logging"

	"golang.org/x/sync/errgroup"
)

// Source is the slice of the REST client the loader needs.
type Source interface {
	Accounts(ctx context.Context) ([]api.ConnectedAccount, error)
	Audience(ctx context.Context, accountID string) (api.AudienceRecord, error)
}

// Cache receives best-effort copies of fetched data. Writes that fail are
// logged and ignored; the cache never blocks a load.
type Cache interface {
	PutAccounts(accounts []api.ConnectedAccount) error
	PutAudience(rec api.AudienceRecord) error
}

// Loader fetches accounts and audience records. Per-account audience
// fetches run concurrently and are independently fault tolerant.
type Loader struct {
	source Source
	cache  Cache // optional

	loading atomic.Bool
}

// NewLoader creates a loader. cache may be nil.
func NewLoader(source Source, cache Cache) *Loader {
	return &Loader{source: source, cache: cache}
}

// Loading reports whether a load is in flight (the UI loading flag).
func (l *Loader) Loading() bool {
	return l.loading.Load()
}

// LoadAccounts fetches the current account snapshot. A 400-class response
// means "no accounts" and yields an empty list with no error; any other
// failure is returned with an empty list. The loading flag always clears on
// completion.
func (l *Loader) LoadAccounts(ctx context.Context) ([]api.ConnectedAccount, error) {
	l.loading.Store(true)
	defer l.loading.Store(false)

	accounts, err := l.source.Accounts(ctx)
	if err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			return []api.ConnectedAccount{}, err
		}
		if api.IsClientError(err) {
			logging.Insights("account listing returned a client error, treating as empty: %v", err)
			return []api.ConnectedAccount{}, nil
		}
		logging.InsightsWarn("account listing failed: %v", err)
		return []api.ConnectedAccount{}, err
	}

	if l.cache != nil {
		if cacheErr := l.cache.PutAccounts(accounts); cacheErr != nil {
			logging.InsightsWarn("snapshot cache write failed: %v", cacheErr)
		}
	}
	logging.Insights("loaded %d account(s)", len(accounts))
	return accounts, nil
}

// LoadInsights fetches the account snapshot and then one audience record per
// account, concurrently. A failure for one account drops that account from
// the result and does not abort the others; the returned slice is in
// completion order, which is not stable.
func (l *Loader) LoadInsights(ctx context.Context) ([]api.AudienceRecord, error) {
	accounts, err := l.LoadAccounts(ctx)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return []api.AudienceRecord{}, nil
	}

	l.loading.Store(true)
	defer l.loading.Store(false)

	var (
		mu      sync.Mutex
		records = make([]api.AudienceRecord, 0, len(accounts))
	)

	// All-complete barrier: every per-account fetch finishes (or fails)
	// before anything renders. Individual failures are logged only.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, account := range accounts {
		g.Go(func() error {
			rec, err := l.fetchAudience(gctx, account.ID)
			if err != nil {
				logging.Insights("no audience for %s (%s): %v", account.ID, account.Platform, err)
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	logging.Insights("loaded audience for %d of %d account(s)", len(records), len(accounts))
	return records, nil
}

// Prefetch warms the audience record for one account, used right after an
// account connects. The caller decides whether the error matters.
func (l *Loader) Prefetch(ctx context.Context, accountID string) error {
	_, err := l.fetchAudience(ctx, accountID)
	return err
}

func (l *Loader) fetchAudience(ctx context.Context, accountID string) (api.AudienceRecord, error) {
	rec, err := l.source.Audience(ctx, accountID)
	if err != nil {
		return api.AudienceRecord{}, err
	}
	if l.cache != nil {
		if cacheErr := l.cache.PutAudience(rec); cacheErr != nil {
			logging.InsightsWarn("audience cache write failed: %v", cacheErr)
		}
	}
	return rec, nil
}
