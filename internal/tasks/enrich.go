package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/acctsync/internal/models"
	"github.com/desertthunder/acctsync/internal/services"
	"github.com/desertthunder/acctsync/internal/shared"
	"github.com/desertthunder/acctsync/internal/throttle"
)

const (
	defaultEnrichWorkers = 16
	maxEnrichWorkers     = 50
)

// EnrichResult holds the rows that survived enrichment, in work-list order, and the identities that did not.
type EnrichResult struct {
	Rows  []models.EnrichedRow
	Drops []models.Drop
}

// Enricher completes identities with local ledger records and the remote account status.
type Enricher struct {
	local   LocalLookup
	remote  services.StatusClient
	limiter *throttle.Limiter
	workers int
	logger  *log.Logger
}

// NewEnricher creates an Enricher. Every remote call goes through limiter; workers is clamped to [1, 50].
func NewEnricher(local LocalLookup, remote services.StatusClient, limiter *throttle.Limiter, workers int, logger *log.Logger) *Enricher {
	if workers <= 0 {
		workers = defaultEnrichWorkers
	}
	if workers > maxEnrichWorkers {
		workers = maxEnrichWorkers
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &Enricher{local: local, remote: remote, limiter: limiter, workers: workers, logger: logger}
}

// Enrich builds the row for a single identity without caching local lookups.
func (e *Enricher) Enrich(ctx context.Context, session *models.Session, id models.Identity) models.Lookup[models.EnrichedRow] {
	return e.enrich(ctx, e.local, session, id)
}

// EnrichAll enriches identities on a bounded worker pool.
//
// Local lookups are memoized for the duration of the call. A failed identity is dropped and logged
// without affecting the others. Output order follows the input, not completion order.
// Cancelling ctx abandons the remaining identities and returns ctx.Err() with the rows finished so far.
func (e *Enricher) EnrichAll(ctx context.Context, session *models.Session, ids []models.Identity, progress chan<- ProgressUpdate) (*EnrichResult, error) {
	local := newLookupCache(e.local)
	outcomes := make([]models.Lookup[models.EnrichedRow], len(ids))
	done := make([]bool, len(ids))

	jobs := make(chan int)
	completed := make(chan int, len(ids))

	var wg sync.WaitGroup
	for range min(e.workers, max(len(ids), 1)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i] = e.enrich(ctx, local, session, ids[i])
				completed <- i
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range ids {
			select {
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(completed)
	}()

	step := 0
	for i := range completed {
		step++
		done[i] = true
		sendProgress(progress, enrichUpdate(step, len(ids), ids[i], outcomes[i].Err))
	}

	result := &EnrichResult{Rows: make([]models.EnrichedRow, 0, len(ids))}
	for i, id := range ids {
		if !done[i] {
			continue
		}

		outcome := outcomes[i]
		if outcome.IsFound() {
			result.Rows = append(result.Rows, outcome.Value)
			continue
		}

		e.logger.Error("dropping identity", "account", id.AccountUID, "mcc", id.ProviderUUID, "team", id.TeamName, "error", outcome.Err)
		result.Drops = append(result.Drops, models.Drop{Identity: id, Stage: models.StageEnrich, Reason: outcome.Err.Error()})
	}

	e.logger.Debug("enrichment finished", "rows", len(result.Rows), "dropped", len(result.Drops), "cached", local.Len())

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// enrich resolves the provider first so a missing provider costs no remote call.
func (e *Enricher) enrich(ctx context.Context, local LocalLookup, session *models.Session, id models.Identity) models.Lookup[models.EnrichedRow] {
	provider := local.ProviderByUUID(ctx, id.ProviderUUID)
	switch {
	case provider.IsFailed():
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: provider %s: %w", shared.ErrSourceRead, id.ProviderUUID, provider.Err))
	case provider.IsNotFound():
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: %s", shared.ErrMissingProvider, id.ProviderUUID))
	}

	var remote models.Lookup[models.RemoteAccount]
	err := e.limiter.Do(ctx, func(ctx context.Context) error {
		remote = e.remote.Verify(ctx, session, id.AccountUID)
		return nil
	})
	if err != nil {
		return models.Failed[models.EnrichedRow](err)
	}

	switch {
	case remote.IsFailed():
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: %w", shared.ErrEnrichmentMiss, remote.Err))
	case remote.IsNotFound():
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: no remote account for %s", shared.ErrEnrichmentMiss, id.AccountUID))
	}

	account := local.AccountByUID(ctx, id.AccountUID)
	if account.IsFailed() {
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: account %s: %w", shared.ErrSourceRead, id.AccountUID, account.Err))
	}

	refund := local.RefundByUID(ctx, id.AccountUID)
	if refund.IsFailed() {
		return models.Failed[models.EnrichedRow](fmt.Errorf("%w: refund %s: %w", shared.ErrSourceRead, id.AccountUID, refund.Err))
	}

	return models.Found(BuildRow(id, recordOrNil(account), recordOrNil(refund), provider.Value, remote.Value))
}

func recordOrNil(l models.Lookup[models.Record]) models.Record {
	if l.IsFound() {
		return l.Value
	}
	return nil
}
