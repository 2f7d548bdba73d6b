package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"StockWatch/internal/condition"
	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	"StockWatch/pkg/cache"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/util"
)

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = errors.New("watch run already in progress")

const (
	quoteKeyPrefix        = "quote"
	fundamentalsKeyPrefix = "fundamentals"
)

// Failure stages attached to record errors.
const (
	stageFetch     = "fetch"
	stageCondition = "condition"
	stagePersist   = "persist"
	stageNotify    = "notify"
)

// WatchRunnerConfig tunes one runner instance.
type WatchRunnerConfig struct {
	Job         string
	Workers     int
	CallTimeout time.Duration
	QuoteTTL    time.Duration
}

// WatchRunner executes one full pass over the watchlist: fetch, evaluate,
// persist, notify. Records are isolated from each other; a failure in one
// never aborts the run.
type WatchRunner struct {
	cfg     WatchRunnerConfig
	store   drepo.RecordStore
	market  drepo.MarketData
	notify  drepo.Notifier
	events  drepo.EventPublisher
	history drepo.RunHistory
	lock    drepo.RunLock
	pruner  *Pruner
	quotes  cache.Service
	metrics drepo.Metrics
	log     *logger.Logger

	now func() time.Time

	mu   sync.Mutex
	last *models.RunSummary
}

func NewWatchRunner(
	cfg WatchRunnerConfig,
	store drepo.RecordStore,
	market drepo.MarketData,
	notify drepo.Notifier,
	events drepo.EventPublisher,
	history drepo.RunHistory,
	lock drepo.RunLock,
	pruner *Pruner,
	quotes cache.Service,
	metrics drepo.Metrics,
	log *logger.Logger,
) *WatchRunner {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &WatchRunner{
		cfg:     cfg,
		store:   store,
		market:  market,
		notify:  notify,
		events:  events,
		history: history,
		lock:    lock,
		pruner:  pruner,
		quotes:  quotes,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// LastSummary returns the summary of the most recent completed run, or nil.
func (r *WatchRunner) LastSummary() *models.RunSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// recordResult is the terminal outcome of processing one record.
type recordResult struct {
	evaluated bool
	skipped   bool
	notified  bool
	err       *models.RecordError
}

// Run executes one batch pass and returns its summary.
func (r *WatchRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	acquired, err := r.lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return nil, ErrRunInProgress
	}
	defer func() {
		if err := r.lock.Release(context.WithoutCancel(ctx)); err != nil {
			r.log.Warn("release run lock failed", logger.Error(err))
		}
	}()

	started := r.now().UTC()

	// Quotes must be fresh per run.
	if err := r.quotes.Flush(ctx); err != nil {
		r.log.Warn("quote cache flush failed", logger.Error(err))
	}

	records, err := r.store.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	summary := &models.RunSummary{
		Job:       r.cfg.Job,
		StartedAt: started,
		Total:     len(records),
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, r.cfg.Workers)
	)
	for _, rec := range records {
		wg.Add(1)
		sem <- struct{}{}
		go func(rec *models.WatchlistRecord) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if p := recover(); p != nil {
					r.log.Error("record processing panicked",
						logger.String("record_id", rec.ID),
						logger.Any("panic", p))
					mu.Lock()
					summary.Errored++
					summary.Errors = append(summary.Errors, models.RecordError{
						RecordID: rec.ID,
						Ticker:   rec.RawTicker,
						Stage:    stageCondition,
						Message:  fmt.Sprintf("panic: %v", p),
					})
					mu.Unlock()
				}
			}()

			res := r.process(ctx, rec)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.skipped:
				summary.Skipped++
				r.metrics.RecordOutcome("skipped")
			case res.err != nil:
				summary.Errored++
				summary.Errors = append(summary.Errors, *res.err)
				r.metrics.RecordOutcome("errored")
				r.metrics.RecordError(res.err.Stage)
			case res.evaluated:
				summary.Evaluated++
				r.metrics.RecordOutcome("evaluated")
			}
			if res.notified {
				summary.Notified++
				r.metrics.RecordOutcome("notified")
			}
		}(rec)
	}
	wg.Wait()

	summary.FinishedAt = r.now().UTC()

	r.recordHistory(ctx, summary)

	if pruned, err := r.pruner.Prune(ctx, r.cfg.Job); err != nil {
		r.log.Error("history prune failed", logger.Error(err))
	} else {
		summary.Pruned = pruned
	}

	if err := r.events.PublishSummary(ctx, summary); err != nil {
		r.log.Warn("publish summary failed", logger.Error(err))
	}

	r.metrics.RecordLatency("run", summary.FinishedAt.Sub(summary.StartedAt).Seconds())

	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()

	r.log.Info("watch run finished",
		logger.String("job", summary.Job),
		logger.Int("total", summary.Total),
		logger.Int("evaluated", summary.Evaluated),
		logger.Int("skipped", summary.Skipped),
		logger.Int("notified", summary.Notified),
		logger.Int("errored", summary.Errored),
		logger.Duration("took", summary.FinishedAt.Sub(summary.StartedAt)))

	return summary, nil
}

func (r *WatchRunner) recordHistory(ctx context.Context, s *models.RunSummary) {
	entry := &models.ExecutionRecord{
		ID:        fmt.Sprintf("%s-%d", s.Job, s.StartedAt.UnixNano()),
		Job:       s.Job,
		StartedAt: s.StartedAt,
		Evaluated: s.Evaluated,
		Skipped:   s.Skipped,
		Notified:  s.Notified,
		Errored:   s.Errored,
	}
	if err := r.history.Record(ctx, entry); err != nil {
		r.log.Error("record run history failed", logger.Error(err))
	}
}

// process runs the per-record pipeline. Records past their deadline are
// frozen: no fetch, no evaluation, no mutation. A record that is fetched
// always gets its last-checked timestamp persisted, even when evaluation
// cannot proceed.
func (r *WatchRunner) process(ctx context.Context, rec *models.WatchlistRecord) recordResult {
	if rec.PastDeadline(r.now()) {
		return recordResult{skipped: true}
	}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()

	ticker := rec.Region.NormalizeTicker(rec.RawTicker)
	quote, err := r.fetchQuote(cctx, ticker)
	if err != nil {
		r.log.Error("quote fetch failed",
			logger.String("record_id", rec.ID),
			logger.String("ticker", ticker),
			logger.Error(err))
		return recordResult{err: &models.RecordError{
			RecordID: rec.ID, Ticker: ticker, Stage: stageFetch, Message: err.Error(),
		}}
	}

	checkedAt := r.now().UTC()
	patch := &models.RecordPatch{LastCheckedAt: &checkedAt}

	// Name refresh is advisory: the provider's canonical name wins whenever
	// it differs from the stored one.
	if quote.Name != "" && quote.Name != rec.DisplayName {
		name := quote.Name
		patch.DisplayName = &name
	}

	// Valuation enrichment is advisory too; a failed lookup never fails
	// the record.
	if f := r.fetchFundamentals(cctx, ticker); f != nil {
		patch.DividendYield = f.DividendYield
		patch.PriceEarnings = f.PriceEarnings
		patch.MarketCap = f.MarketCap
		patch.DividendDate = f.DividendDate
		patch.EarningsDate = f.EarningsDate
	}

	// No session data is a valid outcome, not an error. Only the check
	// timestamp moves forward.
	if quote.Close == nil {
		if err := r.persist(cctx, rec, patch); err != nil {
			return recordResult{err: err}
		}
		return recordResult{evaluated: true}
	}

	price := *quote.Close
	patch.LastPrice = &price
	r.metrics.RecordLastPrice(ticker, price)

	achieved, err := condition.Evaluate(rec.Condition, price)
	if err != nil {
		// A broken expression still gets its observed price persisted so
		// the store reflects the latest market state.
		if perr := r.persist(cctx, rec, patch); perr != nil {
			return recordResult{err: perr}
		}
		return recordResult{err: &models.RecordError{
			RecordID: rec.ID, Ticker: ticker, Stage: stageCondition, Message: err.Error(),
		}}
	}

	// Achievement is sticky. A condition that was already achieved never
	// re-fires, which makes repeated runs idempotent.
	firstAchieved := achieved && !rec.Achieved
	if firstAchieved {
		t := true
		patch.Achieved = &t
	}

	perr := r.persist(cctx, rec, patch)

	res := recordResult{evaluated: true}
	if firstAchieved && rec.NotifyEnabled {
		// Notification is attempted even when persistence failed. Missing
		// an alert is worse than repeating one.
		if nerr := r.sendAlert(cctx, rec, ticker, quote, price); nerr != nil {
			return recordResult{err: &models.RecordError{
				RecordID: rec.ID, Ticker: ticker, Stage: stageNotify, Message: nerr.Error(),
			}}
		}
		res.notified = true
	}
	if perr != nil {
		return recordResult{err: perr, notified: res.notified}
	}
	return res
}

func (r *WatchRunner) persist(ctx context.Context, rec *models.WatchlistRecord, patch *models.RecordPatch) *models.RecordError {
	if err := r.store.PatchRecord(ctx, rec.ID, patch); err != nil {
		r.log.Error("record persist failed",
			logger.String("record_id", rec.ID),
			logger.Error(err))
		return &models.RecordError{
			RecordID: rec.ID, Ticker: rec.RawTicker, Stage: stagePersist, Message: err.Error(),
		}
	}
	return nil
}

func (r *WatchRunner) sendAlert(ctx context.Context, rec *models.WatchlistRecord, ticker string, quote *models.Quote, price float64) error {
	name := rec.DisplayName
	if name == "" {
		name = quote.Name
	}
	if name == "" {
		name = ticker
	}

	msg := fmt.Sprintf("%s (%s) hit %s at %s", name, ticker, rec.Condition, util.FormatPrice(price))
	if quote.PrevClosePct != nil {
		msg += fmt.Sprintf(" (%+.2f%% vs prev close)", *quote.PrevClosePct)
	}

	if err := r.notify.Notify(ctx, msg); err != nil {
		return err
	}

	ev := &models.AlertEvent{
		RecordID:  rec.ID,
		Name:      name,
		Ticker:    ticker,
		Condition: rec.Condition,
		Price:     price,
		At:        r.now().UTC(),
	}
	if err := r.events.PublishAlert(ctx, ev); err != nil {
		r.log.Warn("publish alert failed",
			logger.String("record_id", rec.ID),
			logger.Error(err))
	}

	r.log.Info("alert sent",
		logger.String("ticker", ticker),
		logger.String("condition", rec.Condition),
		logger.Any("price", price))
	return nil
}

// fetchQuote consults the per-run cache first so duplicate tickers hit the
// provider once.
func (r *WatchRunner) fetchQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	key := cache.GenerateKey(quoteKeyPrefix, ticker)

	var cached interface{}
	if err := r.quotes.Get(ctx, key, &cached); err == nil {
		if q, ok := cached.(*models.Quote); ok {
			return q, nil
		}
	}

	start := r.now()
	quote, err := r.market.LatestQuote(ctx, ticker)
	r.metrics.RecordLatency("quote_fetch", time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	if err := r.quotes.Set(ctx, key, quote, r.cfg.QuoteTTL); err != nil {
		r.log.Warn("quote cache set failed", logger.String("ticker", ticker), logger.Error(err))
	}
	return quote, nil
}

// fetchFundamentals returns valuation data for ticker, or nil when the
// provider has none or the lookup fails. Results are cached per run like
// quotes.
func (r *WatchRunner) fetchFundamentals(ctx context.Context, ticker string) *models.Fundamentals {
	key := cache.GenerateKey(fundamentalsKeyPrefix, ticker)

	var cached interface{}
	if err := r.quotes.Get(ctx, key, &cached); err == nil {
		if f, ok := cached.(*models.Fundamentals); ok {
			return f
		}
	}

	f, err := r.market.Fundamentals(ctx, ticker)
	if err != nil {
		r.log.Warn("fundamentals fetch failed",
			logger.String("ticker", ticker),
			logger.Error(err))
		return nil
	}
	if f == nil {
		return nil
	}

	if err := r.quotes.Set(ctx, key, f, r.cfg.QuoteTTL); err != nil {
		r.log.Warn("fundamentals cache set failed", logger.String("ticker", ticker), logger.Error(err))
	}
	return f
}
