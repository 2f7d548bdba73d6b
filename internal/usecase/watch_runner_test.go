package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"StockWatch/internal/domain/models"
	"StockWatch/pkg/cache"
	"StockWatch/pkg/logger"
)

type fakeStore struct {
	mu       sync.Mutex
	records  []*models.WatchlistRecord
	patches  map[string][]*models.RecordPatch
	listErr  error
	patchErr error
}

func newFakeStore(recs ...*models.WatchlistRecord) *fakeStore {
	return &fakeStore{records: recs, patches: make(map[string][]*models.RecordPatch)}
}

func (s *fakeStore) ListRecords(ctx context.Context) ([]*models.WatchlistRecord, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.records, nil
}

func (s *fakeStore) PatchRecord(ctx context.Context, id string, patch *models.RecordPatch) error {
	if s.patchErr != nil {
		return s.patchErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches[id] = append(s.patches[id], patch)
	return nil
}

func (s *fakeStore) InsertRecord(ctx context.Context, rec *models.WatchlistRecord) (string, error) {
	return "new-id", nil
}

func (s *fakeStore) patchesFor(id string) []*models.RecordPatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.patches[id]
}

type fakeMarket struct {
	mu     sync.Mutex
	quotes map[string]*models.Quote
	funds  map[string]*models.Fundamentals
	errs   map[string]error
	calls  map[string]int
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		quotes: make(map[string]*models.Quote),
		funds:  make(map[string]*models.Fundamentals),
		errs:   make(map[string]error),
		calls:  make(map[string]int),
	}
}

func (m *fakeMarket) Fundamentals(ctx context.Context, ticker string) (*models.Fundamentals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.funds[ticker], nil
}

func (m *fakeMarket) LatestQuote(ctx context.Context, ticker string) (*models.Quote, error) {
	m.mu.Lock()
	m.calls[ticker]++
	m.mu.Unlock()
	if err, ok := m.errs[ticker]; ok {
		return nil, err
	}
	if q, ok := m.quotes[ticker]; ok {
		return q, nil
	}
	return nil, errors.New("unknown ticker")
}

func (m *fakeMarket) set(ticker string, close float64) {
	m.quotes[ticker] = &models.Quote{Ticker: ticker, Close: &close, AsOf: time.Now()}
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (n *fakeNotifier) Notify(ctx context.Context, message string) error {
	if n.err != nil {
		return n.err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
	return nil
}

func (n *fakeNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.messages
}

type fakeEvents struct {
	mu        sync.Mutex
	alerts    []*models.AlertEvent
	summaries []*models.RunSummary
}

func (e *fakeEvents) PublishAlert(ctx context.Context, ev *models.AlertEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.alerts = append(e.alerts, ev)
	return nil
}

func (e *fakeEvents) PublishSummary(ctx context.Context, s *models.RunSummary) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.summaries = append(e.summaries, s)
	return nil
}

func (e *fakeEvents) Close() error { return nil }

type fakeHistory struct {
	mu      sync.Mutex
	entries []*models.ExecutionRecord
	deleted []string
	failIDs map[string]bool
}

func (h *fakeHistory) Record(ctx context.Context, rec *models.ExecutionRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]*models.ExecutionRecord{rec}, h.entries...)
	return nil
}

func (h *fakeHistory) List(ctx context.Context, job string) ([]*models.ExecutionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*models.ExecutionRecord, len(h.entries))
	copy(out, h.entries)
	return out, nil
}

func (h *fakeHistory) Delete(ctx context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.failIDs[id] {
		return errors.New("delete rejected")
	}
	h.deleted = append(h.deleted, id)
	for i, e := range h.entries {
		if e.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
	return nil
}

type fakeLock struct {
	held bool
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.held = false
	return nil
}

type noopMetrics struct{}

func (noopMetrics) RecordOutcome(outcome string)                 {}
func (noopMetrics) RecordError(kind string)                      {}
func (noopMetrics) RecordLastPrice(ticker string, price float64) {}
func (noopMetrics) RecordLatency(op string, seconds float64)     {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return log
}

type runnerFixture struct {
	runner  *WatchRunner
	store   *fakeStore
	market  *fakeMarket
	notify  *fakeNotifier
	events  *fakeEvents
	history *fakeHistory
	lock    *fakeLock
}

func newRunnerFixture(t *testing.T, keep int, recs ...*models.WatchlistRecord) *runnerFixture {
	t.Helper()
	log := testLogger(t)
	f := &runnerFixture{
		store:   newFakeStore(recs...),
		market:  newFakeMarket(),
		notify:  &fakeNotifier{},
		events:  &fakeEvents{},
		history: &fakeHistory{},
		lock:    &fakeLock{},
	}
	f.runner = NewWatchRunner(
		WatchRunnerConfig{Job: "watch", Workers: 4, CallTimeout: time.Second, QuoteTTL: time.Minute},
		f.store, f.market, f.notify, f.events, f.history, f.lock,
		NewPruner(f.history, keep, log),
		cache.NewMemoryCache(),
		noopMetrics{}, log,
	)
	return f
}

func record(id, ticker, cond string) *models.WatchlistRecord {
	return &models.WatchlistRecord{
		ID:            id,
		DisplayName:   id,
		RawTicker:     ticker,
		Region:        models.RegionForeign,
		Condition:     cond,
		NotifyEnabled: true,
	}
}

func TestRunNotifiesOnAchievedCondition(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Evaluated != 1 || summary.Notified != 1 || summary.Errored != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	msgs := f.notify.sent()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0], "AAA") || !strings.Contains(msgs[0], "120") {
		t.Fatalf("notification missing name or price: %q", msgs[0])
	}

	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	p := patches[0]
	if p.Achieved == nil || !*p.Achieved {
		t.Fatalf("achieved flag not persisted: %+v", p)
	}
	if p.LastPrice == nil || *p.LastPrice != 120 {
		t.Fatalf("last price not persisted: %+v", p)
	}

	if len(f.events.alerts) != 1 {
		t.Fatalf("expected 1 alert event, got %d", len(f.events.alerts))
	}
}

func TestRunIsIdempotentForAchievedRecords(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	rec.Achieved = true
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Notified != 0 {
		t.Fatalf("achieved record must not re-notify, got %d", summary.Notified)
	}
	if summary.Evaluated != 1 {
		t.Fatalf("achieved record still counts evaluated, got %+v", summary)
	}

	// Price and timestamp still refresh.
	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 || patches[0].LastPrice == nil {
		t.Fatalf("expected price refresh patch, got %+v", patches)
	}
	if patches[0].Achieved != nil {
		t.Fatalf("achieved flag must not be re-written: %+v", patches[0])
	}
}

func TestRunSkipsPastDeadlineRecords(t *testing.T) {
	deadline := time.Now().AddDate(0, 0, -2)
	rec := record("rec1", "AAA", "price > 100")
	rec.Deadline = &deadline
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Skipped != 1 || summary.Evaluated != 0 || summary.Notified != 0 {
		t.Fatalf("expected skip, got %+v", summary)
	}
	if f.market.calls["AAA.T"]+f.market.calls["AAA"] != 0 {
		t.Fatalf("frozen record must not be fetched")
	}
	if len(f.store.patchesFor("rec1")) != 0 {
		t.Fatalf("frozen record must not be mutated")
	}
}

func TestRunNormalizesDomesticTickers(t *testing.T) {
	plain := record("rec1", "7203", "price > 100")
	plain.Region = models.RegionDomestic
	suffixed := record("rec2", "7203.T", "price > 100")
	suffixed.Region = models.RegionDomestic

	f := newRunnerFixture(t, 30, plain, suffixed)
	f.runner.cfg.Workers = 1
	f.market.set("7203.T", 50)

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.market.calls["7203"] != 0 {
		t.Fatalf("unsuffixed symbol leaked to provider")
	}
	// Both resolve to the same symbol; the second hit comes from cache.
	if f.market.calls["7203.T"] != 1 {
		t.Fatalf("expected 1 provider call for 7203.T, got %d", f.market.calls["7203.T"])
	}
}

func TestRunIsolatesRecordFailures(t *testing.T) {
	f := newRunnerFixture(t, 30,
		record("rec1", "AAA", "price > 100"),
		record("rec2", "BBB", "price > 100"),
		record("rec3", "CCC", "price > 100"),
	)
	f.market.set("AAA", 50)
	f.market.errs["BBB"] = errors.New("provider down")
	f.market.set("CCC", 150)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Errored != 1 {
		t.Fatalf("expected 1 errored record, got %+v", summary)
	}
	if summary.Evaluated != 2 {
		t.Fatalf("healthy records must still evaluate, got %+v", summary)
	}
	if summary.Notified != 1 {
		t.Fatalf("expected CCC to notify, got %+v", summary)
	}
	if len(summary.Errors) != 1 || summary.Errors[0].RecordID != "rec2" || summary.Errors[0].Stage != "fetch" {
		t.Fatalf("unexpected error detail: %+v", summary.Errors)
	}
}

func TestRunPersistsTimestampOnNullPrice(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	f := newRunnerFixture(t, 30, rec)
	f.market.quotes["AAA"] = &models.Quote{Ticker: "AAA", AsOf: time.Now()}

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Evaluated != 1 || summary.Errored != 0 || summary.Notified != 0 {
		t.Fatalf("null price should evaluate quietly, got %+v", summary)
	}

	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].LastCheckedAt == nil {
		t.Fatalf("last checked must be persisted")
	}
	if patches[0].LastPrice != nil || patches[0].Achieved != nil {
		t.Fatalf("only timestamp may move on null price: %+v", patches[0])
	}
}

func TestRunRecordsConditionErrors(t *testing.T) {
	rec := record("rec1", "AAA", "volume > 100")
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Errored != 1 || summary.Notified != 0 {
		t.Fatalf("broken condition must error without notifying, got %+v", summary)
	}
	if summary.Errors[0].Stage != "condition" {
		t.Fatalf("expected condition stage, got %+v", summary.Errors[0])
	}

	// Observed price still lands in the store.
	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 || patches[0].LastPrice == nil || *patches[0].LastPrice != 120 {
		t.Fatalf("price must persist despite condition error: %+v", patches)
	}
	if patches[0].Achieved != nil {
		t.Fatalf("achieved must never be set on condition error")
	}
}

func TestRunRespectsNotifyDisabled(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	rec.NotifyEnabled = false
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Notified != 0 || len(f.notify.sent()) != 0 {
		t.Fatalf("muted record must not notify")
	}

	// The achievement is still recorded.
	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 || patches[0].Achieved == nil || !*patches[0].Achieved {
		t.Fatalf("achieved flag must persist for muted records: %+v", patches)
	}
}

func TestRunRejectsConcurrentRuns(t *testing.T) {
	f := newRunnerFixture(t, 30)
	f.lock.held = true

	if _, err := f.runner.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunRecordsHistoryAndPrunes(t *testing.T) {
	f := newRunnerFixture(t, 1)
	for i := 0; i < 10; i++ {
		f.history.entries = append(f.history.entries, &models.ExecutionRecord{
			ID:        "old-" + string(rune('a'+i)),
			Job:       "watch",
			StartedAt: time.Now().Add(-time.Duration(i+1) * time.Hour),
		})
	}

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The new entry is recorded first, then pruning keeps only the newest.
	if summary.Pruned != 10 {
		t.Fatalf("expected 10 pruned, got %d", summary.Pruned)
	}
	entries, _ := f.history.List(context.Background(), "watch")
	if len(entries) != 1 {
		t.Fatalf("expected 1 surviving entry, got %d", len(entries))
	}
	if entries[0].Job != "watch" {
		t.Fatalf("surviving entry should be the new run, got %+v", entries[0])
	}
}

func TestRunRefreshesStaleDisplayName(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	rec.DisplayName = "Old Name"
	f := newRunnerFixture(t, 30, rec)
	px := 120.0
	f.market.quotes["AAA"] = &models.Quote{
		Ticker: "AAA",
		Name:   "Canonical New Name",
		Close:  &px,
		AsOf:   time.Now(),
	}

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	if patches[0].DisplayName == nil || *patches[0].DisplayName != "Canonical New Name" {
		t.Fatalf("stale display name not refreshed: %+v", patches[0])
	}
}

func TestRunNotifiesOnceDespitePersistFailure(t *testing.T) {
	rec := record("rec1", "AAA", "price > 100")
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)
	f.store.patchErr = errors.New("store down")

	summary, err := f.runner.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	// The alert still fires, exactly once, and the persist failure is
	// reported against the record.
	if got := f.notify.sent(); len(got) != 1 {
		t.Fatalf("expected exactly 1 notification, got %d", len(got))
	}
	if summary.Notified != 1 {
		t.Fatalf("expected notified=1, got %+v", summary)
	}
	if summary.Errored != 1 || len(summary.Errors) != 1 || summary.Errors[0].Stage != "persist" {
		t.Fatalf("persist failure not reported: %+v", summary)
	}
}

func TestRunPersistsFundamentals(t *testing.T) {
	rec := record("rec1", "AAA", "price < 100")
	f := newRunnerFixture(t, 30, rec)
	f.market.set("AAA", 120)
	yield, per := 0.012, 15.2
	f.market.funds["AAA"] = &models.Fundamentals{
		DividendYield: &yield,
		PriceEarnings: &per,
	}

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	patches := f.store.patchesFor("rec1")
	if len(patches) != 1 {
		t.Fatalf("expected 1 patch, got %d", len(patches))
	}
	p := patches[0]
	if p.DividendYield == nil || *p.DividendYield != yield {
		t.Fatalf("dividend yield not persisted: %+v", p)
	}
	if p.PriceEarnings == nil || *p.PriceEarnings != per {
		t.Fatalf("price/earnings not persisted: %+v", p)
	}
	if p.MarketCap != nil || p.DividendDate != nil || p.EarningsDate != nil {
		t.Fatalf("absent fundamentals must stay nil: %+v", p)
	}
}

func TestRunPublishesSummary(t *testing.T) {
	f := newRunnerFixture(t, 30, record("rec1", "AAA", "price < 100"))
	f.market.set("AAA", 120)

	if _, err := f.runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(f.events.summaries) != 1 {
		t.Fatalf("expected 1 summary event, got %d", len(f.events.summaries))
	}
	if got := f.runner.LastSummary(); got == nil || got.Total != 1 {
		t.Fatalf("last summary not retained: %+v", got)
	}
}
