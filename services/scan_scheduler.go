// services/scan_scheduler.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/maous26/GG2-sub000/config"
	"github.com/maous26/GG2-sub000/models"
	"github.com/maous26/GG2-sub000/utils"
)

var (
	// ErrScanInProgress means the trigger was dropped because its guard was held.
	ErrScanInProgress = errors.New("scan already in progress")
	// ErrUnknownTier means no catalog route has the requested tier.
	ErrUnknownTier = errors.New("unknown tier")
)

const (
	ExclusionTier   = "tier"
	ExclusionGlobal = "global"

	// minTriggerDelay bounds how soon a group timer re-fires when routes are
	// still due, e.g. after a dropped trigger.
	minTriggerDelay = time.Minute
)

// Searcher is the query client as seen by the scanner.
type Searcher interface {
	Lookup(ctx context.Context, route models.StrategicRoute, opts models.SearchOptions) SearchOutcome
}

// ScanRepository persists what a scan produces.
type ScanRepository interface {
	RecordPrices(ctx context.Context, points []models.PricePoint) error
	PriceHistory(ctx context.Context, origin, destination string, since time.Time) ([]float64, error)
	SaveDeal(ctx context.Context, d models.Deal) error
	SaveAlert(ctx context.Context, a models.Alert) error
	SaveScanRun(ctx context.Context, r models.ScanReport) error
}

// ScannerDeps are the collaborators of a Scanner. Budget is only used for reports.
type ScannerDeps struct {
	Catalog  *RouteCatalog
	Query    Searcher
	Detector *DealDetector
	Matcher  *UserMatcher
	Notifier Notifier
	Repo     ScanRepository
	Budget   *BudgetService
}

// ScannerOptions tunes a Scanner.
type ScannerOptions struct {
	Exclusion       string
	InterRouteDelay time.Duration
	ReportHourUTC   int
	LookaheadDays   int
	TripLengthDays  int
	Adults          int
	Cabin           string
	Currency        string
	HistoryWindow   time.Duration
	Frequency       FrequencyPolicy
	Sleep           utils.Sleeper
	Now             func() time.Time
}

// ScannerOptionsFromConfig maps the scanner section of the configuration.
func ScannerOptionsFromConfig(cfg config.ScannerConfig) ScannerOptions {
	return ScannerOptions{
		Exclusion:       cfg.Exclusion,
		InterRouteDelay: cfg.InterRouteDelay,
		ReportHourUTC:   cfg.ReportHourUTC,
		LookaheadDays:   cfg.LookaheadDays,
		TripLengthDays:  cfg.TripLengthDays,
		Adults:          cfg.Adults,
		Cabin:           cfg.Cabin,
		Currency:        cfg.Currency,
		HistoryWindow:   time.Duration(cfg.HistoryWindowDays) * 24 * time.Hour,
		Frequency:       NewFrequencyPolicy(cfg),
	}
}

// Scanner owns the scan triggers and runs tier scans. Construct one per
// process and hand it to whatever needs to trigger scans.
type Scanner struct {
	deps  ScannerDeps
	opts  ScannerOptions
	stats *ScanStats

	guardMu sync.Mutex
	guards  map[int]*semaphore.Weighted
	global  *semaphore.Weighted

	startOnce sync.Once
	loops     sync.WaitGroup

	tracer trace.Tracer
	logger *slog.Logger
}

func NewScanner(deps ScannerDeps, opts ScannerOptions, logger *slog.Logger) (*Scanner, error) {
	switch {
	case deps.Catalog == nil:
		return nil, errors.New("scanner: catalog is required")
	case deps.Query == nil:
		return nil, errors.New("scanner: query client is required")
	case deps.Detector == nil:
		return nil, errors.New("scanner: detector is required")
	case deps.Matcher == nil:
		return nil, errors.New("scanner: matcher is required")
	case deps.Notifier == nil:
		return nil, errors.New("scanner: notifier is required")
	case deps.Repo == nil:
		return nil, errors.New("scanner: repository is required")
	}
	if opts.Exclusion == "" {
		opts.Exclusion = ExclusionTier
	}
	if opts.Exclusion != ExclusionTier && opts.Exclusion != ExclusionGlobal {
		return nil, fmt.Errorf("scanner: unknown exclusion mode %q", opts.Exclusion)
	}
	if opts.Sleep == nil {
		opts.Sleep = utils.SleepContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Adults <= 0 {
		opts.Adults = 1
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 30 * 24 * time.Hour
	}

	s := &Scanner{
		deps:   deps,
		opts:   opts,
		stats:  NewScanStats(),
		guards: map[int]*semaphore.Weighted{},
		tracer: otel.Tracer("flightdeals/scanner"),
		logger: utils.OrNop(logger).With("component", "scanner", "exclusion", opts.Exclusion),
	}
	if opts.Exclusion == ExclusionGlobal {
		s.global = semaphore.NewWeighted(1)
	}
	return s, nil
}

// Stats returns a snapshot of the run statistics.
func (s *Scanner) Stats() models.ScanRunStats { return s.stats.Snapshot() }

// Catalog is the route catalog the scanner works from.
func (s *Scanner) Catalog() *RouteCatalog { return s.deps.Catalog }

func (s *Scanner) guardFor(tier int) *semaphore.Weighted {
	if s.global != nil {
		return s.global
	}
	s.guardMu.Lock()
	defer s.guardMu.Unlock()
	g, ok := s.guards[tier]
	if !ok {
		g = semaphore.NewWeighted(1)
		s.guards[tier] = g
	}
	return g
}

// StartScheduledScanning starts one timer loop per (tier, frequency) group
// plus the daily report loop. Loops stop when ctx is cancelled. Only the first
// call has an effect; it reports whether this call started the loops.
func (s *Scanner) StartScheduledScanning(ctx context.Context) bool {
	started := false
	s.startOnce.Do(func() {
		started = true
		groups := s.deps.Catalog.Groups()
		for _, g := range groups {
			s.loops.Add(1)
			go s.runGroup(ctx, g)
		}
		s.loops.Add(1)
		go s.runReports(ctx)
		s.logger.Info("scheduled scanning started", "groups", len(groups), "routes", s.deps.Catalog.Len())
	})
	return started
}

// Wait blocks until every loop started by StartScheduledScanning has returned.
func (s *Scanner) Wait() { s.loops.Wait() }

func (s *Scanner) runGroup(ctx context.Context, g TierGroup) {
	defer s.loops.Done()
	routes := s.deps.Catalog.RoutesInGroup(g)
	logger := s.logger.With("tier", g.Tier, "frequency_hours", g.FrequencyHours)

	timer := time.NewTimer(s.firstDelay(routes, s.opts.Now()))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("scan trigger stopped")
			return
		case <-timer.C:
		}

		due := s.dueRoutes(routes, s.opts.Now())
		if len(due) > 0 {
			if _, err := s.runScan(ctx, g.Tier, due, false); err != nil && !errors.Is(err, ErrScanInProgress) {
				logger.Error("scheduled scan failed", "error", err)
			}
		}
		timer.Reset(s.nextDelay(routes, s.opts.Now()))
	}
}

func (s *Scanner) firstDelay(routes []models.StrategicRoute, now time.Time) time.Duration {
	var d time.Duration
	for i, r := range routes {
		iv := s.opts.Frequency.EffectiveInterval(r, now)
		if i == 0 || iv < d {
			d = iv
		}
	}
	return max(s.capAtRuleChange(routes, now, d), minTriggerDelay)
}

// nextDelay is the time until the earliest route of the group becomes due.
func (s *Scanner) nextDelay(routes []models.StrategicRoute, now time.Time) time.Duration {
	var d time.Duration
	for i, r := range routes {
		wait := time.Duration(0)
		if last, ok := s.stats.LastRouteScan(r.Key()); ok {
			wait = last.Add(s.opts.Frequency.EffectiveInterval(r, now)).Sub(now)
		}
		if i == 0 || wait < d {
			d = wait
		}
	}
	return max(s.capAtRuleChange(routes, now, d), minTriggerDelay)
}

// capAtRuleChange shortens d to end when a frequency rule starts, if that
// happens first and the rule shortens the interval of one of routes.
func (s *Scanner) capAtRuleChange(routes []models.StrategicRoute, now time.Time, d time.Duration) time.Duration {
	at, ok := s.opts.Frequency.NextChange(now)
	if !ok || at.Sub(now) >= d {
		return d
	}
	for _, r := range routes {
		if s.opts.Frequency.EffectiveInterval(r, at) < s.opts.Frequency.EffectiveInterval(r, now) {
			return at.Sub(now)
		}
	}
	return d
}

// dueRoutes keeps the routes whose effective frequency has elapsed.
func (s *Scanner) dueRoutes(routes []models.StrategicRoute, now time.Time) []models.StrategicRoute {
	var due []models.StrategicRoute
	for _, r := range routes {
		last, ok := s.stats.LastRouteScan(r.Key())
		if !ok || !now.Before(last.Add(s.opts.Frequency.EffectiveInterval(r, now))) {
			due = append(due, r)
		}
	}
	return due
}

func (s *Scanner) runReports(ctx context.Context) {
	defer s.loops.Done()
	for {
		timer := time.NewTimer(untilHour(s.opts.Now(), s.opts.ReportHourUTC))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Report(ctx)
		}
	}
}

// untilHour is the wait until the next occurrence of hour:00 UTC.
func untilHour(now time.Time, hour int) time.Duration {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next.Sub(now)
}

// historyPruner is implemented by repositories that can drop old price history.
type historyPruner interface {
	PrunePriceHistory(ctx context.Context, before time.Time) (int64, error)
}

// Report logs the run statistics and the budget usage, then prunes price
// history older than twice the detection window.
func (s *Scanner) Report(ctx context.Context) {
	st := s.stats.Snapshot()
	attrs := []any{
		"total_scans", st.TotalScans,
		"deals_found", st.DealsFound,
		"alerts_sent", st.AlertsSent,
		"api_calls_used", st.APICallsUsed,
	}
	if s.deps.Budget != nil {
		usage, err := s.deps.Budget.Usage(ctx)
		if err != nil {
			s.logger.Error("failed to read budget usage", "error", err)
		} else {
			attrs = append(attrs,
				"month", usage.MonthKey,
				"reserved_month", usage.ReservedMonth,
				"monthly_cap", usage.MonthlyCap,
				"reserved_day", usage.ReservedDay,
				"daily_cap", usage.DailyCap)
		}
	}
	s.logger.Info("daily scan report", attrs...)

	if p, ok := s.deps.Repo.(historyPruner); ok {
		before := s.opts.Now().UTC().Add(-2 * s.opts.HistoryWindow)
		n, err := p.PrunePriceHistory(ctx, before)
		if err != nil {
			s.logger.Warn("failed to prune price history", "error", err)
		} else if n > 0 {
			s.logger.Info("price history pruned", "rows", n, "before", before)
		}
	}
}

// ForceScan scans tier now, or every tier in order when tier is nil, ignoring
// due-ness. maxRoutes > 0 truncates each tier to its highest-priority routes.
// A tier whose guard is held is skipped and reported with Skipped set; the
// returned error is then ErrScanInProgress.
func (s *Scanner) ForceScan(ctx context.Context, tier *int, maxRoutes int) ([]models.ScanReport, error) {
	tiers := s.deps.Catalog.Tiers()
	if tier != nil {
		found := false
		for _, t := range tiers {
			if t == *tier {
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %d", ErrUnknownTier, *tier)
		}
		tiers = []int{*tier}
	}

	var reports []models.ScanReport
	var errs []error
	skipped := false
	for _, t := range tiers {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		report, err := s.runScan(ctx, t, s.deps.Catalog.RoutesForTier(t, maxRoutes), true)
		reports = append(reports, report)
		if errors.Is(err, ErrScanInProgress) {
			skipped = true
			continue
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	if skipped {
		errs = append(errs, ErrScanInProgress)
	}
	return reports, errors.Join(errs...)
}

// runScan is the body of every trigger. It drops the trigger when the tier's
// guard is held, and always releases the guard, whatever happens inside.
func (s *Scanner) runScan(ctx context.Context, tier int, routes []models.StrategicRoute, forced bool) (report models.ScanReport, err error) {
	trigger := "scheduled"
	if forced {
		trigger = "forced"
	}
	tierLabel := strconv.Itoa(tier)
	logger := s.logger.With("tier", tier, "trigger", trigger)

	guard := s.guardFor(tier)
	if !guard.TryAcquire(1) {
		scansSkippedTotal.WithLabelValues(tierLabel).Inc()
		logger.Warn("scan trigger dropped, scan already in progress")
		return models.ScanReport{Tier: tier, Forced: forced, Skipped: true}, ErrScanInProgress
	}
	defer guard.Release(1)

	report = models.ScanReport{ID: uuid.NewString(), Tier: tier, Forced: forced, StartedAt: s.opts.Now().UTC()}
	ctx, span := s.tracer.Start(ctx, "scanner.tier", trace.WithAttributes(
		attribute.Int("tier", tier),
		attribute.Bool("forced", forced),
		attribute.Int("routes", len(routes)),
	))
	logger.Info("tier scan started", "routes", len(routes))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tier %d scan aborted: %v", tier, r)
			logger.Error("tier scan aborted", "panic", r)
		}
		if err != nil {
			report.Error = err.Error()
			span.RecordError(err)
		}
		report.FinishedAt = s.opts.Now().UTC()
		s.stats.recordRun(report)

		scansTotal.WithLabelValues(tierLabel, trigger).Inc()
		scanDuration.WithLabelValues(tierLabel).Observe(report.FinishedAt.Sub(report.StartedAt).Seconds())
		dealsFoundTotal.WithLabelValues(tierLabel).Add(float64(report.DealsFound))

		if perr := s.deps.Repo.SaveScanRun(context.WithoutCancel(ctx), report); perr != nil {
			logger.Warn("failed to persist scan run", "scan_id", report.ID, "error", perr)
		}
		span.SetAttributes(
			attribute.Int("deals_found", report.DealsFound),
			attribute.Int("api_calls", report.APICalls),
		)
		span.End()
		logger.Info("tier scan finished",
			"scan_id", report.ID,
			"routes_scanned", report.RoutesScanned,
			"routes_failed", report.RoutesFailed,
			"deals_found", report.DealsFound,
			"alerts_sent", report.AlertsSent,
			"api_calls", report.APICalls,
			"duration", report.FinishedAt.Sub(report.StartedAt).String())
	}()

	for i, route := range routes {
		if i > 0 && s.opts.InterRouteDelay > 0 {
			if serr := s.opts.Sleep(ctx, s.opts.InterRouteDelay); serr != nil {
				return report, serr
			}
		}
		if cerr := ctx.Err(); cerr != nil {
			return report, cerr
		}

		res, rerr := s.scanRoute(ctx, route)
		report.APICalls += res.calls
		report.DealsFound += res.deals
		report.AlertsSent += res.alerts
		if rerr != nil {
			report.RoutesFailed++
			routesScannedTotal.WithLabelValues("failed").Inc()
			logger.Error("route scan failed", "route", route.Key(), "error", rerr)
			continue
		}
		report.RoutesScanned++
		routesScannedTotal.WithLabelValues("ok").Inc()
	}
	return report, nil
}

type routeResult struct {
	calls  int
	deals  int
	alerts int
}

// searchOptions derives the query dates from the lookahead settings.
func (s *Scanner) searchOptions(now time.Time) models.SearchOptions {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	opts := models.SearchOptions{
		DepartureDate: day.AddDate(0, 0, s.opts.LookaheadDays),
		Adults:        s.opts.Adults,
		Cabin:         s.opts.Cabin,
		Currency:      s.opts.Currency,
	}
	if s.opts.TripLengthDays > 0 {
		ret := opts.DepartureDate.AddDate(0, 0, s.opts.TripLengthDays)
		opts.ReturnDate = &ret
	}
	return opts
}

// scanRoute runs query, detection, matching and dispatch for one route.
// A panic is turned into an error so the tier carries on.
func (s *Scanner) scanRoute(ctx context.Context, route models.StrategicRoute) (res routeResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic scanning %s: %v", route.Key(), r)
		}
	}()

	now := s.opts.Now().UTC()
	out := s.deps.Query.Lookup(ctx, route, s.searchOptions(now))
	res.calls = out.CallsUsed
	s.stats.markRoute(route.Key(), now)

	if out.Err != nil && !errors.Is(out.Err, ErrBudgetExhausted) {
		return res, fmt.Errorf("query %s: %w", route.Key(), out.Err)
	}
	if len(out.Itineraries) == 0 {
		return res, nil
	}

	if !out.FromCache {
		points := make([]models.PricePoint, 0, len(out.Itineraries))
		for _, it := range out.Itineraries {
			points = append(points, models.PricePoint{
				Origin:        route.Origin,
				Destination:   route.Destination,
				DepartureDate: it.DepartureDate,
				Price:         it.Price,
				Currency:      it.Currency,
				Airline:       it.Airline,
				ObservedAt:    now,
			})
		}
		if perr := s.deps.Repo.RecordPrices(ctx, points); perr != nil {
			s.logger.Warn("failed to record price history", "route", route.Key(), "error", perr)
		}
	}

	history, herr := s.deps.Repo.PriceHistory(ctx, route.Origin, route.Destination, now.Add(-s.opts.HistoryWindow))
	if herr != nil {
		s.logger.Warn("failed to read price history", "route", route.Key(), "error", herr)
		history = nil
	}

	for _, deal := range s.deps.Detector.Detect(route, out.Itineraries, history) {
		if derr := s.deps.Repo.SaveDeal(ctx, deal); derr != nil {
			s.logger.Error("failed to save deal", "route", route.Key(), "deal_id", deal.ID, "error", derr)
			continue
		}
		res.deals++
		s.logger.Info("deal detected",
			"route", route.Key(),
			"deal_id", deal.ID,
			"price", deal.CurrentPrice,
			"baseline", deal.OriginalPriceEstimate,
			"discount", deal.DiscountPercentage,
			"threshold", deal.Threshold,
			"outlier", deal.Outlier)
		if s.dispatch(ctx, deal, route) {
			res.alerts++
		}
	}
	return res, nil
}

// dispatch matches recipients, notifies them and records the alert. Nothing
// here can undo the already saved deal. It reports whether the alert was sent.
func (s *Scanner) dispatch(ctx context.Context, deal models.Deal, route models.StrategicRoute) bool {
	alert := models.Alert{ID: uuid.NewString(), DealID: deal.ID, CreatedAt: s.opts.Now().UTC()}

	users, err := s.deps.Matcher.Match(ctx, deal, route)
	switch {
	case err != nil:
		alert.Status = models.AlertStatusFailed
		alert.Error = err.Error()
	case len(users) == 0:
		alert.Status = models.AlertStatusNoRecipients
	default:
		notifications := make([]models.Notification, len(users))
		for i, u := range users {
			notifications[i] = models.Notification{Recipient: u, Deal: deal}
			alert.Recipients = append(alert.Recipients, u.ID)
		}
		if nerr := s.deps.Notifier.Notify(ctx, notifications); nerr != nil {
			alert.Status = models.AlertStatusFailed
			alert.Error = nerr.Error()
		} else {
			alert.Status = models.AlertStatusSent
		}
	}

	if alert.Status == models.AlertStatusFailed {
		s.logger.Error("alert dispatch failed", "deal_id", deal.ID, "route", route.Key(), "error", alert.Error)
	}
	if err := s.deps.Repo.SaveAlert(ctx, alert); err != nil {
		s.logger.Error("failed to save alert", "deal_id", deal.ID, "alert_id", alert.ID, "error", err)
	}
	alertsSentTotal.WithLabelValues(alert.Status).Inc()
	return alert.Status == models.AlertStatusSent
}
