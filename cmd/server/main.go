// Package main wires the scanner platform together and runs it until
// SIGINT/SIGTERM, following the teacher's cmd/server/main.go shape:
// load config, build logger, wire dependencies, start the HTTP server
// and background workers, then block on a shutdown signal and tear
// everything down in order.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/equiscan/internal/analytics"
	"github.com/aristath/equiscan/internal/bus"
	"github.com/aristath/equiscan/internal/config"
	"github.com/aristath/equiscan/internal/delta"
	"github.com/aristath/equiscan/internal/domain"
	"github.com/aristath/equiscan/internal/enrichment"
	"github.com/aristath/equiscan/internal/events"
	"github.com/aristath/equiscan/internal/health"
	"github.com/aristath/equiscan/internal/maintenance"
	"github.com/aristath/equiscan/internal/marketdata"
	"github.com/aristath/equiscan/internal/reconcile"
	"github.com/aristath/equiscan/internal/scanner"
	"github.com/aristath/equiscan/internal/server"
	"github.com/aristath/equiscan/internal/session"
	"github.com/aristath/equiscan/internal/warehouse"
	"github.com/aristath/equiscan/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Config{Level: "info", Pretty: true}).
			Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.DevMode})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting equiscan")

	b, err := bus.New(cfg.BusURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to bus")
	}
	defer b.Close()

	wh, err := warehouse.Connect(cfg.WarehouseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to warehouse")
	}

	eventBus := events.NewBus(log)
	vendor := marketdata.NewVendorClient(cfg.VendorBaseURL, cfg.VendorAPIKey, log)

	sessionDetector := session.NewDetector(vendor, eventBus, session.Boundaries{
		PreMarketStart: cfg.PreMarketStart,
		MarketOpen:     cfg.MarketOpen,
		MarketClose:    cfg.MarketClose,
		PostMarketEnd:  cfg.PostMarketEnd,
		TimeZone:       cfg.TimeZone,
	}, log)

	// Analytics Core
	vwapCache := analytics.NewVWAPCache()
	volumeTracker := analytics.NewVolumeWindowTracker()
	priceTracker := analytics.NewPriceWindowTracker()
	minuteBars := analytics.NewMinuteBarEngine(b, marketdata.StreamMinutes, "minute-bar-engine", "minute-bar-engine-1", log)
	rvolCalc := analytics.NewRVOLCalculator(b)
	atrCache := analytics.NewATRCache(b)
	anomalyDetector := analytics.NewTradeAnomalyDetector(b, eventBus, cfg.TradesBaselineDays, cfg.TradeZThreshold)

	stage := enrichment.NewStage(b, sessionDetector, enrichment.Engines{
		VWAP:       vwapCache,
		Volume:     volumeTracker,
		Price:      priceTracker,
		MinuteBars: minuteBars,
		RVOL:       rvolCalc,
		ATR:        atrCache,
		Anomaly:    anomalyDetector,
	}, 0, 0, log)
	eventBus.Subscribe(events.DayRolled, stage.HandleDayRolled)
	eventBus.Subscribe(events.DayRolled, func(*events.Event) {
		vwapCache.Reset()
		volumeTracker.Reset()
		priceTracker.Reset()
		minuteBars.Reset()
	})

	scanEngine := scanner.NewEngine(nil)
	deltaEngine := delta.NewEngine(b, log)
	reconciler := reconcile.NewReconciler(b, domain.AllCategories, cfg.VendorSubscriptionCap, sessionDetector, log)

	snapshotIngestor := marketdata.NewSnapshotIngestor(vendor, b, eventBus, cfg.ScanCadence, log)
	wsIngestor := marketdata.NewWebSocketIngestor(cfg.VendorWSURL, cfg.VendorAPIKey, b, eventBus, log)

	// Maintenance Orchestrator: nightly 13-task graph plus the cron
	// triggers that run it at cfg.MaintenanceHour:MaintenanceMinute and
	// the 03:00 ET cache-clear.
	tasks := maintenance.NewTasks(maintenance.Deps{
		Daily:         wh,
		VolumeSlots:   wh,
		Tickers:       wh,
		Vendor:        vendor,
		Bus:           b,
		ATR:           atrCache,
		RVOL:          rvolCalc,
		TradeBaseline: anomalyDetector,
		Events:        eventBus,
		Config: maintenance.TaskConfig{
			SlotMinutes:        cfg.SlotMinutes,
			ATRPeriod:          cfg.ATRPeriod,
			RVOLLookbackDays:   cfg.RVOLLookbackDays,
			TradesBaselineDays: cfg.TradesBaselineDays,
			MinVolumeSlotRows:  cfg.MinVolumeSlotRows,
			ParquetDir:         cfg.ParquetDir,
		},
		Log: log,
	})
	stateStore := maintenance.NewBusStateStore(b)
	orchestrator := maintenance.NewOrchestrator(tasks, stateStore, eventBus, log)

	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		loc = time.UTC
	}
	scheduler, err := maintenance.NewScheduler(orchestrator, loc, cfg.MaintenanceHour, cfg.MaintenanceMinute, func() bool {
		return cfg.HolidayModeFlag
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build maintenance scheduler")
	}

	checker := health.NewChecker(minuteBars, log)
	readiness := health.NewReadinessChecker(b, wh, wsIngestor)

	categoryNames := make([]string, len(domain.AllCategories))
	for i, c := range domain.AllCategories {
		categoryNames[i] = string(c)
	}

	srv := server.New(server.Config{
		Log:        log,
		Port:       cfg.Port,
		DevMode:    cfg.DevMode,
		Checker:    checker,
		Readiness:  readiness,
		EventBus:   eventBus,
		Bus:        b,
		Categories: categoryNames,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover runs any maintenance day that was missed while the process
	// was down, before today's live pipeline starts consuming stale
	// reference data.
	orchestrator.Recover(ctx, time.Now().In(loc), sessionDetector.IsTradingDay)

	scheduler.Start(ctx)

	go sessionDetector.Run(ctx)

	go snapshotIngestor.Run(ctx)

	go func() {
		if err := wsIngestor.Start(ctx); err != nil {
			log.Error().Err(err).Msg("websocket ingestor stopped")
		}
	}()

	go func() {
		if err := minuteBars.Run(ctx); err != nil {
			log.Error().Err(err).Msg("minute bar engine stopped")
		}
	}()

	go func() {
		if err := reconciler.Run(ctx); err != nil {
			log.Error().Err(err).Msg("subscription reconciler stopped")
		}
	}()

	go runFilterReloadLoop(ctx, wh, scanEngine, cfg.FilterReloadCadence, log)
	go runScanLoop(ctx, stage, scanEngine, deltaEngine, eventBus, cfg.ScanCadence, log)

	// Start blocks until ctx is cancelled, at which point it shuts the
	// HTTP server down gracefully and returns.
	srvDone := make(chan error, 1)
	go func() { srvDone <- srv.Start(ctx) }()

	log.Info().Int("port", cfg.Port).Msg("equiscan started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutdown signal received, stopping")
	cancel()

	select {
	case err := <-srvDone:
		if err != nil {
			log.Error().Err(err).Msg("http server shutdown error")
		}
	case <-time.After(15 * time.Second):
		log.Warn().Msg("http server shutdown timed out")
	}

	if err := wh.Close(); err != nil {
		log.Error().Err(err).Msg("error closing warehouse")
	}

	log.Info().Msg("equiscan stopped")
}

// runFilterReloadLoop periodically reloads the Scanner's active filter
// set from the Warehouse (spec §6 "filter reload cadence"), so an
// operator editing scanner_filters takes effect without a restart.
func runFilterReloadLoop(ctx context.Context, wh *warehouse.Warehouse, engine *scanner.Engine, cadence time.Duration, log zerolog.Logger) {
	if cadence <= 0 {
		cadence = 60 * time.Second
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	reload := func() {
		rows, err := wh.EnabledFilters(ctx)
		if err != nil {
			log.Error().Err(err).Msg("filter reload: warehouse read failed")
			return
		}
		filters, errs := scanner.LoadFilters(rows)
		for _, e := range errs {
			log.Warn().Err(e).Msg("filter reload: skipping malformed filter")
		}
		engine.Reload(filters)
		log.Debug().Int("count", len(filters)).Msg("filter set reloaded")
	}

	reload()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reload()
		}
	}
}

// runScanLoop is the scan cadence: enrich the latest snapshot, filter
// and categorise it, then hand each category's ranking to the Delta
// Engine for diffing and Bus publication (spec §4.4-§4.7).
func runScanLoop(ctx context.Context, stage *enrichment.Stage, engine *scanner.Engine, deltaEngine *delta.Engine, eventBus *events.Bus, cadence time.Duration, log zerolog.Logger) {
	if cadence <= 0 {
		cadence = 2 * time.Second
	}
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rows, err := stage.Tick(ctx)
			if err != nil {
				log.Error().Err(err).Msg("scan tick: enrichment failed")
				continue
			}

			currentSession, _ := sessionFromRows(rows)
			survivors := scanner.FilterAndScore(engine, rows, currentSession, domain.DefaultMaxEmittedRows)

			buckets := scanner.Categorize(survivors, domain.DefaultCategoryLimit)
			at := time.Now()
			for _, category := range domain.AllCategories {
				ranking := buckets[category]
				if _, err := deltaEngine.Apply(ctx, category, ranking, at); err != nil {
					log.Error().Err(err).Str("category", string(category)).Msg("scan tick: delta apply failed")
					continue
				}
				eventBus.Emit(events.CategoryUpdated, "scanner", map[string]interface{}{
					"category": string(category),
					"rows":     len(ranking),
				})
			}
		}
	}
}

// sessionFromRows reports the session the Scanner should filter
// against for this tick: the session of the first row, since every row
// in a single snapshot shares the same wall-clock session.
func sessionFromRows(rows []domain.EnrichedTicker) (domain.Session, bool) {
	if len(rows) == 0 {
		return domain.SessionClosed, false
	}
	return rows[0].Session, true
}
