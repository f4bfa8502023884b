package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"paygo-cloud/internal/audit"
	"paygo-cloud/internal/auth"
	"paygo-cloud/internal/eventing"
	eventingrepo "paygo-cloud/internal/eventing/infrastructure/postgres"
	fleetapp "paygo-cloud/internal/fleetstats/application"
	fleetmemory "paygo-cloud/internal/fleetstats/infrastructure/memory"
	fleetpostgres "paygo-cloud/internal/fleetstats/infrastructure/postgres"
	fleetinterfaces "paygo-cloud/internal/fleetstats/interfaces"
	historyapp "paygo-cloud/internal/history/application"
	history "paygo-cloud/internal/history/domain"
	historymemory "paygo-cloud/internal/history/infrastructure/memory"
	historypostgres "paygo-cloud/internal/history/infrastructure/postgres"
	historyinterfaces "paygo-cloud/internal/history/interfaces"
	historymetrics "paygo-cloud/internal/history/metrics"
	historynotify "paygo-cloud/internal/history/notify"
	"paygo-cloud/internal/observability/metrics"
	translogevents "paygo-cloud/internal/translog/application/events"
	translog "paygo-cloud/internal/translog/domain"
	"paygo-cloud/internal/translog/infrastructure/csvdir"
	translogmemory "paygo-cloud/internal/translog/infrastructure/memory"
	translogpostgres "paygo-cloud/internal/translog/infrastructure/postgres"
	"paygo-cloud/internal/translog/infrastructure/workbook"
	transloginterfaces "paygo-cloud/internal/translog/interfaces"
	unitsapp "paygo-cloud/internal/units/application"
	units "paygo-cloud/internal/units/domain"
	unitsmemory "paygo-cloud/internal/units/infrastructure/memory"
	unitspostgres "paygo-cloud/internal/units/infrastructure/postgres"
	unitsinterfaces "paygo-cloud/internal/units/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "paygo ", log.LstdFlags|log.Lmicroseconds)

	historyCfg, err := historyapp.LoadConfig()
	if err != nil {
		logger.Fatalf("history config error: %v", err)
	}

	mapping := translog.DefaultMappingTable()
	if historyCfg.WorkbookPath != "" {
		mapping, err = workbook.Load(historyCfg.WorkbookPath)
		if err != nil {
			logger.Fatalf("mapping workbook error: %v", err)
		}
	}

	var db *sql.DB
	if cfg.DatabaseURL != "" {
		db, err = sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			logger.Fatalf("db open error: %v", err)
		}
		defer db.Close()
		if err := db.Ping(); err != nil {
			logger.Fatalf("db ping error: %v", err)
		}
	} else {
		logger.Printf("no DATABASE_URL configured, using in-memory stores")
	}

	metrics.Init(db, logger)

	var (
		historyRepo  history.Repository
		jobStore     historyapp.JobStore
		translogRepo translog.Repository
		unitsRepo    units.Repository
		auditLogger  audit.Logger
	)
	if db != nil {
		historyRepo = historypostgres.NewRepository(db)
		jobStore = historypostgres.NewJobStore(db)
		translogRepo = translogpostgres.NewEventRepository(db)
		unitsRepo = unitspostgres.NewRepository(db)
		auditLogger = audit.NewRepository(db)
	} else {
		historyRepo = historymemory.NewRepository()
		jobStore = historymemory.NewJobStore()
		translogRepo = translogmemory.NewEventRepository()
		unitsRepo = unitsmemory.NewRepository()
	}

	unitsService, err := unitsapp.NewService(unitsRepo, logger)
	if err != nil {
		logger.Fatalf("units service error: %v", err)
	}

	var fleetCounter fleetapp.Counter
	if db != nil {
		fleetCounter = fleetpostgres.NewCounter(db)
	} else {
		fleetCounter, err = fleetapp.NewRepositoryCounter(historyRepo)
		if err != nil {
			logger.Fatalf("fleet counter error: %v", err)
		}
	}
	fleetService, err := fleetapp.NewService(fleetCounter, fleetmemory.NewSummaryStore(), logger, nil)
	if err != nil {
		logger.Fatalf("fleet service error: %v", err)
	}
	fleetRebuiltHandler, err := fleetinterfaces.NewTableRebuiltHandler(fleetService)
	if err != nil {
		logger.Fatalf("fleet consumer error: %v", err)
	}
	unitsSeenHandler, err := unitsinterfaces.NewTransactionsReceivedHandler(unitsService)
	if err != nil {
		logger.Fatalf("units consumer error: %v", err)
	}

	var sources []translog.FeedSource
	if historyCfg.FeedDir != "" {
		if _, statErr := os.Stat(historyCfg.FeedDir); statErr == nil {
			loader, err := csvdir.NewLoader(csvdir.Config{
				Dir:           historyCfg.FeedDir,
				Mapping:       mapping,
				IncludeFailed: historyCfg.IncludeFailed,
				Logger:        logger,
			})
			if err != nil {
				logger.Fatalf("feed loader error: %v", err)
			}
			sources = append(sources, loader)
		} else {
			logger.Printf("feed dir %s not readable, building from ingested transactions only", historyCfg.FeedDir)
		}
	}
	sources = append(sources, translogRepo)
	feed := registeringFeed{
		src:    translog.NewMergedSource(sources...),
		units:  unitsService,
		logger: logger,
	}

	baseBus := eventing.NewInMemoryBus()
	var (
		dispatcher     *eventing.Dispatcher
		publisher      *eventing.Publisher
		processedStore eventing.ProcessedStore
		tablePublisher historyapp.TablePublisher
	)
	if db != nil {
		registry := eventing.NewRegistry()
		registry.Register(historyapp.TableRebuilt{})
		registry.Register(translogevents.TransactionsReceived{})
		outboxStore := eventingrepo.NewOutboxStore(db)
		processedStore = eventingrepo.NewProcessedStore(db)
		dlqStore := eventingrepo.NewDLQStore(db)
		dispatcher = eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
		publisher = eventing.NewPublisher(outboxStore, dispatcher, baseBus)
		tablePublisher = historyinterfaces.NewOutboxPublisher(publisher)
	} else {
		// Without an outbox the rebuild event cannot reach the bus, so the
		// fleet summary refresh is wired into the publisher directly.
		tablePublisher = fanoutTablePublisher{
			historyinterfaces.NewLoggingPublisher(logger),
			tableRebuiltFunc(fleetRebuiltHandler.Handle),
		}
	}

	eventing.Subscribe(baseBus, eventing.EventTypeOf[historyapp.TableRebuilt](), "fleet.summary", func(ctx context.Context, event any) error {
		evt, ok := event.(historyapp.TableRebuilt)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		return fleetRebuiltHandler.Handle(ctx, evt)
	}, processedStore)
	eventing.Subscribe(baseBus, eventing.EventTypeOf[translogevents.TransactionsReceived](), "units.registry", func(ctx context.Context, event any) error {
		evt, ok := event.(translogevents.TransactionsReceived)
		if !ok {
			return eventing.ErrInvalidEventType
		}
		return unitsSeenHandler.Handle(ctx, evt)
	}, processedStore)

	sim := history.NewSimulator(history.SimulatorConfig{
		UnlockCode:    mapping.UnlockCode,
		IncludeTopUps: historyCfg.IncludeTopUps,
	})
	builder, err := historyapp.NewBuilder(sim, historyCfg.Workers, historyCfg.ProgressEvery, logger)
	if err != nil {
		logger.Fatalf("builder error: %v", err)
	}
	buildMetrics := historymetrics.New()

	rebuildService, err := historyapp.NewRebuildService(historyCfg, feed, builder, historyRepo, unitsService, tablePublisher, buildMetrics, logger, nil)
	if err != nil {
		logger.Fatalf("rebuild service error: %v", err)
	}
	appendService, err := historyapp.NewAppendService(feed, sim, historyRepo, unitsService, tablePublisher, buildMetrics, logger, nil)
	if err != nil {
		logger.Fatalf("append service error: %v", err)
	}

	notifiers := []historynotify.Notifier{historynotify.NewLogNotifier(logger)}
	if historyCfg.WebhookURL != "" {
		notifiers = append(notifiers, historynotify.NewWebhookNotifier(historyCfg.WebhookURL))
	}
	runner, err := historyapp.NewRunner(rebuildService, appendService, jobStore, historynotify.NewMultiNotifier(notifiers...), buildMetrics, logger, nil)
	if err != nil {
		logger.Fatalf("runner error: %v", err)
	}

	ctx := context.Background()
	scheduler := historyapp.NewScheduler(runner, historyCfg.Schedule.Mode, historyCfg.Schedule.DailyAt, logger)
	go scheduler.Start(ctx)
	if dispatcher != nil {
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if _, err := dispatcher.Dispatch(ctx, 50); err != nil {
					logger.Printf("outbox dispatch error: %v", err)
				}
			}
		}()
	}

	historyHandler, err := historyinterfaces.NewHandler(historyRepo, runner, jobStore, auditLogger)
	if err != nil {
		logger.Fatalf("history handler error: %v", err)
	}
	ingestHandler, err := transloginterfaces.NewIngestHandler(translogRepo, mapping, publisher, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}
	fleetHandler, err := fleetinterfaces.NewSummaryHandler(fleetService, logger)
	if err != nil {
		logger.Fatalf("fleet handler error: %v", err)
	}
	unitsHandler, err := unitsinterfaces.NewHandler(unitsService, auditLogger)
	if err != nil {
		logger.Fatalf("units handler error: %v", err)
	}

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/api/v1/translog/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/translog/transactions", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/history/", historyHandler)
	mux.Handle("/api/v1/fleet/summary", fleetHandler)
	mux.Handle("/api/v1/units", unitsHandler)
	mux.Handle("/api/v1/units/", unitsHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL       string
	HTTPAddr          string
	JWTSecret         string
	IngestSecret      string
	IngestSkewSeconds int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:       getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:          getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:         getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:      getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds: getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// ---- Adapters ----

// fanoutTablePublisher delivers a rebuild event to several publishers.
type fanoutTablePublisher []historyapp.TablePublisher

func (f fanoutTablePublisher) PublishTableRebuilt(ctx context.Context, event historyapp.TableRebuilt) error {
	for _, pub := range f {
		if pub == nil {
			continue
		}
		if err := pub.PublishTableRebuilt(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// tableRebuiltFunc adapts a function to the table publisher port.
type tableRebuiltFunc func(ctx context.Context, event historyapp.TableRebuilt) error

func (f tableRebuiltFunc) PublishTableRebuilt(ctx context.Context, event historyapp.TableRebuilt) error {
	return f(ctx, event)
}

// registeringFeed records every unit the feed mentions in the registry
// before handing the events to the build.
type registeringFeed struct {
	src    translog.FeedSource
	units  *unitsapp.Service
	logger *log.Logger
}

func (f registeringFeed) Load(ctx context.Context) ([]translog.TransactionEvent, error) {
	events, err := f.src.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(events))
	ids := make([]string, 0, len(events))
	for _, ev := range events {
		if _, ok := seen[ev.UnitID]; ok {
			continue
		}
		seen[ev.UnitID] = struct{}{}
		ids = append(ids, ev.UnitID)
	}
	if _, err := f.units.RegisterSeen(ctx, ids); err != nil {
		f.logger.Printf("unit registry sync error: %v", err)
	}
	return events, nil
}
