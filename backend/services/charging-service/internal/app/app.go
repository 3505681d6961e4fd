package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	libdb "evcharge/backend/libs/db"
	"evcharge/backend/libs/idgen"
	libredis "evcharge/backend/libs/redis"
	"evcharge/backend/services/charging-service/internal/config"
	httpserver "evcharge/backend/services/charging-service/internal/http"
	"evcharge/backend/services/charging-service/internal/http/handlers"
	"evcharge/backend/services/charging-service/internal/http/middleware"
	"evcharge/backend/services/charging-service/internal/invoice"
	"evcharge/backend/services/charging-service/internal/models"
	"evcharge/backend/services/charging-service/internal/payment"
	"evcharge/backend/services/charging-service/internal/repository"
	"evcharge/backend/services/charging-service/internal/service"
	"evcharge/backend/services/charging-service/internal/telemetry"
	"evcharge/backend/services/charging-service/internal/ws"
)

// App wires charging-service dependencies.
type App struct {
	server      *httpserver.Server
	router      http.Handler
	ticker      *service.Ticker
	sessions    *service.SessionsService
	db          *sql.DB
	redisClient *redis.Client
	publisher   *telemetry.Publisher
	logger      *zap.Logger
}

// New constructs the application graph. Redis, Postgres and MQTT are only contacted when
// configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	ids, err := idgen.New(cfg.Charging.NodeID)
	if err != nil {
		return nil, err
	}

	var history repository.HistoryStore = repository.NewMemoryHistory(cfg.Redis.HistoryLimit)
	if cfg.Redis.Addr != "" {
		a.redisClient, err = libredis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		history = repository.NewRedisHistory(a.redisClient, cfg.Redis.HistoryLimit)
		logger.Info("session history stored in redis", zap.String("addr", cfg.Redis.Addr))
	}

	var (
		archive       *repository.ArchiveRepository
		sessionSink   service.SessionArchive
		txSink        service.TransactionArchive
		archiveReader handlers.SessionArchiveReader
	)
	if cfg.Database.DSN != "" {
		a.db, err = libdb.NewPostgresDB(ctx, cfg.Database.DSN, libdb.PoolOptions{
			MaxOpenConns: cfg.Database.MaxOpenConns,
			ConnLifetime: cfg.Database.ConnLifetime,
		})
		if err != nil {
			return nil, fmt.Errorf("app: postgres: %w", err)
		}
		archive = repository.NewArchiveRepository(a.db)
		if err := archive.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("app: archive schema: %w", err)
		}
		sessionSink, txSink, archiveReader = archive, archive, archive
		logger.Info("postgres archive enabled")
	}

	a.publisher, err = telemetry.NewPublisher(telemetry.Config{
		Enabled:     cfg.MQTT.Enabled,
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		TopicPrefix: cfg.MQTT.TopicPrefix,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("app: mqtt: %w", err)
	}

	hasher := service.NewCredentialHasher(cfg.Auth.BcryptCost)
	seeded, err := seedUsers(cfg.Users, hasher)
	if err != nil {
		return nil, err
	}
	users := service.NewUserDirectory(seeded)

	gateway := payment.NewProcessor(payment.NewSimulator(cfg.Simulation.PaymentFailureRate, cfg.Simulation.PaymentDelay, nil), nil)
	wallet := service.NewWalletService(gateway, txSink, ids, logger, nil)
	for _, u := range seeded {
		wallet.Open(u.ID, u.InitialBalance)
	}

	stations := service.NewStationState(cfg.Stations, time.Now())
	a.sessions = service.NewSessionsService(service.SessionsConfig{
		Tariff:                  cfg.Tariff(),
		Location:                loc,
		DefaultBattery:          cfg.Charging.DefaultBattery,
		DefaultTarget:           cfg.Charging.DefaultTarget,
		BatteryCapacityKWh:      cfg.Charging.BatteryCapacityKWh,
		AllowConcurrentStations: cfg.Charging.AllowConcurrentStations,
		RetainFinished:          cfg.Charging.RetainFinished,
	}, service.SessionsDeps{
		Stations: stations,
		Users:    users,
		Wallet:   wallet,
		History:  history,
		Archive:  sessionSink,
		Invoices: invoice.NewGenerator(nil),
		Notifier: a.publisher,
		IDs:      ids,
	}, logger)

	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.JWTExpiration())
	auth := service.NewAuthService(users, hasher, tokens, logger)
	mailer := invoice.NewMailer(payment.NewSimulator(cfg.Simulation.EmailFailureRate, cfg.Simulation.EmailDelay, nil), logger)
	hub := ws.NewHub(a.sessions, cfg.HTTP.WriteTimeout, logger)

	observers := []service.TickObserver{hub.Broadcast}
	if cfg.MQTT.Enabled {
		observers = append(observers, publishLiveStations(stations, a.publisher))
	}
	a.ticker = service.NewTicker(a.sessions, cfg.TickInterval(), logger, observers...)

	clock := handlers.Clock(time.Now)
	a.router = httpserver.NewRouter(httpserver.Routes{
		Health:         handlers.NewHealthHandler(a.healthChecks()),
		Login:          handlers.NewLoginHandler(auth, logger),
		Status:         handlers.NewStatusHandler(a.sessions, clock),
		StatusStream:   handlers.NewStatusStreamHandler(hub),
		StartCharging:  handlers.NewStartHandler(a.sessions, clock, logger),
		StopCharging:   handlers.NewStopHandler(a.sessions, clock, logger),
		PauseCharging:  handlers.NewPauseHandler(a.sessions, clock, logger),
		ResumeCharging: handlers.NewResumeHandler(a.sessions, clock, logger),
		Stations:       handlers.NewStationsHandler(a.sessions),
		Station:        handlers.NewStationHandler(a.sessions, logger),
		Pricing:        handlers.NewPricingHandler(a.sessions, clock),
		History:        handlers.NewHistoryHandler(a.sessions, archiveReader, logger),
		HistoryExport:  handlers.NewHistoryExportHandler(a.sessions, logger),
		Wallet:         handlers.NewWalletHandler(wallet, logger),
		TopUp:          handlers.NewTopUpHandler(wallet, logger),
		Transactions:   handlers.NewTransactionsHandler(wallet, logger),
		WalletOptions:  handlers.NewWalletOptionsHandler(),
		Invoice:        handlers.NewInvoiceHandler(a.sessions, cfg.Company, clock, logger),
		InvoiceEmail:   handlers.NewInvoiceEmailHandler(a.sessions, users, mailer, clock, logger),
		AdminOverview:  handlers.NewAdminOverviewHandler(a.sessions, clock),
		StationStatus:  handlers.NewStationStatusHandler(a.sessions, clock, logger),
		Refund:         handlers.NewRefundHandler(wallet, logger),
	}, middleware.AuthMiddleware(tokens))

	a.server = httpserver.NewServer(cfg.HTTPAddress(), a.router, httpserver.Options{
		ReadTimeout:     cfg.HTTP.ReadTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		AllowedOrigins:  cfg.HTTP.AllowedOrigins,
	}, logger)

	logger.Info("charging service configured",
		zap.Int("stations", len(cfg.Stations)),
		zap.Int("users", len(seeded)),
		zap.Float64("base_rate", cfg.Charging.BaseRate),
		zap.String("timezone", loc.String()),
	)
	ok = true
	return a, nil
}

// seedUsers hashes plain RFIDs from configuration.
func seedUsers(configured []config.UserConfig, hasher *service.CredentialHasher) ([]models.User, error) {
	users := make([]models.User, 0, len(configured))
	for _, uc := range configured {
		u := uc.User
		if u.RFIDHash == "" {
			hash, err := hasher.Hash(uc.RFID)
			if err != nil {
				return nil, fmt.Errorf("app: hash rfid of %s: %w", u.ID, err)
			}
			u.RFIDHash = hash
		}
		users = append(users, u)
	}
	return users, nil
}

// publishLiveStations mirrors every charging station to MQTT after each recompute.
func publishLiveStations(stations *service.StationState, publisher *telemetry.Publisher) service.TickObserver {
	return func(ctx context.Context, _ time.Time) {
		for _, slot := range stations.Snapshot() {
			if slot.Session != nil {
				publisher.StationChanged(ctx, slot.Station, slot.Session)
			}
		}
	}
}

func (a *App) healthChecks() map[string]handlers.HealthCheck {
	checks := make(map[string]handlers.HealthCheck)
	if a.redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return a.redisClient.Ping(ctx).Err()
		}
	}
	if a.db != nil {
		checks["postgres"] = func(ctx context.Context) error {
			return a.db.PingContext(ctx)
		}
	}
	if a.publisher != nil && a.publisher.Enabled() {
		checks["mqtt"] = func(context.Context) error {
			if !a.publisher.IsConnected() {
				return errors.New("broker not connected")
			}
			return nil
		}
	}
	return checks
}

// Handler exposes the routed API without the server middleware.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the session ticker and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.ticker.Run(ctx)
	}()

	err := a.server.Run(ctx)
	cancel()
	<-done
	return err
}

// Close releases resources.
func (a *App) Close() {
	if a.publisher != nil {
		a.publisher.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
