package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/auth"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/events"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/core/security"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/password"
	passwordPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/password/postgres"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/storage"
	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/user"
	userPostgres "github.com/RenerPires/cfp-energy-technical-test-backend/internal/user/postgres"
	"github.com/RenerPires/cfp-energy-technical-test-backend/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// application holds the wired services shared by the server and the maintenance commands.
type application struct {
	Config *internal.Config
	Logger *slog.Logger
	DB     *sqlx.DB
	Gorm   *gorm.DB
	Events *events.EventBus
	Hasher security.PasswordHasher

	Users  *user.Service
	Auth   *auth.Service
	Ledger *password.Ledger

	// Revocations is nil unless security.revocation_enabled is set.
	Revocations *auth.MemoryRevocationList
}

func newApplication(cfg *internal.Config) (*application, error) {
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	gdb, err := initGorm(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	bus := events.NewEventBus(lg)
	bus.Subscribe(events.EventTypePasswordResetRequested, password.LogDelivery(lg))
	bus.Subscribe(events.EventTypeUserStatusChanged, func(ctx context.Context, event events.Event) error {
		lg.InfoContext(ctx, "account status changed", "event_id", event.EventID(), "payload", event.Payload())
		return nil
	})

	hasher := security.NewBcryptHasher(cfg.Security.BCryptCost)
	users := userPostgres.NewUserRepository(gdb)

	userService := user.NewService(users, hasher, lg,
		user.WithStaleFinder(userPostgres.NewMaintenanceRepository(db)),
		user.WithPublisher(bus),
		user.WithURLResolver(storage.NewURLResolver(cfg.Storage.CloudURL)),
		user.WithInactiveRetention(cfg.Maintenance.InactiveRetention),
	)

	tokens := auth.NewJWTTokenGenerator(
		cfg.Security.JWTSecret,
		cfg.Security.JWTIssuer,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	var (
		authOpts    []auth.Option
		revocations *auth.MemoryRevocationList
	)
	if cfg.Security.RevocationEnabled {
		revocations = auth.NewMemoryRevocationList(time.Now)
		authOpts = append(authOpts, auth.WithRevocationList(revocations))
	}
	authService := auth.NewService(users, tokens, hasher, lg, authOpts...)

	ledger := password.NewLedger(
		passwordPostgres.NewResetTokenRepository(gdb),
		users,
		hasher,
		password.NewEventNotifier(bus),
		authService,
		lg,
		password.WithTTL(cfg.PasswordReset.TokenTTL),
		password.WithFrontendURL(cfg.PasswordReset.FrontendURL),
	)

	return &application{
		Config: cfg,
		Logger: lg,
		DB:     db,
		Gorm:   gdb,
		Events: bus,
		Hasher: hasher,
		Users:  userService,
		Auth:   authService,
		Ledger: ledger,

		Revocations: revocations,
	}, nil
}

// Close waits for in-flight event handlers before releasing the pool.
func (a *application) Close() {
	a.Events.Wait()
	if err := a.DB.Close(); err != nil {
		a.Logger.Error("database close error", "error", err)
	}
}

// initDB initializes the database connection
func initDB(cfg internal.DatabaseConfig) (*sqlx.DB, error) {
	const driver = "pgx"

	dbConn, err := sqlx.Connect(driver, cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	dbConn.SetMaxIdleConns(cfg.MaxIdleConns)
	dbConn.SetMaxOpenConns(cfg.MaxOpenConns)
	dbConn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	dbConn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := dbConn.Ping(); err != nil {
		_ = dbConn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbConn, nil
}

// initGorm shares the sqlx pool with gorm so both see the same connections.
func initGorm(db *sqlx.DB) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
		TranslateError: true,
	})
}
