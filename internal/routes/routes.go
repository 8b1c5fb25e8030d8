package routes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fuelnow/fuelnow/internal/auth"
	"github.com/fuelnow/fuelnow/internal/config"
	"github.com/fuelnow/fuelnow/internal/engine"
	"github.com/fuelnow/fuelnow/internal/identity"
	"github.com/fuelnow/fuelnow/internal/interest"
	"github.com/fuelnow/fuelnow/internal/middleware"
	"github.com/fuelnow/fuelnow/internal/mpesa"
	"github.com/fuelnow/fuelnow/internal/notification"
	"github.com/fuelnow/fuelnow/internal/onboarding"
	"github.com/fuelnow/fuelnow/internal/payments"
	"github.com/fuelnow/fuelnow/internal/reconciliation"
	"github.com/fuelnow/fuelnow/internal/store"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development, in which case in-memory stores are used.
type Deps struct {
	Cfg        config.Config
	DB         *pgxpool.Pool
	Cache      *redis.Client
	Logger     *slog.Logger
	HTTPClient *http.Client
}

// Services are the wired application services, exposed so the process can
// run background work against the same instances the routes use.
type Services struct {
	Store          store.UnitOfWork
	Engine         *engine.Engine
	Identity       *identity.Service
	Auth           *auth.Service
	Onboarding     *onboarding.Service
	Reconciliation *reconciliation.Service
	Payments       *payments.Service
	// Dispatcher is nil unless notifications are queued in Redis.
	Dispatcher *notification.Dispatcher
}

// Build constructs every service on the configured backends.
func Build(d Deps) (*Services, error) {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return nil, fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Cache == nil {
			return nil, fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var (
		uow          store.UnitOfWork
		identityRepo identity.Repository
	)
	if d.DB != nil {
		uow = store.NewPostgres(d.DB)
		identityRepo = identity.NewPostgresRepository(d.DB)
	} else {
		uow = store.NewMemory()
		identityRepo = identity.NewMemoryRepository()
	}

	var sender notification.Sender = notification.NewLoggerNotifier(d.Logger)
	if d.Cfg.SMS.BaseURL != "" && d.Cfg.SMS.APIKey != "" {
		sender = notification.NewSMSGateway(d.Cfg.SMS, d.HTTPClient)
	}
	var (
		notifier   notification.Notifier
		dispatcher *notification.Dispatcher
	)
	if d.Cache != nil {
		queue := notification.NewQueue(d.Cache, "")
		notifier = queue
		dispatcher = notification.NewDispatcher(queue, sender, d.Logger)
	} else {
		notifier = notification.NewDirect(sender)
	}

	policy, err := interest.NewPolicy(d.Cfg.InterestRate)
	if err != nil {
		return nil, err
	}
	eng := engine.New(uow, policy, notifier, d.Logger, engine.Config{
		OperationTimeout: d.Cfg.OperationTimeout,
		ReservationTTL:   d.Cfg.ReservationTTL,
	})
	onboardingSvc := onboarding.NewService(uow, notifier, d.Logger, onboarding.Config{
		DefaultCreditLimit: d.Cfg.DefaultCreditLimit,
		ActivationFee:      d.Cfg.ActivationFee,
	})
	identitySvc := identity.NewService(identityRepo)
	authSvc := auth.NewService(auth.Config{
		Issuer:        d.Cfg.AppName,
		AccessSecret:  d.Cfg.JWTSecret,
		RefreshSecret: d.Cfg.RefreshSecret,
		AccessTTL:     d.Cfg.AccessTokenTTL,
		RefreshTTL:    d.Cfg.RefreshTokenTTL,
	}, identitySvc)
	paymentSvc := payments.NewService(eng, onboardingSvc, mpesa.NewClient(d.Cfg.MPesa, d.HTTPClient), d.Logger)

	loc := d.Cfg.ReportLocation
	if loc == nil {
		loc = time.UTC
	}
	return &Services{
		Store:          uow,
		Engine:         eng,
		Identity:       identitySvc,
		Auth:           authSvc,
		Onboarding:     onboardingSvc,
		Reconciliation: reconciliation.NewService(uow, loc),
		Payments:       paymentSvc,
		Dispatcher:     dispatcher,
	}, nil
}

// Setup builds the services and configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) (*Services, error) {
	svcs, err := Build(d)
	if err != nil {
		return nil, err
	}
	if err := svcs.Identity.EnsureAdmin(context.Background(), d.Cfg.AdminName, d.Cfg.AdminEmail, d.Cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	if d.Cfg.IsDev() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	authHandler := auth.NewHandler(svcs.Identity, svcs.Auth)
	jwt := middleware.JWTAuth(svcs.Auth)
	admin := middleware.RequireRole(identity.RoleAdmin)
	staff := middleware.RequireRole(identity.RoleAttendant, identity.RoleAdmin)
	idem := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)

	RegisterAuthRoutes(api, authHandler, middleware.LoginRateLimit(d.Cache, 5), jwt)

	paymentHandler := payments.NewHandler(svcs.Payments)
	RegisterPaymentCallbackRoute(api, paymentHandler)

	protected := api.Group("", jwt, idem)
	engineHandler := engine.NewHandler(svcs.Engine)
	RegisterTransactionRoutes(protected, engineHandler, staff)
	RegisterPaymentRoutes(protected, paymentHandler, engineHandler, staff, admin)
	RegisterCustomerRoutes(protected, onboarding.NewHandler(svcs.Onboarding), engineHandler, staff, admin)
	RegisterAdminRoutes(protected, reconciliation.NewHandler(svcs.Reconciliation), engineHandler, authHandler, admin)

	return svcs, nil
}
