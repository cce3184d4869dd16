package routes

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/votewise/votewise/internal/auth"
	"github.com/votewise/votewise/internal/ballot"
	"github.com/votewise/votewise/internal/config"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/jobs"
	"github.com/votewise/votewise/internal/ledger"
	"github.com/votewise/votewise/internal/metrics"
	"github.com/votewise/votewise/internal/middleware"
	"github.com/votewise/votewise/internal/notification"
	"github.com/votewise/votewise/internal/voting"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg     config.Config
	DB      *pgxpool.Pool
	Mongo   *mongo.Client
	Cache   *redis.Client
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

type stores struct {
	users      identity.Repository
	candidates ballot.Repository
	ledger     ledger.Ledger
}

// Setup configures middlewares and all application routes. The returned
// scheduler carries the housekeeping jobs and is started by the caller.
func Setup(app *fiber.App, d Deps) (*jobs.Scheduler, error) {
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	st, err := openStores(context.Background(), d)
	if err != nil {
		return nil, err
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.Audit(d.Logger))
	app.Use(middleware.Metrics(d.Metrics))

	RegisterHealthRoutes(app, d)

	notifier := notification.NewLoggerNotifier(d.Logger)
	identitySvc := identity.NewService(st.users, d.Cfg.BcryptCost, notifier)
	ballotSvc := ballot.NewService(st.candidates, st.users)
	votingSvc := voting.NewService(st.users, st.candidates, st.ledger, notifier, d.Metrics, d.Logger)
	tokens := auth.NewTokenService(d.Cfg.JWTSecret, d.Cfg.TokenTTL)

	var (
		revoker auth.Revoker
		pruner  jobs.Pruner
	)
	if d.Cfg.TokenRevocation {
		if d.Cache != nil {
			revoker = auth.NewRedisRevoker(d.Cache)
		} else {
			memory := auth.NewMemoryRevoker()
			revoker, pruner = memory, memory
		}
	}

	cookie := auth.CookieOptions{Name: d.Cfg.CookieName, Secure: d.Cfg.CookieSecure}
	guard := middleware.GuardConfig{Tokens: tokens, Revoker: revoker, CookieName: d.Cfg.CookieName}
	h := handlers{
		auth:     auth.NewHandler(identitySvc, tokens, revoker, cookie, d.Metrics, d.Logger),
		identity: identity.NewHandler(identitySvc, d.Logger),
		ballot:   ballot.NewHandler(ballotSvc),
		voting:   voting.NewHandler(votingSvc),
		users:    identitySvc,
		results:  ballotSvc,
	}
	loginLimiter := middleware.LoginRateLimit(d.Cache, d.Cfg.LoginRateLimit)

	api := app.Group("/api/v1")
	RegisterPublicRoutes(api, h, guard, loginLimiter)
	voter := api.Group("", middleware.RequireAuthenticated(guard))
	RegisterVoterRoutes(voter, h, middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))

	admin := app.Group("/admin")
	RegisterAdminSessionRoutes(admin, h, loginLimiter)
	protected := admin.Group("", middleware.RequireAuthenticated(guard), middleware.RequireRole(identity.RoleAdmin))
	RegisterAdminRoutes(protected, h)

	return jobs.NewScheduler(pruner, ballotSvc, d.Logger), nil
}

// handlers groups the HTTP handlers and the services used by inline routes.
type handlers struct {
	auth     *auth.Handler
	identity *identity.Handler
	ballot   *ballot.Handler
	voting   *voting.Handler
	users    *identity.Service
	results  *ballot.Service
}

func openStores(ctx context.Context, d Deps) (stores, error) {
	switch d.Cfg.StoreDriver {
	case config.DriverMemory:
		mem := ledger.NewMemoryStores()
		return stores{users: mem.Users, candidates: mem.Candidates, ledger: mem.Ledger}, nil
	case config.DriverPostgres:
		if d.DB == nil {
			return stores{}, fmt.Errorf("store driver %q requires a database pool", d.Cfg.StoreDriver)
		}
		return stores{
			users:      identity.NewPostgresRepository(d.DB),
			candidates: ballot.NewPostgresRepository(d.DB),
			ledger:     ledger.NewPostgresLedger(d.DB),
		}, nil
	case config.DriverMongo:
		if d.Mongo == nil {
			return stores{}, fmt.Errorf("store driver %q requires a mongo client", d.Cfg.StoreDriver)
		}
		db := d.Mongo.Database(d.Cfg.MongoDatabase)
		users := identity.NewMongoRepository(db)
		candidates := ballot.NewMongoRepository(db)
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := users.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("user indexes: %w", err)
		}
		if err := candidates.EnsureIndexes(ctx); err != nil {
			return stores{}, fmt.Errorf("candidate indexes: %w", err)
		}
		return stores{users: users, candidates: candidates, ledger: ledger.NewMongoLedger(d.Mongo, db)}, nil
	default:
		return stores{}, fmt.Errorf("unknown store driver %q", d.Cfg.StoreDriver)
	}
}
