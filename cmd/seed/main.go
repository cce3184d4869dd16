// Command seed creates the administrator account. It is the only way to
// obtain the admin role and is safe to run repeatedly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/votewise/votewise/internal/config"
	"github.com/votewise/votewise/internal/identity"
	"github.com/votewise/votewise/internal/infra"
	"github.com/votewise/votewise/internal/logging"
	"github.com/votewise/votewise/internal/notification"
)

func main() {
	_ = godotenv.Load()

	var in identity.SignupInput
	flag.StringVar(&in.Email, "email", "admin@gmail.com", "admin email")
	flag.StringVar(&in.Password, "password", "admin123", "admin password")
	flag.StringVar(&in.Name, "name", "Admin", "display name")
	flag.StringVar(&in.Mobile, "mobile", "9999999999", "mobile number")
	flag.StringVar(&in.NationalID, "national-id", "000000000000", "national identity number")
	flag.IntVar(&in.Age, "age", 30, "age")
	flag.StringVar(&in.Address, "address", "Admin Office", "postal address")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var repo identity.Repository
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		repo = identity.NewPostgresRepository(db)
	case config.DriverMongo:
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			logger.Error("connect mongo", "error", err)
			os.Exit(1)
		}
		defer client.Disconnect(context.Background())
		users := identity.NewMongoRepository(client.Database(cfg.MongoDatabase))
		if err := users.EnsureIndexes(ctx); err != nil {
			logger.Error("ensure indexes", "error", err)
			os.Exit(1)
		}
		repo = users
	default:
		logger.Error("seeding needs a persistent store", "store", cfg.StoreDriver)
		os.Exit(1)
	}

	svc := identity.NewService(repo, cfg.BcryptCost, notification.NewLoggerNotifier(logger))
	user, created, err := svc.SeedAdmin(ctx, in)
	if err != nil {
		logger.Error("seed admin", "error", err)
		os.Exit(1)
	}
	if !created {
		logger.Info("admin already exists", "email", user.Email)
		return
	}
	logger.Info("admin created", "user_id", user.ID, "email", user.Email)
}
