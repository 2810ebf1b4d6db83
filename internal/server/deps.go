package server

import (
	"context"
	"database/sql"
	"errors"

	"github.com/cambosugarscan/apiserver/config"
	"github.com/cambosugarscan/apiserver/internal/db"
	"github.com/cambosugarscan/apiserver/internal/events"
	"github.com/cambosugarscan/apiserver/internal/logging"
	"github.com/cambosugarscan/apiserver/internal/metrics"
	"github.com/cambosugarscan/apiserver/internal/services"
	"github.com/cambosugarscan/apiserver/internal/store"
)

// Deps holds the long-lived resources shared by the HTTP server and the
// maintenance commands.
type Deps struct {
	DB        *sql.DB
	Publisher *events.Publisher
	Metrics   *metrics.Metrics
	Products  *services.ProductService
	Users     *services.UserService
	Log       logging.Logger
}

// OpenDeps connects to Postgres and the configured event backend and builds
// the services on top of them.
func OpenDeps(ctx context.Context, cfg config.Config, log logging.Logger) (*Deps, error) {
	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	publisher, err := events.FromConfig(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	if publisher.Enabled() {
		log.Info(ctx, "event publishing enabled", "backend", cfg.Events.Backend, "channel", cfg.Events.Channel)
	}

	m := metrics.New(nil)
	hasher := services.NewBcryptHasher(cfg.Auth.BcryptCost)

	return &Deps{
		DB:        dbConn,
		Publisher: publisher,
		Metrics:   m,
		Products:  services.NewProductService(store.NewProductRepository(dbConn), publisher, m, log),
		Users:     services.NewUserService(store.NewUserRepository(dbConn), hasher, publisher, m, log),
		Log:       log,
	}, nil
}

// Close releases the event backend and the database pool.
func (d *Deps) Close() error {
	var errs []error
	if d.Publisher != nil {
		errs = append(errs, d.Publisher.Close())
	}
	if d.DB != nil {
		errs = append(errs, d.DB.Close())
	}
	return errors.Join(errs...)
}
