package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quoteshare/apiserver/config"
	"github.com/quoteshare/apiserver/internal/db"
	"github.com/quoteshare/apiserver/internal/mq"
	"github.com/quoteshare/apiserver/internal/render"
	"github.com/quoteshare/apiserver/internal/services"
	"github.com/quoteshare/apiserver/internal/storage"
	"github.com/quoteshare/apiserver/internal/store"
)

// App holds the wired services shared by the server, worker and seed
// commands.
type App struct {
	Config  config.Config
	Logger  *slog.Logger
	DB      *sql.DB
	Storage *storage.Storage
	MQ      *mq.MQ

	Users  *store.UserRepository
	Tokens *services.JWTIssuer
	Auth   *services.AuthService
	Quotes *services.QuoteService
	Cards  *services.ShareCardService
}

// NewApp opens the database and the optional object storage and broker, then
// wires the services. Tokens and Auth are nil when no JWT secret is set.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app := &App{Config: cfg, Logger: logger, DB: dbConn}

	app.Storage, err = storage.New(ctx, cfg.Storage)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	app.MQ, err = mq.Open(ctx, cfg.MQ)
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	opts := render.DefaultOptions()
	if cfg.ShareCard.Scale > 0 {
		opts.Scale = cfg.ShareCard.Scale
	}
	renderer, err := render.NewRendererFromFiles(cfg.ShareCard.FontPaths, opts)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if missing := seedGlyphGaps(renderer); len(missing) > 0 {
		logger.WarnContext(ctx, "share card fonts do not cover the seed quotes, set SHARE_FONT_PATH",
			"missing", len(missing),
		)
	}

	var publisher services.QuotePublisher
	if app.MQ != nil {
		publisher = services.NewEventPublisher(app.MQ)
	}
	var cache services.ObjectStore
	if app.Storage != nil {
		cache = app.Storage
	}

	app.Users = store.NewUserRepository(dbConn)
	app.Quotes = services.NewQuoteService(store.NewQuoteRepository(dbConn), publisher, logger)
	app.Cards = services.NewShareCardService(app.Quotes, renderer, cache, logger)
	if cfg.Auth.JWTSecret != "" {
		app.Tokens = services.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		app.Auth = services.NewAuthService(app.Users, app.Tokens, cfg.Auth.BcryptCost)
	}

	logger.InfoContext(ctx, "app initialised",
		"storage", backendName(cfg.Storage.Backend),
		"mq", backendName(cfg.MQ.Backend),
	)
	return app, nil
}

// Close releases the broker and database connections.
func (a *App) Close() error {
	var errs []error
	if a.MQ != nil {
		if err := a.MQ.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mq: %w", err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

func backendName(name string) string {
	if name == "" {
		return "disabled"
	}
	return name
}

func seedGlyphGaps(renderer *render.Renderer) []rune {
	var missing []rune
	for _, q := range services.DefaultSeedQuotes {
		missing = append(missing, renderer.MissingGlyphs(services.CardForQuote(q))...)
	}
	return missing
}
