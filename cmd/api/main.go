package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/alexandratechlab/invoicehub/internal/apikey"
	"github.com/alexandratechlab/invoicehub/internal/auth"
	"github.com/alexandratechlab/invoicehub/internal/config"
	"github.com/alexandratechlab/invoicehub/internal/directory"
	"github.com/alexandratechlab/invoicehub/internal/httpapi"
	"github.com/alexandratechlab/invoicehub/internal/invoice"
	"github.com/alexandratechlab/invoicehub/internal/obs"
	"github.com/alexandratechlab/invoicehub/internal/queue"
	"github.com/alexandratechlab/invoicehub/internal/store/pg"
	"github.com/alexandratechlab/invoicehub/internal/stream"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal("load config", zap.Error(err))
	}

	obs.Init()
	obs.InitBuildInfo(version, commit)
	logger := obs.Logger()
	defer obs.Sync()

	tokens, err := auth.NewTokenService(cfg.AuthSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithAccessTTL(cfg.AccessTokenTTL),
		auth.WithRefreshTTL(cfg.RefreshTokenTTL),
	)
	if err != nil {
		logger.Fatal("token service", zap.Error(err))
	}

	// Without a DSN the process runs against in-memory stores. That
	// mode exists for local development and smoke tests only.
	var (
		db        *sql.DB
		dirStore  directory.Store
		keyStore  apikey.Store
		taskStore queue.Store
		invStore  invoice.Store
	)
	if cfg.PostgresDSN != "" {
		store, err := pg.Open(cfg.PostgresDSN)
		if err != nil {
			logger.Fatal("open postgres", zap.Error(err))
		}
		db = store.DB()
		dirStore = store.Directory()
		keyStore = store.APIKeys()
		taskStore = store.Queue()
		invStore = store.Invoices()
	} else {
		logger.Warn("no postgres dsn configured, using in-memory stores")
		dirStore = directory.NewMemoryStore()
		keyStore = apikey.NewMemoryStore()
		taskStore = queue.NewMemoryStore()
		invStore = invoice.NewMemoryStore()
	}

	dir, err := directory.NewService(dirStore, tokens, directory.WithBcryptCost(cfg.BcryptCost))
	if err != nil {
		logger.Fatal("directory service", zap.Error(err))
	}
	keys, err := apikey.NewService(keyStore, apikey.WithDefaultExpiry(cfg.APIKeyExpiry))
	if err != nil {
		logger.Fatal("apikey service", zap.Error(err))
	}
	tasks, err := queue.NewService(taskStore, stream.New())
	if err != nil {
		logger.Fatal("queue service", zap.Error(err))
	}
	invoices, err := invoice.NewService(invStore)
	if err != nil {
		logger.Fatal("invoice service", zap.Error(err))
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, httpapi.Services{
		Tokens:    tokens,
		Directory: dir,
		APIKeys:   keys,
		Queue:     tasks,
		Invoices:  invoices,
	})

	var handler http.Handler = api.Handler()
	handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitPerSecond)
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.CORS(handler, cfg.CORSOrigins)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// SSE responses stay open; WriteTimeout would cut them off.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("starting invoicehub-api",
		zap.String("version", version),
		zap.String("addr", srv.Addr),
		zap.String("env", cfg.Env),
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	logger.Info("stopped")
}
