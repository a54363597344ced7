// Package main runs the demo payment gateway the storefront authorizes
// checkouts against. Cards ending in 0002 are declined and cards ending in
// 9995 fail for insufficient funds; everything else is approved.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/metrics"
)

type cfg struct {
	Port        string
	DatabaseURL string
	Delay       time.Duration
	ReplayTTL   time.Duration
	Dev         bool
}

func readCfg() (cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg{}, err
	}
	delayMS, err := strconv.Atoi(getenv("PAYMENT_DELAY_MS", "0"))
	if err != nil || delayMS < 0 {
		return cfg{}, errors.New("PAYMENT_DELAY_MS must be a non-negative integer")
	}
	return cfg{
		Port:        getenv("PORT", "8081"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		Delay:       time.Duration(delayMS) * time.Millisecond,
		ReplayTTL:   24 * time.Hour,
		Dev:         !strings.EqualFold(getenv("ENVIRONMENT", "development"), "production"),
	}, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New("payment-service", cfg.Dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ledger ledger = nopLedger{}
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		pg := pgLedger{pool: pool}
		if err := pg.migrate(ctx); err != nil {
			log.Fatalf("db migrate error: %v", err)
		}
		ledger = pg
	}

	svc := newService(ledger, logger, metrics.NewServerMetrics("payment_service"), cfg.Delay, cfg.ReplayTTL)
	svc.ready = func(ctx context.Context) error { return ledger.Ping(ctx) }

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: svc.routes(prometheus.DefaultGatherer), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log(logging.Fields{Step: "listen", Status: "started", Message: "payment-service listening on :" + cfg.Port})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("http server error: %v", err)
	}
}

func getenv(k, def string) string {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return v
}
