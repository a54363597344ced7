// Package main consumes order.confirmed events and sends the shopper a
// confirmation notice.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/kafka"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/metrics"
)

type cfg struct {
	Port         string
	DatabaseURL  string
	KafkaBrokers string
	Topic        string
	GroupID      string
	Dev          bool
}

func readCfg() (cfg, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg{}, err
	}
	c := cfg{
		Port:         getenv("PORT", "8082"),
		DatabaseURL:  getenv("DATABASE_URL", ""),
		KafkaBrokers: getenv("KAFKA_BROKERS", ""),
		Topic:        getenv("KAFKA_TOPIC", contracts.TopicOrders),
		GroupID:      getenv("KAFKA_GROUP_ID", "notification-service"),
		Dev:          !strings.EqualFold(getenv("ENVIRONMENT", "development"), "production"),
	}
	if c.KafkaBrokers == "" {
		return cfg{}, errors.New("KAFKA_BROKERS is required")
	}
	return c, nil
}

func main() {
	cfg, err := readCfg()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New("notification-service", cfg.Dev)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kc := kafka.NewClient(cfg.KafkaBrokers)
	pub := kafka.NewPublisher(kc)
	defer func() { _ = pub.Close() }()

	n := newNotifier(newMemInbox(), prometheus.DefaultRegisterer, logger)
	n.publisher = pub
	ready := func(context.Context) error { return nil }

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db connect error: %v", err)
		}
		defer pool.Close()
		in := pgInbox{pool: pool}
		if err := in.migrate(ctx); err != nil {
			log.Fatalf("db migrate error: %v", err)
		}
		n.inbox = in
		n.orders = orders.NewPGStore(pool)
		ready = pool.Ping
	}

	go consume(ctx, kc.NewReader(cfg.Topic, cfg.GroupID), n, logger)

	srvMetrics := metrics.NewServerMetrics("notification_service")
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		if err := ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "db_error"})
			srvMetrics.Observe("health", "503", start)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
		srvMetrics.Observe("health", "200", start)
	})
	mux.Handle("GET /metrics", metrics.Handler())

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Log(logging.Fields{Step: "listen", Status: "started", Message: "notification-service listening on :" + cfg.Port})
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
