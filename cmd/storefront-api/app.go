package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/config"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/payment"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/contracts"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/idempotency"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/kafka"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/metrics"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/outbox"
)

// app holds everything the handlers share.
type app struct {
	cfg      *config.Config
	log      *logging.Logger
	catalog  *catalog.Catalog
	auth     *session.Provider
	orders   orders.Store
	shops    *storefront.Registry
	replays  *idempotency.Cache
	http     *metrics.ServerMetrics
	gatherer prometheus.Gatherer

	relay   *outbox.Relay
	closers []func()
}

// authOpts are applied after the configured ones.
func newApp(ctx context.Context, cfg *config.Config, log *logging.Logger, reg *prometheus.Registry, authOpts ...session.ProviderOption) (*app, error) {
	a := &app{
		cfg:      cfg,
		log:      log,
		replays:  idempotency.NewCache(cfg.Sessions.IdempotencyTTL),
		http:     metrics.NewServerMetricsWith(reg, "api"),
		gatherer: reg,
	}

	a.catalog = catalog.Default()
	if cfg.Catalog.Path != "" {
		c, err := catalog.LoadFromFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		a.catalog = c
	}

	opts := []session.ProviderOption{
		session.WithVerification(cfg.Auth.RequireVerification),
		session.WithTTL(cfg.Auth.TokenTTL),
	}
	for _, o := range cfg.Auth.OAuth {
		opts = append(opts, session.WithOAuth(session.OAuthApp{
			Name:         o.Name,
			AuthorizeURL: o.AuthorizeURL,
			TokenURL:     o.TokenURL,
			UserInfoURL:  o.UserInfoURL,
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
		}))
	}
	opts = append(opts, authOpts...)
	auth, err := session.NewProvider([]byte(cfg.Auth.JWTSecret), opts...)
	if err != nil {
		return nil, err
	}
	a.auth = auth

	sinks, err := a.wireStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var authorizer checkout.Authorizer = payment.Simulated{Delay: cfg.Payment.SimulatedDelay}
	if cfg.Payment.BaseURL != "" {
		authorizer = payment.NewHTTP(cfg.Payment.BaseURL, &http.Client{Timeout: cfg.Payment.Timeout})
	}

	observer := metrics.NewStorefront(reg)
	deps := storefront.Deps{
		Rules:            cfg.Pricing,
		Authorizer:       authorizer,
		Sinks:            sinks,
		CartObserver:     observer,
		CheckoutObserver: observer,
		Logger:           log,
		PaymentTimeout:   cfg.Payment.Timeout,
	}
	a.shops = storefront.NewRegistry(func(id string) *storefront.Shop {
		return storefront.NewShop(id, auth.Client(), deps)
	})
	return a, nil
}

// wireStorage picks the order store and the confirmation sinks. With
// Postgres the order and its event are written together and the relay
// forwards the event; without it the event goes straight to kafka.
func (a *app) wireStorage(ctx context.Context) ([]checkout.ConfirmationSink, error) {
	kc := kafka.NewClient(a.cfg.Storage.KafkaBrokers)
	var pub *kafka.Publisher
	if kc.Enabled() {
		pub = kafka.NewPublisher(kc)
		a.closers = append(a.closers, func() { _ = pub.Close() })
	}

	sinks := []checkout.ConfirmationSink{}
	if a.cfg.Storage.DatabaseURL != "" {
		pool, err := connect(ctx, a.cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.orders = orders.NewPGStore(pool)
		if pub != nil {
			a.relay = &outbox.Relay{
				Source:    outbox.PG{DB: pool},
				Publisher: pub,
				Interval:  time.Second,
				Logger:    a.log,
			}
		}
		sinks = append(sinks, orders.Recorder{Store: a.orders})
	} else {
		a.orders = orders.NewMemory()
		sinks = append(sinks, orders.Recorder{Store: a.orders})
		if pub != nil {
			sinks = append(sinks, orders.Announcer{Publisher: pub, Topic: contracts.TopicOrders})
		}
	}
	return append(sinks, orders.LogSink{Logger: a.log}), nil
}

func connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return pool, nil
}

// Start runs the background loops until ctx is done.
func (a *app) Start(ctx context.Context) {
	go a.shops.RunJanitor(ctx, a.cfg.Sessions.IdleTimeout, time.Minute)
	if a.relay != nil {
		go func() { _ = a.relay.Run(ctx) }()
	}
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
