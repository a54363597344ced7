// Package main is a terminal storefront. It runs the cart, wishlist,
// checkout and account flows in-process against the simulated gateway.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/klugumair/Luxuryfashion-sub000/internal/catalog"
	"github.com/klugumair/Luxuryfashion-sub000/internal/checkout"
	"github.com/klugumair/Luxuryfashion-sub000/internal/config"
	"github.com/klugumair/Luxuryfashion-sub000/internal/orders"
	"github.com/klugumair/Luxuryfashion-sub000/internal/payment"
	"github.com/klugumair/Luxuryfashion-sub000/internal/session"
	"github.com/klugumair/Luxuryfashion-sub000/internal/storefront"
	"github.com/klugumair/Luxuryfashion-sub000/pkg/logging"
)

func main() {
	configPath := flag.String("config", "", "YAML config file")
	logPath := flag.String("log", "", "write logs to this file")
	flag.Parse()

	// Tokens never leave the process, so a throwaway secret is enough.
	if strings.TrimSpace(os.Getenv("JWT_SECRET")) == "" {
		_ = os.Setenv("JWT_SECRET", uuid.NewString())
	}
	cfg, err := config.Read(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, err := fileLogger(*logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cat := catalog.Default()
	if cfg.Catalog.Path != "" {
		if cat, err = catalog.LoadFromFile(cfg.Catalog.Path); err != nil {
			fmt.Fprintf(os.Stderr, "catalog: %v\n", err)
			os.Exit(1)
		}
	}

	provider, err := session.NewProvider([]byte(cfg.Auth.JWTSecret),
		session.WithVerification(cfg.Auth.RequireVerification),
		session.WithTTL(cfg.Auth.TokenTTL),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth: %v\n", err)
		os.Exit(1)
	}
	client := provider.Client()

	store := orders.NewMemory()
	shop := storefront.NewShop(uuid.NewString(), client, storefront.Deps{
		Rules:          cfg.Pricing,
		Authorizer:     payment.Simulated{Delay: cfg.Payment.SimulatedDelay},
		Sinks:          []checkout.ConfirmationSink{orders.Recorder{Store: store}, orders.LogSink{Logger: logger}},
		Logger:         logger,
		PaymentTimeout: cfg.Payment.Timeout,
	})
	defer shop.Close()

	p := tea.NewProgram(newModel(shop, cat, store, client))
	// Listeners run inside SignIn, which may itself run inside Update.
	client.OnChange(func(s *session.Session) { go p.Send(sessionChanged{s: s}) })
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// fileLogger keeps log output off the terminal the UI draws on.
func fileLogger(path string) (*logging.Logger, error) {
	if path == "" {
		return logging.NewNop(), nil
	}
	zc := zap.NewDevelopmentConfig()
	zc.OutputPaths = []string{path}
	zc.ErrorOutputPaths = []string{path}
	z, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logging.Wrap(z, "cli"), nil
}
