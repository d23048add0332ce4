package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"furniture-store/internal/cart"
	"furniture-store/internal/catalog"
	"furniture-store/internal/checkout"
	"furniture-store/internal/client"
	"furniture-store/internal/config"
	"furniture-store/internal/connectivity"
	"furniture-store/internal/logger"
	"furniture-store/internal/metrics"
	"furniture-store/internal/payment"
	"furniture-store/internal/retry"
	"furniture-store/internal/session"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	cfg := config.Load()
	sf := cfg.Storefront

	flags := pflag.NewFlagSet("storefront", pflag.ExitOnError)
	apiURL := flags.String("api-url", sf.APIURL, "storefront backend address")
	env := flags.String("env", cfg.Server.Env, "environment (development, production)")
	logFile := flags.String("log-file", filepath.Join(os.TempDir(), "storefront.log"), "file receiving structured logs")
	sessionFile := flags.String("session-file", sf.SessionFile, "file persisting the signed-in session; empty keeps it in memory")
	logLevel := flags.String("log-level", "info", "minimum log level (debug, info, warn, error)")
	_ = flags.Parse(os.Args[1:])

	level, err := zapcore.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid --log-level: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(*env, logger.WithOutputPaths(*logFile), logger.WithLevel(level))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a := wire(cfg, *apiURL, *sessionFile, log)
	defer a.close()

	log.Info("Storefront starting", zap.String("api_url", *apiURL), zap.String("env", *env))
	a.start(ctx, sf.ProbeInterval)
	a.repl(ctx, os.Stdin)
}

// wire builds the storefront core over the HTTP client.
func wire(cfg *config.Config, apiURL, sessionFile string, log *zap.Logger) *app {
	sf := cfg.Storefront

	opts := []client.Option{client.WithLogger(log)}
	if sessionFile != "" {
		opts = append(opts, client.WithTokenStore(client.NewFileTokenStore(sessionFile)))
	}
	api := client.New(apiURL, opts...)

	policy := retry.Default()
	if sf.RetryAttempts > 0 {
		policy.MaxAttempts = sf.RetryAttempts
	}
	if sf.RetryBaseDelay > 0 {
		policy.BaseDelay = sf.RetryBaseDelay
	}
	if sf.RetryMultiplier > 0 {
		policy.Multiplier = sf.RetryMultiplier
	}
	retrier := retry.New(policy, log)

	gateway := payment.NewSandboxGateway(log)
	gateway.Decline(sf.DeclinedCards...)

	sessions := session.NewStore(api, api, log)
	products := catalog.NewCache(api, api, sessions, retrier, log)
	carts := cart.NewStore(log)
	coordinator := checkout.NewCoordinator(sessions, carts, gateway, api, retrier, metrics.NewCheckoutMetrics(nil), log)

	probeTimeout := sf.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = connectivity.DefaultProbeTimeout
	}
	monitor := connectivity.NewMonitor(api,
		connectivity.WithTimeout(probeTimeout),
		connectivity.WithReconnectPolicy(retry.Policy{
			MaxAttempts: connectivity.DefaultMaxReconnects,
			BaseDelay:   policy.BaseDelay,
			Multiplier:  policy.Multiplier,
			MaxDelay:    8 * time.Second,
		}),
		connectivity.WithLogger(log),
	)

	return &app{
		out:      newPrinter(os.Stdout),
		api:      api,
		session:  sessions,
		catalog:  products,
		cart:     carts,
		checkout: coordinator,
		monitor:  monitor,
		logger:   log,
	}
}
