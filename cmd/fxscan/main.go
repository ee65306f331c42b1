// fxscan polls a broker for forex/gold quotes, runs parameter-driven
// strategies over them and submits risk-gated orders. All components are
// constructed here and injected explicitly; nothing holds global state.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/evdnx/fxscan/adaptive"
	"github.com/evdnx/fxscan/broker"
	"github.com/evdnx/fxscan/config"
	"github.com/evdnx/fxscan/executor"
	"github.com/evdnx/fxscan/feed"
	"github.com/evdnx/fxscan/logger"
	"github.com/evdnx/fxscan/notify"
	"github.com/evdnx/fxscan/registry"
	"github.com/evdnx/fxscan/risk"
	"github.com/evdnx/fxscan/scanner"
	"github.com/evdnx/fxscan/strategy"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.NewZapLogger()
	if err != nil {
		os.Exit(1)
	}

	reg, err := registry.Load(getenv("REGISTRY_PATH", "registry.yaml"), log)
	if err != nil {
		log.Error("registry_load_failed", logger.Err(err))
		os.Exit(1)
	}

	dryRun := getenvBool("DRY_RUN", true)
	callTimeout := time.Duration(getenvInt("BROKER_TIMEOUT_SEC", 10)) * time.Second

	var bk broker.Broker
	if dryRun {
		bk = broker.NewPaperBroker(getenvFloat("PAPER_BALANCE", 10_000))
		log.Info("broker_paper")
	} else {
		bk = broker.NewRESTBroker(
			getenv("BROKER_API_URL", "https://api-fxpractice.oanda.com"),
			os.Getenv("BROKER_API_TOKEN"),
			os.Getenv("BROKER_ACCOUNT_ID"),
			callTimeout,
		)
		log.Info("broker_rest", logger.String("url", getenv("BROKER_API_URL", "")))
	}

	// One strategy instance per named bundle; accounts referencing the same
	// bundle share the instance, and with it the adaptation state.
	strategies := make(map[string]*strategy.Strategy)
	var pairs []scanner.Pair
	for _, acct := range reg.Accounts {
		st, ok := strategies[acct.StrategyName]
		if !ok {
			st, err = strategy.New(acct.StrategyName, acct.Instruments,
				reg.Strategies[acct.StrategyName], log)
			if err != nil {
				log.Error("strategy_build_failed",
					logger.String("account", acct.AccountID),
					logger.Err(err),
				)
				continue
			}
			strategies[acct.StrategyName] = st
		}
		pairs = append(pairs, scanner.Pair{
			AccountID: acct.AccountID,
			Strategy:  st,
			Gate:      risk.NewGate(*acct.Risk, nil),
			Broker:    bk,
		})
	}
	if len(pairs) == 0 {
		log.Error("no_runnable_accounts")
		os.Exit(1)
	}

	exec := executor.New(bk, executor.Config{
		OrderType:       getenv("ORDER_TYPE", "market"),
		LimitOffsetPips: getenvFloat("LIMIT_OFFSET_PIPS", 1),
		RiskPerTrade:    getenvFloat("RISK_PER_TRADE", 0),
		MaxOrdersPerDay: getenvInt("MAX_ORDERS_PER_DAY", 10),
	}, log)

	var notifier notify.Notifier = notify.Nop{}
	if url := os.Getenv("WEBHOOK_URL"); url != "" {
		notifier = notify.NewWebhook(url, log)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := scanner.Options{
		Interval:    time.Duration(getenvInt("SCAN_INTERVAL_SEC", 300)) * time.Second,
		CallTimeout: callTimeout,
	}
	var candleFeed *feed.Feed
	if url := os.Getenv("FEED_URL"); url != "" {
		candleFeed = feed.New(url, log)
		opts.Events = candleFeed.Events()
		go candleFeed.Run(ctx)
	}

	sc := scanner.New(pairs, exec, notifier, log, opts)

	all := make([]*strategy.Strategy, 0, len(strategies))
	for _, st := range strategies {
		all = append(all, st)
	}
	ctrl, err := adaptive.New(config.DefaultAdaptiveConfig(), all, log, nil)
	if err != nil {
		log.Error("adaptive_build_failed", logger.Err(err))
		os.Exit(1)
	}
	go ctrl.Run(ctx)

	go func() {
		addr := getenv("METRICS_ADDR", ":9100")
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn("metrics_server_failed", logger.Err(err))
		}
	}()

	log.Info("scanner_started",
		logger.Int("pairs", len(pairs)),
		logger.Int("strategies", len(strategies)),
		logger.Bool("dry_run", dryRun),
	)
	sc.Run(ctx)
	log.Info("scanner_stopped")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
