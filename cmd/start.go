package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/FabianBoni/Flashloab-arbitrage/arbitrage"
	"github.com/FabianBoni/Flashloab-arbitrage/cex"
	"github.com/FabianBoni/Flashloab-arbitrage/config"
	"github.com/FabianBoni/Flashloab-arbitrage/dex"
	"github.com/FabianBoni/Flashloab-arbitrage/executor"
	"github.com/FabianBoni/Flashloab-arbitrage/flashloan"
	"github.com/FabianBoni/Flashloab-arbitrage/gas"
	"github.com/FabianBoni/Flashloab-arbitrage/notify"
	"github.com/FabianBoni/Flashloab-arbitrage/scanner"
	"github.com/FabianBoni/Flashloab-arbitrage/utils"
	"github.com/FabianBoni/Flashloab-arbitrage/utils/metrics"
	"github.com/FabianBoni/Flashloab-arbitrage/venue"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage scanner",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		if err := config.LoadEnv(); err != nil {
			log.Debug("no .env file loaded", zap.Error(err))
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		cfg.ApplyEnv()
		cfg.Logger = log

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		// On-chain venues
		var (
			venues      []venue.Venue
			routerAddrs = make(map[string]common.Address)
			flashExec   *flashloan.Executor
			gasOracle   executor.GasOracle
		)
		if len(cfg.Routers) > 0 {
			ethClient, err := ethclient.Dial(cfg.RPCEndpoint)
			if err != nil {
				log.Fatal("Failed to connect to chain RPC", zap.Error(err))
			}
			defer ethClient.Close()

			routers, err := dex.FromConfig(cfg, ethClient, log)
			if err != nil {
				log.Fatal("Failed to create router venues", zap.Error(err))
			}
			for _, r := range routers {
				venues = append(venues, r)
				routerAddrs[r.Name()] = r.Address()
			}

			estimator := gas.NewEstimator(ethClient, log)
			defer estimator.Stop()
			gasOracle = estimator
			if cfg.GasLimit == 0 {
				cfg.GasLimit = gas.ArbitrageGasLimit(2)
			}

			if key := os.Getenv(config.EnvPrivateKey); key != "" && cfg.ExecutorContract != "" {
				flashExec, err = flashloan.NewExecutor(
					ethClient,
					common.HexToAddress(cfg.ExecutorContract),
					key,
					cfg.ChainID,
					cfg.ConfirmTimeout,
					log,
				)
				if err != nil {
					log.Fatal("Failed to create flash loan executor", zap.Error(err))
				}
			} else {
				log.Warn("no executor contract or private key, on-chain execution disabled")
			}
		}

		// Exchange venues
		clients := cex.FromConfig(cfg, log)
		for _, c := range clients {
			venues = append(venues, c)
		}
		var trader executor.ExchangeTrader
		if len(clients) > 0 {
			trader = cex.NewRegistry(clients)
		}

		// Notification channel
		var notifier notify.Notifier = notify.NewLog(log)
		if cfg.TelegramEnabled {
			token := os.Getenv(config.EnvTelegramToken)
			chatID := os.Getenv(config.EnvTelegramChatID)
			if token != "" && chatID != "" {
				notifier = notify.Multi{notify.NewLog(log), notify.NewTelegram(token, chatID, log)}
			} else {
				log.Warn("telegram enabled but credentials missing, using log notifier")
			}
		}

		stats := scanner.NewStats()
		if cfg.PrometheusEnabled {
			srv := metrics.Serve(stats, cfg.PrometheusEndpoint, log)
			defer srv.Close()
		}

		agg, err := arbitrage.NewAggregator(venues, cfg.QuoteCacheTTL, log)
		if err != nil {
			log.Fatal("Failed to create aggregator", zap.Error(err))
		}
		calc := arbitrage.NewCalculator(&cfg.Fees)
		classifier := arbitrage.NewClassifier(calc, &cfg.Thresholds, stats, log)

		var flash executor.FlashExecutor
		if flashExec != nil {
			flash = flashExec
		}
		dispatcher := executor.NewDispatcher(flash, trader, gasOracle, notifier, routerAddrs, cfg.GasLimit, cfg.Cooldown, log)

		sc := scanner.New(cfg, agg, classifier, dispatcher, notifier, stats, log)

		// SIGHUP resets the statistics counters.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		go func() {
			for range hup {
				sc.ResetStats()
			}
		}()

		log.Info("starting arbitrage scanner",
			zap.Int("venues", len(venues)),
			zap.Int("pairs", len(cfg.Pairs)),
			zap.Duration("scan_interval", cfg.ScanInterval))

		if err := sc.Run(ctx); err != nil && ctx.Err() == nil {
			log.Fatal("scanner stopped", zap.Error(err))
		}
		log.Info("Shutting down gracefully...")
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
