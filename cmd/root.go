package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/brickpulse/brickpulse/logging"
	"github.com/brickpulse/brickpulse/scraper/config"
	"github.com/brickpulse/brickpulse/scraper/fetcher"
	"github.com/brickpulse/brickpulse/scraper/pipeline"
	"github.com/brickpulse/brickpulse/scraper/renderer"
	"github.com/brickpulse/brickpulse/scraper/storage"
)

// defaultTestID is the item scraped when no arguments are given; it is a
// page known to carry both chart layouts at different points in its history,
// which makes it useful for grammar validation.
const defaultTestID = "SW0202b"

var retryFailures bool

// RootCmd collects minifig market data. Ids as arguments run a batch,
// --retry-failures re-drives the failure queue, and no arguments runs a
// verbose single-item test.
var RootCmd = &cobra.Command{
	Use:          "brickpulse [minifig-id ...]",
	Short:        "minifig market data collector",
	Long:         `Collects price-quartile samples from minifig product pages into a canonical CSV, tracking unrecoverable ids in a durable retry queue.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetupLogger("brickpulse.log")
		defer logger.Sync()
		zap.ReplaceGlobals(logger)

		cfg := config.Load()
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		switch {
		case retryFailures:
			return p.RunRetry(ctx)
		case len(args) > 0:
			return p.RunBatch(ctx, args)
		default:
			return p.RunSingleTest(ctx, defaultTestID)
		}
	},
}

func init() {
	RootCmd.Flags().BoolVar(&retryFailures, "retry-failures", false,
		"retry every id in the failure queue instead of scraping new ids")

	viper.SetDefault(logging.LOG_LEVEL, "debug")
	viper.AutomaticEnv()
}

// Execute runs the command tree. Individual item failures are data, not
// process errors; only unrecoverable setup or store failures exit non-zero.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildPipeline(cfg config.Config) (*pipeline.Pipeline, error) {
	store, err := storage.OpenRecordStore(cfg.OutputCSV)
	if err != nil {
		return nil, err
	}
	failures := storage.NewFailureTracker(cfg.FailedFile)

	chrome := renderer.NewChrome(cfg.Headless, cfg.NavTimeout)
	f := fetcher.New(chrome, fetcher.Options{
		Attempts: cfg.PollAttempts,
		Interval: cfg.PollInterval,
		DebugDir: cfg.DebugDir,
	})

	return pipeline.New(f, store, failures, cfg.DebugDir, cfg.Concurrency), nil
}
