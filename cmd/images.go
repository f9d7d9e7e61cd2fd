package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/brickpulse/brickpulse/logging"
	"github.com/brickpulse/brickpulse/scraper/config"
	"github.com/brickpulse/brickpulse/scraper/images"
	"github.com/brickpulse/brickpulse/scraper/storage"
)

// imagesCmd mirrors product images for every id already present in the
// canonical store.
var imagesCmd = &cobra.Command{
	Use:          "images",
	Short:        "download product images for collected minifigs",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.SetupLogger("brickpulse.log")
		defer logger.Sync()
		zap.ReplaceGlobals(logger)

		cfg := config.Load()
		store, err := storage.OpenRecordStore(cfg.OutputCSV)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ids := store.ItemIDs()
		mirror := images.NewMirror(cfg.ImageDir)
		attempted, err := mirror.Sync(ctx, ids)
		zap.L().Info("Image sync finished",
			zap.Int("known_ids", len(ids)),
			zap.Int("attempted", attempted))
		return err
	},
}

func init() {
	RootCmd.AddCommand(imagesCmd)
}
