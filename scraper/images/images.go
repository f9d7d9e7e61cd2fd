// Package images mirrors minifig product images into a local directory so
// downstream dashboards can serve them without hitting the image host.
package images

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/gocolly/colly"
	"go.uber.org/zap"

	"github.com/brickpulse/brickpulse/pkg/retry"
)

const urlTemplate = "https://img.bricklink.com/ItemImage/MN/0/%s.png"

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Mirror downloads missing item images. Downloads already on disk are
// skipped; individual failures are logged and skipped, never fatal.
type Mirror struct {
	dir       string
	collector *colly.Collector
}

// NewMirror creates a mirror writing PNGs into dir.
func NewMirror(dir string) *Mirror {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.AllowURLRevisit(),
	)
	c.OnResponse(func(r *colly.Response) {
		// The image host keys files by item id; the URL basename is the
		// destination filename.
		name := path.Base(r.Request.URL.Path)
		dest := filepath.Join(dir, name)
		if err := r.Save(dest); err != nil {
			zap.L().Warn("Failed to save image", zap.String("path", dest), zap.Error(err))
			return
		}
		zap.L().Info("Saved image", zap.String("path", dest))
	})
	return &Mirror{dir: dir, collector: c}
}

// Sync fetches the image for every id not already mirrored and returns the
// number of ids attempted.
func (m *Mirror) Sync(ctx context.Context, ids []string) (int, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return 0, err
	}

	cfg := retry.DefaultConfig()
	cfg.Logger = zap.L()

	attempted := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return attempted, err
		}
		dest := filepath.Join(m.dir, id+".png")
		if _, err := os.Stat(dest); err == nil {
			zap.L().Debug("Image already mirrored", zap.String("item_id", id))
			continue
		}
		attempted++
		url := fmt.Sprintf(urlTemplate, id)
		err := retry.Do(ctx, cfg, func() error {
			return m.collector.Visit(url)
		})
		if err != nil {
			zap.L().Warn("Failed to download image",
				zap.String("item_id", id),
				zap.String("url", url),
				zap.Error(err))
		}
	}
	return attempted, nil
}
