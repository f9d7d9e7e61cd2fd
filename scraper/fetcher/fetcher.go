// Package fetcher loads a minifig's product page and waits for the embedded
// chart data to materialize. The data blocks are injected client-side well
// after navigation completes, so the fetcher polls the live DOM for the
// block marker instead of trusting the initial document.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/brickpulse/brickpulse/pkg/errors"
	"github.com/brickpulse/brickpulse/scraper/blocks"
	"github.com/brickpulse/brickpulse/scraper/renderer"
)

const urlTemplate = "https://www.brickeconomy.com/minifig/%s"

// SleepFunc waits for an interval or until the context is cancelled.
// Tests substitute a no-op to simulate instantaneous readiness.
type SleepFunc func(ctx context.Context, d time.Duration)

// Options bound the readiness poll.
type Options struct {
	Attempts int           // polling budget (default 30)
	Interval time.Duration // delay between polls (default 1s)
	DebugDir string        // where timeout snapshots are written
	Sleep    SleepFunc
}

// Fetcher retrieves rendered markup for one item at a time.
type Fetcher struct {
	renderer renderer.Renderer
	opts     Options
}

// New creates a Fetcher over the given renderer.
func New(r renderer.Renderer, opts Options) *Fetcher {
	if opts.Attempts <= 0 {
		opts.Attempts = 30
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepCtx
	}
	return &Fetcher{renderer: r, opts: opts}
}

// Fetch navigates to the item's page and polls the rendered document for the
// data-block marker, returning the markup as soon as it appears. The browser
// session is always torn down before returning. Exhausting the polling budget
// snapshots the last observed markup for operator debugging and fails with a
// render-timeout classification.
func (f *Fetcher) Fetch(ctx context.Context, itemID string) (string, error) {
	url := fmt.Sprintf(urlTemplate, itemID)
	zap.L().Info("Loading page", zap.String("item_id", itemID), zap.String("url", url))

	sess, err := f.renderer.Open(ctx, url)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrCodeRenderError, "failed to open page", err)
	}
	defer sess.Close()

	var markup string
	for attempt := 0; attempt < f.opts.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeRenderError, "fetch cancelled", err)
		}
		markup, err = sess.HTML(ctx)
		if err != nil {
			return "", apperrors.Wrap(apperrors.ErrCodeRenderError, "failed to read markup", err)
		}
		if strings.Contains(markup, blocks.Marker) {
			return markup, nil
		}
		f.opts.Sleep(ctx, f.opts.Interval)
	}

	f.snapshotTimeout(itemID, markup)
	return "", apperrors.New(apperrors.ErrCodeRenderTimeout,
		fmt.Sprintf("timed out waiting for data block on %s", itemID))
}

// snapshotTimeout preserves the last markup seen before giving up. The
// content is irrelevant to the pipeline; it exists for operator diagnosis.
func (f *Fetcher) snapshotTimeout(itemID, markup string) {
	if f.opts.DebugDir == "" {
		return
	}
	if err := os.MkdirAll(f.opts.DebugDir, 0o755); err != nil {
		zap.L().Warn("Failed to create debug dir", zap.Error(err))
		return
	}
	path := filepath.Join(f.opts.DebugDir, fmt.Sprintf("debug_timeout_%s.html", itemID))
	if err := os.WriteFile(path, []byte(markup), 0o644); err != nil {
		zap.L().Warn("Failed to write timeout snapshot", zap.String("path", path), zap.Error(err))
		return
	}
	zap.L().Info("Wrote timeout snapshot", zap.String("path", path))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
