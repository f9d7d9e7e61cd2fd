// Package pipeline composes the collector: fetch a rendered page, extract
// the embedded data blocks, parse the selected block into market records,
// persist the novel ones, and route anything unusable to the failure queue.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/brickpulse/brickpulse/models"
	apperrors "github.com/brickpulse/brickpulse/pkg/errors"
	"github.com/brickpulse/brickpulse/scraper/blocks"
	"github.com/brickpulse/brickpulse/scraper/parser"
	"github.com/brickpulse/brickpulse/scraper/worker"
)

// State tracks where a single item's pipeline run is.
type State int

const (
	StateIdle State = iota
	StateFetchingPage
	StateExtractingBlocks
	StateParsingRows
	StatePersisting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetchingPage:
		return "fetching_page"
	case StateExtractingBlocks:
		return "extracting_blocks"
	case StateParsingRows:
		return "parsing_rows"
	case StatePersisting:
		return "persisting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state_%d", int(s))
}

// Fetcher retrieves rendered markup for one item.
type Fetcher interface {
	Fetch(ctx context.Context, itemID string) (string, error)
}

// RecordStore persists market records with dedup-on-write.
type RecordStore interface {
	Append(records []models.MarketRecord) (int, error)
}

// FailureTracker is the durable queue of items awaiting retry.
type FailureTracker interface {
	Record(itemID string) error
	Load() ([]string, error)
	Save(ids []string) error
}

// Result is the outcome of one item's pipeline run. A zero Result (state
// idle) means the run never started, e.g. after cancellation.
type Result struct {
	ItemID  string
	State   State
	Records []models.MarketRecord
	Written int
	Err     error
}

// Pipeline drives the batch, single-test and retry-failures workflows.
type Pipeline struct {
	fetcher     Fetcher
	store       RecordStore
	failures    FailureTracker
	debugDir    string
	concurrency int
}

// New assembles a pipeline. Concurrency below 1 is treated as 1.
func New(f Fetcher, store RecordStore, failures FailureTracker, debugDir string, concurrency int) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pipeline{
		fetcher:     f,
		store:       store,
		failures:    failures,
		debugDir:    debugDir,
		concurrency: concurrency,
	}
}

// Process runs the full pipeline for one item id.
//
// Block selection mirrors the source site's ordinal convention: with two or
// more blocks, the value-sales block (index 1) is parsed with the quartile
// grammar; with exactly one, the single block is tried with the single-price
// grammar; with none the item has no data. A present-but-rowless block is
// the same failure as no blocks at all, not an error.
func (p *Pipeline) Process(ctx context.Context, itemID string) Result {
	res := Result{ItemID: itemID, State: StateFetchingPage}

	markup, err := p.fetcher.Fetch(ctx, itemID)
	if err != nil {
		return res.fail(err)
	}

	res.State = StateExtractingBlocks
	found := blocks.Extract(markup)
	zap.L().Debug("Extracted data blocks",
		zap.String("item_id", itemID),
		zap.Int("blocks", len(found)))

	res.State = StateParsingRows
	switch {
	case len(found) >= 2:
		valueSales := found[models.BlockValueSales]
		p.dumpBlock(itemID, valueSales)
		res.Records = parser.ParseQuartileRows(itemID, valueSales.Text)
	case len(found) == 1:
		res.Records = parser.ParseSinglePriceRows(itemID, found[0].Text)
	default:
		return res.fail(apperrors.New(apperrors.ErrCodeNoBlocksFound,
			fmt.Sprintf("no data blocks found for %s", itemID)))
	}
	if len(res.Records) == 0 {
		return res.fail(apperrors.New(apperrors.ErrCodeNoRowsParsed,
			fmt.Sprintf("selected block for %s matched no rows", itemID)))
	}

	res.State = StatePersisting
	written, err := p.store.Append(res.Records)
	res.Written = written
	if err != nil {
		return res.fail(err)
	}

	res.State = StateSuccess
	return res
}

func (r Result) fail(err error) Result {
	r.State = StateFailed
	r.Err = err
	return r
}

// RunBatch processes the ids sequentially or over the bounded worker pool,
// never aborting the sweep for individual failures. Only a store I/O error
// stops the workflow early.
func (p *Pipeline) RunBatch(ctx context.Context, ids []string) error {
	runID := uuid.NewString()
	zap.L().Info("Starting batch run",
		zap.String("run_id", runID),
		zap.Int("items", len(ids)),
		zap.Int("concurrency", p.concurrency))

	results := p.runAll(ctx, ids)

	var successes, failed, skipped, newRows int
	var fatal error
	for _, res := range results {
		switch {
		case res.State == StateIdle || errors.Is(res.Err, context.Canceled):
			skipped++
		case res.State == StateSuccess:
			successes++
			newRows += res.Written
			zap.L().Info("Item collected",
				zap.String("item_id", res.ItemID),
				zap.Int("rows", len(res.Records)),
				zap.Int("new_rows", res.Written))
		default:
			failed++
			zap.L().Warn("Item failed",
				zap.String("item_id", res.ItemID),
				zap.Error(res.Err))
			if isFatal(res.Err) {
				fatal = res.Err
				continue
			}
			if err := p.failures.Record(res.ItemID); err != nil {
				fatal = err
			}
		}
	}

	zap.L().Info("Batch run finished",
		zap.String("run_id", runID),
		zap.Int("successes", successes),
		zap.Int("failures", failed),
		zap.Int("skipped", skipped),
		zap.Int("new_rows", newRows))
	return fatal
}

// RunSingleTest runs the pipeline for exactly one id with per-row output,
// which is the quickest way to validate the grammars against a live page.
func (p *Pipeline) RunSingleTest(ctx context.Context, itemID string) error {
	zap.L().Info("Running single-item test", zap.String("item_id", itemID))

	res := p.Process(ctx, itemID)
	if res.State == StateSuccess {
		for _, rec := range res.Records {
			zap.L().Info("Parsed row",
				zap.String("item_id", rec.ItemID),
				zap.String("date", rec.Date.Format(models.DateLayout)),
				zap.Float64("low", rec.Low),
				zap.Float64("q1", rec.Q1),
				zap.Float64("q3", rec.Q3),
				zap.Float64("high", rec.High),
				zap.String("tooltip", rec.Tooltip))
		}
		zap.L().Info("Test run finished",
			zap.String("item_id", itemID),
			zap.Int("rows", len(res.Records)),
			zap.Int("new_rows", res.Written))
		return nil
	}

	zap.L().Warn("Test run failed", zap.String("item_id", itemID), zap.Error(res.Err))
	if isFatal(res.Err) {
		return res.Err
	}
	if errors.Is(res.Err, context.Canceled) {
		return nil
	}
	return p.failures.Record(itemID)
}

// RunRetry re-drives the pipeline for every queued failure. An id leaves the
// queue only when its attempt persisted at least one post-dedup new record;
// the retained list is persisted only after the full sweep, so an
// interrupted sweep leaves the queue file untouched.
func (p *Pipeline) RunRetry(ctx context.Context) error {
	ids, err := p.failures.Load()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		zap.L().Info("Failure queue is empty, nothing to retry")
		return nil
	}

	runID := uuid.NewString()
	zap.L().Info("Retrying failed items",
		zap.String("run_id", runID),
		zap.Int("items", len(ids)),
		zap.Int("concurrency", p.concurrency))

	results := p.runAll(ctx, ids)

	retained := make([]string, 0, len(ids))
	var recovered, newRows int
	var fatal error
	sweepComplete := true
	for i, res := range results {
		switch {
		case res.State == StateIdle || errors.Is(res.Err, context.Canceled):
			retained = append(retained, ids[i])
			sweepComplete = false
		case res.State == StateSuccess && res.Written >= 1:
			recovered++
			newRows += res.Written
			zap.L().Info("Item recovered",
				zap.String("item_id", res.ItemID),
				zap.Int("new_rows", res.Written))
		case res.State == StateSuccess:
			// Parsed fine but everything was already persisted; the queue
			// entry stays until a retry yields something new.
			retained = append(retained, ids[i])
			zap.L().Info("Item parsed but yielded no new rows",
				zap.String("item_id", res.ItemID))
		default:
			retained = append(retained, ids[i])
			zap.L().Warn("Item still failing",
				zap.String("item_id", res.ItemID),
				zap.Error(res.Err))
			if isFatal(res.Err) {
				fatal = res.Err
			}
		}
	}

	if fatal != nil || !sweepComplete {
		zap.L().Warn("Sweep incomplete, keeping failure queue as-is",
			zap.String("run_id", runID),
			zap.Error(fatal))
		return fatal
	}
	if err := p.failures.Save(retained); err != nil {
		return err
	}

	zap.L().Info("Retry run finished",
		zap.String("run_id", runID),
		zap.Int("recovered", recovered),
		zap.Int("still_failing", len(retained)),
		zap.Int("new_rows", newRows))
	return nil
}

// runAll fans the ids out over the worker pool. A store I/O failure cancels
// the remaining jobs; results for never-started ids stay at their zero value.
func (p *Pipeline) runAll(ctx context.Context, ids []string) []Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]Result, len(ids))
	jobs := make([]worker.Job, len(ids))
	for i, id := range ids {
		i, id := i, id
		jobs[i] = func(ctx context.Context) {
			res := p.Process(ctx, id)
			results[i] = res
			if isFatal(res.Err) {
				cancel()
			}
		}
	}
	worker.NewPool(p.concurrency).Run(ctx, jobs)
	return results
}

// dumpBlock preserves the selected block's raw text for operator debugging.
func (p *Pipeline) dumpBlock(itemID string, b models.RawBlock) {
	if p.debugDir == "" {
		return
	}
	if err := os.MkdirAll(p.debugDir, 0o755); err != nil {
		zap.L().Warn("Failed to create debug dir", zap.Error(err))
		return
	}
	path := filepath.Join(p.debugDir, fmt.Sprintf("%s_%s.txt", itemID, b.Category()))
	if err := os.WriteFile(path, []byte(b.Text), 0o644); err != nil {
		zap.L().Warn("Failed to dump block", zap.String("path", path), zap.Error(err))
	}
}

func isFatal(err error) bool {
	code, ok := apperrors.CodeOf(err)
	return ok && code == apperrors.ErrCodeStoreIO
}
