package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/async"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	var (
		out      string
		initial  bool
		debounce time.Duration
		timeout  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Process register images as they appear in a folder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(root, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			sessionID := uuid.New().String()
			collector := newWatchCollector()

			handle := watchHandler(a, collector, sessionID, out)

			q := async.NewQueue(handle, a.logger, async.WithWorkers(1), async.WithProcessTimeout(timeout))
			defer func() {
				sctx, cancel := context.WithTimeout(context.Background(), timeout)
				defer cancel()
				q.Shutdown(sctx)
			}()

			events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
				Roots:       []string{args[0]},
				InitialScan: initial,
				SkipHidden:  true,
				Debounce:    debounce,
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}
			a.logger.Info("watch.started", "batch_id", sessionID, "dir", args[0], "out", out)

			for {
				select {
				case path, ok := <-events:
					if !ok {
						return nil
					}
					if err := q.Enqueue(ctx, async.Job{Path: path}); err != nil {
						a.logger.Warn("watch.enqueue_failed", "path", path, "error", err)
					}
				case err, ok := <-errs:
					if !ok {
						errs = nil
						continue
					}
					a.logger.Warn("watch.error", "error", err)
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", constants.DefaultExportFileName, "output XLSX path, rewritten after each image")
	cmd.Flags().BoolVar(&initial, "initial", true, "process images already in the folder")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait for writes to settle before processing a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "per-image processing timeout")
	return cmd
}

// watchHandler processes one queued file and rewrites the session workbook.
// A file whose content was already processed in this session is skipped, so a
// late write event on an unchanged file does not append its rows twice.
func watchHandler(a *app, collector *watchCollector, sessionID, out string) async.HandlerFunc {
	return func(ctx context.Context, job async.Job) error {
		ctx = common.WithBatchID(ctx, sessionID)
		sub, err := ingest.FromFile(job.Path, a.maxUploadBytes())
		if err != nil {
			return err
		}
		if !collector.claim(sub.Digest) {
			a.logger.Info("watch.duplicate", "batch_id", sessionID, "source", sub.Name, "digest", sub.DigestHex())
			return nil
		}
		outcome := a.proc.ProcessImage(ctx, sub)
		if outcome.Status == constants.OutcomeFailed {
			collector.release(sub.Digest)
			return outcome.Err
		}
		table := collector.add(sub.Name, outcome.Records, outcome.Keys)
		if err := a.exporter.WriteFile(out, table); err != nil {
			return common.WrapError(err, "write "+out)
		}
		a.logger.Info("watch.exported",
			"batch_id", sessionID,
			"source", sub.Name,
			"status", string(outcome.Status),
			"rows", table.Len(),
			"out", out,
		)
		return nil
	}
}

// watchCollector accumulates rows across the watch session.
type watchCollector struct {
	mu   sync.Mutex
	agg  *register.Aggregator
	done map[uint64]struct{}
}

func newWatchCollector() *watchCollector {
	return &watchCollector{agg: register.NewAggregator(), done: make(map[uint64]struct{})}
}

// claim reports whether digest is new to the session and marks it taken.
func (c *watchCollector) claim(digest uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.done[digest]; ok {
		return false
	}
	c.done[digest] = struct{}{}
	return true
}

// release forgets digest so a failed file can be retried on its next event.
func (c *watchCollector) release(digest uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.done, digest)
}

func (c *watchCollector) add(source string, recs []register.Record, keys []string) register.Table {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.agg.Add(source, recs, keys)
	return c.agg.Table()
}
