package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/export"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/pipeline"
)

func newBatchCmd(root *rootOptions) *cobra.Command {
	var (
		out        string
		printTable bool
	)
	cmd := &cobra.Command{
		Use:   "batch <file-or-dir>...",
		Short: "Process register images and write one spreadsheet",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			a, err := newApp(root, cmd.ErrOrStderr(), pipeline.WithProgress(logProgress))
			if err != nil {
				return err
			}
			return runBatch(ctx, a, args, out, printTable, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", constants.DefaultExportFileName, "output XLSX path")
	cmd.Flags().BoolVar(&printTable, "print", false, "also print the table to stdout")
	return cmd
}

func runBatch(ctx context.Context, a *app, paths []string, out string, printTable bool, stdout, stderr io.Writer) error {
	subs, missing := collectSubmissions(paths, a.maxUploadBytes(), a.logger)

	res, err := a.proc.Process(ctx, subs)
	if errors.Is(err, common.ErrEmptyBatch) {
		a.logger.Error("batch.empty", "paths", len(paths), "unreadable", missing)
		_, _ = fmt.Fprintln(stderr, "no register images found; nothing exported")
		return exitError{reason: "empty batch"}
	}
	if err != nil {
		return err
	}

	writeSummary(stderr, res)

	if res.AllFailed() {
		a.logger.Error("batch.all_failed", "batch_id", res.BatchID, "images", len(res.Outcomes))
		return exitError{reason: "every image failed"}
	}

	if printTable {
		export.RenderTable(stdout, res.Table)
	}
	if err := a.exporter.WriteFile(out, res.Table); err != nil {
		return common.WrapError(err, "write "+out)
	}
	_, _ = fmt.Fprintf(stderr, "wrote %d rows from %d images to %s\n", res.Rows(), res.Succeeded(), out)
	return nil
}

// collectSubmissions expands directories and reads files. Unreadable inputs are logged and counted.
func collectSubmissions(paths []string, maxBytes int64, logger *slog.Logger) ([]ingest.Submission, int) {
	var (
		subs    []ingest.Submission
		skipped int
	)
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			logger.Error("batch.input.unreadable", "path", p, "error", err)
			skipped++
			continue
		}
		if info.IsDir() {
			found, results, stats, err := ingest.Directory(p, true, maxBytes)
			if err != nil {
				logger.Error("batch.dir.failed", "path", p, "error", err)
				skipped++
				continue
			}
			for _, r := range results {
				if r.Err != "" {
					logger.Warn("batch.input.unreadable", "path", r.Path, "error", r.Err)
				}
			}
			logger.Info("batch.dir.scanned",
				"path", p,
				"matched", stats.Matched,
				"succeeded", stats.Succeeded,
				"duplicates", stats.Duplicates,
				"failed", stats.Failed,
			)
			skipped += int(stats.Failed)
			subs = append(subs, found...)
			continue
		}
		sub, err := ingest.FromFile(p, maxBytes)
		if err != nil {
			logger.Error("batch.input.unreadable", "path", p, "error", err)
			skipped++
			continue
		}
		subs = append(subs, sub)
	}
	return subs, skipped
}

// logProgress goes through slog.Default, which newApp replaces after the option is built.
func logProgress(done, total int, out pipeline.Outcome) {
	slog.Default().Info("batch.progress",
		"done", done,
		"total", total,
		"source", out.Source,
		"status", string(out.Status),
	)
}

func writeSummary(w io.Writer, res pipeline.Result) {
	for _, o := range res.Outcomes {
		line := fmt.Sprintf("%-8s %-40s rows=%d", o.Status, o.Source, len(o.Records))
		if len(o.Diagnostics) > 0 {
			line += fmt.Sprintf(" diagnostics=%d", len(o.Diagnostics))
		}
		if o.Err != nil {
			line += " error=" + o.Err.Error()
		}
		_, _ = fmt.Fprintln(w, line)
	}
	_, _ = fmt.Fprintf(w, "batch %s: %d ok, %d failed, %d skipped, %d rows\n",
		res.BatchID, res.Succeeded(), res.Failed(), res.Skipped(), res.Rows())
}
