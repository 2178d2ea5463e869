package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/export"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
	"github.com/joseph-ayodele/register-extractor/internal/llm/provider"
	"github.com/joseph-ayodele/register-extractor/internal/pipeline"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// exitError ends the process with status 1 after the command already reported why.
type exitError struct{ reason string }

func (e exitError) Error() string { return e.reason }

type rootOptions struct {
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "register-extractor",
		Short:         "Extract patient rows from photos of handwritten registers into a spreadsheet",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "json", "log output format: json or text")

	root.AddCommand(newBatchCmd(opts), newServeCmd(opts), newWatchCmd(opts))
	return root
}

// app is the wiring shared by every subcommand.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	proc     *pipeline.Processor
	exporter *export.Service
}

func newApp(opts *rootOptions, stderr io.Writer, extra ...pipeline.Option) (*app, error) {
	cfg := common.LoadConfig()
	logger, err := newLogger(opts.logFormat, cfg.LogLevel, stderr)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rec, err := provider.New(cfg.LLM, logger)
	if err != nil {
		return nil, err
	}

	normalizer, err := register.DefaultNormalizer().WithCorrections(cfg.Normalize.ExtraNameCorrections)
	if err != nil {
		return nil, common.NewAppError("CONFIG_ERROR", "NAME_CORRECTIONS", fmt.Errorf("%w: %v", common.ErrConfig, err))
	}
	popts := append([]pipeline.Option{
		pipeline.WithNormalizer(normalizer),
		pipeline.WithPrepareOptions(ingest.PrepareOptions{
			MaxDimension: cfg.Images.MaxDimension,
			JPEGQuality:  cfg.Images.JPEGQuality,
		}),
	}, extra...)

	logger.Info("app.configured",
		"provider", cfg.LLM.Provider,
		"model", modelName(rec, cfg.LLM.Model),
		"max_dimension", cfg.Images.MaxDimension,
		"extra_corrections", len(cfg.Normalize.ExtraNameCorrections),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		proc:     pipeline.NewProcessor(rec, logger, popts...),
		exporter: export.NewService(cfg.Export, logger),
	}, nil
}

func (a *app) maxUploadBytes() int64 {
	return int64(a.cfg.Images.MaxUploadMB) << 20
}

func newLogger(format string, level slog.Level, w io.Writer) (*slog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "", "json":
		return slog.New(slog.NewJSONHandler(w, hopts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, hopts)), nil
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", common.ErrInvalidInput, format)
	}
}

// modelName reports the model the recognizer resolved, which may be a client default.
func modelName(rec llm.Recognizer, configured string) string {
	if m, ok := rec.(interface{ Model() string }); ok {
		return m.Model()
	}
	return configured
}
