// Package pipeline runs register images through recognition, extraction and
// normalization, one image at a time, and aggregates the rows of a batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/register-extractor/constants"
	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/extract"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
	"github.com/joseph-ayodele/register-extractor/internal/register"
)

// ProgressFunc is called after each image with the number done so far.
type ProgressFunc func(done, total int, out Outcome)

// Processor coordinates prepare, recognize, extract and normalize for each image.
type Processor struct {
	recognizer   llm.Recognizer
	extractor    *extract.Extractor
	normalizer   *register.Normalizer
	prep         ingest.PrepareOptions
	instructions string
	progress     ProgressFunc
	logger       *slog.Logger
}

type Option func(*Processor)

func WithExtractor(e *extract.Extractor) Option {
	return func(p *Processor) {
		if e != nil {
			p.extractor = e
		}
	}
}

func WithNormalizer(n *register.Normalizer) Option {
	return func(p *Processor) {
		if n != nil {
			p.normalizer = n
		}
	}
}

func WithPrepareOptions(o ingest.PrepareOptions) Option {
	return func(p *Processor) { p.prep = o }
}

// WithInstructions overrides the prompt. By default it is built from the normalizer's corrections.
func WithInstructions(s string) Option {
	return func(p *Processor) { p.instructions = s }
}

func WithProgress(fn ProgressFunc) Option {
	return func(p *Processor) { p.progress = fn }
}

func NewProcessor(rec llm.Recognizer, logger *slog.Logger, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		recognizer: rec,
		extractor:  extract.Default(),
		normalizer: register.DefaultNormalizer(),
		prep:       ingest.PrepareOptions{MaxDimension: 2048, JPEGQuality: 90},
		logger:     logger,
	}
	for _, o := range opts {
		o(p)
	}
	if p.instructions == "" {
		p.instructions = llm.BuildInstructions(p.normalizer.NameCorrections)
	}
	return p
}

// Process runs every submission in order and aggregates their rows.
// A failing image is recorded in its Outcome and does not stop the batch.
// If ctx ends between images, the rest are marked skipped.
func (p *Processor) Process(ctx context.Context, subs []ingest.Submission) (Result, error) {
	if len(subs) == 0 {
		return Result{}, common.ErrEmptyBatch
	}

	batchID := uuid.New().String()
	ctx = common.WithBatchID(ctx, batchID)
	start := time.Now()
	p.logger.Info("pipeline.batch.start", "batch_id", batchID, "images", len(subs))

	agg := register.NewAggregator()
	res := Result{BatchID: batchID, Outcomes: make([]Outcome, 0, len(subs))}

	for i, sub := range subs {
		var out Outcome
		if err := ctx.Err(); err != nil {
			out = Outcome{
				Source: sub.Name,
				Digest: sub.DigestHex(),
				Status: constants.OutcomeSkipped,
				Err:    err,
			}
			p.logger.Warn("pipeline.image.skipped", "batch_id", batchID, "source", sub.Name, "error", err)
		} else {
			out = p.ProcessImage(ctx, sub)
		}

		agg.Add(sub.Name, out.Records, out.Keys)
		res.Outcomes = append(res.Outcomes, out)
		if p.progress != nil {
			p.progress(i+1, len(subs), out)
		}
	}

	res.Table = agg.Table()
	p.logger.Info("pipeline.batch.done",
		"batch_id", batchID,
		"images", len(subs),
		"succeeded", res.Succeeded(),
		"failed", res.Failed(),
		"skipped", res.Skipped(),
		"rows", res.Rows(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// ProcessImage handles one submission. It never returns an error; failures land in the Outcome.
func (p *Processor) ProcessImage(ctx context.Context, sub ingest.Submission) Outcome {
	ctx = common.WithSource(ctx, sub.Name)
	attrs := common.LogAttrs(ctx)
	start := time.Now()
	out := Outcome{Source: sub.Name, Digest: sub.DigestHex()}

	fail := func(stage string, err error) Outcome {
		out.Status = constants.OutcomeFailed
		out.Err = &common.ImageError{Source: sub.Name, Stage: stage, Err: err}
		out.Elapsed = time.Since(start)
		p.logger.Error("pipeline.image.failed",
			append(attrs, "stage", stage, "error", err, "elapsed_ms", out.Elapsed.Milliseconds())...)
		return out
	}

	p.logger.Info("pipeline.image.start", append(attrs, "bytes", len(sub.Data), "digest", out.Digest)...)

	img, err := ingest.Prepare(sub, p.prep)
	if err != nil {
		return fail(common.StagePrepare, err)
	}

	text, err := p.recognizer.Recognize(ctx, img, p.instructions)
	if err != nil {
		if !errors.Is(err, common.ErrRecognition) {
			err = fmt.Errorf("%w: %v", common.ErrRecognition, err)
		}
		return fail(common.StageRecognize, err)
	}

	ex := p.extractor.Extract(text)
	out.Strategy = ex.Strategy
	out.Keys = ex.Keys
	out.Diagnostics = ex.Diagnostics
	for _, d := range ex.Diagnostics {
		p.logger.Warn("pipeline.image.diagnostic",
			append(attrs, "kind", d.Kind, "index", d.Index, "message", d.Message)...)
	}

	out.Records = p.normalizer.NormalizeAll(ex.Records)
	if len(out.Records) == 0 {
		out.Status = constants.OutcomeEmpty
	} else {
		out.Status = constants.OutcomeOK
	}
	out.Elapsed = time.Since(start)

	p.logger.Info("pipeline.image.done",
		append(attrs,
			"status", string(out.Status),
			"strategy", out.Strategy,
			"records", len(out.Records),
			"diagnostics", len(out.Diagnostics),
			"elapsed_ms", out.Elapsed.Milliseconds(),
		)...,
	)
	return out
}
