// Package server exposes batch extraction over HTTP and a gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/export"
	"github.com/joseph-ayodele/register-extractor/internal/extract"
	"github.com/joseph-ayodele/register-extractor/internal/ingest"
	"github.com/joseph-ayodele/register-extractor/internal/pipeline"
)

// uploadField is the multipart field carrying register images.
const uploadField = "images"

// BatchProcessor is the pipeline behavior the handlers depend on.
type BatchProcessor interface {
	Process(ctx context.Context, subs []ingest.Submission) (pipeline.Result, error)
}

type Handler struct {
	proc           BatchProcessor
	exporter       *export.Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewHandler(proc BatchProcessor, exporter *export.Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{proc: proc, exporter: exporter, maxUploadBytes: maxUploadBytes, logger: logger}
}

type rejectedUpload struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

type outcomeDTO struct {
	Source      string               `json:"source"`
	Digest      string               `json:"digest"`
	Status      string               `json:"status"`
	Records     int                  `json:"records"`
	Strategy    string               `json:"strategy,omitempty"`
	Diagnostics []extract.Diagnostic `json:"diagnostics,omitempty"`
	Error       string               `json:"error,omitempty"`
	ElapsedMS   int64                `json:"elapsed_ms"`
}

type extractResponse struct {
	BatchID  string           `json:"batch_id"`
	Columns  []string         `json:"columns"`
	Rows     [][]string       `json:"rows"`
	Outcomes []outcomeDTO     `json:"outcomes"`
	Rejected []rejectedUpload `json:"rejected,omitempty"`
}

type errorResponse struct {
	Error    string           `json:"error"`
	Rejected []rejectedUpload `json:"rejected,omitempty"`
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) UploadForm(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uploadPage))
}

// Extract runs the batch and answers with the table as JSON.
func (h *Handler) Extract(c *gin.Context) {
	res, rejected, ok := h.run(c)
	if !ok {
		return
	}

	body := extractResponse{
		BatchID:  res.BatchID,
		Columns:  res.Table.Columns,
		Rows:     make([][]string, 0, res.Table.Len()),
		Outcomes: make([]outcomeDTO, 0, len(res.Outcomes)),
		Rejected: rejected,
	}
	for i := range res.Table.Rows {
		body.Rows = append(body.Rows, res.Table.Values(i))
	}
	for _, o := range res.Outcomes {
		dto := outcomeDTO{
			Source:      o.Source,
			Digest:      o.Digest,
			Status:      string(o.Status),
			Records:     len(o.Records),
			Strategy:    o.Strategy,
			Diagnostics: o.Diagnostics,
			ElapsedMS:   o.Elapsed.Milliseconds(),
		}
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
		body.Outcomes = append(body.Outcomes, dto)
	}
	c.JSON(http.StatusOK, body)
}

// Export runs the batch and answers with the workbook as an attachment.
func (h *Handler) Export(c *gin.Context) {
	res, _, ok := h.run(c)
	if !ok {
		return
	}

	b, err := h.exporter.TableXLSX(res.Table)
	if err != nil {
		h.logger.Error("server.export.failed", "batch_id", res.BatchID, "error", err)
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", h.exporter.FileName()))
	c.Header("X-Batch-Id", res.BatchID)
	c.Header("X-Images-Failed", strconv.Itoa(res.Failed()))
	c.Data(http.StatusOK, export.MIMEType, b)
}

// run reads the uploads and processes them. It writes the error response itself and reports ok=false.
func (h *Handler) run(c *gin.Context) (pipeline.Result, []rejectedUpload, bool) {
	subs, rejected, err := h.readUploads(c)
	if err != nil {
		h.logger.Warn("server.upload.invalid", "error", err)
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return pipeline.Result{}, nil, false
	}
	if len(subs) == 0 {
		err := common.ErrEmptyBatch
		if len(rejected) > 0 {
			err = fmt.Errorf("%w: no acceptable images", common.ErrInvalidInput)
		}
		h.logger.Warn("server.batch.rejected", "rejected", len(rejected), "error", err)
		c.JSON(common.HTTPStatus(err), errorResponse{Error: err.Error(), Rejected: rejected})
		return pipeline.Result{}, nil, false
	}

	res, err := h.proc.Process(c.Request.Context(), subs)
	if err != nil {
		h.logger.Error("server.batch.failed", "error", err)
		c.JSON(common.HTTPStatus(err), errorResponse{Error: err.Error()})
		return pipeline.Result{}, nil, false
	}

	h.logger.Info("server.extract.done",
		"batch_id", res.BatchID,
		"images", len(res.Outcomes),
		"failed", res.Failed(),
		"rows", res.Rows(),
		"rejected", len(rejected),
	)
	return res, rejected, true
}

func (h *Handler) readUploads(c *gin.Context) ([]ingest.Submission, []rejectedUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: read multipart form: %v", common.ErrInvalidInput, err)
	}

	files := form.File[uploadField]
	subs := make([]ingest.Submission, 0, len(files))
	var rejected []rejectedUpload
	for _, fh := range files {
		sub, err := h.readUpload(fh)
		if err != nil {
			h.logger.Warn("server.upload.rejected", "source", fh.Filename, "error", err)
			rejected = append(rejected, rejectedUpload{Source: fh.Filename, Error: err.Error()})
			continue
		}
		subs = append(subs, sub)
	}
	return subs, rejected, nil
}

func (h *Handler) readUpload(fh *multipart.FileHeader) (ingest.Submission, error) {
	f, err := fh.Open()
	if err != nil {
		return ingest.Submission{}, fmt.Errorf("open upload: %w", err)
	}
	defer func(f multipart.File) {
		if err := f.Close(); err != nil {
			h.logger.Warn("server.upload.close_error", "source", fh.Filename, "error", err)
		}
	}(f)
	return ingest.FromReader(fh.Filename, f, h.maxUploadBytes)
}
