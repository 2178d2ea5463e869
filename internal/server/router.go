package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/register-extractor/internal/common"
)

// NewRouter wires the upload form, health check and batch endpoints.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	if logger == nil {
		logger = slog.Default()
	}
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	if h.maxUploadBytes > 0 {
		r.MaxMultipartMemory = h.maxUploadBytes
	}

	r.GET("/", h.UploadForm)
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	api.POST("/extract", h.Extract)
	api.POST("/export", h.Export)
	return r
}

// requestLogger tags each request with an id and logs one line when it completes.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		rid := c.GetHeader("X-Request-Id")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Header("X-Request-Id", rid)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), rid))

		c.Next()

		logger.Info("http.request",
			"req_id", rid,
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"bytes", c.Writer.Size(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
