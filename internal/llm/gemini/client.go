// Package gemini implements llm.Recognizer on the Gemini generateContent REST API.
package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
)

// Config for the Gemini client.
type Config struct {
	APIKey      string
	BaseURL     string // default https://generativelanguage.googleapis.com/v1beta
	Model       string // default gemini-2.5-flash
	Temperature float32
	Timeout     time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// Model is the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content      `json:"contents"`
	GenerationConfig map[string]any `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Recognize implements llm.Recognizer.
func (c *Client) Recognize(ctx context.Context, img llm.Image, instructions string) (string, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()
	attrs := append([]any{"req_id", rid, "model", c.cfg.Model}, common.LogAttrs(ctx)...)

	c.log.Info("llm.recognize.start", append(attrs, "provider", "gemini", "image_bytes", len(img.Data))...)

	body := generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: instructions},
				{InlineData: &inlineData{
					MimeType: llm.MIMEType(img),
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				}},
			},
		}},
		GenerationConfig: map[string]any{"temperature": c.cfg.Temperature},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/models/" + url.PathEscape(c.cfg.Model) + ":generateContent"
	headers := map[string]string{"x-goog-api-key": c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.recognize.http_error", append(attrs, "error", err, "elapsed_ms", time.Since(start).Milliseconds())...)
		return "", fmt.Errorf("%w: gemini: %v", common.ErrRecognition, err)
	}

	var gr generateResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		c.log.Error("llm.recognize.decode_error", append(attrs, "error", err, "raw_bytes", len(raw))...)
		return "", fmt.Errorf("%w: decode gemini response: %v", common.ErrRecognition, err)
	}
	if br := gr.PromptFeedback.BlockReason; br != "" {
		c.log.Error("llm.recognize.blocked", append(attrs, "block_reason", br)...)
		return "", fmt.Errorf("%w: gemini blocked the request: %s", common.ErrRecognition, br)
	}
	if len(gr.Candidates) == 0 {
		c.log.Error("llm.recognize.no_candidates", attrs...)
		return "", fmt.Errorf("%w: no candidates in gemini response", common.ErrRecognition)
	}

	var b strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	text := strings.TrimSpace(b.String())

	c.log.Info("llm.recognize.ok",
		append(attrs,
			"finish_reason", gr.Candidates[0].FinishReason,
			"text_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)...,
	)
	return text, nil
}
