package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
)

// Recognize implements llm.Recognizer using chat/completions with one image part.
func (c *Client) Recognize(ctx context.Context, img llm.Image, instructions string) (string, error) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(ctx, rid)
	start := time.Now()
	attrs := append([]any{"req_id", rid, "model", c.cfg.Model}, common.LogAttrs(ctx)...)

	c.log.Info("llm.recognize.start", append(attrs, "provider", "openai", "image_bytes", len(img.Data))...)

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"messages": []map[string]any{
			{
				"role": "user",
				"content": []map[string]any{
					{"type": "text", "text": instructions},
					{"type": "image_url", "image_url": map[string]any{"url": llm.DataURL(img)}},
				},
			},
		},
	}
	if c.cfg.MaxTokens > 0 {
		body["max_tokens"] = c.cfg.MaxTokens
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, _, err := llm.SendJSON(ctx, c.httpClient, endpoint, body, headers, c.log)
	if err != nil {
		c.log.Error("llm.recognize.http_error", append(attrs, "error", err, "elapsed_ms", time.Since(start).Milliseconds())...)
		return "", fmt.Errorf("%w: openai: %v", common.ErrRecognition, err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.recognize.decode_error", append(attrs, "error", err, "raw_bytes", len(raw))...)
		return "", fmt.Errorf("%w: decode openai response: %v", common.ErrRecognition, err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.recognize.no_choices", attrs...)
		return "", fmt.Errorf("%w: no choices in openai response", common.ErrRecognition)
	}

	text := strings.TrimSpace(cc.Choices[0].Message.Content)
	c.log.Info("llm.recognize.ok",
		append(attrs,
			"finish_reason", cc.Choices[0].FinishReason,
			"text_len", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)...,
	)
	return text, nil
}
