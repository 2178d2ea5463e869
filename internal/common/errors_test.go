package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrEmptyBatch))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("upload: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(&ImageError{Source: "a.jpg", Stage: StagePrepare, Err: ErrInvalidImage}))
	assert.Equal(t, http.StatusBadGateway, HTTPStatus(WrapError(ErrRecognition, "gemini")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("disk full")))
}

func TestImageError(t *testing.T) {
	err := &ImageError{Source: "p1.jpg", Stage: StageRecognize, Err: ErrRecognition}
	assert.Equal(t, "p1.jpg: recognize: recognition failed", err.Error())
	assert.True(t, errors.Is(err, ErrRecognition))
	assert.Nil(t, WrapError(nil, "x"))
}

func TestLogAttrs(t *testing.T) {
	assert.Empty(t, LogAttrs(context.Background()))

	ctx := WithSource(WithBatchID(WithRequestID(context.Background(), "r1"), "b1"), "p.jpg")
	assert.Equal(t, []any{"batch_id", "b1", "source", "p.jpg"}, LogAttrs(ctx))
	assert.Equal(t, "r1", RequestIDFromContext(ctx))
}
