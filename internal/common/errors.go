package common

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrConfig       = errors.New("configuration error")

	// ErrRecognition marks a failed or timed-out call to the recognition service.
	ErrRecognition = errors.New("recognition failed")
	// ErrInvalidImage marks an upload that could not be decoded as a supported image.
	ErrInvalidImage = errors.New("invalid image")
	// ErrUnparsableResponse marks recognition text without a JSON array. It is reported, never fatal.
	ErrUnparsableResponse = errors.New("unparsable response")
	// ErrMalformedRecord marks an array element that is not a flat object.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrEmptyBatch is returned when a run is requested without any images.
	ErrEmptyBatch = errors.New("empty batch")
)

// Stages an ImageError can be attributed to.
const (
	StagePrepare   = "prepare"
	StageRecognize = "recognize"
)

// ImageError attributes a failure to one source image and pipeline stage.
type ImageError struct {
	Source string
	Stage  string
	Err    error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Source, e.Stage, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus maps the error taxonomy onto response codes for the web presenter.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrEmptyBatch), errors.Is(err, ErrInvalidInput), errors.Is(err, ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, ErrRecognition):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
