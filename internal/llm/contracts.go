package llm

import "context"

// Image is one prepared register page, ready to send.
type Image struct {
	Name     string // original upload name, used for logging only
	Data     []byte
	MIMEType string
}

// Recognizer sends an image plus instructions to a multimodal model and returns its raw text.
// The text is not guaranteed to be JSON; parsing is the caller's job.
type Recognizer interface {
	Recognize(ctx context.Context, img Image, instructions string) (string, error)
}

// RecognizerFunc adapts a plain function to Recognizer.
type RecognizerFunc func(ctx context.Context, img Image, instructions string) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, img Image, instructions string) (string, error) {
	return f(ctx, img, instructions)
}
