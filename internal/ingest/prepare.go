package ingest

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/joseph-ayodele/register-extractor/internal/common"
	"github.com/joseph-ayodele/register-extractor/internal/llm"
)

// PrepareOptions bound what is sent to the recognition service.
type PrepareOptions struct {
	MaxDimension int // longest side in pixels; 0 keeps the original size
	JPEGQuality  int // 1..100; 0 means 90
}

// Prepare decodes sub, applies EXIF orientation, downsizes it to fit MaxDimension
// and re-encodes it as JPEG. Anything that does not decode is ErrInvalidImage.
func Prepare(sub Submission, opts PrepareOptions) (llm.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(sub.Data), imaging.AutoOrientation(true))
	if err != nil {
		return llm.Image{}, fmt.Errorf("%w: %s: %v", common.ErrInvalidImage, sub.Name, err)
	}

	if m := opts.MaxDimension; m > 0 {
		b := img.Bounds()
		if b.Dx() > m || b.Dy() > m {
			img = imaging.Fit(img, m, m, imaging.Lanczos)
		}
	}

	q := opts.JPEGQuality
	if q <= 0 || q > 100 {
		q = 90
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
		return llm.Image{}, fmt.Errorf("encode %s: %w", sub.Name, err)
	}
	return llm.Image{Name: sub.Name, Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}
