package llm

import (
	"encoding/base64"
	"mime"
	"path/filepath"

	"github.com/joseph-ayodele/register-extractor/constants"
)

// DataURL encodes img as a base64 data URL.
func DataURL(img Image) string {
	return "data:" + MIMEType(img) + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// MIMEType returns img.MIMEType, or a guess from the file name.
func MIMEType(img Image) string {
	if img.MIMEType != "" {
		return img.MIMEType
	}
	ext := constants.NormalizeExt(filepath.Ext(img.Name))
	if mt := mime.TypeByExtension("." + ext); mt != "" {
		return mt
	}
	// fallbacks
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
