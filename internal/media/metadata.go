// Package media removes embedded metadata from image attachments.
package media

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/peer-review/internal/model"
)

// Re-encoding through the standard codecs drops EXIF, GPS and text chunks,
// since neither encoder writes ancillary metadata.
type codec struct {
	decode func(io.Reader) (image.Image, error)
	encode func(io.Writer, image.Image) error
}

var codecs = map[string]codec{
	"image/jpeg": {
		decode: jpeg.Decode,
		encode: func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 92})
		},
	},
	"image/png": {decode: png.Decode, encode: png.Encode},
}

// Strippable reports whether attachments of contentType can be cleaned.
func Strippable(contentType string) bool {
	_, ok := codecs[contentType]
	return ok
}

// StripMetadata returns a metadata-free copy of an image. Data of other types
// is returned unchanged.
func StripMetadata(data []byte, contentType string) ([]byte, error) {
	c, ok := codecs[contentType]
	if !ok {
		return data, nil
	}
	img, err := c.decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", contentType, err)
	}
	var buf bytes.Buffer
	if err := c.encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode %s: %w", contentType, err)
	}
	return buf.Bytes(), nil
}

// StripAttachment swaps the attachment's data for a cleaned copy and reports
// whether it did. A failed strip leaves the attachment as it was.
func StripAttachment(a *model.Attachment) (bool, error) {
	if !Strippable(a.ContentType) {
		return false, nil
	}
	out, err := StripMetadata(a.Data, a.ContentType)
	if err != nil {
		return false, fmt.Errorf("strip %s: %w", a.Filename, err)
	}
	a.Data = out
	return true, nil
}
