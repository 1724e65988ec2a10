// Package imageio decodes uploaded classroom photos and encodes annotated
// output. Decoding goes through the standard image registry (JPEG, PNG, GIF,
// WebP) with an explicit WebP fallback for files the registry rejects.
package imageio

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

// Decode parses raw image bytes into an image.
func Decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("decode image: empty input")
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err == nil {
		return img, nil
	}

	// Some WebP encodings slip past the registered decoder
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, nil
	}

	return nil, fmt.Errorf("decode image: %w", err)
}

// DecodeBase64 converts a base64 payload (optionally a data URL) to raw bytes.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)

	data, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return data, nil
	}
	// Some camera clients send the URL-safe alphabet
	if data, uerr := base64.URLEncoding.DecodeString(s); uerr == nil {
		return data, nil
	}
	return nil, fmt.Errorf("decode base64 image: %w", err)
}

// bufferPool reuses JPEG encode buffers. A session encodes one annotated
// image per photo, so the pool keeps multi-image batches off the allocator.
var bufferPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

// EncodeJPEG renders an image as JPEG bytes at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 85
	}

	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	if err := imaging.Encode(buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// EncodeBase64 wraps raw image bytes for a JSON response.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
