package processor

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"imgpilot/internal/failure"
	"imgpilot/pkg/imgutil"
)

// decodeSource decodes an in-memory source file. WebP and AVIF decoders are
// registered by their encoder packages.
func decodeSource(path string, data []byte) (image.Image, error) {
	kind := imgutil.SniffBytes(data)
	if !kind.Decodable() {
		return nil, failure.New(failure.UnsupportedFormat, "decode", "%s: unsupported source type %s", path, kind)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, failure.Wrap(failure.EncodeError, "decode "+kind.String(), path, err)
	}
	return img, nil
}
