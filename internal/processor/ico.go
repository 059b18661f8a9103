package processor

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// IconSizes are the square edge lengths written into every ICO file.
var IconSizes = []int{16, 32, 48, 64, 128, 256}

// encodeICO builds a multi-resolution icon. Each entry is the source fitted
// inside the square, centred on a transparent canvas and stored as PNG.
func encodeICO(img image.Image, algo Algorithm) ([]byte, error) {
	entries := make([][]byte, 0, len(IconSizes))
	for _, size := range IconSizes {
		fitted, err := fitSquare(img, size, algo)
		if err != nil {
			return nil, err
		}

		canvas := image.NewNRGBA(image.Rect(0, 0, size, size))
		fb := fitted.Bounds()
		offset := image.Pt((size-fb.Dx())/2, (size-fb.Dy())/2)
		xdraw.Draw(canvas, fb.Sub(fb.Min).Add(offset), fitted, fb.Min, xdraw.Src)

		var buf bytes.Buffer
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, err
		}
		entries = append(entries, buf.Bytes())
	}

	const (
		dirSize   = 6
		entrySize = 16
	)

	var out bytes.Buffer
	_ = binary.Write(&out, binary.LittleEndian, [3]uint16{0, 1, uint16(len(entries))})

	offset := uint32(dirSize + entrySize*len(entries))
	for i, data := range entries {
		edge := byte(IconSizes[i])
		if IconSizes[i] >= 256 {
			edge = 0
		}
		out.Write([]byte{edge, edge, 0, 0})
		_ = binary.Write(&out, binary.LittleEndian, uint16(1))
		_ = binary.Write(&out, binary.LittleEndian, uint16(32))
		_ = binary.Write(&out, binary.LittleEndian, uint32(len(data)))
		_ = binary.Write(&out, binary.LittleEndian, offset)
		offset += uint32(len(data))
	}
	for _, data := range entries {
		out.Write(data)
	}
	return out.Bytes(), nil
}
