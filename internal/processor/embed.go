package processor

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

const maxJPEGSegment = 0xffff

// embedExif returns encoded with blob inserted as the format's native EXIF
// container. Formats without EXIF support return encoded unchanged.
func embedExif(format Format, encoded, blob []byte, width, height int, hasAlpha bool) ([]byte, bool, error) {
	if len(blob) == 0 || !format.SupportsEXIF() {
		return encoded, false, nil
	}
	switch format {
	case FormatJPG:
		return embedJPEG(encoded, blob)
	case FormatPNG:
		return embedPNG(encoded, blob)
	case FormatWebP:
		return embedWebP(encoded, blob, width, height, hasAlpha)
	}
	return encoded, false, nil
}

// embedJPEG inserts an APP1 Exif segment directly after SOI. Blobs too large
// for a single segment are dropped.
func embedJPEG(encoded, blob []byte) ([]byte, bool, error) {
	if len(encoded) < 2 || encoded[0] != 0xff || encoded[1] != 0xd8 {
		return nil, false, fmt.Errorf("invalid JPEG SOI")
	}
	segLen := 2 + len(jpegExifHeader) + len(blob)
	if segLen > maxJPEGSegment {
		return encoded, false, nil
	}

	var buf bytes.Buffer
	buf.Grow(len(encoded) + segLen + 2)
	buf.Write(encoded[:2])
	buf.Write([]byte{0xff, 0xe1})
	_ = binary.Write(&buf, binary.BigEndian, uint16(segLen))
	buf.Write(jpegExifHeader)
	buf.Write(blob)
	buf.Write(encoded[2:])
	return buf.Bytes(), true, nil
}

// embedPNG inserts an eXIf chunk right after IHDR, ahead of any IDAT.
func embedPNG(encoded, blob []byte) ([]byte, bool, error) {
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(encoded) < ihdrEnd || !bytes.Equal(encoded[:8], pngSignature) || string(encoded[12:16]) != "IHDR" {
		return nil, false, fmt.Errorf("invalid PNG signature")
	}

	chunk := buildPNGChunk("eXIf", blob)
	out := make([]byte, 0, len(encoded)+len(chunk))
	out = append(out, encoded[:ihdrEnd]...)
	out = append(out, chunk...)
	out = append(out, encoded[ihdrEnd:]...)
	return out, true, nil
}

func buildPNGChunk(chunkType string, data []byte) []byte {
	chunk := make([]byte, 8, 12+len(data))
	binary.BigEndian.PutUint32(chunk[0:4], uint32(len(data)))
	copy(chunk[4:8], chunkType)
	chunk = append(chunk, data...)
	crc := crc32.ChecksumIEEE(chunk[4:])
	return binary.BigEndian.AppendUint32(chunk, crc)
}

// embedWebP appends an EXIF chunk. Simple-format files (a lone VP8 or VP8L
// chunk) are promoted to the extended format with a VP8X header first.
func embedWebP(encoded, blob []byte, width, height int, hasAlpha bool) ([]byte, bool, error) {
	if len(encoded) < 20 || string(encoded[0:4]) != "RIFF" || string(encoded[8:12]) != "WEBP" {
		return nil, false, fmt.Errorf("invalid WebP container")
	}

	const (
		flagAlpha = 0x10
		flagExif  = 0x08
	)

	body := append([]byte{}, encoded[12:]...)
	if string(body[0:4]) == "VP8X" {
		body[8] |= flagExif
	} else {
		vp8x := make([]byte, 18)
		copy(vp8x[0:4], "VP8X")
		binary.LittleEndian.PutUint32(vp8x[4:8], 10)
		vp8x[8] = flagExif
		if hasAlpha {
			vp8x[8] |= flagAlpha
		}
		putUint24(vp8x[12:15], uint32(width-1))
		putUint24(vp8x[15:18], uint32(height-1))
		body = append(vp8x, body...)
	}

	body = append(body, riffChunkBytes("EXIF", blob)...)

	out := make([]byte, 12, 12+len(body))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(4+len(body)))
	copy(out[8:12], "WEBP")
	return append(out, body...), true, nil
}

func riffChunkBytes(fourcc string, payload []byte) []byte {
	chunk := make([]byte, 8, 8+len(payload)+1)
	copy(chunk[0:4], fourcc)
	binary.LittleEndian.PutUint32(chunk[4:8], uint32(len(payload)))
	chunk = append(chunk, payload...)
	if len(payload)%2 == 1 {
		chunk = append(chunk, 0)
	}
	return chunk
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}
