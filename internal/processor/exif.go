package processor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"

	exif "github.com/dsoprea/go-exif/v3"

	"imgpilot/pkg/imgutil"
)

var (
	jpegExifHeader = []byte("Exif\x00\x00")
	pngSignature   = []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
)

// ExifAnalysis summarises the EXIF block of a source file.
type ExifAnalysis struct {
	Present  bool   `json:"present"`
	TagCount int    `json:"tag_count,omitempty"`
	HasGPS   bool   `json:"has_gps,omitempty"`
	Make     string `json:"make,omitempty"`
	Model    string `json:"model,omitempty"`
	Captured string `json:"captured,omitempty"`
}

// extractExif returns the raw TIFF-structured EXIF blob embedded in data, or
// nil when the container carries none or the blob does not parse.
func extractExif(data []byte) []byte {
	var blob []byte
	switch imgutil.SniffBytes(data) {
	case imgutil.KindJPEG:
		blob = jpegExif(data)
	case imgutil.KindPNG:
		blob = pngChunk(data, "eXIf")
	case imgutil.KindWebP:
		blob = riffChunk(data, "EXIF")
		// Some writers keep the JPEG APP1 prefix inside the chunk.
		blob = bytes.TrimPrefix(blob, jpegExifHeader)
	}
	if len(blob) == 0 {
		return nil
	}
	if _, err := exif.ParseExifHeader(blob); err != nil {
		return nil
	}
	return blob
}

// AnalyzeExif reports the EXIF content of an in-memory source file.
func AnalyzeExif(data []byte) (ExifAnalysis, error) {
	analysis := ExifAnalysis{}
	blob := extractExif(data)
	if blob == nil {
		return analysis, nil
	}

	tags, _, err := exif.GetFlatExifData(blob, nil)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return analysis, nil
		}
		return analysis, err
	}

	analysis.Present = true
	analysis.TagCount = len(tags)
	for _, tag := range tags {
		if strings.HasPrefix(tag.TagName, "GPS") || strings.Contains(tag.IfdPath, "GPS") {
			analysis.HasGPS = true
		}
		value := strings.TrimSpace(tag.FormattedFirst)
		switch tag.TagName {
		case "Make":
			analysis.Make = value
		case "Model":
			analysis.Model = value
		case "DateTimeOriginal":
			analysis.Captured = value
		case "DateTime":
			if analysis.Captured == "" {
				analysis.Captured = value
			}
		}
	}
	return analysis, nil
}

func jpegExif(data []byte) []byte {
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xff {
			return nil
		}
		marker := data[pos+1]
		if marker == 0xff {
			pos++
			continue
		}
		if marker == 0xd9 || marker == 0xda {
			return nil
		}
		if marker == 0x01 || (marker >= 0xd0 && marker <= 0xd7) {
			pos += 2
			continue
		}
		segLen := int(binary.BigEndian.Uint16(data[pos+2 : pos+4]))
		if segLen < 2 || pos+2+segLen > len(data) {
			return nil
		}
		payload := data[pos+4 : pos+2+segLen]
		if marker == 0xe1 && bytes.HasPrefix(payload, jpegExifHeader) {
			return payload[len(jpegExifHeader):]
		}
		pos += 2 + segLen
	}
	return nil
}

func pngChunk(data []byte, name string) []byte {
	pos := len(pngSignature)
	for pos+8 <= len(data) {
		length := int(binary.BigEndian.Uint32(data[pos : pos+4]))
		chunkName := string(data[pos+4 : pos+8])
		end := pos + 8 + length + 4
		if length < 0 || end > len(data) {
			return nil
		}
		if chunkName == name {
			return data[pos+8 : pos+8+length]
		}
		if chunkName == "IEND" {
			return nil
		}
		pos = end
	}
	return nil
}

func riffChunk(data []byte, fourcc string) []byte {
	pos := 12
	for pos+8 <= len(data) {
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		end := pos + 8 + size
		if size < 0 || end > len(data) {
			return nil
		}
		if string(data[pos:pos+4]) == fourcc {
			return data[pos+8 : end]
		}
		pos = end + size%2
	}
	return nil
}
