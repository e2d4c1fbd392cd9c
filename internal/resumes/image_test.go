package resumes

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"hash/crc32"
	"image"
	"strings"
	"testing"
)

// pngHeader returns a PNG signature and IHDR chunk declaring a w x h
// grayscale image with no pixel data.
func pngHeader(t *testing.T, w, h uint32) []byte {
	t.Helper()
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:4], w)
	binary.BigEndian.PutUint32(ihdr[4:8], h)
	ihdr[8] = 8 // bit depth; color type, compression, filter and interlace stay 0

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestImagePayloadAcceptsBothShapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		mime string
		data string
	}{
		{name: "object", raw: `{"mimeType":"image/png","data":"QUJD"}`, mime: "image/png", data: "QUJD"},
		{name: "data url", raw: `"data:image/jpeg;base64,QUJD"`, mime: "image/jpeg", data: "QUJD"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			var p ImagePayload
			if err := json.Unmarshal([]byte(tt.raw), &p); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if p.MimeType != tt.mime || p.Data != tt.data {
				t.Fatalf("unexpected payload %+v", p)
			}
		})
	}
}

func TestParseDataURLRejectsMalformed(t *testing.T) {
	for _, s := range []string{"image/png;base64,QUJD", "data:image/png;base64", "data:image/png,QUJD"} {
		if _, err := ParseDataURL(s); !errors.Is(err, ErrInvalidImage) {
			t.Fatalf("ParseDataURL(%q): expected ErrInvalidImage, got %v", s, err)
		}
	}
}

func TestDecodeAcceptsUnpaddedBase64(t *testing.T) {
	p := pngPayload(t, 3, 3)
	p.Data = strings.TrimRight(p.Data, "=")
	data, err := p.Decode(0, 0)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err != nil || format != "png" {
		t.Fatalf("expected png, got %s %v", format, err)
	}
}

func TestNormalizePreviewKeepsSmallImages(t *testing.T) {
	p := pngPayload(t, 40, 30)
	raw, err := base64.StdEncoding.DecodeString(p.Data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := normalizePreview(raw, 1200)
	if err != nil {
		t.Fatalf("normalizePreview: %v", err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 40 || cfg.Height != 30 {
		t.Fatalf("expected original size, got %dx%d", cfg.Width, cfg.Height)
	}

	if _, err := normalizePreview([]byte("not an image"), 100); !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestDecodeChecksDimensionsBeforeDecoding(t *testing.T) {
	huge := ImagePayload{MimeType: "image/png", Data: base64.StdEncoding.EncodeToString(pngHeader(t, 20000, 20000))}
	small := pngPayload(t, 40, 30)

	tests := []struct {
		name      string
		payload   ImagePayload
		maxPixels int
		wantErr   bool
	}{
		{name: "header declares 400M pixels", payload: huge, maxPixels: 25_000_000, wantErr: true},
		{name: "over the limit", payload: small, maxPixels: 1199, wantErr: true},
		{name: "exactly the limit", payload: small, maxPixels: 1200},
		{name: "no limit", payload: small},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.payload.Decode(5<<20, tt.maxPixels)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidImage) {
					t.Fatalf("expected ErrInvalidImage, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
		})
	}
}
