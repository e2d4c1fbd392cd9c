package resumes

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
)

var allowedImageTypes = map[string]imaging.Format{
	"image/png":  imaging.PNG,
	"image/jpeg": imaging.JPEG,
	"image/gif":  imaging.GIF,
}

// ImagePayload is a base64 image tagged with its mime type. It decodes from
// either {"mimeType": "...", "data": "..."} or a "data:<mime>;base64,<data>"
// string.
type ImagePayload struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type imagePayloadObject ImagePayload

func (p *ImagePayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		parsed, err := ParseDataURL(s)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	var obj imagePayloadObject
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*p = ImagePayload(obj)
	return nil
}

// ParseDataURL parses a base64 data URL.
func ParseDataURL(s string) (ImagePayload, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return ImagePayload{}, fmt.Errorf("%w: expected a data URL", ErrInvalidImage)
	}
	meta, data, ok := strings.Cut(rest, ",")
	if !ok {
		return ImagePayload{}, fmt.Errorf("%w: malformed data URL", ErrInvalidImage)
	}
	mime, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return ImagePayload{}, fmt.Errorf("%w: data URL must be base64", ErrInvalidImage)
	}
	return ImagePayload{MimeType: mime, Data: data}, nil
}

// Decode checks the declared type, decodes the base64 body and verifies the
// bytes really are an image of the declared type no larger than maxBytes.
// Dimensions are read from the header and checked against maxPixels before
// anything decodes the pixel data. Zero limits are not enforced.
func (p ImagePayload) Decode(maxBytes, maxPixels int) ([]byte, error) {
	mime := strings.ToLower(strings.TrimSpace(p.MimeType))
	if _, ok := allowedImageTypes[mime]; !ok {
		return nil, fmt.Errorf("%w: unsupported mime type %q", ErrInvalidImage, p.MimeType)
	}
	encoded := strings.TrimSpace(p.Data)
	if encoded == "" {
		return nil, fmt.Errorf("%w: empty data", ErrInvalidImage)
	}
	if maxBytes > 0 && base64.StdEncoding.DecodedLen(len(encoded)) > maxBytes+3 {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, maxBytes)
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(encoded, "="))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid base64", ErrInvalidImage)
		}
	}
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", ErrInvalidImage, maxBytes)
	}
	if detected := mimetype.Detect(data); !detected.Is(mime) {
		return nil, fmt.Errorf("%w: content is %s, declared %s", ErrInvalidImage, detected.String(), mime)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: empty image", ErrInvalidImage)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: image is %dx%d, limit is %d pixels", ErrInvalidImage, cfg.Width, cfg.Height, maxPixels)
	}
	return data, nil
}

// normalizePreview decodes the image, bounds its width and re-encodes it as
// PNG.
func normalizePreview(data []byte, maxWidth int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if maxWidth > 0 && img.Bounds().Dx() > maxWidth {
		img = imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}
	return buf.Bytes(), nil
}
