package capture

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// DataURL 编码为 data:<mime>;base64,...
func (b Blob) DataURL() string {
	mimeType := b.MIME
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(b.Data)
}

// IsDataURL 是否为 data URL
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:")
}

// ParseDataURL 解码 data URL
func ParseDataURL(s string) (Blob, error) {
	if !IsDataURL(s) {
		return Blob{}, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return Blob{}, fmt.Errorf("malformed data url")
	}

	mimeType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		text, err := url.PathUnescape(payload)
		if err != nil {
			return Blob{}, fmt.Errorf("failed to unescape data url: %w", err)
		}
		return Blob{Data: []byte(text), MIME: mimeType}, nil
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Blob{}, fmt.Errorf("failed to decode data url: %w", err)
	}
	return Blob{Data: data, MIME: mimeType}, nil
}
