// ABOUTME: Object storage for material images
// ABOUTME: Decodes the client's base64 payload and hands out time-limited GET URLs

package blob

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxImageBytes bounds a decoded image.
const MaxImageBytes = 5 << 20

var (
	// ErrNotFound is returned for a key that has no object
	ErrNotFound = errors.New("object not found")
	// ErrInvalidImage is returned when the payload is not base64 image data
	ErrInvalidImage = errors.New("invalid image data")
	// ErrTooLarge is returned when the decoded image exceeds MaxImageBytes
	ErrTooLarge = errors.New("image too large")
)

// ImageStore persists image bytes under opaque keys.
type ImageStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	// URL returns a link clients can GET without credentials.
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// NewKey returns a fresh object key for a material image.
func NewKey() string {
	d := time.Now().UTC()
	return fmt.Sprintf("materials/%d/%02d/%02d/%s", d.Year(), d.Month(), d.Day(), uuid.New())
}

// DecodeImage decodes the base64 image the mobile client sends, with or
// without a "data:<type>;base64," prefix, and sniffs its content type.
func DecodeImage(encoded string) ([]byte, string, error) {
	encoded = strings.TrimSpace(encoded)
	if rest, ok := strings.CutPrefix(encoded, "data:"); ok {
		_, payload, found := strings.Cut(rest, ";base64,")
		if !found {
			return nil, "", ErrInvalidImage
		}
		encoded = payload
	}
	if encoded == "" {
		return nil, "", ErrInvalidImage
	}
	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxImageBytes+3 {
		return nil, "", ErrTooLarge
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrInvalidImage, err)
		}
	}
	if len(data) > MaxImageBytes {
		return nil, "", ErrTooLarge
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "", fmt.Errorf("%w: detected %s", ErrInvalidImage, contentType)
	}
	return data, contentType, nil
}
