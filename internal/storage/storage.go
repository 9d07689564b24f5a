// Package storage uploads message images to an object store.
package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
)

// MaxImageBytes caps a decoded inline image.
const MaxImageBytes = 5 << 20

var (
	// ErrInvalidImage is returned for img values that are neither an http(s) URL nor
	// a base64 image data URI.
	ErrInvalidImage = errors.New("invalid image")
	// ErrDisabled is returned when an inline image arrives but no store is configured.
	ErrDisabled = errors.New("object storage is not configured")
)

// ObjectStore stores objects and returns their public URL.
type ObjectStore interface {
	Upload(ctx context.Context, folder string, content []byte, contentType string) (string, error)
	Delete(ctx context.Context, fileURL string) error
}

// ResolveImage turns a message img field into the URL to persist. Empty stays empty,
// http(s) URLs are kept and data URIs are uploaded to store under folder.
func ResolveImage(ctx context.Context, store ObjectStore, folder, img string) (string, error) {
	img = strings.TrimSpace(img)
	switch {
	case img == "":
		return "", nil
	case strings.HasPrefix(img, "data:"):
		content, contentType, err := DecodeDataURI(img)
		if err != nil {
			return "", err
		}
		if store == nil {
			return "", ErrDisabled
		}
		return store.Upload(ctx, folder, content, contentType)
	}

	u, err := url.Parse(img)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: expected an http(s) URL or data URI", ErrInvalidImage)
	}
	return img, nil
}

// DecodeDataURI decodes a base64 "data:image/...;base64," URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	header, encoded, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !ok {
		return nil, "", fmt.Errorf("%w: malformed data URI", ErrInvalidImage)
	}

	mediaType, isBase64 := strings.CutSuffix(header, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("%w: data URI must be base64 encoded", ErrInvalidImage)
	}
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return nil, "", fmt.Errorf("%w: unsupported media type %q", ErrInvalidImage, mediaType)
	}

	if base64.StdEncoding.DecodedLen(len(encoded)) > MaxImageBytes+3 {
		return nil, "", fmt.Errorf("%w: image larger than %d bytes", ErrInvalidImage, MaxImageBytes)
	}
	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", fmt.Errorf("%w: bad base64 payload", ErrInvalidImage)
	}
	if len(content) == 0 || len(content) > MaxImageBytes {
		return nil, "", fmt.Errorf("%w: image must be between 1 and %d bytes", ErrInvalidImage, MaxImageBytes)
	}
	return content, mt, nil
}

func extension(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}
