// Package storage keeps uploaded and generated files (event flyers, banner
// images, certificate artifacts) in S3 or on the local disk.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
)

const (
	// MaxImageSize is the maximum accepted flyer or banner upload (5MB).
	MaxImageSize = 5 * 1024 * 1024

	FolderFlyers  = "flyers"
	FolderBanners = "banners"
)

var (
	// ErrNotFound is returned by Open when the key does not exist.
	ErrNotFound = errors.New("storage: object not found")
	// ErrTooLarge is returned by ReadLimited when the body exceeds the limit.
	ErrTooLarge = errors.New("storage: file too large")
)

// FileStore is implemented by S3 and Local.
type FileStore interface {
	Save(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	// Open returns the object body. Callers must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// URL returns the address clients use to fetch key.
	URL(key string) string
}

// Allowed image MIME types and extensions for flyers and banners.
var (
	AllowedImageTypes = map[string]string{
		"image/jpeg": ".jpg",
		"image/jpg":  ".jpg",
		"image/png":  ".png",
		"image/webp": ".webp",
		"image/gif":  ".gif",
	}
	AllowedImageExtensions = map[string]string{
		".jpg":  "image/jpeg",
		".jpeg": "image/jpeg",
		".png":  "image/png",
		".webp": "image/webp",
		".gif":  "image/gif",
	}
)

// ImageExtension returns the canonical extension for an upload, or false when
// neither the content type nor the filename is an allowed image.
func ImageExtension(contentType, filename string) (string, bool) {
	if ext, ok := AllowedImageTypes[strings.ToLower(strings.TrimSpace(contentType))]; ok {
		return ext, true
	}
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := AllowedImageExtensions[ext]; ok {
		if ext == ".jpeg" {
			ext = ".jpg"
		}
		return ext, true
	}
	return "", false
}

// ContentTypeForFilename returns the MIME type for a stored filename.
func ContentTypeForFilename(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ct, ok := AllowedImageExtensions[ext]; ok {
		return ct
	}
	switch ext {
	case ".html":
		return "text/html; charset=utf-8"
	case ".pdf":
		return "application/pdf"
	}
	return "application/octet-stream"
}

// FlyerKey returns flyers/{event_id}/{name}{ext}.
func FlyerKey(eventID, name, ext string) string {
	return path.Join(FolderFlyers, eventID, path.Base(name)+ext)
}

// BannerKey returns banners/{banner_id}{ext}.
func BannerKey(bannerID, ext string) string {
	return path.Join(FolderBanners, bannerID+ext)
}

// ReadLimited reads at most limit bytes from r.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
