package main

import (
	"crypto/sha256"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// BlobStore turns downloaded bytes into a handle that can sit in a draft's image list
type BlobStore interface {
	Lookup(id string) (string, bool)
	Put(id string, data []byte, contentType string) (string, error)
}

// PhotoCache stores secure photos on disk, keyed by photo id
type PhotoCache struct {
	dir string
}

func NewPhotoCache(dir string) *PhotoCache {
	return &PhotoCache{dir: dir}
}

// Lookup returns the handle of an already downloaded photo
func (c *PhotoCache) Lookup(id string) (string, bool) {
	name, err := photoFileName(id)
	if err != nil {
		return "", false
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, name+".*"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return fileHandle(matches[0])
}

func (c *PhotoCache) Put(id string, data []byte, contentType string) (string, error) {
	name, err := photoFileName(id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return "", fmt.Errorf("creating photo cache directory: %w", err)
	}

	path := filepath.Join(c.dir, name+photoExtension(data, contentType))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("caching photo: %w", err)
	}

	handle, ok := fileHandle(path)
	if !ok {
		return "", fmt.Errorf("resolving cached photo %s", path)
	}
	return handle, nil
}

// photoFileName keeps UUIDs readable and hashes any other id, so a name can
// never escape the cache directory
func photoFileName(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidPhotoID)
	}
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String(), nil
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(id))), nil
}

func photoExtension(data []byte, contentType string) string {
	if contentType == "" || strings.HasPrefix(contentType, "application/octet-stream") {
		contentType = http.DetectContentType(data)
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	switch mediaType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}

func fileHandle(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), true
}

// localPath returns the filesystem path behind a file:// handle
func localPath(handle string) (string, bool) {
	u, err := url.Parse(handle)
	if err != nil || u.Scheme != "file" {
		return "", false
	}
	return filepath.FromSlash(u.Path), true
}

func isRemoteImage(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}
