// Package storage hosts uploaded audio and cover images and maps them to public URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"dabeat/core/apperr"

	"github.com/google/uuid"
)

// ObjectPrefix 所有媒体对象的公共前缀
const ObjectPrefix = "dabeat/"

// ErrObjectNotFound is returned by Open for a missing key.
var ErrObjectNotFound = errors.New("object not found")

// MediaStore is a flat object store addressed by key.
// Delete of a missing key is not an error.
type MediaStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	Open(ctx context.Context, key string) (*Object, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// ObjectInfo 文件信息
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Object is an open stored object. Callers must close Body.
type Object struct {
	Body io.ReadCloser
	Info ObjectInfo
}

// BucketStats 存储桶统计信息
type BucketStats struct {
	TotalObjects int64
	TotalSize    int64
	LastModified time.Time
}

// Stats summarizes a listing.
func Stats(objects []ObjectInfo) BucketStats {
	var stats BucketStats
	for _, o := range objects {
		stats.TotalObjects++
		stats.TotalSize += o.Size
		if o.LastModified.After(stats.LastModified) {
			stats.LastModified = o.LastModified
		}
	}
	return stats
}

// FormatSize 格式化文件大小
func FormatSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

// Kind selects the folder and the accepted formats of an upload.
type Kind string

const (
	KindAudio Kind = "audio"
	KindCover Kind = "covers"
)

var (
	audioTypes = map[string]bool{
		"audio/mpeg": true, "audio/mp3": true, "audio/ogg": true, "audio/flac": true, "audio/x-m4a": true,
	}
	audioExts = map[string]bool{"mp3": true, "ogg": true, "flac": true, "m4a": true}

	coverTypes = map[string]bool{
		"image/jpeg": true, "image/jpg": true, "image/png": true, "image/webp": true,
	}
	coverExts = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}
)

// Upload is one file taken from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (u Upload) ext() string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(u.Filename), "."))
}

func (u Upload) mediaType() string {
	ct := u.ContentType
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// Validate checks format and size. maxBytes <= 0 disables the size check.
func (k Kind) Validate(u Upload, maxBytes int64) error {
	switch k {
	case KindAudio:
		if !audioTypes[u.mediaType()] || !audioExts[u.ext()] {
			return apperr.Validation("Invalid audio format")
		}
	case KindCover:
		if !coverTypes[u.mediaType()] || !coverExts[u.ext()] {
			return apperr.Validation("Invalid image format")
		}
	default:
		return fmt.Errorf("unknown media kind %q", k)
	}
	if maxBytes > 0 && u.Size > maxBytes {
		return apperr.Validation("File too large")
	}
	return nil
}

// NewObjectKey returns a fresh key under the kind's folder, keeping the file extension.
func NewObjectKey(k Kind, filename string) string {
	key := ObjectPrefix + string(k) + "/" + uuid.NewString()
	if ext := (Upload{Filename: filename}).ext(); ext != "" {
		key += "." + ext
	}
	return key
}

// Host publishes objects of a MediaStore under a public URL base.
type Host struct {
	store    MediaStore
	base     string
	maxBytes int64
}

// NewHost creates a host. publicBase is e.g. "/media" or "https://cdn.example.com/media".
func NewHost(store MediaStore, publicBase string, maxBytes int64) *Host {
	return &Host{
		store:    store,
		base:     strings.TrimRight(publicBase, "/"),
		maxBytes: maxBytes,
	}
}

// Store returns the underlying object store.
func (h *Host) Store() MediaStore {
	return h.store
}

// URL maps an object key to its public reference.
func (h *Host) URL(key string) string {
	return h.base + "/" + key
}

// ObjectKeyFromURL reverses URL. References not produced by this host,
// such as the placeholder covers, report false.
func (h *Host) ObjectKeyFromURL(ref string) (string, bool) {
	key, ok := strings.CutPrefix(ref, h.base+"/")
	if !ok || !strings.HasPrefix(key, ObjectPrefix) {
		return "", false
	}
	return key, true
}

// Save validates and stores an upload, returning its public reference.
func (h *Host) Save(ctx context.Context, k Kind, u Upload) (string, error) {
	if err := k.Validate(u, h.maxBytes); err != nil {
		return "", err
	}

	key := NewObjectKey(k, u.Filename)
	if err := h.store.Put(ctx, key, u.Body, u.Size, u.mediaType()); err != nil {
		return "", fmt.Errorf("failed to store %s: %w", key, err)
	}
	return h.URL(key), nil
}

// DeleteURL removes the object behind ref. It reports false for references
// that are not hosted here.
func (h *Host) DeleteURL(ctx context.Context, ref string) (bool, error) {
	key, ok := h.ObjectKeyFromURL(ref)
	if !ok {
		return false, nil
	}
	if err := h.store.Delete(ctx, key); err != nil {
		return false, fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return true, nil
}

// Open streams a hosted object. Keys outside ObjectPrefix are treated as missing.
func (h *Host) Open(ctx context.Context, key string) (*Object, error) {
	if !strings.HasPrefix(key, ObjectPrefix) || strings.Contains(key, "..") {
		return nil, ErrObjectNotFound
	}
	return h.store.Open(ctx, key)
}
