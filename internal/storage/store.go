// Package storage keeps uploaded files in an object store and resolves the
// URLs clients use to fetch them.
package storage

import (
	"context"
	"io"
	"path"
	"strings"
)

// ObjectStore is implemented by the local disk, MinIO and in-memory backends.
// Keys are slash separated relative paths such as "complaints/<id>/<name>".
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// CleanKey normalises key and rejects absolute or escaping paths.
func CleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
