// Package upload validates and stores complaint attachments.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"grievance/internal/complaint/models"
	dErrors "grievance/pkg/domain-errors"
)

// File is an uploaded file as received from a multipart form.
type File struct {
	Name string
	Data []byte
}

// Stored describes an object written by a Strategy.
type Stored struct {
	Key      string
	FileName string
	FileType models.FileType
	MimeType string
	Size     int64
}

// Strategy validates and stores one kind of file.
type Strategy interface {
	Type() models.FileType
	Validate(f File) error
	Upload(ctx context.Context, f File, dir string) (*Stored, error)
}

// Clock is swapped in tests.
type Clock func() time.Time

func detect(f File) *mimetype.MIME {
	return mimetype.Detect(f.Data)
}

func matchesAny(m *mimetype.MIME, allowed []string) bool {
	for _, a := range allowed {
		if m.Is(a) {
			return true
		}
	}
	return false
}

// objectName returns "<uuid>_<unix>.<ext>" so stored names never collide and
// never echo the client's file name.
func objectName(now time.Time, ext string) string {
	return fmt.Sprintf("%s_%d%s", uuid.NewString(), now.Unix(), ext)
}

func objectKey(dir, name string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func displayName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "file"
	}
	if len(base) > 255 {
		base = base[len(base)-255:]
	}
	return base
}

func tooLarge(name string, limit int64) error {
	return dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("the file %s may not be greater than %d kilobytes", displayName(name), limit/1024))
}

func invalidType(name, want string) error {
	return dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("the file %s must be a file of type: %s", displayName(name), want))
}

func reader(b []byte) *bytes.Reader { return bytes.NewReader(b) }
