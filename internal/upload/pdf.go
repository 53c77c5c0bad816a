package upload

import (
	"context"
	"fmt"
	"time"

	"grievance/internal/complaint/models"
	"grievance/internal/storage"
)

const MaxPDFSize = 10 << 20

type PDFStrategy struct {
	store storage.ObjectStore
	now   Clock
}

// NewPDFStrategy stores PDFs as uploaded.
func NewPDFStrategy(store storage.ObjectStore, now Clock) *PDFStrategy {
	if now == nil {
		now = time.Now
	}
	return &PDFStrategy{store: store, now: now}
}

func (s *PDFStrategy) Type() models.FileType { return models.FileTypePDF }

// Validate checks the extension, the size and the %PDF- signature.
func (s *PDFStrategy) Validate(f File) error {
	if int64(len(f.Data)) > MaxPDFSize {
		return tooLarge(f.Name, MaxPDFSize)
	}
	if !detect(f).Is("application/pdf") {
		return invalidType(f.Name, "pdf")
	}
	return nil
}

func (s *PDFStrategy) Upload(ctx context.Context, f File, dir string) (*Stored, error) {
	if err := s.Validate(f); err != nil {
		return nil, err
	}
	key := objectKey(dir, objectName(s.now(), ".pdf"))
	if err := s.store.Put(ctx, key, reader(f.Data), int64(len(f.Data)), "application/pdf"); err != nil {
		return nil, fmt.Errorf("store pdf: %w", err)
	}
	return &Stored{
		Key:      key,
		FileName: displayName(f.Name),
		FileType: models.FileTypePDF,
		MimeType: "application/pdf",
		Size:     int64(len(f.Data)),
	}, nil
}
