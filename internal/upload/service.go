package upload

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"grievance/internal/complaint/models"
	"grievance/internal/storage"
	dErrors "grievance/pkg/domain-errors"
	"grievance/pkg/platform/sentinel"
)

type Metrics interface {
	ObserveUpload(fileType string, size int64)
}

// Batch groups a request's files by the strategy that handles them.
type Batch struct {
	Images []File
	PDFs   []File
}

func (b Batch) Empty() bool { return len(b.Images) == 0 && len(b.PDFs) == 0 }

// Service routes files to their strategy and owns object cleanup.
type Service struct {
	store      storage.ObjectStore
	strategies map[models.FileType]Strategy
	logger     *slog.Logger
	metrics    Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }
func WithMetrics(m Metrics) Option     { return func(s *Service) { s.metrics = m } }
// WithStrategy replaces the strategy for st.Type().
func WithStrategy(st Strategy) Option {
	return func(s *Service) { s.strategies[st.Type()] = st }
}

// NewService registers the image and PDF strategies on store.
func NewService(store storage.ObjectStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		strategies: map[models.FileType]Strategy{
			models.FileTypeImage: NewImageStrategy(store, nil),
			models.FileTypePDF:   NewPDFStrategy(store, nil),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks every file of the batch. existing holds the attachments a
// complaint already has, so the per-type limit covers old and new files.
func (s *Service) Validate(b Batch, existing map[models.FileType]int) error {
	check := func(t models.FileType, files []File, label string) error {
		if existing[t]+len(files) > models.MaxFilesPerType {
			return dErrors.New(dErrors.CodeValidation,
				fmt.Sprintf("you may not attach more than %d %s", models.MaxFilesPerType, label))
		}
		st := s.strategies[t]
		for _, f := range files {
			if err := st.Validate(f); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(models.FileTypeImage, b.Images, "images"); err != nil {
		return err
	}
	return check(models.FileTypePDF, b.PDFs, "pdf files")
}

// Upload stores every file under dir. If any file fails, already written
// objects are removed before returning.
func (s *Service) Upload(ctx context.Context, b Batch, dir string) ([]Stored, error) {
	var stored []Stored
	put := func(t models.FileType, files []File) error {
		for _, f := range files {
			out, err := s.strategies[t].Upload(ctx, f, dir)
			if err != nil {
				return err
			}
			stored = append(stored, *out)
			if s.metrics != nil {
				s.metrics.ObserveUpload(string(t), out.Size)
			}
		}
		return nil
	}
	err := put(models.FileTypeImage, b.Images)
	if err == nil {
		err = put(models.FileTypePDF, b.PDFs)
	}
	if err != nil {
		s.Remove(ctx, stored)
		return nil, err
	}
	return stored, nil
}

// Remove deletes objects best effort. Failures are logged.
func (s *Service) Remove(ctx context.Context, stored []Stored) {
	for _, o := range stored {
		s.Delete(ctx, o.Key)
	}
}

// Delete removes one stored object. Failures are logged.
func (s *Service) Delete(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		s.logger.WarnContext(ctx, "failed to delete stored file", "key", key, "error", err)
	}
}

func (s *Service) URL(ctx context.Context, key string) (string, error) {
	return s.store.URL(ctx, key)
}
