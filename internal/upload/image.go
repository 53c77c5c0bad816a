package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"time"

	"golang.org/x/image/draw"

	"grievance/internal/complaint/models"
	"grievance/internal/storage"
	dErrors "grievance/pkg/domain-errors"
)

const (
	MaxImageSize = 5 << 20
	MaxImageEdge = 1920
	// MaxImagePixels bounds width*height. Decoding allocates per pixel, so a
	// small but highly compressed file can otherwise cost gigabytes.
	MaxImagePixels = 40_000_000
)

var errTooManyPixels = errors.New("image dimensions exceed the pixel budget")

var imageTypes = []string{"image/jpeg", "image/png", "image/gif"}

type ImageStrategy struct {
	store storage.ObjectStore
	now   Clock
}

// NewImageStrategy stores images resized to fit and re-encoded in their own format.
func NewImageStrategy(store storage.ObjectStore, now Clock) *ImageStrategy {
	if now == nil {
		now = time.Now
	}
	return &ImageStrategy{store: store, now: now}
}

func (s *ImageStrategy) Type() models.FileType { return models.FileTypeImage }

// Validate checks the extension, the size and the decoded dimensions.
func (s *ImageStrategy) Validate(f File) error {
	if int64(len(f.Data)) > MaxImageSize {
		return tooLarge(f.Name, MaxImageSize)
	}
	if !matchesAny(detect(f), imageTypes) {
		return invalidType(f.Name, "jpeg, jpg, png, gif")
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		return invalidType(f.Name, "jpeg, jpg, png, gif")
	}
	if err := checkPixels(cfg); err != nil {
		return tooManyPixels(f.Name)
	}
	return nil
}

func checkPixels(cfg image.Config) error {
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
		return errTooManyPixels
	}
	return nil
}

func tooManyPixels(name string) error {
	return dErrors.New(dErrors.CodeValidation,
		fmt.Sprintf("the image %s may not exceed %d megapixels", displayName(name), MaxImagePixels/1_000_000))
}

func (s *ImageStrategy) Upload(ctx context.Context, f File, dir string) (*Stored, error) {
	if err := s.Validate(f); err != nil {
		return nil, err
	}
	mt := detect(f)
	data, err := fitImage(f.Data, mt.String())
	if errors.Is(err, errTooManyPixels) {
		return nil, tooManyPixels(f.Name)
	}
	if err != nil {
		return nil, invalidType(f.Name, "jpeg, jpg, png, gif")
	}
	key := objectKey(dir, objectName(s.now(), mt.Extension()))
	if err := s.store.Put(ctx, key, reader(data), int64(len(data)), mt.String()); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}
	return &Stored{
		Key:      key,
		FileName: displayName(f.Name),
		FileType: models.FileTypeImage,
		MimeType: mt.String(),
		Size:     int64(len(data)),
	}, nil
}

// fitImage downscales images larger than MaxImageEdge on either side,
// preserving aspect ratio. Smaller images are returned untouched.
func fitImage(data []byte, mimeType string) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := checkPixels(cfg); err != nil {
		return nil, err
	}
	if cfg.Width <= MaxImageEdge && cfg.Height <= MaxImageEdge {
		return data, nil
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	w, h := scaledSize(cfg.Width, cfg.Height, MaxImageEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	switch mimeType {
	case "image/png":
		err = png.Encode(&buf, dst)
	case "image/gif":
		err = gif.Encode(&buf, dst, nil)
	default:
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func scaledSize(w, h, edge int) (int, int) {
	if w >= h {
		return edge, max(1, h*edge/w)
	}
	return max(1, w*edge/h), edge
}
