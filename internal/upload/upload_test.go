package upload

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grievance/internal/complaint/models"
	"grievance/internal/storage"
	dErrors "grievance/pkg/domain-errors"
)

var fixedNow = func() time.Time { return time.Unix(1760000000, 0) }

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// pngHeader is a PNG signature plus an IHDR chunk declaring w x h 8-bit
// grayscale. It is all DecodeConfig reads, so it stands in for a tiny file
// that would inflate to a huge bitmap.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8 // bit depth; color type 0 is grayscale

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	chunk := append([]byte("IHDR"), ihdr...)
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

var pdfBytes = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\ntrailer\n<<>>\n%%EOF\n")

func TestImageStrategy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemory("http://files.test")
	s := NewImageStrategy(store, fixedNow)

	t.Run("stores small images untouched", func(t *testing.T) {
		data := pngBytes(t, 40, 30)
		out, err := s.Upload(ctx, File{Name: "photo.png", Data: data}, "complaints/c1")
		require.NoError(t, err)

		assert.Regexp(t, regexp.MustCompile(`^complaints/c1/[0-9a-f-]{36}_1760000000\.png$`), out.Key)
		assert.Equal(t, "photo.png", out.FileName)
		assert.Equal(t, models.FileTypeImage, out.FileType)
		assert.Equal(t, "image/png", out.MimeType)

		got, ct, ok := store.Get(out.Key)
		require.True(t, ok)
		assert.Equal(t, data, got)
		assert.Equal(t, "image/png", ct)
	})

	t.Run("downscales large images to the bounding box", func(t *testing.T) {
		out, err := s.Upload(ctx, File{Name: "wide.png", Data: pngBytes(t, 3840, 1000)}, "complaints/c1")
		require.NoError(t, err)
		got, _, ok := store.Get(out.Key)
		require.True(t, ok)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(got))
		require.NoError(t, err)
		assert.Equal(t, 1920, cfg.Width)
		assert.Equal(t, 500, cfg.Height)
	})

	t.Run("rejects content that is not an image", func(t *testing.T) {
		err := s.Validate(File{Name: "x.png", Data: pdfBytes})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})

	t.Run("rejects dimensions above the pixel budget before decoding", func(t *testing.T) {
		data := pngHeader(20000, 20000)
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		require.NoError(t, err)
		require.Equal(t, 20000, cfg.Width)

		err = s.Validate(File{Name: "bomb.png", Data: data})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, dErrors.Message(err), "megapixels")

		_, err = fitImage(data, "image/png")
		assert.ErrorIs(t, err, errTooManyPixels)
	})

	t.Run("rejects oversized files", func(t *testing.T) {
		err := s.Validate(File{Name: "big.png", Data: make([]byte, MaxImageSize+1)})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestPDFStrategy(t *testing.T) {
	ctx := context.Background()
	store := storage.NewInMemory("http://files.test")
	s := NewPDFStrategy(store, fixedNow)

	out, err := s.Upload(ctx, File{Name: `C:\docs\report.pdf`, Data: pdfBytes}, "complaints/c1")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", out.FileName)
	assert.Equal(t, "application/pdf", out.MimeType)
	assert.Equal(t, int64(len(pdfBytes)), out.Size)

	err = s.Validate(File{Name: "fake.pdf", Data: []byte("plain text")})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestScaledSize(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{4000, 2000, 1920, 960},
		{1000, 4000, 480, 1920},
		{5000, 1, 1920, 1},
	}
	for _, tt := range tests {
		w, h := scaledSize(tt.w, tt.h, MaxImageEdge)
		assert.Equal(t, tt.wantW, w)
		assert.Equal(t, tt.wantH, h)
	}
}

type failingStore struct {
	*storage.InMemory
	failAfter int
	puts      int
}

func (f *failingStore) Put(ctx context.Context, key string, body io.Reader, size int64, ct string) error {
	f.puts++
	if f.puts > f.failAfter {
		return errors.New("disk full")
	}
	return f.InMemory.Put(ctx, key, body, size, ct)
}

type uploadMetrics struct{ observed []string }

func (m *uploadMetrics) ObserveUpload(fileType string, _ int64) {
	m.observed = append(m.observed, fileType)
}

func TestServiceUpload(t *testing.T) {
	ctx := context.Background()

	t.Run("stores images then pdfs", func(t *testing.T) {
		store := storage.NewInMemory("http://files.test")
		m := &uploadMetrics{}
		svc := NewService(store, WithMetrics(m))
		batch := Batch{
			Images: []File{{Name: "a.png", Data: pngBytes(t, 10, 10)}},
			PDFs:   []File{{Name: "b.pdf", Data: pdfBytes}},
		}
		stored, err := svc.Upload(ctx, batch, "complaints/c1")
		require.NoError(t, err)
		require.Len(t, stored, 2)
		assert.Equal(t, models.FileTypeImage, stored[0].FileType)
		assert.Equal(t, models.FileTypePDF, stored[1].FileType)
		assert.Equal(t, []string{"image", "pdf"}, m.observed)
		assert.Equal(t, 2, store.Len())
	})

	t.Run("removes written objects when a later file fails", func(t *testing.T) {
		store := &failingStore{InMemory: storage.NewInMemory("http://files.test"), failAfter: 1}
		svc := NewService(store)
		batch := Batch{
			Images: []File{{Name: "a.png", Data: pngBytes(t, 10, 10)}},
			PDFs:   []File{{Name: "b.pdf", Data: pdfBytes}},
		}
		_, err := svc.Upload(ctx, batch, "complaints/c1")
		require.Error(t, err)
		assert.Zero(t, store.Len())
	})
}

func TestServiceValidateCountsExistingAttachments(t *testing.T) {
	svc := NewService(storage.NewInMemory(""))
	pdf := File{Name: "b.pdf", Data: pdfBytes}

	err := svc.Validate(Batch{PDFs: []File{pdf, pdf}}, map[models.FileType]int{models.FileTypePDF: 4})
	require.Error(t, err)
	assert.Equal(t, "you may not attach more than 5 pdf files", dErrors.Message(err))

	assert.NoError(t, svc.Validate(Batch{PDFs: []File{pdf}}, map[models.FileType]int{models.FileTypePDF: 4}))
}
