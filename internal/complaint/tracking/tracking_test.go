package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "grievance/pkg/domain-errors"
)

func TestGenerateFormatsPerYear(t *testing.T) {
	g := NewGenerator(NewInMemorySequence())
	ctx := context.Background()

	first, err := g.Generate(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "CMP-2025-000001", first)

	second, err := g.Generate(ctx, 2025)
	require.NoError(t, err)
	assert.Equal(t, "CMP-2025-000002", second)

	other, err := g.Generate(ctx, 2026)
	require.NoError(t, err)
	assert.Equal(t, "CMP-2026-000001", other, "sequence restarts each year")
}

func TestGenerateIsUniqueUnderConcurrency(t *testing.T) {
	g := NewGenerator(NewInMemorySequence())
	const n = 200
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tn, err := g.Generate(context.Background(), 2025)
			assert.NoError(t, err)
			mu.Lock()
			seen[tn] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
	assert.Contains(t, seen, Format(2025, n))
}

type stubSequence struct {
	n   int
	err error
}

func (s stubSequence) Next(context.Context, int) (int, error) { return s.n, s.err }

func TestGenerateErrors(t *testing.T) {
	_, err := NewGenerator(stubSequence{n: MaxSequence + 1}).Generate(context.Background(), 2025)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

	_, err = NewGenerator(stubSequence{err: errors.New("db down")}).Generate(context.Background(), 2025)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestValidateAndParse(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"CMP-2025-000042", true},
		{"CMP-2025-42", false},
		{"cmp-2025-000042", false},
		{"CMP-25-000042", false},
		{"CMP-2025-0000420", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.in))
		})
	}

	year, n, err := Parse("CMP-2024-001337")
	require.NoError(t, err)
	assert.Equal(t, 2024, year)
	assert.Equal(t, 1337, n)

	_, _, err = Parse("nope")
	assert.Error(t, err)
}
