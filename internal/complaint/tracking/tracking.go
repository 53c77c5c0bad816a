// Package tracking allocates human readable complaint tracking numbers of
// the form CMP-YYYY-NNNNNN from a per-year sequence.
package tracking

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	dErrors "grievance/pkg/domain-errors"
)

const (
	Prefix      = "CMP"
	MaxSequence = 999999
)

var pattern = regexp.MustCompile(`^CMP-\d{4}-\d{6}$`)

// Sequence hands out the next value for a year, starting at 1. Implementations
// serialise concurrent callers for the same year.
type Sequence interface {
	Next(ctx context.Context, year int) (int, error)
}

type Generator struct {
	seq Sequence
}

func NewGenerator(seq Sequence) *Generator {
	return &Generator{seq: seq}
}

// Generate returns the next tracking number for year. When called inside a
// transaction the sequence row stays locked until commit.
func (g *Generator) Generate(ctx context.Context, year int) (string, error) {
	n, err := g.seq.Next(ctx, year)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate tracking number")
	}
	if n > MaxSequence {
		return "", dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("tracking numbers for %d are exhausted", year))
	}
	return Format(year, n), nil
}

// Format renders a tracking number such as CMP-2024-000042.
func Format(year, n int) string {
	return fmt.Sprintf("%s-%04d-%06d", Prefix, year, n)
}

// Validate reports whether s is a well formed tracking number.
func Validate(s string) bool {
	return pattern.MatchString(s)
}

// Parse splits a tracking number into its year and sequence value.
func Parse(s string) (year, n int, err error) {
	if !Validate(s) {
		return 0, 0, dErrors.New(dErrors.CodeValidation, "invalid tracking number format")
	}
	year, _ = strconv.Atoi(s[4:8])
	n, _ = strconv.Atoi(s[9:])
	return year, n, nil
}
