//go:build integration

package tracking_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"grievance/internal/complaint/tracking"
	"grievance/pkg/platform/tx"
	"grievance/pkg/testutil/containers"
)

type PostgresSequenceSuite struct {
	suite.Suite
	postgres  *containers.PostgresContainer
	generator *tracking.Generator
	tx        *tx.Postgres
}

func TestPostgresSequenceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresSequenceSuite))
}

func (s *PostgresSequenceSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.generator = tracking.NewGenerator(tracking.NewPostgresSequence(s.postgres.DB))
	s.tx = tx.NewPostgres(s.postgres.DB)
}

func (s *PostgresSequenceSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "tracking_sequences"))
}

func (s *PostgresSequenceSuite) TestSequentialPerYear() {
	ctx := context.Background()
	first, err := s.generator.Generate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal("CMP-2025-000001", first)

	second, err := s.generator.Generate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal("CMP-2025-000002", second)

	other, err := s.generator.Generate(ctx, 2030)
	s.Require().NoError(err)
	s.Equal("CMP-2030-000001", other)
}

func (s *PostgresSequenceSuite) TestConcurrentTransactionsNeverCollide() {
	const workers = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]int{}
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.tx.RunInTx(context.Background(), func(ctx context.Context) error {
				tn, err := s.generator.Generate(ctx, 2025)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[tn]++
				mu.Unlock()
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.Len(seen, workers)
	for tn, n := range seen {
		s.Equal(1, n, tn)
	}
}

func (s *PostgresSequenceSuite) TestRolledBackAllocationIsReused() {
	ctx := context.Background()
	_ = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		_, err := s.generator.Generate(ctx, 2025)
		s.Require().NoError(err)
		return context.Canceled
	})
	tn, err := s.generator.Generate(ctx, 2025)
	s.Require().NoError(err)
	s.Equal("CMP-2025-000001", tn, "a rolled back allocation is reused")
}
