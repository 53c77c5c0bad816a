//go:build integration

package store_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"grievance/internal/entity/models"
	"grievance/internal/entity/store"
	id "grievance/pkg/domain"
	"grievance/pkg/platform/sentinel"
	"grievance/pkg/testutil/containers"
)

type PostgresEntityStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresEntityStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresEntityStoreSuite))
}

func (s *PostgresEntityStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresEntityStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "entities"))
}

func (s *PostgresEntityStoreSuite) newEntity(email string) *models.Entity {
	e, err := models.NewEntity(id.EntityID(uuid.New()), "Entity "+email, email, "", "", models.TypeDepartment, true, time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)
	return e
}

func (s *PostgresEntityStoreSuite) TestUniqueEmail() {
	ctx := context.Background()
	s.Require().NoError(s.store.Create(ctx, s.newEntity("health@gov.example")))
	err := s.store.Create(ctx, s.newEntity("HEALTH@gov.example"))
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresEntityStoreSuite) TestSoftDeleteHidesRow() {
	ctx := context.Background()
	e := s.newEntity("gone@gov.example")
	s.Require().NoError(s.store.Create(ctx, e))

	_, err := s.store.Execute(ctx, e.ID,
		func(*models.Entity) error { return nil },
		func(e *models.Entity) { e.ApplyDelete(time.Now()) },
	)
	s.Require().NoError(err)

	_, err = s.store.FindByID(ctx, e.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.store.List(ctx, store.Filter{})
	s.Require().NoError(err)
	s.Empty(list)
}

// TestConcurrentToggle verifies FOR UPDATE serialises read-modify-write cycles.
func (s *PostgresEntityStoreSuite) TestConcurrentToggle() {
	ctx := context.Background()
	e := s.newEntity("toggle@gov.example")
	s.Require().NoError(s.store.Create(ctx, e))

	const goroutines = 10
	var wg sync.WaitGroup
	var failures atomic.Int32
	for range goroutines {
		wg.Go(func() {
			_, err := s.store.Execute(ctx, e.ID,
				func(*models.Entity) error { return nil },
				func(e *models.Entity) { e.ApplyToggleActive(time.Now()) },
			)
			if err != nil {
				failures.Add(1)
			}
		})
	}
	wg.Wait()

	s.Zero(failures.Load())
	found, err := s.store.FindByID(ctx, e.ID)
	s.Require().NoError(err)
	s.True(found.IsActive, "an even number of toggles returns to active")
}
