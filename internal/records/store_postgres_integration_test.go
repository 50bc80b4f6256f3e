//go:build integration

package records_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"primegate/internal/records"
	"primegate/pkg/platform/sentinel"
	"primegate/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *records.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())

	store, err := records.NewPostgresStore(s.postgres.DB, "users")
	s.Require().NoError(err)
	s.Require().NoError(store.Migrate(context.Background()))
	s.store = store
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "users"))
}

func (s *PostgresStoreSuite) TestCreateGetRoundTrip() {
	ctx := context.Background()
	record := records.NewRecord("p-1", "jane@example.com", records.RoleDoctor, records.StatePendingApproval, time.Now().UTC().Truncate(time.Microsecond))

	s.Require().NoError(s.store.Create(ctx, record))

	got, version, err := s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(int64(1), version)
	s.Equal(record.Email, got.Email)
	s.Equal(record.Role, got.Role)
	s.Equal(record.ApprovalState, got.ApprovalState)

	byEmail, _, err := s.store.FindByEmail(ctx, "jane@example.com")
	s.Require().NoError(err)
	s.Equal(record.PrincipalID, byEmail.PrincipalID)
}

func (s *PostgresStoreSuite) TestDuplicateCreate() {
	ctx := context.Background()
	record := records.NewRecord("p-1", "jane@example.com", records.RoleDoctor, records.StatePendingApproval, time.Now())
	s.Require().NoError(s.store.Create(ctx, record))

	s.Run("same principal conflicts", func() {
		dup := record
		dup.Email = "other@example.com"
		s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrAlreadyExists)
	})

	s.Run("same email conflicts", func() {
		dup := record
		dup.PrincipalID = "p-2"
		s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrAlreadyExists)
	})
}

func (s *PostgresStoreSuite) TestVersionedUpdate() {
	ctx := context.Background()
	record := records.NewRecord("p-1", "jane@example.com", records.RoleDoctor, records.StatePendingApproval, time.Now())
	s.Require().NoError(s.store.Create(ctx, record))

	record.ApprovalState = records.StateApproved
	next, err := s.store.PutIfVersion(ctx, record, 1)
	s.Require().NoError(err)
	s.Equal(int64(2), next)

	s.Run("stale version conflicts", func() {
		record.ApprovalState = records.StateRevoked
		_, err := s.store.PutIfVersion(ctx, record, 1)
		s.ErrorIs(err, sentinel.ErrVersionConflict)
	})

	s.Run("missing record is not found", func() {
		ghost := records.NewRecord("ghost", "ghost@example.com", records.RoleDoctor, records.StateApproved, time.Now())
		_, err := s.store.PutIfVersion(ctx, ghost, 1)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentVersionedUpdates verifies that racing writers on the same
// record resolve to exactly one winner per version.
func (s *PostgresStoreSuite) TestConcurrentVersionedUpdates() {
	ctx := context.Background()
	record := records.NewRecord("p-1", "jane@example.com", records.RoleDoctor, records.StatePendingApproval, time.Now())
	s.Require().NoError(s.store.Create(ctx, record))

	const goroutines = 20
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			update := record
			update.ApprovalState = records.StateApproved
			_, err := s.store.PutIfVersion(ctx, update, 1)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrVersionConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load(), "exactly one writer should win version 1")
	s.Equal(int32(goroutines-1), conflicts.Load())

	_, version, err := s.store.Get(ctx, "p-1")
	s.Require().NoError(err)
	s.Equal(int64(2), version)
}

func (s *PostgresStoreSuite) TestListAndManagerCount() {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(s.store.Create(ctx, records.NewRecord("p-2", "b@example.com", records.RoleManager, records.StateApproved, base.Add(time.Hour))))
	s.Require().NoError(s.store.Create(ctx, records.NewRecord("p-1", "a@example.com", records.RoleDoctor, records.StatePendingApproval, base)))

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal("a@example.com", list[0].Email)

	count, err := s.store.CountApprovedManagers(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}
