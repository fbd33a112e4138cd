//go:build integration

package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"idcheck/internal/checksum/models"
	"idcheck/internal/checksum/store"
	"idcheck/internal/platform/config"
	"idcheck/internal/platform/postgres"
	id "idcheck/pkg/domain"
	"idcheck/pkg/platform/sentinel"
	txcontext "idcheck/pkg/platform/tx"
	"idcheck/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "verifications"))
}

func newVerification(at time.Time, valid bool) *models.Verification {
	return &models.Verification{
		ID:          id.NewVerificationID(),
		SubjectHash: testSubjectHash,
		Masked:      "XXXX XXXX 9842",
		Valid:       valid,
		Checksum:    0,
		Kind:        models.KindAadhaar,
		RequestID:   "req-1",
		CheckedAt:   at.UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	v := newVerification(time.Now(), true)

	s.Require().NoError(s.store.Append(ctx, v))

	got, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.Equal(v.ID, got.ID)
	s.Equal(v.SubjectHash, got.SubjectHash)
	s.Equal(v.Masked, got.Masked)
	s.Equal(v.Valid, got.Valid)
	s.Equal(v.Kind, got.Kind)
	s.Equal(v.RequestID, got.RequestID)
	s.True(v.CheckedAt.Equal(got.CheckedAt))

	s.ErrorIs(s.store.Append(ctx, v), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindByIDNotFound() {
	_, err := s.store.FindByID(context.Background(), id.NewVerificationID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestListRecentNewestFirst() {
	ctx := context.Background()
	base := time.Now()
	var ids []id.VerificationID
	for i := range 3 {
		v := newVerification(base.Add(time.Duration(i)*time.Second), i%2 == 0)
		s.Require().NoError(s.store.Append(ctx, v))
		ids = append(ids, v.ID)
	}

	list, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(ids[2], list[0].ID)
	s.Equal(ids[1], list[1].ID)
}

func (s *PostgresStoreSuite) TestAppendRollsBackWithTransaction() {
	ctx := context.Background()
	v := newVerification(time.Now(), true)
	rollback := errors.New("abort")

	err := txcontext.NewSQLRunner(s.postgres.DB).RunInTx(ctx, func(ctx context.Context) error {
		s.Require().NoError(s.store.Append(ctx, v))
		return rollback
	})
	s.ErrorIs(err, rollback)

	_, err = s.store.FindByID(ctx, v.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// The pgx driver reports unique violations as *pgconn.PgError rather than
// *pq.Error; both must map to ErrConflict.
func (s *PostgresStoreSuite) TestConflictWithPgxDriver() {
	ctx := context.Background()
	db, err := postgres.Open(ctx, config.DatabaseConfig{
		URL:          s.postgres.URL,
		Driver:       "pgx",
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	})
	s.Require().NoError(err)
	defer db.Close()

	pgxStore := store.NewPostgres(db)
	v := newVerification(time.Now(), false)
	s.Require().NoError(pgxStore.Append(ctx, v))
	s.ErrorIs(pgxStore.Append(ctx, v), sentinel.ErrConflict)

	got, err := s.store.FindByID(ctx, v.ID)
	s.Require().NoError(err)
	s.False(got.Valid)
}

// testSubjectHash stands in for a keyed subject hash; stores treat it as opaque.
const testSubjectHash = "5f0c3a9e7d21b84c6e93f0a1d2c4b5e6f708192a3b4c5d6e7f8091a2b3c4d5e6"
