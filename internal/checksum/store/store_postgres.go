package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"idcheck/internal/checksum/models"
	id "idcheck/pkg/domain"
	"idcheck/pkg/platform/sentinel"
	txcontext "idcheck/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL SQLSTATE for duplicate keys.
const uniqueViolation = "23505"

// PostgresStore persists the ledger in the verifications table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts v, joining the transaction in ctx when there is one.
func (s *PostgresStore) Append(ctx context.Context, v *models.Verification) error {
	_, err := txcontext.Conn(ctx, s.db).ExecContext(ctx, `
		INSERT INTO verifications (id, kind, subject_hash, masked, valid, checksum, request_id, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		uuid.UUID(v.ID),
		string(v.Kind),
		v.SubjectHash,
		v.Masked,
		v.Valid,
		v.Checksum,
		v.RequestID,
		v.CheckedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert verification: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, vid id.VerificationID) (*models.Verification, error) {
	row := txcontext.Conn(ctx, s.db).QueryRowContext(ctx, `
		SELECT id, kind, subject_hash, masked, valid, checksum, request_id, checked_at
		FROM verifications
		WHERE id = $1
	`, uuid.UUID(vid))
	v, err := scanVerification(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find verification by id: %w", err)
	}
	return v, nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]*models.Verification, error) {
	rows, err := txcontext.Conn(ctx, s.db).QueryContext(ctx, `
		SELECT id, kind, subject_hash, masked, valid, checksum, request_id, checked_at
		FROM verifications
		ORDER BY checked_at DESC, id
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list verifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Verification
	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan verification: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// isUniqueViolation understands both registered drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVerification(row scanner) (*models.Verification, error) {
	var (
		v    models.Verification
		vid  uuid.UUID
		kind string
	)
	if err := row.Scan(&vid, &kind, &v.SubjectHash, &v.Masked, &v.Valid, &v.Checksum, &v.RequestID, &v.CheckedAt); err != nil {
		return nil, err
	}
	v.ID = id.VerificationID(vid)
	v.Kind = models.Kind(kind)
	return &v, nil
}
