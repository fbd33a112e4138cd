package tx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithTx_NilLeavesContextUntouched(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithTx(ctx, nil))

	_, ok := From(ctx)
	assert.False(t, ok)
}

func TestFrom_ReturnsStoredTx(t *testing.T) {
	sqlTx := &sql.Tx{}
	got, ok := From(WithTx(context.Background(), sqlTx))
	require.True(t, ok)
	assert.Same(t, sqlTx, got)
}

func TestConn_PrefersContextTx(t *testing.T) {
	db := &sql.DB{}
	assert.Same(t, db, Conn(context.Background(), db))

	sqlTx := &sql.Tx{}
	assert.Same(t, sqlTx, Conn(WithTx(context.Background(), sqlTx), db))
}

func TestSQLRunner_JoinsExistingTx(t *testing.T) {
	sqlTx := &sql.Tx{}
	ctx := WithTx(context.Background(), sqlTx)

	// db is nil: joining must not begin a new transaction
	err := NewSQLRunner(nil).RunInTx(ctx, func(ctx context.Context) error {
		got, ok := From(ctx)
		assert.True(t, ok)
		assert.Same(t, sqlTx, got)
		return nil
	})
	require.NoError(t, err)
}

func TestNopRunner_PropagatesError(t *testing.T) {
	want := errors.New("boom")
	err := NopRunner{}.RunInTx(context.Background(), func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
}
