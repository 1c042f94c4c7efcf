package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestWithTenant_SetsTenantBeforeWork(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT set_config\('app.tenant_id', \$1, true\)`).
		WithArgs("acme").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("UPDATE proposals").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := WithTenant(context.Background(), mock, "acme", func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE proposals SET status = 'approved'")
		return err
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenant_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config").WithArgs("acme").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	err := WithTenant(context.Background(), mock, "acme", func(pgx.Tx) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenant_SetConfigFailureSkipsWork(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config").WithArgs("acme").WillReturnError(errors.New("conn reset"))
	mock.ExpectRollback()

	called := false
	err := WithTenant(context.Background(), mock, "acme", func(pgx.Tx) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called, "work must not run without a tenant scope")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTenant_RequiresTenant(t *testing.T) {
	mock := newMock(t)
	err := WithTenant(context.Background(), mock, "", func(pgx.Tx) error { return nil })
	assert.ErrorIs(t, err, ErrNoTenant)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(\$1\)`).WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS tenant_configs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCommit()

	require.NoError(t, Migrate(context.Background(), mock, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_ApplyFailureRollsBackAndReleasesLock(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockID).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	mock.ExpectRollback()

	require.Error(t, Migrate(context.Background(), mock, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrate_LockFailureSkipsSchema(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").WithArgs(migrationLockID).
		WillReturnError(errors.New("canceling statement due to lock timeout"))
	mock.ExpectRollback()

	require.Error(t, Migrate(context.Background(), mock, zap.NewNop()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSchema_ForcesRowLevelSecurity(t *testing.T) {
	for _, table := range []string{"tenant_configs", "proposals", "proposal_logs"} {
		assert.Contains(t, schema, "ALTER TABLE "+table+" FORCE ROW LEVEL SECURITY")
		assert.Contains(t, schema, "CREATE POLICY tenant_isolation ON "+table)
	}
}
