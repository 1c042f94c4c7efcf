package tenant

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
)

var columns = []string{"tenant_id", "platform", "retrieval_enabled", "analysis_depth", "max_tokens"}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgres_GetConfig(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config").WithArgs("acme").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM tenant_configs WHERE tenant_id = \\$1 AND platform = \\$2").
		WithArgs("acme", "zendesk").
		WillReturnRows(pgxmock.NewRows(columns).AddRow("acme", "zendesk", false, "deep", 4000))
	mock.ExpectCommit()

	cfg, err := NewPostgres(mock).GetConfig(context.Background(), "acme", "zendesk")
	require.NoError(t, err)
	assert.Equal(t, tenant.Config{
		TenantID: "acme", Platform: "zendesk", RetrievalEnabled: false,
		AnalysisDepth: tenant.DepthDeep, MaxTokens: 4000,
	}, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_GetConfigMissing(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT set_config").WithArgs("acme").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM tenant_configs").WithArgs("acme", "freshdesk").WillReturnRows(pgxmock.NewRows(columns))
	mock.ExpectRollback()

	_, err := NewPostgres(mock).GetConfig(context.Background(), "acme", "freshdesk")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatic(t *testing.T) {
	s, err := NewStatic([]tenant.Config{{TenantID: "acme", Platform: "zendesk", RetrievalEnabled: true}})
	require.NoError(t, err)

	cfg, err := s.GetConfig(context.Background(), "acme", "zendesk")
	require.NoError(t, err)
	assert.True(t, cfg.RetrievalEnabled)

	_, err = s.GetConfig(context.Background(), "acme", "jira")
	assert.ErrorIs(t, err, domain.ErrTenantNotFound)

	_, err = NewStatic([]tenant.Config{{TenantID: "acme"}})
	assert.Error(t, err, "platform is required")
}
