// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// arrayConverter lets []string reach the mock driver as is, like pgx's stdlib
// driver does.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(value any) (driver.Value, error) {
	if values, ok := value.([]string); ok {
		return values, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(value)
}

var planColumns = []string{"id", "name", "price", "billing_cycle", "features", "is_popular"}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewPostgresRepository(db), mock
}

func TestPostgresRepository_ListPlans(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, price, billing_cycle, features, is_popular FROM plans ORDER BY id ASC")).
		WillReturnRows(sqlmock.NewRows(planColumns).
			AddRow(int64(1), "Starter", 29, "month", `{"Accept major credit cards","24/7 email support"}`, false).
			AddRow(int64(2), "Professional", 79, "month", nil, true))

	plans, err := repo.ListPlans(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, "Starter", plans[0].Name)
	assert.Equal(t, []string{"Accept major credit cards", "24/7 email support"}, plans[0].Features)
	assert.Equal(t, []string{}, plans[1].Features, "null features render as an empty list")
	assert.True(t, plans[1].IsPopular)
}

func TestPostgresRepository_CreatePlan(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	features := []string{"Unlimited processing"}

	mock.ExpectQuery(`INSERT INTO plans \(name, price, billing_cycle, features, is_popular\)`).
		WithArgs("Enterprise", 249, "month", features, false).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	plan := &Plan{Name: "Enterprise", Price: 249, BillingCycle: "month", Features: features}
	require.NoError(t, repo.CreatePlan(context.Background(), plan))
	assert.Equal(t, int64(3), plan.ID)
}

func TestPostgresRepository_UpdatePlan_NotFound(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`UPDATE plans`).
		WithArgs(int64(9), "Gone", 1, "month", []string{}, false).
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdatePlan(context.Background(), &Plan{ID: 9, Name: "Gone", Price: 1, BillingCycle: "month", Features: []string{}})
	assert.True(t, apperr.HasCode(err, "NOT_FOUND"))
}

func TestPostgresRepository_DeletePlan(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	query := regexp.QuoteMeta("DELETE FROM plans WHERE id = $1")

	mock.ExpectExec(query).WithArgs(int64(1)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(int64(2)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(query).WithArgs(int64(3)).
		WillReturnError(&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation})

	assert.NoError(t, repo.DeletePlan(context.Background(), 1))
	assert.True(t, apperr.HasCode(repo.DeletePlan(context.Background(), 2), "NOT_FOUND"))
	assert.ErrorIs(t, repo.DeletePlan(context.Background(), 3), ErrPlanInUse)
}

func TestPostgresRepository_ListSubscriptions(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	started := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM subscriptions")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`JOIN users u ON u.id = s.user_id\s+JOIN plans p ON p.id = s.plan_id`).
		WithArgs(20, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "username", "plan_id", "name", "status", "started_at"}).
			AddRow(int64(5), int64(7), "ana", int64(2), "Professional", "active", started))

	subscriptions, total, err := repo.ListSubscriptions(context.Background(), pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, subscriptions, 1)
	assert.Equal(t, "ana", subscriptions[0].Username)
	assert.Equal(t, "Professional", subscriptions[0].PlanName)
	assert.Equal(t, started, subscriptions[0].StartedAt)
}

func TestPostgresRepository_Unavailable(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectQuery(`FROM plans`).WillReturnError(context.DeadlineExceeded)

	_, err := repo.ListPlans(context.Background())
	assert.True(t, apperr.HasCode(err, "INFRASTRUCTURE_ERROR"))
}
