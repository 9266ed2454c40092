// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/taibuivan/payhub/internal/platform/apperr"
	"github.com/taibuivan/payhub/internal/platform/database/schema"
	"github.com/taibuivan/payhub/internal/platform/dberr"
	"github.com/taibuivan/payhub/internal/platform/postgres"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// ErrPlanInUse is returned when a plan still has subscriptions.
var ErrPlanInUse = apperr.BadRequest("PLAN_IN_USE", "Plan has subscriptions and cannot be deleted")

type PostgresRepository struct {
	db postgres.DBTX

	// types decodes text[] columns read through database/sql.
	types *pgtype.Map
}

func NewPostgresRepository(db postgres.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, types: pgtype.NewMap()}
}

func (repository *PostgresRepository) scanPlan(row interface{ Scan(dest ...any) error }) (*Plan, error) {
	plan := &Plan{}
	err := row.Scan(
		&plan.ID, &plan.Name, &plan.Price, &plan.BillingCycle,
		repository.types.SQLScanner(&plan.Features), &plan.IsPopular,
	)
	if err != nil {
		return nil, err
	}
	if plan.Features == nil {
		plan.Features = []string{}
	}
	return plan, nil
}

func (repository *PostgresRepository) ListPlans(context context.Context) ([]*Plan, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s ASC`,
		strings.Join(schema.Plan.Columns(), ", "), schema.Plan.Table, schema.Plan.ID,
	)

	rows, err := repository.db.QueryContext(context, query)
	if err != nil {
		return nil, dberr.Wrap(err, "Plan")
	}
	defer rows.Close()

	plans := []*Plan{}
	for rows.Next() {
		plan, err := repository.scanPlan(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "Plan")
		}
		plans = append(plans, plan)
	}

	return plans, dberr.Wrap(rows.Err(), "Plan")
}

func (repository *PostgresRepository) CreatePlan(context context.Context, plan *Plan) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING %s
	`,
		schema.Plan.Table, schema.Plan.Name, schema.Plan.Price, schema.Plan.BillingCycle,
		schema.Plan.Features, schema.Plan.IsPopular,
		schema.Plan.ID,
	)

	err := repository.db.QueryRowContext(context, query,
		plan.Name, plan.Price, plan.BillingCycle, plan.Features, plan.IsPopular,
	).Scan(&plan.ID)
	return dberr.Wrap(err, "Plan")
}

func (repository *PostgresRepository) UpdatePlan(context context.Context, plan *Plan) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, %s = $3, %s = $4, %s = $5, %s = $6
		WHERE %s = $1
		RETURNING %s
	`,
		schema.Plan.Table, schema.Plan.Name, schema.Plan.Price, schema.Plan.BillingCycle,
		schema.Plan.Features, schema.Plan.IsPopular,
		schema.Plan.ID, schema.Plan.ID,
	)

	err := repository.db.QueryRowContext(context, query,
		plan.ID, plan.Name, plan.Price, plan.BillingCycle, plan.Features, plan.IsPopular,
	).Scan(&plan.ID)
	return dberr.Wrap(err, "Plan")
}

func (repository *PostgresRepository) DeletePlan(context context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, schema.Plan.Table, schema.Plan.ID)

	result, err := repository.db.ExecContext(context, query, id)
	if err != nil {
		if dberr.IsForeignKeyViolation(err) {
			return ErrPlanInUse
		}
		return dberr.Wrap(err, "Plan")
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return dberr.Wrap(err, "Plan")
	}
	if affected == 0 {
		return apperr.NotFound("Plan")
	}
	return nil
}

func (repository *PostgresRepository) ListSubscriptions(context context.Context, params pagination.Params) ([]*Subscription, int, error) {
	var total int
	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s`, schema.Subscription.Table)
	if err := repository.db.QueryRowContext(context, countQuery).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "Subscription")
	}

	query := fmt.Sprintf(`
		SELECT s.%s, s.%s, u.%s, s.%s, p.%s, s.%s, s.%s
		FROM %s s
		JOIN %s u ON u.%s = s.%s
		JOIN %s p ON p.%s = s.%s
		ORDER BY s.%s DESC
		LIMIT $1 OFFSET $2
	`,
		schema.Subscription.ID, schema.Subscription.UserID, schema.User.Username,
		schema.Subscription.PlanID, schema.Plan.Name, schema.Subscription.Status, schema.Subscription.StartedAt,
		schema.Subscription.Table,
		schema.User.Table, schema.User.ID, schema.Subscription.UserID,
		schema.Plan.Table, schema.Plan.ID, schema.Subscription.PlanID,
		schema.Subscription.StartedAt,
	)

	rows, err := repository.db.QueryContext(context, query, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "Subscription")
	}
	defer rows.Close()

	subscriptions := []*Subscription{}
	for rows.Next() {
		s := &Subscription{}
		if err := rows.Scan(&s.ID, &s.UserID, &s.Username, &s.PlanID, &s.PlanName, &s.Status, &s.StartedAt); err != nil {
			return nil, 0, dberr.Wrap(err, "Subscription")
		}
		subscriptions = append(subscriptions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, dberr.Wrap(err, "Subscription")
	}
	return subscriptions, total, nil
}
