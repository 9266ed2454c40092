// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package billing

import (
	"context"

	"github.com/taibuivan/payhub/pkg/pagination"
)

type Repository interface {
	ListPlans(context context.Context) ([]*Plan, error)
	CreatePlan(context context.Context, plan *Plan) error
	UpdatePlan(context context.Context, plan *Plan) error
	DeletePlan(context context.Context, id int64) error
	ListSubscriptions(context context.Context, params pagination.Params) ([]*Subscription, int, error)
}
