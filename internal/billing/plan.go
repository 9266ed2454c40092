// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package billing serves the subscription plan catalogue and the admin views of
plans and subscriptions.

Payment processing is out of scope: a plan is a price label with a feature
list, and a subscription only records which account picked which plan.
*/
package billing

import "time"

// Plan is one entry of the public pricing table.
type Plan struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	Price        int      `json:"price"`
	BillingCycle string   `json:"billingCycle"`
	Features     []string `json:"features"`
	IsPopular    bool     `json:"isPopular"`
}

// Subscription is the admin view of a subscription row, joined with the
// account and plan it references.
type Subscription struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Username  string    `json:"username"`
	PlanID    int64     `json:"planId"`
	PlanName  string    `json:"planName"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// Billing cycles accepted for a plan.
const (
	CycleMonth = "month"
	CycleYear  = "year"
)

// Global field names for validation
const (
	FieldName         = "name"
	FieldPrice        = "price"
	FieldBillingCycle = "billingCycle"
	FieldFeatures     = "features"
)

// Limits for plan input.
const (
	NameMaxLength    = 120
	FeatureMaxLength = 200
	MaxFeatures      = 20
	MaxPrice         = 1_000_000
)
