package schema

// SubscriptionTable represents the 'subscriptions' table
type SubscriptionTable struct {
	Table     string
	ID        string
	UserID    string
	PlanID    string
	Status    string
	StartedAt string
}

// Subscription is the schema definition for subscriptions
var Subscription = SubscriptionTable{
	Table:     "subscriptions",
	ID:        "id",
	UserID:    "user_id",
	PlanID:    "plan_id",
	Status:    "status",
	StartedAt: "started_at",
}

// Columns returns all standard column names
func (t SubscriptionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.PlanID, t.Status, t.StartedAt,
	}
}
