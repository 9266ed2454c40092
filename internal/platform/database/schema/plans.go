package schema

// PlanTable represents the 'plans' table
type PlanTable struct {
	Table        string
	ID           string
	Name         string
	Price        string
	BillingCycle string
	Features     string
	IsPopular    string
}

// Plan is the schema definition for plans
var Plan = PlanTable{
	Table:        "plans",
	ID:           "id",
	Name:         "name",
	Price:        "price",
	BillingCycle: "billing_cycle",
	Features:     "features",
	IsPopular:    "is_popular",
}

// Columns returns all standard column names
func (t PlanTable) Columns() []string {
	return []string{
		t.ID, t.Name, t.Price, t.BillingCycle, t.Features, t.IsPopular,
	}
}
