package schema

// UserTable represents the 'users' table
type UserTable struct {
	Table     string
	ID        string
	Username  string
	Password  string
	FullName  string
	Email     string
	Company   string
	IsAdmin   string
	CreatedAt string
}

// User is the schema definition for users
var User = UserTable{
	Table:     "users",
	ID:        "id",
	Username:  "username",
	Password:  "password",
	FullName:  "full_name",
	Email:     "email",
	Company:   "company",
	IsAdmin:   "is_admin",
	CreatedAt: "created_at",
}

// Columns returns all standard column names
func (t UserTable) Columns() []string {
	return []string{
		t.ID, t.Username, t.Password, t.FullName, t.Email, t.Company, t.IsAdmin, t.CreatedAt,
	}
}
