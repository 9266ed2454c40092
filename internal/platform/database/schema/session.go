package schema

// SessionTable represents the session table. Its name is configurable
// (SESSION_TABLE), so Table is only the default.
type SessionTable struct {
	Table     string
	ID        string
	UserID    string
	CreatedAt string
	ExpiresAt string
}

// Session is the schema definition for the session table
var Session = SessionTable{
	Table:     "session",
	ID:        "sid",
	UserID:    "user_id",
	CreatedAt: "created_at",
	ExpiresAt: "expire",
}

// Columns returns all standard column names
func (t SessionTable) Columns() []string {
	return []string{
		t.ID, t.UserID, t.CreatedAt, t.ExpiresAt,
	}
}
