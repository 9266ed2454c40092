// Copyright (c) 2026 PayHub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taibuivan/payhub/internal/platform/database/schema"
	"github.com/taibuivan/payhub/internal/platform/dberr"
	"github.com/taibuivan/payhub/internal/platform/postgres"
	"github.com/taibuivan/payhub/pkg/pagination"
)

// # User Directory

// PostgresUserDirectory implements the UserDirectory interface on the users table.
type PostgresUserDirectory struct {
	db postgres.DBTX
}

// NewUserDirectory creates a new PostgreSQL implementation of the UserDirectory.
func NewUserDirectory(db postgres.DBTX) *PostgresUserDirectory {
	return &PostgresUserDirectory{db: db}
}

var userSelect = fmt.Sprintf("SELECT %s FROM %s",
	strings.Join(schema.User.Columns(), ", "), schema.User.Table)

// scanUser maps one users row in [schema.UserTable.Columns] order.
func scanUser(row interface{ Scan(dest ...any) error }) (*User, error) {
	user := &User{}
	var fullName, email, company sql.NullString

	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordDigest,
		&fullName,
		&email,
		&company,
		&user.IsAdmin,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.FullName = nullableString(fullName)
	user.Email = nullableString(email)
	user.Company = nullableString(company)
	return user, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}

/*
FindByID retrieves a user record by its numeric ID.

Parameters:
  - context: context.Context
  - id: int64

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (directory *PostgresUserDirectory) FindByID(context context.Context, id int64) (*User, error) {
	query := userSelect + fmt.Sprintf(" WHERE %s = $1", schema.User.ID)

	user, err := scanUser(directory.db.QueryRowContext(context, query, id))
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres_user_directory_find_by_id_failed: %w", err)
	}

	return user, nil
}

/*
FindByUsername retrieves a user record by its unique username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *User: Hydrated account entity
  - error: ErrUserNotFound or database errors
*/
func (directory *PostgresUserDirectory) FindByUsername(context context.Context, username string) (*User, error) {
	query := userSelect + fmt.Sprintf(" WHERE %s = $1", schema.User.Username)

	user, err := scanUser(directory.db.QueryRowContext(context, query, username))
	if err != nil {
		if dberr.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("postgres_user_directory_find_by_username_failed: %w", err)
	}

	return user, nil
}

/*
Create inserts a new user row and reads back the generated ID and timestamp.

Description: The unique constraint on username is the source of truth for
duplicates; a violation is reported as ErrDuplicateUsername.

Parameters:
  - context: context.Context
  - user: *User

Returns:
  - error: ErrDuplicateUsername or database errors
*/
func (directory *PostgresUserDirectory) Create(context context.Context, user *User) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (%s, %s, %s, %s, %s, %s)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s, %s`,
		schema.User.Table,
		schema.User.Username, schema.User.Password, schema.User.FullName,
		schema.User.Email, schema.User.Company, schema.User.IsAdmin,
		schema.User.ID, schema.User.CreatedAt,
	)

	err := directory.db.QueryRowContext(context, query,
		user.Username,
		user.PasswordDigest,
		user.FullName,
		user.Email,
		user.Company,
		user.IsAdmin,
	).Scan(&user.ID, &user.CreatedAt)

	if err != nil {
		if dberr.IsUniqueViolation(err) {
			return ErrDuplicateUsername
		}
		return fmt.Errorf("postgres_user_directory_create_failed: %w", err)
	}

	return nil
}

/*
SetAdmin flips the admin flag of the named account.

Parameters:
  - context: context.Context
  - username: string
  - isAdmin: bool

Returns:
  - error: ErrUserNotFound or database errors
*/
func (directory *PostgresUserDirectory) SetAdmin(context context.Context, username string, isAdmin bool) error {
	query := fmt.Sprintf("UPDATE %s SET %s = $2 WHERE %s = $1",
		schema.User.Table, schema.User.IsAdmin, schema.User.Username)

	result, err := directory.db.ExecContext(context, query, username, isAdmin)
	if err != nil {
		return fmt.Errorf("postgres_user_directory_set_admin_failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres_user_directory_set_admin_failed: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	return nil
}

/*
List returns one page of accounts ordered by ID, together with the total count.

Parameters:
  - context: context.Context
  - params: pagination.Params

Returns:
  - []*User: The page
  - int: Total number of accounts
  - error: Database errors
*/
func (directory *PostgresUserDirectory) List(context context.Context, params pagination.Params) ([]*User, int, error) {
	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", schema.User.Table)
	if err := directory.db.QueryRowContext(context, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_directory_count_failed: %w", err)
	}

	query := userSelect + fmt.Sprintf(" ORDER BY %s LIMIT $1 OFFSET $2", schema.User.ID)
	rows, err := directory.db.QueryContext(context, query, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_user_directory_list_failed: %w", err)
	}
	defer rows.Close()

	users := make([]*User, 0, params.Limit)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("postgres_user_directory_list_scan_failed: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("postgres_user_directory_list_failed: %w", err)
	}

	return users, total, nil
}

// # Session Store

// PostgresSessionStore implements the SessionStore interface on a configurable table.
type PostgresSessionStore struct {
	db    postgres.DBTX
	table string
	now   func() time.Time
}

// NewSessionStore creates a PostgreSQL SessionStore. An empty table name
// selects the default from [schema.Session].
func NewSessionStore(db postgres.DBTX, table string) *PostgresSessionStore {
	if table == "" {
		table = schema.Session.Table
	}
	return &PostgresSessionStore{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
		now:   time.Now,
	}
}

/*
EnsureTable provisions the session table and its expiry index if missing.

Description: The session table is not part of the migration set; it is
created on first run when SESSION_CREATE_TABLE is enabled.

Parameters:
  - context: context.Context

Returns:
  - error: DDL failures
*/
func (store *PostgresSessionStore) EnsureTable(context context.Context) error {
	index := pgx.Identifier{strings.Trim(store.table, `"`) + "_expire_idx"}.Sanitize()

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s TEXT PRIMARY KEY,
			%s BIGINT NOT NULL,
			%s TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			%s TIMESTAMPTZ NOT NULL
		)`, store.table,
			schema.Session.ID, schema.Session.UserID, schema.Session.CreatedAt, schema.Session.ExpiresAt),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", index, store.table, schema.Session.ExpiresAt),
	}

	for _, statement := range statements {
		if _, err := store.db.ExecContext(context, statement); err != nil {
			return fmt.Errorf("postgres_session_store_ensure_table_failed: %w", err)
		}
	}

	return nil
}

/*
Create persists a new session under a freshly generated identifier.

Parameters:
  - context: context.Context
  - userID: int64
  - expiresAt: time.Time

Returns:
  - *Session: The stored record
  - error: Storage failures
*/
func (store *PostgresSessionStore) Create(context context.Context, userID int64, expiresAt time.Time) (*Session, error) {
	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        sessionID,
		UserID:    userID,
		CreatedAt: store.now().UTC(),
		ExpiresAt: expiresAt.UTC(),
	}

	query := fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s) VALUES ($1, $2, $3, $4)",
		store.table, schema.Session.ID, schema.Session.UserID, schema.Session.CreatedAt, schema.Session.ExpiresAt)

	if _, err := store.db.ExecContext(context, query,
		session.ID, session.UserID, session.CreatedAt, session.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("postgres_session_store_create_failed: %w", err)
	}

	return session, nil
}

/*
Read returns the session if it exists and has not expired.

Parameters:
  - context: context.Context
  - sessionID: string

Returns:
  - *Session: The stored record
  - error: ErrSessionNotFound or storage failures
*/
func (store *PostgresSessionStore) Read(context context.Context, sessionID string) (*Session, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = $1 AND %s > $2",
		strings.Join(schema.Session.Columns(), ", "), store.table,
		schema.Session.ID, schema.Session.ExpiresAt)

	session := &Session{}
	err := store.db.QueryRowContext(context, query, sessionID, store.now().UTC()).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("postgres_session_store_read_failed: %w", err)
	}

	return session, nil
}

/*
Destroy deletes the session row. Deleting a missing row is a no-op.
*/
func (store *PostgresSessionStore) Destroy(context context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", store.table, schema.Session.ID)
	if _, err := store.db.ExecContext(context, query, sessionID); err != nil {
		return fmt.Errorf("postgres_session_store_destroy_failed: %w", err)
	}
	return nil
}

/*
Touch extends a live session to expiresAt.

Returns:
  - error: ErrSessionNotFound when no live row matched, or storage failures
*/
func (store *PostgresSessionStore) Touch(context context.Context, sessionID string, expiresAt time.Time) error {
	query := fmt.Sprintf("UPDATE %s SET %s = $2 WHERE %s = $1 AND %s > $3",
		store.table, schema.Session.ExpiresAt, schema.Session.ID, schema.Session.ExpiresAt)

	result, err := store.db.ExecContext(context, query, sessionID, expiresAt.UTC(), store.now().UTC())
	if err != nil {
		return fmt.Errorf("postgres_session_store_touch_failed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres_session_store_touch_failed: %w", err)
	}
	if affected == 0 {
		return ErrSessionNotFound
	}

	return nil
}

/*
DeleteExpired removes every session whose expiry has passed.

Returns:
  - int64: Rows removed
  - error: Cleanup failures
*/
func (store *PostgresSessionStore) DeleteExpired(context context.Context) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s <= $1", store.table, schema.Session.ExpiresAt)

	result, err := store.db.ExecContext(context, query, store.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_delete_expired_failed: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("postgres_session_store_delete_expired_failed: %w", err)
	}

	return removed, nil
}
