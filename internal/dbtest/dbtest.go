// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/db"
)

func New(t testing.TB) *sqlx.DB {
	t.Helper()
	dbc, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { dbc.Close() })
	require.NoError(t, db.Migrate(context.Background(), dbc))
	return dbc
}

// UserOpts tweaks the row inserted by CreateUser.
type UserOpts struct {
	Plan        string
	AccountType string
	Admin       bool
	Moderator   bool
	VIP         bool
	Strikes     int
	CreatedAt   time.Time
	NoRating    bool
	PassHash    string
}

// CreateUser inserts an active user called name with email name@test.sk.
func CreateUser(t testing.TB, dbc *sqlx.DB, name string, o UserOpts) int64 {
	t.Helper()
	if o.Plan == "" {
		o.Plan = "free"
	}
	if o.AccountType == "" {
		o.AccountType = "individual"
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = db.Now().AddDate(0, -1, 0)
	}
	if o.PassHash == "" {
		o.PassHash = "x"
	}
	res, err := dbc.Exec(`INSERT INTO users(username, email, password_hash, created_at, plan, account_type,
		is_admin, is_moderator, is_vip, strikes_count, allow_rating)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		name, name+"@test.sk", o.PassHash, o.CreatedAt.UTC(), o.Plan, o.AccountType,
		o.Admin, o.Moderator, o.VIP, o.Strikes, !o.NoRating)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}
