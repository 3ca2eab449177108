package housekeeping

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/dbtest"
	"muzikuj/internal/models"
)

var now = time.Date(2025, 6, 15, 22, 30, 0, 0, time.UTC)

func TestRun(t *testing.T) {
	dbc := dbtest.New(t)
	uid := dbtest.CreateUser(t, dbc, "odchadzajuci", dbtest.UserOpts{VIP: true})
	keep := dbtest.CreateUser(t, dbc, "zostava", dbtest.UserOpts{})

	mustExec := func(q string, args ...any) {
		_, err := dbc.Exec(q, args...)
		require.NoError(t, err)
	}
	mustExec(`INSERT INTO requests(name, event_date, created_at) VALUES('past', '2025-06-14', ?)`, now)
	mustExec(`INSERT INTO requests(name, event_date, created_at) VALUES('today', '2025-06-15', ?)`, now)
	mustExec(`INSERT INTO requests(name, event_date, created_at) VALUES('undated', '', ?)`, now)
	mustExec(`INSERT INTO quick_requests(text, author_id, created_at, valid_until) VALUES('old', ?, ?, ?)`, keep, now, now.Add(-time.Minute))
	mustExec(`INSERT INTO quick_requests(text, author_id, created_at, valid_until) VALUES('fresh', ?, ?, ?)`, keep, now, now.Add(time.Hour))
	mustExec(`UPDATE users SET bio = 'gitarista', town = 'Nitra', searchable = 1, erase_token = 't',
		erase_requested_at = ?, erase_deadline_at = ? WHERE id = ?`, now.Add(-25*time.Hour), now.Add(-time.Hour), uid)
	mustExec(`UPDATE users SET erase_token = 't2', erase_requested_at = ?, erase_deadline_at = ? WHERE id = ?`,
		now, now.Add(time.Hour), keep)
	mustExec(`INSERT INTO sessions(id, user_id, expires_at) VALUES('s', ?, ?)`, uid, now.Add(time.Hour))

	// late evening UTC is already the next day in Bratislava
	loc, err := time.LoadLocation("Europe/Bratislava")
	require.NoError(t, err)
	r := New(dbc, 10*time.Minute, loc)
	r.now = func() time.Time { return now }

	res, err := r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result{ExpiredRequests: 2, ArchivedQuickRequests: 1, AnonymizedUsers: 1}, res)

	var active []string
	require.NoError(t, dbc.Select(&active, `SELECT name FROM requests WHERE active = 1`))
	assert.Equal(t, []string{"undated"}, active)

	var texts []string
	require.NoError(t, dbc.Select(&texts, `SELECT text FROM quick_requests WHERE active = 1`))
	assert.Equal(t, []string{"fresh"}, texts)

	var u models.User
	require.NoError(t, dbc.Get(&u, `SELECT * FROM users WHERE id = ?`, uid))
	assert.True(t, u.IsDeleted)
	assert.False(t, u.Active)
	assert.False(t, u.IsVIP)
	assert.False(t, u.Searchable)
	assert.Equal(t, "", u.Bio)
	assert.Contains(t, u.Username, "deleted_")
	assert.Contains(t, u.Email, "@example.invalid")

	var sessions int
	require.NoError(t, dbc.Get(&sessions, `SELECT COUNT(*) FROM sessions`))
	assert.Zero(t, sessions)

	var other models.User
	require.NoError(t, dbc.Get(&other, `SELECT * FROM users WHERE id = ?`, keep))
	assert.False(t, other.IsDeleted, "deadline not reached yet")

	res, err = r.Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Result{}, res, "second pass is a no-op")
}

func TestGateAdvancesOnlyOnSuccess(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	clock := now
	r := New(sqlx.NewDb(mockDB, "sqlite"), 10*time.Minute, nil)
	r.now = func() time.Time { return clock }

	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))
	r.MaybeRun(t.Context())
	assert.True(t, r.last.IsZero())

	// retried on the very next request
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE quick_requests").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()
	r.MaybeRun(t.Context())
	assert.Equal(t, clock, r.last)

	// inside the interval nothing touches the database
	clock = clock.Add(5 * time.Minute)
	r.MaybeRun(t.Context())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMiddlewareServesEvenWhenPassFails(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()
	mock.ExpectBegin().WillReturnError(errors.New("boom"))

	r := New(sqlx.NewDb(mockDB, "sqlite"), time.Minute, nil)
	h := r.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
