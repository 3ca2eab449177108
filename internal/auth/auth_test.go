package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/auth"
	"muzikuj/internal/dbtest"
)

func TestSessionRoundTrip(t *testing.T) {
	dbc := dbtest.New(t)
	uid := dbtest.CreateUser(t, dbc, "jano", dbtest.UserOpts{})
	m := auth.NewManager(dbc, time.Hour, false)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Create(t.Context(), rec, uid))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, ok := m.CurrentUserID(req)
	require.True(t, ok)
	assert.Equal(t, uid, got)

	u, err := m.CurrentUser(req)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "jano", u.Username)

	m.Destroy(httptest.NewRecorder(), req)
	_, ok = m.CurrentUserID(req)
	assert.False(t, ok)
}

func TestCurrentUserSkipsDeleted(t *testing.T) {
	dbc := dbtest.New(t)
	uid := dbtest.CreateUser(t, dbc, "fero", dbtest.UserOpts{})
	m := auth.NewManager(dbc, time.Hour, false)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Create(t.Context(), rec, uid))
	_, err := dbc.Exec(`UPDATE users SET is_deleted = 1 WHERE id = ?`, uid)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(rec.Result().Cookies()[0])
	u, err := m.CurrentUser(req)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestExpiredSession(t *testing.T) {
	dbc := dbtest.New(t)
	uid := dbtest.CreateUser(t, dbc, "mila", dbtest.UserOpts{})
	m := auth.NewManager(dbc, -time.Minute, false)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Create(t.Context(), rec, uid))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: rec.Result().Cookies()[0].Name, Value: rec.Result().Cookies()[0].Value})
	_, ok := m.CurrentUserID(req)
	assert.False(t, ok)
}

func TestPassword(t *testing.T) {
	h, err := auth.HashPassword("tajne-heslo")
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("tajne-heslo", h))
	assert.False(t, auth.CheckPassword("ine", h))
}

func TestSecondLoginKeepsFirstSession(t *testing.T) {
	dbc := dbtest.New(t)
	uid := dbtest.CreateUser(t, dbc, "dusan", dbtest.UserOpts{})
	m := auth.NewManager(dbc, time.Hour, false)

	var reqs []*http.Request
	for range 2 {
		rec := httptest.NewRecorder()
		require.NoError(t, m.Create(t.Context(), rec, uid))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(rec.Result().Cookies()[0])
		reqs = append(reqs, req)
	}
	for _, req := range reqs {
		got, ok := m.CurrentUserID(req)
		require.True(t, ok)
		assert.Equal(t, uid, got)
	}

	require.NoError(t, m.DestroyAll(t.Context(), uid))
	for _, req := range reqs {
		_, ok := m.CurrentUserID(req)
		assert.False(t, ok)
	}
}
