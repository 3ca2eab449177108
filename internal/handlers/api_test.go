package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/dbtest"
)

func TestRatingsAPI(t *testing.T) {
	app := newApp(t)
	raterID := dbtest.CreateUser(t, app.db, "hodnotitel", dbtest.UserOpts{})
	rateeID := dbtest.CreateUser(t, app.db, "bubenik", dbtest.UserOpts{})
	closedID := dbtest.CreateUser(t, app.db, "zatvoreny", dbtest.UserOpts{NoRating: true})
	c := app.login(t, raterID)

	rec := app.postJSON(t, "/api/ratings/rate", map[string]any{"ratee_id": rateeID, "stars": 5}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.postJSON(t, "/api/ratings/rate", map[string]any{"ratee_id": rateeID, "stars": 1, "reason": "zle"}, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "note_required", out["error"])
	assert.EqualValues(t, 10, out["min_len"])

	rec = app.postJSON(t, "/api/ratings/rate", map[string]any{"ratee_id": closedID, "stars": 4}, c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "not_allowed", decode(t, rec)["error"])

	rec = app.postJSON(t, "/api/ratings/rate", map[string]any{"ratee_id": rateeID, "stars": 4}, c)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out = decode(t, rec)
	assert.Equal(t, true, out["ok"])
	summary, ok := out["summary"].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, 1, summary["count"])
	assert.EqualValues(t, 4, summary["avg"])

	rec = app.postJSON(t, "/api/ratings/rate", map[string]any{"ratee_id": rateeID, "stars": 3}, c)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "too_frequent", decode(t, rec)["error"])

	rec = app.get(t, "/api/ratings/summary?user_id="+itoa(rateeID), c)
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.EqualValues(t, 1, out["count"])
	assert.NotNil(t, out["your_rating"])

	rec = app.get(t, "/api/ratings/summary", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.postJSON(t, "/api/ratings/remove", map[string]any{"ratee_id": rateeID}, c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["ok"])
	assert.Equal(t, 0, count(t, app.db, `SELECT COUNT(*) FROM user_ratings WHERE ratee_id = ? AND status = 'active'`, rateeID))
}

func TestCalendarAPI(t *testing.T) {
	app := newApp(t)
	ownerID := dbtest.CreateUser(t, app.db, "huslista", dbtest.UserOpts{})
	otherID := dbtest.CreateUser(t, app.db, "cudzi", dbtest.UserOpts{})
	c := app.login(t, ownerID)

	rec := app.postJSON(t, "/api/kalendar/udalost", map[string]any{"nazov": "Skúška", "datum": "2030-05-01"}, c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = app.postJSON(t, "/api/kalendar/udalost", map[string]any{
		"nazov": "Skúška", "datum": "2030-05-01", "od": "18:00", "do": "20:30", "miesto": "Zvolen",
	}, c)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = app.get(t, "/api/kalendar/udalosti", c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"title":"Skúška","start":"2030-05-01T18:00:00","end":"2030-05-01T20:30:00",
		"description":"","allDay":false,"extendedProps":{"miesto":"Zvolen"}}]`, rec.Body.String())

	rec = app.get(t, "/api/kalendar/udalosti", nil)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = app.get(t, "/api/kalendar/den/2030-05-01", c)
	assert.JSONEq(t, `[{"id":1,"nazov":"Skúška","miesto":"Zvolen"}]`, rec.Body.String())

	stranger := app.login(t, otherID)
	rec = app.do(t, http.MethodDelete, "/api/kalendar/udalost/1", nil, "", stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, http.MethodDelete, "/api/kalendar/udalost/1", nil, "", c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, count(t, app.db, `SELECT COUNT(*) FROM calendar_events`))
}

func TestForumNotifications(t *testing.T) {
	app := newApp(t)
	authorID := dbtest.CreateUser(t, app.db, "autor", dbtest.UserOpts{})
	replierID := dbtest.CreateUser(t, app.db, "odpovedajuci", dbtest.UserOpts{})
	author, replier := app.login(t, authorID), app.login(t, replierID)

	rec := app.post(t, "/komunita/forum/nova", url.Values{
		"nazov": {"Aké struny na basu?"}, "body": {"Hľadám odporúčanie."}, "kategoria_id": {"2"},
	}, author)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/komunita/forum/tema/1", rec.Header().Get("Location"))

	rec = app.post(t, "/komunita/forum/tema/1/odpoved", url.Values{"body": {"Skús niklové."}}, replier)
	require.Equal(t, http.StatusSeeOther, rec.Code)

	rec = app.get(t, "/api/forum/notifikacie", author)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["unread"])
	items, ok := out["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)

	rec = app.get(t, "/api/forum/notifikacie", replier)
	assert.EqualValues(t, 0, decode(t, rec)["unread"])

	rec = app.postJSON(t, "/api/forum/notifikacie/precitane", map[string]any{}, author)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode(t, rec)["marked"])

	rec = app.get(t, "/api/forum/notifikacie", author)
	assert.EqualValues(t, 0, decode(t, rec)["unread"])

	rec = app.get(t, "/api/forum/notifikacie", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
