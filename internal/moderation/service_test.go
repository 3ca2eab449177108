package moderation

import (
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/apperr"
	"muzikuj/internal/dbtest"
	"muzikuj/internal/models"
)

var testNow = time.Date(2025, 5, 10, 9, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *sqlx.DB) {
	dbc := dbtest.New(t)
	s := NewService(dbc)
	s.now = func() time.Time { return testNow }
	return s, dbc
}

func loadUser(t *testing.T, dbc *sqlx.DB, id int64) *models.User {
	var u models.User
	require.NoError(t, dbc.Get(&u, `SELECT * FROM users WHERE id = ?`, id))
	return &u
}

func sendMessage(t *testing.T, dbc *sqlx.DB, from, to int64, at time.Time) {
	_, err := dbc.Exec(`INSERT INTO messages(body, from_id, to_id, created_at) VALUES('ahoj', ?, ?, ?)`, from, to, at)
	require.NoError(t, err)
}

func TestIsTrusted(t *testing.T) {
	s, _ := newService(t)
	tests := []struct {
		name string
		u    *models.User
		want bool
	}{
		{"nil", nil, false},
		{"moderator", &models.User{IsModerator: true, CreatedAt: testNow}, true},
		{"new account", &models.User{CreatedAt: testNow.Add(-48 * time.Hour)}, false},
		{"old account", &models.User{CreatedAt: testNow.AddDate(0, 0, -8)}, true},
		{"exactly a week", &models.User{CreatedAt: testNow.Add(-MinAccountAge)}, true},
		{"strikes", &models.User{StrikesCount: 1, CreatedAt: testNow.AddDate(-1, 0, 0)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.IsTrusted(tt.u))
		})
	}
}

func TestHadTwoWayContact(t *testing.T) {
	s, dbc := newService(t)
	a := dbtest.CreateUser(t, dbc, "a", dbtest.UserOpts{})
	b := dbtest.CreateUser(t, dbc, "b", dbtest.UserOpts{})

	sendMessage(t, dbc, a, b, testNow.AddDate(0, 0, -1))
	ok, err := s.HadTwoWayContact(t.Context(), a, b, 14)
	require.NoError(t, err)
	assert.False(t, ok, "one direction only")

	sendMessage(t, dbc, b, a, testNow.AddDate(0, 0, -20))
	ok, err = s.HadTwoWayContact(t.Context(), a, b, 14)
	require.NoError(t, err)
	assert.False(t, ok, "reply too old")

	sendMessage(t, dbc, b, a, testNow.AddDate(0, 0, -2))
	ok, err = s.HadTwoWayContact(t.Context(), a, b, 14)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestScreen(t *testing.T) {
	s, dbc := newService(t)
	newbie := loadUser(t, dbc, dbtest.CreateUser(t, dbc, "newbie", dbtest.UserOpts{CreatedAt: testNow.Add(-time.Hour)}))
	veteran := loadUser(t, dbc, dbtest.CreateUser(t, dbc, "veteran", dbtest.UserOpts{CreatedAt: testNow.AddDate(-1, 0, 0)}))
	friend := dbtest.CreateUser(t, dbc, "friend", dbtest.UserOpts{})

	v := s.Screen(t.Context(), newbie, friend, "Kedy je skúška?")
	assert.Empty(t, v.Hits)
	assert.False(t, v.Hold)

	v = s.Screen(t.Context(), newbie, friend, "darujem gitaru za fajku")
	require.Len(t, v.Hits, 1)
	assert.True(t, v.Hold, "untrusted sender with a high hit")

	v = s.Screen(t.Context(), veteran, friend, "darujem gitaru za fajku")
	require.Len(t, v.Hits, 1)
	assert.False(t, v.Hold, "trusted sender is reported but not held")

	v = s.Screen(t.Context(), newbie, friend, "daj sex")
	require.Len(t, v.Hits, 1)
	assert.False(t, v.Hold, "medium severity is never held")

	sendMessage(t, dbc, veteran.ID, friend, testNow.Add(-time.Hour))
	sendMessage(t, dbc, friend, veteran.ID, testNow.Add(-time.Minute))
	v = s.Screen(t.Context(), veteran, friend, "daj sex")
	assert.Empty(t, v.Hits, "propositions between contacts are ignored")
}

func TestReportHitsAndQueue(t *testing.T) {
	s, _ := newService(t)
	s.ReportHits(t.Context(), "sprava", 5, Categorize("nezletilý, sex"))
	s.ReportFlag(t.Context(), "inzerat", 9, "predám porno kazety")
	s.ReportFlag(t.Context(), "inzerat", 10, "predám bicie")

	open, err := s.Queue(t.Context(), models.ReportOpen)
	require.NoError(t, err)
	require.Len(t, open, 3)
	byEntity := map[string]int{}
	for _, r := range open {
		byEntity[r.EntityType]++
		assert.False(t, r.ReporterID.Valid, "automatic reports have no reporter")
	}
	assert.Equal(t, map[string]int{"sprava": 2, "inzerat": 1}, byEntity)

	_, err = s.EnqueueReport(t.Context(), 0, "", 1, "x", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCloseReport(t *testing.T) {
	s, dbc := newService(t)
	mod := dbtest.CreateUser(t, dbc, "mod", dbtest.UserOpts{Moderator: true})
	id, err := s.EnqueueReport(t.Context(), mod, "dopyt", 3, "", "spam")
	require.NoError(t, err)

	require.NoError(t, s.Close(t.Context(), mod, id, models.ReportResolved, "vybavené"))
	all, err := s.Queue(t.Context(), "all")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.ReportResolved, all[0].Status)
	assert.Equal(t, "ine", all[0].Reason)
	assert.Equal(t, "vybavené", all[0].ResolutionNote)

	var logs []models.ModerationLog
	require.NoError(t, dbc.Select(&logs, `SELECT * FROM moderation_logs`))
	require.Len(t, logs, 1)
	assert.Equal(t, "resolve", logs[0].Action)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(s.Close(t.Context(), mod, id, "bogus", "")))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(s.Close(t.Context(), mod, 999, models.ReportIgnored, "")))
}

func TestUserSanctions(t *testing.T) {
	s, dbc := newService(t)
	mod := dbtest.CreateUser(t, dbc, "mod", dbtest.UserOpts{Moderator: true})
	uid := dbtest.CreateUser(t, dbc, "troll", dbtest.UserOpts{})

	require.NoError(t, s.Warn(t.Context(), mod, uid))
	require.NoError(t, s.Warn(t.Context(), mod, uid))
	assert.Equal(t, 2, loadUser(t, dbc, uid).StrikesCount)

	require.NoError(t, s.TempBan(t.Context(), mod, uid, 3, ""))
	u := loadUser(t, dbc, uid)
	assert.True(t, u.IsBanned(testNow))
	assert.False(t, u.IsBanned(testNow.AddDate(0, 0, 4)))
	assert.Equal(t, "Porušenie pravidiel", u.BannedReason)

	require.NoError(t, s.PermBan(t.Context(), mod, uid, "spam"))
	u = loadUser(t, dbc, uid)
	assert.True(t, u.IsBanned(testNow.AddDate(100, 0, 0)))

	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(s.Warn(t.Context(), mod, 4242)))

	d, err := s.Dashboard(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 1, d.UsersBanned)
	assert.Equal(t, 1, d.UsersWithStrikes)
}

func TestHeldMessages(t *testing.T) {
	s, dbc := newService(t)
	mod := dbtest.CreateUser(t, dbc, "mod", dbtest.UserOpts{Moderator: true})
	a := dbtest.CreateUser(t, dbc, "a", dbtest.UserOpts{})
	b := dbtest.CreateUser(t, dbc, "b", dbtest.UserOpts{})
	res, err := dbc.Exec(`INSERT INTO messages(body, from_id, to_id, created_at, held) VALUES('x', ?, ?, ?, 1)`, a, b, testNow)
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	held, err := s.HeldMessages(t.Context())
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "a", held[0].FromName)
	assert.Equal(t, "b", held[0].ToName)

	require.NoError(t, s.ReleaseMessage(t.Context(), mod, id))
	held, err = s.HeldMessages(t.Context())
	require.NoError(t, err)
	assert.Empty(t, held)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(s.ReleaseMessage(t.Context(), mod, id)), "already released")
}

func TestHandleAdReport(t *testing.T) {
	s, dbc := newService(t)
	mod := dbtest.CreateUser(t, dbc, "mod", dbtest.UserOpts{Moderator: true})
	owner := dbtest.CreateUser(t, dbc, "firma", dbtest.UserOpts{AccountType: models.AccountCompany})

	newAd := func(title string) (adID, reportID int64) {
		res, err := dbc.Exec(`INSERT INTO ads(user_id, title, start_at, photo, created_at) VALUES(?,?,?,?,?)`,
			owner, title, testNow, title+".png", testNow)
		require.NoError(t, err)
		adID, _ = res.LastInsertId()
		res, err = dbc.Exec(`INSERT INTO ad_reports(ad_id, reporter_id, reason, created_at) VALUES(?,?,?,?)`, adID, mod, "spam", testNow)
		require.NoError(t, err)
		reportID, _ = res.LastInsertId()
		return adID, reportID
	}

	_, keepRep := newAd("keep")
	pauseAd, pauseRep := newAd("pause")
	removeAd, removeRep := newAd("remove")

	pending, err := s.AdReports(t.Context())
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, s.HandleAdReport(t.Context(), mod, keepRep, "keep", nil))
	require.NoError(t, s.HandleAdReport(t.Context(), mod, pauseRep, "pause", nil))
	var removed []string
	require.NoError(t, s.HandleAdReport(t.Context(), mod, removeRep, "remove", func(name string) { removed = append(removed, name) }))

	var ad models.Ad
	require.NoError(t, dbc.Get(&ad, `SELECT * FROM ads WHERE id = ?`, pauseAd))
	assert.True(t, ad.EndAt.Valid)
	var n int
	require.NoError(t, dbc.Get(&n, `SELECT COUNT(*) FROM ads WHERE id = ?`, removeAd))
	assert.Zero(t, n)
	assert.Equal(t, []string{"remove.png"}, removed)

	pending, err = s.AdReports(t.Context())
	require.NoError(t, err)
	assert.Empty(t, pending)

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(s.HandleAdReport(t.Context(), mod, keepRep, "explode", nil)))
}
