package ratings

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muzikuj/internal/apperr"
	"muzikuj/internal/dbtest"
	"muzikuj/internal/models"
)

type fixture struct {
	svc   *Service
	db    *sqlx.DB
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	dbc := dbtest.New(t)
	f := &fixture{db: dbc, clock: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	f.svc = NewService(dbc)
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) user(t *testing.T, name string, o dbtest.UserOpts) *models.User {
	id := dbtest.CreateUser(t, f.db, name, o)
	u, err := f.svc.user(t.Context(), id)
	require.NoError(t, err)
	return u
}

func stars(n int) *int { return &n }

func TestRecomputeNoRatings(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "ratee", dbtest.UserOpts{})

	sum := f.svc.Recompute(t.Context(), u.ID)
	assert.Equal(t, 0, sum.Count)
	assert.Equal(t, 0.0, sum.Avg)
	assert.InDelta(t, PriorMean, sum.Bayes, 1e-9)
	assert.Equal(t, []int{0, 0, 0, 0, 0}, sum.Histogram)

	stored, err := f.svc.user(t.Context(), u.ID)
	require.NoError(t, err)
	assert.True(t, stored.RatingCount.Valid)
	assert.Equal(t, int64(0), stored.RatingCount.Int64)
}

func TestRateAndAggregate(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	a := f.user(t, "a", dbtest.UserOpts{})
	b := f.user(t, "b", dbtest.UserOpts{})

	_, _, err := f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(5)})
	require.NoError(t, err)
	yours, sum, err := f.svc.Rate(t.Context(), b, RateInput{RateeID: ratee.ID, Stars: stars(2), Reason: "neprišiel na skúšku"})
	require.NoError(t, err)
	require.NotNil(t, yours.Stars)
	assert.Equal(t, int64(2), *yours.Stars)

	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 7.0, sum.Sum)
	assert.InDelta(t, 3.5, sum.Avg, 1e-9)
	assert.InDelta(t, (5*4.0+7)/7, sum.Bayes, 1e-9)
	assert.Equal(t, []int{0, 1, 0, 0, 1}, sum.Histogram)

	stored, err := f.svc.user(t.Context(), ratee.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), stored.RatingSum)
	assert.InDelta(t, 3.5, stored.RatingAvg, 1e-9)
}

func TestRateRecommendOnlyIsNotCounted(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	a := f.user(t, "a", dbtest.UserOpts{})
	yes := true

	yours, sum, err := f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Recommend: &yes})
	require.NoError(t, err)
	assert.Nil(t, yours.Stars)
	assert.True(t, yours.Recommend)
	assert.Equal(t, 0, sum.Count)
}

func TestRateValidation(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	closed := f.user(t, "closed", dbtest.UserOpts{NoRating: true})
	a := f.user(t, "a", dbtest.UserOpts{})

	tests := []struct {
		name  string
		rater *models.User
		in    RateInput
		code  string
	}{
		{"self", a, RateInput{RateeID: a.ID, Stars: stars(5)}, "not_allowed"},
		{"missing ratee", a, RateInput{RateeID: 999, Stars: stars(5)}, "not_allowed"},
		{"rating disabled", a, RateInput{RateeID: closed.ID, Stars: stars(5)}, "not_allowed"},
		{"anonymous", nil, RateInput{RateeID: ratee.ID, Stars: stars(5)}, "not_allowed"},
		{"stars too high", a, RateInput{RateeID: ratee.ID, Stars: stars(6)}, "invalid_stars"},
		{"stars zero", a, RateInput{RateeID: ratee.ID, Stars: stars(0)}, "invalid_stars"},
		{"low without reason", a, RateInput{RateeID: ratee.ID, Stars: stars(1), Reason: "zlé"}, "note_required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.svc.Rate(t.Context(), tt.rater, tt.in)
			require.Error(t, err)
			assert.Equal(t, tt.code, apperr.CodeOf(err))
		})
	}
}

func TestRateThrottle(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	a := f.user(t, "a", dbtest.UserOpts{})

	_, _, err := f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(4), Reason: "spoľahlivý bubeník"})
	require.NoError(t, err)

	f.clock = f.clock.Add(30 * time.Second)
	_, _, err = f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(5)})
	require.Error(t, err)
	assert.Equal(t, apperr.KindTooMany, apperr.KindOf(err))

	f.clock = f.clock.Add(31 * time.Second)
	yours, sum, err := f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), *yours.Stars)
	assert.Equal(t, 1, sum.Count)

	r, err := f.svc.find(t.Context(), a.ID, ratee.ID)
	require.NoError(t, err)
	assert.Equal(t, "spoľahlivý bubeník", r.Note, "empty reason keeps the old note")
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	a := f.user(t, "a", dbtest.UserOpts{})

	sum, err := f.svc.Remove(t.Context(), a, ratee.ID)
	require.NoError(t, err)
	assert.Nil(t, sum, "nothing to remove")

	_, _, err = f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(5)})
	require.NoError(t, err)
	sum, err = f.svc.Remove(t.Context(), a, ratee.ID)
	require.NoError(t, err)
	require.NotNil(t, sum)
	assert.Equal(t, 0, sum.Count)

	r, err := f.svc.find(t.Context(), a.ID, ratee.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RatingRemoved, r.Status)

	sum, err = f.svc.Remove(t.Context(), a, ratee.ID)
	require.NoError(t, err)
	assert.Nil(t, sum)

	// rating again reactivates the row
	f.clock = f.clock.Add(time.Minute)
	_, sum2, err := f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(3)})
	require.NoError(t, err)
	assert.Equal(t, 1, sum2.Count)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ratee := f.user(t, "ratee", dbtest.UserOpts{})
	a := f.user(t, "a", dbtest.UserOpts{})

	v, err := f.svc.Summary(t.Context(), ratee.ID, nil)
	require.NoError(t, err)
	assert.False(t, v.AllowRating)
	assert.Equal(t, "Musíš byť prihlásený.", v.DenyReason)
	assert.Nil(t, v.YourRating)
	assert.InDelta(t, PriorMean, v.Bayes, 1e-9)

	_, _, err = f.svc.Rate(t.Context(), a, RateInput{RateeID: ratee.ID, Stars: stars(4)})
	require.NoError(t, err)

	v, err = f.svc.Summary(t.Context(), ratee.ID, a)
	require.NoError(t, err)
	assert.True(t, v.AllowRating)
	assert.Equal(t, 1, v.Count)
	assert.Equal(t, []int{0, 0, 0, 1, 0}, v.Histogram)
	require.NotNil(t, v.YourRating)
	assert.Equal(t, int64(4), *v.YourRating.Stars)

	_, err = f.svc.Summary(t.Context(), 12345, nil)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestRecomputeQueryErrorIsZeroFilled(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	svc := NewService(sqlx.NewDb(mockDB, "sqlite"))
	mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("database is locked"))

	sum := svc.Recompute(t.Context(), 7)
	assert.Equal(t, Summary{Histogram: []int{0, 0, 0, 0, 0}}, sum)
	// no UPDATE was attempted
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestParseRateInput(t *testing.T) {
	in, err := ParseRateInput([]byte(`{"ratee_id": 3, "stars": "4", "recommend": true, "reason": " ok ", "category_key": " live "}`))
	require.NoError(t, err)
	assert.Equal(t, int64(3), in.RateeID)
	assert.Equal(t, 4, *in.Stars)
	assert.True(t, *in.Recommend)
	assert.Equal(t, "live", in.CategoryKey)

	tests := []struct {
		body string
		code string
	}{
		{`{}`, "missing_or_invalid_ratee_id"},
		{`not json`, "missing_or_invalid_ratee_id"},
		{`{"ratee_id": "3"}`, "missing_or_invalid_ratee_id"},
		{`{"ratee_id": 3.5}`, "missing_or_invalid_ratee_id"},
		{`{"ratee_id": 3, "stars": "many"}`, "invalid_stars"},
		{`{"ratee_id": 3, "recommend": "yes"}`, "invalid_recommend"},
	}
	for _, tt := range tests {
		_, err := ParseRateInput([]byte(tt.body))
		assert.Equal(t, tt.code, apperr.CodeOf(err), tt.body)
	}

	id, err := ParseRateeID([]byte(`{"ratee_id": 9}`))
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}
