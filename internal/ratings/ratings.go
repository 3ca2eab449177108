// Package ratings stores the stars and recommendations members give each
// other and keeps the aggregate columns on users in sync.
//
// The aggregate is a Bayesian average shrunk toward PriorMean with the weight
// of PriorWeight virtual votes, so a single five-star rating does not put a
// newcomer above an established member.
package ratings

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"muzikuj/internal/apperr"
	"muzikuj/internal/db"
	"muzikuj/internal/logging"
	"muzikuj/internal/metrics"
	"muzikuj/internal/models"
)

const (
	PriorMean         = 4.0
	PriorWeight       = 5.0
	MinUpdateInterval = 60 * time.Second
	MinReasonLen      = 10
)

type Summary struct {
	Count     int     `json:"count"`
	Sum       float64 `json:"sum"`
	Avg       float64 `json:"avg"`
	Bayes     float64 `json:"bayes"`
	Histogram []int   `json:"histogram"`
}

type YourRating struct {
	Stars     *int64 `json:"stars"`
	Recommend bool   `json:"recommend"`
}

// View is what a profile page shows about a user's ratings.
type View struct {
	UserID      int64       `json:"user_id"`
	AllowRating bool        `json:"allow_rating"`
	DenyReason  string      `json:"deny_reason"`
	Count       int         `json:"count"`
	Avg         float64     `json:"avg"`
	Bayes       float64     `json:"bayes"`
	Histogram   []int       `json:"histogram"`
	YourRating  *YourRating `json:"your_rating"`
}

type RateInput struct {
	RateeID     int64
	Stars       *int
	Recommend   *bool
	Reason      string
	CategoryKey string
}

type Service struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewService(dbc *sqlx.DB) *Service {
	return &Service{db: dbc, now: db.Now}
}

func emptyHistogram() []int { return make([]int, 5) }

// Recompute aggregates the active starred ratings of userID and writes count,
// sum, avg and bayes back onto the user. A failed aggregate query returns a
// zero-filled summary and leaves the stored columns alone.
func (s *Service) Recompute(ctx context.Context, userID int64) Summary {
	var agg struct {
		Count int     `db:"cnt"`
		Sum   float64 `db:"total"`
	}
	err := s.db.GetContext(ctx, &agg, `SELECT COUNT(id) AS cnt, COALESCE(SUM(stars), 0) AS total
		FROM user_ratings WHERE ratee_id = ? AND status = 'active' AND stars IS NOT NULL`, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("rating aggregate failed")
		return Summary{Histogram: emptyHistogram()}
	}

	sum := Summary{Count: agg.Count, Sum: agg.Sum, Histogram: s.histogram(ctx, userID)}
	if sum.Count > 0 {
		sum.Avg = sum.Sum / float64(sum.Count)
	}
	sum.Bayes = (PriorWeight*PriorMean + sum.Sum) / (PriorWeight + float64(sum.Count))

	_, err = s.db.ExecContext(ctx, `UPDATE users SET rating_count = ?, rating_sum = ?, rating_avg = ?, rating_bayes = ?
		WHERE id = ?`, sum.Count, int64(sum.Sum), sum.Avg, sum.Bayes, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("rating aggregate not stored")
	}
	return sum
}

func (s *Service) histogram(ctx context.Context, userID int64) []int {
	hist := emptyHistogram()
	var rows []struct {
		Stars int `db:"stars"`
		N     int `db:"n"`
	}
	err := s.db.SelectContext(ctx, &rows, `SELECT stars, COUNT(id) AS n FROM user_ratings
		WHERE ratee_id = ? AND status = 'active' AND stars IS NOT NULL GROUP BY stars`, userID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", userID).Msg("rating histogram failed")
		return hist
	}
	for _, r := range rows {
		if r.Stars >= 1 && r.Stars <= 5 {
			hist[r.Stars-1] = r.N
		}
	}
	return hist
}

// CanRate returns false and a user facing reason when rater may not rate ratee.
func CanRate(rater, ratee *models.User) (bool, string) {
	switch {
	case rater == nil:
		return false, "Musíš byť prihlásený."
	case ratee == nil || !ratee.Active || ratee.IsDeleted:
		return false, "Používateľ neexistuje alebo je neaktívny."
	case rater.ID == ratee.ID:
		return false, "Nemôžeš hodnotiť sám seba."
	case !ratee.AllowRating:
		return false, "Tento profil hodnotenie neumožňuje."
	}
	return true, ""
}

func (s *Service) user(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	err := s.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Service) find(ctx context.Context, raterID, rateeID int64) (*models.Rating, error) {
	var r models.Rating
	err := s.db.GetContext(ctx, &r, `SELECT * FROM user_ratings WHERE rater_id = ? AND ratee_id = ?`, raterID, rateeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// Summary works for anonymous viewers as well; viewer may be nil.
func (s *Service) Summary(ctx context.Context, userID int64, viewer *models.User) (*View, error) {
	u, err := s.user(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Hodnotenie sa nepodarilo načítať.", err)
	}
	if u == nil {
		return nil, apperr.NotFound("Používateľ neexistuje.")
	}

	v := &View{UserID: userID}
	if !u.RatingCount.Valid {
		agg := s.Recompute(ctx, userID)
		v.Count, v.Avg, v.Bayes, v.Histogram = agg.Count, agg.Avg, agg.Bayes, agg.Histogram
	} else {
		v.Count = int(u.RatingCount.Int64)
		v.Avg, v.Bayes = u.RatingAvg, u.RatingBayes
		v.Histogram = s.histogram(ctx, userID)
	}

	if viewer != nil {
		r, err := s.find(ctx, viewer.ID, userID)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("own rating lookup failed")
		} else if r != nil && r.Status == models.RatingActive {
			v.YourRating = &YourRating{Stars: nullInt(r.Stars), Recommend: r.Recommend}
		}
	}
	v.AllowRating, v.DenyReason = CanRate(viewer, u)
	return v, nil
}

func nullInt(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// Rate creates or updates rater's rating of in.RateeID and returns the new
// aggregate together with the rating as stored.
func (s *Service) Rate(ctx context.Context, rater *models.User, in RateInput) (*YourRating, Summary, error) {
	ratee, err := s.user(ctx, in.RateeID)
	if err != nil {
		return nil, Summary{}, apperr.Internal("Hodnotenie sa nepodarilo uložiť.", err)
	}
	if ok, reason := CanRate(rater, ratee); !ok {
		return nil, Summary{}, apperr.Forbidden("not_allowed", reason)
	}
	if in.Stars != nil && (*in.Stars < 1 || *in.Stars > 5) {
		return nil, Summary{}, apperr.Validation("invalid_stars", "Počet hviezdičiek musí byť 1 až 5.")
	}
	reason := strings.TrimSpace(in.Reason)
	if in.Stars != nil && *in.Stars <= 2 && len([]rune(reason)) < MinReasonLen {
		return nil, Summary{}, apperr.Validation("note_required", "Pri nízkom hodnotení uveď dôvod.")
	}

	existing, err := s.find(ctx, rater.ID, in.RateeID)
	if err != nil {
		return nil, Summary{}, apperr.Internal("Hodnotenie sa nepodarilo uložiť.", err)
	}
	now := s.now()
	var stored YourRating
	if existing != nil {
		if now.Sub(existing.UpdatedAt) < MinUpdateInterval {
			return nil, Summary{}, apperr.TooMany("Hodnotenie môžeš zmeniť najskôr o minútu.")
		}
		if in.Stars != nil {
			existing.Stars = sql.NullInt64{Int64: int64(*in.Stars), Valid: true}
		}
		if in.Recommend != nil {
			existing.Recommend = *in.Recommend
		}
		if in.CategoryKey != "" {
			existing.CategoryKey = in.CategoryKey
		}
		if reason != "" {
			existing.Note = reason
		}
		_, err = s.db.ExecContext(ctx, `UPDATE user_ratings SET stars = ?, recommend = ?, category_key = ?, note = ?,
			status = 'active', updated_at = ? WHERE id = ?`,
			existing.Stars, existing.Recommend, existing.CategoryKey, existing.Note, now, existing.ID)
		stored = YourRating{Stars: nullInt(existing.Stars), Recommend: existing.Recommend}
	} else {
		var stars sql.NullInt64
		if in.Stars != nil {
			stars = sql.NullInt64{Int64: int64(*in.Stars), Valid: true}
		}
		recommend := in.Recommend != nil && *in.Recommend
		_, err = s.db.ExecContext(ctx, `INSERT INTO user_ratings(ratee_id, rater_id, recommend, stars, category_key,
			note, status, created_at, updated_at) VALUES(?,?,?,?,?,?,'active',?,?)`,
			in.RateeID, rater.ID, recommend, stars, in.CategoryKey, reason, now, now)
		stored = YourRating{Stars: nullInt(stars), Recommend: recommend}
	}
	if err != nil {
		return nil, Summary{}, apperr.Internal("Hodnotenie sa nepodarilo uložiť.", err)
	}
	metrics.RatingsSubmitted.Inc()
	return &stored, s.Recompute(ctx, in.RateeID), nil
}

// Remove soft-deletes rater's active rating. Removing nothing is not an error;
// the returned summary is nil in that case.
func (s *Service) Remove(ctx context.Context, rater *models.User, rateeID int64) (*Summary, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE user_ratings SET status = 'removed', updated_at = ?
		WHERE rater_id = ? AND ratee_id = ? AND status = 'active'`, s.now(), rater.ID, rateeID)
	if err != nil {
		return nil, apperr.Internal("Hodnotenie sa nepodarilo odstrániť.", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	sum := s.Recompute(ctx, rateeID)
	return &sum, nil
}

type rawRateInput struct {
	RateeID     any `json:"ratee_id"`
	Stars       any `json:"stars"`
	Recommend   any `json:"recommend"`
	Reason      any `json:"reason"`
	CategoryKey any `json:"category_key"`
}

// ParseRateInput decodes the JSON body of /api/ratings/rate. An unreadable
// body is treated as empty, so it fails on the missing ratee id.
func ParseRateInput(body []byte) (RateInput, error) {
	var raw rawRateInput
	if err := json.Unmarshal(body, &raw); err != nil {
		raw = rawRateInput{}
	}
	var in RateInput
	id, ok := wholeNumber(raw.RateeID)
	if !ok {
		return in, apperr.Validation("missing_or_invalid_ratee_id", "Chýba používateľ.")
	}
	in.RateeID = id

	if raw.Stars != nil {
		n, ok := starsValue(raw.Stars)
		if !ok {
			return in, apperr.Validation("invalid_stars", "Neplatný počet hviezdičiek.")
		}
		in.Stars = &n
	}
	if raw.Recommend != nil {
		b, ok := raw.Recommend.(bool)
		if !ok {
			return in, apperr.Validation("invalid_recommend", "Neplatné odporúčanie.")
		}
		in.Recommend = &b
	}
	in.Reason, _ = raw.Reason.(string)
	if k, ok := raw.CategoryKey.(string); ok {
		in.CategoryKey = strings.TrimSpace(k)
	}
	return in, nil
}

// ParseRateeID reads {"ratee_id": n} for /api/ratings/remove.
func ParseRateeID(body []byte) (int64, error) {
	var raw struct {
		RateeID any `json:"ratee_id"`
	}
	_ = json.Unmarshal(body, &raw)
	id, ok := wholeNumber(raw.RateeID)
	if !ok {
		return 0, apperr.Validation("missing_or_invalid_ratee_id", "Chýba používateľ.")
	}
	return id, nil
}

func wholeNumber(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// starsValue accepts numbers and numeric strings, truncating fractions.
func starsValue(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		return n, err == nil
	}
	return 0, false
}
