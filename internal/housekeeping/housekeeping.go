// Package housekeeping expires stale records from inside regular requests.
//
// There is no scheduler. The middleware runs a pass on the first request after
// the interval elapsed; the pass happens inline and failures only get logged.
package housekeeping

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"muzikuj/internal/db"
	"muzikuj/internal/logging"
	"muzikuj/internal/metrics"
)

type Result struct {
	ExpiredRequests       int64
	ArchivedQuickRequests int64
	AnonymizedUsers       int64
}

type Runner struct {
	db       *sqlx.DB
	interval time.Duration
	loc      *time.Location
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// New returns a Runner. loc decides which calendar day counts as today for
// event requests; nil means UTC.
func New(dbc *sqlx.DB, interval time.Duration, loc *time.Location) *Runner {
	if loc == nil {
		loc = time.UTC
	}
	return &Runner{db: dbc, interval: interval, loc: loc, now: db.Now}
}

// MaybeRun runs a pass when one is due. The gate advances only when the pass
// succeeded, so a failing pass is retried on the next request. Requests that
// arrive while a pass is running skip it.
func (r *Runner) MaybeRun(ctx context.Context) {
	if !r.mu.TryLock() {
		return
	}
	defer r.mu.Unlock()
	now := r.now()
	if !r.last.IsZero() && now.Sub(r.last) < r.interval {
		return
	}
	res, err := r.Run(ctx)
	if err != nil {
		metrics.HousekeepingRuns.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Debug().Err(err).Msg("housekeeping skipped")
		return
	}
	r.last = now
	metrics.HousekeepingRuns.WithLabelValues("ok").Inc()
	if res.AnonymizedUsers > 0 {
		logging.Ctx(ctx).Info().Int64("count", res.AnonymizedUsers).Msg("anonymized users past erase deadline")
	}
}

func (r *Runner) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.MaybeRun(req.Context())
		next.ServeHTTP(w, req)
	})
}

// Run performs one pass in a single transaction.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	var res Result
	now := r.now()
	today := now.In(r.loc).Format("2006-01-02")

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return res, err
	}
	defer tx.Rollback()

	out, err := tx.ExecContext(ctx, `UPDATE requests SET active = 0, deleted_at = ?
		WHERE active = 1 AND event_date != '' AND event_date < ?`, now, today)
	if err != nil {
		return res, err
	}
	res.ExpiredRequests, _ = out.RowsAffected()

	out, err = tx.ExecContext(ctx, `UPDATE quick_requests SET active = 0, archived_at = ?
		WHERE active = 1 AND valid_until <= ?`, now, now)
	if err != nil {
		return res, err
	}
	res.ArchivedQuickRequests, _ = out.RowsAffected()

	out, err = tx.ExecContext(ctx, `UPDATE users SET
			username = 'deleted_' || id,
			email = 'deleted_' || id || '@example.invalid',
			first_name = '', last_name = '', bio = '', town = '', profile_photo = '',
			searchable = 0, active = 0, is_deleted = 1, is_vip = 0
		WHERE erase_requested_at IS NOT NULL AND erase_deadline_at IS NOT NULL
			AND erase_deadline_at <= ? AND is_deleted = 0`, now)
	if err != nil {
		return res, err
	}
	res.AnonymizedUsers, _ = out.RowsAffected()
	if res.AnonymizedUsers > 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id IN (SELECT id FROM users WHERE is_deleted = 1)`); err != nil {
			return res, err
		}
	}

	if err := tx.Commit(); err != nil {
		return res, err
	}
	metrics.HousekeepingRecords.WithLabelValues("expired_requests").Add(float64(res.ExpiredRequests))
	metrics.HousekeepingRecords.WithLabelValues("archived_quick_requests").Add(float64(res.ArchivedQuickRequests))
	metrics.HousekeepingRecords.WithLabelValues("anonymized_users").Add(float64(res.AnonymizedUsers))
	return res, nil
}
