// Package moderation screens user text, queues reports and applies the staff
// actions (warn, ban, hide, release) that resolve them.
package moderation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"muzikuj/internal/apperr"
	"muzikuj/internal/db"
	"muzikuj/internal/logging"
	"muzikuj/internal/metrics"
	"muzikuj/internal/models"
)

const (
	MinAccountAge     = 7 * 24 * time.Hour
	TwoWayContactDays = 14
)

// PermanentBan is stored as banned_until for permanent bans.
var PermanentBan = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

type Service struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewService(dbc *sqlx.DB) *Service {
	return &Service{db: dbc, now: db.Now}
}

// IsTrusted is true for staff and for accounts without strikes that are at
// least a week old.
func (s *Service) IsTrusted(u *models.User) bool {
	if u == nil {
		return false
	}
	if u.IsStaff() {
		return true
	}
	if u.StrikesCount > 0 || u.CreatedAt.IsZero() {
		return false
	}
	return s.now().Sub(u.CreatedAt) >= MinAccountAge
}

// HadTwoWayContact reports whether a and b both sent each other a message in the last days.
func (s *Service) HadTwoWayContact(ctx context.Context, a, b int64, days int) (bool, error) {
	if a == 0 || b == 0 {
		return false, nil
	}
	cutoff := s.now().AddDate(0, 0, -days)
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT
		(EXISTS(SELECT 1 FROM messages WHERE from_id = ? AND to_id = ? AND created_at >= ?)) +
		(EXISTS(SELECT 1 FROM messages WHERE from_id = ? AND to_id = ? AND created_at >= ?))`,
		a, b, cutoff, b, a, cutoff)
	if err != nil {
		return false, err
	}
	return n == 2, nil
}

// Verdict is the result of screening a direct message.
type Verdict struct {
	Hits []Hit
	Hold bool
}

// Screen categorises a direct message from sender to recipientID. Propositions
// between members who already talk to each other are dropped. Untrusted senders
// get the message held when a high or critical category matched.
func (s *Service) Screen(ctx context.Context, sender *models.User, recipientID int64, text string) Verdict {
	var v Verdict
	hits := Categorize(text)
	if len(hits) == 0 {
		return v
	}
	contact := false
	if recipientID != 0 {
		ok, err := s.HadTwoWayContact(ctx, sender.ID, recipientID, TwoWayContactDays)
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("two-way contact lookup failed")
		}
		contact = ok
	}
	for _, h := range hits {
		if h.Category == CategoryProposition && contact {
			continue
		}
		v.Hits = append(v.Hits, h)
		if h.Severity == SeverityHigh || h.Severity == SeverityCritical {
			v.Hold = v.Hold || !s.IsTrusted(sender)
		}
	}
	return v
}

// ReportHits opens one automatic report per hit on the given entity.
func (s *Service) ReportHits(ctx context.Context, entityType string, entityID int64, hits []Hit) {
	for _, h := range hits {
		metrics.ModerationHits.WithLabelValues(h.Category).Inc()
		details := fmt.Sprintf("auto: severity=%s match=%s", h.Severity, h.Match)
		if _, err := s.EnqueueReport(ctx, 0, entityType, entityID, h.Category, details); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("entity", entityType).Int64("id", entityID).Msg("auto report failed")
		}
	}
}

// ReportFlag opens a report when AutoFlag flagged the text.
func (s *Service) ReportFlag(ctx context.Context, entityType string, entityID int64, text string) {
	f := AutoFlag(text)
	if !f.Flagged {
		return
	}
	metrics.ModerationHits.WithLabelValues(f.Reason).Inc()
	if _, err := s.EnqueueReport(ctx, 0, entityType, entityID, f.Reason, f.Note); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("entity", entityType).Int64("id", entityID).Msg("auto flag report failed")
	}
}

// EnqueueReport stores an open report. reporterID 0 means an automatic report.
func (s *Service) EnqueueReport(ctx context.Context, reporterID int64, entityType string, entityID int64, reason, details string) (int64, error) {
	entityType = strings.TrimSpace(entityType)
	if entityType == "" || entityID == 0 {
		return 0, apperr.Validation("missing_fields", "Chýbajú údaje nahlásenia.")
	}
	if strings.TrimSpace(reason) == "" {
		reason = "ine"
	}
	var reporter sql.NullInt64
	if reporterID != 0 {
		reporter = sql.NullInt64{Int64: reporterID, Valid: true}
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO reports(reporter_id, entity_type, entity_id, reason, details, status, created_at)
		VALUES(?,?,?,?,?,'open',?)`, reporter, entityType, entityID, reason, strings.TrimSpace(details), s.now())
	if err != nil {
		return 0, apperr.Internal("Nahlásenie sa nepodarilo uložiť.", err)
	}
	return res.LastInsertId()
}

// Queue lists the newest 200 reports with status, or all of them for "all".
func (s *Service) Queue(ctx context.Context, status string) ([]models.Report, error) {
	q := `SELECT * FROM reports`
	var args []any
	if status != "all" {
		q += ` WHERE status = ?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT 200`
	var out []models.Report
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) log(ctx context.Context, tx *sqlx.Tx, actorID int64, action, targetType string, targetID int64, note string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO moderation_logs(actor_id, action, target_type, target_id, note, created_at)
		VALUES(?,?,?,?,?,?)`, actorID, action, targetType, targetID, note, s.now())
	return err
}

// act runs update and the matching log entry in one transaction. update must
// affect a row, otherwise the target does not exist.
func (s *Service) act(ctx context.Context, actorID int64, action, targetType string, targetID int64, note, query string, args ...any) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.NotFound("Záznam neexistuje.")
	}
	if err := s.log(ctx, tx, actorID, action, targetType, targetID, note); err != nil {
		return apperr.Internal("Akciu sa nepodarilo zapísať.", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	logging.Ctx(ctx).Info().Int64("actor", actorID).Str("action", action).
		Str("target_type", targetType).Int64("target_id", targetID).Msg("moderation action")
	return nil
}

func (s *Service) report(ctx context.Context, id int64) (*models.Report, error) {
	var r models.Report
	err := s.db.GetContext(ctx, &r, `SELECT * FROM reports WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Nahlásenie neexistuje.")
	}
	if err != nil {
		return nil, apperr.Internal("Nahlásenie sa nepodarilo načítať.", err)
	}
	return &r, nil
}

// Close marks a report resolved or ignored.
func (s *Service) Close(ctx context.Context, actorID, reportID int64, status, note string) error {
	action := map[string]string{models.ReportResolved: "resolve", models.ReportIgnored: "ignore"}[status]
	if action == "" {
		return apperr.Validation("invalid_status", "Neplatný stav nahlásenia.")
	}
	r, err := s.report(ctx, reportID)
	if err != nil {
		return err
	}
	return s.act(ctx, actorID, action, r.EntityType, r.EntityID, note,
		`UPDATE reports SET status = ?, resolved_at = ?, resolved_by = ?, resolution_note = ? WHERE id = ?`,
		status, s.now(), actorID, note, reportID)
}

func (s *Service) HideRequest(ctx context.Context, actorID, requestID int64) error {
	return s.act(ctx, actorID, "hide", "dopyt", requestID, "Skryté moderátorom",
		`UPDATE requests SET active = 0, deleted_at = ? WHERE id = ?`, s.now(), requestID)
}

func (s *Service) Warn(ctx context.Context, actorID, userID int64) error {
	return s.act(ctx, actorID, "warn", "user", userID, "Varovanie",
		`UPDATE users SET strikes_count = strikes_count + 1 WHERE id = ?`, userID)
}

func (s *Service) TempBan(ctx context.Context, actorID, userID int64, days int, reason string) error {
	if days <= 0 {
		days = 7
	}
	if strings.TrimSpace(reason) == "" {
		reason = "Porušenie pravidiel"
	}
	until := s.now().AddDate(0, 0, days)
	return s.act(ctx, actorID, "tempban", "user", userID, fmt.Sprintf("%d dní: %s", days, reason),
		`UPDATE users SET banned_until = ?, banned_reason = ? WHERE id = ?`, until, reason, userID)
}

func (s *Service) PermBan(ctx context.Context, actorID, userID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		reason = "Závažné porušenie pravidiel"
	}
	return s.act(ctx, actorID, "permban", "user", userID, reason,
		`UPDATE users SET banned_until = ?, banned_reason = ? WHERE id = ?`, PermanentBan, reason, userID)
}

// ReleaseMessage delivers a held message.
func (s *Service) ReleaseMessage(ctx context.Context, actorID, messageID int64) error {
	return s.act(ctx, actorID, "release", "sprava", messageID, "",
		`UPDATE messages SET held = 0 WHERE id = ? AND held = 1`, messageID)
}

// HideMessage keeps a held message away from the recipient for good.
func (s *Service) HideMessage(ctx context.Context, actorID, messageID int64) error {
	return s.act(ctx, actorID, "hide", "sprava", messageID, "",
		`UPDATE messages SET held = 0, deleted_by_recipient = 1 WHERE id = ?`, messageID)
}

func (s *Service) HeldMessages(ctx context.Context) ([]models.Message, error) {
	var out []models.Message
	err := s.db.SelectContext(ctx, &out, `SELECT m.*, f.username AS from_name, COALESCE(t.username, m.to_email) AS to_name
		FROM messages m JOIN users f ON f.id = m.from_id LEFT JOIN users t ON t.id = m.to_id
		WHERE m.held = 1 ORDER BY m.created_at`)
	return out, err
}

type Dashboard struct {
	ReportsOpen      int `db:"reports_open"`
	ReportsAll       int `db:"reports_all"`
	UsersBanned      int `db:"users_banned"`
	UsersWithStrikes int `db:"users_with_strikes"`
	RequestsActive   int `db:"requests_active"`
	MessagesHeld     int `db:"messages_held"`
}

func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	err := s.db.GetContext(ctx, &d, `SELECT
		(SELECT COUNT(*) FROM reports WHERE status = 'open') AS reports_open,
		(SELECT COUNT(*) FROM reports) AS reports_all,
		(SELECT COUNT(*) FROM users WHERE banned_until IS NOT NULL) AS users_banned,
		(SELECT COUNT(*) FROM users WHERE strikes_count > 0) AS users_with_strikes,
		(SELECT COUNT(*) FROM requests WHERE active = 1) AS requests_active,
		(SELECT COUNT(*) FROM messages WHERE held = 1) AS messages_held`)
	return d, err
}

// AdReports lists unhandled ad reports, oldest first.
func (s *Service) AdReports(ctx context.Context) ([]models.AdReport, error) {
	var out []models.AdReport
	err := s.db.SelectContext(ctx, &out, `SELECT r.*, COALESCE(a.title, '') AS ad_title, u.username AS reporter
		FROM ad_reports r LEFT JOIN ads a ON a.id = r.ad_id JOIN users u ON u.id = r.reporter_id
		WHERE r.handled = 0 ORDER BY r.created_at, r.id`)
	return out, err
}

// HandleAdReport applies keep, pause or remove to the reported ad. removeFile
// receives the ad photo name when the ad is deleted.
func (s *Service) HandleAdReport(ctx context.Context, actorID, reportID int64, action string, removeFile func(string)) error {
	var rep models.AdReport
	err := s.db.GetContext(ctx, &rep, `SELECT r.*, '' AS ad_title, '' AS reporter FROM ad_reports r WHERE r.id = ?`, reportID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("Nahlásenie neexistuje.")
	}
	if err != nil {
		return apperr.Internal("Nahlásenie sa nepodarilo načítať.", err)
	}
	var ad models.Ad
	err = s.db.GetContext(ctx, &ad, `SELECT * FROM ads WHERE id = ?`, rep.AdID)
	hasAd := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return apperr.Internal("Reklamu sa nepodarilo načítať.", err)
	}

	now := s.now()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	defer tx.Rollback()

	switch {
	case action == "keep":
	case action == "pause" && hasAd:
		_, err = tx.ExecContext(ctx, `UPDATE ads SET end_at = ? WHERE id = ?`, now, ad.ID)
	case action == "remove" && hasAd:
		_, err = tx.ExecContext(ctx, `DELETE FROM ads WHERE id = ?`, ad.ID)
	default:
		return apperr.Validation("invalid_action", "Neplatná akcia.")
	}
	if err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	// on remove the report rows are deleted together with the ad
	if action != "remove" {
		_, err = tx.ExecContext(ctx, `UPDATE ad_reports SET handled = 1, handled_by = ?, handled_at = ?, action = ? WHERE id = ?`,
			actorID, now, action, reportID)
		if err != nil {
			return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
		}
	}
	if err := s.log(ctx, tx, actorID, "ad_"+action, "reklama", rep.AdID, rep.Reason); err != nil {
		return apperr.Internal("Akciu sa nepodarilo zapísať.", err)
	}
	if err := tx.Commit(); err != nil {
		return apperr.Internal("Akciu sa nepodarilo vykonať.", err)
	}
	if action == "remove" && ad.Photo != "" && removeFile != nil {
		removeFile(ad.Photo)
	}
	return nil
}
