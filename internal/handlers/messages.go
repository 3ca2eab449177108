package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"muzikuj/internal/apperr"
	"muzikuj/internal/features"
	"muzikuj/internal/logging"
	"muzikuj/internal/mailer"
	"muzikuj/internal/models"
	"muzikuj/internal/validation"
)

const (
	ContextDirect     = "direct"
	ContextClassified = "inzerat"
	ContextRequest    = "dopyt"

	maxMessageLen = 5000
)

// Inbox shows received and sent messages and marks the received ones read.
func (h *Handler) Inbox(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	var received, sent []models.Message
	err := h.db.SelectContext(ctx, &received, `SELECT m.*, u.username AS from_name, '' AS to_name FROM messages m
		JOIN users u ON u.id = m.from_id
		WHERE m.to_id = ? AND m.deleted_by_recipient = 0 AND m.held = 0
		ORDER BY m.created_at DESC, m.id DESC`, u.ID)
	if err == nil {
		err = h.db.SelectContext(ctx, &sent, `SELECT m.*, '' AS from_name,
			COALESCE(t.username, m.to_email) AS to_name FROM messages m
			LEFT JOIN users t ON t.id = m.to_id
			WHERE m.from_id = ? ORDER BY m.created_at DESC, m.id DESC`, u.ID)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Správy sa nepodarilo načítať.", err), "/profil")
		return
	}
	if _, err := h.db.ExecContext(ctx, `UPDATE messages SET is_read = 1
		WHERE to_id = ? AND is_read = 0 AND held = 0`, u.ID); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("mark messages read failed")
	}
	h.render(w, r, http.StatusOK, "inbox", map[string]any{"Title": "Správy", "Received": received, "Sent": sent})
}

func (h *Handler) Compose(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind := q.Get("kontekst")
	if kind == "" {
		kind = ContextDirect
	}
	data := map[string]any{
		"Title":     "Napísať správu",
		"Context":   kind,
		"ContextID": q.Get("kontekst_id"),
		"ToID":      q.Get("komu_id"),
		"ToEmail":   q.Get("komu_email"),
	}
	if id := formInt(r, "komu_id"); id != 0 {
		var name string
		err := h.db.GetContext(r.Context(), &name, `SELECT CASE WHEN username <> '' THEN username ELSE email END
			FROM users WHERE id = ? AND is_deleted = 0`, id)
		if err == nil {
			data["Recipient"] = name
		}
	}
	h.render(w, r, http.StatusOK, "compose", data)
}

// SendMessage stores the message first, then emails komu_email when given.
// Screened messages from untrusted senders are held for moderation.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	back := localReferer(r, "/spravy")
	text := form(r, "obsah")
	if text == "" {
		redirect(w, r, back, "danger", "Správa nemôže byť prázdna.")
		return
	}
	if len(text) > maxMessageLen {
		redirect(w, r, back, "danger", "Správa je príliš dlhá.")
		return
	}
	toID, toEmail := formInt(r, "komu_id"), form(r, "komu_email")
	kind, kindID := form(r, "kontekst"), formInt(r, "kontekst_id")
	if toID == 0 && toEmail == "" {
		redirect(w, r, back, "danger", "Chýba príjemca.")
		return
	}
	if toEmail != "" && validation.Get().Var(toEmail, "email,max=120") != nil {
		redirect(w, r, back, "danger", "Zadaj platný e-mail príjemcu.")
		return
	}
	if toID == u.ID {
		redirect(w, r, back, "warning", "Nemôžeš písať sám sebe.")
		return
	}
	if toID != 0 {
		var n int
		if err := h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users WHERE id = ? AND is_deleted = 0`, toID); err != nil || n == 0 {
			redirect(w, r, back, "danger", "Príjemca neexistuje.")
			return
		}
	}
	limit := features.Quota(u, features.MessagesMax, 50)
	var recent int
	if err := h.db.GetContext(ctx, &recent, `SELECT COUNT(*) FROM messages WHERE from_id = ? AND created_at >= ?`,
		u.ID, h.now().AddDate(0, 0, -30)); err != nil {
		h.fail(w, r, apperr.Internal("Správu sa nepodarilo odoslať.", err), back)
		return
	}
	if recent >= limit {
		redirect(w, r, "/", "warning", fmt.Sprintf("Dosiahol si limit %d správ za 30 dní. Pre viac prejdi na vyšší plán.", limit))
		return
	}

	var classifiedID, requestID sql.NullInt64
	switch kind {
	case ContextClassified:
		classifiedID = nullInt(kindID)
	case ContextRequest:
		requestID = nullInt(kindID)
	}
	verdict := h.mod.Screen(ctx, u, toID, text)
	res, err := h.db.ExecContext(ctx, `INSERT INTO messages(body, from_id, to_id, to_email, classified_id, request_id,
		created_at, held) VALUES(?,?,?,?,?,?,?,?)`,
		text, u.ID, nullInt(toID), toEmail, classifiedID, requestID, h.now(), verdict.Hold)
	if err != nil {
		h.fail(w, r, apperr.Internal("Správu sa nepodarilo uložiť.", err), back)
		return
	}
	id, _ := res.LastInsertId()
	if len(verdict.Hits) > 0 {
		h.mod.ReportHits(ctx, "message", id, verdict.Hits)
	}
	if verdict.Hold {
		redirect(w, r, "/spravy", "warning", "Správa čaká na kontrolu moderátorom.")
		return
	}
	if toEmail == "" {
		redirect(w, r, "/spravy", "success", "Správa odoslaná.")
		return
	}

	subject := "Správa z Muzikuj.sk"
	if kind == ContextRequest {
		subject = fmt.Sprintf("Reakcia na dopyt #%d", kindID)
	}
	err = h.mail.Send(ctx, toEmail, subject, text)
	switch {
	case err == nil:
		redirect(w, r, "/spravy", "success", "Správa odoslaná na e-mail.")
	case errors.Is(err, mailer.ErrNotConfigured):
		redirect(w, r, "/spravy", "warning", "Správa uložená, ale e-mail sa nepodarilo odoslať (SMTP nenastavené).")
	default:
		logging.Ctx(ctx).Error().Err(err).Int64("message", id).Msg("email send failed")
		redirect(w, r, "/spravy", "warning", "Správa uložená, ale e-mail sa nepodarilo odoslať.")
	}
}

// DeleteMessage hides a received message from the recipient's inbox.
func (h *Handler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	res, err := h.db.ExecContext(r.Context(), `UPDATE messages SET deleted_by_recipient = 1 WHERE id = ? AND to_id = ?`,
		idParam(r, "id"), u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Správu sa nepodarilo zmazať.", err), "/spravy")
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		h.NotFound(w, r)
		return
	}
	redirect(w, r, "/spravy", "success", "Správa zmazaná.")
}

// Report stores a user report about any entity.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	back := localReferer(r, "/")
	entityType, entityID := form(r, "entity_type"), formInt(r, "entity_id")
	if entityType == "" || entityID == 0 {
		redirect(w, r, back, "danger", "Chýbajú údaje nahlásenia.")
		return
	}
	if !knownEntity[entityType] {
		redirect(w, r, back, "danger", "Neznámy typ obsahu.")
		return
	}
	reason := form(r, "reason")
	if reason == "" {
		reason = "ine"
	}
	details := form(r, "details")
	if len(details) > 2000 {
		details = details[:2000]
	}
	if _, err := h.mod.EnqueueReport(r.Context(), u.ID, entityType, entityID, reason, details); err != nil {
		h.fail(w, r, err, back)
		return
	}
	redirect(w, r, back, "success", "Ďakujeme, nahlásenie bolo odoslané moderátorom.")
}

var knownEntity = map[string]bool{
	"user": true, "message": true, "classified": true, "request": true,
	"group": true, "forum_topic": true, "forum_post": true, "quick_request": true,
	"event": true, "ad": true,
}
