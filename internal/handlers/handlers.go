package handlers

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"

	"muzikuj/internal/apperr"
	"muzikuj/internal/auth"
	"muzikuj/internal/authz"
	"muzikuj/internal/db"
	"muzikuj/internal/logging"
	"muzikuj/internal/mailer"
	"muzikuj/internal/models"
	"muzikuj/internal/moderation"
	"muzikuj/internal/ratings"
	"muzikuj/internal/uploads"
)

// Deps are the collaborators a Handler needs; main wires them.
type Deps struct {
	DB         *sqlx.DB
	Sessions   *auth.Manager
	Authz      *authz.Enforcer
	Ratings    *ratings.Service
	Moderation *moderation.Service
	Mailer     mailer.Sender
	Uploads    *uploads.Store
	Templates  *template.Template
	BaseURL    string
	// Location interprets dates and times typed into forms. Defaults to UTC.
	Location   *time.Location
}

type Handler struct {
	db       *sqlx.DB
	sessions *auth.Manager
	authz    *authz.Enforcer
	ratings  *ratings.Service
	mod      *moderation.Service
	mail     mailer.Sender
	files    *uploads.Store
	tpls     *template.Template
	baseURL  string
	loc      *time.Location
	now      func() time.Time
}

func New(d Deps) *Handler {
	loc := d.Location
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		db:       d.DB,
		sessions: d.Sessions,
		authz:    d.Authz,
		ratings:  d.Ratings,
		mod:      d.Moderation,
		mail:     d.Mailer,
		files:    d.Uploads,
		tpls:     d.Templates,
		baseURL:  strings.TrimRight(d.BaseURL, "/"),
		loc:      loc,
		now:      db.Now,
	}
}

type userKey struct{}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// currentUser is the user LoadUser attached to the request, nil for guests.
func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey{}).(*models.User)
	return u
}

// -------- flash messages

const flashCookie = "muzikuj_flash"

type flash struct {
	Kind    string
	Message string
}

func setFlash(w http.ResponseWriter, kind, msg string) {
	v := base64.RawURLEncoding.EncodeToString([]byte(kind + "\x00" + msg))
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: v, Path: "/", HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

func popFlash(w http.ResponseWriter, r *http.Request) *flash {
	c, err := r.Cookie(flashCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, &http.Cookie{Name: flashCookie, Value: "", Path: "/", MaxAge: -1})
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return nil
	}
	kind, msg, ok := strings.Cut(string(raw), "\x00")
	if !ok {
		return nil
	}
	return &flash{Kind: kind, Message: msg}
}

// redirect flashes msg and sends a 303 to target.
func redirect(w http.ResponseWriter, r *http.Request, target, kind, msg string) {
	if msg != "" {
		setFlash(w, kind, msg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// fail flashes the user facing message of err and redirects. Internal errors are logged.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, target string) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	kind := "danger"
	if k := apperr.KindOf(err); k == apperr.KindNotFound || k == apperr.KindConflict || k == apperr.KindTooMany {
		kind = "warning"
	}
	redirect(w, r, target, kind, apperr.MessageOf(err, "Nastala chyba, skús to znova."))
}

// -------- rendering

type city struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

func (h *Handler) baseData(w http.ResponseWriter, r *http.Request) map[string]any {
	u := currentUser(r)
	data := map[string]any{
		"User":        u,
		"Flash":       popFlash(w, r),
		"Theme":       themeOf(r, u),
		"Unread":      0,
		"UnreadForum": 0,
		"IsStaff":     h.authz.IsStaff(u),
		"CanPublish":  h.authz.CanPublish(u),
		"Path":        r.URL.Path,
	}
	ctx := r.Context()
	var cities []city
	if err := h.db.SelectContext(ctx, &cities, `SELECT id, name FROM cities ORDER BY name`); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("city list unavailable")
	}
	data["Cities"] = cities
	if u != nil {
		var unread, forum int
		if err := h.db.GetContext(ctx, &unread, `SELECT COUNT(*) FROM messages
			WHERE to_id = ? AND is_read = 0 AND deleted_by_recipient = 0 AND held = 0`, u.ID); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("unread badge unavailable")
		}
		if err := h.db.GetContext(ctx, &forum, `SELECT COUNT(*) FROM forum_notifications
			WHERE user_id = ? AND read_at IS NULL`, u.ID); err != nil {
			logging.Ctx(ctx).Debug().Err(err).Msg("forum badge unavailable")
		}
		data["Unread"], data["UnreadForum"] = unread, forum
	}
	return data
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, name string, page map[string]any) {
	data := h.baseData(w, r)
	for k, v := range page {
		data[k] = v
	}
	var buf bytes.Buffer
	if err := h.tpls.ExecuteTemplate(&buf, name, data); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template failed")
		http.Error(w, "Interná chyba", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, "notfound", map[string]any{"Title": "Stránka neexistuje"})
}

func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusForbidden, "forbidden", map[string]any{"Title": "Prístup zamietnutý"})
}

// -------- JSON

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug().Err(err).Msg("json encode failed")
	}
}

func jsonError(w http.ResponseWriter, r *http.Request, err error) {
	if apperr.KindOf(err) == apperr.KindInternal {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("api request failed")
	}
	writeJSON(w, apperr.HTTPStatus(err), map[string]any{"error": apperr.CodeOf(err)})
}

// -------- small parsing helpers

func idParam(r *http.Request, name string) int64 {
	id, _ := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id
}

func chiParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

func formInt(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue(name)), 10, 64)
	return n
}

func form(r *http.Request, name string) string {
	return strings.TrimSpace(r.FormValue(name))
}

func nullInt(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

// absURL turns a site path into a link for emails and flashed invite links.
func (h *Handler) absURL(path string) string {
	return h.baseURL + path
}

// Index renders the landing page with running ads and upcoming events.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	ads, err := h.activeAds(r, 5)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("ads unavailable")
	}
	events, err := h.upcomingEvents(r, 10)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Msg("events unavailable")
	}
	h.render(w, r, http.StatusOK, "home", map[string]any{
		"Title":    "Muzikuj.sk",
		"ShowForm": r.URL.Query().Get("zobraz_formular"),
		"Next":     nextParam(r.URL.Query().Get("next")),
		"Ads":      ads,
		"Events":   events,
	})
}
