package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"muzikuj/internal/apperr"
	"muzikuj/internal/auth"
	"muzikuj/internal/genres"
	"muzikuj/internal/logging"
	"muzikuj/internal/models"
)

const (
	settingsURL = "/nastavenia"
	prefsCookie = "mz_prefs"

	// EraseWindow is how long an erase link stays valid.
	EraseWindow = 24 * time.Hour
)

var Themes = []string{"system", "light", "dark", "blue", "green", "red"}

var FollowModes = []string{"all", "selected", "none"}

var FollowEntities = []string{"kapely", "hudobnici", "podujatia", "bazar", "dopyty"}

type deleteReason struct {
	Code  string
	Label string
}

var DeleteReasons = []deleteReason{
	{"no_use", "Už službu nevyužívam"},
	{"privacy", "Obavy o súkromie"},
	{"spam", "Príliš veľa notifikácií"},
	{"missing", "Chýbajú mi funkcie"},
	{"bugs", "Technické problémy"},
	{"other", "Iné"},
	{"no_answer", "Nechcem uviesť"},
}

func oneOf(v string, list []string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// readPrefs decodes the mz_prefs cookie, a query-escaped JSON object.
func readPrefs(r *http.Request) map[string]any {
	prefs := map[string]any{}
	c, err := r.Cookie(prefsCookie)
	if err != nil {
		return prefs
	}
	raw, err := url.QueryUnescape(c.Value)
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil || prefs == nil {
		return map[string]any{}
	}
	return prefs
}

func writePrefs(w http.ResponseWriter, prefs map[string]any) {
	b, err := json.Marshal(prefs)
	if err != nil {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     prefsCookie,
		Value:    url.QueryEscape(string(b)),
		Path:     "/",
		MaxAge:   365 * 24 * 3600,
		SameSite: http.SameSiteLaxMode,
	})
}

// themeOf prefers the stored theme, then the cookie, then "system".
func themeOf(r *http.Request, u *models.User) string {
	if u != nil && oneOf(u.Theme, Themes) {
		return u.Theme
	}
	if t, ok := readPrefs(r)["theme"].(string); ok && oneOf(t, Themes) {
		return t
	}
	return "system"
}

func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	h.render(w, r, http.StatusOK, "settings", map[string]any{
		"Title":          "Nastavenia",
		"Themes":         Themes,
		"FollowModes":    FollowModes,
		"AllGenres":      genres.Choices,
		"FollowGenres":   genres.Split(u.FollowGenres),
		"AllEntities":    FollowEntities,
		"FollowEntities": genres.Split(u.FollowEntities),
	})
}

// Account handles change_password and request_delete.
func (h *Handler) Account(w http.ResponseWriter, r *http.Request) {
	switch r.FormValue("action") {
	case "change_password":
		h.changePassword(w, r)
	case "request_delete":
		h.requestDelete(w, r)
	default:
		redirect(w, r, settingsURL+"#ucet", "warning", "Neznáma akcia.")
	}
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	back := settingsURL + "#ucet"
	old, pw, pw2 := r.FormValue("stare_heslo"), r.FormValue("nove_heslo"), r.FormValue("nove_heslo2")
	if !auth.CheckPassword(old, u.PasswordHash) {
		redirect(w, r, back, "warning", "Aktuálne heslo nesedí.")
		return
	}
	if len(pw) < 6 {
		redirect(w, r, back, "warning", "Nové heslo musí mať aspoň 6 znakov.")
		return
	}
	if pw != pw2 {
		redirect(w, r, back, "warning", "Heslá sa nezhodujú.")
		return
	}
	hash, err := auth.HashPassword(pw)
	if err != nil {
		h.fail(w, r, apperr.Internal("Heslo sa nepodarilo zmeniť.", err), back)
		return
	}
	ctx := r.Context()
	if _, err := h.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Heslo sa nepodarilo zmeniť.", err), back)
		return
	}
	// the current session is replaced, every other one ends
	if err := h.sessions.DestroyAll(ctx, u.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", u.ID).Msg("session cleanup after password change failed")
	}
	if err := h.sessions.Create(ctx, w, u.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", u.ID).Msg("session refresh after password change failed")
	}
	redirect(w, r, back, "success", "Heslo bolo zmenené.")
}

func eraseMail(confirm, cancel string) string {
	return fmt.Sprintf(`Je nám ľúto, že opúšťate muzikuj.sk.

Ak chcete účet naozaj vymazať, otvorte tento odkaz (platí 24 hodín):
%s

Pred potvrdením sa vás krátko opýtame na dôvod odchodu.

Ak ste o vymazanie nežiadali, žiadosť zrušíte tu:
%s
`, confirm, cancel)
}

func (h *Handler) requestDelete(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	back := settingsURL + "#ucet"
	if !auth.CheckPassword(r.FormValue("confirm_password"), u.PasswordHash) {
		redirect(w, r, back, "warning", "Potvrdenie heslom nesedí.")
		return
	}
	token := newToken()
	now := h.now()
	_, err := h.db.ExecContext(ctx, `UPDATE users SET erase_token = ?, erase_requested_at = ?, erase_deadline_at = ?
		WHERE id = ?`, token, now, now.Add(EraseWindow), u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Žiadosť sa nepodarilo uložiť.", err), back)
		return
	}
	body := eraseMail(h.absURL("/nastavenia/vymazat/"+token), h.absURL("/nastavenia/vymazat-zrusit/"+token))
	if err := h.mail.Send(ctx, u.Email, "Potvrdenie vymazania účtu – muzikuj.sk", body); err != nil {
		logging.Ctx(ctx).Error().Err(err).Int64("user_id", u.ID).Msg("erase email failed")
		if _, err := h.db.ExecContext(ctx, `UPDATE users SET erase_token = '', erase_requested_at = NULL,
			erase_deadline_at = NULL WHERE id = ?`, u.ID); err != nil {
			logging.Ctx(ctx).Error().Err(err).Int64("user_id", u.ID).Msg("erase request rollback failed")
		}
		redirect(w, r, back, "danger", "Nepodarilo sa odoslať potvrdzovací e-mail. Skúste neskôr.")
		return
	}
	if err := h.sessions.DestroyAll(ctx, u.ID); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Int64("user_id", u.ID).Msg("session cleanup failed")
	}
	h.sessions.Destroy(w, r)
	redirect(w, r, "/?zobraz_formular=prihlasenie", "info", "Verifikácia vymazania účtu vám bola poslaná na e-mail.")
}

func (h *Handler) Privacy(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	public := r.FormValue("verejny_ucet") == "1"
	allowRating := r.FormValue("povolit_hodnotenie") != ""
	_, err := h.db.ExecContext(r.Context(), `UPDATE users SET public_account = ?, allow_rating = ? WHERE id = ?`,
		public, allowRating, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Súkromie sa nepodarilo uložiť.", err), settingsURL+"#sukromie")
		return
	}
	redirect(w, r, settingsURL+"#sukromie", "success", "Súkromie uložené.")
}

// Appearance stores the theme and mirrors it into the mz_prefs cookie. Guests only get the cookie.
func (h *Handler) Appearance(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	back := settingsURL + "#vzhlad"
	if u == nil {
		back = localReferer(r, "/")
	}
	theme := r.FormValue("theme")
	if theme == "" {
		theme = "system"
	}
	if !oneOf(theme, Themes) {
		redirect(w, r, back, "warning", "Neplatná téma.")
		return
	}
	if u != nil && theme != u.Theme {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE users SET theme = ? WHERE id = ?`, theme, u.ID); err != nil {
			h.fail(w, r, apperr.Internal("Tému sa nepodarilo uložiť.", err), back)
			return
		}
	}
	prefs := readPrefs(r)
	prefs["theme"] = theme
	writePrefs(w, prefs)
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// pick keeps the allowed values, sorted and deduped.
func pick(values, allowed []string) string {
	seen := map[string]bool{}
	var out []string
	for _, v := range values {
		if oneOf(v, allowed) && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func (h *Handler) Following(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	back := settingsURL + "#sledovanie"
	if err := r.ParseForm(); err != nil {
		redirect(w, r, back, "warning", "Neplatný formulár.")
		return
	}
	mode := r.FormValue("follow_mode")
	if !oneOf(mode, FollowModes) {
		mode = "all"
	}
	_, err := h.db.ExecContext(r.Context(), `UPDATE users SET follow_mode = ?, follow_genres = ?, follow_entities = ?
		WHERE id = ?`, mode, genres.Join(r.Form["zanre"]), pick(r.Form["entities"], FollowEntities), u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Preferencie sa nepodarilo uložiť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Preferencie sledovania uložené.")
}

// userByEraseToken finds the not yet deleted account holding token.
func (h *Handler) userByEraseToken(r *http.Request, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	var u models.User
	err := h.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE erase_token = ? AND is_deleted = 0`, token)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// eraseTarget resolves a token still inside its window, flashing and redirecting otherwise.
func (h *Handler) eraseTarget(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	u, err := h.userByEraseToken(r, chiParam(r, "token"))
	if err != nil {
		h.fail(w, r, apperr.Internal("Odkaz sa nepodarilo overiť.", err), "/")
		return nil, false
	}
	if u == nil || !u.ErasePending() || !u.EraseDeadlineAt.Valid || !h.now().Before(u.EraseDeadlineAt.Time) {
		redirect(w, r, "/", "warning", "Odkaz na vymazanie je neplatný alebo vypršal.")
		return nil, false
	}
	return u, true
}

func (h *Handler) EraseConfirm(w http.ResponseWriter, r *http.Request) {
	u, ok := h.eraseTarget(w, r)
	if !ok {
		return
	}
	h.render(w, r, http.StatusOK, "erase_confirm", map[string]any{
		"Title":   "Vymazanie účtu",
		"Token":   chiParam(r, "token"),
		"Reasons": DeleteReasons,
		"Target":  u,
	})
}

// Erase records the leaving feedback in the log and hard deletes the account.
func (h *Handler) Erase(w http.ResponseWriter, r *http.Request) {
	u, ok := h.eraseTarget(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		redirect(w, r, "/", "warning", "Neplatný formulár.")
		return
	}
	codes := make([]string, 0, len(DeleteReasons))
	for _, d := range DeleteReasons {
		codes = append(codes, d.Code)
	}
	feedback, _ := json.Marshal(map[string]any{
		"reasons": genres.Split(pick(r.Form["reasons"], codes)),
		"other":   form(r, "other_text"),
	})
	if _, err := h.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Vymazanie sa nepodarilo. Skúste neskôr alebo nás kontaktujte.", err), "/")
		return
	}
	logging.Ctx(ctx).Info().Int64("user_id", u.ID).RawJSON("feedback", feedback).Msg("account erased")
	h.sessions.Destroy(w, r)
	redirect(w, r, "/", "success", "Účet bol vymazaný. Mrzí nás, že odchádzate.")
}

func (h *Handler) EraseCancel(w http.ResponseWriter, r *http.Request) {
	u, err := h.userByEraseToken(r, chiParam(r, "token"))
	if err != nil {
		h.fail(w, r, apperr.Internal("Odkaz sa nepodarilo overiť.", err), "/")
		return
	}
	if u == nil {
		redirect(w, r, "/", "warning", "Odkaz je neplatný alebo už bol použitý.")
		return
	}
	_, err = h.db.ExecContext(r.Context(), `UPDATE users SET erase_token = '', erase_requested_at = NULL,
		erase_deadline_at = NULL WHERE id = ?`, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Žiadosť sa nepodarilo zrušiť.", err), "/")
		return
	}
	redirect(w, r, "/?zobraz_formular=prihlasenie", "info", "Žiadosť o vymazanie bola zrušená. Účet je opäť aktívny.")
}
