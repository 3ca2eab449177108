package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"time"

	"muzikuj/internal/apperr"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
)

const myEventsURL = "/podujatia/moje"

// publisherOnly lets company accounts and admins through; others get msg and the profile.
func (h *Handler) publisherOnly(obj, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !h.authz.Can(currentUser(r), obj, "publish") {
				redirect(w, r, "/profil", "warning", msg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// canEdit is true for the owner and for admins.
func canEdit(u *models.User, ownerID int64) bool {
	return u != nil && (u.ID == ownerID || u.IsAdmin)
}

func (h *Handler) MyEvents(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	threshold := h.now().AddDate(0, 0, -1)
	var upcoming, archive []models.Event
	err := h.db.SelectContext(ctx, &upcoming, `SELECT * FROM events WHERE user_id = ? AND start_at >= ?
		ORDER BY start_at`, u.ID, threshold)
	if err == nil {
		err = h.db.SelectContext(ctx, &archive, `SELECT * FROM events WHERE user_id = ? AND start_at < ?
			ORDER BY start_at DESC`, u.ID, threshold)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Podujatia sa nepodarilo načítať.", err), "/profil")
		return
	}
	h.render(w, r, http.StatusOK, "my_events", map[string]any{
		"Title":    "Moje podujatia",
		"Upcoming": upcoming,
		"Archive":  archive,
	})
}

type eventForm struct {
	Title       string
	Organizer   string
	Place       string
	Description string
	Start       time.Time
}

// readEventForm parses datum (YYYY-MM-DD) and cas (HH:MM) in the site time zone.
func (h *Handler) readEventForm(r *http.Request) (eventForm, error) {
	f := eventForm{
		Title:       form(r, "nazov"),
		Organizer:   form(r, "organizator"),
		Place:       form(r, "miesto"),
		Description: form(r, "popis"),
	}
	d, t := form(r, "datum"), form(r, "cas")
	if f.Title == "" || d == "" || t == "" {
		return f, apperr.Validation("missing_fields", "Vyplň názov, dátum aj čas.")
	}
	start, err := time.ParseInLocation("2006-01-02 15:04", d+" "+t, h.loc)
	if err != nil {
		return f, apperr.Validation("invalid_datetime", "Neplatný formát dátumu/času.")
	}
	f.Start = start.UTC()
	return f, nil
}

// optionalFile returns the uploaded file under field, nil when none was sent.
func optionalFile(r *http.Request, field string) *multipart.FileHeader {
	_, fh, err := r.FormFile(field)
	if err != nil || fh.Filename == "" {
		return nil
	}
	return fh
}

func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	f, err := h.readEventForm(r)
	if err != nil {
		h.fail(w, r, err, myEventsURL)
		return
	}
	if f.Organizer == "" && u.AccountType == models.AccountCompany {
		f.Organizer = u.OrganizationName
	}
	var photo, warn string
	if fh := optionalFile(r, "foto"); fh != nil {
		if photo, err = h.files.Save(uploads.Events, "evt", fh); err != nil {
			photo, warn = "", "Nepovolený formát fotky. Povolené: png, jpg, jpeg, webp, gif."
		}
	}
	_, err = h.db.ExecContext(r.Context(), `INSERT INTO events(user_id, title, organizer, place, start_at, description,
		photo, created_at) VALUES(?,?,?,?,?,?,?,?)`, u.ID, f.Title, f.Organizer, f.Place, f.Start, f.Description, photo, h.now())
	if err != nil {
		h.files.Remove(uploads.Events, photo)
		h.fail(w, r, apperr.Internal("Podujatie sa nepodarilo uložiť.", err), myEventsURL)
		return
	}
	if warn != "" {
		redirect(w, r, myEventsURL, "warning", "Podujatie vytvorené. "+warn)
		return
	}
	redirect(w, r, myEventsURL, "success", "Podujatie vytvorené.")
}

// ownEvent loads the event in the id URL param and checks the caller may edit it.
func (h *Handler) ownEvent(w http.ResponseWriter, r *http.Request) (*models.Event, bool) {
	var e models.Event
	err := h.db.GetContext(r.Context(), &e, `SELECT * FROM events WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Podujatie sa nepodarilo načítať.", err), myEventsURL)
		return nil, false
	}
	if !canEdit(currentUser(r), e.UserID) {
		h.Forbidden(w, r)
		return nil, false
	}
	return &e, true
}

func (h *Handler) EditEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	local := e.StartAt.In(h.loc)
	h.render(w, r, http.StatusOK, "event_edit", map[string]any{
		"Title": "Upraviť podujatie",
		"Event": e,
		"Date":  local.Format(time.DateOnly),
		"Time":  local.Format("15:04"),
	})
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf("/podujatia/%d/edit", e.ID)
	f, err := h.readEventForm(r)
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	_, err = h.db.ExecContext(r.Context(), `UPDATE events SET title = ?, organizer = ?, place = ?, start_at = ?,
		description = ? WHERE id = ?`, f.Title, f.Organizer, f.Place, f.Start, f.Description, e.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Podujatie sa nepodarilo uložiť.", err), back)
		return
	}
	redirect(w, r, myEventsURL, "success", "Podujatie uložené.")
}

func (h *Handler) UploadEventPhoto(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	fh := optionalFile(r, "foto")
	if fh == nil {
		redirect(w, r, myEventsURL, "warning", "Nevybral si žiadny súbor.")
		return
	}
	name, err := h.files.Save(uploads.Events, fmt.Sprintf("evt%d", e.ID), fh)
	if err != nil {
		redirect(w, r, myEventsURL, "warning", "Nepovolený formát fotky.")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE events SET photo = ? WHERE id = ?`, name, e.ID); err != nil {
		h.files.Remove(uploads.Events, name)
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo uložiť.", err), myEventsURL)
		return
	}
	h.files.Remove(uploads.Events, e.Photo)
	redirect(w, r, myEventsURL, "success", "Fotka podujatia aktualizovaná.")
}

func (h *Handler) RemoveEventPhoto(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	if e.Photo == "" {
		http.Redirect(w, r, myEventsURL, http.StatusSeeOther)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE events SET photo = '' WHERE id = ?`, e.ID); err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo odstrániť.", err), myEventsURL)
		return
	}
	h.files.Remove(uploads.Events, e.Photo)
	redirect(w, r, myEventsURL, "info", "Fotka podujatia odstránená.")
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	e, ok := h.ownEvent(w, r)
	if !ok {
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM events WHERE id = ?`, e.ID); err != nil {
		h.fail(w, r, apperr.Internal("Podujatie sa nepodarilo zmazať.", err), myEventsURL)
		return
	}
	h.files.Remove(uploads.Events, e.Photo)
	redirect(w, r, myEventsURL, "info", "Podujatie zmazané.")
}

// upcomingEvents feeds the landing page.
func (h *Handler) upcomingEvents(r *http.Request, limit int) ([]models.Event, error) {
	var out []models.Event
	err := h.db.SelectContext(r.Context(), &out, `SELECT * FROM events WHERE start_at >= ? ORDER BY start_at LIMIT ?`,
		h.now().AddDate(0, 0, -1), limit)
	return out, err
}
