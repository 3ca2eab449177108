package handlers

import (
	"database/sql"
	"io"
	"net/http"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"muzikuj/internal/apperr"
	"muzikuj/internal/models"
	"muzikuj/internal/validation"
)

// calendarInput is the JSON body of the save endpoint. celodenne arrives as
// a bool or as the string "true".
type calendarInput struct {
	ID     any    `json:"id"`
	Title  string `json:"nazov" validate:"required,max=100" msg:"Chýba názov alebo dátum."`
	Desc   string `json:"popis" validate:"max=5000"`
	Date   string `json:"datum" validate:"required,datetime=2006-01-02" msg:"Chýba názov alebo dátum."`
	AllDay any    `json:"celodenne"`
	Place  string `json:"miesto" validate:"max=150"`
	Note   string `json:"poznamka" validate:"max=5000"`
	From   string `json:"od" validate:"omitempty,clock" msg:"Čas musí byť v tvare HH:MM."`
	To     string `json:"do" validate:"omitempty,clock" msg:"Čas musí byť v tvare HH:MM."`
}

func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1" || t == "on"
	case float64:
		return t != 0
	}
	return false
}

func anyID(v any) int64 {
	switch t := v.(type) {
	case float64:
		return int64(t)
	case string:
		n, _ := strconv.ParseInt(t, 10, 64)
		return n
	}
	return 0
}

// calendarScope lists the groups of u, oldest first. New events go to the first one.
func (h *Handler) calendarScope(r *http.Request, u *models.User) ([]int64, error) {
	var ids []int64
	err := h.db.SelectContext(r.Context(), &ids, `SELECT group_id FROM group_members WHERE user_id = ? ORDER BY group_id`, u.ID)
	return ids, err
}

func ownsEvent(e *models.CalendarEvent, userID int64, groups []int64) bool {
	if e.UserID.Valid && e.UserID.Int64 == userID {
		return true
	}
	if e.GroupID.Valid {
		for _, g := range groups {
			if g == e.GroupID.Int64 {
				return true
			}
		}
	}
	return false
}

func (h *Handler) loadEvent(r *http.Request, u *models.User, id int64) (*models.CalendarEvent, []int64, error) {
	var e models.CalendarEvent
	err := h.db.GetContext(r.Context(), &e, `SELECT * FROM calendar_events WHERE id = ?`, id)
	if isNoRows(err) {
		return nil, nil, apperr.NotFound("Udalosť sa nenašla.")
	}
	if err != nil {
		return nil, nil, apperr.Internal("Udalosť sa nepodarilo načítať.", err)
	}
	groups, err := h.calendarScope(r, u)
	if err != nil {
		return nil, nil, apperr.Internal("Udalosť sa nepodarilo načítať.", err)
	}
	if !ownsEvent(&e, u.ID, groups) {
		return nil, nil, apperr.Forbidden("forbidden", "Nemáš oprávnenie.")
	}
	return &e, groups, nil
}

func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	groups, err := h.calendarScope(r, u)
	var events []models.CalendarEvent
	if err == nil {
		events, err = h.eventsFor(r, u.ID, groups, "")
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Kalendár sa nepodarilo načítať.", err), "/profil")
		return
	}
	h.render(w, r, http.StatusOK, "calendar", map[string]any{"Title": "Kalendár", "Events": events})
}

// eventsFor lists events owned by userID or by one of groups, optionally on one day.
func (h *Handler) eventsFor(r *http.Request, userID int64, groups []int64, day string) ([]models.CalendarEvent, error) {
	query := `SELECT * FROM calendar_events WHERE (user_id = ?`
	args := []any{userID}
	for _, g := range groups {
		query += ` OR group_id = ?`
		args = append(args, g)
	}
	query += `)`
	if day != "" {
		query += ` AND event_date = ?`
		args = append(args, day)
	}
	query += ` ORDER BY event_date, time_from, id`
	var out []models.CalendarEvent
	err := h.db.SelectContext(r.Context(), &out, query, args...)
	return out, err
}

// SaveCalendarEvent creates or edits an event from JSON. Events of members
// of a group belong to the group.
func (h *Handler) SaveCalendarEvent(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Neplatné dáta."})
		return
	}
	var in calendarInput
	if err := json.Unmarshal(body, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Neplatné dáta."})
		return
	}
	if err := validation.Struct(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": apperr.MessageOf(err, "Neplatné dáta.")})
		return
	}
	allDay := truthy(in.AllDay)
	if !allDay && in.From == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Chýba čas 'od'."})
		return
	}
	if allDay {
		in.From, in.To = "", ""
	}

	groups, err := h.calendarScope(r, u)
	if err != nil {
		jsonError(w, r, apperr.Internal("Udalosť sa nepodarilo uložiť.", err))
		return
	}
	var owner, group sql.NullInt64
	if len(groups) > 0 {
		group = nullInt(groups[0])
	} else {
		owner = nullInt(u.ID)
	}

	ctx := r.Context()
	if id := anyID(in.ID); id != 0 {
		if _, _, err := h.loadEvent(r, u, id); err != nil {
			writeJSON(w, apperr.HTTPStatus(err), map[string]any{"error": apperr.MessageOf(err, "Chyba.")})
			return
		}
		_, err = h.db.ExecContext(ctx, `UPDATE calendar_events SET title = ?, description = ?, event_date = ?, time_from = ?,
			time_to = ?, place = ?, note = ?, all_day = ?, user_id = ?, group_id = ? WHERE id = ?`,
			in.Title, in.Desc, in.Date, in.From, in.To, in.Place, in.Note, allDay, owner, group, id)
	} else {
		_, err = h.db.ExecContext(ctx, `INSERT INTO calendar_events(title, description, event_date, time_from, time_to,
			place, note, all_day, user_id, group_id) VALUES(?,?,?,?,?,?,?,?,?,?)`,
			in.Title, in.Desc, in.Date, in.From, in.To, in.Place, in.Note, allDay, owner, group)
	}
	if err != nil {
		jsonError(w, r, apperr.Internal("Udalosť sa nepodarilo uložiť.", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Udalosť uložená."})
}

type feedEvent struct {
	ID          int64             `json:"id"`
	Title       string            `json:"title"`
	Start       string            `json:"start"`
	End         string            `json:"end"`
	Description string            `json:"description"`
	AllDay      bool              `json:"allDay"`
	Extended    map[string]string `json:"extendedProps"`
}

func feedTimes(e models.CalendarEvent) (start, end string) {
	from := e.TimeFrom
	if from == "" {
		from = "00:00"
	}
	to := e.TimeTo
	if to == "" {
		to = from
	}
	return e.EventDate + "T" + from + ":00", e.EventDate + "T" + to + ":00"
}

// CalendarFeed returns own and group events in the calendar widget format.
// Guests get an empty list.
func (h *Handler) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	out := []feedEvent{}
	if u == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}
	groups, err := h.calendarScope(r, u)
	var events []models.CalendarEvent
	if err == nil {
		events, err = h.eventsFor(r, u.ID, groups, "")
	}
	if err != nil {
		jsonError(w, r, apperr.Internal("Udalosti sa nepodarilo načítať.", err))
		return
	}
	for _, e := range events {
		start, end := feedTimes(e)
		out = append(out, feedEvent{
			ID:          e.ID,
			Title:       e.Title,
			Start:       start,
			End:         end,
			Description: e.Description,
			AllDay:      e.AllDay || e.TimeFrom == "",
			Extended:    map[string]string{"miesto": e.Place},
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CalendarDay(w http.ResponseWriter, r *http.Request) {
	type dayEvent struct {
		ID    int64  `json:"id"`
		Title string `json:"nazov"`
		Place string `json:"miesto"`
	}
	out := []dayEvent{}
	day := chiParam(r, "date")
	u := currentUser(r)
	if _, err := time.Parse(time.DateOnly, day); err != nil || u == nil {
		writeJSON(w, http.StatusOK, out)
		return
	}
	groups, err := h.calendarScope(r, u)
	var events []models.CalendarEvent
	if err == nil {
		events, err = h.eventsFor(r, u.ID, groups, day)
	}
	if err != nil {
		jsonError(w, r, apperr.Internal("Udalosti sa nepodarilo načítať.", err))
		return
	}
	for _, e := range events {
		out = append(out, dayEvent{ID: e.ID, Title: e.Title, Place: e.Place})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) LoadCalendarEvent(w http.ResponseWriter, r *http.Request) {
	e, _, err := h.loadEvent(r, currentUser(r), idParam(r, "id"))
	if err != nil {
		writeJSON(w, apperr.HTTPStatus(err), map[string]any{"error": apperr.MessageOf(err, "Chyba.")})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        e.ID,
		"nazov":     e.Title,
		"popis":     e.Description,
		"miesto":    e.Place,
		"poznamka":  e.Note,
		"datum":     e.EventDate,
		"cas_od":    e.TimeFrom,
		"cas_do":    e.TimeTo,
		"celodenne": e.AllDay || (e.TimeFrom == "" && e.TimeTo == ""),
	})
}

func (h *Handler) DeleteCalendarEvent(w http.ResponseWriter, r *http.Request) {
	e, _, err := h.loadEvent(r, currentUser(r), idParam(r, "id"))
	if err != nil {
		msg := apperr.MessageOf(err, "Chyba.")
		if apperr.KindOf(err) == apperr.KindForbidden {
			msg = "Nemáš oprávnenie mazať túto udalosť."
		}
		writeJSON(w, apperr.HTTPStatus(err), map[string]any{"error": msg})
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM calendar_events WHERE id = ?`, e.ID); err != nil {
		jsonError(w, r, apperr.Internal("Udalosť sa nepodarilo zmazať.", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Udalosť zmazaná."})
}
