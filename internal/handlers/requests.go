package handlers

import (
	"database/sql"
	"net/http"
	"strings"
	"time"

	"muzikuj/internal/apperr"
	"muzikuj/internal/models"
	"muzikuj/internal/validation"
)

type requestForm struct {
	Name        string `validate:"max=100"`
	Email       string `validate:"omitempty,email,max=120" msg:"Zadaj platný e-mail."`
	EventType   string `validate:"required,max=100" msg:"Vyplň typ akcie."`
	EventDate   string `validate:"omitempty,datetime=2006-01-02" msg:"Dátum musí byť v tvare RRRR-MM-DD."`
	TimeFrom    string `validate:"omitempty,clock" msg:"Čas od musí byť v tvare HH:MM."`
	TimeTo      string `validate:"omitempty,clock" msg:"Čas do musí byť v tvare HH:MM."`
	Description string `validate:"max=5000"`
}

func (h *Handler) NewRequestForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "request_new", map[string]any{"Title": "Pridať dopyt"})
}

// composePlace joins town, district and region, skipping empty parts.
func composePlace(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// CreateRequest accepts a dopyt from anyone. The hidden website field is a honeypot.
func (h *Handler) CreateRequest(w http.ResponseWriter, r *http.Request) {
	if form(r, "website") != "" {
		redirect(w, r, "/dopyty", "warning", "Formulár bol zablokovaný (spam).")
		return
	}
	back := "/dopyty/pridat"
	f := requestForm{
		Name:        form(r, "meno"),
		Email:       form(r, "email"),
		EventType:   form(r, "typ_akcie"),
		EventDate:   form(r, "datum"),
		TimeFrom:    form(r, "cas_od"),
		TimeTo:      form(r, "cas_do"),
		Description: form(r, "popis"),
	}
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, back)
		return
	}
	var budget sql.NullFloat64
	if v := form(r, "rozpocet"); v != "" {
		b, err := parsePrice(v)
		if err != nil || b < 0 {
			redirect(w, r, back, "danger", "Rozpočet musí byť kladné číslo.")
			return
		}
		budget = sql.NullFloat64{Float64: b, Valid: true}
	}
	var userID sql.NullInt64
	if u := currentUser(r); u != nil {
		userID = nullInt(u.ID)
	}
	place := composePlace(form(r, "obec"), form(r, "okres"), form(r, "kraj"))

	res, err := h.db.ExecContext(r.Context(), `INSERT INTO requests(name, email, event_type, place, event_date,
		time_from, time_to, description, budget, user_id, created_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		f.Name, f.Email, f.EventType, place, f.EventDate, f.TimeFrom, f.TimeTo, f.Description, budget, userID, h.now())
	if err != nil {
		h.fail(w, r, apperr.Internal("Dopyt sa nepodarilo uložiť.", err), back)
		return
	}
	id, _ := res.LastInsertId()
	h.mod.ReportFlag(r.Context(), "request", id, f.EventType+" "+f.Description)
	redirect(w, r, "/dopyty", "success", "Dopyt bol pridaný!")
}

// Requests lists active dopyty by date; undated ones go last.
func (h *Handler) Requests(w http.ResponseWriter, r *http.Request) {
	var items []models.Request
	err := h.db.SelectContext(r.Context(), &items, `SELECT * FROM requests WHERE active = 1
		ORDER BY event_date = '', event_date, time_from, id`)
	if err != nil {
		h.fail(w, r, apperr.Internal("Dopyty sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "requests", map[string]any{
		"Title":    "Dopyty",
		"Requests": items,
		"Today":    h.now().Format(time.DateOnly),
	})
}
