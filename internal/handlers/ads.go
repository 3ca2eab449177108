package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"muzikuj/internal/apperr"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
)

const myAdsURL = "/reklamy/moje"

// adLayout is the datetime-local input format.
const adLayout = "2006-01-02T15:04"

func (h *Handler) MyAds(w http.ResponseWriter, r *http.Request) {
	var ads []models.Ad
	err := h.db.SelectContext(r.Context(), &ads, `SELECT * FROM ads WHERE user_id = ? ORDER BY created_at DESC, id DESC`,
		currentUser(r).ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Reklamy sa nepodarilo načítať.", err), "/profil")
		return
	}
	h.render(w, r, http.StatusOK, "my_ads", map[string]any{"Title": "Moje reklamy", "Ads": ads})
}

type adForm struct {
	Title string
	Text  string
	URL   string
	IsTop bool
	Start *time.Time
	End   sql.NullTime
}

// readAdForm parses start and end in the site time zone. A missing start
// leaves Start nil so the caller picks the default.
func (h *Handler) readAdForm(r *http.Request) (adForm, error) {
	f := adForm{
		Title: form(r, "nazov"),
		Text:  form(r, "text"),
		URL:   form(r, "url"),
		IsTop: r.FormValue("is_top") != "",
	}
	if f.Title == "" {
		return f, apperr.Validation("missing_title", "Zadaj názov reklamy.")
	}
	if v := form(r, "start"); v != "" {
		t, err := time.ParseInLocation(adLayout, v, h.loc)
		if err != nil {
			return f, apperr.Validation("invalid_datetime", "Neplatný dátum/čas.")
		}
		t = t.UTC()
		f.Start = &t
	}
	if v := form(r, "end"); v != "" {
		t, err := time.ParseInLocation(adLayout, v, h.loc)
		if err != nil {
			return f, apperr.Validation("invalid_datetime", "Neplatný dátum/čas.")
		}
		f.End = sql.NullTime{Time: t.UTC(), Valid: true}
	}
	return f, nil
}

func (h *Handler) CreateAd(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	f, err := h.readAdForm(r)
	if err != nil {
		h.fail(w, r, err, myAdsURL)
		return
	}
	now := h.now()
	start := now
	if f.Start != nil {
		start = *f.Start
	}
	var photo, warn string
	if fh := optionalFile(r, "foto"); fh != nil {
		if photo, err = h.files.Save(uploads.Ads, "ad", fh); err != nil {
			photo, warn = "", " Nepovolený formát obrázka."
		}
	}
	_, err = h.db.ExecContext(r.Context(), `INSERT INTO ads(user_id, title, text, url, start_at, end_at, is_top, photo,
		created_at) VALUES(?,?,?,?,?,?,?,?,?)`, u.ID, f.Title, f.Text, f.URL, start, f.End, f.IsTop, photo, now)
	if err != nil {
		h.files.Remove(uploads.Ads, photo)
		h.fail(w, r, apperr.Internal("Reklamu sa nepodarilo uložiť.", err), myAdsURL)
		return
	}
	kind := "success"
	if warn != "" {
		kind = "warning"
	}
	redirect(w, r, myAdsURL, kind, "Reklama vytvorená."+warn)
}

func (h *Handler) ownAd(w http.ResponseWriter, r *http.Request) (*models.Ad, bool) {
	var ad models.Ad
	err := h.db.GetContext(r.Context(), &ad, `SELECT * FROM ads WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return nil, false
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Reklamu sa nepodarilo načítať.", err), myAdsURL)
		return nil, false
	}
	if !canEdit(currentUser(r), ad.UserID) {
		h.Forbidden(w, r)
		return nil, false
	}
	return &ad, true
}

func (h *Handler) EditAd(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.ownAd(w, r)
	if !ok {
		return
	}
	data := map[string]any{
		"Title": "Upraviť reklamu",
		"Ad":    ad,
		"Start": ad.StartAt.In(h.loc).Format(adLayout),
		"End":   "",
	}
	if ad.EndAt.Valid {
		data["End"] = ad.EndAt.Time.In(h.loc).Format(adLayout)
	}
	h.render(w, r, http.StatusOK, "ad_edit", data)
}

// UpdateAd keeps the stored start when none is sent; an empty end clears it.
func (h *Handler) UpdateAd(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.ownAd(w, r)
	if !ok {
		return
	}
	back := fmt.Sprintf("/reklamy/%d/edit", ad.ID)
	f, err := h.readAdForm(r)
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	start := ad.StartAt
	if f.Start != nil {
		start = *f.Start
	}
	_, err = h.db.ExecContext(r.Context(), `UPDATE ads SET title = ?, text = ?, url = ?, start_at = ?, end_at = ?,
		is_top = ? WHERE id = ?`, f.Title, f.Text, f.URL, start, f.End, f.IsTop, ad.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Reklamu sa nepodarilo uložiť.", err), back)
		return
	}
	redirect(w, r, myAdsURL, "success", "Uložené.")
}

func (h *Handler) UploadAdPhoto(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.ownAd(w, r)
	if !ok {
		return
	}
	fh := optionalFile(r, "foto")
	if fh == nil {
		redirect(w, r, myAdsURL, "warning", "Nevybraný súbor.")
		return
	}
	name, err := h.files.Save(uploads.Ads, fmt.Sprintf("ad%d", ad.ID), fh)
	if err != nil {
		redirect(w, r, myAdsURL, "warning", "Nepovolený formát.")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE ads SET photo = ? WHERE id = ?`, name, ad.ID); err != nil {
		h.files.Remove(uploads.Ads, name)
		h.fail(w, r, apperr.Internal("Obrázok sa nepodarilo uložiť.", err), myAdsURL)
		return
	}
	h.files.Remove(uploads.Ads, ad.Photo)
	redirect(w, r, myAdsURL, "success", "Obrázok aktualizovaný.")
}

func (h *Handler) RemoveAdPhoto(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.ownAd(w, r)
	if !ok {
		return
	}
	if ad.Photo != "" {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE ads SET photo = '' WHERE id = ?`, ad.ID); err != nil {
			h.fail(w, r, apperr.Internal("Obrázok sa nepodarilo odstrániť.", err), myAdsURL)
			return
		}
		h.files.Remove(uploads.Ads, ad.Photo)
	}
	redirect(w, r, myAdsURL, "info", "Obrázok odstránený.")
}

func (h *Handler) DeleteAd(w http.ResponseWriter, r *http.Request) {
	ad, ok := h.ownAd(w, r)
	if !ok {
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM ads WHERE id = ?`, ad.ID); err != nil {
		h.fail(w, r, apperr.Internal("Reklamu sa nepodarilo zmazať.", err), myAdsURL)
		return
	}
	h.files.Remove(uploads.Ads, ad.Photo)
	redirect(w, r, myAdsURL, "info", "Reklama zmazaná.")
}

// ReportAd queues an ad for the staff ad report list. One open report per user and ad.
func (h *Handler) ReportAd(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	back := localReferer(r, "/")
	id := idParam(r, "id")
	var n int
	if err := h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ads WHERE id = ?`, id); err != nil || n == 0 {
		h.NotFound(w, r)
		return
	}
	if err := h.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM ad_reports WHERE ad_id = ? AND reporter_id = ? AND handled = 0`,
		id, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Nahlásenie sa nepodarilo uložiť.", err), back)
		return
	}
	if n > 0 {
		redirect(w, r, back, "info", "Túto reklamu si už nahlásil.")
		return
	}
	reason := form(r, "reason")
	if len(reason) > 500 {
		reason = reason[:500]
	}
	if _, err := h.db.ExecContext(ctx, `INSERT INTO ad_reports(ad_id, reporter_id, reason, created_at) VALUES(?,?,?,?)`,
		id, u.ID, reason, h.now()); err != nil {
		h.fail(w, r, apperr.Internal("Nahlásenie sa nepodarilo uložiť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Ďakujeme, reklama bola nahlásená.")
}

// activeAds are running ads, top ones first.
func (h *Handler) activeAds(r *http.Request, limit int) ([]models.Ad, error) {
	now := h.now()
	var out []models.Ad
	err := h.db.SelectContext(r.Context(), &out, `SELECT * FROM ads WHERE start_at <= ? AND (end_at IS NULL OR end_at > ?)
		ORDER BY is_top DESC, start_at DESC LIMIT ?`, now, now, limit)
	return out, err
}
