package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"muzikuj/internal/apperr"
	"muzikuj/internal/auth"
	"muzikuj/internal/features"
	"muzikuj/internal/logging"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
	"muzikuj/internal/validation"
)

type registerForm struct {
	Nickname   string `validate:"required,min=2,max=50" msg:"Prezývka musí mať 2 až 50 znakov."`
	Email      string `validate:"required,email,max=120" msg:"Zadaj platný e-mail."`
	Password   string `validate:"required,min=6" msg:"Heslo musí mať aspoň 6 znakov."`
	Password2  string `validate:"eqfield=Password" msg:"Heslá sa nezhodujú ❌"`
	FirstName  string `validate:"max=100"`
	LastName   string `validate:"max=100"`
	Instrument string `validate:"max=100"`
	Secondary  string `validate:"max=100"`
	Town       string `validate:"max=100"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	f := registerForm{
		Nickname:   form(r, "prezyvka"),
		Email:      strings.ToLower(form(r, "email")),
		Password:   r.FormValue("heslo"),
		Password2:  r.FormValue("heslo2"),
		FirstName:  form(r, "meno"),
		LastName:   form(r, "priezvisko"),
		Instrument: form(r, "instrument"),
		Secondary:  form(r, "doplnkovy_nastroj"),
		Town:       form(r, "obec"),
	}
	back := "/?zobraz_formular=uzivatel"
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, back)
		return
	}
	ctx := r.Context()

	var taken int
	if err := h.db.GetContext(ctx, &taken, `SELECT COUNT(*) FROM users WHERE email = ? OR username = ?`, f.Email, f.Nickname); err != nil {
		h.fail(w, r, apperr.Internal("Registrácia zlyhala.", err), back)
		return
	}
	if taken > 0 {
		h.fail(w, r, apperr.Conflict("Používateľ s týmto e-mailom alebo prezývkou už existuje."), back)
		return
	}

	hash, err := auth.HashPassword(f.Password)
	if err != nil {
		h.fail(w, r, apperr.Internal("Registrácia zlyhala.", err), back)
		return
	}
	res, err := h.db.ExecContext(ctx, `INSERT INTO users(username, first_name, last_name, email, password_hash,
		instrument, secondary_instrument, town, created_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		f.Nickname, f.FirstName, f.LastName, f.Email, hash, f.Instrument, f.Secondary, f.Town, h.now())
	if err != nil {
		h.fail(w, r, apperr.Conflict("Používateľ s týmto e-mailom alebo prezývkou už existuje."), back)
		return
	}
	uid, _ := res.LastInsertId()
	if err := h.sessions.Create(ctx, w, uid); err != nil {
		h.fail(w, r, apperr.Internal("Prihlásenie zlyhalo.", err), back)
		return
	}
	logging.Ctx(ctx).Info().Int64("user_id", uid).Msg("user registered")
	redirect(w, r, "/profil", "success", "Vitaj, "+f.Nickname+" 👋")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	email := strings.ToLower(form(r, "email"))
	pass := r.FormValue("heslo")
	back := "/?zobraz_formular=prihlasenie"
	if next := nextParam(form(r, "next")); next != "" {
		back += "&next=" + url.QueryEscape(next)
	}

	var u models.User
	err := h.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE email = ?`, email)
	if err != nil && !isNoRows(err) {
		h.fail(w, r, apperr.Internal("Prihlásenie zlyhalo.", err), back)
		return
	}
	if err != nil || u.IsDeleted || !u.Active || !auth.CheckPassword(pass, u.PasswordHash) {
		redirect(w, r, back, "danger", "Nesprávne prihlasovacie údaje.")
		return
	}
	if u.ErasePending() {
		redirect(w, r, back, "warning", "Účet má aktívnu žiadosť o vymazanie. Skontroluj e-mail a potvrď alebo zruš žiadosť (platí 24 h).")
		return
	}
	if err := h.sessions.Create(r.Context(), w, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Prihlásenie zlyhalo.", err), back)
		return
	}
	target := "/profil"
	if next := nextParam(form(r, "next")); next != "" {
		target = next
	}
	redirect(w, r, target, "success", "Vitaj späť, "+u.Username+" 👋")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(w, r)
	redirect(w, r, "/", "info", "Bol si odhlásený.")
}

// -------- profile

// memberGroup returns the first group userID belongs to, or nil.
func (h *Handler) memberGroup(r *http.Request, userID int64) (*models.Group, error) {
	var g models.Group
	err := h.db.GetContext(r.Context(), &g, `SELECT g.*, u.username AS founder_name
		FROM groups g JOIN group_members m ON m.group_id = g.id JOIN users u ON u.id = g.founder_id
		WHERE m.user_id = ? ORDER BY g.id LIMIT 1`, userID)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (h *Handler) profileData(r *http.Request, u *models.User) (map[string]any, error) {
	ctx := r.Context()
	var photos []models.Photo
	if err := h.db.SelectContext(ctx, &photos, `SELECT * FROM user_photos WHERE owner_id = ? ORDER BY id`, u.ID); err != nil {
		return nil, err
	}
	var videos []models.Video
	if err := h.db.SelectContext(ctx, &videos, `SELECT * FROM user_videos WHERE owner_id = ? ORDER BY id`, u.ID); err != nil {
		return nil, err
	}
	g, err := h.memberGroup(r, u.ID)
	if err != nil {
		return nil, err
	}
	var groupPhotos []models.Photo
	if g != nil {
		if err := h.db.SelectContext(ctx, &groupPhotos, `SELECT * FROM group_photos WHERE owner_id = ? ORDER BY id`, g.ID); err != nil {
			return nil, err
		}
	}
	view, err := h.ratings.Summary(ctx, u.ID, currentUser(r))
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Msg("rating summary unavailable")
	}
	return map[string]any{
		"Profile":     u,
		"Photos":      photos,
		"Videos":      videos,
		"Group":       g,
		"GroupPhotos": groupPhotos,
		"Rating":      view,
		"PhotoQuota":  features.Quota(currentUser(r), features.GalleryMaxPhotos, 3),
	}, nil
}

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	data, err := h.profileData(r, u)
	if err != nil {
		h.fail(w, r, apperr.Internal("Profil sa nepodarilo načítať.", err), "/")
		return
	}
	data["Title"] = "Môj profil"
	data["Own"] = true
	h.render(w, r, http.StatusOK, "profile", data)
}

type profileForm struct {
	Nickname   string `validate:"required,min=2,max=50" msg:"Prezývka musí mať 2 až 50 znakov."`
	Email      string `validate:"required,email,max=120" msg:"Zadaj platný e-mail."`
	FirstName  string `validate:"max=100"`
	LastName   string `validate:"max=100"`
	Town       string `validate:"max=100"`
	Instrument string `validate:"max=100"`
	Secondary  string `validate:"max=100"`
	Bio        string `validate:"max=5000" msg:"Bio je príliš dlhé."`
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	f := profileForm{
		Nickname:   form(r, "prezyvka"),
		Email:      strings.ToLower(form(r, "email")),
		FirstName:  form(r, "meno"),
		LastName:   form(r, "priezvisko"),
		Town:       form(r, "obec"),
		Instrument: form(r, "instrument"),
		Secondary:  form(r, "doplnkovy_nastroj"),
		Bio:        form(r, "bio"),
	}
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, "/profil")
		return
	}
	_, err := h.db.ExecContext(r.Context(), `UPDATE users SET username = ?, email = ?, first_name = ?, last_name = ?,
		town = ?, instrument = ?, secondary_instrument = ?, bio = ? WHERE id = ?`,
		f.Nickname, f.Email, f.FirstName, f.LastName, f.Town, f.Instrument, f.Secondary, f.Bio, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Conflict("Prezývka alebo e-mail je už obsadený."), "/profil")
		return
	}
	redirect(w, r, "/profil", "success", "Profil bol úspešne upravený.")
}

func (h *Handler) UploadProfilePhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	_, fh, err := r.FormFile("profil_fotka")
	if err != nil {
		redirect(w, r, "/profil", "danger", "Nebol vybraný žiadny súbor.")
		return
	}
	name, err := h.files.Save(uploads.Profiles, strconv.FormatInt(u.ID, 10), fh)
	if err != nil {
		redirect(w, r, "/profil", "danger", "Nepovolený formát súboru.")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE users SET profile_photo = ? WHERE id = ?`, name, u.ID); err != nil {
		h.files.Remove(uploads.Profiles, name)
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo uložiť.", err), "/profil")
		return
	}
	h.files.Remove(uploads.Profiles, u.ProfilePhoto)
	redirect(w, r, "/profil", "success", "Profilová fotka bola úspešne nahraná.")
}

func (h *Handler) RemoveProfilePhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if u.ProfilePhoto != "" {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE users SET profile_photo = '' WHERE id = ?`, u.ID); err != nil {
			h.fail(w, r, apperr.Internal("Fotku sa nepodarilo odstrániť.", err), "/profil")
			return
		}
		h.files.Remove(uploads.Profiles, u.ProfilePhoto)
	}
	redirect(w, r, "/profil", "success", "Profilová fotka bola odstránená.")
}

func (h *Handler) AddGalleryPhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	_, fh, err := r.FormFile("foto")
	if err != nil {
		redirect(w, r, "/profil", "danger", "Nebol vybraný žiadny súbor.")
		return
	}
	var count int
	if err := h.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM user_photos WHERE owner_id = ?`, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Galériu sa nepodarilo načítať.", err), "/profil")
		return
	}
	if quota := features.Quota(u, features.GalleryMaxPhotos, 3); count >= quota {
		redirect(w, r, "/profil", "warning", "Dosiahol si limit "+strconv.Itoa(quota)+" fotiek v galérii pre tvoj plán.")
		return
	}
	name, err := h.files.Save(uploads.UserGallery, strconv.FormatInt(u.ID, 10), fh)
	if err != nil {
		redirect(w, r, "/profil", "danger", "Nepovolený formát súboru.")
		return
	}
	if _, err := h.db.ExecContext(ctx, `INSERT INTO user_photos(file_name, owner_id) VALUES(?,?)`, name, u.ID); err != nil {
		h.files.Remove(uploads.UserGallery, name)
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo uložiť.", err), "/profil")
		return
	}
	redirect(w, r, "/profil", "success", "Fotka bola pridaná do galérie.")
}

func (h *Handler) DeleteGalleryPhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var p models.Photo
	err := h.db.GetContext(r.Context(), &p, `SELECT * FROM user_photos WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo načítať.", err), "/profil")
		return
	}
	if p.OwnerID != u.ID {
		h.Forbidden(w, r)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM user_photos WHERE id = ?`, p.ID); err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo zmazať.", err), "/profil")
		return
	}
	h.files.Remove(uploads.UserGallery, p.FileName)
	redirect(w, r, "/profil", "success", "Fotka bola zmazaná.")
}

type videoForm struct {
	URL         string `validate:"required,youtube" msg:"Zadaj platný odkaz na YouTube video."`
	Description string `validate:"max=255" msg:"Popis je príliš dlhý."`
}

func (h *Handler) AddVideo(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	f := videoForm{URL: form(r, "youtube_url"), Description: form(r, "popis")}
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, "/profil")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `INSERT INTO user_videos(youtube_url, description, owner_id) VALUES(?,?,?)`,
		f.URL, f.Description, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo pridať.", err), "/profil")
		return
	}
	redirect(w, r, "/profil", "success", "Video bolo pridané.")
}

func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var v models.Video
	err := h.db.GetContext(r.Context(), &v, `SELECT * FROM user_videos WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo načítať.", err), "/profil")
		return
	}
	if v.OwnerID != u.ID {
		h.Forbidden(w, r)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM user_videos WHERE id = ?`, v.ID); err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo zmazať.", err), "/profil")
		return
	}
	redirect(w, r, "/profil", "success", "Video bolo zmazané.")
}

// PublicProfile shows another member. Private accounts are visible to
// themselves and to staff only.
func (h *Handler) PublicProfile(w http.ResponseWriter, r *http.Request) {
	var u models.User
	err := h.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE id = ? AND is_deleted = 0`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Profil sa nepodarilo načítať.", err), "/")
		return
	}
	viewer := currentUser(r)
	own := viewer != nil && viewer.ID == u.ID
	if !u.PublicAccount && !own && !h.authz.IsStaff(viewer) {
		h.render(w, r, http.StatusOK, "profile_private", map[string]any{"Title": u.Username, "Profile": &u})
		return
	}
	data, err := h.profileData(r, &u)
	if err != nil {
		h.fail(w, r, apperr.Internal("Profil sa nepodarilo načítať.", err), "/")
		return
	}
	data["Title"] = u.Username
	data["Own"] = own
	h.render(w, r, http.StatusOK, "profile_public", data)
}
