package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"muzikuj/internal/apperr"
	"muzikuj/internal/genres"
	"muzikuj/internal/logging"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
	"muzikuj/internal/validation"
)

const (
	MaxGroupPhotos = 20
	InviteValidity = 7 * 24 * time.Hour
)

// newToken returns a 32 character url-safe random token.
func newToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

type groupForm struct {
	Name        string `validate:"required,max=100" msg:"Názov skupiny je povinný."`
	Genre       string `validate:"max=100"`
	City        string `validate:"max=100"`
	Email       string `validate:"omitempty,email,max=120" msg:"Zadaj platný e-mail skupiny."`
	Web         string `validate:"omitempty,url,max=255" msg:"Web musí byť platná adresa."`
	Description string `validate:"max=5000"`
}

func readGroupForm(r *http.Request) groupForm {
	return groupForm{
		Name:        form(r, "nazov"),
		Genre:       genres.Normalize(form(r, "zaner")),
		City:        form(r, "mesto"),
		Email:       form(r, "email"),
		Web:         form(r, "web"),
		Description: form(r, "popis"),
	}
}

func (h *Handler) loadGroup(r *http.Request, id int64) (*models.Group, error) {
	var g models.Group
	err := h.db.GetContext(r.Context(), &g, `SELECT g.*, u.username AS founder_name
		FROM groups g JOIN users u ON u.id = g.founder_id WHERE g.id = ?`, id)
	if isNoRows(err) {
		return nil, apperr.NotFound("Skupina neexistuje.")
	}
	if err != nil {
		return nil, apperr.Internal("Skupinu sa nepodarilo načítať.", err)
	}
	return &g, nil
}

func (h *Handler) isMember(r *http.Request, groupID, userID int64) (bool, error) {
	var n int
	err := h.db.GetContext(r.Context(), &n, `SELECT COUNT(*) FROM group_members WHERE group_id = ? AND user_id = ?`, groupID, userID)
	return n > 0, err
}

type groupDetail struct {
	Members []models.User
	Photos  []models.Photo
	Videos  []models.Video
	Invites []models.GroupInvite
}

func (h *Handler) groupDetail(r *http.Request, g *models.Group, withInvites bool) (*groupDetail, error) {
	ctx := r.Context()
	d := &groupDetail{}
	if err := h.db.SelectContext(ctx, &d.Members, `SELECT u.* FROM users u JOIN group_members m ON m.user_id = u.id
		WHERE m.group_id = ? ORDER BY u.username`, g.ID); err != nil {
		return nil, err
	}
	if err := h.db.SelectContext(ctx, &d.Photos, `SELECT * FROM group_photos WHERE owner_id = ? ORDER BY id`, g.ID); err != nil {
		return nil, err
	}
	if err := h.db.SelectContext(ctx, &d.Videos, `SELECT * FROM group_videos WHERE owner_id = ? ORDER BY id`, g.ID); err != nil {
		return nil, err
	}
	if withInvites {
		if err := h.db.SelectContext(ctx, &d.Invites, `SELECT i.*, u.username AS invitee_name FROM group_invites i
			JOIN users u ON u.id = i.invitee_id WHERE i.group_id = ? AND i.status = 'pending'
			ORDER BY i.created_at DESC`, g.ID); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (h *Handler) MyGroup(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g, err := h.memberGroup(r, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo načítať.", err), "/profil")
		return
	}
	data := map[string]any{"Title": "Moja skupina", "Group": g, "Genres": genres.Choices, "MaxPhotos": MaxGroupPhotos}
	if g != nil {
		d, err := h.groupDetail(r, g, g.FounderID == u.ID)
		if err != nil {
			h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo načítať.", err), "/profil")
			return
		}
		data["Detail"] = d
		data["IsFounder"] = g.FounderID == u.ID
	}
	h.render(w, r, http.StatusOK, "my_group", data)
}

func (h *Handler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	f := readGroupForm(r)
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	ctx := r.Context()
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo vytvoriť.", err), "/moja-skupina")
		return
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `INSERT INTO groups(name, genre, city, email, web, description, created_at, founder_id)
		VALUES(?,?,?,?,?,?,?,?)`, f.Name, f.Genre, f.City, f.Email, f.Web, f.Description, h.now(), u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo vytvoriť.", err), "/moja-skupina")
		return
	}
	gid, _ := res.LastInsertId()
	if _, err := tx.ExecContext(ctx, `INSERT INTO group_members(group_id, user_id) VALUES(?,?)`, gid, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo vytvoriť.", err), "/moja-skupina")
		return
	}
	if err := tx.Commit(); err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo vytvoriť.", err), "/moja-skupina")
		return
	}
	redirect(w, r, "/moja-skupina", "success", "Skupina bola úspešne vytvorená ✅")
}

func (h *Handler) EditGroup(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g, err := h.memberGroup(r, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo načítať.", err), "/moja-skupina")
		return
	}
	if g == nil {
		redirect(w, r, "/moja-skupina", "danger", "Nemáš žiadnu skupinu na úpravu.")
		return
	}
	f := readGroupForm(r)
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE groups SET name = ?, genre = ?, city = ?, email = ?, web = ?, description = ?
		WHERE id = ?`, f.Name, f.Genre, f.City, f.Email, f.Web, f.Description, g.ID); err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo upraviť.", err), "/moja-skupina")
		return
	}
	redirect(w, r, "/moja-skupina", "success", "Skupina bola úspešne upravená ✅")
}

func (h *Handler) UploadGroupPhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	_, fh, err := r.FormFile("profil_fotka_skupina")
	if err != nil {
		redirect(w, r, "/moja-skupina", "danger", "Nebol vybraný žiadny súbor.")
		return
	}
	g, err := h.memberGroup(r, u.ID)
	if err != nil || g == nil {
		redirect(w, r, "/moja-skupina", "danger", "Používateľ nemá žiadnu skupinu.")
		return
	}
	name, err := h.files.Save(uploads.GroupProfile, strconv.FormatInt(g.ID, 10), fh)
	if err != nil {
		redirect(w, r, "/moja-skupina", "danger", "Nepovolený formát súboru.")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE groups SET photo = ? WHERE id = ?`, name, g.ID); err != nil {
		h.files.Remove(uploads.GroupProfile, name)
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo uložiť.", err), "/moja-skupina")
		return
	}
	h.files.Remove(uploads.GroupProfile, g.Photo)
	redirect(w, r, "/moja-skupina", "success", "Fotka kapely bola aktualizovaná.")
}

func (h *Handler) RemoveGroupPhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g, err := h.memberGroup(r, u.ID)
	if err == nil && g != nil && g.Photo != "" {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE groups SET photo = '' WHERE id = ?`, g.ID); err != nil {
			h.fail(w, r, apperr.Internal("Fotku sa nepodarilo odstrániť.", err), "/moja-skupina")
			return
		}
		h.files.Remove(uploads.GroupProfile, g.Photo)
		redirect(w, r, "/moja-skupina", "info", "Fotka kapely bola odstránená.")
		return
	}
	http.Redirect(w, r, "/moja-skupina", http.StatusSeeOther)
}

// UploadGroupGallery stores several photos at once, up to MaxGroupPhotos in total.
func (h *Handler) UploadGroupGallery(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	g, err := h.memberGroup(r, u.ID)
	if err != nil || g == nil {
		redirect(w, r, "/moja-skupina", "danger", "Nemáš priradenú žiadnu skupinu.")
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil || r.MultipartForm == nil || len(r.MultipartForm.File["fotos"]) == 0 {
		redirect(w, r, "/moja-skupina", "warning", "Nevybrali ste žiadne fotky.")
		return
	}
	var have int
	if err := h.db.GetContext(ctx, &have, `SELECT COUNT(*) FROM group_photos WHERE owner_id = ?`, g.ID); err != nil {
		h.fail(w, r, apperr.Internal("Galériu sa nepodarilo načítať.", err), "/moja-skupina")
		return
	}
	free := MaxGroupPhotos - have
	if free <= 0 {
		redirect(w, r, "/moja-skupina", "warning", "Dosiahnutý limit "+strconv.Itoa(MaxGroupPhotos)+" fotiek v galérii skupiny.")
		return
	}

	saved, skipped := 0, 0
	for _, fh := range r.MultipartForm.File["fotos"] {
		if saved >= free {
			break
		}
		name, err := h.files.Save(uploads.GroupGallery, strconv.FormatInt(g.ID, 10), fh)
		if err != nil {
			skipped++
			continue
		}
		if _, err := h.db.ExecContext(ctx, `INSERT INTO group_photos(file_name, owner_id) VALUES(?,?)`, name, g.ID); err != nil {
			h.files.Remove(uploads.GroupGallery, name)
			skipped++
			continue
		}
		saved++
	}
	switch {
	case saved > 0 && skipped == 0:
		redirect(w, r, "/moja-skupina", "success", "Nahraných "+strconv.Itoa(saved)+" fotiek.")
	case saved > 0:
		redirect(w, r, "/moja-skupina", "warning", "Nahraných "+strconv.Itoa(saved)+" fotiek, "+strconv.Itoa(skipped)+" preskočených (typ/limit/problém).")
	default:
		redirect(w, r, "/moja-skupina", "danger", "Nepodarilo sa nahrať žiadnu fotku. Skúste iné súbory.")
	}
}

func (h *Handler) DeleteGroupPhoto(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var p models.Photo
	err := h.db.GetContext(r.Context(), &p, `SELECT * FROM group_photos WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo načítať.", err), "/moja-skupina")
		return
	}
	member, err := h.isMember(r, p.OwnerID, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo zmazať.", err), "/moja-skupina")
		return
	}
	if !member {
		h.Forbidden(w, r)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM group_photos WHERE id = ?`, p.ID); err != nil {
		h.fail(w, r, apperr.Internal("Fotku sa nepodarilo zmazať.", err), "/moja-skupina")
		return
	}
	h.files.Remove(uploads.GroupGallery, p.FileName)
	redirect(w, r, "/moja-skupina", "success", "Fotka bola zmazaná.")
}

func (h *Handler) AddGroupVideo(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	g, err := h.loadGroup(r, idParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	member, err := h.isMember(r, g.ID, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo pridať.", err), "/moja-skupina")
		return
	}
	if !member {
		h.Forbidden(w, r)
		return
	}
	f := videoForm{URL: form(r, "youtube_url"), Description: form(r, "popis")}
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `INSERT INTO group_videos(youtube_url, description, owner_id) VALUES(?,?,?)`,
		f.URL, f.Description, g.ID); err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo pridať.", err), "/moja-skupina")
		return
	}
	redirect(w, r, "/moja-skupina", "success", "Video bolo pridané do skupiny.")
}

func (h *Handler) DeleteGroupVideo(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var v models.Video
	err := h.db.GetContext(r.Context(), &v, `SELECT * FROM group_videos WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo načítať.", err), "/moja-skupina")
		return
	}
	member, err := h.isMember(r, v.OwnerID, u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo zmazať.", err), "/moja-skupina")
		return
	}
	if !member {
		h.Forbidden(w, r)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `DELETE FROM group_videos WHERE id = ?`, v.ID); err != nil {
		h.fail(w, r, apperr.Internal("Video sa nepodarilo zmazať.", err), "/moja-skupina")
		return
	}
	redirect(w, r, "/moja-skupina", "success", "Video bolo zmazané.")
}

// -------- invitations

// findInvitee resolves an id, nickname or email.
func (h *Handler) findInvitee(r *http.Request, target string) (*models.User, error) {
	var u models.User
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		err := h.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE id = ? AND is_deleted = 0`, id)
		if err == nil {
			return &u, nil
		}
		if !isNoRows(err) {
			return nil, err
		}
	}
	err := h.db.GetContext(r.Context(), &u, `SELECT * FROM users WHERE (username = ? OR email = ?) AND is_deleted = 0 LIMIT 1`,
		target, strings.ToLower(target))
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Invite creates or reuses a pending invitation and flashes its link.
func (h *Handler) Invite(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	back := "/moja-skupina"
	g, err := h.loadGroup(r, idParam(r, "id"))
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	if g.FounderID != u.ID {
		h.Forbidden(w, r)
		return
	}
	target := form(r, "target")
	if target == "" {
		redirect(w, r, back, "warning", "Zadaj prezývku, email alebo ID používateľa.")
		return
	}
	invitee, err := h.findInvitee(r, target)
	if err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo vytvoriť.", err), back)
		return
	}
	if invitee == nil {
		redirect(w, r, back, "danger", "Používateľ neexistuje.")
		return
	}
	if invitee.ID == u.ID {
		redirect(w, r, back, "info", "Nemôžeš pozvať sám seba.")
		return
	}
	member, err := h.isMember(r, g.ID, invitee.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo vytvoriť.", err), back)
		return
	}
	if member {
		redirect(w, r, back, "info", "Tento používateľ je už členom skupiny.")
		return
	}

	now := h.now()
	var token string
	err = h.db.GetContext(ctx, &token, `SELECT token FROM group_invites
		WHERE group_id = ? AND invitee_id = ? AND status = 'pending' AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY id DESC LIMIT 1`, g.ID, invitee.ID, now)
	if isNoRows(err) {
		token = newToken()
		_, err = h.db.ExecContext(ctx, `INSERT INTO group_invites(token, status, created_at, expires_at, group_id, invitee_id, inviter_id)
			VALUES(?,?,?,?,?,?,?)`, token, models.InvitePending, now, now.Add(InviteValidity), g.ID, invitee.ID, u.ID)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo vytvoriť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Pozvánka vytvorená. Pošli tento link pozvanému: "+h.absURL("/pozvanka/"+token))
}

func (h *Handler) loadInvite(r *http.Request) (*models.GroupInvite, error) {
	var inv models.GroupInvite
	err := h.db.GetContext(r.Context(), &inv, `SELECT i.*, g.name AS group_name FROM group_invites i
		JOIN groups g ON g.id = i.group_id WHERE i.token = ?`, chiParam(r, "token"))
	if isNoRows(err) {
		return nil, apperr.NotFound("Pozvánka neexistuje.")
	}
	if err != nil {
		return nil, apperr.Internal("Pozvánku sa nepodarilo načítať.", err)
	}
	return &inv, nil
}

func (h *Handler) RevokeInvite(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	inv, err := h.loadInvite(r)
	if err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	g, err := h.loadGroup(r, inv.GroupID)
	if err != nil {
		h.fail(w, r, err, "/moja-skupina")
		return
	}
	if g.FounderID != u.ID && inv.InviterID != u.ID {
		h.Forbidden(w, r)
		return
	}
	if inv.Status == models.InvitePending {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE group_invites SET status = ? WHERE id = ?`, models.InviteRevoked, inv.ID); err != nil {
			h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo zrušiť.", err), "/moja-skupina")
			return
		}
		redirect(w, r, "/moja-skupina", "info", "Pozvánka bola zrušená.")
		return
	}
	http.Redirect(w, r, "/moja-skupina", http.StatusSeeOther)
}

func inviteExpired(inv *models.GroupInvite, now time.Time) bool {
	return inv.ExpiresAt.Valid && !now.Before(inv.ExpiresAt.Time)
}

// ViewInvite shows the invitation to the invited member. A pending invite past
// its expiry is marked expired first.
func (h *Handler) ViewInvite(w http.ResponseWriter, r *http.Request) {
	inv, err := h.loadInvite(r)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			h.NotFound(w, r)
			return
		}
		h.fail(w, r, err, "/")
		return
	}
	if inv.Status == models.InvitePending && inviteExpired(inv, h.now()) {
		if _, err := h.db.ExecContext(r.Context(), `UPDATE group_invites SET status = ? WHERE id = ?`, models.InviteExpired, inv.ID); err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Int64("invite_id", inv.ID).Msg("marking invite expired failed")
		} else {
			inv.Status = models.InviteExpired
		}
	}
	u := currentUser(r)
	if u == nil {
		redirect(w, r, loginURL(r), "info", "Prihlás sa, aby si mohol pozvánku prijať.")
		return
	}
	if u.ID != inv.InviteeID {
		redirect(w, r, "/profil", "danger", "Táto pozvánka patrí inému účtu. Odhlás sa a prihlás sa ako pozvaný.")
		return
	}
	h.render(w, r, http.StatusOK, "group_invite", map[string]any{"Title": "Pozvánka do skupiny", "Invite": inv})
}

func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	inv, err := h.loadInvite(r)
	if err != nil {
		h.fail(w, r, err, "/profil")
		return
	}
	if u.ID != inv.InviteeID {
		h.Forbidden(w, r)
		return
	}
	if inv.Status != models.InvitePending || inviteExpired(inv, h.now()) {
		redirect(w, r, "/profil", "danger", "Pozvánka už nie je platná.")
		return
	}
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo prijať.", err), "/profil")
		return
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO group_members(group_id, user_id) VALUES(?,?)`, inv.GroupID, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo prijať.", err), "/profil")
		return
	}
	if _, err := tx.ExecContext(ctx, `UPDATE group_invites SET status = ? WHERE id = ?`, models.InviteAccepted, inv.ID); err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo prijať.", err), "/profil")
		return
	}
	if err := tx.Commit(); err != nil {
		h.fail(w, r, apperr.Internal("Pozvánku sa nepodarilo prijať.", err), "/profil")
		return
	}
	logging.Ctx(ctx).Info().Int64("group_id", inv.GroupID).Int64("user_id", u.ID).Msg("invite accepted")
	redirect(w, r, "/moja-skupina", "success", "Pripojené do skupiny: "+inv.GroupName)
}

// -------- public listing

func groupsQuery(text, city string) *goqu.SelectDataset {
	ds := dialect.From(goqu.T("groups").As("g")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("g.founder_id")))).
		Select(goqu.T("g").All(), goqu.I("u.username").As("founder_name"))
	if text != "" {
		ds = ds.Where(likeAny(text, "g.name", "g.description"))
	}
	if city != "" {
		ds = ds.Where(goqu.I("g.city").Eq(city))
	}
	return ds.Order(goqu.I("g.name").Asc())
}

func (h *Handler) Groups(w http.ResponseWriter, r *http.Request) {
	text := strings.TrimSpace(r.URL.Query().Get("q"))
	city := strings.TrimSpace(r.URL.Query().Get("mesto"))
	var groups []models.Group
	if err := h.selectDS(r.Context(), &groups, groupsQuery(text, city)); err != nil {
		h.fail(w, r, apperr.Internal("Skupiny sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "groups", map[string]any{
		"Title":  "Skupiny",
		"Groups": groups,
		"Q":      text,
		"City":   city,
	})
}

func (h *Handler) GroupDetail(w http.ResponseWriter, r *http.Request) {
	g, err := h.loadGroup(r, idParam(r, "id"))
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			h.NotFound(w, r)
			return
		}
		h.fail(w, r, err, "/skupiny")
		return
	}
	d, err := h.groupDetail(r, g, false)
	if err != nil {
		h.fail(w, r, apperr.Internal("Skupinu sa nepodarilo načítať.", err), "/skupiny")
		return
	}
	u := currentUser(r)
	h.render(w, r, http.StatusOK, "group_detail", map[string]any{
		"Title":     g.Name,
		"Group":     g,
		"Detail":    d,
		"IsFounder": u != nil && u.ID == g.FounderID,
	})
}
