package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/doug-martin/goqu/v9"

	"muzikuj/internal/apperr"
	"muzikuj/internal/features"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
	"muzikuj/internal/validation"
)

// MaxClassifiedPhotos caps the photos attached to one bazár listing.
const MaxClassifiedPhotos = 5

var classifiedKinds = []string{"predam", "kupim", "vymenim", "darujem"}

type classifiedForm struct {
	Kind        string  `validate:"required,oneof=predam kupim vymenim darujem" msg:"Vyber typ inzerátu."`
	Category    string  `validate:"required,max=50" msg:"Vyber kategóriu."`
	City        string  `validate:"max=100"`
	Transport   string  `validate:"max=50"`
	Price       float64 `validate:"gte=0" msg:"Cena nemôže byť záporná."`
	Description string  `validate:"required,max=5000" msg:"Popis je povinný."`
}

func (h *Handler) NewClassifiedForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "classified_new", map[string]any{
		"Title": "Pridať inzerát",
		"Kinds": classifiedKinds,
	})
}

func (h *Handler) CreateClassified(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	back := "/pridaj-inzerat"
	price, err := parsePrice(r.FormValue("cena"))
	if err != nil {
		redirect(w, r, back, "danger", "Cena musí byť číslo.")
		return
	}
	f := classifiedForm{
		Kind:        form(r, "typ"),
		Category:    form(r, "kategoria"),
		City:        form(r, "mesto"),
		Transport:   form(r, "doprava"),
		Price:       price,
		Description: form(r, "popis"),
	}
	if err := validation.Struct(&f); err != nil {
		h.fail(w, r, err, back)
		return
	}

	var count int
	if err := h.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM classifieds WHERE user_id = ?`, u.ID); err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo uložiť.", err), back)
		return
	}
	if quota := features.Quota(u, features.BazaarMaxItems, 2); count >= quota {
		redirect(w, r, "/moj-bazar", "warning", "Tvoj plán umožňuje najviac "+strconv.Itoa(quota)+" inzerátov v bazári.")
		return
	}

	var cityID *int64
	if f.City != "" {
		var id int64
		if err := h.db.GetContext(ctx, &id, `SELECT id FROM cities WHERE name = ? LIMIT 1`, f.City); err == nil {
			cityID = &id
		}
	}
	res, err := h.db.ExecContext(ctx, `INSERT INTO classifieds(kind, category, city, city_id, transport, price, description, created_at, user_id)
		VALUES(?,?,?,?,?,?,?,?,?)`,
		f.Kind, f.Category, f.City, cityID, f.Transport, f.Price, f.Description, h.now(), u.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo uložiť.", err), back)
		return
	}
	id, _ := res.LastInsertId()

	skipped := 0
	if r.MultipartForm != nil {
		for i, fh := range r.MultipartForm.File["fotky"] {
			if i >= MaxClassifiedPhotos {
				skipped++
				continue
			}
			name, err := h.files.Save(uploads.Classifieds, strconv.FormatInt(id, 10), fh)
			if err != nil {
				skipped++
				continue
			}
			if _, err := h.db.ExecContext(ctx, `INSERT INTO classified_photos(file_name, classified_id) VALUES(?,?)`, name, id); err != nil {
				h.files.Remove(uploads.Classifieds, name)
				skipped++
			}
		}
	}
	h.mod.ReportFlag(ctx, "classified", id, f.Description)

	msg := "Inzerát bol úspešne pridaný!"
	if skipped > 0 {
		msg += " " + strconv.Itoa(skipped) + " fotiek bolo preskočených."
	}
	redirect(w, r, "/moj-bazar", "success", msg)
}

func parsePrice(v string) (float64, error) {
	v = strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func (h *Handler) attachPhotos(r *http.Request, items []models.Classified) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]int64, len(items))
	byID := make(map[int64]*models.Classified, len(items))
	for i := range items {
		ids[i] = items[i].ID
		byID[items[i].ID] = &items[i]
	}
	var photos []struct {
		FileName     string `db:"file_name"`
		ClassifiedID int64  `db:"classified_id"`
	}
	ds := dialect.From("classified_photos").Select("file_name", "classified_id").
		Where(goqu.C("classified_id").In(ids)).Order(goqu.C("id").Asc())
	if err := h.selectDS(r.Context(), &photos, ds); err != nil {
		return err
	}
	for _, p := range photos {
		c := byID[p.ClassifiedID]
		c.Photos = append(c.Photos, p.FileName)
	}
	return nil
}

func (h *Handler) MyBazaar(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var items []models.Classified
	err := h.db.SelectContext(r.Context(), &items, `SELECT c.*, ? AS author FROM classifieds c
		WHERE c.user_id = ? ORDER BY c.created_at DESC, c.id DESC`, u.Username, u.ID)
	if err == nil {
		err = h.attachPhotos(r, items)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Inzeráty sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "my_bazaar", map[string]any{
		"Title": "Môj bazár",
		"Items": items,
		"Quota": features.Quota(u, features.BazaarMaxItems, 2),
	})
}

// BazaarFilter is the query string of the public bazár listing.
type BazaarFilter struct {
	Category string
	City     string
	Text     string
	PriceMin *float64
	PriceMax *float64
}

func bazaarFilter(r *http.Request) BazaarFilter {
	q := r.URL.Query()
	f := BazaarFilter{
		Category: strings.TrimSpace(q.Get("kategoria")),
		City:     strings.TrimSpace(q.Get("mesto")),
		Text:     strings.TrimSpace(q.Get("q")),
	}
	if v, err := strconv.ParseFloat(q.Get("cena_od"), 64); err == nil {
		f.PriceMin = &v
	}
	if v, err := strconv.ParseFloat(q.Get("cena_do"), 64); err == nil {
		f.PriceMax = &v
	}
	return f
}

func bazaarQuery(f BazaarFilter) *goqu.SelectDataset {
	ds := dialect.From(goqu.T("classifieds").As("c")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("c.user_id")))).
		Select(goqu.T("c").All(), goqu.I("u.username").As("author")).
		Where(goqu.I("u.is_deleted").Eq(0))
	if f.Category != "" {
		ds = ds.Where(goqu.I("c.category").Eq(f.Category))
	}
	if f.City != "" {
		ds = ds.Where(goqu.I("c.city").Eq(f.City))
	}
	if f.Text != "" {
		ds = ds.Where(likeAny(f.Text, "c.description", "c.category"))
	}
	if f.PriceMin != nil {
		ds = ds.Where(goqu.I("c.price").Gte(*f.PriceMin))
	}
	if f.PriceMax != nil {
		ds = ds.Where(goqu.I("c.price").Lte(*f.PriceMax))
	}
	return ds.Order(goqu.I("c.created_at").Desc(), goqu.I("c.id").Desc()).Limit(200)
}

func (h *Handler) Bazaar(w http.ResponseWriter, r *http.Request) {
	f := bazaarFilter(r)
	var items []models.Classified
	err := h.selectDS(r.Context(), &items, bazaarQuery(f))
	if err == nil {
		err = h.attachPhotos(r, items)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Bazár sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "bazaar", map[string]any{
		"Title":  "Bazár",
		"Items":  items,
		"Filter": f,
	})
}

func (h *Handler) Classified(w http.ResponseWriter, r *http.Request) {
	var c models.Classified
	err := h.db.GetContext(r.Context(), &c, `SELECT c.*, u.username AS author FROM classifieds c
		JOIN users u ON u.id = c.user_id WHERE c.id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	items := []models.Classified{c}
	if err == nil {
		err = h.attachPhotos(r, items)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo načítať.", err), "/bazar")
		return
	}
	h.render(w, r, http.StatusOK, "classified", map[string]any{"Title": c.Category, "Item": items[0]})
}

func (h *Handler) DeleteClassified(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	id := idParam(r, "id")
	var owner int64
	err := h.db.GetContext(ctx, &owner, `SELECT user_id FROM classifieds WHERE id = ?`, id)
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo načítať.", err), "/moj-bazar")
		return
	}
	if owner != u.ID && !h.authz.IsStaff(u) {
		h.Forbidden(w, r)
		return
	}
	var files []string
	if err := h.db.SelectContext(ctx, &files, `SELECT file_name FROM classified_photos WHERE classified_id = ?`, id); err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo zmazať.", err), "/moj-bazar")
		return
	}
	if _, err := h.db.ExecContext(ctx, `DELETE FROM classifieds WHERE id = ?`, id); err != nil {
		h.fail(w, r, apperr.Internal("Inzerát sa nepodarilo zmazať.", err), "/moj-bazar")
		return
	}
	for _, f := range files {
		h.files.Remove(uploads.Classifieds, f)
	}
	redirect(w, r, "/moj-bazar", "success", "Inzerát bol zmazaný.")
}
