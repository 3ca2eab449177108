package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/doug-martin/goqu/v9"

	"muzikuj/internal/apperr"
	"muzikuj/internal/authz"
	"muzikuj/internal/models"
)

const (
	quickRequestCooldown = 2 * time.Minute
	quickRequestDays     = 14
	quickRequestMaxDays  = 60
)

const (
	TabPeople        = "ludia"
	TabQuickRequests = "rychly-dopyt"
	TabForum         = "forum"
)

type QuickFilter struct {
	Text   string
	CityID int64
	Mine   bool
}

func quickRequestsQuery(f QuickFilter, viewerID int64, now time.Time) *goqu.SelectDataset {
	ds := dialect.From(goqu.T("quick_requests").As("q")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("q.author_id")))).
		LeftJoin(goqu.T("cities").As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("q.city_id")))).
		Select(goqu.T("q").All(), goqu.I("u.username").As("author"),
			goqu.COALESCE(goqu.I("c.name"), "").As("city_name")).
		Where(goqu.I("q.active").Eq(1), goqu.I("q.valid_until").Gt(now))
	if f.Text != "" {
		ds = ds.Where(likeAny(f.Text, "q.text"))
	}
	if f.CityID != 0 {
		ds = ds.Where(goqu.I("q.city_id").Eq(f.CityID))
	}
	if f.Mine && viewerID != 0 {
		ds = ds.Where(goqu.I("q.author_id").Eq(viewerID))
	}
	return ds.Order(goqu.I("q.created_at").Desc(), goqu.I("q.id").Desc()).Limit(100)
}

type TopicFilter struct {
	Text       string
	CategoryID int64
	View       string // mine, replied, watching
	Sort       string // activity, newest, answers
}

func topicFilter(r *http.Request) TopicFilter {
	q := r.URL.Query()
	cat, _ := strconv.ParseInt(q.Get("kategoria"), 10, 64)
	return TopicFilter{Text: q.Get("q"), CategoryID: cat, View: q.Get("view"), Sort: q.Get("sort")}
}

func topicsQuery(f TopicFilter, viewerID int64) *goqu.SelectDataset {
	answers := dialect.From("forum_posts").
		Select(goqu.C("topic_id"), goqu.COUNT("id").As("n")).
		GroupBy("topic_id")
	ds := dialect.From(goqu.T("forum_topics").As("t")).
		Join(goqu.T("users").As("u"), goqu.On(goqu.I("u.id").Eq(goqu.I("t.author_id")))).
		Join(goqu.T("forum_categories").As("fc"), goqu.On(goqu.I("fc.id").Eq(goqu.I("t.category_id")))).
		LeftJoin(answers.As("a"), goqu.On(goqu.I("a.topic_id").Eq(goqu.I("t.id")))).
		Select(goqu.T("t").All(), goqu.I("u.username").As("author"), goqu.I("fc.name").As("category_name"),
			goqu.COALESCE(goqu.I("a.n"), 0).As("answers_count"))
	if f.Text != "" {
		ds = ds.Where(likeAny(f.Text, "t.title", "t.body"))
	}
	if f.CategoryID != 0 {
		ds = ds.Where(goqu.I("t.category_id").Eq(f.CategoryID))
	}
	if viewerID != 0 {
		switch f.View {
		case "mine":
			ds = ds.Where(goqu.I("t.author_id").Eq(viewerID))
		case "replied":
			ds = ds.Where(goqu.I("t.id").In(
				dialect.From("forum_posts").Select("topic_id").Where(goqu.C("author_id").Eq(viewerID))))
		case "watching":
			ds = ds.Where(goqu.I("t.id").In(
				dialect.From("topic_watches").Select("topic_id").Where(goqu.C("user_id").Eq(viewerID))))
		}
	}
	switch f.Sort {
	case "newest":
		ds = ds.Order(goqu.I("t.created_at").Desc(), goqu.I("t.id").Desc())
	case "answers":
		ds = ds.Order(goqu.I("answers_count").Desc(), goqu.I("t.activity_at").Desc())
	default:
		ds = ds.Order(goqu.I("t.activity_at").Desc(), goqu.I("t.id").Desc())
	}
	return ds.Limit(50)
}

func (h *Handler) watchedTopics(r *http.Request, u *models.User) (map[int64]bool, error) {
	out := map[int64]bool{}
	if u == nil {
		return out, nil
	}
	var ids []int64
	if err := h.db.SelectContext(r.Context(), &ids, `SELECT topic_id FROM topic_watches WHERE user_id = ?`, u.ID); err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// Community is the hub page; the tab query parameter picks the section.
func (h *Handler) Community(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u := currentUser(r)
	var viewerID int64
	if u != nil {
		viewerID = u.ID
	}
	q := r.URL.Query()
	tab := q.Get("tab")
	if tab == "" {
		tab = TabPeople
	}
	data := map[string]any{"Title": "Komunita", "Tab": tab}

	var err error
	switch tab {
	case TabPeople:
		var people []models.User
		err = h.db.SelectContext(ctx, &people, `SELECT * FROM users
			WHERE is_deleted = 0 AND active = 1 AND searchable = 1 ORDER BY username`)
		data["People"] = people
	case TabQuickRequests:
		cityID, _ := strconv.ParseInt(q.Get("mesto"), 10, 64)
		f := QuickFilter{Text: q.Get("q"), CityID: cityID, Mine: q.Get("view") == "mine"}
		var items []models.QuickRequest
		err = h.selectDS(ctx, &items, quickRequestsQuery(f, viewerID, h.now()))
		data["QuickRequests"], data["Filter"] = items, f
	case TabForum:
		f := topicFilter(r)
		var topics []models.ForumTopic
		if err = h.selectDS(ctx, &topics, topicsQuery(f, viewerID)); err != nil {
			break
		}
		data["Topics"], data["Filter"] = topics, f
		if sel, _ := strconv.ParseInt(q.Get("t"), 10, 64); sel != 0 {
			topic, terr := h.loadTopic(r, sel)
			if terr == nil {
				data["Selected"] = topic
				if u != nil {
					h.markTopicRead(r, u.ID, topic.ID)
				}
			}
		}
		data["Watched"], err = h.watchedTopics(r, u)
	default:
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Komunitu sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "community", data)
}

// clampDays keeps a quick request's validity within 1..60 days; zero means the default.
func clampDays(n int) int {
	switch {
	case n == 0:
		return quickRequestDays
	case n < 1:
		return 1
	case n > quickRequestMaxDays:
		return quickRequestMaxDays
	}
	return n
}

func (h *Handler) CreateQuickRequest(w http.ResponseWriter, r *http.Request) {
	back := "/komunita?tab=" + TabQuickRequests
	u := currentUser(r)
	text := form(r, "text")
	if text == "" {
		redirect(w, r, back, "warning", "Zadaj text dopytu.")
		return
	}
	if len(text) > 2000 {
		redirect(w, r, back, "warning", "Text je príliš dlhý.")
		return
	}
	ctx := r.Context()
	now := h.now()
	var recent int
	err := h.db.GetContext(ctx, &recent, `SELECT COUNT(*) FROM quick_requests WHERE author_id = ? AND created_at >= ?`,
		u.ID, now.Add(-quickRequestCooldown))
	if err != nil {
		h.fail(w, r, apperr.Internal("Dopyt sa nepodarilo uložiť.", err), back)
		return
	}
	if recent > 0 {
		h.fail(w, r, apperr.TooMany("Skús to prosím o chvíľu (antispam)."), back)
		return
	}
	days := clampDays(int(formInt(r, "platnost_dni")))
	_, err = h.db.ExecContext(ctx, `INSERT INTO quick_requests(text, city_id, author_id, created_at, valid_until, active)
		VALUES(?,?,?,?,?,1)`, text, nullInt(formInt(r, "mesto_id")), u.ID, now, now.AddDate(0, 0, days))
	if err != nil {
		h.fail(w, r, apperr.Internal("Dopyt sa nepodarilo uložiť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Dopyt bol pridaný.")
}

// CloseQuickRequest marks a quick request as handled. Author or staff only.
func (h *Handler) CloseQuickRequest(w http.ResponseWriter, r *http.Request) {
	back := "/komunita?tab=" + TabQuickRequests
	u := currentUser(r)
	var author int64
	err := h.db.GetContext(r.Context(), &author, `SELECT author_id FROM quick_requests WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Dopyt sa nepodarilo načítať.", err), back)
		return
	}
	if author != u.ID && !h.authz.Can(u, authz.ObjQuickRequest, "close") {
		h.Forbidden(w, r)
		return
	}
	if _, err := h.db.ExecContext(r.Context(), `UPDATE quick_requests SET active = 0 WHERE id = ?`, idParam(r, "id")); err != nil {
		h.fail(w, r, apperr.Internal("Dopyt sa nepodarilo uzavrieť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Dopyt bol označený ako vybavený.")
}
