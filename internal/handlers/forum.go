package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	json "github.com/goccy/go-json"

	"muzikuj/internal/apperr"
	"muzikuj/internal/authz"
	"muzikuj/internal/logging"
	"muzikuj/internal/models"
)

const forumBase = "/komunita/forum"

func topicURL(id int64) string { return fmt.Sprintf("%s/tema/%d", forumBase, id) }

func (h *Handler) loadTopic(r *http.Request, id int64) (*models.ForumTopic, error) {
	var t models.ForumTopic
	err := h.db.GetContext(r.Context(), &t, `SELECT t.*, u.username AS author, c.name AS category_name,
		(SELECT COUNT(*) FROM forum_posts p WHERE p.topic_id = t.id) AS answers_count
		FROM forum_topics t JOIN users u ON u.id = t.author_id JOIN forum_categories c ON c.id = t.category_id
		WHERE t.id = ?`, id)
	if isNoRows(err) {
		return nil, apperr.NotFound("Téma neexistuje.")
	}
	if err != nil {
		return nil, apperr.Internal("Tému sa nepodarilo načítať.", err)
	}
	return &t, nil
}

func (h *Handler) markTopicRead(r *http.Request, userID, topicID int64) {
	_, err := h.db.ExecContext(r.Context(), `UPDATE forum_notifications SET read_at = ?
		WHERE user_id = ? AND topic_id = ? AND read_at IS NULL`, h.now(), userID, topicID)
	if err != nil {
		logging.Ctx(r.Context()).Debug().Err(err).Int64("topic", topicID).Msg("mark notifications read failed")
	}
}

// forumPage renders the forum with the topic list and, optionally, one open topic.
func (h *Handler) forumPage(w http.ResponseWriter, r *http.Request, f TopicFilter, selected *models.ForumTopic) {
	ctx := r.Context()
	u := currentUser(r)
	var viewerID int64
	if u != nil {
		viewerID = u.ID
	}
	var topics []models.ForumTopic
	var categories []models.ForumCategory
	err := h.selectDS(ctx, &topics, topicsQuery(f, viewerID))
	if err == nil {
		err = h.db.SelectContext(ctx, &categories, `SELECT * FROM forum_categories ORDER BY name`)
	}
	var posts []models.ForumPost
	if err == nil && selected != nil {
		err = h.db.SelectContext(ctx, &posts, `SELECT p.*, u.username AS author FROM forum_posts p
			JOIN users u ON u.id = p.author_id WHERE p.topic_id = ? ORDER BY p.created_at, p.id`, selected.ID)
	}
	var watched map[int64]bool
	if err == nil {
		watched, err = h.watchedTopics(r, u)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Fórum sa nepodarilo načítať.", err), "/komunita")
		return
	}
	canAnswer := false
	if selected != nil && u != nil {
		canAnswer = selected.AuthorID == u.ID || h.authz.Can(u, authz.ObjForum, "answer")
		h.markTopicRead(r, u.ID, selected.ID)
	}
	h.render(w, r, http.StatusOK, "forum", map[string]any{
		"Title":      "Fórum",
		"Topics":     topics,
		"Categories": categories,
		"Filter":     f,
		"Selected":   selected,
		"Posts":      posts,
		"Watched":    watched,
		"CanAnswer":  canAnswer,
	})
}

func (h *Handler) ForumIndex(w http.ResponseWriter, r *http.Request) {
	f := topicFilter(r)
	var selected *models.ForumTopic
	if id := formInt(r, "t"); id != 0 {
		selected, _ = h.loadTopic(r, id)
	}
	h.forumPage(w, r, f, selected)
}

func (h *Handler) ForumTopic(w http.ResponseWriter, r *http.Request) {
	t, err := h.loadTopic(r, idParam(r, "id"))
	if apperr.KindOf(err) == apperr.KindNotFound {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, err, forumBase)
		return
	}
	h.forumPage(w, r, TopicFilter{}, t)
}

func (h *Handler) CreateTopic(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	title, body, cat := form(r, "nazov"), form(r, "body"), formInt(r, "kategoria_id")
	if title == "" || body == "" || cat == 0 {
		redirect(w, r, forumBase, "warning", "Vyplň nadpis, text aj kategóriu.")
		return
	}
	if len(title) > 200 {
		redirect(w, r, forumBase, "warning", "Nadpis je príliš dlhý.")
		return
	}
	ctx := r.Context()
	now := h.now()
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.fail(w, r, apperr.Internal("Tému sa nepodarilo vytvoriť.", err), forumBase)
		return
	}
	defer tx.Rollback()
	var exists int
	if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM forum_categories WHERE id = ?`, cat); err != nil || exists == 0 {
		redirect(w, r, forumBase, "warning", "Neznáma kategória.")
		return
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO forum_topics(title, body, author_id, category_id, created_at, activity_at)
		VALUES(?,?,?,?,?,?)`, title, body, u.ID, cat, now, now)
	if err != nil {
		h.fail(w, r, apperr.Internal("Tému sa nepodarilo vytvoriť.", err), forumBase)
		return
	}
	id, _ := res.LastInsertId()
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO topic_watches(user_id, topic_id) VALUES(?,?)`, u.ID, id); err != nil {
		h.fail(w, r, apperr.Internal("Tému sa nepodarilo vytvoriť.", err), forumBase)
		return
	}
	if err := tx.Commit(); err != nil {
		h.fail(w, r, apperr.Internal("Tému sa nepodarilo vytvoriť.", err), forumBase)
		return
	}
	redirect(w, r, topicURL(id), "success", "Téma bola vytvorená.")
}

// Reply adds a post, watches the topic for the author and notifies the other watchers.
func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	t, err := h.loadTopic(r, idParam(r, "id"))
	if apperr.KindOf(err) == apperr.KindNotFound {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, err, forumBase)
		return
	}
	back := topicURL(t.ID)
	body := form(r, "body")
	if body == "" {
		redirect(w, r, back, "warning", "Napíš odpoveď.")
		return
	}
	ctx := r.Context()
	now := h.now()
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo uložiť.", err), back)
		return
	}
	defer tx.Rollback()
	res, err := tx.ExecContext(ctx, `INSERT INTO forum_posts(body, author_id, topic_id, created_at) VALUES(?,?,?,?)`,
		body, u.ID, t.ID, now)
	if err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo uložiť.", err), back)
		return
	}
	postID, _ := res.LastInsertId()
	steps := []struct {
		query string
		args  []any
	}{
		{`UPDATE forum_topics SET activity_at = ? WHERE id = ?`, []any{now, t.ID}},
		{`INSERT OR IGNORE INTO topic_watches(user_id, topic_id) VALUES(?,?)`, []any{u.ID, t.ID}},
		{`INSERT INTO forum_notifications(user_id, topic_id, post_id, reason, created_at)
			SELECT user_id, topic_id, ?, 'reply', ? FROM topic_watches WHERE topic_id = ? AND user_id <> ?`,
			[]any{postID, now, t.ID, u.ID}},
	}
	for _, s := range steps {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo uložiť.", err), back)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo uložiť.", err), back)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("%s#post-%d", back, postID), http.StatusSeeOther)
}

// MarkBest makes a post the single best answer of its topic.
func (h *Handler) MarkBest(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	var post models.ForumPost
	err := h.db.GetContext(ctx, &post, `SELECT * FROM forum_posts WHERE id = ?`, idParam(r, "id"))
	if isNoRows(err) {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo načítať.", err), forumBase)
		return
	}
	t, err := h.loadTopic(r, post.TopicID)
	if err != nil {
		h.fail(w, r, err, forumBase)
		return
	}
	if t.AuthorID != u.ID && !h.authz.Can(u, authz.ObjForum, "answer") {
		h.Forbidden(w, r)
		return
	}
	back := topicURL(t.ID)
	tx, err := h.db.BeginTxx(ctx, nil)
	if err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo označiť.", err), back)
		return
	}
	defer tx.Rollback()
	now := h.now()
	for _, q := range []struct {
		query string
		args  []any
	}{
		{`UPDATE forum_posts SET is_answer = 0 WHERE topic_id = ? AND is_answer = 1`, []any{t.ID}},
		{`UPDATE forum_posts SET is_answer = 1 WHERE id = ?`, []any{post.ID}},
		{`UPDATE forum_topics SET activity_at = ? WHERE id = ?`, []any{now, t.ID}},
	} {
		if _, err := tx.ExecContext(ctx, q.query, q.args...); err != nil {
			h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo označiť.", err), back)
			return
		}
	}
	if err := tx.Commit(); err != nil {
		h.fail(w, r, apperr.Internal("Odpoveď sa nepodarilo označiť.", err), back)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("%s#post-%d", back, post.ID), http.StatusSeeOther)
}

func (h *Handler) ToggleWatch(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	ctx := r.Context()
	t, err := h.loadTopic(r, idParam(r, "id"))
	if apperr.KindOf(err) == apperr.KindNotFound {
		h.NotFound(w, r)
		return
	}
	if err != nil {
		h.fail(w, r, err, forumBase)
		return
	}
	back := localReferer(r, topicURL(t.ID))
	res, err := h.db.ExecContext(ctx, `DELETE FROM topic_watches WHERE user_id = ? AND topic_id = ?`, u.ID, t.ID)
	if err != nil {
		h.fail(w, r, apperr.Internal("Sledovanie sa nepodarilo zmeniť.", err), back)
		return
	}
	if n, _ := res.RowsAffected(); n > 0 {
		redirect(w, r, back, "info", "Zrušené sledovanie témy.")
		return
	}
	if _, err := h.db.ExecContext(ctx, `INSERT INTO topic_watches(user_id, topic_id) VALUES(?,?)`, u.ID, t.ID); err != nil {
		h.fail(w, r, apperr.Internal("Sledovanie sa nepodarilo zmeniť.", err), back)
		return
	}
	redirect(w, r, back, "success", "Téma pridaná do sledovaných.")
}

// localReferer returns the Referer path when it points back into the site.
func localReferer(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	if i := strings.Index(ref, "://"); i >= 0 {
		rest := ref[i+3:]
		host, path, _ := strings.Cut(rest, "/")
		if host != r.Host {
			return fallback
		}
		ref = "/" + path
	}
	if !safeLocal(ref) {
		return fallback
	}
	return ref
}

// safeLocal accepts site-relative paths only.
func safeLocal(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.HasPrefix(p, "/\\")
}

// nextParam keeps a return path only when it stays on this site.
func nextParam(p string) string {
	if !safeLocal(p) {
		return ""
	}
	return p
}

// ForumNotifications lists the newest notifications of the user as JSON.
func (h *Handler) ForumNotifications(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var items []models.ForumNotification
	err := h.db.SelectContext(r.Context(), &items, `SELECT n.*, t.title AS topic_title FROM forum_notifications n
		JOIN forum_topics t ON t.id = n.topic_id WHERE n.user_id = ?
		ORDER BY n.read_at IS NOT NULL, n.created_at DESC, n.id DESC LIMIT 30`, u.ID)
	if err != nil {
		jsonError(w, r, apperr.Internal("Notifikácie sa nepodarilo načítať.", err))
		return
	}
	type item struct {
		ID     int64  `json:"id"`
		Topic  int64  `json:"topic_id"`
		Title  string `json:"topic_title"`
		URL    string `json:"url"`
		Reason string `json:"reason"`
		At     string `json:"created_at"`
		Read   bool   `json:"read"`
	}
	out := make([]item, 0, len(items))
	unread := 0
	for _, n := range items {
		if !n.ReadAt.Valid {
			unread++
		}
		out = append(out, item{
			ID:     n.ID,
			Topic:  n.TopicID,
			Title:  n.TopicTitle,
			URL:    fmt.Sprintf("%s#post-%d", topicURL(n.TopicID), n.PostID),
			Reason: n.Reason,
			At:     n.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Read:   n.ReadAt.Valid,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out, "unread": unread})
}

// MarkNotificationsRead marks the given notification ids read, or all of
// them when the body names none.
func (h *Handler) MarkNotificationsRead(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	var in struct {
		IDs []int64 `json:"ids"`
	}
	body, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	if len(body) > 0 {
		if err := json.Unmarshal(body, &in); err != nil {
			jsonError(w, r, apperr.Validation("bad_json", "Neplatné dáta."))
			return
		}
	}
	query := `UPDATE forum_notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL`
	args := []any{h.now(), u.ID}
	if len(in.IDs) > 0 {
		query += ` AND id IN (?` + strings.Repeat(",?", len(in.IDs)-1) + `)`
		for _, id := range in.IDs {
			args = append(args, id)
		}
	}
	res, err := h.db.ExecContext(r.Context(), query, args...)
	if err != nil {
		jsonError(w, r, apperr.Internal("Notifikácie sa nepodarilo označiť.", err))
		return
	}
	n, _ := res.RowsAffected()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "marked": n})
}
