package handlers

import (
	"io"
	"net/http"
	"strconv"

	"muzikuj/internal/apperr"
	"muzikuj/internal/ratings"
)

func summaryJSON(s ratings.Summary) map[string]any {
	return map[string]any{"count": s.Count, "avg": s.Avg, "bayes": s.Bayes, "histogram": s.Histogram}
}

func readBody(r *http.Request) []byte {
	b, _ := io.ReadAll(io.LimitReader(r.Body, 64<<10))
	return b
}

// RatingSummary is public; logged-in viewers also get their own rating.
func (h *Handler) RatingSummary(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "missing user_id"})
		return
	}
	v, err := h.ratings.Summary(r.Context(), id, currentUser(r))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	in, err := ratings.ParseRateInput(readBody(r))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	yours, sum, err := h.ratings.Rate(r.Context(), currentUser(r), in)
	if err != nil {
		switch apperr.CodeOf(err) {
		case "not_allowed":
			writeJSON(w, http.StatusForbidden, map[string]any{"error": "not_allowed", "reason": apperr.MessageOf(err, "")})
		case "note_required":
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "note_required", "min_len": ratings.MinReasonLen})
		default:
			jsonError(w, r, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":          true,
		"ratee_id":    in.RateeID,
		"your_rating": yours,
		"summary":     summaryJSON(sum),
	})
}

// RemoveRating is idempotent; removing nothing still answers ok.
func (h *Handler) RemoveRating(w http.ResponseWriter, r *http.Request) {
	id, err := ratings.ParseRateeID(readBody(r))
	if err != nil {
		jsonError(w, r, err)
		return
	}
	sum, err := h.ratings.Remove(r.Context(), currentUser(r), id)
	if err != nil {
		jsonError(w, r, err)
		return
	}
	out := map[string]any{"ok": true}
	if sum != nil {
		out["summary"] = summaryJSON(*sum)
	}
	writeJSON(w, http.StatusOK, out)
}
