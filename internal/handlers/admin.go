package handlers

import (
	"fmt"
	"net/http"

	"muzikuj/internal/apperr"
	"muzikuj/internal/models"
	"muzikuj/internal/uploads"
)

const queueURL = "/admin/queue"

// AdminDashboard shows moderation counters. Admins only.
func (h *Handler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.mod.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, apperr.Internal("Prehľad sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "admin_dashboard", map[string]any{"Title": "Administrácia", "Stats": d})
}

func (h *Handler) ModQueue(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = models.ReportOpen
	}
	ctx := r.Context()
	reports, err := h.mod.Queue(ctx, status)
	var held []models.Message
	if err == nil {
		held, err = h.mod.HeldMessages(ctx)
	}
	if err != nil {
		h.fail(w, r, apperr.Internal("Frontu sa nepodarilo načítať.", err), "/")
		return
	}
	h.render(w, r, http.StatusOK, "mod_queue", map[string]any{
		"Title":   "Nahlásenia",
		"Status":  status,
		"Reports": reports,
		"Held":    held,
	})
}

// modAction runs one staff action and flashes ok on success.
func (h *Handler) modAction(w http.ResponseWriter, r *http.Request, ok string, run func(actorID int64) error) {
	if err := run(currentUser(r).ID); err != nil {
		h.fail(w, r, err, queueURL)
		return
	}
	redirect(w, r, queueURL, "success", ok)
}

func (h *Handler) ResolveReport(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Nahlásenie označené ako vyriešené.", func(actor int64) error {
		return h.mod.Close(r.Context(), actor, idParam(r, "id"), models.ReportResolved, form(r, "note"))
	})
}

func (h *Handler) IgnoreReport(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Nahlásenie ignorované.", func(actor int64) error {
		return h.mod.Close(r.Context(), actor, idParam(r, "id"), models.ReportIgnored, form(r, "note"))
	})
}

func (h *Handler) HideRequest(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Dopyt skrytý.", func(actor int64) error {
		return h.mod.HideRequest(r.Context(), actor, idParam(r, "id"))
	})
}

func (h *Handler) WarnUser(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Používateľ upozornený (strike +1).", func(actor int64) error {
		return h.mod.Warn(r.Context(), actor, idParam(r, "id"))
	})
}

func (h *Handler) TempBanUser(w http.ResponseWriter, r *http.Request) {
	days := int(formInt(r, "days"))
	if days <= 0 {
		days = 7
	}
	h.modAction(w, r, fmt.Sprintf("Používateľ zabanovaný na %d dní.", days), func(actor int64) error {
		return h.mod.TempBan(r.Context(), actor, idParam(r, "id"), days, form(r, "reason"))
	})
}

func (h *Handler) PermBanUser(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Používateľ trvalo zabanovaný.", func(actor int64) error {
		return h.mod.PermBan(r.Context(), actor, idParam(r, "id"), form(r, "reason"))
	})
}

func (h *Handler) ReleaseMessage(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Správa doručená.", func(actor int64) error {
		return h.mod.ReleaseMessage(r.Context(), actor, idParam(r, "id"))
	})
}

func (h *Handler) HideHeldMessage(w http.ResponseWriter, r *http.Request) {
	h.modAction(w, r, "Správa skrytá.", func(actor int64) error {
		return h.mod.HideMessage(r.Context(), actor, idParam(r, "id"))
	})
}

func (h *Handler) AdReports(w http.ResponseWriter, r *http.Request) {
	reports, err := h.mod.AdReports(r.Context())
	if err != nil {
		h.fail(w, r, apperr.Internal("Nahlásenia reklám sa nepodarilo načítať.", err), queueURL)
		return
	}
	h.render(w, r, http.StatusOK, "ad_reports", map[string]any{"Title": "Nahlásené reklamy", "Reports": reports})
}

func (h *Handler) HandleAdReport(w http.ResponseWriter, r *http.Request) {
	back := "/admin/reklamy/nahlasenia"
	err := h.mod.HandleAdReport(r.Context(), currentUser(r).ID, idParam(r, "id"), chiParam(r, "action"), func(name string) {
		h.files.Remove(uploads.Ads, name)
	})
	if err != nil {
		h.fail(w, r, err, back)
		return
	}
	redirect(w, r, back, "success", "Nahlásenie spracované.")
}
