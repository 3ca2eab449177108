package handlers

import (
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"muzikuj/internal/features"
	"muzikuj/internal/logging"
	"muzikuj/internal/metrics"
)

// WithRecover recovers from panics, logs them and renders the 500 page
// instead of crashing the server.
func (h *Handler) WithRecover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Ctx(r.Context()).Error().
					Interface("panic", rec).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Bytes("stack", debug.Stack()).
					Msg("recovered panic")
				h.render(w, r, http.StatusInternalServerError, "error", map[string]any{"Title": "Chyba servera"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// RequestLogger puts a request-scoped logger into the context, logs the
// request when it finishes and records the HTTP metrics by route pattern.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logging.WithRequestID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r.WithContext(ctx))

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status/100)+"xx").Inc()
		metrics.HTTPRequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())

		ev := logging.Ctx(ctx).Debug()
		if status >= 500 {
			ev = logging.Ctx(ctx).Warn()
		}
		ev.Str("method", r.Method).Str("route", route).Int("status", status).
			Dur("elapsed", elapsed).Msg("request")
	})
}

// LoadUser resolves the session cookie once per request.
func (h *Handler) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.sessions.CurrentUser(r)
		if err != nil {
			logging.Ctx(r.Context()).Warn().Err(err).Msg("session lookup failed")
		}
		if u != nil {
			r = r.WithContext(withUser(r.Context(), u))
		}
		next.ServeHTTP(w, r)
	})
}

var bannedPrefixes = []string{"/spravy", "/inzerat", "/dopyty"}

// BlockBanned refuses writes from banned members on messaging, classifieds and requests.
func (h *Handler) BlockBanned(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := currentUser(r)
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodDelete:
			if u.IsBanned(h.now()) && hasAnyPrefix(r.URL.Path, bannedPrefixes) {
				redirect(w, r, "/profil", "danger", "Tvoj účet je dočasne zablokovaný: "+u.BannedReason)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// loginURL is the login form; GET requests come back to where they started.
func loginURL(r *http.Request) string {
	target := "/?zobraz_formular=prihlasenie"
	if r.Method == http.MethodGet {
		target += "&next=" + url.QueryEscape(r.URL.RequestURI())
	}
	return target
}

// RequireAuth sends guests to the login form.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			redirect(w, r, loginURL(r), "warning", "Musíš byť prihlásený.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAPIAuth is RequireAuth for the JSON endpoints.
func (h *Handler) RequireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "login_required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireFeature lets through users whose plan includes code and flashes an
// upsell for everyone else.
func (h *Handler) RequireFeature(code, upsell string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !features.Has(currentUser(r), code) {
				redirect(w, r, "/", "warning", "Táto funkcia je dostupná v pláne "+strings.ToUpper(upsell)+".")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole checks the casbin policy for obj/act and answers 403 otherwise.
func (h *Handler) RequireRole(obj, act string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := currentUser(r)
			if u == nil {
				redirect(w, r, loginURL(r), "warning", "Musíš byť prihlásený.")
				return
			}
			if !h.authz.Can(u, obj, act) {
				h.Forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
