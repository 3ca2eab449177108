package handlers

import (
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"muzikuj/internal/authz"
	"muzikuj/internal/features"
)

// Routes builds the application router. static serves /static; hooks run after
// the user is loaded and before any handler, housekeeping being the usual one.
func (h *Handler) Routes(static fs.FS, hooks ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(h.WithRecover)
	r.Use(h.LoadUser)
	for _, hook := range hooks {
		r.Use(hook)
	}
	r.Use(h.BlockBanned)

	r.NotFound(h.NotFound)
	r.Handle("/metrics", promhttp.Handler())
	if static != nil {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))
	}
	if h.files != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", http.FileServer(filesOnly{http.Dir(h.files.Root())})))
	}

	authLimit := httprate.LimitByIP(20, time.Minute)

	r.Get("/", h.Index)
	r.With(authLimit).Post("/login", h.Login)
	r.With(authLimit).Post("/register", h.Register)
	r.Get("/logout", h.Logout)
	r.Post("/logout", h.Logout)

	r.Get("/uzivatel/{id}", h.PublicProfile)
	r.Get("/bazar", h.Bazaar)
	r.Get("/inzerat/{id}", h.Classified)
	r.Get("/skupiny", h.Groups)
	r.Get("/skupiny/{id}", h.GroupDetail)
	r.Get("/dopyty/pridat", h.NewRequestForm)
	r.Post("/dopyty", h.CreateRequest)
	r.With(h.RequireFeature(features.DopytyView, "pro")).Get("/dopyty", h.Requests)
	r.Get("/komunita", h.Community)
	r.Get("/komunita/forum", h.ForumIndex)
	r.Get("/komunita/forum/tema/{id}", h.ForumTopic)
	// Guests are sent to log in and come back.
	r.Get("/pozvanka/{token}", h.ViewInvite)

	r.Route("/nastavenia", func(r chi.Router) {
		// Erase links arrive by email after the session was ended.
		r.Get("/vymazat/{token}", h.EraseConfirm)
		r.Post("/vymazat/{token}", h.Erase)
		r.Get("/vymazat-zrusit/{token}", h.EraseCancel)
		r.Post("/vzhlad", h.Appearance)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/", h.Settings)
			r.Post("/ucet", h.Account)
			r.Post("/sukromie", h.Privacy)
			r.Post("/sledovanie", h.Following)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/profil", h.Profile)
		r.Post("/profil", h.UpdateProfile)
		r.Post("/profil/foto", h.UploadProfilePhoto)
		r.Post("/profil/foto/zmaz", h.RemoveProfilePhoto)
		r.Post("/profil/galeria", h.AddGalleryPhoto)
		r.Post("/profil/galeria/{id}/zmaz", h.DeleteGalleryPhoto)
		r.Post("/profil/video", h.AddVideo)
		r.Post("/profil/video/{id}/zmaz", h.DeleteVideo)

		r.Get("/pridaj-inzerat", h.NewClassifiedForm)
		r.With(h.RequireRole(authz.ObjClassified, "create")).Post("/inzerat", h.CreateClassified)
		r.Post("/inzerat/{id}/zmaz", h.DeleteClassified)
		r.Get("/moj-bazar", h.MyBazaar)

		r.Get("/moja-skupina", h.MyGroup)
		r.Post("/moja-skupina", h.CreateGroup)
		r.Post("/moja-skupina/upravit", h.EditGroup)
		r.Post("/moja-skupina/foto", h.UploadGroupPhoto)
		r.Post("/moja-skupina/foto/zmaz", h.RemoveGroupPhoto)
		r.Post("/moja-skupina/galeria", h.UploadGroupGallery)
		r.Post("/moja-skupina/galeria/{id}/zmaz", h.DeleteGroupPhoto)
		r.Post("/skupiny/{id}/video", h.AddGroupVideo)
		r.Post("/skupiny/video/{id}/zmaz", h.DeleteGroupVideo)
		r.Post("/skupiny/{id}/pozvi", h.Invite)
		r.Post("/pozvanka/{token}/zrus", h.RevokeInvite)
		r.Post("/pozvanka/{token}/prijat", h.AcceptInvite)

		r.Get("/kalendar", h.Calendar)

		r.With(h.RequireRole(authz.ObjQuickRequest, "create")).Post("/komunita/dopyt", h.CreateQuickRequest)
		r.Post("/komunita/dopyt/{id}/zavriet", h.CloseQuickRequest)
		r.With(h.RequireRole(authz.ObjForum, "post")).Post("/komunita/forum/nova", h.CreateTopic)
		r.With(h.RequireRole(authz.ObjForum, "post")).Post("/komunita/forum/tema/{id}/odpoved", h.Reply)
		r.Post("/komunita/forum/tema/{id}/watch", h.ToggleWatch)
		r.Post("/komunita/forum/odpoved/{id}/best", h.MarkBest)

		r.Get("/spravy", h.Inbox)
		r.Get("/spravy/napisat", h.Compose)
		r.With(h.RequireRole(authz.ObjMessage, "send")).Post("/spravy/odoslat", h.SendMessage)
		r.Post("/spravy/{id}/zmaz", h.DeleteMessage)
		r.With(h.RequireRole(authz.ObjReport, "create")).Post("/report", h.Report)
	})

	r.Route("/podujatia", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.Use(h.publisherOnly(authz.ObjEvent, "Podujatia môžu pridávať iba firemné účty (IČO)."))
		r.Get("/moje", h.MyEvents)
		r.Post("/vytvor", h.CreateEvent)
		r.Get("/{id}/edit", h.EditEvent)
		r.Post("/{id}/update", h.UpdateEvent)
		r.Post("/{id}/upload_foto", h.UploadEventPhoto)
		r.Post("/{id}/zmaz_foto", h.RemoveEventPhoto)
		r.Post("/{id}/zmaz", h.DeleteEvent)
	})

	r.Route("/reklamy", func(r chi.Router) {
		r.Use(h.RequireAuth)
		r.With(h.RequireRole(authz.ObjReport, "create")).Post("/{id}/nahlasit", h.ReportAd)
		r.Group(func(r chi.Router) {
			r.Use(h.publisherOnly(authz.ObjAd, "Reklamy môžu pridávať iba firemné účty (IČO)."))
			r.Get("/moje", h.MyAds)
			r.Post("/vytvor", h.CreateAd)
			r.Get("/{id}/edit", h.EditAd)
			r.Post("/{id}/edit", h.UpdateAd)
			r.Post("/{id}/upload_foto", h.UploadAdPhoto)
			r.Post("/{id}/zmaz_foto", h.RemoveAdPhoto)
			r.Post("/{id}/zmaz", h.DeleteAd)
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.RequireRole(authz.ObjModeration, "manage"))
		r.With(h.RequireRole(authz.ObjDashboard, "view")).Get("/", h.AdminDashboard)
		r.Get("/queue", h.ModQueue)
		r.Post("/report/{id}/resolve", h.ResolveReport)
		r.Post("/report/{id}/ignore", h.IgnoreReport)
		r.Post("/dopyt/{id}/skryt", h.HideRequest)
		r.Post("/user/{id}/warn", h.WarnUser)
		r.Post("/user/{id}/tempban", h.TempBanUser)
		r.Post("/user/{id}/permban", h.PermBanUser)
		r.Post("/sprava/{id}/uvolnit", h.ReleaseMessage)
		r.Post("/sprava/{id}/skryt", h.HideHeldMessage)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireRole(authz.ObjAdReport, "handle"))
			r.Get("/reklamy/nahlasenia", h.AdReports)
			r.Post("/reklamy/report/{id}/{action}", h.HandleAdReport)
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/ratings", func(r chi.Router) {
			r.Use(httprate.LimitByIP(60, time.Minute))
			r.Get("/summary", h.RatingSummary)
			r.With(h.RequireAPIAuth).Post("/rate", h.Rate)
			r.With(h.RequireAPIAuth).Post("/remove", h.RemoveRating)
		})
		r.Get("/kalendar/udalosti", h.CalendarFeed)
		r.Group(func(r chi.Router) {
			r.Use(h.RequireAPIAuth)
			r.Get("/forum/notifikacie", h.ForumNotifications)
			r.Post("/forum/notifikacie/precitane", h.MarkNotificationsRead)
			r.Post("/kalendar/udalost", h.SaveCalendarEvent)
			r.Get("/kalendar/den/{date}", h.CalendarDay)
			r.Get("/kalendar/udalost/{id}", h.LoadCalendarEvent)
			r.Delete("/kalendar/udalost/{id}", h.DeleteCalendarEvent)
		})
	})

	return r
}

// filesOnly hides directories so upload folders cannot be listed.
type filesOnly struct {
	root http.FileSystem
}

func (f filesOnly) Open(name string) (http.File, error) {
	file, err := f.root.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		return nil, fs.ErrNotExist
	}
	return file, nil
}
