package http

import (
	"net/http"

	"ideavote/internal/auth"
	"ideavote/internal/comment"
	"ideavote/internal/config"
	"ideavote/internal/http/handler"
	mw "ideavote/internal/http/middleware"
	"ideavote/internal/ratelimit"
	"ideavote/internal/realtime"
	"ideavote/internal/vote"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	JWT      *auth.JWT
	Limiter  mw.Allower
	Votes    *vote.Service
	Tallies  handler.TallyView
	Comments *comment.Service
	Notifier *comment.Notifier
	Hub      *realtime.Hub
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger)
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	voteH := &handler.VoteHandler{Svc: d.Votes, Tallies: d.Tallies}
	r.Get("/votes/{type}/{id}", voteH.Tally)

	commentH := &handler.CommentHandler{Svc: d.Comments}
	r.Get("/comments", commentH.List)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(d.JWT))

		r.With(mw.RateLimit(d.Limiter, ratelimit.ClassVote)).Post("/votes", voteH.Cast)

		r.With(mw.RateLimit(d.Limiter, ratelimit.ClassComment)).Post("/comments", commentH.Create)
		r.Put("/comments/{id}", commentH.Update)

		notifH := &handler.NotificationHandler{Notifier: d.Notifier}
		r.Get("/notifications", notifH.List)
		r.Post("/notifications/{id}/read", notifH.MarkRead)

		if d.Hub != nil {
			rt := &handler.RealtimeHandler{Hub: d.Hub}
			r.Get("/ws", rt.Subscribe)
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireModerator)
			r.Delete("/comments/{id}", commentH.Delete)
		})
	})

	return r
}
