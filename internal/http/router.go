package http

import (
	"net/http"

	"memotags/internal/config"
	"memotags/internal/http/handler"
	mw "memotags/internal/http/middleware"
	"memotags/internal/memo"
	"memotags/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Deps struct {
	Memos   *memo.Service
	Vocab   *memo.Vocabulary
	Log     *zap.Logger
	Metrics *metrics.Collector
}

func NewRouter(cfg config.Config, d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(d.Log.Named("http"), d.Metrics))
	r.Use(chimw.Recoverer)

	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(mw.CORS(cfg.CORSAllowedOrigins, cfg.CORSAllowCredentials))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())

	memoH := &handler.MemoHandler{Svc: d.Memos}
	memoRead := &handler.MemoReadHandler{Svc: d.Memos, Vocab: d.Vocab}

	r.Route("/memos", func(r chi.Router) {
		r.Get("/", memoRead.List)
		r.Post("/", memoH.Create)

		r.Get("/{id}", memoRead.Get)
		r.Put("/{id}", memoH.Update)
		r.Delete("/{id}", memoH.Delete)
	})

	r.Get("/tags", memoRead.Tags)

	r.Route("/category", func(r chi.Router) {
		r.Get("/", memoRead.Categories)
		r.Get("/{name}", memoRead.ByCategory)
	})

	return r
}
