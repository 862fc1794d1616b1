package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/poise/backend/internal/handler/interview"
	"github.com/zhouzirui/poise/backend/internal/handler/question"
	middlewarePkg "github.com/zhouzirui/poise/backend/internal/middleware"
	questionModel "github.com/zhouzirui/poise/backend/internal/model/question"
	interviewService "github.com/zhouzirui/poise/backend/internal/service/interview"
	"github.com/zhouzirui/poise/backend/pkg/utils"
)

// Options 汇总路由需要的依赖。Reports 可以为空。
type Options struct {
	Bank           questionModel.Bank
	Interviews     *interviewService.Service
	Reports        interview.ReportLister
	AllowedOrigins []string
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(opts.AllowedOrigins))

	r.Get("/healthz", handleHealth)

	r.Route("/api", func(api chi.Router) {
		question.New(opts.Bank).RegisterRoutes(api)
		interview.New(opts.Interviews, opts.Reports).RegisterRoutes(api)
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
