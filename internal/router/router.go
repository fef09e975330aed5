package router

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"classroom-backend/internal/handlers"
	"classroom-backend/internal/logger"
	"classroom-backend/internal/middleware"
	"classroom-backend/internal/websocket"
)

type Handlers struct {
	Classwork    *handlers.ClassworkHandler
	Check        *handlers.CheckHandler
	Presentation *handlers.PresentationHandler
	Module       *handlers.ModuleHandler
	Chatbot      *handlers.ChatbotHandler
	Jobs         *handlers.JobHandler
}

type Options struct {
	FrontendURL         string
	GenerationRateLimit int
}

func New(ctx context.Context, jwtAuth *middleware.JWTAuth, h Handlers, wsHub *websocket.Hub, log *logger.Logger, opts Options) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{opts.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Generation calls are expensive; limit them per client IP.
	generationLimiter := middleware.NewRateLimiter(ctx, opts.GenerationRateLimit, time.Minute)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/ws", wsHub.HandleWebSocket)

	r.Group(func(r chi.Router) {
		r.Use(jwtAuth.Middleware)

		// ──── Generation ────
		r.Group(func(r chi.Router) {
			r.Use(generationLimiter.Middleware)
			r.Post("/classwork", h.Classwork.Create)
			r.Post("/presentation/{email}", h.Presentation.Create)
			r.Post("/module", h.Module.Create)
			r.Post("/check", h.Check.Create)
			r.Post("/chatbot/email", h.Chatbot.Ask)
			r.Post("/jobs", h.Jobs.Create)
		})

		// ──── Classwork ────
		r.Get("/classwork", h.Classwork.List)
		r.Get("/classwork/{id}", h.Classwork.Get)
		r.Delete("/classwork/{id}", h.Classwork.Delete)

		// ──── Checked papers ────
		r.Get("/check", h.Check.List)
		r.Get("/check/{id}", h.Check.Get)
		r.Delete("/check/{id}", h.Check.Delete)

		// ──── Presentations ────
		r.Get("/presentation/{email}", h.Presentation.List)

		// ──── Course modules ────
		r.Get("/module/{email}", h.Module.List)
		r.Get("/specificModule/{id}/{email}", h.Module.Get)
		r.Patch("/specificModule/{id}/{email}", h.Module.Start)
		r.Patch("/moduleProgress/{id}/{email}/{index}", h.Module.Progress)
		r.Patch("/moduleEnd/{id}/{email}", h.Module.End)
		r.Get("/certificate/{id}/{email}", h.Module.Certificate)

		// ──── Chat assistant ────
		r.Get("/chatbot/conversations/{email}", h.Chatbot.Conversations)

		// ──── Jobs ────
		r.Get("/jobs/{id}", h.Jobs.Get)
	})

	return r
}
