package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"skillswap-backend/internal/handlers"
	"skillswap-backend/internal/middleware"
)

// New builds the route table. The returned func stops the rate limiters
// and must be called on shutdown.
func New(
	jwtAuth *middleware.JWTAuth,
	sessionHandler *handlers.SessionHandler,
	connectionHandler *handlers.ConnectionHandler,
	quizHandler *handlers.QuizHandler,
	wsHandler http.HandlerFunc,
	frontendURL string,
	log *zap.Logger,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.CORS(frontendURL))

	// Write-heavy endpoints are limited per user.
	bookingLimiter := middleware.NewRateLimiter(30, time.Minute)
	connectLimiter := middleware.NewRateLimiter(20, time.Minute)
	quizLimiter := middleware.NewRateLimiter(5, time.Minute)
	stop := func() {
		bookingLimiter.Stop()
		connectLimiter.Stop()
		quizLimiter.Stop()
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Session Routes ────
		r.Route("/sessions", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/create-slots", sessionHandler.CreateSlots)
			r.Get("/available", sessionHandler.Available)
			r.Get("/teachers", sessionHandler.Teachers)
			r.Get("/my-sessions", sessionHandler.MySessions)
			r.With(bookingLimiter.Middleware).Post("/{id}/book", sessionHandler.Book)
			r.Post("/{id}/join", sessionHandler.Join)
			r.Post("/{id}/end", sessionHandler.End)
			r.Post("/{id}/cancel", sessionHandler.Cancel)
		})

		// ──── Connection Routes ────
		r.Route("/connections", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", connectionHandler.List)
			r.With(connectLimiter.Middleware).Post("/send", connectionHandler.Send)
			r.Get("/pending", connectionHandler.Pending)
			r.Post("/{id}/respond", connectionHandler.Respond)
		})

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/peers", connectionHandler.Peers)
			r.Get("/presence/online", connectionHandler.Online)
		})

		// ──── Quiz Routes ────
		r.Route("/quizzes", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.With(quizLimiter.Middleware).Post("/generate", quizHandler.Generate)
			r.Get("/{id}", quizHandler.Get)
			r.Post("/{id}/submit", quizHandler.Submit)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHandler)
	})

	return r, stop
}
