package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/gym-gate/internal/web/handlers"
	"github.com/kozaktomas/gym-gate/internal/web/middleware"
)

func (s *Server) setupRoutes(sessionManager *middleware.SessionManager) {
	// Create handlers
	authHandler := handlers.NewAuthHandler(s.config, sessionManager)
	membersHandler := handlers.NewMembersHandler(s.config, sessionManager)
	faceHandler := handlers.NewFaceHandler(s.config, sessionManager)
	gateHandler := handlers.NewGateHandler(s.config, sessionManager, faceHandler)
	paymentsHandler := handlers.NewPaymentsHandler(s.config, sessionManager)
	statsHandler := handlers.NewStatsHandler(s.config, sessionManager)

	// Health check (no auth required)
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// API routes
	s.router.Route("/api/v1", func(r chi.Router) {
		// Auth routes
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/status", authHandler.Status)

		// All other routes require authentication
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(sessionManager))

			// Members
			r.Get("/members", membersHandler.List)
			r.Post("/members", membersHandler.Create)
			r.Get("/members/{uid}", membersHandler.Get)
			r.Put("/members/{uid}", membersHandler.Update)
			r.Get("/members/{uid}/similar", membersHandler.Similar)
			r.Get("/members/{uid}/checkins", membersHandler.Checkins)

			// Biometric enrollment
			r.Post("/members/{uid}/face", faceHandler.Enroll)
			r.Delete("/members/{uid}/face", faceHandler.Clear)
			r.Post("/members/face/validate", faceHandler.Validate)

			// Access gate
			r.Post("/verify", gateHandler.Verify)
			r.Post("/checkin", gateHandler.Checkin)

			// Payments
			r.Post("/members/{uid}/payments", paymentsHandler.Record)
			r.Get("/members/{uid}/payments", paymentsHandler.List)

			// Stats
			r.Get("/stats", statsHandler.Get)
		})
	})

	s.router.Get("/", s.serveIndex)
}

// serveIndex returns a placeholder page pointing at the API.
func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`<!DOCTYPE html>
<html>
<head>
    <title>Gym Gate</title>
    <style>
        body { font-family: system-ui, sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0; background: #1a1a2e; color: #eee; }
        .container { text-align: center; }
        h1 { color: #00d9ff; }
        p { color: #aaa; }
        a { color: #00d9ff; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Gym Gate</h1>
        <p>Membership administration API.</p>
        <p>API is available at <a href="/api/v1/health">/api/v1/health</a></p>
    </div>
</body>
</html>`))
}
