package server

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sakif/codeshare/internal/auth"
	"github.com/sakif/codeshare/internal/captcha"
	"github.com/sakif/codeshare/internal/handler"
	"github.com/sakif/codeshare/internal/middleware"
	"github.com/sakif/codeshare/internal/model"
)

// setupRoutes configures all middleware and route handlers.
//
// ROUTE MAP:
//
//	GET  /healthz                      → liveness probe
//	GET  /ws                           → WebSocket (presence, notification pushes)
//	     /api/auth/*  (also /api/user) → session, OTP, social login
//	     /api/posts/*                  → feed, likes, comments, sandbox runs
//	     /api/notifications/*          → inbox
//	     /api/admin/*                  → staff console
//
// Everything under /api shares one 100/15min limiter. signup, login and
// social-auth additionally share a 5/15min limiter across both auth mounts.
func (s *Server) setupRoutes(verifier captcha.Verifier, providers []*auth.OAuthProvider) {
	// === Global Middleware ===
	// Recoverer sits outside Logger. A panicking request gets no access-log
	// line; Recoverer logs it with the stack instead.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Recoverer(s.logger))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.cfg.ClientURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	s.router.NotFound(handler.HandleNotFound)
	s.router.MethodNotAllowed(handler.HandleMethodNotAllowed)

	rs := handler.NewResponder(s.logger, !s.cfg.IsProduction())
	requireAuth := auth.RequireAuth(s.tokens, s.store, s.logger)
	staff := auth.RequireRole(model.RoleAdmin, model.RoleModerator)
	adminOnly := auth.RequireRole(model.RoleAdmin)

	authHandler := handler.NewAuthHandler(s.auth, verifier, handler.AuthHandlerConfig{
		ClientURL:     s.cfg.ClientURL,
		SecureCookies: s.cfg.IsProduction(),
		Providers:     providers,
	}, rs, s.logger)
	postHandler := handler.NewPostHandler(s.posts, rs, s.logger)
	executeHandler := handler.NewExecuteHandler(s.posts, rs, s.logger)
	notificationHandler := handler.NewNotificationHandler(s.notifications, rs, s.logger)
	adminHandler := handler.NewAdminHandler(s.admin, rs, s.logger)
	wsHandler := handler.NewWSHandler(s.hub, s.cfg.ClientURL, s.logger)

	s.router.Get("/healthz", handler.HandleHealth)
	s.router.With(auth.OptionalAuth(s.tokens, s.store)).Get("/ws", wsHandler.HandleUpgrade)

	authLimiter := middleware.AuthRateLimiter()
	authRoutes := func(r chi.Router) {
		r.With(authLimiter.Handler).Post("/signup", authHandler.HandleSignup)
		r.With(authLimiter.Handler).Post("/login", authHandler.HandleLogin)
		r.With(authLimiter.Handler).Post("/social-auth", authHandler.HandleSocialAuth)
		r.Post("/logout", authHandler.HandleLogout)
		r.Post("/send-otp", authHandler.HandleSendOTP)
		r.Post("/verify-otp", authHandler.HandleVerifyOTP)
		r.Get("/oauth/{provider}/login", authHandler.HandleOAuthLogin)
		r.Get("/oauth/{provider}/callback", authHandler.HandleOAuthCallback)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/check", authHandler.HandleCheck)
			r.Put("/update-profile", authHandler.HandleUpdateProfile)
			r.Delete("/deletePosts/{postId}", authHandler.HandleDeletePost)
		})
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.APIRateLimiter().Handler)

		r.Route("/auth", authRoutes)
		r.Route("/user", authRoutes)

		r.Route("/posts", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/users", postHandler.HandleSidebarUsers)
			r.Get("/", postHandler.HandleList)
			r.Post("/", postHandler.HandleCreate)
			r.Post("/send", postHandler.HandleCreate)
			r.Post("/{id}/like", postHandler.HandleToggleLike)
			r.Post("/{id}/comments", postHandler.HandleAddComment)
			r.Delete("/{postId}/comments/{commentId}", postHandler.HandleDeleteComment)
			r.Post("/{id}/run", executeHandler.HandleRun)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", notificationHandler.HandleList)
			r.Patch("/mark-all-read", notificationHandler.HandleMarkAllRead)
			r.With(staff).Post("/send/{userId}", notificationHandler.HandleSend)
			r.Patch("/{id}/read", notificationHandler.HandleMarkRead)
			r.Delete("/delete/{id}", notificationHandler.HandleDelete)
			r.Delete("/{id}", notificationHandler.HandleDelete)
			r.Get("/{userId}", notificationHandler.HandleList)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth)

			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Get("/dashboard", adminHandler.HandleDashboard)
				r.Put("/users/{userId}", adminHandler.HandleUpdateUser)
				r.Delete("/users/{userId}", adminHandler.HandleDeleteUser)
				r.Get("/settings", adminHandler.HandleSettings)
				r.Get("/system", adminHandler.HandleSystem)
			})

			r.Group(func(r chi.Router) {
				r.Use(staff)
				r.Get("/users", adminHandler.HandleUsers)
				r.Get("/posts", adminHandler.HandlePosts)
				r.Delete("/posts/{postId}", adminHandler.HandleDeletePost)
				r.Post("/send-notification", notificationHandler.HandleSend)
				r.Get("/notifications", notificationHandler.HandleList)
			})
		})
	})
}
