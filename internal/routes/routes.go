package routes

import (
	"log/slog"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/handlers"
	"github.com/BradenHooton/voice-membership/internal/middleware"
	"github.com/BradenHooton/voice-membership/internal/models"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-chi/chi/v5"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Registration *handlers.RegistrationHandler
	Profile      *handlers.ProfileHandler
	Membership   *handlers.MembershipHandler
	Password     *handlers.PasswordHandler
	Admin        *handlers.AdminHandler
	Landing      *handlers.LandingHandler
}

// Security holds what the auth, CSRF and rate limit middleware need.
type Security struct {
	TokenManager *auth.TokenManager
	Revocations  auth.TokenRevocationChecker
	Users        auth.UserRepository
	Cookies      auth.CookieConfig
	IPConfig     *pkghttp.IPConfig
	Logger       *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, h Handlers, sec Security) {
	requireAuth := auth.Middleware(sec.TokenManager, sec.Revocations)
	optionalAuth := auth.OptionalMiddleware(sec.TokenManager, sec.Revocations)
	requireAdmin := auth.RequireRole(sec.Users, models.RoleAdmin)

	limit := func(cfg middleware.RateLimitConfig) func(chi.Router) chi.Router {
		return func(r chi.Router) chi.Router {
			return r.With(middleware.RateLimitByIP(cfg, sec.IPConfig))
		}
	}
	loginLimit := limit(middleware.LoginRateLimit())
	resetLimit := limit(middleware.PasswordResetRateLimit())
	registrationLimit := limit(middleware.RegistrationRateLimit())

	router.Group(func(r chi.Router) {
		r.Use(middleware.EnsureCSRFCookie(sec.Cookies, sec.Logger))
		r.Use(middleware.CSRFProtection(sec.Logger))

		// Landing page
		r.With(optionalAuth).Get("/api/landing-page/data", h.Landing.Data)
		r.Get("/api/landing-page/health", h.Landing.Health)
		r.With(requireAuth, requireAdmin).Post("/api/landing-page/initialize", h.Landing.Initialize)

		// Session
		r.Get("/login", h.Auth.LoginPage)
		loginLimit(r).Post("/login", h.Auth.Login)
		r.With(optionalAuth).Post("/logout", h.Auth.Logout)
		loginLimit(r).Post("/auth/refresh", h.Auth.Refresh)

		// Registration wizard
		r.Route("/register", func(r chi.Router) {
			r.Get("/step1", h.Registration.ShowUserDetails)
			registrationLimit(r).Post("/step1", h.Registration.SubmitUserDetails)
			r.Get("/step2", h.Registration.ShowChildren)
			r.Post("/step2", h.Registration.SubmitChildren)
			r.Get("/step3", h.Registration.ShowMemberships)
			r.Post("/step3", h.Registration.SelectMembership)
			r.Get("/step4", h.Registration.ShowCart)
			r.Post("/step4", h.Registration.ConfirmCart)
			r.Get("/checkout", h.Registration.ShowCheckout)
			registrationLimit(r).Post("/checkout", h.Registration.Checkout)
		})

		// Password reset
		resetLimit(r).Post("/forgot-password", h.Password.ForgotPassword)
		r.Get("/reset-password", h.Password.ResetPasswordPage)
		resetLimit(r).Post("/reset-password", h.Password.ResetPassword)

		// Member area
		r.Route("/profile", func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/", h.Profile.GetProfile)
			r.Post("/edit", h.Profile.UpdateProfile)
			r.Post("/children", h.Profile.AddChild)
			r.Post("/children/{childID}", h.Profile.UpdateChild)
			r.Post("/children/{childID}/delete", h.Profile.DeleteChild)

			r.Get("/upgrade-membership", h.Membership.UpgradeOptions)
			r.Post("/upgrade-membership/select", h.Membership.SelectUpgrade)
			r.Post("/upgrade-membership/checkout", h.Membership.CompleteUpgrade)
			r.Get("/membership/cancel", h.Membership.CancelPage)
			r.Post("/membership/cancel", h.Membership.Cancel)
		})

		// Admin-only routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAuth, requireAdmin)

			r.Get("/dashboard", h.Admin.Dashboard)
			r.Get("/user/{id}", h.Admin.GetUserDetails)
			r.Post("/user/{id}/unlock", h.Admin.UnlockUser)
			r.Get("/export-users", h.Admin.ExportUsers)
		})
	})
}
