package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/BradenHooton/voice-membership/internal/auth"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
)

type LandingServiceInterface interface {
	PageData(ctx context.Context, loggedIn bool) (*services.LandingPageData, error)
	Initialize(ctx context.Context) error
}

type LandingHandler struct {
	service LandingServiceInterface
	logger  *slog.Logger
}

func NewLandingHandler(service LandingServiceInterface, logger *slog.Logger) *LandingHandler {
	return &LandingHandler{service: service, logger: logger}
}

// StatusResponse is the body of the health and initialize endpoints.
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Data handles GET /api/landing-page/data. The route runs behind the
// optional auth middleware, so the caller may be anonymous.
func (h *LandingHandler) Data(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.PageData(r.Context(), auth.GetUserFromContext(r) != nil)
	if err != nil {
		h.logger.Error("failed to load landing page", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load landing page")
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, data)
}

// Health handles GET /api/landing-page/health
func (h *LandingHandler) Health(w http.ResponseWriter, r *http.Request) {
	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{Status: "ok", Message: "Landing page service is running"})
}

// Initialize handles POST /api/landing-page/initialize
func (h *LandingHandler) Initialize(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Initialize(r.Context()); err != nil {
		h.logger.Error("failed to initialize landing page", slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusInternalServerError, StatusResponse{Status: "error", Message: err.Error()})
		return
	}
	pkghttp.WriteJSON(w, http.StatusOK, StatusResponse{Status: "success", Message: "Default landing page content initialized successfully"})
}
