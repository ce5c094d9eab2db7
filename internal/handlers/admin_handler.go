package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-chi/chi/v5"
)

// AdminServiceInterface defines the dashboard service contract.
type AdminServiceInterface interface {
	Dashboard(ctx context.Context, adminID string, f models.UserFilter) (*services.DashboardResponse, error)
	GetUserDetails(ctx context.Context, id string) (*models.UserDetails, error)
	ExportUsers(ctx context.Context, f models.UserFilter, w io.Writer) error
	UnlockUser(ctx context.Context, id string) error
}

const (
	filterDateForm = "2006-01-02"
	xlsxMediaType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// AdminHandler handles admin dashboard HTTP requests.
type AdminHandler struct {
	service AdminServiceInterface
	logger  *slog.Logger
	now     func() time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service AdminServiceInterface, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{service: service, logger: logger, now: time.Now}
}

// dashboardPage is the dashboard listing plus the filter it was built with,
// so the page can refill its search form.
type dashboardPage struct {
	*services.DashboardResponse
	Filter url.Values `json:"filter"`
}

// ParseUserFilter reads the dashboard search form. Malformed numbers and
// dates disable their criterion.
func ParseUserFilter(q url.Values) models.UserFilter {
	f := models.UserFilter{
		Address:         strings.TrimSpace(q.Get("address")),
		City:            strings.TrimSpace(q.Get("city")),
		Province:        strings.TrimSpace(q.Get("province")),
		HearingLossType: strings.TrimSpace(q.Get("hearingLossType")),
		EquipmentType:   strings.TrimSpace(q.Get("equipmentType")),
	}

	if n, err := strconv.Atoi(q.Get("minAge")); err == nil {
		f.ChildMinAge = &n
	}
	if n, err := strconv.Atoi(q.Get("maxAge")); err == nil {
		f.ChildMaxAge = &n
	}
	if t, err := time.Parse(filterDateForm, q.Get("startDate")); err == nil {
		f.RegisteredFrom = &t
	}
	if t, err := time.Parse(filterDateForm, q.Get("endDate")); err == nil {
		f.RegisteredTo = &t
	}

	return f
}

// Dashboard handles GET /admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	adminID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	resp, err := h.service.Dashboard(r.Context(), adminID, ParseUserFilter(q))
	if err != nil {
		h.logger.Error("failed to load dashboard", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load dashboard")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, dashboardPage{DashboardResponse: resp, Filter: q})
}

// GetUserDetails handles GET /admin/user/{id}
func (h *AdminHandler) GetUserDetails(w http.ResponseWriter, r *http.Request) {
	details, err := h.service.GetUserDetails(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to load user details", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load user")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, details)
}

// ExportUsers handles GET /admin/export-users. The workbook is built in
// memory first so a failure can still be answered with an error status.
func (h *AdminHandler) ExportUsers(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.service.ExportUsers(r.Context(), ParseUserFilter(r.URL.Query()), &buf); err != nil {
		h.logger.Error("failed to export users", slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to export users")
		return
	}

	filename := fmt.Sprintf("users_and_children_%d.xlsx", h.now().UnixMilli())
	w.Header().Set("Content-Type", xlsxMediaType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// UnlockUser handles POST /admin/user/{id}/unlock
func (h *AdminHandler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.UnlockUser(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "User not found")
			return
		}
		h.logger.Error("failed to unlock user", slog.String("user_id", id), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to unlock user")
		return
	}

	pkghttp.SeeOther(w, r, "/admin/dashboard", pkghttp.Flag("unlocked", id))
}
