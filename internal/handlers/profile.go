package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/BradenHooton/voice-membership/internal/models"
	"github.com/BradenHooton/voice-membership/internal/services"
	pkghttp "github.com/BradenHooton/voice-membership/pkg/http"
	"github.com/go-chi/chi/v5"
)

// ProfileServiceInterface covers the member's own account and children.
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) (*services.ProfileView, error)
	UpdateProfile(ctx context.Context, userID string, in services.UpdateProfileInput) (*models.User, error)
	AddChild(ctx context.Context, userID string, in services.ChildInput) (*models.Child, error)
	UpdateChild(ctx context.Context, userID string, childID int64, in services.ChildInput) (*models.Child, error)
	DeleteChild(ctx context.Context, userID string, childID int64) error
}

const (
	profilePath       = "/profile"
	emailTakenMessage = "email already exist. choose different"
)

type ProfileHandler struct {
	service ProfileServiceInterface
	logger  *slog.Logger
}

func NewProfileHandler(service ProfileServiceInterface, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{service: service, logger: logger}
}

// GetProfile handles GET /profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	view, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.SeeOther(w, r, services.LoginPath, nil)
			return
		}
		h.logger.Error("failed to load profile", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.WriteInternalError(w, "Failed to load profile")
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, view)
}

// UpdateProfile handles POST /profile/edit
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var in services.UpdateProfileInput
	if err := bindRequest(r, &in); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if err := ValidateRequest(in); err != nil {
		writeValidationError(w, err)
		return
	}

	if _, err := h.service.UpdateProfile(r.Context(), userID, in); err != nil {
		switch {
		case errors.Is(err, models.ErrEmailExists):
			pkghttp.WriteFieldErrors(w, emailTakenMessage, map[string]string{"email": emailTakenMessage})
		case errors.Is(err, models.ErrNotFound):
			pkghttp.SeeOther(w, r, services.LoginPath, nil)
		default:
			h.logger.Error("failed to update profile", slog.String("user_id", userID), slog.Any("error", err))
			pkghttp.WriteInternalError(w, "Failed to update profile")
		}
		return
	}

	pkghttp.SeeOther(w, r, profilePath, nil)
}

func (h *ProfileHandler) bindChild(w http.ResponseWriter, r *http.Request) (services.ChildInput, bool) {
	var in services.ChildInput
	if err := bindRequest(r, &in); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return in, false
	}

	fields, err := fieldErrors(ValidateRequest(in))
	if err != nil {
		writeValidationError(w, err)
		return in, false
	}
	if strings.TrimSpace(in.Name) == "" {
		fields["name"] = "this field is required"
	}
	if len(fields) > 0 {
		pkghttp.WriteFieldErrors(w, "Please correct the highlighted fields", fields)
		return in, false
	}
	return in, true
}

func childIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "childID"), 10, 64)
	return id, err == nil && id > 0
}

// AddChild handles POST /profile/children
func (h *ProfileHandler) AddChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	in, ok := h.bindChild(w, r)
	if !ok {
		return
	}

	if _, err := h.service.AddChild(r.Context(), userID, in); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteFieldErrors(w, "Please correct the child details", map[string]string{"child": err.Error()})
			return
		}
		h.logger.Error("failed to add child", slog.String("user_id", userID), slog.Any("error", err))
		pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "add_child_failed"))
		return
	}

	pkghttp.SeeOther(w, r, profilePath, nil)
}

// UpdateChild handles POST /profile/children/{childID}. Children that are
// missing or belong to someone else send the member back to the profile.
func (h *ProfileHandler) UpdateChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	childID, ok := childIDParam(r)
	if !ok {
		pkghttp.SeeOther(w, r, profilePath, nil)
		return
	}
	in, ok := h.bindChild(w, r)
	if !ok {
		return
	}

	if _, err := h.service.UpdateChild(r.Context(), userID, childID, in); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			pkghttp.SeeOther(w, r, profilePath, nil)
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteFieldErrors(w, "Please correct the child details", map[string]string{"child": err.Error()})
		default:
			h.logger.Error("failed to update child", slog.String("user_id", userID), slog.Int64("child_id", childID), slog.Any("error", err))
			pkghttp.SeeOther(w, r, profilePath, pkghttp.Flag("error", "edit_child_failed"))
		}
		return
	}

	pkghttp.SeeOther(w, r, profilePath, nil)
}

// DeleteChild handles POST /profile/children/{childID}/delete
func (h *ProfileHandler) DeleteChild(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}
	childID, ok := childIDParam(r)
	if !ok {
		pkghttp.SeeOther(w, r, profilePath, nil)
		return
	}

	if err := h.service.DeleteChild(r.Context(), userID, childID); err != nil && !errors.Is(err, models.ErrNotFound) {
		h.logger.Error("failed to delete child", slog.String("user_id", userID), slog.Int64("child_id", childID), slog.Any("error", err))
	}

	pkghttp.SeeOther(w, r, profilePath, nil)
}
