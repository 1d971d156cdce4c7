package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/daracheol/voxscribe/internal/api/shared"
	"github.com/daracheol/voxscribe/internal/store"
)

// MediaPurger deletes archived media objects. Nil when archival is
// disabled.
type MediaPurger interface {
	Delete(ctx context.Context, key string) error
}

// AdminHandler serves the token-protected operator API: aggregate stats
// plus per-user data export and erasure.
type AdminHandler struct {
	stats          store.StatsStore
	exports        store.ExportStore
	users          store.UserStore
	transcriptions store.TranscriptionStore
	archive        MediaPurger
	logger         *slog.Logger
}

// NewAdminHandler creates the operator API handler. archive may be nil.
func NewAdminHandler(
	stats store.StatsStore,
	exports store.ExportStore,
	users store.UserStore,
	transcriptions store.TranscriptionStore,
	archive MediaPurger,
	logger *slog.Logger,
) *AdminHandler {
	return &AdminHandler{
		stats:          stats,
		exports:        exports,
		users:          users,
		transcriptions: transcriptions,
		archive:        archive,
		logger:         logger.With("component", "admin_handler"),
	}
}

// Stats returns the aggregate usage counters.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to compute stats", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}

// ExportUser returns everything stored about one user.
func (h *AdminHandler) ExportUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "User ID is required")
		return
	}

	export, err := h.exports.Export(r.Context(), userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to export user data", err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, export)
}

// DeleteUser removes the user and every associated record.
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	if userID == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "User ID is required")
		return
	}

	if err := h.users.Delete(r.Context(), userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			shared.RespondWithError(w, r, http.StatusNotFound, "User not found")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to delete user", err)
		return
	}

	h.purgeArchivedMedia(r.Context(), userID)

	if err := h.transcriptions.DeleteByUser(r.Context(), userID); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to delete transcriptions", err)
		return
	}

	h.logger.InfoContext(r.Context(), "deleted user data", "user_id", userID)
	w.WriteHeader(http.StatusNoContent)
}

// purgeArchivedMedia deletes the user's archived media objects. Best
// effort: a failed object delete is logged, erasure of the records
// proceeds regardless.
func (h *AdminHandler) purgeArchivedMedia(ctx context.Context, userID string) {
	if h.archive == nil {
		return
	}

	trs, err := h.transcriptions.ListByUser(ctx, userID, 0)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list transcriptions for media purge",
			"user_id", userID, "error", err)
		return
	}

	for _, tr := range trs {
		if tr.ObjectKey == "" {
			continue
		}
		if err := h.archive.Delete(ctx, tr.ObjectKey); err != nil {
			h.logger.ErrorContext(ctx, "failed to delete archived media",
				"user_id", userID, "object_key", tr.ObjectKey, "error", err)
		}
	}
}
