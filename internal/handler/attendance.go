package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hollis-dev/rollcall/internal/api"
	"github.com/hollis-dev/rollcall/internal/checkin"
	"github.com/hollis-dev/rollcall/internal/device"
	"github.com/hollis-dev/rollcall/internal/model"
)

// coordinator is the slice of the check-in coordinator the handler needs.
type coordinator interface {
	CheckInGPS(ctx context.Context) (*model.AttendanceRecord, error)
	CheckInDual(ctx context.Context) (*model.AttendanceRecord, error)
	CaptureVerification(ctx context.Context) (*model.VerificationResult, error)
	CheckOut(ctx context.Context, confirmEarly bool) (*model.AttendanceRecord, error)
	Status(ctx context.Context) (*checkin.Status, error)
}

// summarizer fetches the device account's monthly summary from the backend.
type summarizer interface {
	Summary(ctx context.Context) (*api.Summary, error)
}

type AttendanceHandler struct {
	coord   coordinator
	backend summarizer
	logger  *slog.Logger
}

func NewAttendanceHandler(coord coordinator, backend summarizer, logger *slog.Logger) *AttendanceHandler {
	return &AttendanceHandler{coord: coord, backend: backend, logger: logger}
}

func (h *AttendanceHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coord.CheckInGPS(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Check-in successful",
		"attendance": rec,
	})
}

func (h *AttendanceHandler) CheckInDual(w http.ResponseWriter, r *http.Request) {
	rec, err := h.coord.CheckInDual(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message":    "Check-in successful with face verification",
		"attendance": rec,
	})
}

func (h *AttendanceHandler) Verify(w http.ResponseWriter, r *http.Request) {
	result, err := h.coord.CaptureVerification(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verified":   result.Verified,
		"confidence": result.Confidence,
		"expires_at": result.ExpiresAt,
	})
}

func (h *AttendanceHandler) CheckOut(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmEarly bool `json:"confirm_early"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
			return
		}
	}

	rec, err := h.coord.CheckOut(r.Context(), req.ConfirmEarly)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Check-out successful",
		"attendance": rec,
	})
}

func (h *AttendanceHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.coord.Status(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *AttendanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.backend.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// writeError maps domain errors to HTTP statuses. State conflicts and
// precondition failures get distinct codes so the kiosk UI can react without
// string matching.
func (h *AttendanceHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkin.ErrBusy):
		writeErrorCode(w, http.StatusTooManyRequests, "busy", err)
	case errors.Is(err, checkin.ErrAlreadyActive):
		writeErrorCode(w, http.StatusConflict, "already_active", err)
	case errors.Is(err, checkin.ErrNoActiveSession):
		writeErrorCode(w, http.StatusConflict, "no_active_session", err)
	case errors.Is(err, checkin.ErrEarlyCheckoutConfirm):
		writeErrorCode(w, http.StatusConflict, "confirm_early_checkout", err)
	case errors.Is(err, checkin.ErrFaceVerificationRequired):
		writeErrorCode(w, http.StatusPreconditionFailed, "face_verification_required", err)
	case errors.Is(err, checkin.ErrNoFaceImage):
		writeErrorCode(w, http.StatusPreconditionFailed, "no_face_image", err)
	case errors.Is(err, checkin.ErrFaceMismatch):
		writeErrorCode(w, http.StatusUnprocessableEntity, "face_mismatch", err)
	case errors.Is(err, device.ErrPermissionDenied), errors.Is(err, device.ErrCameraUnavailable):
		writeErrorCode(w, http.StatusServiceUnavailable, "device_unavailable", err)
	case api.IsFetch(err):
		writeErrorCode(w, http.StatusBadGateway, "backend_unavailable", err)
	default:
		h.logger.Error("attendance operation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeErrorCode(w http.ResponseWriter, status int, code string, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error(), "code": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
