// internal/membership/handler.go
package membership

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Routes mounts the operator endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/members", h.handleCreateMember)
	r.Route("/members/{code}", func(r chi.Router) {
		r.Get("/", h.handleGetMember)
		r.Post("/fee", h.handleMarkFeePaid)
		r.Post("/reminder", h.handleSendReminder)
	})
	r.Post("/reminders/due", h.handleSendDueReminders)
}

func (h *Handler) handleCreateMember(w http.ResponseWriter, r *http.Request) {
	var req CreateMemberInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := h.service.CreateMember(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, member)
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.GetMember(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleMarkFeePaid(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.MarkFeePaid(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSendReminder(w http.ResponseWriter, r *http.Request) {
	reminder, err := h.service.SendReminder(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, reminder)
}

func (h *Handler) handleSendDueReminders(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SendDueReminders(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeServiceError(w http.ResponseWriter, err error) {
	var validationErr *ValidationError
	var messagingErr *MessagingFailure

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, ErrMemberNotFound):
		writeError(w, http.StatusNotFound, ErrMemberNotFound.Error())
	case errors.Is(err, ErrDuplicateCode):
		writeError(w, http.StatusConflict, ErrDuplicateCode.Error())
	case errors.Is(err, ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &messagingErr):
		writeError(w, http.StatusBadGateway, messagingErr.Reason)
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
