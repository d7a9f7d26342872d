package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/openhearth/backend-donate/internal/common"
)

// MessageStore persists contact submissions.
type MessageStore interface {
	Create(ctx context.Context, msg Message) (Message, error)
}

// Handler exposes the contact-form endpoint.
type Handler struct {
	Store    MessageStore
	Validate *validator.Validate
	Logger   zerolog.Logger
}

type submitRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// Submit handles POST /contact.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "STORE_NOT_CONFIGURED", "contact form unavailable", nil)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid request payload", nil)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Subject = strings.TrimSpace(req.Subject)
	req.Message = strings.TrimSpace(req.Message)

	if err := h.Validate.Struct(req); err != nil {
		var details []string
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				details = append(details, strings.ToLower(fe.Field())+": "+fe.Tag())
			}
		}
		common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "request failed validation", details)
		return
	}

	msg, err := h.Store.Create(r.Context(), Message{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		h.Logger.Error().Err(err).Msg("persist contact message")
		common.JSONError(w, http.StatusInternalServerError, "STORE_ERROR", "unable to save message", nil)
		return
	}
	h.Logger.Info().Str("message_id", msg.ID).Msg("contact message received")
	common.JSON(w, http.StatusCreated, map[string]any{"data": msg})
}
