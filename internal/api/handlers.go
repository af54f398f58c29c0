package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/yegors/webchat/internal/chat"
	"github.com/yegors/webchat/internal/config"
	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/internal/validation"
	"github.com/yegors/webchat/internal/websocket"
	"github.com/yegors/webchat/pkg/logger"
)

// Handler contains the API handlers
type Handler struct {
	orchestrator *chat.Orchestrator
	state        *session.State
	config       *config.Config
	wsServer     *websocket.Server
	callbacks    chat.CallbackSubmitter
	logger       *logger.Logger
}

// NewHandler creates a new API handler and registers it for widget input
// arriving over the event stream. callbacks may be nil when lead submission
// is disabled.
func NewHandler(
	orchestrator *chat.Orchestrator,
	state *session.State,
	cfg *config.Config,
	wsServer *websocket.Server,
	callbacks chat.CallbackSubmitter,
	log *logger.Logger,
) *Handler {
	h := &Handler{
		orchestrator: orchestrator,
		state:        state,
		config:       cfg,
		wsServer:     wsServer,
		callbacks:    callbacks,
		logger:       log.Named("api"),
	}
	wsServer.SetMessageHandler(h)
	return h
}

// startRequest is the pre-engagement form as the widget submits it
type startRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Topic       string `json:"topic"`
	Subject     string `json:"subject"`
}

// StartChat validates the pre-engagement form and opens a fresh session
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateForm(&req); err != nil {
		h.logger.Debug("Form validation failed", logger.Error(err))
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	details := &chat.CustomerDetails{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		PostalCode:  req.PostalCode,
		CountryCode: req.CountryCode,
		Topic:       req.Topic,
		Subject:     req.Subject,
	}

	if err := h.orchestrator.Start(r.Context(), details); err != nil {
		if errors.Is(err, chat.ErrAlreadyOpen) {
			WriteJSON(w, http.StatusConflict, map[string]string{
				"error": "a chat is already in progress",
			})
			return
		}
		h.logger.Error("Failed to start chat", logger.Error(err))
		http.Error(w, "Failed to start chat", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "connecting",
	})
}

// ResumeChat restores a persisted session and reconnects. The renewed
// login asks the backend for a full transcript replay.
func (h *Handler) ResumeChat(w http.ResponseWriter, r *http.Request) {
	if err := h.orchestrator.ResumeFromStorage(r.Context()); err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			WriteJSON(w, http.StatusNotFound, map[string]string{
				"error": "no resumable session",
			})
			return
		}
		h.logger.Error("Failed to resume session", logger.Error(err))
		http.Error(w, "Failed to resume session", http.StatusInternalServerError)
		return
	}

	if err := h.orchestrator.Start(r.Context(), nil); err != nil {
		if errors.Is(err, chat.ErrAlreadyOpen) {
			WriteJSON(w, http.StatusConflict, map[string]string{
				"error": "a chat is already in progress",
			})
			return
		}
		h.logger.Error("Failed to reconnect resumed session", logger.Error(err))
		http.Error(w, "Failed to resume session", http.StatusInternalServerError)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{
		"status": "resuming",
	})
}

// messageRequest carries one customer message
type messageRequest struct {
	Text string `json:"text"`
}

// SendMessage forwards one customer message into the session
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" {
		http.Error(w, "Message text is required", http.StatusBadRequest)
		return
	}

	h.orchestrator.SendMessage(req.Text)
	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// SendTyping reports the customer typing. Throttling happens inside the
// engine, so the widget can call this on every keystroke.
func (h *Handler) SendTyping(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.SendTyping()
	w.WriteHeader(http.StatusNoContent)
}

// EndChat ends the session on the customer's initiative
func (h *Handler) EndChat(w http.ResponseWriter, r *http.Request) {
	h.orchestrator.Quit(r.Context())
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ended"})
}

// RequestCallback submits a callback request instead of starting a chat,
// for customers who would rather be called back
func (h *Handler) RequestCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbacks == nil {
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "callback requests are not enabled",
		})
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := validateCallbackForm(&req); err != nil {
		h.logger.Debug("Callback form validation failed", logger.Error(err))
		WriteJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error": err.Error(),
		})
		return
	}

	lead := &chat.Lead{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		PostalCode:  req.PostalCode,
		CountryCode: req.CountryCode,
		Topic:       req.Topic,
		Subject:     req.Subject,
	}
	if err := h.callbacks.SubmitCallback(r.Context(), lead); err != nil {
		h.logger.Error("Failed to submit callback request", logger.Error(err))
		http.Error(w, "Failed to submit callback request", http.StatusBadGateway)
		return
	}

	WriteJSON(w, http.StatusAccepted, map[string]string{"status": "requested"})
}

// GetStatus reports the session phase and roster
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	sessionID, _ := h.state.Credentials()
	WriteJSON(w, http.StatusOK, map[string]any{
		"phase":        h.state.Phase().String(),
		"session_id":   sessionID,
		"participants": h.state.Participants(),
	})
}

// HandleMessage routes widget input arriving over the event stream, as an
// alternative to the REST endpoints
func (h *Handler) HandleMessage(client *websocket.Client, messageType string, data map[string]any) error {
	switch messageType {
	case websocket.MessageTypeSendMessage:
		text, _ := data["text"].(string)
		if text == "" {
			return fmt.Errorf("message text is required")
		}
		h.orchestrator.SendMessage(text)
	case websocket.MessageTypeSendTyping:
		h.orchestrator.SendTyping()
	case websocket.MessageTypeEndChat:
		h.orchestrator.Quit(context.Background())
	default:
		return fmt.Errorf("unknown message type: %s", messageType)
	}
	return nil
}

// validateForm applies the pure predicates to the pre-engagement form
func validateForm(req *startRequest) error {
	if !validation.IsValidName(req.FirstName) {
		return fmt.Errorf("first name is required")
	}
	if !validation.IsValidEmail(req.Email) {
		return fmt.Errorf("invalid email address")
	}
	if req.PhoneNumber != "" && !validation.IsValidPhone(req.PhoneNumber, req.CountryCode) {
		return fmt.Errorf("invalid phone number")
	}
	if req.PostalCode != "" && !validation.IsValidPostalCode(req.PostalCode, req.CountryCode) {
		return fmt.Errorf("invalid postal code")
	}
	return nil
}

// validateCallbackForm is validateForm with the phone number mandatory,
// since a callback has nothing to call without one
func validateCallbackForm(req *startRequest) error {
	if err := validateForm(req); err != nil {
		return err
	}
	if !validation.IsValidPhone(req.PhoneNumber, req.CountryCode) {
		return fmt.Errorf("a valid phone number is required for a callback")
	}
	return nil
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
