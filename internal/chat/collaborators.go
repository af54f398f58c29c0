package chat

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the protocol contract
var (
	ErrAlreadyOpen         = errors.New("connection already open")
	ErrUnknownMessageType  = errors.New("unknown message envelope type")
	ErrUnknownNotification = errors.New("unknown notification method")
	ErrSessionNotFound     = errors.New("no stored session")
)

// Storage keys for the persisted session snapshot
const (
	KeySessionID      = "session_id"
	KeyAuthToken      = "auth_token"
	KeySocketURL      = "socket_url"
	KeyLastActivity   = "last_activity_ms"
	KeyCustomerDetail = "customer_details"
	KeyLeadSubmitted  = "lead_submitted:" // + work request id
)

// Transcript line categories for the UI sink
const (
	CategoryCustomer = "customer"
	CategoryAgent    = "agent"
	CategoryBot      = "bot"
	CategorySystem   = "system"
)

// Header modes for the UI sink
const (
	HeaderModeConnecting  = "connecting"
	HeaderModeInChat      = "in_chat"
	HeaderModeOnHold      = "on_hold"
	HeaderModeTransferred = "transferred"
	HeaderModeEnded       = "ended"
)

// Storage persists the session snapshot across reloads and restarts.
// Get returns ErrSessionNotFound (or a wrapping error) when the key is
// absent.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Clear(ctx context.Context) error
}

// UISink receives everything the customer should see. Implementations must
// not block; the orchestrator calls these from its event path.
type UISink interface {
	Render(text, category string, timestamp time.Time, displayName string)
	SetControlsEnabled(enabled bool)
	SetHeaderMode(mode string)
	SetTypingIndicator(displayName string, typing bool)
}

// LeadSubmitter posts the pre-engagement form to the lead service.
// Fire-and-forget from the orchestrator's perspective; failures are logged
// by the implementation, never retried here.
type LeadSubmitter interface {
	Submit(ctx context.Context, lead *Lead) error
}

// CallbackSubmitter requests an agent callback for customers who would
// rather be called than chat
type CallbackSubmitter interface {
	SubmitCallback(ctx context.Context, lead *Lead) error
}

// Lead is the pre-engagement form payload handed to the lead service
type Lead struct {
	WorkRequestID string
	FirstName     string
	LastName      string
	Email         string
	PhoneNumber   string
	PostalCode    string
	CountryCode   string
	Topic         string
	Subject       string
	Attributes    []string
	CorrelationID string
}

// CustomerDetails is the validated pre-engagement form, persisted so a
// reload can resume without re-asking the user
type CustomerDetails struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phone_number"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Topic       string `json:"topic"`
	Subject     string `json:"subject"`
}
