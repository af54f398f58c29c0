package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server  ServerConfig  `toml:"server"`  // UI bridge HTTP server settings
	Chat    ChatConfig    `toml:"chat"`    // Chat session engine settings
	Leads   LeadsConfig   `toml:"leads"`   // Lead/callback submission settings
	Storage StorageConfig `toml:"storage"` // Session persistence settings
	Logging LoggingConfig `toml:"logging"` // Application logging settings
	Notices NoticesConfig `toml:"notices"` // User-visible status line texts
}

// ServerConfig contains HTTP server configuration for the UI bridge
type ServerConfig struct {
	Port               int      `toml:"port"`                  // HTTP port for the UI bridge
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // Origins allowed for CORS requests (["*"] for all)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 recommended for the ws stream)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Keep-alive idle timeout
	StaticFilesDir     string   `toml:"static_files_dir"`      // Directory to serve the widget files from (empty disables static serving)
}

// ChatConfig contains the chat session engine settings
type ChatConfig struct {
	// Backend connection
	SocketURL string `toml:"socket_url" env:"WEBCHAT_SOCKET_URL"` // wss:// URL of the chat backend

	// Timers (all in seconds unless noted)
	PingIntervalSecs      int `toml:"ping_interval_seconds"`       // Heartbeat ping interval once the socket is open (default: 30)
	RetryIntervalSecs     int `toml:"retry_interval_seconds"`      // Delay before a reconnect attempt after a transient close (default: 5)
	MaxRetries            int `toml:"max_retries"`                 // Maximum consecutive reconnect attempts before giving up (default: 3, -1 disables reconnection)
	LoginTimeoutSecs      int `toml:"login_timeout_seconds"`       // How long to wait for the login response before resetting to idle (default: 60)
	RefreshTimeoutSecs    int `toml:"refresh_timeout_seconds"`     // Maximum age of a stored session before resume is refused (default: 600)
	TypingTimeoutSecs     int `toml:"typing_timeout_seconds"`      // Agent typing indicator expiry (default: 10)
	TypingThrottleSecs    int `toml:"typing_throttle_seconds"`     // Minimum gap between outbound isTyping messages (default: 10)
	LeaseTimeMinutes      int `toml:"lease_time_minutes"`          // Lease time requested in the login body (default: 5)
	EstimatedWaitTimeMins int `toml:"estimated_wait_time_minutes"` // Wait estimate shown on first connect (default: 5)

	// Routing
	RoutePointIdentifier string   `toml:"route_point_identifier"` // Backend route point the chat request targets
	WorkflowType         string   `toml:"workflow_type"`          // Workflow type sent in the login body
	Priority             int      `toml:"priority"`               // Request priority
	Topic                string   `toml:"topic"`                  // Topic intrinsic sent with the chat request
	Attributes           []string `toml:"attributes"`             // Routing attributes, "Key.Value" form (e.g., "Location.EMEA")
	CustomData           string   `toml:"custom_data"`            // Opaque custom data echoed in requests

	// Participant visibility
	SuppressChatbotPresence bool `toml:"suppress_chatbot_presence"` // Hide the chatbot join/leave announcements
	NotifyOfObserve         bool `toml:"notify_of_observe"`         // Announce supervisors observing the chat
	NotifyOfBarge           bool `toml:"notify_of_barge"`           // Announce supervisors barging into the chat
}

// LeadsConfig contains lead/callback submission settings
type LeadsConfig struct {
	Enabled      bool   `toml:"enabled"`                               // Enable lead submission on chat establishment
	BaseURL      string `toml:"base_url" env:"WEBCHAT_LEADS_BASE_URL"` // API endpoints domain
	SubmitPath   string `toml:"submit_path"`                           // Path for the lead submission endpoint
	CallbackPath string `toml:"callback_path"`                         // Path for the callback form endpoint
	FormID       string `toml:"form_id"`                               // Form identifier sent with submissions
	TimeoutSecs  int    `toml:"timeout_seconds"`                       // HTTP timeout for submissions (default: 15)
}

// StorageConfig contains session persistence settings
type StorageConfig struct {
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file (default: webchat.db)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// NoticesConfig contains every user-visible status line appended to the
// transcript. Placeholders {0} and {1} are substituted where noted.
type NoticesConfig struct {
	ConnectionError       string `toml:"connection_error"`
	ClosedForMaintenance  string `toml:"closed_for_maintenance"`
	ErrorOccurred         string `toml:"error_occurred"` // {0} = code, {1} = message
	AttemptingToReconnect string `toml:"attempting_to_reconnect"`
	UnableToReconnect     string `toml:"unable_to_reconnect"`
	ReloadingPage         string `toml:"reloading_page"`
	SuccessfulReconnect   string `toml:"successful_reconnect"`
	RouteCancel           string `toml:"route_cancel"`
	AgentJoined           string `toml:"agent_joined"`
	AgentLeft             string `toml:"agent_left"`
	Transfer              string `toml:"transfer"`
	Requeue               string `toml:"requeue"`
	ChatbotTransfer       string `toml:"chatbot_transfer"`
	TransferToUser        string `toml:"transfer_to_user"`
	EstimatedWaitTime     string `toml:"estimated_wait_time"` // {0} = minutes
	ChatEnded             string `toml:"chat_ended"`
	SessionTransferred    string `toml:"session_transferred"`
	CloseRequest          string `toml:"close_request"`
	LoginTimeout          string `toml:"login_timeout"`
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	// Check if the file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	// Read the config file
	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Environment variables override file values (secrets and endpoints
	// don't belong in config.toml)
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	// List of paths to check in order of preference
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	// Remove duplicates while preserving order
	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.Host == "" {
		c.Server.Host = "127.0.0.1"
	}

	// Validate chat config
	if c.Chat.SocketURL == "" {
		return fmt.Errorf("chat socket_url is required")
	}
	if !strings.HasPrefix(c.Chat.SocketURL, "ws://") && !strings.HasPrefix(c.Chat.SocketURL, "wss://") {
		return fmt.Errorf("chat socket_url must use ws:// or wss:// scheme: %s", c.Chat.SocketURL)
	}
	if c.Chat.MaxRetries < -1 {
		return fmt.Errorf("invalid max_retries: %d (use -1 to disable reconnection)", c.Chat.MaxRetries)
	}
	if c.Chat.PingIntervalSecs <= 0 {
		c.Chat.PingIntervalSecs = 30
	}
	if c.Chat.RetryIntervalSecs <= 0 {
		c.Chat.RetryIntervalSecs = 5
	}
	// 0 means unset; -1 is the explicit "never reconnect"
	switch c.Chat.MaxRetries {
	case 0:
		c.Chat.MaxRetries = 3
	case -1:
		c.Chat.MaxRetries = 0
	}
	if c.Chat.LoginTimeoutSecs <= 0 {
		c.Chat.LoginTimeoutSecs = 60
	}
	if c.Chat.RefreshTimeoutSecs <= 0 {
		c.Chat.RefreshTimeoutSecs = 600
	}
	if c.Chat.TypingTimeoutSecs <= 0 {
		c.Chat.TypingTimeoutSecs = 10
	}
	if c.Chat.TypingThrottleSecs <= 0 {
		c.Chat.TypingThrottleSecs = 10
	}
	if c.Chat.LeaseTimeMinutes <= 0 {
		c.Chat.LeaseTimeMinutes = 5
	}
	if c.Chat.EstimatedWaitTimeMins <= 0 {
		c.Chat.EstimatedWaitTimeMins = 5
	}
	if c.Chat.WorkflowType == "" {
		c.Chat.WorkflowType = "default"
	}

	// Validate leads config
	if c.Leads.Enabled {
		if c.Leads.BaseURL == "" {
			return fmt.Errorf("leads base_url is required when leads are enabled")
		}
		if c.Leads.SubmitPath == "" {
			c.Leads.SubmitPath = "/inquiry/chat"
		}
		if c.Leads.CallbackPath == "" {
			c.Leads.CallbackPath = "/inquiry/callback"
		}
	}
	if c.Leads.TimeoutSecs <= 0 {
		c.Leads.TimeoutSecs = 15
	}

	// Validate storage config
	if c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "webchat.db"
	}

	// Validate logging config
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	c.Notices.applyDefaults()

	return nil
}

// Format substitutes {0} and {1} style placeholders in a notice text
func Format(text string, args ...string) string {
	for i, arg := range args {
		text = strings.ReplaceAll(text, fmt.Sprintf("{%d}", i), arg)
	}
	return text
}

// applyDefaults fills in any notice text left empty in the config file
func (n *NoticesConfig) applyDefaults() {
	def := func(field *string, text string) {
		if *field == "" {
			*field = text
		}
	}

	def(&n.ConnectionError, "We're having trouble connecting. Please wait while we retry.")
	def(&n.ClosedForMaintenance, "Chat is closed for maintenance. Please try again later.")
	def(&n.ErrorOccurred, "An error occurred (code {0}): {1}")
	def(&n.AttemptingToReconnect, "Attempting to reconnect...")
	def(&n.UnableToReconnect, "Unable to reconnect. Please start a new chat.")
	def(&n.ReloadingPage, "Restoring your chat session...")
	def(&n.SuccessfulReconnect, "You are reconnected.")
	def(&n.RouteCancel, "No agents are available right now. Please try again later.")
	def(&n.AgentJoined, "An agent has joined the chat.")
	def(&n.AgentLeft, "An agent has left the chat.")
	def(&n.Transfer, "You are being transferred to another agent.")
	def(&n.Requeue, "You are being placed back in the queue.")
	def(&n.ChatbotTransfer, "You are being connected to a live agent.")
	def(&n.TransferToUser, "You are being transferred to a specialist.")
	def(&n.EstimatedWaitTime, "Estimated wait time: {0} minutes.")
	def(&n.ChatEnded, "The chat has ended.")
	def(&n.SessionTransferred, "This chat has been continued in another window.")
	def(&n.CloseRequest, "You have ended the chat.")
	def(&n.LoginTimeout, "We couldn't start your chat. Please try again.")
}
