package session

import (
	"sync"
	"time"
)

// Phase is the visible state of a chat session. The one-way flags the
// protocol used to scatter across the session record (manual close, retry
// blocked, previously connected) are kept alongside it because they answer
// different questions than the phase does.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseConnecting
	PhaseAwaitingLogin
	PhaseInChat
	PhaseOnHold
	PhaseTransferred
	PhaseEnded
)

// String returns a human-readable phase name
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseConnecting:
		return "connecting"
	case PhaseAwaitingLogin:
		return "awaiting_login"
	case PhaseInChat:
		return "in_chat"
	case PhaseOnHold:
		return "on_hold"
	case PhaseTransferred:
		return "transferred"
	case PhaseEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// Participant is one non-customer party in the chat room
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	IsTyping    bool   `json:"is_typing"`
}

// State is the single mutable session record shared by the transport and
// the orchestrator. One instance per widget lifetime; a new chat after a
// terminal condition requires a new instance.
type State struct {
	mu sync.Mutex

	phase Phase

	// Server-issued identity, required to renew after a reload
	sessionID string
	authToken string

	socketURL string

	initiated           bool
	previouslyConnected bool
	manualClose         bool
	retryBlocked        bool
	retryCount          int

	lastActivityMs int64

	// Customer identity echoed back by the server on login
	displayName string

	participants map[string]*Participant
}

// NewState creates an empty session state
func NewState() *State {
	return &State{
		participants: make(map[string]*Participant),
	}
}

// Phase returns the current session phase
func (s *State) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// SetPhase moves the session to the given phase
func (s *State) SetPhase(p Phase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = p
}

// Credentials returns the server-issued session id and auth token
func (s *State) Credentials() (sessionID, authToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID, s.authToken
}

// SetCredentials stores the server-issued session id and auth token
func (s *State) SetCredentials(sessionID, authToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.authToken = authToken
}

// SocketURL returns the last URL the session connected to
func (s *State) SocketURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.socketURL
}

// SetSocketURL records the URL used to open the connection
func (s *State) SetSocketURL(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.socketURL = url
}

// Initiated reports whether a chat has been requested this lifetime
func (s *State) Initiated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initiated
}

// SetInitiated marks that a chat has been requested
func (s *State) SetInitiated(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initiated = v
}

// PreviouslyConnected reports whether the server has acknowledged this
// session at least once (including a session restored from storage)
func (s *State) PreviouslyConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.previouslyConnected
}

// SetPreviouslyConnected marks the session as acknowledged by the server
func (s *State) SetPreviouslyConnected(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.previouslyConnected = v
}

// ManualClose reports whether the user explicitly ended the chat
func (s *State) ManualClose() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.manualClose
}

// SetManualClose records whether the close was user-initiated
func (s *State) SetManualClose(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manualClose = v
}

// RetryBlocked reports whether a terminal condition has suppressed all
// further reconnect attempts
func (s *State) RetryBlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryBlocked
}

// BlockRetries permanently suppresses reconnection for this lifetime
func (s *State) BlockRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryBlocked = true
}

// RetryCount returns the number of consecutive reconnect attempts since
// the last successful open
func (s *State) RetryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retryCount
}

// IncrementRetries bumps the reconnect attempt counter and returns the
// new value
func (s *State) IncrementRetries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount++
	return s.retryCount
}

// ResetRetries zeroes the reconnect attempt counter
func (s *State) ResetRetries() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.retryCount = 0
}

// MarkActivity updates the last-activity timestamp to now and returns it
// in unix milliseconds
func (s *State) MarkActivity() int64 {
	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityMs = now
	return now
}

// LastActivityMs returns the last-activity timestamp in unix milliseconds
func (s *State) LastActivityMs() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivityMs
}

// SetLastActivityMs restores a last-activity timestamp (used on resume)
func (s *State) SetLastActivityMs(ms int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivityMs = ms
}

// DisplayName returns the customer display name
func (s *State) DisplayName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.displayName
}

// SetDisplayName stores the customer display name
func (s *State) SetDisplayName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.displayName = name
}

// ReplaceParticipants resets the roster to the given participants. Every
// participant notification carries the full roster, so merge is replace.
func (s *State) ReplaceParticipants(participants []*Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = make(map[string]*Participant, len(participants))
	for _, p := range participants {
		s.participants[p.ID] = p
	}
}

// Participant returns the participant with the given id, or nil
func (s *State) Participant(id string) *Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return nil
	}
	clone := *p
	return &clone
}

// ParticipantCount returns the current roster size
func (s *State) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.participants)
}

// Participants returns a copy of the current roster
func (s *State) Participants() []*Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Participant, 0, len(s.participants))
	for _, p := range s.participants {
		clone := *p
		out = append(out, &clone)
	}
	return out
}

// SetTyping updates a participant's typing flag. Returns false if the
// participant is not in the roster.
func (s *State) SetTyping(id string, typing bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return false
	}
	p.IsTyping = typing
	return true
}

// Reset clears the session record for a fresh start. The monotonic flags
// are only ever cleared here, by explicit caller intent.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = PhaseIdle
	s.sessionID = ""
	s.authToken = ""
	s.initiated = false
	s.previouslyConnected = false
	s.manualClose = false
	s.retryBlocked = false
	s.retryCount = 0
	s.lastActivityMs = 0
	s.displayName = ""
	s.participants = make(map[string]*Participant)
}
