package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yegors/webchat/internal/config"
	"github.com/yegors/webchat/internal/session"
	"github.com/yegors/webchat/pkg/logger"
)

// Orchestrator owns the protocol semantics above the transport: what to
// send on open, how each notification moves the session, and the on-hold
// rotation. It implements Handler for the transport's callbacks.
type Orchestrator struct {
	state     *session.State
	timers    *session.Registry
	transport *Transport
	storage   Storage
	leads     LeadSubmitter
	ui        UISink
	onHold    *OnHoldScheduler
	chatCfg   config.ChatConfig
	notices   config.NoticesConfig
	logger    *logger.Logger

	// correlationID identifies this widget instance across requests and
	// lead payloads
	correlationID string

	mu      sync.Mutex
	details *CustomerDetails
	// reloaded marks that the session was restored from storage; the next
	// renew asks for a full transcript replay
	reloaded bool
	// subjectPending arms the one-shot subject auto-send after the first
	// agent message
	subjectPending bool
	// on-hold groups from the last establishment, replayed when the
	// roster empties again
	comfortGroup     *ComfortGroup
	urlGroup         *URLGroup
	lastTypingSentMs int64
}

// NewOrchestrator wires an orchestrator to its collaborators and registers
// it as the transport's handler. leads may be nil when lead submission is
// disabled.
func NewOrchestrator(
	state *session.State,
	timers *session.Registry,
	transport *Transport,
	storage Storage,
	leads LeadSubmitter,
	ui UISink,
	chatCfg config.ChatConfig,
	notices config.NoticesConfig,
	log *logger.Logger,
) *Orchestrator {
	o := &Orchestrator{
		state:         state,
		timers:        timers,
		transport:     transport,
		storage:       storage,
		leads:         leads,
		ui:            ui,
		onHold:        NewOnHoldScheduler(timers, ui, log),
		chatCfg:       chatCfg,
		notices:       notices,
		logger:        log.Named("orchestrator"),
		correlationID: uuid.NewString(),
	}
	transport.SetHandler(o)
	return o
}

// Start begins a fresh chat: persists the customer details, then opens the
// socket. Login itself happens from HandleOpen once the socket is up.
func (o *Orchestrator) Start(ctx context.Context, details *CustomerDetails) error {
	// A nil details means a resume; keep whatever ResumeFromStorage loaded
	if details != nil {
		o.mu.Lock()
		o.details = details
		o.subjectPending = false
		o.mu.Unlock()
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal customer details: %w", err)
		}
		if err := o.storage.Set(ctx, KeyCustomerDetail, string(raw)); err != nil {
			o.logger.Warn("Failed to persist customer details", logger.Error(err))
		}
		o.state.SetDisplayName(details.FirstName)
	}

	o.state.SetInitiated(true)
	o.ui.SetHeaderMode(HeaderModeConnecting)

	if err := o.transport.Open(ctx, o.chatCfg.SocketURL); err != nil {
		return fmt.Errorf("failed to open chat connection: %w", err)
	}
	return nil
}

// ResumeFromStorage rebuilds the session from the persisted snapshot after
// a reload. It never opens the socket; the caller does that next, and the
// restored state makes the login a renew. A snapshot older than the
// refresh timeout is purged and ErrSessionNotFound returned.
func (o *Orchestrator) ResumeFromStorage(ctx context.Context) error {
	sessionID, err := o.storage.Get(ctx, KeySessionID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}
	authToken, err := o.storage.Get(ctx, KeyAuthToken)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSessionNotFound, err)
	}

	if raw, err := o.storage.Get(ctx, KeyLastActivity); err == nil {
		stored, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			age := time.Now().UnixMilli() - stored
			if age > int64(o.chatCfg.RefreshTimeoutSecs)*1000 {
				o.logger.Info("Stored session expired",
					logger.Int64("age_ms", age))
				o.clearStoredSession(ctx)
				return fmt.Errorf("stored session expired: %w", ErrSessionNotFound)
			}
			o.state.SetLastActivityMs(stored)
		}
	}

	o.state.SetCredentials(sessionID, authToken)
	o.state.SetPreviouslyConnected(true)
	o.state.SetInitiated(true)

	o.mu.Lock()
	o.reloaded = true
	o.mu.Unlock()

	if raw, err := o.storage.Get(ctx, KeyCustomerDetail); err == nil {
		var details CustomerDetails
		if err := json.Unmarshal([]byte(raw), &details); err == nil {
			o.mu.Lock()
			o.details = &details
			o.mu.Unlock()
			o.state.SetDisplayName(details.FirstName)
		}
	}

	o.logger.Info("Session restored from storage",
		logger.String("session_id", sessionID))
	o.ui.Render(o.notices.ReloadingPage, CategorySystem, time.Now(), "")
	return nil
}

// SendMessage transmits one customer text message. The server echoes it
// back as a customer notification, which is when it lands in the
// transcript.
func (o *Orchestrator) SendMessage(text string) {
	if text == "" {
		return
	}
	o.transport.Send(NewRequest(&NewMessageBody{
		Method:  MethodNewMessage,
		Message: text,
		Type:    "text",
		Data:    MessageData{Message: text},
	}))
}

// SendTyping reports that the customer is typing, throttled to one
// message per configured window
func (o *Orchestrator) SendTyping() {
	now := time.Now().UnixMilli()
	o.mu.Lock()
	if now-o.lastTypingSentMs < int64(o.chatCfg.TypingThrottleSecs)*1000 {
		o.mu.Unlock()
		return
	}
	o.lastTypingSentMs = now
	o.mu.Unlock()

	o.transport.Send(NewRequest(&IsTypingBody{
		Method:   MethodIsTyping,
		IsTyping: true,
	}))
}

// Quit ends the chat on the customer's initiative: no reconnects, no
// "chat ended" messaging beyond the close notice, stored session purged
func (o *Orchestrator) Quit(ctx context.Context) {
	o.logger.Info("Customer ended the chat")
	o.state.SetManualClose(true)
	o.state.BlockRetries()
	o.timers.CancelAll()
	o.onHold.Stop()

	if o.transport.Connected() {
		o.transport.Send(NewRequest(&CloseConversationBody{
			Method: MethodCloseConversation,
		}))
	}

	o.clearStoredSession(ctx)
	o.transport.Close()

	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.CloseRequest, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// HandleOpen sends the login request. Renew when the server has seen this
// session before (including a restore from storage), request otherwise.
func (o *Orchestrator) HandleOpen() {
	o.state.SetPhase(session.PhaseAwaitingLogin)

	o.timers.Schedule(session.TimerLogin,
		time.Duration(o.chatCfg.LoginTimeoutSecs)*time.Second, func() {
			o.logger.Warn("No login response, giving up")
			o.transport.Close()
			o.state.SetPhase(session.PhaseIdle)
			o.ui.Render(o.notices.LoginTimeout, CategorySystem, time.Now(), "")
			o.ui.SetControlsEnabled(false)
			o.ui.SetHeaderMode(HeaderModeEnded)
		})

	if o.state.PreviouslyConnected() {
		sessionID, authToken := o.state.Credentials()
		o.mu.Lock()
		fullTranscript := o.reloaded
		o.reloaded = false
		o.mu.Unlock()

		o.logger.Info("Renewing chat session",
			logger.String("session_id", sessionID),
			logger.Bool("full_transcript", fullTranscript))
		o.transport.Send(NewRequest(&RenewChatBody{
			Method:                MethodRenewChat,
			GUID:                  sessionID,
			AuthenticationKey:     authToken,
			RequestFullTranscript: fullTranscript,
		}))
		return
	}

	o.logger.Info("Requesting new chat session")
	o.transport.Send(NewRequest(o.buildChatRequest()))
}

func (o *Orchestrator) buildChatRequest() *RequestChatBody {
	o.mu.Lock()
	details := o.details
	o.mu.Unlock()

	body := &RequestChatBody{
		Method:               MethodRequestChat,
		DeviceType:           "web",
		RoutePointIdentifier: o.chatCfg.RoutePointIdentifier,
		WorkFlowType:         o.chatCfg.WorkflowType,
		LeaseTime:            o.chatCfg.LeaseTimeMinutes,
		Priority:             o.chatCfg.Priority,
		CustomData: map[string]string{
			"correlationId": o.correlationID,
		},
		Intrinsics: Intrinsics{
			ChannelAttribute: "Chat",
			TextDirection:    "ltr",
			Attributes:       o.chatCfg.Attributes,
			Topic:            o.chatCfg.Topic,
		},
	}
	if o.chatCfg.CustomData != "" {
		body.CustomData["data"] = o.chatCfg.CustomData
	}
	if details != nil {
		body.Intrinsics.Email = details.Email
		body.Intrinsics.Name = details.FirstName
		body.Intrinsics.LastName = details.LastName
		body.Intrinsics.PhoneNumber = details.PhoneNumber
		if details.Topic != "" {
			body.Intrinsics.Topic = details.Topic
		}
		if details.PostalCode != "" {
			body.Intrinsics.CustomFields = append(body.Intrinsics.CustomFields,
				CustomField{Title: "postalCode", Value: details.PostalCode})
		}
	}
	return body
}

// HandleNotification dispatches one notification by method. The vocabulary
// is closed: an unknown method is returned as an error and tears the
// session down, never silently dropped.
func (o *Orchestrator) HandleNotification(env *Envelope) error {
	var probe MethodBody
	if err := json.Unmarshal(env.Body, &probe); err != nil {
		return fmt.Errorf("malformed notification body: %w", err)
	}

	o.logger.Debug("Notification received", logger.String("method", probe.Method))

	switch probe.Method {
	case NotifyRequestChat:
		var body ChatEstablishedBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed %s body: %w", probe.Method, err)
		}
		o.handleChatEstablished(&body)
	case NotifyRouteCancel:
		o.handleRouteCancel()
	case NotifyNewParticipant:
		var body NewParticipantBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed %s body: %w", probe.Method, err)
		}
		o.handleNewParticipant(&body)
	case NotifyIsTyping:
		var body IsTypingNotificationBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed %s body: %w", probe.Method, err)
		}
		o.handleIsTyping(&body)
	case NotifyNewMessage:
		var body NewMessageNotificationBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed %s body: %w", probe.Method, err)
		}
		o.handleNewMessage(&body)
	case NotifyCloseConversation:
		o.handleCloseConversation()
	case NotifyParticipantLeave:
		var body ParticipantLeaveBody
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return fmt.Errorf("malformed %s body: %w", probe.Method, err)
		}
		o.handleParticipantLeave(&body)
	case NotifyPing:
		// Heartbeat acknowledgement
	default:
		return fmt.Errorf("%w: %q", ErrUnknownNotification, probe.Method)
	}
	return nil
}

// handleChatEstablished processes the server's answer to requestChat or
// renewChat: stores credentials, settles the retry budget, submits the
// lead once per work request, and on first contact starts the wait
// experience.
func (o *Orchestrator) handleChatEstablished(body *ChatEstablishedBody) {
	o.timers.Cancel(session.TimerLogin)

	first := !o.state.PreviouslyConnected()

	o.state.SetCredentials(body.GUID, body.AuthenticationKey)
	o.state.SetPreviouslyConnected(true)
	o.transport.ResetAttempts()
	o.persistSession(body.GUID, body.AuthenticationKey)

	if body.Intrinsics.Name != "" {
		o.state.SetDisplayName(body.Intrinsics.Name)
	}

	if body.WorkRequestID != "" {
		o.submitLeadOnce(body.WorkRequestID)
	}

	o.mu.Lock()
	if len(body.WebOnHoldComfortGroups) > 0 {
		o.comfortGroup = body.WebOnHoldComfortGroups[0]
	}
	if len(body.WebOnHoldURLs) > 0 {
		o.urlGroup = body.WebOnHoldURLs[0]
	}
	comfort, urls := o.comfortGroup, o.urlGroup
	subject := o.details != nil && o.details.Subject != ""
	o.mu.Unlock()

	o.state.SetPhase(session.PhaseInChat)
	o.ui.SetHeaderMode(HeaderModeInChat)
	o.ui.SetControlsEnabled(true)

	if first {
		o.logger.Info("Chat established",
			logger.String("session_id", body.GUID),
			logger.String("work_request_id", body.WorkRequestID))
		o.mu.Lock()
		o.subjectPending = subject
		o.mu.Unlock()
		o.ui.Render(config.Format(o.notices.EstimatedWaitTime,
			strconv.Itoa(o.chatCfg.EstimatedWaitTimeMins)),
			CategorySystem, time.Now(), "")
		o.onHold.Start(comfort, urls)
	} else {
		o.logger.Info("Chat session renewed",
			logger.String("session_id", body.GUID))
		o.ui.Render(o.notices.SuccessfulReconnect, CategorySystem, time.Now(), "")
	}
}

// handleRouteCancel is the server telling us no agent will ever pick this
// chat up. Terminal.
func (o *Orchestrator) handleRouteCancel() {
	o.logger.Warn("Route cancelled by server")
	o.timers.Cancel(session.TimerLogin)
	o.state.BlockRetries()
	o.onHold.Stop()
	o.clearStoredSession(context.Background())

	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.RouteCancel, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// handleNewParticipant replaces the roster with the notification's full
// participant list, leaves the on-hold experience and announces the join
// when the role is visible under the configured suppression rules
func (o *Orchestrator) handleNewParticipant(body *NewParticipantBody) {
	o.replaceRoster(body.Participants)
	o.onHold.Stop()

	if len(body.WebOnHoldComfortGroup) > 0 {
		o.mu.Lock()
		o.comfortGroup = body.WebOnHoldComfortGroup[0]
		o.mu.Unlock()
	}

	o.state.SetPhase(session.PhaseInChat)
	o.ui.SetHeaderMode(HeaderModeInChat)
	o.ui.SetControlsEnabled(true)

	if o.announceable(body.Role) {
		o.ui.Render(o.notices.AgentJoined, CategorySystem, time.Now(), body.DisplayName)
	}
	o.logger.Info("Participant joined",
		logger.String("agent_id", body.AgentID),
		logger.String("role", body.Role),
		logger.Int("roster_size", o.state.ParticipantCount()))
}

// handleIsTyping flips a participant's typing flag with an auto-expiry so
// a missed "stopped typing" never wedges the indicator
func (o *Orchestrator) handleIsTyping(body *IsTypingNotificationBody) {
	if !o.state.SetTyping(body.AgentID, body.IsTyping) {
		return
	}
	participant := o.state.Participant(body.AgentID)
	if participant == nil {
		return
	}

	timerKey := session.TimerTypingPrefix + body.AgentID
	if body.IsTyping {
		o.ui.SetTypingIndicator(participant.DisplayName, true)
		o.timers.Schedule(timerKey,
			time.Duration(o.chatCfg.TypingTimeoutSecs)*time.Second, func() {
				o.state.SetTyping(body.AgentID, false)
				o.ui.SetTypingIndicator(participant.DisplayName, false)
			})
	} else {
		o.timers.Cancel(timerKey)
		o.ui.SetTypingIndicator(participant.DisplayName, false)
	}
}

// handleNewMessage appends one transcript line by sender category. The
// first live-agent message also triggers the one-shot subject auto-send.
func (o *Orchestrator) handleNewMessage(body *NewMessageNotificationBody) {
	text := body.Message
	if text == "" {
		text = body.Data.Text
	}

	category := CategoryAgent
	switch body.SenderType {
	case SenderCustomer:
		category = CategoryCustomer
	case SenderBot:
		category = CategoryBot
	}

	timestamp := time.Now()
	if body.Timestamp > 0 {
		timestamp = time.UnixMilli(body.Timestamp)
	}
	o.ui.Render(text, category, timestamp, body.DisplayName)

	if body.SenderType == SenderLiveAgent {
		o.mu.Lock()
		sendSubject := o.subjectPending
		o.subjectPending = false
		var subject string
		if sendSubject && o.details != nil {
			subject = o.details.Subject
		}
		o.mu.Unlock()
		if subject != "" {
			o.logger.Debug("Auto-sending stored subject")
			o.SendMessage(subject)
		}
	}
}

// handleCloseConversation is the server ending the chat cleanly. The
// transport will classify the following close as graceful because retries
// are blocked.
func (o *Orchestrator) handleCloseConversation() {
	o.logger.Info("Conversation closed by server")
	o.timers.Cancel(session.TimerLogin)
	o.state.BlockRetries()
	o.onHold.Stop()
	o.clearStoredSession(context.Background())
	o.transport.Close()

	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.ChatEnded, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// handleParticipantLeave recomputes the roster. An emptied roster re-enters
// the on-hold experience with a message picked by leave reason; a transfer
// is terminal for this session. A departure that leaves other participants
// only gets announced when the departing role was visible.
func (o *Orchestrator) handleParticipantLeave(body *ParticipantLeaveBody) {
	departing := o.state.Participant(body.AgentID)
	o.replaceRoster(body.Participants)

	o.timers.Cancel(session.TimerTypingPrefix + body.AgentID)
	if departing != nil {
		o.ui.SetTypingIndicator(departing.DisplayName, false)
	}

	if body.EndChatFlag {
		// Server-side signal that the conversation will not continue on
		// another node
		o.state.BlockRetries()
	}

	o.logger.Info("Participant left",
		logger.String("agent_id", body.AgentID),
		logger.String("reason", body.LeaveReason),
		logger.Int("roster_size", o.state.ParticipantCount()))

	if o.state.ParticipantCount() > 0 {
		if departing != nil && o.announceable(departing.Role) {
			o.ui.Render(o.notices.AgentLeft, CategorySystem, time.Now(), departing.DisplayName)
		}
		return
	}

	if body.LeaveReason == LeaveReasonTransfer {
		o.state.BlockRetries()
		o.state.SetPhase(session.PhaseTransferred)
		o.ui.Render(o.notices.Transfer, CategorySystem, time.Now(), "")
		o.ui.SetControlsEnabled(false)
		o.ui.SetHeaderMode(HeaderModeTransferred)
		return
	}

	var notice string
	switch body.LeaveReason {
	case LeaveReasonRequeue:
		notice = o.notices.Requeue
	case LeaveReasonEscalate:
		notice = o.notices.ChatbotTransfer
	case LeaveReasonTransferToUser:
		notice = o.notices.TransferToUser
	default:
		notice = o.notices.AgentLeft
	}

	o.state.SetPhase(session.PhaseOnHold)
	o.ui.Render(notice, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeOnHold)

	o.mu.Lock()
	comfort, urls := o.comfortGroup, o.urlGroup
	o.mu.Unlock()
	o.onHold.Start(comfort, urls)
}

// HandleError processes a server error envelope. Code 1 is a complaint
// about one message and only worth showing; everything else is terminal,
// with 503 getting the maintenance wording.
func (o *Orchestrator) HandleError(body *ErrorBody) {
	if body.Code == 1 {
		o.ui.Render(config.Format(o.notices.ErrorOccurred,
			strconv.Itoa(body.Code), body.ErrorMessage),
			CategorySystem, time.Now(), "")
		return
	}

	notice := config.Format(o.notices.ErrorOccurred,
		strconv.Itoa(body.Code), body.ErrorMessage)
	if body.Code == 503 {
		notice = o.notices.ClosedForMaintenance
	}

	o.timers.Cancel(session.TimerLogin)
	o.state.BlockRetries()
	o.onHold.Stop()
	o.clearStoredSession(context.Background())
	o.transport.Close()

	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(notice, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// HandleFatal reports an unrecoverable protocol violation
func (o *Orchestrator) HandleFatal(err error) {
	o.logger.Error("Fatal protocol error", logger.Error(err))
	o.timers.Cancel(session.TimerLogin)
	o.onHold.Stop()
	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.ConnectionError, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// HandleGracefulClose tears down the chat-over experience. A close the
// customer asked for already produced its own notice.
func (o *Orchestrator) HandleGracefulClose() {
	o.timers.Cancel(session.TimerLogin)
	o.onHold.Stop()
	o.state.SetPhase(session.PhaseEnded)
	if !o.state.ManualClose() {
		o.ui.Render(o.notices.ChatEnded, CategorySystem, time.Now(), "")
	}
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// HandleSuperseded reports that another tab carried the session on
func (o *Orchestrator) HandleSuperseded() {
	o.timers.Cancel(session.TimerLogin)
	o.onHold.Stop()
	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.SessionTransferred, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// HandleReconnecting fires before each reconnect attempt
func (o *Orchestrator) HandleReconnecting(attempt int) {
	o.ui.Render(o.notices.AttemptingToReconnect, CategorySystem, time.Now(), "")
	o.ui.SetHeaderMode(HeaderModeConnecting)
}

// HandleReconnectFailed fires when the retry budget is spent
func (o *Orchestrator) HandleReconnectFailed() {
	o.timers.Cancel(session.TimerLogin)
	o.onHold.Stop()
	o.state.SetPhase(session.PhaseEnded)
	o.ui.Render(o.notices.UnableToReconnect, CategorySystem, time.Now(), "")
	o.ui.SetControlsEnabled(false)
	o.ui.SetHeaderMode(HeaderModeEnded)
}

// replaceRoster rebuilds the participant map from a wire roster. Every
// role stays in the roster; suppression only governs announcements.
func (o *Orchestrator) replaceRoster(wire []*WireParticipant) {
	participants := make([]*session.Participant, 0, len(wire))
	for _, p := range wire {
		participants = append(participants, &session.Participant{
			ID:          p.ID,
			DisplayName: p.Name,
			Role:        p.Type,
		})
	}
	o.state.ReplaceParticipants(participants)
}

// announceable decides whether a join/leave for the given role produces a
// transcript notice
func (o *Orchestrator) announceable(role string) bool {
	switch role {
	case RoleActiveParticipant:
		return true
	case RolePassiveParticipant:
		return !o.chatCfg.SuppressChatbotPresence
	case RoleSupervisorObserve:
		return o.chatCfg.NotifyOfObserve
	case RoleSupervisorBarge:
		return o.chatCfg.NotifyOfBarge
	default:
		return false
	}
}

// submitLeadOnce hands the pre-engagement details to the lead service at
// most once per work request id, keyed through storage so replays across
// reconnects stay idempotent
func (o *Orchestrator) submitLeadOnce(workRequestID string) {
	if o.leads == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	markerKey := KeyLeadSubmitted + workRequestID
	if _, err := o.storage.Get(ctx, markerKey); err == nil {
		o.logger.Debug("Lead already submitted",
			logger.String("work_request_id", workRequestID))
		return
	}
	if err := o.storage.Set(ctx, markerKey, strconv.FormatInt(time.Now().UnixMilli(), 10)); err != nil {
		o.logger.Warn("Failed to persist lead marker", logger.Error(err))
	}

	o.mu.Lock()
	details := o.details
	o.mu.Unlock()
	if details == nil {
		return
	}

	lead := &Lead{
		WorkRequestID: workRequestID,
		FirstName:     details.FirstName,
		LastName:      details.LastName,
		Email:         details.Email,
		PhoneNumber:   details.PhoneNumber,
		PostalCode:    details.PostalCode,
		CountryCode:   details.CountryCode,
		Topic:         details.Topic,
		Subject:       details.Subject,
		Attributes:    o.chatCfg.Attributes,
		CorrelationID: o.correlationID,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := o.leads.Submit(ctx, lead); err != nil {
			o.logger.Warn("Lead submission failed",
				logger.Error(err),
				logger.String("work_request_id", workRequestID))
		}
	}()
}

// persistSession writes the resumable snapshot
func (o *Orchestrator) persistSession(sessionID, authToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := o.storage.Set(ctx, KeySessionID, sessionID); err != nil {
		o.logger.Warn("Failed to persist session id", logger.Error(err))
	}
	if err := o.storage.Set(ctx, KeyAuthToken, authToken); err != nil {
		o.logger.Warn("Failed to persist auth token", logger.Error(err))
	}
	if err := o.storage.Set(ctx, KeySocketURL, o.state.SocketURL()); err != nil {
		o.logger.Warn("Failed to persist socket url", logger.Error(err))
	}
}

// clearStoredSession erases the resumable snapshot
func (o *Orchestrator) clearStoredSession(ctx context.Context) {
	if err := o.storage.Clear(ctx); err != nil {
		o.logger.Warn("Failed to clear stored session", logger.Error(err))
	}
}

// Reset clears everything for a brand new chat in the same process
func (o *Orchestrator) Reset() {
	o.timers.CancelAll()
	o.onHold.Stop()
	o.transport.Close()
	o.state.Reset()

	o.mu.Lock()
	o.details = nil
	o.reloaded = false
	o.subjectPending = false
	o.comfortGroup = nil
	o.urlGroup = nil
	o.lastTypingSentMs = 0
	o.mu.Unlock()
}
