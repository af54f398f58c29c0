package chat

import (
	"encoding/json"
	"sort"
)

// Protocol version stamped on every envelope
const APIVersion = "1.0"

// Envelope types
const (
	TypeRequest      = "request"
	TypeNotification = "notification"
	TypeError        = "error"
	TypeAck          = "ack"
)

// Outbound request methods
const (
	MethodRequestChat       = "requestChat"
	MethodRenewChat         = "renewChat"
	MethodNewMessage        = "newMessage"
	MethodIsTyping          = "isTyping"
	MethodPing              = "ping"
	MethodCloseConversation = "closeConversation"
)

// Inbound notification methods
const (
	NotifyRequestChat       = "requestChat"
	NotifyRouteCancel       = "routeCancel"
	NotifyNewParticipant    = "requestNewParticipant"
	NotifyIsTyping          = "requestIsTyping"
	NotifyNewMessage        = "requestNewMessage"
	NotifyCloseConversation = "requestCloseConversation"
	NotifyParticipantLeave  = "requestParticipantLeave"
	NotifyPing              = "ping"
)

// Participant roles as the server reports them
const (
	RoleActiveParticipant  = "active_participant"
	RolePassiveParticipant = "passive_participant"
	RoleSupervisorObserve  = "supervisor_observe"
	RoleSupervisorBarge    = "supervisor_barge"
)

// Leave reasons on a participant-leave notification
const (
	LeaveReasonTransfer       = "transfer"
	LeaveReasonRequeue        = "requeue"
	LeaveReasonEscalate       = "escalate"
	LeaveReasonTransferToUser = "transfer_to_user"
)

// Sender categories on an inbound message
const (
	SenderCustomer  = "customer"
	SenderLiveAgent = "live_agent"
	SenderBot       = "bot"
)

// Envelope is the wire frame shared by every inbound message. The body is
// left raw so the dispatcher can pick a concrete type by method.
type Envelope struct {
	APIVersion string          `json:"apiVersion"`
	Type       string          `json:"type"`
	AuthToken  string          `json:"authToken,omitempty"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// OutboundEnvelope frames a request for transmission
type OutboundEnvelope struct {
	APIVersion string `json:"apiVersion"`
	Type       string `json:"type"`
	AuthToken  string `json:"authToken,omitempty"`
	Body       any    `json:"body"`
}

// NewRequest wraps a body in a request envelope. The transport stamps the
// auth token just before transmission.
func NewRequest(body any) *OutboundEnvelope {
	return &OutboundEnvelope{
		APIVersion: APIVersion,
		Type:       TypeRequest,
		Body:       body,
	}
}

// MethodBody is the minimal body shape used to dispatch by method
type MethodBody struct {
	Method string `json:"method"`
}

// CustomField is one title/value pair carried in the login intrinsics
type CustomField struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Intrinsics carries the customer and routing attributes on a fresh login
type Intrinsics struct {
	ChannelAttribute string        `json:"channelAttribute"`
	TextDirection    string        `json:"textDirection,omitempty"`
	Attributes       []string      `json:"attributes,omitempty"`
	Email            string        `json:"email,omitempty"`
	Name             string        `json:"name,omitempty"`
	LastName         string        `json:"lastName,omitempty"`
	PhoneNumber      string        `json:"phoneNumber,omitempty"`
	Topic            string        `json:"topic,omitempty"`
	CustomFields     []CustomField `json:"customFields,omitempty"`
}

// RequestChatBody starts a brand new conversation
type RequestChatBody struct {
	Method               string            `json:"method"`
	DeviceType           string            `json:"deviceType"`
	RoutePointIdentifier string            `json:"routePointIdentifier"`
	WorkFlowType         string            `json:"workFlowType"`
	RequestTranscript    bool              `json:"requestTranscript"`
	WorkRequestID        string            `json:"workRequestId,omitempty"`
	CalledParty          string            `json:"calledParty,omitempty"`
	LeaseTime            int               `json:"leaseTime"`
	Priority             int               `json:"priority"`
	CustomData           map[string]string `json:"customData,omitempty"`
	Intrinsics           Intrinsics        `json:"intrinsics"`
}

// RenewChatBody resumes an existing conversation after a reconnect or reload
type RenewChatBody struct {
	Method                string `json:"method"`
	GUID                  string `json:"guid"`
	AuthenticationKey     string `json:"authenticationKey"`
	RequestFullTranscript bool   `json:"requestFullTranscript"`
}

// MessageData duplicates the message text inside a newMessage body
type MessageData struct {
	Message string `json:"message"`
}

// NewMessageBody carries one customer text message
type NewMessageBody struct {
	Method     string            `json:"method"`
	Message    string            `json:"message"`
	Type       string            `json:"type"`
	Data       MessageData       `json:"data"`
	CustomData map[string]string `json:"customData,omitempty"`
}

// IsTypingBody reports the customer's typing state
type IsTypingBody struct {
	Method   string `json:"method"`
	IsTyping bool   `json:"isTyping"`
}

// PingBody is the heartbeat request
type PingBody struct {
	Method string `json:"method"`
}

// CloseConversationBody ends the conversation from the customer side
type CloseConversationBody struct {
	Method string `json:"method"`
}

// ChatEstablishedBody is the server's answer to requestChat/renewChat
type ChatEstablishedBody struct {
	Method                 string          `json:"method"`
	GUID                   string          `json:"guid"`
	AuthenticationKey      string          `json:"authenticationKey"`
	WorkRequestID          string          `json:"workRequestId"`
	Intrinsics             ChatIntrinsics  `json:"intrinsics"`
	WebOnHoldComfortGroups []*ComfortGroup `json:"webOnHoldComfortGroups"`
	WebOnHoldURLs          []*URLGroup     `json:"webOnHoldURLs"`
}

// ChatIntrinsics echoes the customer identity back on login
type ChatIntrinsics struct {
	Name string `json:"name"`
}

// WireParticipant is one roster entry as the server sends it
type WireParticipant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

// NewParticipantBody announces an agent joining and carries the full roster
type NewParticipantBody struct {
	Method                string             `json:"method"`
	AgentID               string             `json:"agentId"`
	Role                  string             `json:"role"`
	DisplayName           string             `json:"displayName"`
	Participants          []*WireParticipant `json:"participants"`
	WebOnHoldComfortGroup []*ComfortGroup    `json:"webOnHoldComfortGroup"`
}

// IsTypingNotificationBody reports an agent's typing state
type IsTypingNotificationBody struct {
	Method   string `json:"method"`
	AgentID  string `json:"agentId"`
	IsTyping bool   `json:"isTyping"`
}

// NewMessageNotificationBody carries one inbound transcript message
type NewMessageNotificationBody struct {
	Method      string      `json:"method"`
	SenderType  string      `json:"senderType"`
	Message     string      `json:"message"`
	Type        string      `json:"type"`
	Data        TextPayload `json:"data"`
	DisplayName string      `json:"displayName"`
	Timestamp   int64       `json:"timestamp"`
}

// TextPayload holds the rendered text of an inbound message
type TextPayload struct {
	Text string `json:"text"`
}

// ParticipantLeaveBody announces an agent leaving and carries the remaining
// roster
type ParticipantLeaveBody struct {
	Method       string             `json:"method"`
	AgentID      string             `json:"agentId"`
	Participants []*WireParticipant `json:"participants"`
	LeaveReason  string             `json:"leaveReason"`
	EndChatFlag  bool               `json:"endChatFlag"`
}

// ErrorBody is the payload of an error envelope
type ErrorBody struct {
	Code         int    `json:"code"`
	ErrorMessage string `json:"errorMessage"`
}

// ComfortMessage is one item of an on-hold comfort group
type ComfortMessage struct {
	Sequence int    `json:"sequence"`
	Message  string `json:"message"`
}

// ComfortGroup is a cyclic set of reassurance texts replayed while the
// customer waits for an agent. Delay is in seconds.
type ComfortGroup struct {
	Delay            int               `json:"delay"`
	NumberOfMessages int               `json:"numberOfMessages"`
	Messages         []*ComfortMessage `json:"messages"`
}

// SortMessages orders the group's messages by sequence
func (g *ComfortGroup) SortMessages() {
	sort.Slice(g.Messages, func(i, j int) bool {
		return g.Messages[i].Sequence < g.Messages[j].Sequence
	})
}

// OnHoldURL is one item of an on-hold URL group
type OnHoldURL struct {
	Sequence int    `json:"sequence"`
	URL      string `json:"url"`
}

// URLGroup is a cyclic set of resource links replayed while the customer
// waits for an agent. HoldTime is in seconds.
type URLGroup struct {
	Description string       `json:"description"`
	HoldTime    int          `json:"holdTime"`
	URLs        []*OnHoldURL `json:"urls"`
}

// SortURLs orders the group's urls by sequence
func (g *URLGroup) SortURLs() {
	sort.Slice(g.URLs, func(i, j int) bool {
		return g.URLs[i].Sequence < g.URLs[j].Sequence
	})
}
