package model

import (
	"time"

	"github.com/google/uuid"
)

// ========== Conversation DTOs ==========

type CreateGroupRequest struct {
	Name      string      `json:"name" binding:"required,min=1,max=100"`
	MemberIDs []uuid.UUID `json:"member_ids" binding:"required,min=1"`
}

type AddMembersRequest struct {
	MemberIDs []uuid.UUID `json:"member_ids" binding:"required,min=1"`
}

type MarkReadRequest struct {
	MessageID uuid.UUID `json:"message_id" binding:"required"`
}

// OtherMember is a conversation peer with their read position.
type OtherMember struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username"`
	Email             string     `json:"email"`
	ImgURL            string     `json:"img_url"`
	IsOnline          bool       `json:"is_online"`
	LastSeen          *time.Time `json:"last_seen,omitempty"`
	LastSeenMessageID *uuid.UUID `json:"last_seen_message_id,omitempty"`
}

// ConversationDetail is the single-conversation view: the conversation
// plus the resolved other side (one member for direct, many for groups).
type ConversationDetail struct {
	Conversation Conversation  `json:"conversation"`
	OtherMember  *OtherMember  `json:"other_member,omitempty"`  // direct only
	OtherMembers []OtherMember `json:"other_members,omitempty"` // group only
}

// LastMessagePreview summarizes a conversation's last message.
type LastMessagePreview struct {
	Sender    string    `json:"sender"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationListItem is one entry of the conversation list, annotated
// with preview and unseen count.
type ConversationListItem struct {
	Conversation Conversation        `json:"conversation"`
	OtherMember  *OtherMember        `json:"other_member,omitempty"` // direct only
	LastMessage  *LastMessagePreview `json:"last_message,omitempty"`
	UnseenCount  int64               `json:"unseen_count"`
}

// GroupMemberInfo is one row of the group info panel.
type GroupMemberInfo struct {
	ID                uuid.UUID  `json:"id"`
	Username          string     `json:"username"`
	ImgURL            string     `json:"img_url"`
	LastSeenMessageID *uuid.UUID `json:"last_seen_message_id,omitempty"`
}

// GroupInfo is the group panel: current members plus leaves from the
// last 24 hours.
type GroupInfo struct {
	Members      []GroupMemberInfo `json:"members"`
	RecentLeaves []GroupLeave      `json:"recent_leaves"`
	IsGroup      bool              `json:"is_group"`
}

// ========== Message DTOs ==========

type SendMessageRequest struct {
	Type    MessageType `json:"type" binding:"required"`
	Content []string    `json:"content" binding:"required,min=1"`
	ReplyTo *uuid.UUID  `json:"reply_to,omitempty"`
}

type EditMessageRequest struct {
	Content []string `json:"content" binding:"required,min=1"`
}

// MessageWithSender joins a message with its sender's display info.
type MessageWithSender struct {
	Message       Message `json:"message"`
	SenderName    string  `json:"sender_name"`
	SenderImage   string  `json:"sender_image"`
	IsCurrentUser bool    `json:"is_current_user"`
}

// ========== Friend / Request DTOs ==========

type SendFriendRequestRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// RequestWithSender is a received request joined with sender details.
type RequestWithSender struct {
	Request FriendRequest `json:"request"`
	Sender  User          `json:"sender"`
}

// RequestWithReceiver is a sent request joined with receiver details.
type RequestWithReceiver struct {
	Request  FriendRequest `json:"request"`
	Receiver User          `json:"receiver"`
}

// FriendItem is one friend joined with the shared direct conversation.
type FriendItem struct {
	Friend         User      `json:"friend"`
	ConversationID uuid.UUID `json:"conversation_id"`
}

// ========== Presence / Typing DTOs ==========

type SetOnlineRequest struct {
	IsOnline *bool `json:"is_online" binding:"required"`
}

type SetTypingRequest struct {
	IsTyping *bool `json:"is_typing" binding:"required"`
}

type UserStatus struct {
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// TypingUser is one currently-typing member, caller excluded.
type TypingUser struct {
	Username string `json:"username"`
	ImgURL   string `json:"img_url"`
}

// ========== Call DTOs ==========

type InitiateCallRequest struct {
	Type CallType `json:"type" binding:"required,oneof=audio video"`
}

type InitiateCallResponse struct {
	CallID uuid.UUID `json:"call_id"`
	RoomID string    `json:"room_id"`
}

type AnswerCallResponse struct {
	RoomID string `json:"room_id"`
}

// ActiveCall is one ringing/active call joined with initiator and
// conversation info; the sole feed for incoming-call notification UI.
type ActiveCall struct {
	Call          Call            `json:"call"`
	Participation CallParticipant `json:"participation"`
	Initiator     User            `json:"initiator"`
	Conversation  Conversation    `json:"conversation"`
}

// ========== Auth DTOs ==========

// ExchangeTokenRequest trades a provider principal id for an API token.
// Sent server-to-server by the front end after it has verified the
// provider session itself.
type ExchangeTokenRequest struct {
	ExternalID string `json:"external_id" binding:"required"`
}

type TokenResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ========== Device DTOs ==========

type RegisterDeviceRequest struct {
	FCMToken   string `json:"fcm_token" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

// ========== WebSocket Event DTOs ==========

// WSEvent is the envelope pushed to subscribed clients whenever a
// mutation changes state they can see.
type WSEvent struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// WebSocket event types
const (
	WSEventNewMessage          = "new_message"
	WSEventMessageEdited       = "message_edited"
	WSEventMessageDeleted      = "message_deleted"
	WSEventConversationUpdated = "conversation_updated"
	WSEventMemberAdded         = "member_added"
	WSEventMemberLeft          = "member_left"
	WSEventTyping              = "typing"
	WSEventStopTyping          = "stop_typing"
	WSEventOnline              = "online"
	WSEventOffline             = "offline"
	WSEventMessageRead         = "message_read"
	WSEventFriendRequest       = "friend_request"
	WSEventFriendAccepted      = "friend_accepted"
	WSEventIncomingCall        = "incoming_call"
	WSEventCallOffer           = "call_offer"
	WSEventCallAnswer          = "call_answer"
	WSEventCallICE             = "call_ice"
	WSEventCallHangup          = "call_hangup"
	WSEventCallAnswered        = "call_answered"
	WSEventCallRejected        = "call_rejected"
	WSEventCallCancelled       = "call_cancelled"
	WSEventCallEnded           = "call_ended"
	WSEventCallMissed          = "call_missed"
)

type TypingEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	UserID         uuid.UUID `json:"user_id"`
	Username       string    `json:"username"`
}

type OnlineEvent struct {
	UserID   uuid.UUID `json:"user_id"`
	IsOnline bool      `json:"is_online"`
}

type MessageReadEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	UserID         uuid.UUID `json:"user_id"`
}

type MessageDeletedEvent struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
}

type CallEvent struct {
	CallID         uuid.UUID  `json:"call_id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	InitiatorID    uuid.UUID  `json:"initiator_id"`
	Status         CallStatus `json:"status"`
	Type           CallType   `json:"type"`
	RoomID         string     `json:"room_id"`
}

// ========== Upload DTOs ==========

type UploadResponse struct {
	URL      string `json:"url"`
	FileName string `json:"file_name"`
	FileSize int64  `json:"file_size"`
	MimeType string `json:"mime_type"`
}

// ========== Common ==========

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
