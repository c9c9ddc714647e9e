package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageType defines the type of message content
type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeImage  MessageType = "image"
	MessageTypeFile   MessageType = "file"
	MessageTypeAudio  MessageType = "audio"
	MessageTypeSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	switch t {
	case MessageTypeText, MessageTypeImage, MessageTypeFile, MessageTypeAudio, MessageTypeSystem:
		return true
	}
	return false
}

// Message is one entry in a conversation's append-only message ledger.
// Content is an ordered list of strings: text segments for text/system
// messages, attachment URLs for the rest. Editing may change Content and
// IsEdited only; sender and conversation are immutable after insert.
type Message struct {
	ID             uuid.UUID   `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID   `json:"conversation_id" gorm:"type:uuid;index;not null"`
	SenderID       uuid.UUID   `json:"sender_id" gorm:"type:uuid;index;not null"`
	Type           MessageType `json:"type" gorm:"type:varchar(20);default:'text'"`
	Content        []string    `json:"content" gorm:"serializer:json"`
	IsEdited       bool        `json:"is_edited" gorm:"not null;default:false"`
	ReplyToID      *uuid.UUID  `json:"reply_to_id,omitempty" gorm:"type:uuid"`
	IsSystem       bool        `json:"is_system" gorm:"not null;default:false"`
	CreatedAt      time.Time   `json:"created_at" gorm:"index"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// Relations
	Sender  User     `json:"-" gorm:"foreignKey:SenderID"`
	ReplyTo *Message `json:"reply_to,omitempty" gorm:"foreignKey:ReplyToID"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// Body returns the message content as a tagged variant so callers never
// interpret the raw content list against the type string themselves.
func (m *Message) Body() MessageBody {
	switch m.Type {
	case MessageTypeText:
		return TextBody{Segments: m.Content}
	case MessageTypeSystem:
		text := ""
		if len(m.Content) > 0 {
			text = m.Content[0]
		}
		return SystemBody{Text: text}
	default:
		return AttachmentBody{Kind: m.Type, URLs: m.Content}
	}
}

// Preview returns the one-line summary used in conversation lists.
// Non-text content collapses to a fixed placeholder.
func (m *Message) Preview() string {
	switch body := m.Body().(type) {
	case TextBody:
		if len(body.Segments) > 0 {
			return body.Segments[0]
		}
		return ""
	case SystemBody:
		return body.Text
	default:
		return "[Non-text]"
	}
}

// MessageBody is the tagged-variant view of a message's content.
type MessageBody interface {
	isMessageBody()
}

// TextBody carries the text segments of a text message.
type TextBody struct {
	Segments []string
}

// AttachmentBody carries the attachment URLs of an image/file/audio message.
type AttachmentBody struct {
	Kind MessageType
	URLs []string
}

// SystemBody carries the text of an event-authored message (join/leave).
type SystemBody struct {
	Text string
}

func (TextBody) isMessageBody()       {}
func (AttachmentBody) isMessageBody() {}
func (SystemBody) isMessageBody()     {}
