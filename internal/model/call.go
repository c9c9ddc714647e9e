package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallStatus is the lifecycle state of a call session.
type CallStatus string

const (
	CallStatusRinging   CallStatus = "ringing"
	CallStatusActive    CallStatus = "active"
	CallStatusEnded     CallStatus = "ended"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusMissed    CallStatus = "missed"
	CallStatusCancelled CallStatus = "cancelled"
)

// Terminal reports whether the status admits no further transitions.
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusEnded, CallStatusRejected, CallStatusMissed, CallStatusCancelled:
		return true
	}
	return false
}

// CallType defines the media kind of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Call is one call session tied to a conversation. RoomID is an opaque
// identifier handed to the external media service; the application only
// records session bookkeeping.
type Call struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID  `json:"conversation_id" gorm:"type:uuid;index:idx_conv_call_status;not null"`
	InitiatorID    uuid.UUID  `json:"initiator_id" gorm:"type:uuid;index;not null"`
	Status         CallStatus `json:"status" gorm:"type:varchar(20);index:idx_conv_call_status;not null"`
	Type           CallType   `json:"type" gorm:"type:varchar(10);not null"`
	RoomID         string     `json:"room_id" gorm:"size:255;not null"`
	StartedAt      time.Time  `json:"started_at" gorm:"not null"`
	AnsweredAt     *time.Time `json:"answered_at,omitempty"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	Duration       int64      `json:"duration"` // seconds, 0 if never answered

	// Relations
	Initiator    User         `json:"-" gorm:"foreignKey:InitiatorID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
	Participants []CallParticipant `json:"participants,omitempty" gorm:"foreignKey:CallID"`
}

func (c *Call) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ParticipantRole distinguishes the caller from everyone invited.
type ParticipantRole string

const (
	RoleInitiator   ParticipantRole = "initiator"
	RoleParticipant ParticipantRole = "participant"
)

// CallParticipant is one (call, user) roster entry with join/leave times.
type CallParticipant struct {
	ID       uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	CallID   uuid.UUID       `json:"call_id" gorm:"type:uuid;uniqueIndex:idx_call_user;not null"`
	UserID   uuid.UUID       `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_call_user;index;not null"`
	Role     ParticipantRole `json:"role" gorm:"type:varchar(20);not null"`
	JoinedAt *time.Time      `json:"joined_at,omitempty"`
	LeftAt   *time.Time      `json:"left_at,omitempty"`

	// Relations
	Call Call `json:"-" gorm:"foreignKey:CallID"`
	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (p *CallParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
