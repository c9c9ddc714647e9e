package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Conversation represents a direct (2-party) or group (N-party) thread.
// LastMessageID is maintained transactionally alongside every message
// insert/delete so conversation previews never go stale.
type Conversation struct {
	ID            uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	Name          string     `json:"name,omitempty" gorm:"size:100"` // group name, empty for direct
	IsGroup       bool       `json:"is_group" gorm:"not null;default:false"`
	LastMessageID *uuid.UUID `json:"last_message_id,omitempty" gorm:"type:uuid"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`

	// Relations
	Members []Membership `json:"members,omitempty" gorm:"foreignKey:ConversationID"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Membership links a user to a conversation and carries their read
// position. A direct conversation always has exactly two memberships.
type Membership struct {
	ID                uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID    uuid.UUID  `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_conv_member;not null"`
	MemberID          uuid.UUID  `json:"member_id" gorm:"type:uuid;uniqueIndex:idx_conv_member;not null"`
	LastSeenMessageID *uuid.UUID `json:"last_seen_message_id,omitempty" gorm:"type:uuid"`
	CreatedAt         time.Time  `json:"created_at"`

	// Relations
	Member       User         `json:"member,omitempty" gorm:"foreignKey:MemberID"`
	Conversation Conversation `json:"-" gorm:"foreignKey:ConversationID"`
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// GroupLeave is a historical record of a user leaving a group. Rows are
// append-only; reads are windowed to the last 24 hours. Username is a
// snapshot so the record survives account deletion.
type GroupLeave struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;index;not null"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;index;not null"`
	Username       string    `json:"username" gorm:"size:100;not null"`
	LeftAt         time.Time `json:"left_at" gorm:"not null"`
}

func (g *GroupLeave) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}
