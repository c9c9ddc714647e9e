package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TypingStatus is the ephemeral per-(user, conversation) typing record.
// The stored flag alone is never trusted: a row only counts as "typing"
// while LastTypingAt is within the staleness window, so an abandoned
// true flag (client closed mid-keystroke) expires on its own.
type TypingStatus struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;uniqueIndex:idx_typing_conv_user;not null"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;uniqueIndex:idx_typing_conv_user;not null"`
	IsTyping       bool      `json:"is_typing" gorm:"not null;default:false"`
	LastTypingAt   time.Time `json:"last_typing_at" gorm:"not null"`
}

func (t *TypingStatus) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TypingWindow is how long a typing signal stays visible without refresh.
const TypingWindow = 5 * time.Second
