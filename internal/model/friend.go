package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Friendship is an accepted mutual relation between two users. It is
// created atomically with its direct conversation and both rows are
// always deleted together.
type Friendship struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	User1ID        uuid.UUID `json:"user1_id" gorm:"type:uuid;index;not null"`
	User2ID        uuid.UUID `json:"user2_id" gorm:"type:uuid;index;not null"`
	ConversationID uuid.UUID `json:"conversation_id" gorm:"type:uuid;uniqueIndex;not null"`
	CreatedAt      time.Time `json:"created_at"`

	// Relations
	User1 User `json:"-" gorm:"foreignKey:User1ID"`
	User2 User `json:"-" gorm:"foreignKey:User2ID"`
}

func (f *Friendship) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// FriendRequest is a pending friend request. At most one pending row may
// exist per ordered (sender, receiver) pair, and no reciprocal pending
// pair may coexist; the row is deleted on accept/deny/cancel.
type FriendRequest struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID   uuid.UUID `json:"sender_id" gorm:"type:uuid;uniqueIndex:idx_sender_receiver;not null"`
	ReceiverID uuid.UUID `json:"receiver_id" gorm:"type:uuid;uniqueIndex:idx_sender_receiver;index;not null"`
	CreatedAt  time.Time `json:"created_at"`

	// Relations
	Sender   User `json:"sender,omitempty" gorm:"foreignKey:SenderID"`
	Receiver User `json:"receiver,omitempty" gorm:"foreignKey:ReceiverID"`
}

func (r *FriendRequest) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
