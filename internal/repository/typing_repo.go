package repository

import (
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TypingRepository handles database operations for TypingStatus
type TypingRepository struct {
	db *gorm.DB
}

func NewTypingRepository(db *gorm.DB) *TypingRepository {
	return &TypingRepository{db: db}
}

// Upsert overwrites the typing record for a (user, conversation) pair
func (r *TypingRepository) Upsert(status *model.TypingStatus) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "conversation_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"is_typing":      status.IsTyping,
			"last_typing_at": status.LastTypingAt,
		}),
	}).Create(status).Error
}

// ListActive returns typing records in a conversation with isTyping set
// and a last-typing timestamp newer than the given time.
func (r *TypingRepository) ListActive(conversationID uuid.UUID, since time.Time) ([]model.TypingStatus, error) {
	statuses := []model.TypingStatus{}
	err := r.db.
		Where("conversation_id = ? AND is_typing = ? AND last_typing_at > ?",
			conversationID, true, since).
		Find(&statuses).Error
	return statuses, err
}
