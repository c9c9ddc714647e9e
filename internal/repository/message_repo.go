package repository

import (
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageRepository handles database operations for Message
type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

// Create inserts a new message
func (r *MessageRepository) Create(msg *model.Message) error {
	return r.db.Create(msg).Error
}

// FindByID finds a message by ID
func (r *MessageRepository) FindByID(id uuid.UUID) (*model.Message, error) {
	var msg model.Message
	if err := r.db.Where("id = ?", id).First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns all messages of a conversation newest-first,
// with sender details preloaded.
func (r *MessageRepository) ListByConversation(conversationID uuid.UUID) ([]model.Message, error) {
	messages := []model.Message{}
	err := r.db.
		Preload("Sender").
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Find(&messages).Error
	return messages, err
}

// UpdateContent sets a message's content and marks it edited. Sender and
// conversation are never touched.
func (r *MessageRepository) UpdateContent(id uuid.UUID, content []string) error {
	return r.db.Model(&model.Message{ID: id}).
		Updates(model.Message{Content: content, IsEdited: true}).Error
}

// Delete hard-removes a message
func (r *MessageRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&model.Message{}, "id = ?", id).Error
}

// DeleteByConversation hard-removes every message of a conversation
func (r *MessageRepository) DeleteByConversation(conversationID uuid.UUID) error {
	return r.db.Where("conversation_id = ?", conversationID).Delete(&model.Message{}).Error
}

// FindLatest returns the most recent remaining message of a conversation,
// gorm.ErrRecordNotFound if the conversation is empty.
func (r *MessageRepository) FindLatest(conversationID uuid.UUID) (*model.Message, error) {
	var msg model.Message
	err := r.db.
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		First(&msg).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// CountUnseen counts messages created after the given time and not
// authored by the given user. A nil time means "never read anything":
// every foreign message counts.
func (r *MessageRepository) CountUnseen(conversationID, viewerID uuid.UUID, after *time.Time) (int64, error) {
	var count int64
	q := r.db.Model(&model.Message{}).
		Where("conversation_id = ? AND sender_id != ?", conversationID, viewerID)
	if after != nil {
		q = q.Where("created_at > ?", *after)
	}
	err := q.Count(&count).Error
	return count, err
}
