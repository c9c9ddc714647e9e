package repository

import (
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ConversationRepository handles database operations for Conversation,
// Membership and GroupLeave
type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *ConversationRepository) WithTx(tx *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: tx}
}

// Create creates a new conversation, with members if attached
func (r *ConversationRepository) Create(conv *model.Conversation) error {
	return r.db.Create(conv).Error
}

// FindByID finds a conversation by ID
func (r *ConversationRepository) FindByID(id uuid.UUID) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// Delete removes a conversation row
func (r *ConversationRepository) Delete(id uuid.UUID) error {
	return r.db.Delete(&model.Conversation{}, "id = ?", id).Error
}

// GetMembership returns the membership linking a user to a conversation,
// gorm.ErrRecordNotFound if absent. This is the authorization gate for
// every conversation-scoped operation.
func (r *ConversationRepository) GetMembership(conversationID, memberID uuid.UUID) (*model.Membership, error) {
	var m model.Membership
	err := r.db.
		Where("conversation_id = ? AND member_id = ?", conversationID, memberID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMemberships returns all memberships of a conversation with member details
func (r *ConversationRepository) GetMemberships(conversationID uuid.UUID) ([]model.Membership, error) {
	var memberships []model.Membership
	err := r.db.
		Preload("Member").
		Where("conversation_id = ?", conversationID).
		Find(&memberships).Error
	return memberships, err
}

// GetMembershipsForUser returns every membership a user holds
func (r *ConversationRepository) GetMembershipsForUser(memberID uuid.UUID) ([]model.Membership, error) {
	var memberships []model.Membership
	err := r.db.Where("member_id = ?", memberID).Find(&memberships).Error
	return memberships, err
}

// GetMemberIDs returns all member user IDs for a conversation
func (r *ConversationRepository) GetMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	var memberIDs []uuid.UUID
	err := r.db.Model(&model.Membership{}).
		Where("conversation_id = ?", conversationID).
		Pluck("member_id", &memberIDs).Error
	return memberIDs, err
}

// CountMembers counts the memberships of a conversation
func (r *ConversationRepository) CountMembers(conversationID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.Membership{}).
		Where("conversation_id = ?", conversationID).
		Count(&count).Error
	return count, err
}

// AddMember inserts a membership
func (r *ConversationRepository) AddMember(m *model.Membership) error {
	return r.db.Create(m).Error
}

// RemoveMember deletes a user's membership in a conversation
func (r *ConversationRepository) RemoveMember(conversationID, memberID uuid.UUID) error {
	return r.db.
		Where("conversation_id = ? AND member_id = ?", conversationID, memberID).
		Delete(&model.Membership{}).Error
}

// DeleteMemberships deletes all memberships of a conversation
func (r *ConversationRepository) DeleteMemberships(conversationID uuid.UUID) error {
	return r.db.Where("conversation_id = ?", conversationID).Delete(&model.Membership{}).Error
}

// UpdateLastSeen moves a member's read pointer
func (r *ConversationRepository) UpdateLastSeen(membershipID uuid.UUID, messageID *uuid.UUID) error {
	return r.db.Model(&model.Membership{}).
		Where("id = ?", membershipID).
		Update("last_seen_message_id", messageID).Error
}

// SetLastMessage updates the conversation's last-message pointer and bumps
// updated_at so lists sort by latest activity.
func (r *ConversationRepository) SetLastMessage(conversationID uuid.UUID, messageID *uuid.UUID) error {
	return r.db.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Updates(map[string]interface{}{
			"last_message_id": messageID,
			"updated_at":      time.Now(),
		}).Error
}

// CreateGroupLeave appends a leave record
func (r *ConversationRepository) CreateGroupLeave(leave *model.GroupLeave) error {
	return r.db.Create(leave).Error
}

// GetRecentLeaves returns leave records newer than the given time
func (r *ConversationRepository) GetRecentLeaves(conversationID uuid.UUID, since time.Time) ([]model.GroupLeave, error) {
	leaves := []model.GroupLeave{}
	err := r.db.
		Where("conversation_id = ? AND left_at > ?", conversationID, since).
		Order("left_at DESC").
		Find(&leaves).Error
	return leaves, err
}
