package repository

import (
	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendRepository handles database operations for Friendship and
// FriendRequest
type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *FriendRepository) WithTx(tx *gorm.DB) *FriendRepository {
	return &FriendRepository{db: tx}
}

// ========== Requests ==========

// CreateRequest inserts a pending friend request
func (r *FriendRepository) CreateRequest(req *model.FriendRequest) error {
	return r.db.Create(req).Error
}

// FindRequestByID finds a request by ID
func (r *FriendRepository) FindRequestByID(id uuid.UUID) (*model.FriendRequest, error) {
	var req model.FriendRequest
	if err := r.db.Where("id = ?", id).First(&req).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// RequestExists reports whether a pending request from sender to receiver exists
func (r *FriendRepository) RequestExists(senderID, receiverID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.FriendRequest{}).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Count(&count).Error
	return count > 0, err
}

// ListReceivedRequests returns pending requests addressed to a user, with
// sender details
func (r *FriendRepository) ListReceivedRequests(receiverID uuid.UUID) ([]model.FriendRequest, error) {
	requests := []model.FriendRequest{}
	err := r.db.
		Preload("Sender").
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// ListSentRequests returns pending requests a user has sent, with receiver
// details
func (r *FriendRepository) ListSentRequests(senderID uuid.UUID) ([]model.FriendRequest, error) {
	requests := []model.FriendRequest{}
	err := r.db.
		Preload("Receiver").
		Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Find(&requests).Error
	return requests, err
}

// CountReceivedRequests counts pending requests addressed to a user
func (r *FriendRepository) CountReceivedRequests(receiverID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&model.FriendRequest{}).
		Where("receiver_id = ?", receiverID).
		Count(&count).Error
	return count, err
}

// DeleteRequest removes a request row
func (r *FriendRepository) DeleteRequest(id uuid.UUID) error {
	return r.db.Delete(&model.FriendRequest{}, "id = ?", id).Error
}

// DeleteRequestsForUser removes every request a user is party to
func (r *FriendRepository) DeleteRequestsForUser(userID uuid.UUID) error {
	return r.db.
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Delete(&model.FriendRequest{}).Error
}

// ========== Friendships ==========

// CreateFriendship inserts a friendship row
func (r *FriendRepository) CreateFriendship(f *model.Friendship) error {
	return r.db.Create(f).Error
}

// AreFriends reports whether a friendship exists between two users in
// either order
func (r *FriendRepository) AreFriends(userA, userB uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Friendship{}).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)",
			userA, userB, userB, userA).
		Count(&count).Error
	return count > 0, err
}

// FindFriendshipByConversation finds the friendship paired with a direct
// conversation
func (r *FriendRepository) FindFriendshipByConversation(conversationID uuid.UUID) (*model.Friendship, error) {
	var f model.Friendship
	err := r.db.Where("conversation_id = ?", conversationID).First(&f).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// ListFriendships returns every friendship a user is party to
func (r *FriendRepository) ListFriendships(userID uuid.UUID) ([]model.Friendship, error) {
	friendships := []model.Friendship{}
	err := r.db.
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Find(&friendships).Error
	return friendships, err
}

// DeleteFriendship removes a friendship row
func (r *FriendRepository) DeleteFriendship(id uuid.UUID) error {
	return r.db.Delete(&model.Friendship{}, "id = ?", id).Error
}
