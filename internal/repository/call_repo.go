package repository

import (
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CallRepository handles database operations for Call and CallParticipant
type CallRepository struct {
	db *gorm.DB
}

func NewCallRepository(db *gorm.DB) *CallRepository {
	return &CallRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction
func (r *CallRepository) WithTx(tx *gorm.DB) *CallRepository {
	return &CallRepository{db: tx}
}

// Create inserts a call row
func (r *CallRepository) Create(call *model.Call) error {
	return r.db.Create(call).Error
}

// FindByID finds a call by ID
func (r *CallRepository) FindByID(id uuid.UUID) (*model.Call, error) {
	var call model.Call
	if err := r.db.Where("id = ?", id).First(&call).Error; err != nil {
		return nil, err
	}
	return &call, nil
}

// HasActiveCall reports whether an active-status call exists for the
// conversation. Ringing calls do not block a new initiation; stale rings
// are reclaimed by the missed-call sweep.
func (r *CallRepository) HasActiveCall(conversationID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.Model(&model.Call{}).
		Where("conversation_id = ? AND status = ?", conversationID, model.CallStatusActive).
		Count(&count).Error
	return count > 0, err
}

// UpdateCall applies the given field updates to a call
func (r *CallRepository) UpdateCall(id uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.Call{}).Where("id = ?", id).Updates(updates).Error
}

// ListRingingBefore returns ringing calls started before the cutoff; used
// by the missed-call sweep.
func (r *CallRepository) ListRingingBefore(cutoff time.Time) ([]model.Call, error) {
	calls := []model.Call{}
	err := r.db.
		Where("status = ? AND started_at < ?", model.CallStatusRinging, cutoff).
		Find(&calls).Error
	return calls, err
}

// CreateParticipant inserts a call roster entry
func (r *CallRepository) CreateParticipant(p *model.CallParticipant) error {
	return r.db.Create(p).Error
}

// FindParticipant finds the roster entry for a (call, user) pair
func (r *CallRepository) FindParticipant(callID, userID uuid.UUID) (*model.CallParticipant, error) {
	var p model.CallParticipant
	err := r.db.Where("call_id = ? AND user_id = ?", callID, userID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateParticipant applies the given field updates to a roster entry
func (r *CallRepository) UpdateParticipant(id uuid.UUID, updates map[string]interface{}) error {
	return r.db.Model(&model.CallParticipant{}).Where("id = ?", id).Updates(updates).Error
}

// ListParticipations returns every roster entry a user holds
func (r *CallRepository) ListParticipations(userID uuid.UUID) ([]model.CallParticipant, error) {
	participations := []model.CallParticipant{}
	err := r.db.Where("user_id = ?", userID).Find(&participations).Error
	return participations, err
}
