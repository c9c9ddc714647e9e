package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// CallService owns the per-conversation call lifecycle:
//
//	ringing → active → ended
//	ringing → rejected | cancelled | missed
//
// RoomID is an opaque handle for the external media service; the service
// never speaks the media protocol, only records session bookkeeping.
type CallService struct {
	db       *gorm.DB
	callRepo *repository.CallRepository
	convRepo *repository.ConversationRepository
	userRepo *repository.UserRepository

	ringTimeout time.Duration
	now         func() time.Time
}

func NewCallService(
	db *gorm.DB,
	callRepo *repository.CallRepository,
	convRepo *repository.ConversationRepository,
	userRepo *repository.UserRepository,
	ringTimeout time.Duration,
) *CallService {
	return &CallService{
		db:          db,
		callRepo:    callRepo,
		convRepo:    convRepo,
		userRepo:    userRepo,
		ringTimeout: ringTimeout,
		now:         time.Now,
	}
}

func (s *CallService) findCall(id uuid.UUID) (*model.Call, error) {
	call, err := s.callRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return call, nil
}

// Initiate starts a ringing call in a conversation the caller belongs
// to, with one roster entry per conversation member. Refused while an
// active call exists in the conversation.
func (s *CallService) Initiate(caller *model.User, conversationID uuid.UUID, callType model.CallType) (*model.Call, error) {
	if _, err := s.convRepo.GetMembership(conversationID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	if active, err := s.callRepo.HasActiveCall(conversationID); err != nil {
		return nil, err
	} else if active {
		return nil, ErrCallInProgress
	}

	memberIDs, err := s.convRepo.GetMemberIDs(conversationID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	call := &model.Call{
		ConversationID: conversationID,
		InitiatorID:    caller.ID,
		Status:         model.CallStatusRinging,
		Type:           callType,
		RoomID:         fmt.Sprintf("call_%s_%d", conversationID, now.UnixMilli()),
		StartedAt:      now,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		callRepo := s.callRepo.WithTx(tx)
		if err := callRepo.Create(call); err != nil {
			return err
		}
		for _, memberID := range memberIDs {
			role := model.RoleParticipant
			if memberID == caller.ID {
				role = model.RoleInitiator
			}
			if err := callRepo.CreateParticipant(&model.CallParticipant{
				CallID: call.ID,
				UserID: memberID,
				Role:   role,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return call, nil
}

// Answer transitions a ringing call to active, stamping the call's
// answered time and the answering participant's join time.
func (s *CallService) Answer(caller *model.User, callID uuid.UUID) (*model.Call, error) {
	call, err := s.findCall(callID)
	if err != nil {
		return nil, err
	}
	if call.Status != model.CallStatusRinging {
		return nil, ErrInvalidCallState
	}

	now := s.now()
	err = s.db.Transaction(func(tx *gorm.DB) error {
		callRepo := s.callRepo.WithTx(tx)
		if err := callRepo.UpdateCall(callID, map[string]interface{}{
			"status":      model.CallStatusActive,
			"answered_at": now,
		}); err != nil {
			return err
		}
		participant, err := callRepo.FindParticipant(callID, caller.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		return callRepo.UpdateParticipant(participant.ID, map[string]interface{}{
			"joined_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.findCall(callID)
}

// Reject transitions a ringing call to rejected
func (s *CallService) Reject(caller *model.User, callID uuid.UUID) (*model.Call, error) {
	call, err := s.findCall(callID)
	if err != nil {
		return nil, err
	}
	if call.Status != model.CallStatusRinging {
		return nil, ErrInvalidCallState
	}
	if err := s.callRepo.UpdateCall(callID, map[string]interface{}{
		"status":   model.CallStatusRejected,
		"ended_at": s.now(),
	}); err != nil {
		return nil, err
	}
	return s.findCall(callID)
}

// Cancel transitions a ringing call to cancelled; only the initiator may
// cancel.
func (s *CallService) Cancel(caller *model.User, callID uuid.UUID) (*model.Call, error) {
	call, err := s.findCall(callID)
	if err != nil {
		return nil, err
	}
	if call.Status != model.CallStatusRinging {
		return nil, ErrInvalidCallState
	}
	if call.InitiatorID != caller.ID {
		return nil, ErrNotInitiator
	}
	if err := s.callRepo.UpdateCall(callID, map[string]interface{}{
		"status":   model.CallStatusCancelled,
		"ended_at": s.now(),
	}); err != nil {
		return nil, err
	}
	return s.findCall(callID)
}

// End finishes a call from any non-terminal state. Duration is the time
// between answer and end in whole seconds, zero when the call was never
// answered. The ending participant's leave time is stamped if unset.
func (s *CallService) End(caller *model.User, callID uuid.UUID) (*model.Call, error) {
	call, err := s.findCall(callID)
	if err != nil {
		return nil, err
	}
	if call.Status.Terminal() {
		return nil, ErrInvalidCallState
	}

	now := s.now()
	var duration int64
	if call.AnsweredAt != nil {
		duration = int64(now.Sub(*call.AnsweredAt).Seconds())
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		callRepo := s.callRepo.WithTx(tx)
		if err := callRepo.UpdateCall(callID, map[string]interface{}{
			"status":   model.CallStatusEnded,
			"ended_at": now,
			"duration": duration,
		}); err != nil {
			return err
		}
		participant, err := callRepo.FindParticipant(callID, caller.ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if participant.LeftAt != nil {
			return nil
		}
		return callRepo.UpdateParticipant(participant.ID, map[string]interface{}{
			"left_at": now,
		})
	})
	if err != nil {
		return nil, err
	}
	return s.findCall(callID)
}

// ActiveForUser returns every ringing or active call the user has a
// roster entry for, joined with initiator and conversation info. This is
// the sole feed for incoming-call notifications and in-progress-call UI.
func (s *CallService) ActiveForUser(caller *model.User) ([]model.ActiveCall, error) {
	participations, err := s.callRepo.ListParticipations(caller.ID)
	if err != nil {
		return nil, err
	}

	active := []model.ActiveCall{}
	for _, participation := range participations {
		call, err := s.callRepo.FindByID(participation.CallID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		if call.Status != model.CallStatusRinging && call.Status != model.CallStatusActive {
			continue
		}

		initiator, err := s.userRepo.FindByID(call.InitiatorID)
		if err != nil {
			return nil, err
		}
		conversation, err := s.convRepo.FindByID(call.ConversationID)
		if err != nil {
			return nil, err
		}
		active = append(active, model.ActiveCall{
			Call:          *call,
			Participation: participation,
			Initiator:     *initiator,
			Conversation:  *conversation,
		})
	}
	return active, nil
}

// SweepMissed transitions ringing calls older than the ring timeout to
// missed and returns them. Run periodically; clients that crashed or
// backgrounded never cancel their rings themselves.
func (s *CallService) SweepMissed() ([]model.Call, error) {
	now := s.now()
	stale, err := s.callRepo.ListRingingBefore(now.Add(-s.ringTimeout))
	if err != nil {
		return nil, err
	}

	missed := []model.Call{}
	for _, call := range stale {
		if err := s.callRepo.UpdateCall(call.ID, map[string]interface{}{
			"status":   model.CallStatusMissed,
			"ended_at": now,
		}); err != nil {
			return missed, err
		}
		call.Status = model.CallStatusMissed
		call.EndedAt = &now
		missed = append(missed, call)
		log.Info().Str("call_id", call.ID.String()).Msg("ringing call marked missed")
	}
	return missed, nil
}
