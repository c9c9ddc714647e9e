package service

import (
	"errors"
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PresenceService tracks online/offline state and per-conversation typing
// signals. Typing freshness is a read-time predicate over the last-typing
// timestamp; no server-side timer ever expires the flag.
type PresenceService struct {
	userRepo   *repository.UserRepository
	convRepo   *repository.ConversationRepository
	typingRepo *repository.TypingRepository

	now func() time.Time
}

func NewPresenceService(
	userRepo *repository.UserRepository,
	convRepo *repository.ConversationRepository,
	typingRepo *repository.TypingRepository,
) *PresenceService {
	return &PresenceService{
		userRepo:   userRepo,
		convRepo:   convRepo,
		typingRepo: typingRepo,
		now:        time.Now,
	}
}

// SetOnline upserts the caller's online flag and refreshes last-seen
func (s *PresenceService) SetOnline(caller *model.User, isOnline bool) error {
	return s.userRepo.UpdateOnlineStatus(caller.ID, isOnline)
}

// GetUserStatus returns a user's online flag and last-seen timestamp
func (s *PresenceService) GetUserStatus(userID uuid.UUID) (*model.UserStatus, error) {
	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &model.UserStatus{IsOnline: user.IsOnline, LastSeen: user.LastSeen}, nil
}

// GetOnlineUsers returns every user currently flagged online
func (s *PresenceService) GetOnlineUsers() ([]model.User, error) {
	return s.userRepo.ListOnline()
}

// SetTyping overwrites the caller's typing record for a conversation.
// The client re-sends a false signal after input goes quiet; the server
// only stores what it was told, stamped with the current time.
func (s *PresenceService) SetTyping(caller *model.User, conversationID uuid.UUID, isTyping bool) error {
	if _, err := s.convRepo.GetMembership(conversationID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}
	return s.typingRepo.Upsert(&model.TypingStatus{
		ConversationID: conversationID,
		UserID:         caller.ID,
		IsTyping:       isTyping,
		LastTypingAt:   s.now(),
	})
}

// GetTypingUsers returns the members currently typing in a conversation,
// caller excluded. A record counts only while its timestamp is inside the
// staleness window; an abandoned true flag is never reported.
func (s *PresenceService) GetTypingUsers(caller *model.User, conversationID uuid.UUID) ([]model.TypingUser, error) {
	if _, err := s.convRepo.GetMembership(conversationID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}

	statuses, err := s.typingRepo.ListActive(conversationID, s.now().Add(-model.TypingWindow))
	if err != nil {
		return nil, err
	}

	typing := []model.TypingUser{}
	for _, status := range statuses {
		if status.UserID == caller.ID {
			continue
		}
		user, err := s.userRepo.FindByID(status.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}
		typing = append(typing, model.TypingUser{
			Username: user.Username,
			ImgURL:   user.ImgURL,
		})
	}
	return typing, nil
}
