package service

import (
	"errors"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FriendService owns the friend-request workflow: the pending-request
// state machine and the friendship/direct-conversation pairing it
// produces.
type FriendService struct {
	db         *gorm.DB
	friendRepo *repository.FriendRepository
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
	userRepo   *repository.UserRepository
}

func NewFriendService(
	db *gorm.DB,
	friendRepo *repository.FriendRepository,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
) *FriendService {
	return &FriendService{
		db:         db,
		friendRepo: friendRepo,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
		userRepo:   userRepo,
	}
}

// SendRequest creates a pending request addressed to the user owning the
// given email. Guards: no self-requests, no duplicate pending request in
// either direction, no requests between existing friends.
func (s *FriendService) SendRequest(caller *model.User, email string) (*model.FriendRequest, *model.User, error) {
	if caller.Email == email {
		return nil, nil, ErrSelfRequest
	}

	receiver, err := s.userRepo.FindByEmail(email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}

	if exists, err := s.friendRepo.RequestExists(caller.ID, receiver.ID); err != nil {
		return nil, nil, err
	} else if exists {
		return nil, nil, ErrDuplicateRequest
	}
	if exists, err := s.friendRepo.RequestExists(receiver.ID, caller.ID); err != nil {
		return nil, nil, err
	} else if exists {
		return nil, nil, ErrDuplicateRequest
	}

	if friends, err := s.friendRepo.AreFriends(caller.ID, receiver.ID); err != nil {
		return nil, nil, err
	} else if friends {
		return nil, nil, ErrAlreadyFriends
	}

	request := &model.FriendRequest{
		SenderID:   caller.ID,
		ReceiverID: receiver.ID,
	}
	if err := s.friendRepo.CreateRequest(request); err != nil {
		return nil, nil, err
	}
	return request, receiver, nil
}

// Accept turns a pending request into a friendship: one direct
// conversation, one friendship row, two memberships, request deleted —
// all four effects in one transaction.
func (s *FriendService) Accept(caller *model.User, requestID uuid.UUID) (*model.Conversation, error) {
	request, err := s.friendRepo.FindRequestByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if request.ReceiverID != caller.ID {
		return nil, ErrNotFound
	}

	conv := &model.Conversation{IsGroup: false}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		convRepo := s.convRepo.WithTx(tx)
		friendRepo := s.friendRepo.WithTx(tx)

		if err := convRepo.Create(conv); err != nil {
			return err
		}
		if err := friendRepo.CreateFriendship(&model.Friendship{
			User1ID:        caller.ID,
			User2ID:        request.SenderID,
			ConversationID: conv.ID,
		}); err != nil {
			return err
		}
		for _, memberID := range []uuid.UUID{caller.ID, request.SenderID} {
			membership := &model.Membership{
				ConversationID: conv.ID,
				MemberID:       memberID,
			}
			if err := convRepo.AddMember(membership); err != nil {
				return err
			}
			conv.Members = append(conv.Members, *membership)
		}
		return friendRepo.DeleteRequest(request.ID)
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Deny removes a pending request addressed to the caller
func (s *FriendService) Deny(caller *model.User, requestID uuid.UUID) error {
	request, err := s.friendRepo.FindRequestByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if request.ReceiverID != caller.ID {
		return ErrNotFound
	}
	return s.friendRepo.DeleteRequest(request.ID)
}

// CancelSent removes a pending request the caller sent
func (s *FriendService) CancelSent(caller *model.User, requestID uuid.UUID) error {
	request, err := s.friendRepo.FindRequestByID(requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if request.SenderID != caller.ID {
		return ErrNotFound
	}
	return s.friendRepo.DeleteRequest(request.ID)
}

// ListReceived returns pending requests addressed to the caller with
// sender details
func (s *FriendService) ListReceived(caller *model.User) ([]model.RequestWithSender, error) {
	requests, err := s.friendRepo.ListReceivedRequests(caller.ID)
	if err != nil {
		return nil, err
	}
	result := make([]model.RequestWithSender, 0, len(requests))
	for _, req := range requests {
		result = append(result, model.RequestWithSender{Request: req, Sender: req.Sender})
	}
	return result, nil
}

// ListSent returns pending requests the caller has sent with receiver
// details
func (s *FriendService) ListSent(caller *model.User) ([]model.RequestWithReceiver, error) {
	requests, err := s.friendRepo.ListSentRequests(caller.ID)
	if err != nil {
		return nil, err
	}
	result := make([]model.RequestWithReceiver, 0, len(requests))
	for _, req := range requests {
		result = append(result, model.RequestWithReceiver{Request: req, Receiver: req.Receiver})
	}
	return result, nil
}

// CountReceived counts pending requests addressed to the caller
func (s *FriendService) CountReceived(caller *model.User) (int64, error) {
	return s.friendRepo.CountReceivedRequests(caller.ID)
}

// ListFriends returns the caller's friends, each with the shared direct
// conversation id
func (s *FriendService) ListFriends(caller *model.User) ([]model.FriendItem, error) {
	friendships, err := s.friendRepo.ListFriendships(caller.ID)
	if err != nil {
		return nil, err
	}

	items := make([]model.FriendItem, 0, len(friendships))
	for _, f := range friendships {
		friendID := f.User1ID
		if friendID == caller.ID {
			friendID = f.User2ID
		}
		friend, err := s.userRepo.FindByID(friendID)
		if err != nil {
			return nil, err
		}
		items = append(items, model.FriendItem{
			Friend:         *friend,
			ConversationID: f.ConversationID,
		})
	}
	return items, nil
}

// DeleteFriend removes a friendship together with its direct
// conversation, its messages and both memberships, atomically.
func (s *FriendService) DeleteFriend(caller *model.User, conversationID uuid.UUID) error {
	conv, err := s.convRepo.FindByID(conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if _, err := s.convRepo.GetMembership(conv.ID, caller.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotMember
		}
		return err
	}

	count, err := s.convRepo.CountMembers(conv.ID)
	if err != nil {
		return err
	}
	if count != 2 {
		return ErrInvalidMembers
	}

	friendship, err := s.friendRepo.FindFriendshipByConversation(conv.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).DeleteByConversation(conv.ID); err != nil {
			return err
		}
		if err := s.convRepo.WithTx(tx).DeleteMemberships(conv.ID); err != nil {
			return err
		}
		if err := s.friendRepo.WithTx(tx).DeleteFriendship(friendship.ID); err != nil {
			return err
		}
		return s.convRepo.WithTx(tx).Delete(conv.ID)
	})
}
