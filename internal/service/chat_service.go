package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// groupLeaveWindow bounds how far back recent-leave records are shown.
const groupLeaveWindow = 24 * time.Hour

// ChatService owns the conversation directory, the membership ledger and
// the message ledger. Every operation takes the resolved caller identity
// explicitly and re-validates membership before touching shared state.
type ChatService struct {
	db       *gorm.DB
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
	userRepo *repository.UserRepository
}

func NewChatService(
	db *gorm.DB,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
	userRepo *repository.UserRepository,
) *ChatService {
	return &ChatService{
		db:       db,
		convRepo: convRepo,
		msgRepo:  msgRepo,
		userRepo: userRepo,
	}
}

// requireMembership is the authorization gate for conversation-scoped
// operations.
func (s *ChatService) requireMembership(conversationID, userID uuid.UUID) (*model.Membership, error) {
	membership, err := s.convRepo.GetMembership(conversationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotMember
		}
		return nil, err
	}
	return membership, nil
}

func (s *ChatService) findConversation(id uuid.UUID) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conv, nil
}

// ========== Conversation Directory ==========

// GetConversation returns a conversation with the resolved "other side":
// the single peer for a direct conversation, all other members for a
// group.
func (s *ChatService) GetConversation(caller *model.User, conversationID uuid.UUID) (*model.ConversationDetail, error) {
	conv, err := s.findConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return nil, err
	}

	memberships, err := s.convRepo.GetMemberships(conversationID)
	if err != nil {
		return nil, err
	}

	detail := &model.ConversationDetail{Conversation: *conv}
	for _, m := range memberships {
		if m.MemberID == caller.ID {
			continue
		}
		other := model.OtherMember{
			ID:                m.Member.ID,
			Username:          m.Member.Username,
			Email:             m.Member.Email,
			ImgURL:            m.Member.ImgURL,
			IsOnline:          m.Member.IsOnline,
			LastSeen:          m.Member.LastSeen,
			LastSeenMessageID: m.LastSeenMessageID,
		}
		if conv.IsGroup {
			detail.OtherMembers = append(detail.OtherMembers, other)
		} else {
			detail.OtherMember = &other
			break
		}
	}
	return detail, nil
}

// ListConversations returns every conversation the caller belongs to,
// annotated with a last-message preview and the caller's unseen count.
func (s *ChatService) ListConversations(caller *model.User) ([]model.ConversationListItem, error) {
	memberships, err := s.convRepo.GetMembershipsForUser(caller.ID)
	if err != nil {
		return nil, err
	}

	items := []model.ConversationListItem{}
	for _, membership := range memberships {
		conv, err := s.findConversation(membership.ConversationID)
		if err != nil {
			return nil, err
		}

		item := model.ConversationListItem{Conversation: *conv}

		if conv.LastMessageID != nil {
			if preview, err := s.lastMessagePreview(*conv.LastMessageID); err == nil {
				item.LastMessage = preview
			}
		}

		item.UnseenCount, err = s.unseenCount(&membership, caller.ID)
		if err != nil {
			return nil, err
		}

		if !conv.IsGroup {
			allMemberships, err := s.convRepo.GetMemberships(conv.ID)
			if err != nil {
				return nil, err
			}
			for _, m := range allMemberships {
				if m.MemberID == caller.ID {
					continue
				}
				item.OtherMember = &model.OtherMember{
					ID:                m.Member.ID,
					Username:          m.Member.Username,
					Email:             m.Member.Email,
					ImgURL:            m.Member.ImgURL,
					IsOnline:          m.Member.IsOnline,
					LastSeen:          m.Member.LastSeen,
					LastSeenMessageID: m.LastSeenMessageID,
				}
				break
			}
		}

		items = append(items, item)
	}
	return items, nil
}

// unseenCount counts messages created after the member's last-seen
// message and not authored by the member themselves.
func (s *ChatService) unseenCount(membership *model.Membership, viewerID uuid.UUID) (int64, error) {
	var after *time.Time
	if membership.LastSeenMessageID != nil {
		lastSeen, err := s.msgRepo.FindByID(*membership.LastSeenMessageID)
		if err == nil {
			after = &lastSeen.CreatedAt
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
	}
	return s.msgRepo.CountUnseen(membership.ConversationID, viewerID, after)
}

func (s *ChatService) lastMessagePreview(messageID uuid.UUID) (*model.LastMessagePreview, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		return nil, err
	}
	sender, err := s.userRepo.FindByID(msg.SenderID)
	if err != nil {
		return nil, err
	}
	return &model.LastMessagePreview{
		Sender:    sender.Username,
		Content:   msg.Preview(),
		CreatedAt: msg.CreatedAt,
	}, nil
}

// GetGroupInfo returns the current member roster plus leave records from
// the last 24 hours (groups only; direct conversations have no leaves).
func (s *ChatService) GetGroupInfo(conversationID uuid.UUID) (*model.GroupInfo, error) {
	conv, err := s.findConversation(conversationID)
	if err != nil {
		return nil, err
	}

	memberships, err := s.convRepo.GetMemberships(conversationID)
	if err != nil {
		return nil, err
	}

	info := &model.GroupInfo{IsGroup: conv.IsGroup, RecentLeaves: []model.GroupLeave{}}
	for _, m := range memberships {
		info.Members = append(info.Members, model.GroupMemberInfo{
			ID:                m.Member.ID,
			Username:          m.Member.Username,
			ImgURL:            m.Member.ImgURL,
			LastSeenMessageID: m.LastSeenMessageID,
		})
	}

	if conv.IsGroup {
		info.RecentLeaves, err = s.convRepo.GetRecentLeaves(conversationID, time.Now().Add(-groupLeaveWindow))
		if err != nil {
			return nil, err
		}
	}
	return info, nil
}

// ========== Membership Ledger ==========

// MarkRead moves the caller's last-seen pointer to the given message.
// Idempotent: repeating the call with the same message is a no-op.
func (s *ChatService) MarkRead(caller *model.User, conversationID, messageID uuid.UUID) error {
	membership, err := s.requireMembership(conversationID, caller.ID)
	if err != nil {
		return err
	}
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.convRepo.UpdateLastSeen(membership.ID, &msg.ID)
}

// CreateGroup creates a group conversation with the caller and at least
// one more initial member.
func (s *ChatService) CreateGroup(caller *model.User, name string, memberIDs []uuid.UUID) (*model.Conversation, error) {
	members := []model.Membership{{MemberID: caller.ID}}
	for _, id := range memberIDs {
		if id == caller.ID {
			continue
		}
		if _, err := s.userRepo.FindByID(id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		members = append(members, model.Membership{MemberID: id})
	}
	if len(members) < 2 {
		return nil, ErrInvalidMembers
	}

	conv := &model.Conversation{
		Name:    name,
		IsGroup: true,
		Members: members,
	}
	if err := s.convRepo.Create(conv); err != nil {
		return nil, err
	}
	return s.findConversation(conv.ID)
}

// AddMembers adds users to a group and records one system message per
// joined user, all in a single transaction.
func (s *ChatService) AddMembers(caller *model.User, conversationID uuid.UUID, memberIDs []uuid.UUID) error {
	conv, err := s.findConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return ErrNotGroup
	}
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		convRepo := s.convRepo.WithTx(tx)
		msgRepo := s.msgRepo.WithTx(tx)

		for _, id := range memberIDs {
			user, err := s.userRepo.WithTx(tx).FindByID(id)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrNotFound
				}
				return err
			}
			if _, err := convRepo.GetMembership(conversationID, id); err == nil {
				return ErrAlreadyMember
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}

			if err := convRepo.AddMember(&model.Membership{
				ConversationID: conversationID,
				MemberID:       id,
			}); err != nil {
				return err
			}

			if err := insertSystemMessage(convRepo, msgRepo, conversationID, caller.ID,
				fmt.Sprintf("%s joined the group", user.Username)); err != nil {
				return err
			}
		}
		return nil
	})
}

// LeaveGroup removes the caller from a group, records the leave and emits
// a system message, atomically.
func (s *ChatService) LeaveGroup(caller *model.User, conversationID uuid.UUID) error {
	conv, err := s.findConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return ErrNotGroup
	}
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		convRepo := s.convRepo.WithTx(tx)
		msgRepo := s.msgRepo.WithTx(tx)

		if err := convRepo.RemoveMember(conversationID, caller.ID); err != nil {
			return err
		}
		if err := convRepo.CreateGroupLeave(&model.GroupLeave{
			ConversationID: conversationID,
			UserID:         caller.ID,
			Username:       caller.Username,
			LeftAt:         time.Now(),
		}); err != nil {
			return err
		}
		return insertSystemMessage(convRepo, msgRepo, conversationID, caller.ID,
			fmt.Sprintf("%s left the group", caller.Username))
	})
}

// DeleteGroup deletes a whole group conversation with its messages and
// memberships. Refused when fewer than two memberships remain; a group
// cannot be deleted down to zero through the leave path either.
func (s *ChatService) DeleteGroup(caller *model.User, conversationID uuid.UUID) error {
	conv, err := s.findConversation(conversationID)
	if err != nil {
		return err
	}
	if !conv.IsGroup {
		return ErrNotGroup
	}
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return err
	}
	count, err := s.convRepo.CountMembers(conversationID)
	if err != nil {
		return err
	}
	if count <= 1 {
		return ErrInvalidMembers
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).DeleteByConversation(conversationID); err != nil {
			return err
		}
		if err := s.convRepo.WithTx(tx).DeleteMemberships(conversationID); err != nil {
			return err
		}
		return s.convRepo.WithTx(tx).Delete(conversationID)
	})
}

// GetMemberIDs returns all member user IDs for a conversation
func (s *ChatService) GetMemberIDs(conversationID uuid.UUID) ([]uuid.UUID, error) {
	return s.convRepo.GetMemberIDs(conversationID)
}

// ========== Message Ledger ==========

// SendMessage appends a message and moves the conversation's last-message
// pointer in one transaction. A reply target must exist in the same
// conversation.
func (s *ChatService) SendMessage(caller *model.User, conversationID uuid.UUID, req model.SendMessageRequest) (*model.Message, error) {
	if !req.Type.Valid() {
		return nil, fmt.Errorf("unknown message type %q", req.Type)
	}
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return nil, err
	}

	if req.ReplyTo != nil {
		target, err := s.msgRepo.FindByID(*req.ReplyTo)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidReply
			}
			return nil, err
		}
		if target.ConversationID != conversationID {
			return nil, ErrInvalidReply
		}
	}

	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       caller.ID,
		Type:           req.Type,
		Content:        req.Content,
		ReplyToID:      req.ReplyTo,
		IsSystem:       req.Type == model.MessageTypeSystem,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.msgRepo.WithTx(tx).Create(msg); err != nil {
			return err
		}
		return s.convRepo.WithTx(tx).SetLastMessage(conversationID, &msg.ID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// EditMessage replaces a message's content and marks it edited. Only the
// original sender may edit, and only while still a member; type, sender
// and conversation are immutable.
func (s *ChatService) EditMessage(caller *model.User, messageID uuid.UUID, content []string) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.SenderID != caller.ID {
		return nil, ErrNotSender
	}
	if _, err := s.requireMembership(msg.ConversationID, caller.ID); err != nil {
		return nil, err
	}
	if err := s.msgRepo.UpdateContent(messageID, content); err != nil {
		return nil, err
	}
	return s.msgRepo.FindByID(messageID)
}

// DeleteMessage hard-removes a message. If it was the conversation's last
// message the pointer is recomputed to the next most recent remaining
// message, or cleared when none remain — in the same transaction as the
// delete.
func (s *ChatService) DeleteMessage(caller *model.User, messageID uuid.UUID) (*model.Message, error) {
	msg, err := s.msgRepo.FindByID(messageID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if msg.SenderID != caller.ID {
		return nil, ErrNotSender
	}
	if _, err := s.requireMembership(msg.ConversationID, caller.ID); err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		msgRepo := s.msgRepo.WithTx(tx)
		convRepo := s.convRepo.WithTx(tx)

		if err := msgRepo.Delete(messageID); err != nil {
			return err
		}

		conv, err := convRepo.FindByID(msg.ConversationID)
		if err != nil {
			return err
		}
		if conv.LastMessageID == nil || *conv.LastMessageID != messageID {
			return nil
		}

		latest, err := msgRepo.FindLatest(msg.ConversationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return convRepo.SetLastMessage(msg.ConversationID, nil)
			}
			return err
		}
		return convRepo.SetLastMessage(msg.ConversationID, &latest.ID)
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// ListMessages returns a conversation's messages newest-first, joined
// with sender display info. Attachment URLs are returned verbatim for the
// presentation layer to interpret.
func (s *ChatService) ListMessages(caller *model.User, conversationID uuid.UUID) ([]model.MessageWithSender, error) {
	if _, err := s.requireMembership(conversationID, caller.ID); err != nil {
		return nil, err
	}

	messages, err := s.msgRepo.ListByConversation(conversationID)
	if err != nil {
		return nil, err
	}

	result := make([]model.MessageWithSender, 0, len(messages))
	for _, msg := range messages {
		result = append(result, model.MessageWithSender{
			Message:       msg,
			SenderName:    msg.Sender.Username,
			SenderImage:   msg.Sender.ImgURL,
			IsCurrentUser: msg.SenderID == caller.ID,
		})
	}
	return result, nil
}

// insertSystemMessage appends an event-authored message and bumps the
// last-message pointer using the given (possibly transactional) repos.
func insertSystemMessage(convRepo *repository.ConversationRepository, msgRepo *repository.MessageRepository, conversationID, actorID uuid.UUID, text string) error {
	msg := &model.Message{
		ConversationID: conversationID,
		SenderID:       actorID,
		Type:           model.MessageTypeSystem,
		Content:        []string{text},
		IsSystem:       true,
	}
	if err := msgRepo.Create(msg); err != nil {
		return err
	}
	return convRepo.SetLastMessage(conversationID, &msg.ID)
}
