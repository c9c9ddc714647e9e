package service

import (
	"errors"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// IdentityService maps external identity-provider principals to internal
// user records. Every other service receives an already-resolved user;
// none of them trusts a client-supplied user id.
type IdentityService struct {
	db         *gorm.DB
	userRepo   *repository.UserRepository
	friendRepo *repository.FriendRepository
	convRepo   *repository.ConversationRepository
	msgRepo    *repository.MessageRepository
}

func NewIdentityService(
	db *gorm.DB,
	userRepo *repository.UserRepository,
	friendRepo *repository.FriendRepository,
	convRepo *repository.ConversationRepository,
	msgRepo *repository.MessageRepository,
) *IdentityService {
	return &IdentityService{
		db:         db,
		userRepo:   userRepo,
		friendRepo: friendRepo,
		convRepo:   convRepo,
		msgRepo:    msgRepo,
	}
}

// Resolve returns the user record for an authenticated principal id.
// An empty principal means no session; a missing record means the
// provider webhook hasn't landed yet.
func (s *IdentityService) Resolve(externalID string) (*model.User, error) {
	if externalID == "" {
		return nil, ErrUnauthorized
	}
	user, err := s.userRepo.FindByExternalID(externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

// UpsertFromProvider applies a user.created or user.updated provider
// event.
func (s *IdentityService) UpsertFromProvider(externalID, username, email, imgURL string) (*model.User, error) {
	user := &model.User{
		ExternalID: externalID,
		Username:   username,
		Email:      email,
		ImgURL:     imgURL,
	}
	if err := s.userRepo.Upsert(user); err != nil {
		return nil, err
	}
	return s.userRepo.FindByExternalID(externalID)
}

// DeleteFromProvider applies a user.deleted provider event: the user row
// goes away together with their pending requests, friendships (and the
// paired direct conversations), and remaining group memberships.
func (s *IdentityService) DeleteFromProvider(externalID string) error {
	user, err := s.userRepo.FindByExternalID(externalID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		friendRepo := s.friendRepo.WithTx(tx)
		convRepo := s.convRepo.WithTx(tx)
		msgRepo := s.msgRepo.WithTx(tx)

		friendships, err := friendRepo.ListFriendships(user.ID)
		if err != nil {
			return err
		}
		for _, f := range friendships {
			if err := msgRepo.DeleteByConversation(f.ConversationID); err != nil {
				return err
			}
			if err := convRepo.DeleteMemberships(f.ConversationID); err != nil {
				return err
			}
			if err := convRepo.Delete(f.ConversationID); err != nil {
				return err
			}
			if err := friendRepo.DeleteFriendship(f.ID); err != nil {
				return err
			}
		}

		if err := friendRepo.DeleteRequestsForUser(user.ID); err != nil {
			return err
		}

		// Remaining memberships are group ones; the groups keep their
		// history, only the membership rows go.
		memberships, err := convRepo.GetMembershipsForUser(user.ID)
		if err != nil {
			return err
		}
		for _, m := range memberships {
			if err := convRepo.RemoveMember(m.ConversationID, user.ID); err != nil {
				return err
			}
		}

		if err := s.userRepo.WithTx(tx).Delete(user.ID); err != nil {
			return err
		}

		log.Info().Str("external_id", externalID).Msg("user deleted by provider event")
		return nil
	})
}
