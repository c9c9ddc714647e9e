package service

import (
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/converseapp/converse/internal/model"
	"github.com/converseapp/converse/internal/repository"
)

// testDB opens a fresh in-memory database per test.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	// one pooled connection, or each connection gets its own empty
	// in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(
		&model.User{},
		&model.UserDevice{},
		&model.Conversation{},
		&model.Membership{},
		&model.GroupLeave{},
		&model.Message{},
		&model.Friendship{},
		&model.FriendRequest{},
		&model.TypingStatus{},
		&model.Call{},
		&model.CallParticipant{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	identity *IdentityService
	chat     *ChatService
	friends  *FriendService
	presence *PresenceService
	calls    *CallService

	userRepo *repository.UserRepository
	convRepo *repository.ConversationRepository
	msgRepo  *repository.MessageRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)

	userRepo := repository.NewUserRepository(db)
	convRepo := repository.NewConversationRepository(db)
	msgRepo := repository.NewMessageRepository(db)
	friendRepo := repository.NewFriendRepository(db)
	typingRepo := repository.NewTypingRepository(db)
	callRepo := repository.NewCallRepository(db)

	return &fixture{
		db:       db,
		identity: NewIdentityService(db, userRepo, friendRepo, convRepo, msgRepo),
		chat:     NewChatService(db, convRepo, msgRepo, userRepo),
		friends:  NewFriendService(db, friendRepo, convRepo, msgRepo, userRepo),
		presence: NewPresenceService(userRepo, convRepo, typingRepo),
		calls:    NewCallService(db, callRepo, convRepo, userRepo, 30*time.Second),
		userRepo: userRepo,
		convRepo: convRepo,
		msgRepo:  msgRepo,
	}
}

var userSeq int

func (f *fixture) user(t *testing.T, username string) *model.User {
	t.Helper()
	userSeq++
	u := &model.User{
		ExternalID: fmt.Sprintf("ext_%s_%d", username, userSeq),
		Username:   username,
		Email:      fmt.Sprintf("%s%d@test.local", username, userSeq),
	}
	if err := f.userRepo.Create(u); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// direct creates a two-member conversation the way accepting a friend
// request does.
func (f *fixture) direct(t *testing.T, a, b *model.User) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{IsGroup: false}
	if err := f.convRepo.Create(conv); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for _, u := range []*model.User{a, b} {
		if err := f.convRepo.AddMember(&model.Membership{
			ConversationID: conv.ID,
			MemberID:       u.ID,
		}); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return conv
}

func (f *fixture) group(t *testing.T, name string, members ...*model.User) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{Name: name, IsGroup: true}
	if err := f.convRepo.Create(conv); err != nil {
		t.Fatalf("create group: %v", err)
	}
	for _, u := range members {
		if err := f.convRepo.AddMember(&model.Membership{
			ConversationID: conv.ID,
			MemberID:       u.ID,
		}); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}
	return conv
}

func (f *fixture) send(t *testing.T, sender *model.User, convID uuid.UUID, text string) *model.Message {
	t.Helper()
	msg, err := f.chat.SendMessage(sender, convID, model.SendMessageRequest{
		Type:    model.MessageTypeText,
		Content: []string{text},
	})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	return msg
}
