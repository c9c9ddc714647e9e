package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/converseapp/converse/internal/config"
	applog "github.com/converseapp/converse/internal/log"
	"github.com/converseapp/converse/internal/model"
)

func main() {
	cfg := config.Load()
	applog.Init(cfg.App.Env)

	db, err := gorm.Open(postgres.Open(cfg.DB.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().Msg("connected to database")

	log.Info().Msg("seeding 10 users")
	users := make([]model.User, 0, 10)
	for i := 1; i <= 10; i++ {
		email := fmt.Sprintf("user%d@converse.local", i)

		var existing model.User
		if err := db.Where("email = ?", email).First(&existing).Error; err == nil {
			users = append(users, existing)
			continue
		}

		user := model.User{
			ExternalID: fmt.Sprintf("seed_user_%d", i),
			Username:   fmt.Sprintf("user%d", i),
			Email:      email,
			ImgURL:     fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=user%d", i),
			IsOnline:   i%3 == 0,
		}
		if err := db.Create(&user).Error; err != nil {
			log.Error().Err(err).Str("email", email).Msg("failed to create user")
			continue
		}
		users = append(users, user)
		log.Info().Str("email", email).Msg("created user")
	}

	if len(users) >= 2 {
		seedFriendPair(db, users[0], users[1])
	}
	if len(users) >= 3 {
		seedGroupChat(db, users[:3])
	}

	log.Info().Msg("seeding completed")
}

// seedFriendPair creates a friendship plus its direct conversation and a
// short message history between two users.
func seedFriendPair(db *gorm.DB, a, b model.User) {
	var count int64
	db.Model(&model.Friendship{}).
		Where("(user1_id = ? AND user2_id = ?) OR (user1_id = ? AND user2_id = ?)", a.ID, b.ID, b.ID, a.ID).
		Count(&count)
	if count > 0 {
		return
	}

	conv := model.Conversation{IsGroup: false}
	if err := db.Create(&conv).Error; err != nil {
		log.Error().Err(err).Msg("failed to create direct conversation")
		return
	}
	db.Create(&model.Friendship{User1ID: a.ID, User2ID: b.ID, ConversationID: conv.ID})
	db.Create(&model.Membership{ConversationID: conv.ID, MemberID: a.ID})
	db.Create(&model.Membership{ConversationID: conv.ID, MemberID: b.ID})

	msg := model.Message{
		ConversationID: conv.ID,
		SenderID:       a.ID,
		Type:           model.MessageTypeText,
		Content:        []string{"Hey, good to see you here!"},
	}
	if err := db.Create(&msg).Error; err == nil {
		db.Model(&model.Conversation{}).Where("id = ?", conv.ID).Updates(map[string]interface{}{
			"last_message_id": msg.ID,
			"updated_at":      time.Now(),
		})
	}
	log.Info().Str("conversation_id", conv.ID.String()).Msg("seeded friend pair")
}

func seedGroupChat(db *gorm.DB, members []model.User) {
	var count int64
	db.Model(&model.Conversation{}).Where("name = ?", "General Chat").Count(&count)
	if count > 0 {
		return
	}

	group := model.Conversation{
		Name:    "General Chat",
		IsGroup: true,
	}
	if err := db.Create(&group).Error; err != nil {
		log.Error().Err(err).Msg("failed to create group")
		return
	}
	for _, m := range members {
		db.Create(&model.Membership{
			ConversationID: group.ID,
			MemberID:       m.ID,
		})
	}
	log.Info().Str("conversation_id", group.ID.String()).Msg("seeded group chat")
}
