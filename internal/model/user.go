package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a chat user. User records are owned by the external
// identity provider: they are created, updated and deleted by provider
// webhook events, never fabricated by the application itself.
type User struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	ExternalID string     `json:"-" gorm:"uniqueIndex;size:255;not null"` // identity-provider principal id
	Username   string     `json:"username" gorm:"size:100;not null"`
	Email      string     `json:"email" gorm:"uniqueIndex;size:255;not null"`
	ImgURL     string     `json:"img_url" gorm:"size:500;default:''"`
	IsOnline   bool       `json:"is_online" gorm:"default:false"`
	LastSeen   *time.Time `json:"last_seen"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// UserDevice represents a user's device for push notifications
type UserDevice struct {
	ID           uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_user_token"`
	FCMToken     string    `json:"fcm_token" gorm:"size:500;not null;uniqueIndex:idx_user_token"`
	DeviceType   string    `json:"device_type" gorm:"size:20;default:'unknown'"` // android, ios, web
	LastActiveAt time.Time `json:"last_active_at"`
	CreatedAt    time.Time `json:"created_at"`
}

func (d *UserDevice) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
