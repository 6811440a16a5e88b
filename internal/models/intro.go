package models

import "time"

// Intro is the long-form self introduction, one per user.
type Intro struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint   `gorm:"uniqueIndex;not null" json:"user_id"`
	Text   string `gorm:"type:text;not null" json:"text"`
}
