package models

import "time"

// AuthUser is the backend's auth identity. The public profile lives in User.
type AuthUser struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	FullName     string    `gorm:"not null;default:''" json:"-"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

type User struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"not null" json:"email"`
	FullName  string    `gorm:"not null;default:''" json:"full_name"`
	AvatarURL string    `gorm:"not null;default:''" json:"avatar_url"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
