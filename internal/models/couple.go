package models

import "time"

const (
	CoupleStatusActive   = "active"
	CoupleStatusInactive = "inactive"
)

const (
	RoleCreator = "creator"
	RoleMember  = "member"
)

type Couple struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	JoinCode  string    `gorm:"uniqueIndex;not null" json:"join_code"`
	Status    string    `gorm:"not null;default:active" json:"status"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (couple Couple) IsActive() bool {
	return couple.Status == CoupleStatusActive
}

type CoupleMember struct {
	ID       string    `gorm:"primaryKey" json:"id"`
	CoupleID string    `gorm:"not null;uniqueIndex:uidx_couple_user" json:"couple_id"`
	UserID   string    `gorm:"not null;uniqueIndex:uidx_couple_user;index" json:"user_id"`
	Role     string    `gorm:"not null" json:"role"`
	JoinedAt time.Time `gorm:"not null" json:"joined_at"`
}

func IsValidRole(role string) bool {
	return role == RoleCreator || role == RoleMember
}

func IsValidCoupleStatus(status string) bool {
	return status == CoupleStatusActive || status == CoupleStatusInactive
}
