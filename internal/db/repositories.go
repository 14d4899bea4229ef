package db

import (
	"github.com/terraincognita07/us/internal/models"
	"gorm.io/gorm"
)

type Repositories struct {
	AuthUsers     *AuthUserRepository
	Users         *TableRepository[models.User]
	Couples       *TableRepository[models.Couple]
	CoupleMembers *TableRepository[models.CoupleMember]
	MoodEntries   *TableRepository[models.MoodEntry]
}

func NewRepositories(database *gorm.DB) *Repositories {
	return &Repositories{
		AuthUsers:     NewAuthUserRepository(database),
		Users:         NewTableRepository[models.User](database),
		Couples:       NewTableRepository[models.Couple](database),
		CoupleMembers: NewTableRepository[models.CoupleMember](database),
		MoodEntries:   NewTableRepository[models.MoodEntry](database),
	}
}
