package db

import (
	"time"

	"github.com/terraincognita07/us/internal/models"
	"gorm.io/gorm"
)

type AuthUserRepository struct {
	database *gorm.DB
}

func NewAuthUserRepository(database *gorm.DB) *AuthUserRepository {
	return &AuthUserRepository{database: database}
}

func (repo *AuthUserRepository) FindByID(userID string) (models.AuthUser, error) {
	var user models.AuthUser
	if err := repo.database.Where("id = ?", userID).First(&user).Error; err != nil {
		return models.AuthUser{}, err
	}
	return user, nil
}

func (repo *AuthUserRepository) FindByNormalizedEmail(email string) (models.AuthUser, error) {
	var user models.AuthUser
	if err := repo.database.Where("lower(trim(email)) = ?", email).First(&user).Error; err != nil {
		return models.AuthUser{}, err
	}
	return user, nil
}

func (repo *AuthUserRepository) ExistsByNormalizedEmail(email string) (bool, error) {
	var matched int64
	if err := repo.database.Model(&models.AuthUser{}).
		Where("lower(trim(email)) = ?", email).
		Count(&matched).Error; err != nil {
		return false, err
	}
	return matched > 0, nil
}

func (repo *AuthUserRepository) Create(user *models.AuthUser) error {
	return repo.database.Create(user).Error
}

func (repo *AuthUserRepository) UpdatePassword(userID string, passwordHash string) error {
	return repo.database.Model(&models.AuthUser{}).Where("id = ?", userID).Updates(map[string]any{
		"password_hash": passwordHash,
		"updated_at":    time.Now().UTC(),
	}).Error
}

func (repo *AuthUserRepository) UpdateFullName(userID string, fullName string) error {
	return repo.database.Model(&models.AuthUser{}).Where("id = ?", userID).Updates(map[string]any{
		"full_name":  fullName,
		"updated_at": time.Now().UTC(),
	}).Error
}
