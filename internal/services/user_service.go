package services

import (
	"gymstack_go_backend/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

func (s *UserService) CreateOrUpdateUser(auth0ID, email, name, nickname string, orgID uuid.UUID) (*models.User, error) {
	user := models.User{
		Auth0ID:        auth0ID,
		OrganizationID: orgID,
		Email:          email,
		Name:           name,
		Nickname:       nickname,
	}
	result := s.db.Where(models.User{Auth0ID: auth0ID}).FirstOrCreate(&user)

	if result.Error != nil {
		return nil, result.Error
	}

	return &user, nil
}
