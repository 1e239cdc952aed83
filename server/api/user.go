package api

import (
	"time"

	"github.com/BagetTeam/ReeLearners/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// UpsertUserImpl provisions or refreshes a user record from the identity
// provider's reference. Profile fields follow the latest login.
func UpsertUserImpl(db *gorm.DB, authId string, email string, name string, avatarUrl *string) (*model.User, error) {
	if authId == "" {
		return nil, &model.ValidationError{Reason: "authId cannot be empty"}
	}

	now := time.Now()

	var user model.User
	result := db.Where("auth_id = ?", authId).First(&user)
	if result.RowsAffected == 0 {
		user = model.User{
			Id:          uuid.New().String(),
			AuthId:      authId,
			Email:       email,
			Name:        name,
			AvatarUrl:   avatarUrl,
			LastLoginAt: &now,
		}
		if err := db.Create(&user).Error; err != nil {
			return nil, errors.Wrap(err, "fail to create user")
		}
		return &user, nil
	}

	user.Email = email
	user.Name = name
	if avatarUrl != nil {
		user.AvatarUrl = avatarUrl
	}
	user.LastLoginAt = &now
	if err := db.Save(&user).Error; err != nil {
		return nil, errors.Wrap(err, "fail to update user")
	}
	return &user, nil
}

// GetUserImpl loads a user by id.
func GetUserImpl(db *gorm.DB, userId string) (*model.User, error) {
	var user model.User
	result := db.Where("id = ?", userId).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, &model.NotFoundError{Kind: "user", Id: userId}
	}
	if result.Error != nil {
		return nil, errors.Wrap(result.Error, "fail to load user")
	}
	return &user, nil
}
