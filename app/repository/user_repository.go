package repository

import (
	"errors"

	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByPhone retrieves a user by their phone number
func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	var user models.User
	err := r.db.Where("phone = ?", phone).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetOrCreateByPhone fetches the user for a phone number, creating the row
// (and its conversation) on first inbound contact. The second return value
// reports whether the user was created.
func (r *userRepository) GetOrCreateByPhone(phone, name string) (*models.User, bool, error) {
	user, err := r.GetByPhone(phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	user = &models.User{
		Phone: phone,
		Name:  name,
		State: models.StateNew,
	}
	err = r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		conv := &models.Conversation{UserID: user.ID, State: models.StateNew}
		return tx.Create(conv).Error
	})
	if err != nil {
		// Lost a create race with a concurrent first message; re-read.
		if existing, readErr := r.GetByPhone(phone); readErr == nil {
			return existing, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}

// Update persists all changed user fields
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// UpdateState sets only the conversation state column of a user
func (r *userRepository) UpdateState(userID uint, state string) error {
	return r.db.Model(&models.User{}).Where("id = ?", userID).
		Update("state", state).Error
}

// ListInState pages users currently in the given conversation state by id
// cursor. Cursor paging stays stable while callers move users out of the
// scanned state mid-walk.
func (r *userRepository) ListInState(state string, afterID uint, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("state = ? AND id > ?", state, afterID).
		Order("id").Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}
