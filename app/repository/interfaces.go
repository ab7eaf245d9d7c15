package repository

import (
	"github.com/subhamasthu/sankalp-bot/app/models"
	"gorm.io/gorm"
)

// UserRepository defines user-related database operations.
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)
	GetOrCreateByPhone(phone, name string) (*models.User, bool, error)
	Update(user *models.User) error
	UpdateState(userID uint, state string) error
	ListInState(state string, afterID uint, limit int) ([]models.User, error)
	Count() (int64, error)
}

// ConversationRepository defines conversation-row operations. Save uses the
// Version column for optimistic locking: a stale write returns
// gorm.ErrRecordNotFound-shaped failure via zero rows affected.
type ConversationRepository interface {
	GetByUserID(userID uint) (*models.Conversation, error)
	GetOrCreate(userID uint) (*models.Conversation, error)
	Save(conv *models.Conversation) error
	SeenInboundMessage(userID uint, messageID string) (bool, error)
}

// SankalpRepository defines donation-intent operations.
type SankalpRepository interface {
	Create(s *models.Sankalp) error
	GetByID(id uint) (*models.Sankalp, error)
	GetByUUID(uuid string) (*models.Sankalp, error)
	GetByPaymentLinkID(linkID string) (*models.Sankalp, error)
	GetPendingForUser(userID uint) (*models.Sankalp, error)
	Update(s *models.Sankalp) error
	ListPaidForUser(userID uint, limit int) ([]models.Sankalp, error)
}

// MessageLogRepository records chat traffic for audit.
type MessageLogRepository interface {
	Create(entry *models.MessageLog) error
	ListForUser(userID uint, limit int) ([]models.MessageLog, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Sankalp      SankalpRepository
	MessageLog   MessageLogRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Conversation: NewConversationRepository(db),
		Sankalp:      NewSankalpRepository(db),
		MessageLog:   NewMessageLogRepository(db),
	}
}
