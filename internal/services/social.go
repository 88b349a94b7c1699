package services

import (
	"errors"

	"github.com/dailyflo/backend/internal/models"
	"github.com/dailyflo/backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrAccountDisabled = errors.New("account is disabled")
	ErrEmailTaken      = errors.New("an account with this email already exists")
)

// SocialAccountService resolves a completed OAuth exchange to a local user,
// creating and provisioning one on first login.
type SocialAccountService struct {
	DB    *gorm.DB
	Lists *ListService
}

func NewSocialAccountService(db *gorm.DB, lists *ListService) *SocialAccountService {
	return &SocialAccountService{DB: db, Lists: lists}
}

func (s *SocialAccountService) FindOrCreateUser(profile *SocialProfile) (*models.User, error) {
	var user models.User
	err := s.DB.First(&user, "auth_provider = ? AND provider_user_id = ?", profile.Provider, profile.ProviderUserID).Error
	if err == nil {
		if user.SoftDeleted || !user.IsActive {
			return nil, ErrAccountDisabled
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// The email may already belong to a password account or another
	// provider; social login never merges identities silently.
	var existing int64
	if err := s.DB.Model(&models.User{}).Where("email = ?", profile.Email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrEmailTaken
	}

	providerUserID := profile.ProviderUserID
	user = models.User{
		Email:           profile.Email,
		AuthProvider:    profile.Provider,
		ProviderUserID:  &providerUserID,
		FirstName:       profile.FirstName,
		LastName:        profile.LastName,
		AvatarURL:       profile.AvatarURL,
		IsEmailVerified: true,
		IsActive:        true,
		Preferences:     map[string]interface{}{},
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		return s.Lists.ProvisionDefaults(tx, &user)
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "social_user_created", map[string]interface{}{
		"provider": string(profile.Provider),
	})

	return &user, nil
}
