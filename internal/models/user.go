package models

import "strings"

type AuthProvider string

const (
	AuthProviderEmail    AuthProvider = "email"
	AuthProviderGoogle   AuthProvider = "google"
	AuthProviderApple    AuthProvider = "apple"
	AuthProviderFacebook AuthProvider = "facebook"
)

func IsValidAuthProvider(value AuthProvider) bool {
	switch value {
	case AuthProviderEmail, AuthProviderGoogle, AuthProviderApple, AuthProviderFacebook:
		return true
	default:
		return false
	}
}

type User struct {
	BaseModel
	Email           string                 `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	AuthProvider    AuthProvider           `json:"authProvider" gorm:"type:varchar(20);not null;default:'email';uniqueIndex:idx_users_provider_identity,priority:1"`
	ProviderUserID  *string                `json:"-" gorm:"type:varchar(255);uniqueIndex:idx_users_provider_identity,priority:2"`
	PasswordHash    *string                `json:"-" gorm:"type:text"`
	FirstName       string                 `json:"firstName" gorm:"type:varchar(100);not null;default:''"`
	LastName        string                 `json:"lastName" gorm:"type:varchar(100);not null;default:''"`
	DisplayName     *string                `json:"displayName,omitempty" gorm:"type:varchar(100)"`
	AvatarURL       *string                `json:"avatarURL,omitempty" gorm:"type:text"`
	IsEmailVerified bool                   `json:"isEmailVerified" gorm:"not null;default:false"`
	IsActive        bool                   `json:"isActive" gorm:"not null;default:true"`
	SoftDeleted     bool                   `json:"softDeleted" gorm:"not null;default:false;index"`
	Preferences     map[string]interface{} `json:"preferences" gorm:"type:jsonb;serializer:json"`

	Lists          []List          `json:"-" gorm:"foreignKey:OwnerID"`
	Tasks          []Task          `json:"-" gorm:"foreignKey:OwnerID"`
	RecurringTasks []RecurringTask `json:"-" gorm:"foreignKey:OwnerID"`
}

func (User) TableName() string {
	return "users"
}

// IsSocial reports whether the account authenticates through an external
// provider and therefore carries no local password.
func (u *User) IsSocial() bool {
	return u.AuthProvider != AuthProviderEmail
}

func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// PreferredName picks the best human-readable name for API responses:
// explicit display name, then full name, then the email local part.
func (u *User) PreferredName() string {
	if u.DisplayName != nil && strings.TrimSpace(*u.DisplayName) != "" {
		return strings.TrimSpace(*u.DisplayName)
	}
	if full := u.FullName(); full != "" {
		return full
	}
	if at := strings.Index(u.Email, "@"); at > 0 {
		return u.Email[:at]
	}
	return u.Email
}
