package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/storefront_backend/utils"
	"gorm.io/gorm"
)

// User is the read model of an account; sign-up and sign-in are handled elsewhere.
type User struct {
	ID           int       `gorm:"primary_key" json:"id"`
	FirstName    string    `gorm:"size:100;not null" json:"first_name"`
	LastName     string    `gorm:"size:100" json:"last_name"`
	Email        string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role         UserRole  `gorm:"size:20;not null;default:'user'" json:"role"`
	ReferralCode string    `gorm:"size:32;uniqueIndex" json:"referral_code"`
	ReferredBy   *int      `gorm:"index" json:"referred_by"`
	IsBlocked    bool      `gorm:"not null;default:false" json:"is_blocked"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func GetUser(ctx context.Context, db *gorm.DB, id int) (*User, error) {
	var user User
	if err := db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("User not found")
		}
		return nil, err
	}
	return &user, nil
}

type NewUser struct {
	FirstName    string   `json:"first_name" binding:"required"`
	LastName     string   `json:"last_name"`
	Email        string   `json:"email" binding:"required,email"`
	Role         UserRole `json:"role"`
	ReferralCode string   `json:"referral_code"`
}

// NewReferralCode derives an 8 character code from a random uuid.
func NewReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// CreateUser is used by seeding and tests.
func CreateUser(ctx context.Context, db *gorm.DB, input *NewUser) (*User, error) {
	role := input.Role
	if role == "" {
		role = UserRoleUser
	}
	referralCode := strings.ToUpper(strings.TrimSpace(input.ReferralCode))
	if referralCode == "" {
		referralCode = NewReferralCode()
	}
	user := User{
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Role:         role,
		ReferralCode: referralCode,
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
