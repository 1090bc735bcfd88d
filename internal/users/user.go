package users

import (
	"strings"
	"time"
)

const (
	// DefaultBackgroundColor is applied to new profiles.
	DefaultBackgroundColor = "#ffffff"
	// DefaultTextColor is applied to new profiles.
	DefaultTextColor = "#000000"
)

// User is an account together with its public display attributes.
type User struct {
	ID              string    `gorm:"column:id;primaryKey;size:36;not null"`
	Username        string    `gorm:"column:username;size:150;not null;uniqueIndex"`
	Email           string    `gorm:"column:email;size:254;not null;uniqueIndex"`
	PasswordHash    string    `gorm:"column:password_hash;size:255;not null"`
	FirstName       string    `gorm:"column:first_name;size:30;not null"`
	LastName        string    `gorm:"column:last_name;size:150;not null"`
	Bio             string    `gorm:"column:bio;size:500;not null"`
	AvatarURL       string    `gorm:"column:avatar_url;size:512;not null"`
	BackgroundColor string    `gorm:"column:background_color;size:7;not null"`
	TextColor       string    `gorm:"column:text_color;size:7;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;autoCreateTime:false"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null;autoUpdateTime:false"`
}

// TableName exposes the table backing user accounts.
func (User) TableName() string {
	return "users"
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Username  string `json:"username" validate:"required,max=150,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password1 string `json:"password1" validate:"required,min=8,maxbytes=72"`
	Password2 string `json:"password2" validate:"required,eqfield=Password1"`
	FirstName string `json:"first_name" validate:"required,max=30"`
	LastName  string `json:"last_name" validate:"required,max=150"`
}

// ProfileUpdate is a partial profile change. Nil fields are left untouched.
type ProfileUpdate struct {
	Email           *string `json:"email"`
	FirstName       *string `json:"first_name"`
	LastName        *string `json:"last_name"`
	Bio             *string `json:"bio"`
	AvatarURL       *string `json:"avatar_url"`
	BackgroundColor *string `json:"background_color"`
	TextColor       *string `json:"text_color"`
}

type profileFields struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	FirstName       string `json:"first_name" validate:"max=30"`
	LastName        string `json:"last_name" validate:"max=150"`
	Bio             string `json:"bio" validate:"max=500"`
	AvatarURL       string `json:"avatar_url" validate:"omitempty,weburl,max=512"`
	BackgroundColor string `json:"background_color" validate:"required,hexcolor,max=7"`
	TextColor       string `json:"text_color" validate:"required,hexcolor,max=7"`
}

func profileFieldsOf(user User) profileFields {
	return profileFields{
		Email:           user.Email,
		FirstName:       user.FirstName,
		LastName:        user.LastName,
		Bio:             user.Bio,
		AvatarURL:       user.AvatarURL,
		BackgroundColor: user.BackgroundColor,
		TextColor:       user.TextColor,
	}
}

func (f *profileFields) apply(update ProfileUpdate) {
	if update.Email != nil {
		f.Email = normalize(*update.Email)
	}
	if update.FirstName != nil {
		f.FirstName = normalize(*update.FirstName)
	}
	if update.LastName != nil {
		f.LastName = normalize(*update.LastName)
	}
	if update.Bio != nil {
		f.Bio = *update.Bio
	}
	if update.AvatarURL != nil {
		f.AvatarURL = normalize(*update.AvatarURL)
	}
	if update.BackgroundColor != nil {
		f.BackgroundColor = normalize(*update.BackgroundColor)
	}
	if update.TextColor != nil {
		f.TextColor = normalize(*update.TextColor)
	}
}

// normalize value helper used across service implementation.
func normalize(value string) string {
	return strings.TrimSpace(value)
}
