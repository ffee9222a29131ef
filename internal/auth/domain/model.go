// Package domain contains core types for the auth service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// User represents a system user account.
type User struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	Email        string       `gorm:"type:text;not null;uniqueIndex"`
	PasswordHash string       `gorm:"column:password_hash;type:text;not null"`
	Username     string       `gorm:"type:text;not null"`
	DisplayName  string       `gorm:"column:display_name;type:text;not null"`
	Avatar       string       `gorm:"type:text;not null;default:''"`
	Role         Role         `gorm:"type:text;not null;default:'client'"`
	IsActive     bool         `gorm:"column:is_active;not null;default:false"`
	VerifyToken  *string      `gorm:"column:verify_token;type:text"`
	Destroyed    bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null"`
	UpdatedAt    time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// PublicUser is the projection of User that is safe to return to any client.
type PublicUser struct {
	ID          snowflake.ID `json:"_id"`
	Email       string       `json:"email"`
	Username    string       `json:"username"`
	DisplayName string       `json:"displayName"`
	Avatar      string       `json:"avatar"`
	Role        Role         `json:"role"`
	IsActive    bool         `json:"isActive"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// Public strips the password hash and verification token.
func (u User) Public() PublicUser {
	return PublicUser{
		ID:          u.ID,
		Email:       u.Email,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Avatar:      u.Avatar,
		Role:        u.Role,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}
