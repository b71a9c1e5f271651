// Package models contains data structures for the application's domain models.
package models

import "time"

// User is the local projection of an account owned by the identity service.
// The API only reads it; seed tooling is the one writer.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Avatar       string    `json:"avatar"`
	Bio          string    `gorm:"type:text" json:"bio"`
	Verified     bool      `gorm:"not null" json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (User) TableName() string {
	return "users"
}
