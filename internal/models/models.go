package models

import (
	"time"

	"github.com/mkravch/buyrate/internal/authz"
)

type User struct {
	ID           uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Email        string     `gorm:"unique;not null"          json:"email"`
	PasswordHash string     `gorm:"not null"                 json:"-"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Phone        string     `json:"phone,omitempty"`
	Role         authz.Role `gorm:"not null;default:user"    json:"role"`
	Image        string     `json:"image,omitempty"`
	ChatID       int64      `json:"chat_id,omitempty"`
	ResetToken   string     `gorm:"default:''"               json:"-"`
}

type Ad struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string    `gorm:"not null"                 json:"title"`
	Price       int       `gorm:"not null;check:price>=0"  json:"price"`
	Description string    `gorm:"not null"                 json:"description"`
	AuthorID    uint      `gorm:"index;not null"           json:"author"`
	CreatedAt   time.Time `json:"created_at"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text      string    `gorm:"not null"                 json:"text"`
	AuthorID  uint      `gorm:"index;not null"           json:"author"`
	AdID      uint      `gorm:"index;not null"           json:"ad"`
	CreatedAt time.Time `json:"created_at"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"      json:"id"`
	Token     string `gorm:"unique;not null" json:"token"`
	UserID    uint   `gorm:"index;not null"  json:"user_id"`
	ExpiresAt int64  `gorm:"not null"        json:"expires_at"`
	Revoked   bool   `gorm:"default:false"   json:"revoked"`
}
