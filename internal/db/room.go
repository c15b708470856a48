package db

import "time"

type Room struct {
	ID         string    `gorm:"primaryKey;size:64"`
	Name       string    `gorm:"size:64;not null"`
	MaxPlayers int       `gorm:"not null;default:4"`
	IsCustom   bool      `gorm:"not null;default:false"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
}
