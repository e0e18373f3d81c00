package models

import "time"

// User represents a person who can own repositories.
type User struct {
	ID           uint         `json:"id" gorm:"primaryKey"`
	Name         string       `json:"name" gorm:"type:varchar(100);not null"`
	Position     string       `json:"position" gorm:"type:varchar(100);not null"`
	Email        string       `json:"email" gorm:"uniqueIndex:idx_users_email;type:varchar(255);not null"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime:false"`
	Repositories []Repository `json:"repositories,omitempty" gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}
