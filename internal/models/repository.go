package models

import "time"

// Repository is a code repository owned by a single user.
// Name is unique per owner.
type Repository struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"uniqueIndex:idx_repositories_owner_name;type:varchar(100);not null"`
	Description string    `json:"description" gorm:"type:varchar(500);not null"`
	Language    string    `json:"language" gorm:"type:varchar(50);not null"`
	IsFavorite  bool      `json:"is_favorite" gorm:"not null;default:false"`
	OwnerID     uint      `json:"owner_id" gorm:"uniqueIndex:idx_repositories_owner_name;not null;index"`
	Owner       *User     `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Version     int       `json:"-" gorm:"not null;default:1"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime:false"`
}

// RepositoryPatch carries the optional fields of a partial update.
// A nil field leaves the stored value unchanged.
type RepositoryPatch struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string `json:"description" validate:"omitempty,min=1,max=500"`
	Language    *string `json:"language" validate:"omitempty,min=1,max=50"`
}

// Empty reports whether the patch changes nothing.
func (p RepositoryPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Language == nil
}

// Apply merges the non-nil fields of p into r.
func (p RepositoryPatch) Apply(r *Repository) {
	if p.Name != nil {
		r.Name = *p.Name
	}
	if p.Description != nil {
		r.Description = *p.Description
	}
	if p.Language != nil {
		r.Language = *p.Language
	}
}
