package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BrandStatus represents the lifecycle state of a brand
type BrandStatus string

const (
	BrandStatusActive    BrandStatus = "active"
	BrandStatusSuspended BrandStatus = "suspended"
	BrandStatusDeleted   BrandStatus = "deleted"
)

// Brand represents a tenant in the multi-tenant system. All tenant-scoped
// entities carry its ID as BrandID.
type Brand struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	Name      string         `json:"name" gorm:"not null"`
	Slug      string         `json:"slug" gorm:"uniqueIndex"`
	Status    BrandStatus    `json:"status" gorm:"type:varchar(20);not null;default:'active'"`
	OwnerID   uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Relationships
	Memberships []Membership `json:"memberships,omitempty" gorm:"foreignKey:BrandID"`
}

// TableName returns the table name for the Brand model
func (Brand) TableName() string {
	return "brands"
}

// BeforeCreate assigns an ID when none was provided
func (b *Brand) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// IsActive checks if the brand accepts requests
func (b *Brand) IsActive() bool {
	return b.Status == BrandStatusActive
}
