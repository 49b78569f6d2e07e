package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipStatus represents the invitation state of a membership
type MembershipStatus string

const (
	MembershipStatusPending  MembershipStatus = "pending"
	MembershipStatusActive   MembershipStatus = "active"
	MembershipStatusDeclined MembershipStatus = "declined"
)

// Membership relates a user to a brand with a role and an invitation status.
// A user holds at most one membership row per brand; re-inviting while a
// pending row exists is rejected, accepting an already-active membership is
// a no-op.
type Membership struct {
	ID        uuid.UUID        `json:"id" gorm:"type:uuid;primary_key"`
	UserID    uuid.UUID        `json:"user_id" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_brand"`
	BrandID   uuid.UUID        `json:"brand_id" gorm:"type:uuid;not null;uniqueIndex:idx_memberships_user_brand;index"`
	Role      Role             `json:"role" gorm:"type:varchar(20);not null;default:'member'"`
	Status    MembershipStatus `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt gorm.DeletedAt   `json:"deleted_at" gorm:"index"`

	// Relationships
	User  *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Brand *Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}

func (Membership) TableName() string {
	return "memberships"
}

// BeforeCreate assigns an ID when none was provided
func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the membership grants access to the brand
func (m *Membership) IsActive() bool {
	return m.Status == MembershipStatusActive
}
