package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditRecord is one persisted audit trail entry, written by the audit
// consumer from the event stream. BrandID is the tenant the action touched,
// which is explicit even under admin override.
type AuditRecord struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	ActorID    uuid.UUID `json:"actor_id" gorm:"type:uuid;not null;index"`
	BrandID    uuid.UUID `json:"brand_id" gorm:"type:uuid;not null;index"`
	Action     string    `json:"action" gorm:"type:varchar(64);not null"`
	Detail     string    `json:"detail"`
	Override   bool      `json:"override" gorm:"default:false"`
	OccurredAt time.Time `json:"occurred_at" gorm:"not null;index"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditRecord) TableName() string {
	return "audit_records"
}

// BeforeCreate assigns an ID when none was provided
func (a *AuditRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
