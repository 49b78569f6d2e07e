package audit

import (
	"time"

	"github.com/google/uuid"
)

// Topic is the Kafka topic the audit trail flows through
const Topic = "audit-events"

// Event types recorded on the audit trail
const (
	EventOverrideUsed        = "admin_override_used"
	EventDependenciesChanged = "dependencies_changed"
	EventTenantSwitched      = "tenant_switched"
	EventBrandDeleted        = "brand_deleted"
	EventMembershipChanged   = "membership_changed"
)

// Event is one audit trail entry. BrandID names the brand the action
// touched and is always explicit, including under admin override.
type Event struct {
	Type       string    `json:"type"`
	ActorID    uuid.UUID `json:"actor_id"`
	BrandID    uuid.UUID `json:"brand_id"`
	Override   bool      `json:"override"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter is the publishing side of the audit trail
type Emitter interface {
	Emit(event Event)
}
