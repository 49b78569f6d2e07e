package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TaskStatus represents the workflow state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusBlocked    TaskStatus = "blocked"
	TaskStatusCompleted  TaskStatus = "completed"
)

// Project groups tasks within one brand
type Project struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	BrandID   uuid.UUID      `json:"brand_id" gorm:"type:uuid;not null;index"`
	Name      string         `json:"name" gorm:"not null"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	Brand *Brand `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
}

func (Project) TableName() string {
	return "projects"
}

// BeforeCreate assigns an ID when none was provided
func (p *Project) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Task belongs to exactly one brand and one project. Its dependency edges
// live in task_dependencies rows; Version guards the read-validate-write
// cycle that replaces them.
type Task struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	BrandID     uuid.UUID      `json:"brand_id" gorm:"type:uuid;not null;index"`
	ProjectID   uuid.UUID      `json:"project_id" gorm:"type:uuid;not null;index"`
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Status      TaskStatus     `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	AssigneeID  *uuid.UUID     `json:"assignee_id,omitempty" gorm:"type:uuid;index"`
	Version     int64          `json:"version" gorm:"not null;default:0"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at" gorm:"index"`

	// Relationships
	Brand        *Brand           `json:"brand,omitempty" gorm:"foreignKey:BrandID"`
	Project      *Project         `json:"project,omitempty" gorm:"foreignKey:ProjectID"`
	Dependencies []TaskDependency `json:"dependencies,omitempty" gorm:"foreignKey:TaskID"`
}

func (Task) TableName() string {
	return "tasks"
}

// BeforeCreate assigns an ID when none was provided
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// TaskDependency is one persisted "task depends on prerequisite" edge.
// The full edge set of a task is replaced atomically, never patched row
// by row.
type TaskDependency struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	BrandID     uuid.UUID `json:"brand_id" gorm:"type:uuid;not null;index"`
	TaskID      uuid.UUID `json:"task_id" gorm:"type:uuid;not null;uniqueIndex:idx_task_dep_edge"`
	DependsOnID uuid.UUID `json:"depends_on_id" gorm:"type:uuid;not null;uniqueIndex:idx_task_dep_edge"`
	Position    int       `json:"position" gorm:"not null;default:0"`
	CreatedAt   time.Time `json:"created_at"`

	Task      *Task `json:"task,omitempty" gorm:"foreignKey:TaskID"`
	DependsOn *Task `json:"depends_on,omitempty" gorm:"foreignKey:DependsOnID"`
}

func (TaskDependency) TableName() string {
	return "task_dependencies"
}

// BeforeCreate assigns an ID when none was provided
func (d *TaskDependency) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// GraphRevision is one row per brand, bumped inside every committed edge-set
// replacement. Writers compare-and-set it against the value they validated
// under, so a cycle check based on stale adjacency can never commit.
type GraphRevision struct {
	BrandID   uuid.UUID `json:"brand_id" gorm:"type:uuid;primary_key"`
	Revision  int64     `json:"revision" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (GraphRevision) TableName() string {
	return "graph_revisions"
}
