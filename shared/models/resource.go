package models

import "github.com/google/uuid"

// ResourceBrandID implementations let the access validator treat every
// tenant-scoped model uniformly. A brand is its own isolation unit.

func (b *Brand) ResourceBrandID() uuid.UUID          { return b.ID }
func (m *Membership) ResourceBrandID() uuid.UUID     { return m.BrandID }
func (p *Project) ResourceBrandID() uuid.UUID        { return p.BrandID }
func (t *Task) ResourceBrandID() uuid.UUID           { return t.BrandID }
func (d *TaskDependency) ResourceBrandID() uuid.UUID { return d.BrandID }
func (a *AuditRecord) ResourceBrandID() uuid.UUID    { return a.BrandID }
