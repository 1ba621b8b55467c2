// Package models defines the core domain models for construction project workflows.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ProjectStatus represents the lifecycle state of a construction project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "ACTIVE"
	ProjectStatusOnHold    ProjectStatus = "ON_HOLD"
	ProjectStatusCompleted ProjectStatus = "COMPLETED"
	ProjectStatusCancelled ProjectStatus = "CANCELLED"
)

// Project is a tenant-owned construction project whose workflow is run by the engine.
type Project struct {
	ID         uuid.UUID     `json:"id"`
	CompanyID  uuid.UUID     `json:"company_id"`
	Name       string        `json:"name"        validate:"required,min=3"`
	Status     ProjectStatus `json:"status"      validate:"required"`
	TemplateID uuid.UUID     `json:"template_id"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// UserRole is the role of a user inside its company.
type UserRole string

const (
	UserRoleAdmin          UserRole = "ADMIN"
	UserRoleProjectManager UserRole = "PROJECT_MANAGER"
	UserRoleSiteSupervisor UserRole = "SITE_SUPERVISOR"
	UserRoleWorker         UserRole = "WORKER"
)

// User is the acting user of a workflow request.
type User struct {
	ID        uuid.UUID `json:"id"`
	CompanyID uuid.UUID `json:"company_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      UserRole  `json:"role"`
}

// IsManager reports whether the user may act on work assigned to someone else.
func (u *User) IsManager() bool {
	return u.Role == UserRoleAdmin || u.Role == UserRoleProjectManager
}
