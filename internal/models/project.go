package models

import "time"

type ProjectStatus string

const (
	ProjectStatusActive     ProjectStatus = "active"
	ProjectStatusArchived   ProjectStatus = "archived"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusInProgress ProjectStatus = "in-progress"
)

func ValidProjectStatus(s ProjectStatus) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusArchived, ProjectStatusCompleted, ProjectStatusInProgress:
		return true
	}
	return false
}

type Project struct {
	ID          int64
	UserID      int64
	Name        string
	Description string
	Status      ProjectStatus
	Metadata    map[string]any
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
