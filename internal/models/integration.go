package models

import "time"

type IntegrationStatus string

const (
	IntegrationStatusConnected    IntegrationStatus = "connected"
	IntegrationStatusDisconnected IntegrationStatus = "disconnected"
	IntegrationStatusPending      IntegrationStatus = "pending"
)

func ValidIntegrationStatus(s IntegrationStatus) bool {
	switch s {
	case IntegrationStatusConnected, IntegrationStatusDisconnected, IntegrationStatusPending:
		return true
	}
	return false
}

type Integration struct {
	ID         int64
	UserID     int64
	Type       string
	Name       string
	Config     map[string]any
	Status     IntegrationStatus
	LastSynced *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
