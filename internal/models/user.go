package models

import "time"

type Role string

const (
	RoleFree       Role = "free"
	RoleBasic      Role = "basic"
	RolePremium    Role = "premium"
	RoleEnterprise Role = "enterprise"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

var AllRoles = []Role{RoleFree, RoleBasic, RolePremium, RoleEnterprise, RoleAdmin, RoleSuperAdmin}

func ValidRole(r Role) bool {
	for _, known := range AllRoles {
		if r == known {
			return true
		}
	}
	return false
}

type Plan string

const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

var AllPlans = []Plan{PlanFree, PlanBasic, PlanPremium, PlanEnterprise}

func ValidPlan(p Plan) bool {
	for _, known := range AllPlans {
		if p == known {
			return true
		}
	}
	return false
}

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusInactive  UserStatus = "inactive"
	UserStatusPending   UserStatus = "pending"
	UserStatusSuspended UserStatus = "suspended"
)

func ValidUserStatus(s UserStatus) bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusPending, UserStatusSuspended:
		return true
	}
	return false
}

type User struct {
	ID           int64
	ExternalID   *string
	Email        string
	DisplayName  string
	AvatarURL    *string
	PasswordHash []byte
	Roles        []Role
	Plan         Plan
	Status       UserStatus
	Metadata     map[string]any
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (u User) HasRole(r Role) bool {
	for _, role := range u.Roles {
		if role == r {
			return true
		}
	}
	return false
}

type Session struct {
	ID         string
	UserID     int64
	TokenHash  []byte
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}
