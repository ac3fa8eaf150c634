package models

import "time"

// Role constants matching the backend UserRole enum
const (
	RoleAdmin    = "ADMIN"
	RoleEmployer = "EMPLOYER"
	RoleEmployee = "EMPLOYEE"
)

// Status constants matching the backend UserStatus enum
const (
	StatusActive   = "ACTIVE"
	StatusDisabled = "DISABLED"
	StatusInvited  = "INVITED"
)

type User struct {
	ID                   int64     `json:"id"`
	Email                string    `json:"email"`
	Name                 string    `json:"name"`
	Role                 string    `json:"role"`
	Status               string    `json:"status"`
	AutoStopLimitMinutes int       `json:"auto_stop_limit_minutes"`
	CreatedAt            time.Time `json:"created_at"`
}

// IsManager reports whether the role may act on other users' sessions.
func IsManager(role string) bool {
	return role == RoleAdmin || role == RoleEmployer
}
