package domain

import "time"

// RepRole enumerates support-hierarchy roles. Tier visibility in the queue
// router is keyed off these values.
type RepRole string

const (
	RepRoleL1    RepRole = "rep_l1"
	RepRoleL2    RepRole = "rep_l2"
	RepRoleL3    RepRole = "rep_l3"
	RepRoleAdmin RepRole = "admin"
)

// VisibleTier returns the single tier the role is allowed to see and true,
// or false when the role sees every tier.
func (r RepRole) VisibleTier() (SupportTier, bool) {
	switch r {
	case RepRoleL1:
		return TierL1, true
	case RepRoleL2:
		return TierL2, true
	case RepRoleL3:
		return TierL3, true
	default:
		return "", false
	}
}

// Representative models a human support agent.
type Representative struct {
	ID           string
	VendorID     string
	Name         string
	Email        string
	PasswordHash string
	Role         RepRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CustomerStatus represents lifecycle states for an end customer.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "active"
	CustomerStatusSuspended CustomerStatus = "suspended"
)

// Customer is the domain model for people who raise issues.
type Customer struct {
	ID           string
	VendorID     string
	Name         string
	Email        string
	PasswordHash string
	Status       CustomerStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
