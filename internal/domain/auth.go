package domain

import "time"

// SubjectType differentiates customer vs representative tokens.
type SubjectType string

const (
	SubjectTypeCustomer SubjectType = "customer"
	SubjectTypeRep      SubjectType = "rep"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *RepRole
	VendorID  string
	ExpiresAt time.Time
	IssuedAt  time.Time
}
