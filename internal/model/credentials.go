package model

import "time"

// Credentials is the per-tenant authoritative (access, refresh, expiry)
// triple. At most one exists per tenant at any time.
type Credentials struct {
	Tenant       string    `json:"tenant" db:"tenant"`
	AccessToken  string    `json:"access_token" db:"access_token"`
	RefreshToken string    `json:"refresh_token" db:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
}
