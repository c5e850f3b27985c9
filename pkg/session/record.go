// Package session holds the cached state of live sessions and the
// store adapter that reads and writes it.
package session

import (
	"strings"
	"time"
)

// Record is the cached basis of a session, keyed by token ID.
// It is created by the login service and only conditionally mutated
// here: expiry extension on sliding refresh, and the permit cache.
type Record struct {
	UserID   string `json:"userId"`
	AppID    string `json:"appId"`
	TenantID string `json:"tenantId"`

	// TokenHash binds the token to the fingerprint of the client it
	// was issued to.
	TokenHash string `json:"tokenHash"`

	// ExpiryTime <= FailureTime always. Past FailureTime the record
	// is permanently dead and must never be refreshed.
	ExpiryTime  time.Time     `json:"expiryTime"`
	FailureTime time.Time     `json:"failureTime"`
	AutoRefresh bool          `json:"autoRefresh"`
	Life        time.Duration `json:"life"`

	// Snapshot of the authorization codes granted to this session,
	// refreshed from the permission authority when older than
	// PermitLife.
	PermitFuncs []string      `json:"permitFuncs"`
	PermitTime  time.Time     `json:"permitTime"`
	PermitLife  time.Duration `json:"permitLife"`
}

// VerifyToken reports whether the binding hash matches the stored one.
func (r *Record) VerifyToken(hash string) bool {
	return r.TokenHash == hash
}

// Expired reports whether the record is past its soft expiry.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiryTime)
}

// Failed reports whether the record is past its hard failure horizon.
func (r *Record) Failed(now time.Time) bool {
	return now.After(r.FailureTime)
}

// PermitsStale reports whether the permit snapshot needs a refresh.
func (r *Record) PermitsStale(now time.Time) bool {
	return now.After(r.PermitTime.Add(r.PermitLife))
}

// Permits reports whether any of the comma-separated codes is granted
// to this session. Matching is case-insensitive, and a multi-code
// query is satisfied by any single match.
func (r *Record) Permits(authCodes string) bool {
	if len(r.PermitFuncs) == 0 {
		return false
	}
	for _, code := range strings.Split(authCodes, ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		for _, granted := range r.PermitFuncs {
			if strings.EqualFold(code, granted) {
				return true
			}
		}
	}
	return false
}

// User is the cached account state, keyed by user ID.
type User struct {
	Account string
	Name    string
	Invalid bool
}
