// Package permits talks to the permission authority, the source of
// truth for the authorization codes granted to a session.
package permits

import "context"

// Request identifies the session to fetch grants for.
type Request struct {
	TokenID  string `json:"tokenId"`
	UserID   string `json:"userId"`
	AppID    string `json:"appId"`
	TenantID string `json:"tenantId"`
}

// Reply is the permission authority's answer.
type Reply struct {
	Success bool     `json:"success"`
	Data    []string `json:"data"`
	Message string   `json:"message"`
}

// Client fetches the current authorization codes of a session.
// Timeout and retry policy live behind this interface; callers treat
// any error as a recoverable, loggable event.
type Client interface {
	GetPermits(ctx context.Context, req Request) (*Reply, error)
}
