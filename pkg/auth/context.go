// Package auth integrates the verification engine with gRPC servers.
package auth

import (
	"context"
	"fmt"
)

// Identity describes the verified caller of a request.
type Identity struct {
	TokenID  string
	UserID   string
	AppID    string
	TenantID string
}

type identityKey struct{}

// WithIdentity returns a Go context with added caller identity.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the caller identity from the Go context.
func FromContext(ctx context.Context) (*Identity, error) {
	id, _ := ctx.Value(identityKey{}).(*Identity)
	if id == nil {
		return nil, fmt.Errorf("no identity on context")
	}
	return id, nil
}
